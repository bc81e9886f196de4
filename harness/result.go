// Package harness runs single timed subdivision benchmark executions.
package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned for a result that carries no timing samples.
var ErrNoSamples = errors.New("no timing samples")

// ReorderMode selects whether the benchmarked mesh is rearranged for
// locality before timing.
type ReorderMode int

const (
	Baseline  ReorderMode = 0
	Reordered ReorderMode = 1
)

// ReorderModes lists the modes in sweep order.
func ReorderModes() []ReorderMode {
	return []ReorderMode{Baseline, Reordered}
}

func (m ReorderMode) String() string {
	switch m {
	case Baseline:
		return "baseline"
	case Reordered:
		return "reordered"
	default:
		return "reorder(" + strconv.Itoa(int(m)) + ")"
	}
}

// Result is the outcome of one timed execution.
type Result struct {
	Kernel  string      `json:"kernel"`
	NVerts  int         `json:"nverts"`
	Reorder ReorderMode `json:"reorder"`
	Samples []float64   `json:"samples"`
}

// Mean returns the arithmetic mean of the timing samples.
func (r Result) Mean() float64 {
	if len(r.Samples) == 0 {
		return math.NaN()
	}

	return stat.Mean(r.Samples, nil)
}

// Key returns an exact identity for the result. Samples compare by bit
// pattern, so two results share a key only if every field matches.
func (r Result) Key() string {
	var b strings.Builder

	b.WriteString(strconv.Quote(r.Kernel))
	fmt.Fprintf(&b, "|%d|%d", r.NVerts, r.Reorder)

	for _, s := range r.Samples {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(math.Float64bits(s), 16))
	}

	return b.String()
}

// UnmarshalJSON accepts reorder as either a 0/1 number or a boolean.
// null leaves the mode unchanged.
func (m *ReorderMode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		if flag {
			*m = Reordered
		} else {
			*m = Baseline
		}

		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}

	if n != int(Baseline) && n != int(Reordered) {
		return fmt.Errorf("reorder: unexpected value %d", n)
	}

	*m = ReorderMode(n)

	return nil
}
