// Package report formats reorder sweep results into a plot-ready table.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/weiihann/reorderbench/config"
	"github.com/weiihann/reorderbench/harness"
)

// Placeholder marks a missing timing in the table.
const Placeholder = "?"

// AmbiguousCellError reports more than one result for the same size,
// kernel and reorder mode.
type AmbiguousCellError struct {
	NVerts  int
	Kernel  string
	Reorder harness.ReorderMode
	Count   int
}

func (e *AmbiguousCellError) Error() string {
	return fmt.Sprintf("nverts %d kernel %s (%s): %d conflicting results",
		e.NVerts, e.Kernel, e.Reorder, e.Count)
}

type cellKey struct {
	nverts  int
	kernel  string
	reorder harness.ReorderMode
}

// Generate writes the nVerts table for results to w. Columns are ordered
// by kernel rank and rows by ascending size. Nothing is written if the
// table cannot be built.
func Generate(w io.Writer, results []harness.Result, tables config.Tables) error {
	kernels, err := kernelColumns(results, tables)
	if err != nil {
		return err
	}

	sizes := sizeRows(results)

	cells := make(map[cellKey][]harness.Result)
	for _, r := range results {
		k := cellKey{nverts: r.NVerts, kernel: r.Kernel, reorder: r.Reorder}
		cells[k] = append(cells[k], r)
	}

	var buf bytes.Buffer

	buf.WriteString("nVerts")
	for _, kernel := range kernels {
		fmt.Fprintf(&buf, " %s %s-opt", kernel, kernel)
	}
	buf.WriteByte('\n')

	for _, size := range sizes {
		buf.WriteString(strconv.Itoa(size))

		for _, kernel := range kernels {
			base := cells[cellKey{size, kernel, harness.Baseline}]
			opt := cells[cellKey{size, kernel, harness.Reordered}]

			if len(base) > 1 {
				return &AmbiguousCellError{size, kernel, harness.Baseline, len(base)}
			}

			if len(opt) > 1 {
				return &AmbiguousCellError{size, kernel, harness.Reordered, len(opt)}
			}

			// An optimized timing without a baseline is not shown.
			if len(base) == 0 {
				buf.WriteString(" " + Placeholder + " " + Placeholder)

				continue
			}

			buf.WriteString(" " + formatMean(base[0]))

			if len(opt) == 0 {
				buf.WriteString(" " + Placeholder)
			} else {
				buf.WriteString(" " + formatMean(opt[0]))
			}
		}

		buf.WriteByte('\n')
	}

	_, err = buf.WriteTo(w)

	return err
}

// kernelColumns returns the distinct named kernels ordered by rank. Equal
// ranks keep first-encounter order.
func kernelColumns(results []harness.Result, tables config.Tables) ([]string, error) {
	var kernels []string
	ranks := make(map[string]int)

	for _, r := range results {
		if r.Kernel == "" {
			continue
		}

		if _, ok := ranks[r.Kernel]; ok {
			continue
		}

		rank, err := tables.Rank(r.Kernel)
		if err != nil {
			return nil, err
		}

		ranks[r.Kernel] = rank
		kernels = append(kernels, r.Kernel)
	}

	sort.SliceStable(kernels, func(i, j int) bool {
		return ranks[kernels[i]] < ranks[kernels[j]]
	})

	return kernels, nil
}

// sizeRows returns the distinct positive sizes in ascending order.
func sizeRows(results []harness.Result) []int {
	var sizes []int

	for _, r := range results {
		if r.NVerts > 0 {
			sizes = append(sizes, r.NVerts)
		}
	}

	slices.Sort(sizes)

	return slices.Compact(sizes)
}

func formatMean(r harness.Result) string {
	return fmt.Sprintf("%f", r.Mean())
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// LoadJSON reads results previously written by GenerateJSON.
func LoadJSON(r io.Reader) ([]harness.Result, error) {
	var results []harness.Result
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	for i, r := range results {
		if len(r.Samples) == 0 {
			return nil, fmt.Errorf("result %d (%s nverts %d, %s): %w",
				i, r.Kernel, r.NVerts, r.Reorder, harness.ErrNoSamples)
		}
	}

	return results, nil
}
