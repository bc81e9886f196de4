// Package config holds the lookup tables that drive a reorder sweep: the
// number of refinement levels per model and the column rank per kernel.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownModel is returned when a model has no level count.
	ErrUnknownModel = errors.New("unknown model")
	// ErrUnknownKernel is returned when a kernel has no rank.
	ErrUnknownKernel = errors.New("unknown kernel")
)

// Tables maps models to level counts and kernels to column ranks.
type Tables struct {
	ModelMaxLevel map[string]int `yaml:"model_max_level"`
	KernelRank    map[string]int `yaml:"kernel_rank"`
}

// Default returns the built-in tables.
func Default() Tables {
	return Tables{
		ModelMaxLevel: map[string]int{
			"cube":        7,
			"car":         4,
			"bigguy":      4,
			"bunny":       4,
			"monsterfrog": 4,
			"venusTri":    3,
			"tetra":       6,
			"torii":       5,
		},
		KernelRank: map[string]int{
			"CPU":      0,
			"OpenMP":   1,
			"TBB":      2,
			"GCD":      3,
			"CUDA":     4,
			"CL":       5,
			"GLSL":     6,
			"MKL":      7,
			"CuSPARSE": 8,
			"Hybrid":   9,
		},
	}
}

// Load reads a YAML tables file and overlays it onto the defaults.
// An empty path returns the defaults.
func Load(path string) (Tables, error) {
	tables := Default()
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables %s: %w", path, err)
	}

	var file Tables
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tables{}, fmt.Errorf("parse tables %s: %w", path, err)
	}

	maps.Copy(tables.ModelMaxLevel, file.ModelMaxLevel)
	maps.Copy(tables.KernelRank, file.KernelRank)

	if err := tables.Validate(); err != nil {
		return Tables{}, fmt.Errorf("tables %s: %w", path, err)
	}

	return tables, nil
}

// Validate rejects non-positive level counts and negative ranks.
func (t Tables) Validate() error {
	for model, levels := range t.ModelMaxLevel {
		if levels <= 0 {
			return fmt.Errorf("model %q: level count must be positive, got %d", model, levels)
		}
	}

	for kernel, rank := range t.KernelRank {
		if rank < 0 {
			return fmt.Errorf("kernel %q: rank must not be negative, got %d", kernel, rank)
		}
	}

	return nil
}

// LevelCount returns the number of refinement levels for model.
func (t Tables) LevelCount(model string) (int, error) {
	levels, ok := t.ModelMaxLevel[model]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownModel, model)
	}

	return levels, nil
}

// Rank returns the column rank for kernel.
func (t Tables) Rank(kernel string) (int, error) {
	rank, ok := t.KernelRank[kernel]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownKernel, kernel)
	}

	return rank, nil
}
