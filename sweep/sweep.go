// Package sweep drives a benchmark executor across every kernel, reorder
// mode and refinement level of a model and collects the results.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weiihann/reorderbench/config"
	"github.com/weiihann/reorderbench/harness"
)

// DefaultKernels returns the kernels swept when none are configured.
func DefaultKernels() []string {
	return []string{"CPU", "OpenMP"}
}

// Config controls a sweep over one model.
type Config struct {
	Model   string
	Frames  int
	Kernels []string
	Tables  config.Tables
}

// Summary counts the outcome of a sweep.
type Summary struct {
	Attempted  int
	Succeeded  int
	Failed     int
	Duplicates int
}

// Space enumerates the run configurations of a sweep: kernel, then reorder
// mode, then level 1 through levels.
func Space(cfg Config, levels int) []harness.RunConfig {
	frames := cfg.Frames
	if frames <= 0 {
		frames = harness.DefaultFrames
	}

	kernels := cfg.Kernels
	if len(kernels) == 0 {
		kernels = DefaultKernels()
	}

	modes := harness.ReorderModes()
	space := make([]harness.RunConfig, 0, len(kernels)*len(modes)*levels)

	for _, kernel := range kernels {
		for _, mode := range modes {
			for level := 1; level <= levels; level++ {
				space = append(space, harness.RunConfig{
					Frames:  frames,
					Model:   cfg.Model,
					Kernel:  kernel,
					Level:   level,
					Reorder: mode,
				})
			}
		}
	}

	return space
}

// Collect runs every configuration of the sweep sequentially. A run that
// fails with *harness.ExecutionError is logged and skipped; any other
// error aborts the sweep.
func Collect(
	ctx context.Context,
	cfg Config,
	exec harness.Executor,
	logger *slog.Logger,
) (*ResultSet, Summary, error) {
	var summary Summary

	levels, err := cfg.Tables.LevelCount(cfg.Model)
	if err != nil {
		return nil, summary, err
	}

	if levels <= 0 {
		return nil, summary, fmt.Errorf("%w %q: no refinement levels", config.ErrUnknownModel, cfg.Model)
	}

	space := Space(cfg, levels)

	logger.InfoContext(ctx, "starting sweep",
		slog.String("model", cfg.Model),
		slog.Int("levels", levels),
		slog.Int("runs", len(space)),
	)

	set := NewResultSet()

	for _, runCfg := range space {
		summary.Attempted++

		result, runErr := exec.Run(ctx, runCfg)
		if runErr != nil {
			var execErr *harness.ExecutionError
			if !errors.As(runErr, &execErr) {
				return nil, summary, fmt.Errorf(
					"run %s level %d (%s): %w",
					runCfg.Kernel, runCfg.Level, runCfg.Reorder, runErr,
				)
			}

			summary.Failed++

			logger.WarnContext(ctx, "run failed",
				slog.String("kernel", runCfg.Kernel),
				slog.Int("level", runCfg.Level),
				slog.String("reorder", runCfg.Reorder.String()),
				slog.String("error", execErr.Error()),
			)

			continue
		}

		summary.Succeeded++

		if !set.Add(*result) {
			summary.Duplicates++
		}
	}

	logger.InfoContext(ctx, "sweep complete",
		slog.Int("attempted", summary.Attempted),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("duplicates", summary.Duplicates),
	)

	return set, summary, nil
}
