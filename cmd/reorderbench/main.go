// Package main provides the CLI entry point for reorderbench, which times
// subdivision kernels with and without mesh reordering and writes the
// results as a plot-ready table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiihann/reorderbench/config"
	"github.com/weiihann/reorderbench/harness"
	"github.com/weiihann/reorderbench/report"
	"github.com/weiihann/reorderbench/sweep"
)

// Model tokens look like objects/<model>.obj.
const (
	modelPrefix = "objects/"
	modelSuffix = ".obj"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("reorderbench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "reorderbench",
		Short: "Mesh reordering benchmark for subdivision kernels",
		Long: `Reorderbench runs the subdivision benchmark for every kernel, reorder
mode and refinement level of a model and writes the mean timings to
reorder_<model>.dat for plotting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newRenderCmd(logger))

	return root
}

// ModelFromToken extracts the model name from a token such as
// objects/car.obj.
func ModelFromToken(token string) (string, error) {
	model := strings.TrimSuffix(strings.TrimPrefix(token, modelPrefix), modelSuffix)
	if model == "" {
		return "", fmt.Errorf("no model name in %q", token)
	}

	return model, nil
}

type runConfig struct {
	model      string
	binary     string
	buildDir   string
	target     string
	skipBuild  bool
	benchArgs  []string
	env        []string
	frames     int
	kernels    []string
	tablesPath string
	timeout    time.Duration
	outputDir  string
	outputJSON bool
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run <model-token>",
		Short: "Sweep a model and write its reorder table",
		Long: `Run the benchmark binary for each kernel, reorder mode and level of the
model named by the token (objects/<model>.obj), skipping runs that fail,
then write reorder_<model>.dat.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ModelFromToken(args[0])
			if err != nil {
				return err
			}

			cfg.model = model

			return runSweep(cmd.Context(), logger, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.binary, "binary", "",
		"Path to the benchmark binary (default: <build-dir>/bin/<target>)")
	flags.StringVar(&cfg.buildDir, "build-dir", "build",
		"Build directory containing the benchmark makefile")
	flags.StringVar(&cfg.target, "target", harness.DefaultTarget,
		"Make target producing the benchmark binary")
	flags.BoolVar(&cfg.skipBuild, "skip-build", false,
		"Skip building the benchmark binary")
	flags.StringArrayVar(&cfg.benchArgs, "bench-arg", nil,
		"Extra arguments passed to the benchmark binary before the run flags")
	flags.StringArrayVar(&cfg.env, "env", nil,
		"Extra environment variables for the benchmark (KEY=VAL)")
	flags.IntVar(&cfg.frames, "frames", harness.DefaultFrames,
		"Frames timed per run")
	flags.StringSliceVar(&cfg.kernels, "kernels", sweep.DefaultKernels(),
		"Kernels to benchmark")
	flags.StringVar(&cfg.tablesPath, "config", "",
		"YAML file overriding model levels and kernel ranks")
	flags.DurationVar(&cfg.timeout, "timeout", 30*time.Minute,
		"Per-run timeout (0 = none)")
	flags.StringVar(&cfg.outputDir, "output-dir", ".",
		"Directory for the output table")
	flags.BoolVar(&cfg.outputJSON, "json", false,
		"Also write raw results to reorder_<model>.json")

	return cmd
}

func runSweep(ctx context.Context, logger *slog.Logger, cfg runConfig) error {
	tables, err := config.Load(cfg.tablesPath)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	// Fail before building or running anything.
	if _, err := tables.LevelCount(cfg.model); err != nil {
		return err
	}

	for _, kernel := range cfg.kernels {
		if _, err := tables.Rank(kernel); err != nil {
			return err
		}
	}

	binPath := cfg.binary
	if binPath == "" {
		binPath = harness.ResolveBinary(cfg.buildDir, cfg.target)

		if !cfg.skipBuild {
			binPath, err = harness.Build(ctx, logger, cfg.buildDir, cfg.target)
			if err != nil {
				return err
			}
		}
	}

	runner := harness.NewRunner(binPath, cfg.benchArgs, cfg.env, cfg.timeout, logger)

	set, _, err := sweep.Collect(ctx, sweep.Config{
		Model:   cfg.model,
		Frames:  cfg.frames,
		Kernels: cfg.kernels,
		Tables:  tables,
	}, runner, logger)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", cfg.model, err)
	}

	results := set.Results()

	if cfg.outputJSON {
		jsonPath := filepath.Join(cfg.outputDir, "reorder_"+cfg.model+".json")
		if err := writeFile(jsonPath, func(f *os.File) error {
			return report.GenerateJSON(f, results)
		}); err != nil {
			return fmt.Errorf("write JSON results: %w", err)
		}
	}

	datPath := filepath.Join(cfg.outputDir, datFileName(cfg.model))
	if err := writeTable(datPath, results, tables); err != nil {
		return err
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.String("output", datPath),
		slog.Int("results", len(results)),
	)

	return nil
}

func newRenderCmd(logger *slog.Logger) *cobra.Command {
	var (
		tablesPath string
		outputDir  string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "render <results.json>",
		Short: "Write a reorder table from saved JSON results",
		Long: `Read results written by "run --json" and write the matching
reorder_<model>.dat. Without --model the model is taken from a file name
of the form reorder_<model>.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := config.Load(tablesPath)
			if err != nil {
				return fmt.Errorf("load tables: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open results: %w", err)
			}
			defer f.Close()

			results, err := report.LoadJSON(f)
			if err != nil {
				return err
			}

			set := sweep.NewResultSet()
			for _, r := range results {
				set.Add(r)
			}

			if model == "" {
				model, err = modelFromResultsPath(args[0])
				if err != nil {
					return err
				}

				logger.InfoContext(cmd.Context(), "model taken from file name",
					slog.String("model", model),
					slog.String("path", args[0]),
				)
			}

			datPath := filepath.Join(outputDir, datFileName(model))

			if err := writeTable(datPath, set.Results(), tables); err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "table written",
				slog.String("output", datPath),
				slog.Int("results", set.Len()),
			)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&tablesPath, "config", "",
		"YAML file overriding model levels and kernel ranks")
	flags.StringVar(&outputDir, "output-dir", ".",
		"Directory for the output table")
	flags.StringVar(&model, "model", "",
		"Model name for the output table (default: from reorder_<model>.json)")

	return cmd
}

// modelFromResultsPath extracts the model from a path such as
// out/reorder_car.json.
func modelFromResultsPath(path string) (string, error) {
	base := filepath.Base(path)

	model, ok := strings.CutPrefix(base, "reorder_")
	if ok {
		model, ok = strings.CutSuffix(model, ".json")
	}

	if !ok || model == "" {
		return "", fmt.Errorf(
			"cannot derive model from %q: expected reorder_<model>.json or --model", base,
		)
	}

	return model, nil
}

func datFileName(model string) string {
	return "reorder_" + model + ".dat"
}

func writeTable(path string, results []harness.Result, tables config.Tables) error {
	if err := writeFile(path, func(f *os.File) error {
		return report.Generate(f, results, tables)
	}); err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}

// writeFile creates path and removes it again if write fails.
func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)

		return err
	}

	return f.Close()
}
