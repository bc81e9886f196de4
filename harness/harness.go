package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// DefaultFrames is the number of frames timed per run.
const DefaultFrames = 1000

// RunConfig holds parameters for a single benchmark execution.
type RunConfig struct {
	Frames  int
	Model   string
	Kernel  string
	Level   int
	Reorder ReorderMode
}

func (c RunConfig) args() []string {
	return []string{
		"--frames", strconv.Itoa(c.Frames),
		"--model", c.Model,
		"--kernel", c.Kernel,
		"--level", strconv.Itoa(c.Level),
		"--reorder", strconv.Itoa(int(c.Reorder)),
	}
}

// ExecutionError reports that a single run failed. The sweep skips the
// configuration and moves on.
type ExecutionError struct {
	Config RunConfig
	Err    error
	Stderr string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s/%s level %d (%s): %v",
		e.Config.Model, e.Config.Kernel, e.Config.Level, e.Config.Reorder, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}

	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor performs one timed execution.
type Executor interface {
	Run(ctx context.Context, cfg RunConfig) (*Result, error)
}

// Runner launches the benchmark binary once per configuration.
type Runner struct {
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewRunner creates a Runner for the benchmark binary at binaryPath.
// ExtraArgs are placed before the run flags. Env is appended to the
// inherited environment. A zero timeout disables the per-run limit.
func NewRunner(
	binaryPath string,
	extraArgs, env []string,
	timeout time.Duration,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		BinaryPath: binaryPath,
		ExtraArgs:  extraArgs,
		Env:        env,
		Timeout:    timeout,
		Logger:     logger.With(slog.String("binary", binaryPath)),
	}
}

// Run executes the benchmark binary and returns the parsed result.
// Failures of the run itself are returned as *ExecutionError; if ctx is
// cancelled the context error is returned as is.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(r.ExtraArgs)+10)
	args = append(args, r.ExtraArgs...)
	args = append(args, cfg.args()...)

	cmd := exec.CommandContext(runCtx, r.BinaryPath, args...)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.Logger.With(
		slog.String("model", cfg.Model),
		slog.String("kernel", cfg.Kernel),
		slog.Int("level", cfg.Level),
		slog.String("reorder", cfg.Reorder.String()),
	)
	logger.Debug("starting run")

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.Timeout, err)
		}

		return nil, &ExecutionError{Config: cfg, Err: err, Stderr: stderr.String()}
	}

	logger.Debug("run finished", slog.Duration("wall_time", time.Since(wallStart)))

	result, err := parseResult(cfg, &stdout)
	if err != nil {
		return nil, &ExecutionError{
			Config: cfg,
			Err:    fmt.Errorf("parse output: %w", err),
			Stderr: stderr.String(),
		}
	}

	return result, nil
}

// parseResult decodes the JSON object the benchmark writes to stdout.
func parseResult(cfg RunConfig, r io.Reader) (*Result, error) {
	result := Result{Reorder: cfg.Reorder}
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if result.Kernel == "" {
		result.Kernel = cfg.Kernel
	}

	if len(result.Samples) == 0 {
		return nil, ErrNoSamples
	}

	return &result, nil
}
