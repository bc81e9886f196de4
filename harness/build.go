package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultTarget is the make target that produces the benchmark binary.
const DefaultTarget = "osdBenchmark"

// ResolveBinary returns the expected benchmark binary path inside a
// build directory.
func ResolveBinary(buildDir, target string) string {
	if target == "" {
		target = DefaultTarget
	}

	return filepath.Join(buildDir, "bin", target)
}

// Build compiles the benchmark binary with make and returns its path.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	buildDir string,
	target string,
) (string, error) {
	if target == "" {
		target = DefaultTarget
	}

	binPath := ResolveBinary(buildDir, target)

	logger.InfoContext(ctx, "building benchmark",
		slog.String("target", target),
		slog.String("build_dir", buildDir),
	)

	cmd := exec.CommandContext(ctx, "make", target)
	cmd.Dir = buildDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", target, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", target, binPath,
		)
	}

	logger.InfoContext(ctx, "benchmark built",
		slog.String("binary", binPath),
	)

	return binPath, nil
}
