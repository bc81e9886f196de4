package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/reorderbench/config"
)

func TestModelFromToken(t *testing.T) {
	tests := []struct {
		token   string
		want    string
		wantErr bool
	}{
		{"objects/car.obj", "car", false},
		{"objects/bigguy.obj", "bigguy", false},
		{"car", "car", false},
		{"objects/.obj", "", true},
	}

	for _, tt := range tests {
		got, err := ModelFromToken(tt.token)
		if tt.wantErr {
			assert.Error(t, err, tt.token)

			continue
		}

		require.NoError(t, err, tt.token)
		assert.Equal(t, tt.want, got)
	}
}

// fakeBenchmark writes a script that reports nverts from the level and
// fails for OpenMP level 2.
func fakeBenchmark(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	script := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --kernel) kernel=$2 ;;
    --level) level=$2 ;;
    --reorder) reorder=$2 ;;
  esac
  shift 2
done
if [ "$kernel" = "OpenMP" ] && [ "$level" = "2" ]; then
  echo "crashed" >&2
  exit 1
fi
echo "{\"kernel\": \"$kernel\", \"nverts\": ${level}00, \"reorder\": $reorder, \"samples\": [$level]}"
`

	path := filepath.Join(t.TempDir(), "bench.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunSweepWritesTable(t *testing.T) {
	outDir := t.TempDir()

	err := runSweep(context.Background(), discardLogger(), runConfig{
		model:      "car",
		binary:     fakeBenchmark(t),
		frames:     10,
		kernels:    []string{"OpenMP", "CPU"},
		outputDir:  outDir,
		outputJSON: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "reorder_car.dat"))
	require.NoError(t, err)

	want := "nVerts CPU CPU-opt OpenMP OpenMP-opt\n" +
		"100 1.000000 1.000000 1.000000 1.000000\n" +
		"200 2.000000 2.000000 ? ?\n" +
		"300 3.000000 3.000000 3.000000 3.000000\n" +
		"400 4.000000 4.000000 4.000000 4.000000\n"
	assert.Equal(t, want, string(data))

	assert.FileExists(t, filepath.Join(outDir, "reorder_car.json"))
}

func TestRenderFromJSON(t *testing.T) {
	outDir := t.TempDir()

	require.NoError(t, runSweep(context.Background(), discardLogger(), runConfig{
		model:      "car",
		binary:     fakeBenchmark(t),
		kernels:    []string{"CPU"},
		outputDir:  outDir,
		outputJSON: true,
	}))

	want, err := os.ReadFile(filepath.Join(outDir, "reorder_car.dat"))
	require.NoError(t, err)

	renderDir := t.TempDir()
	root := newRootCmd(discardLogger())
	root.SetArgs([]string{
		"render", filepath.Join(outDir, "reorder_car.json"),
		"--output-dir", renderDir,
	})
	require.NoError(t, root.Execute())

	got, err := os.ReadFile(filepath.Join(renderDir, "reorder_car.dat"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestRunSweepUnknownModel(t *testing.T) {
	outDir := t.TempDir()

	err := runSweep(context.Background(), discardLogger(), runConfig{
		model:     "teapot",
		binary:    "/nonexistent",
		kernels:   []string{"CPU"},
		outputDir: outDir,
	})
	require.ErrorIs(t, err, config.ErrUnknownModel)
	assert.NoFileExists(t, filepath.Join(outDir, "reorder_teapot.dat"))
}

func TestRunSweepUnknownKernel(t *testing.T) {
	err := runSweep(context.Background(), discardLogger(), runConfig{
		model:     "car",
		binary:    "/nonexistent",
		kernels:   []string{"Vulkan"},
		outputDir: t.TempDir(),
	})
	require.ErrorIs(t, err, config.ErrUnknownKernel)
}

func TestRunSweepPassesBenchArgsAndEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	// Every run fails unless the extra argument and environment arrive.
	script := `#!/bin/sh
[ "$1" = "--quiet" ] || exit 9
[ "$OSD_THREADS" = "4" ] || exit 8
shift
while [ $# -gt 0 ]; do
  case "$1" in
    --level) level=$2 ;;
    --reorder) reorder=$2 ;;
  esac
  shift 2
done
echo "{\"nverts\": ${level}00, \"reorder\": $reorder, \"samples\": [1]}"
`

	path := filepath.Join(t.TempDir(), "bench.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	outDir := t.TempDir()

	require.NoError(t, runSweep(context.Background(), discardLogger(), runConfig{
		model:     "car",
		binary:    path,
		benchArgs: []string{"--quiet"},
		env:       []string{"OSD_THREADS=4"},
		kernels:   []string{"CPU"},
		outputDir: outDir,
	}))

	data, err := os.ReadFile(filepath.Join(outDir, "reorder_car.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "100 1.000000 1.000000\n")
	assert.NotContains(t, string(data), "?")
}

func TestModelFromResultsPath(t *testing.T) {
	model, err := modelFromResultsPath(filepath.Join("out", "reorder_car.json"))
	require.NoError(t, err)
	assert.Equal(t, "car", model)

	for _, path := range []string{"results.json", "reorder_.json", "reorder_car.txt"} {
		_, err := modelFromResultsPath(path)
		assert.Error(t, err, path)
	}
}

func TestRenderModelFlag(t *testing.T) {
	outDir := t.TempDir()

	require.NoError(t, runSweep(context.Background(), discardLogger(), runConfig{
		model:      "car",
		binary:     fakeBenchmark(t),
		kernels:    []string{"CPU"},
		outputDir:  outDir,
		outputJSON: true,
	}))

	renamed := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.Rename(filepath.Join(outDir, "reorder_car.json"), renamed))

	renderDir := t.TempDir()

	root := newRootCmd(discardLogger())
	root.SetArgs([]string{"render", renamed, "--output-dir", renderDir})
	require.Error(t, root.Execute())
	assert.NoFileExists(t, filepath.Join(renderDir, "reorder_results.dat"))

	root = newRootCmd(discardLogger())
	root.SetArgs([]string{"render", renamed, "--model", "car", "--output-dir", renderDir})
	require.NoError(t, root.Execute())
	assert.FileExists(t, filepath.Join(renderDir, "reorder_car.dat"))
}
