package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beveragedetect/internal/roboflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("LOG_DIR", filepath.Join(t.TempDir(), "logs"))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDownload_MissingAPIKey(t *testing.T) {
	t.Setenv("ROBOFLOW_API_KEY", "")

	_, err := runCLI(t, "download", "--experiments", t.TempDir())
	assert.ErrorIs(t, err, roboflow.ErrMissingAPIKey)
}

func TestTrain_SkipDownload(t *testing.T) {
	experiments := t.TempDir()
	dataDir := filepath.Join(experiments, "dataset")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "data.yaml"),
		[]byte("train: train/images\nval: valid/images\nnc: 1\nnames: ['can']\n"), 0644))

	// Stand-in trainer that records its arguments.
	argsFile := filepath.Join(experiments, "args.txt")
	fake := filepath.Join(experiments, "yolo")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	require.NoError(t, os.WriteFile(fake, []byte(script), 0755))

	out, err := runCLI(t, "train", "--skip-download", "--experiments", experiments, "--trainer", fake, "--epochs", "3")
	require.NoError(t, err)

	want := filepath.Join(experiments, "runs", "train", "weights", "best.pt")
	assert.Equal(t, want, strings.TrimSpace(out))

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := string(recorded)
	assert.Contains(t, args, "detect train")
	assert.Contains(t, args, "data="+filepath.Join(dataDir, "data.yaml"))
	assert.Contains(t, args, "model="+filepath.Join(experiments, "yolov8n.pt"))
	assert.Contains(t, args, "epochs=3")
	assert.Contains(t, args, "imgsz=640")
}

func TestTrain_SkipDownloadWithoutDataset(t *testing.T) {
	_, err := runCLI(t, "train", "--skip-download", "--experiments", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--skip-download")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "best.onnx")
	require.NoError(t, os.WriteFile(src, []byte("onnx"), 0644))

	dst := filepath.Join(dir, "data", "best_weights.onnx")
	require.NoError(t, copyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "onnx", string(got))
}
