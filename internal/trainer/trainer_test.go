package trainer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beveragedetect/internal/config"
	"beveragedetect/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainOptions_Args(t *testing.T) {
	opts := TrainOptions{
		Data:    "experiments/dataset/data.yaml",
		Model:   "experiments/yolov8n.pt",
		Epochs:  DefaultEpochs,
		ImgSize: DefaultImgSize,
		Project: "experiments/runs",
		Name:    "beverage",
	}

	assert.Equal(t, []string{
		"detect", "train",
		"data=experiments/dataset/data.yaml",
		"model=experiments/yolov8n.pt",
		"epochs=100",
		"imgsz=640",
		"project=experiments/runs",
		"name=beverage",
		"exist_ok=True",
	}, opts.Args())
	assert.Equal(t, filepath.Join("experiments", "runs", "beverage", "weights", "best.pt"), opts.BestWeights())
}

func TestExportOptions(t *testing.T) {
	opts := ExportOptions{Weights: "runs/train/weights/best.pt", Format: "onnx", ImgSize: 640}

	assert.Equal(t, []string{"export", "model=runs/train/weights/best.pt", "format=onnx", "imgsz=640"}, opts.Args())
	assert.Equal(t, "runs/train/weights/best.onnx", opts.Output())
}

func newFileLogger(t *testing.T) (*logger.Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := logger.NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, dir
}

func TestRunner_StreamsOutput(t *testing.T) {
	l, dir := newFileLogger(t)
	runner := NewRunner("sh", l)

	err := runner.Run(context.Background(), "-c", "echo 'Epoch 1/100'; echo 'warming up' 1>&2")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, logger.InfoFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[stdout] Epoch 1/100")
	assert.Contains(t, string(data), "[stderr] warming up")
}

func TestRunner_Failure(t *testing.T) {
	runner := NewRunner("sh", logger.NewNop())

	err := runner.Run(context.Background(), "-c", "exit 3")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "exit status 3"), err.Error())

	err = NewRunner(filepath.Join(t.TempDir(), "missing-yolo"), logger.NewNop()).Run(context.Background())
	assert.Error(t, err)
}

func TestRunner_Cancelled(t *testing.T) {
	runner := NewRunner("sh", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, runner.Run(ctx, "-c", "sleep 5"))
}
