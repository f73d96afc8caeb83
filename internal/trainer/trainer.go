// Package trainer drives the YOLO command line trainer.
package trainer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"beveragedetect/internal/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultEpochs  = 100
	DefaultImgSize = 640
	DefaultWeights = "yolov8n.pt"
	DefaultName    = "train"
)

// TrainOptions describes one fine-tuning run.
type TrainOptions struct {
	Data    string // Path to data.yaml
	Model   string // Pretrained weights
	Epochs  int
	ImgSize int
	Project string // Output root, runs land in Project/Name
	Name    string
}

// Args renders the options as "yolo detect train" arguments.
func (o TrainOptions) Args() []string {
	args := []string{
		"detect", "train",
		"data=" + o.Data,
		"model=" + o.Model,
		"epochs=" + strconv.Itoa(o.Epochs),
		"imgsz=" + strconv.Itoa(o.ImgSize),
	}
	if o.Project != "" {
		args = append(args, "project="+o.Project)
	}
	if o.Name != "" {
		args = append(args, "name="+o.Name, "exist_ok=True")
	}
	return args
}

// BestWeights is where the trainer stores the best checkpoint of the run.
func (o TrainOptions) BestWeights() string {
	return filepath.Join(o.Project, o.Name, "weights", "best.pt")
}

// ExportOptions describes a weights conversion.
type ExportOptions struct {
	Weights string
	Format  string
	ImgSize int
}

// Args renders the options as "yolo export" arguments.
func (o ExportOptions) Args() []string {
	return []string{
		"export",
		"model=" + o.Weights,
		"format=" + o.Format,
		"imgsz=" + strconv.Itoa(o.ImgSize),
	}
}

// Output is the file the exporter writes next to the weights.
func (o ExportOptions) Output() string {
	ext := filepath.Ext(o.Weights)
	return strings.TrimSuffix(o.Weights, ext) + "." + o.Format
}

// Runner executes the trainer binary and streams its output to the logger.
type Runner struct {
	binary string
	logger *logger.Logger
}

func NewRunner(binary string, logger *logger.Logger) *Runner {
	return &Runner{binary: binary, logger: logger}
}

// Train launches training and blocks until it finishes.
func (r *Runner) Train(ctx context.Context, opts TrainOptions) error {
	r.logger.Info("Training %s on %s for %d epochs at %dpx", opts.Model, opts.Data, opts.Epochs, opts.ImgSize)
	return r.Run(ctx, opts.Args()...)
}

// Export converts weights and returns the path of the converted model.
func (r *Runner) Export(ctx context.Context, opts ExportOptions) (string, error) {
	r.logger.Info("Exporting %s to %s", opts.Weights, opts.Format)
	if err := r.Run(ctx, opts.Args()...); err != nil {
		return "", err
	}
	return opts.Output(), nil
}

// Run executes the binary with args. Stdout and stderr are forwarded line by
// line; the process is killed when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.binary, err)
	}

	var g errgroup.Group
	g.Go(func() error { return r.forward(stdout, "stdout") })
	g.Go(func() error { return r.forward(stderr, "stderr") })

	// Pipes must be drained before Wait closes them.
	streamErr := g.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s: %w", r.binary, strings.Join(args, " "), err)
	}
	return streamErr
}

func (r *Runner) forward(rd io.Reader, stream string) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.logger.Info("[%s] %s", stream, line)
	}
	return scanner.Err()
}
