package ai

import (
	"fmt"
	"image"
	"os"

	"beveragedetect/internal/config"
	"beveragedetect/internal/detection"
	"beveragedetect/internal/logger"

	"gocv.io/x/gocv"
)

// DetectorService wraps one OpenCV DNN network loaded from an ONNX export.
// A gocv.Net must not be used from more than one goroutine at a time.
type DetectorService struct {
	net          gocv.Net
	loaded       bool
	modelPath    string
	inputSize    int
	iouThreshold float32
	names        map[int]string
	logger       *logger.Logger
}

// NewDetectorService loads the network. A missing or broken model is logged
// and the service is returned anyway; Detect then reports detection.ErrModelNotLoaded.
func NewDetectorService(cfg *config.Config, names map[int]string, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:    cfg.ModelPath,
		inputSize:    cfg.InputSize,
		iouThreshold: float32(cfg.IoUThreshold),
		names:        names,
		logger:       logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet reads the ONNX graph and pins it to the CPU backend.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	net := gocv.ReadNetFromONNX(s.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded = true
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// Loaded reports whether the network is ready for inference.
func (s *DetectorService) Loaded() bool {
	return s.loaded
}

// Detect runs inference and returns boxes above confThreshold in image space.
func (s *DetectorService) Detect(img image.Image, confThreshold float32) (detection.Result, error) {
	if !s.loaded {
		return detection.Result{}, detection.ErrModelNotLoaded
	}

	bounds := img.Bounds()
	input, geometry := detection.Letterbox(img, s.inputSize, s.inputSize)

	mat, err := gocv.ImageToMatRGB(input)
	if err != nil {
		return detection.Result{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return detection.Result{}, fmt.Errorf("decoded image is empty")
	}

	// ImageToMatRGB stores pixels in OpenCV's BGR order; the model expects RGB.
	// The input is already letterboxed to the network size.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(s.inputSize, s.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 || dims[0] != 1 {
		return detection.Result{}, fmt.Errorf("%w: %v", detection.ErrBadOutputShape, dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return detection.Result{}, fmt.Errorf("failed to read network output: %w", err)
	}

	candidates, err := detection.DecodeYOLOv8(data, dims[1], dims[2], confThreshold, geometry)
	if err != nil {
		return detection.Result{}, err
	}

	result := detection.Result{
		Boxes:  detection.NonMaxSuppression(candidates, s.iouThreshold),
		Names:  s.names,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}

	for _, box := range result.Boxes {
		s.logger.Info("Detected %s (%.2f)", result.Label(box.Class), box.Confidence)
	}

	return result, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.net.Close()
}
