package detection

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxDetections caps the number of boxes kept after suppression.
const MaxDetections = 300

var (
	ErrBadOutputShape = errors.New("unexpected model output shape")
	ErrModelNotLoaded = errors.New("detection network not initialized")
)

// Geometry maps model input coordinates back to the original image. The
// image is scaled by Gain keeping its aspect ratio and centred in the input
// with PadX, PadY pixels of padding.
type Geometry struct {
	InputWidth, InputHeight int
	ImageWidth, ImageHeight int
	Gain                    float32
	PadX, PadY              int
}

// NewGeometry computes the letterbox placement of an image in the model input.
func NewGeometry(imageWidth, imageHeight, inputWidth, inputHeight int) Geometry {
	g := Geometry{
		InputWidth:  inputWidth,
		InputHeight: inputHeight,
		ImageWidth:  imageWidth,
		ImageHeight: imageHeight,
	}
	if g.validate() != nil {
		return g
	}

	gain := math.Min(float64(inputWidth)/float64(imageWidth), float64(inputHeight)/float64(imageHeight))
	w, h := g.scaled(gain)
	g.Gain = float32(gain)
	g.PadX = int(math.RoundToEven(float64(inputWidth-w)/2 - 0.1))
	g.PadY = int(math.RoundToEven(float64(inputHeight-h)/2 - 0.1))
	return g
}

// Resized is the size of the image inside the input, without padding.
func (g Geometry) Resized() (int, int) {
	return g.scaled(float64(g.Gain))
}

func (g Geometry) scaled(gain float64) (int, int) {
	return int(math.RoundToEven(float64(g.ImageWidth) * gain)), int(math.RoundToEven(float64(g.ImageHeight) * gain))
}

func (g Geometry) validate() error {
	if g.InputWidth <= 0 || g.InputHeight <= 0 || g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return fmt.Errorf("invalid geometry %+v", g)
	}
	return nil
}

// DecodeYOLOv8 turns the raw [1, 4+C, N] output of a YOLOv8 detection head
// into boxes in image space. data is the flattened tensor in row-major order,
// so channel c of anchor i lives at data[c*anchors+i]. The first four channels
// are cx, cy, w, h in input pixels, the remaining C are class scores.
// Only anchors whose best score is strictly above confThreshold are kept.
func DecodeYOLOv8(data []float32, channels, anchors int, confThreshold float32, g Geometry) ([]Box, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if g.Gain <= 0 {
		return nil, fmt.Errorf("invalid geometry gain %v", g.Gain)
	}
	if channels <= 4 || anchors <= 0 || len(data) != channels*anchors {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrBadOutputShape, len(data), channels, anchors)
	}

	padX, padY := float32(g.PadX), float32(g.PadY)
	numClasses := channels - 4

	var boxes []Box
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := 0, float32(-1)
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > bestScore {
				bestClass, bestScore = c, score
			}
		}
		if bestScore <= confThreshold {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		boxes = append(boxes, Box{
			X1:         clamp((cx-w/2-padX)/g.Gain, 0, float32(g.ImageWidth)),
			Y1:         clamp((cy-h/2-padY)/g.Gain, 0, float32(g.ImageHeight)),
			X2:         clamp((cx+w/2-padX)/g.Gain, 0, float32(g.ImageWidth)),
			Y2:         clamp((cy+h/2-padY)/g.Gain, 0, float32(g.ImageHeight)),
			Class:      bestClass,
			Confidence: bestScore,
		})
	}
	return boxes, nil
}

// NonMaxSuppression keeps the highest scoring box among same-class boxes
// overlapping by more than iouThreshold. The result is ordered by descending
// confidence and holds at most MaxDetections boxes.
func NonMaxSuppression(boxes []Box, iouThreshold float32) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Box, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if len(kept) == MaxDetections {
			break
		}
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].Class != sorted[i].Class {
				continue
			}
			if IoU(sorted[i], sorted[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// IoU is the intersection over union of two boxes.
func IoU(a, b Box) float32 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
