// Package annotate draws detection boxes and class labels onto images.
package annotate

import (
	"image"
	"math"

	"beveragedetect/internal/detection"
)

const (
	// BoxLineWidth is the outline thickness of a detection box.
	BoxLineWidth = 2
	// LabelMargin is the vertical gap between a label and the top of its box.
	LabelMargin = 5
)

// Layout is where a label goes relative to its box.
type Layout struct {
	Box        image.Rectangle // Outline, inclusive of Max
	TextOrigin image.Point     // Top-left corner of the label text
	Background image.Rectangle // Filled area behind the text, inclusive of Max
}

// LabelLayout places a textWidth x textHeight label so that it sits
// LabelMargin pixels above the box's top-left corner, left-aligned with it.
// The label is not moved back inside the image when it would overflow.
func LabelLayout(box detection.Box, textWidth, textHeight int) Layout {
	x1, y1 := round(box.X1), round(box.Y1)
	x2, y2 := round(box.X2), round(box.Y2)

	tx := x1
	ty := y1 - textHeight - LabelMargin

	return Layout{
		Box:        image.Rect(x1, y1, x2, y2),
		TextOrigin: image.Pt(tx, ty),
		Background: image.Rect(tx, ty, tx+textWidth, ty+textHeight),
	}
}

func round(v float32) int {
	return int(math.Round(float64(v)))
}
