// Package detection holds the model-independent side of object detection:
// the result types produced by the detector, decoding of the raw YOLOv8
// output tensor and the tabular summary shown to the user.
package detection

import (
	"fmt"
	"sort"
)

// Box is a single detected object in original image pixel space.
type Box struct {
	X1, Y1, X2, Y2 float32
	Class          int
	Confidence     float32
}

// Width of the box in pixels.
func (b Box) Width() float32 { return b.X2 - b.X1 }

// Height of the box in pixels.
func (b Box) Height() float32 { return b.Y2 - b.Y1 }

// Result is the structured output of one inference call.
type Result struct {
	Boxes []Box
	Names map[int]string
	// Width and Height of the image the boxes refer to.
	Width, Height int
}

// Label returns the class name for a class index, falling back to "class_<i>".
func (r Result) Label(class int) string {
	if name, ok := r.Names[class]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("class_%d", class)
}

// Count is the number of detected objects.
func (r Result) Count() int {
	return len(r.Boxes)
}

// SortByConfidence orders boxes by descending confidence. Ties keep their order.
func (r *Result) SortByConfidence() {
	sort.SliceStable(r.Boxes, func(i, j int) bool {
		return r.Boxes[i].Confidence > r.Boxes[j].Confidence
	})
}

// Labels returns the distinct class names in the result in first-seen order.
func (r Result) Labels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, b := range r.Boxes {
		label := r.Label(b.Class)
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}
