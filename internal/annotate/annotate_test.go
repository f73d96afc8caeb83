package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"beveragedetect/internal/detection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gray = color.RGBA{R: 128, G: 128, B: 128, A: 255}

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(gray), image.Point{}, draw.Src)
	return img
}

func TestLabelLayout(t *testing.T) {
	box := detection.Box{X1: 50.4, Y1: 80.6, X2: 150, Y2: 180}

	l := LabelLayout(box, 30, 12)

	assert.Equal(t, image.Rect(50, 81, 150, 180), l.Box)
	assert.Equal(t, image.Pt(50, 64), l.TextOrigin)
	assert.Equal(t, image.Rect(50, 64, 80, 76), l.Background)
}

func TestLabelLayout_AboveImageTop(t *testing.T) {
	l := LabelLayout(detection.Box{X1: 10, Y1: 2, X2: 40, Y2: 40}, 20, 13)

	// The label is allowed to leave the image; drawing clips it.
	assert.Equal(t, image.Pt(10, -16), l.TextOrigin)
	assert.Equal(t, -16, l.Background.Min.Y)
}

func TestDrawBoxes(t *testing.T) {
	src := grayImage(200, 200)
	result := detection.Result{
		Boxes: []detection.Box{{X1: 50, Y1: 80, X2: 150, Y2: 180, Class: 0, Confidence: 0.9}},
		Names: map[int]string{0: "can"},
	}

	out := DrawBoxes(src, result, DefaultFace())

	require.Equal(t, src.Bounds(), out.Bounds())
	// Outline, both pixels of its width.
	assert.Equal(t, BoxColor, out.RGBAAt(50, 80))
	assert.Equal(t, BoxColor, out.RGBAAt(51, 100))
	assert.Equal(t, BoxColor, out.RGBAAt(150, 180))
	assert.Equal(t, BoxColor, out.RGBAAt(149, 120))
	// Interior untouched.
	assert.Equal(t, gray, out.RGBAAt(100, 130))
	// Label background (7x13 face: 20x13 label at y=62).
	assert.NotEqual(t, gray, out.RGBAAt(50, 62))
	assert.NotEqual(t, gray, out.RGBAAt(70, 75))
	assert.Equal(t, gray, out.RGBAAt(71, 62))
	assert.Equal(t, gray, out.RGBAAt(50, 61))
	// Source image is not modified.
	assert.Equal(t, gray, src.RGBAAt(50, 80))
}

func TestDrawBoxes_NoDetections(t *testing.T) {
	src := grayImage(10, 10)

	out := NewAnnotator(nil).Draw(src, detection.Result{})

	assert.Equal(t, src.Pix, out.Pix)
}

func TestDrawBoxes_OffsetBounds(t *testing.T) {
	src := grayImage(60, 60).SubImage(image.Rect(10, 10, 60, 60))

	out := DrawBoxes(src, detection.Result{
		Boxes: []detection.Box{{X1: 0, Y1: 0, X2: 20, Y2: 20}},
	}, DefaultFace())

	assert.Equal(t, image.Rect(0, 0, 50, 50), out.Bounds())
	assert.Equal(t, BoxColor, out.RGBAAt(0, 0))
}

func TestLoadFace_Missing(t *testing.T) {
	_, err := LoadFace(filepath.Join(t.TempDir(), "nope.ttf"), 40)
	assert.Error(t, err)
}
