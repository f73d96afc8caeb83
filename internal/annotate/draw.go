package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"sync"

	"beveragedetect/internal/detection"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	BoxColor  = color.RGBA{R: 255, A: 255}
	TextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// LoadFace opens a TrueType/OpenType font file at the given point size.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return face, nil
}

// DefaultFace is the built-in bitmap face used when no font file is available.
func DefaultFace() font.Face {
	return basicfont.Face7x13
}

// Annotator draws detections with a shared font face. Faces keep glyph
// caches, so drawing is serialized.
type Annotator struct {
	face font.Face
	mu   sync.Mutex
}

func NewAnnotator(face font.Face) *Annotator {
	if face == nil {
		face = DefaultFace()
	}
	return &Annotator{face: face}
}

// Draw returns an annotated copy of img. img itself is not modified.
func (a *Annotator) Draw(img image.Image, result detection.Result) *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	return DrawBoxes(img, result, a.face)
}

// DrawBoxes copies img and draws every box of the result with its class label.
func DrawBoxes(img image.Image, result detection.Result, face font.Face) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, box := range result.Boxes {
		label := result.Label(box.Class)
		bounds, _ := font.BoundString(face, label)
		textWidth := (bounds.Max.X - bounds.Min.X).Ceil()
		textHeight := (bounds.Max.Y - bounds.Min.Y).Ceil()

		layout := LabelLayout(box, textWidth, textHeight)

		strokeRect(dst, layout.Box, BoxLineWidth, BoxColor)
		fillRect(dst, layout.Background, BoxColor)

		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(TextColor),
			Face: face,
			// Shift the dot so the ink's top-left lands on the text origin.
			Dot: fixed.Point26_6{
				X: fixed.I(layout.TextOrigin.X) - bounds.Min.X,
				Y: fixed.I(layout.TextOrigin.Y) - bounds.Min.Y,
			},
		}
		d.DrawString(label)
	}
	return dst
}

// fillRect paints r including its Max edge, clipped to dst.
func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	r = image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Max.Y+1).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// strokeRect draws an outline of the given width inside r (Max inclusive).
func strokeRect(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	for i := 0; i < width; i++ {
		fillRect(dst, image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i), c)
		fillRect(dst, image.Rect(r.Min.X, r.Max.Y-i, r.Max.X, r.Max.Y-i), c)
		fillRect(dst, image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i, r.Max.Y), c)
		fillRect(dst, image.Rect(r.Max.X-i, r.Min.Y, r.Max.X-i, r.Max.Y), c)
	}
}
