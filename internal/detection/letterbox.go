package detection

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// PadColor fills the letterbox border.
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox scales img into a width×height canvas keeping its aspect ratio
// and pads the remainder with PadColor. The returned geometry maps model
// coordinates back onto img.
func Letterbox(img image.Image, width, height int) (*image.RGBA, Geometry) {
	b := img.Bounds()
	g := NewGeometry(b.Dx(), b.Dy(), width, height)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: PadColor}, image.Point{}, draw.Src)
	if g.Gain <= 0 {
		return dst, g
	}

	w, h := g.Resized()
	target := image.Rect(g.PadX, g.PadY, g.PadX+w, g.PadY+h)
	draw.BiLinear.Scale(dst, target, img, b, draw.Src, nil)
	return dst, g
}
