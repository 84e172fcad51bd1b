package bitmap

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder returns a white w x h frame with caption drawn near the top
// left corner. Frontends show it until the first image arrives.
func Placeholder(w, h int, caption string) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 0xff
	}
	if caption == "" {
		return g
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  g,
		Src:  image.NewUniform(color.Gray{Y: 0}),
		Face: face,
		Dot:  fixed.P(8, 8+face.Ascent),
	}
	d.DrawString(caption)
	return g
}
