package tui

import (
	"image"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
)

const (
	brailleBase = 0x2800
	inkLevel    = 0x80
)

// dotBits maps a dot position inside a 2x4 braille cell to its bit.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Braille renders img into at most cols x rows braille cells, keeping the
// aspect ratio. Each cell carries 2x4 dots; a dot is set where the pixel is
// dark.
func Braille(img *image.Gray, cols, rows int) []string {
	if img == nil || cols <= 0 || rows <= 0 {
		return nil
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}

	dots := fitDots(img, cols*2, rows*4)
	db := dots.Bounds()
	cellsX := (db.Dx() + 1) / 2
	cellsY := (db.Dy() + 3) / 4

	lines := make([]string, 0, cellsY)
	var sb strings.Builder
	for cy := 0; cy < cellsY; cy++ {
		sb.Reset()
		for cx := 0; cx < cellsX; cx++ {
			r := rune(brailleBase)
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := cx*2+dx, cy*4+dy
					if x < db.Dx() && y < db.Dy() && dots.GrayAt(x, y).Y < inkLevel {
						r |= dotBits[dy][dx]
					}
				}
			}
			sb.WriteRune(r)
		}
		lines = append(lines, sb.String())
	}
	return lines
}

// fitDots scales img to fit into maxW x maxH dots.
func fitDots(img *image.Gray, maxW, maxH int) *image.Gray {
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH && b.Min == (image.Point{}) {
		return img
	}
	scale := min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := min(maxW, max(1, int(math.Round(float64(b.Dx())*scale))))
	h := min(maxH, max(1, int(math.Round(float64(b.Dy())*scale))))

	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
