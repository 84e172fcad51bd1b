// Package bitmap turns the encoded images served by TRMNL into grayscale
// frames a surface can present.
package bitmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// ErrUnsupported is returned for data that is neither a BMP nor a PNG the
// decoders understand.
var ErrUnsupported = errors.New("bitmap: unsupported image format")

// Decode decodes a BMP or PNG image into a grayscale frame.
func Decode(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupported)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return ToGray(img), nil
	}

	// The generic BMP reader only understands 8, 24 and 32 bits per pixel.
	// TRMNL serves 1-bit images, so paletted BMPs get a second chance.
	if isBMP(data) {
		g, perr := decodePalettedBMP(data)
		if perr == nil {
			return g, nil
		}
		return nil, perr
	}
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return nil, fmt.Errorf("bitmap: decoding: %w", err)
}

// ToGray converts img into a grayscale image with its origin at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Rect, img, b.Min, draw.Src)
	return g
}

func isBMP(data []byte) bool {
	return len(data) >= 2 && data[0] == 'B' && data[1] == 'M'
}

const (
	fileHeaderLen = 14
	infoHeaderLen = 40
)

// decodePalettedBMP handles uncompressed 1, 2, 4 and 8 bit paletted BMPs,
// bottom-up or top-down.
func decodePalettedBMP(data []byte) (*image.Gray, error) {
	if len(data) < fileHeaderLen+infoHeaderLen {
		return nil, fmt.Errorf("%w: bmp header truncated", ErrUnsupported)
	}
	le := binary.LittleEndian

	pixOffset := int(le.Uint32(data[10:14]))
	dibSize := int(le.Uint32(data[14:18]))
	width := int(int32(le.Uint32(data[18:22])))
	height := int(int32(le.Uint32(data[22:26])))
	bpp := int(le.Uint16(data[28:30]))
	compression := le.Uint32(data[30:34])
	colorsUsed := int(le.Uint32(data[46:50]))

	if dibSize < infoHeaderLen {
		return nil, fmt.Errorf("%w: bmp info header size %d", ErrUnsupported, dibSize)
	}
	if compression != 0 {
		return nil, fmt.Errorf("%w: bmp compression %d", ErrUnsupported, compression)
	}
	switch bpp {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%w: bmp with %d bits per pixel", ErrUnsupported, bpp)
	}

	topDown := height < 0
	if topDown {
		height = -height
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bmp size %dx%d", ErrUnsupported, width, height)
	}

	if colorsUsed == 0 {
		colorsUsed = 1 << bpp
	}
	palStart := fileHeaderLen + dibSize
	palEnd := palStart + 4*colorsUsed
	if palEnd > len(data) {
		return nil, fmt.Errorf("%w: bmp palette truncated", ErrUnsupported)
	}
	palette := make([]uint8, colorsUsed)
	for i := range palette {
		e := data[palStart+4*i : palStart+4*i+4] // B, G, R, reserved
		palette[i] = color.GrayModel.Convert(color.RGBA{R: e[2], G: e[1], B: e[0], A: 0xff}).(color.Gray).Y
	}

	stride := ((width*bpp + 31) / 32) * 4
	if pixOffset < palEnd || pixOffset+stride*height > len(data) {
		return nil, fmt.Errorf("%w: bmp pixel data truncated", ErrUnsupported)
	}

	g := image.NewGray(image.Rect(0, 0, width, height))
	mask := byte(1<<bpp - 1)
	perByte := 8 / bpp
	for y := 0; y < height; y++ {
		srcRow := y
		if !topDown {
			srcRow = height - 1 - y
		}
		row := data[pixOffset+srcRow*stride : pixOffset+(srcRow+1)*stride]
		dst := g.Pix[y*g.Stride : y*g.Stride+width]
		for x := 0; x < width; x++ {
			b := row[x/perByte]
			shift := uint(8 - bpp*(x%perByte+1))
			idx := int((b >> shift) & mask)
			if idx < len(palette) {
				dst[x] = palette[idx]
			}
		}
	}
	return g, nil
}
