// Package convert turns the captured display image into the 1bpp planes
// the tri-color panel consumes.
package convert

import (
	"fmt"
	"image"
)

// Panel geometry (4.2" B, tri-color).
const (
	EPDWidth      = 400
	EPDHeight     = 300
	EPDByteStride = EPDWidth / 8 // 50 bytes per row
	EPDPlaneSize  = EPDByteStride * EPDHeight
)

// PackNRGBA converts an image.NRGBA into packed 1bpp black/red planes.
//
// Requirements / behavior:
//
//   - img width must be exactly 400 pixels (EPDWidth).
//   - img height must be >= 300 pixels (EPDHeight); taller images are
//     center-cropped vertically.
//   - Pixel classification:
//   - transparent (alpha < 128) → white
//   - strongly red (pinned highlights) → ink on the red plane
//   - dark → ink on the black plane
//   - anything else → white
//
// Packing is y-major, MSB-first 1bpp:
//
//	byteIndex = y*EPDByteStride + (x >> 3)
//	mask      = 0x80 >> (x & 7)
//
// Both planes start all-ones (white); inked pixels clear their bit.
func PackNRGBA(img *image.NRGBA) (black, red []byte, err error) {
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()

	if w != EPDWidth {
		return nil, nil, fmt.Errorf("convert: expected width %d, got %d", EPDWidth, w)
	}
	if h < EPDHeight {
		return nil, nil, fmt.Errorf("convert: expected height >= %d, got %d", EPDHeight, h)
	}

	startY := b.Min.Y + (h-EPDHeight)/2

	black = make([]byte, EPDPlaneSize)
	red = make([]byte, EPDPlaneSize)
	for i := range black {
		black[i] = 0xFF
	}
	for i := range red {
		red[i] = 0xFF
	}

	for y := 0; y < EPDHeight; y++ {
		srcY := startY + y
		for x := 0; x < EPDWidth; x++ {
			srcX := b.Min.X + x

			i := img.PixOffset(srcX, srcY)
			r := img.Pix[i]
			g := img.Pix[i+1]
			bl := img.Pix[i+2]
			a := img.Pix[i+3]

			byteIndex := y*EPDByteStride + (x >> 3)
			mask := byte(0x80) >> (x & 7)

			switch {
			case a < 128:
				// transparent → white
			case isRed(r, g, bl):
				red[byteIndex] &^= mask
			case isDark(r, g, bl):
				black[byteIndex] &^= mask
			}
		}
	}

	return black, red, nil
}

// isRed detects pixels that should land on the red plane: a dominant red
// channel with suppressed green/blue.
func isRed(r, g, b uint8) bool {
	return r > 140 && g < 100 && b < 100
}

// isDark detects pixels for the black plane using a quick luma estimate.
func isDark(r, g, b uint8) bool {
	// Integer approximation of 0.299R + 0.587G + 0.114B.
	luma := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
	return luma < 128
}
