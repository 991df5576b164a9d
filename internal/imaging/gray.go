package imaging

import (
	"image"
	"image/color"
)

// ToGray converts img to an 8-bit grayscale plane anchored at (0, 0).
//
// Color pixels use ITU-R BT.601 luminance weights:
//
//	Y = 0.299*R + 0.587*G + 0.114*B
//
// rounded to the nearest integer. *image.Gray input is copied unchanged.
// The result never aliases img.
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			srcOff := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[srcOff:srcOff+width])
		}
		return gray
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.Pix[y*gray.Stride+x] = grayValue(img.At(x+bounds.Min.X, y+bounds.Min.Y))
		}
	}
	return gray
}

// grayValue converts a color to its BT.601 luminance.
func grayValue(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	lum := float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114
	return uint8(lum + 0.5)
}
