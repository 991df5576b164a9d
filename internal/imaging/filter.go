package imaging

import "image"

// gaussianKernel5 is the outer product of the binomial row (1 4 6 4 1).
// Total kernel sum = 256, used for normalization.
var gaussianKernel5 = [5][5]int{
	{1, 4, 6, 4, 1},
	{4, 16, 24, 16, 4},
	{6, 24, 36, 24, 6},
	{4, 16, 24, 16, 4},
	{1, 4, 6, 4, 1},
}

// GaussianBlur5 applies one 5x5 Gaussian smoothing pass.
//
// This is the fixed kernel a 5x5 Gaussian with automatic sigma reduces to.
// Border pixels use clamped (replicated) edge values.
func GaussianBlur5(src *image.Gray) *image.Gray {
	width, height := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0
			for ky := -2; ky <= 2; ky++ {
				py := clamp(y+ky, 0, height-1)
				for kx := -2; kx <= 2; kx++ {
					px := clamp(x+kx, 0, width-1)
					sum += int(src.Pix[py*src.Stride+px]) * gaussianKernel5[ky+2][kx+2]
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + 128) >> 8)
		}
	}
	return dst
}

// Erode5 replaces every pixel with the minimum of its 5x5 neighbourhood.
func Erode5(src *image.Gray) *image.Gray {
	return morph5(src, func(a, b uint8) bool { return b < a })
}

// Dilate5 replaces every pixel with the maximum of its 5x5 neighbourhood.
func Dilate5(src *image.Gray) *image.Gray {
	return morph5(src, func(a, b uint8) bool { return b > a })
}

// Open5 performs a morphological opening: one Erode5 pass, then one Dilate5
// pass. Bright specks smaller than the structuring element disappear.
func Open5(src *image.Gray) *image.Gray {
	return Dilate5(Erode5(src))
}

// morph5 runs a 5x5 rank filter. better(a, b) reports whether b should
// replace the current pick a. Neighbours outside the image are skipped.
func morph5(src *image.Gray, better func(a, b uint8) bool) *image.Gray {
	width, height := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		y0, y1 := clamp(y-2, 0, height-1), clamp(y+2, 0, height-1)
		for x := 0; x < width; x++ {
			x0, x1 := clamp(x-2, 0, width-1), clamp(x+2, 0, width-1)
			pick := src.Pix[y*src.Stride+x]
			for py := y0; py <= y1; py++ {
				row := src.Pix[py*src.Stride : py*src.Stride+width]
				for px := x0; px <= x1; px++ {
					if better(pick, row[px]) {
						pick = row[px]
					}
				}
			}
			dst.Pix[y*dst.Stride+x] = pick
		}
	}
	return dst
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
