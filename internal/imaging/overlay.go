package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Circle is an outline to draw on an overlay, in source image coordinates.
type Circle struct {
	X      float64
	Y      float64
	Radius float64
}

// ParseHexColor parses "#RRGGBB" (or "#RGB") into an opaque color.
func ParseHexColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawCircles returns a copy of img with every circle outlined.
//
// The ring is centred on the circle's radius and is thickness pixels wide
// (minimum 1). Parts of a circle outside the image are clipped. img is not
// modified.
func DrawCircles(img image.Image, circles []Circle, c color.Color, thickness int) *image.RGBA {
	canvas := clone.AsRGBA(img)
	bounds := canvas.Bounds()
	if thickness < 1 {
		thickness = 1
	}
	half := float64(thickness) / 2

	for _, circle := range circles {
		outer := circle.Radius + half
		inner := math.Max(circle.Radius-half, 0)

		minX := int(math.Floor(circle.X - outer))
		maxX := int(math.Ceil(circle.X + outer))
		minY := int(math.Floor(circle.Y - outer))
		maxY := int(math.Ceil(circle.Y + outer))

		for y := minY; y <= maxY; y++ {
			py := y + bounds.Min.Y
			if py < bounds.Min.Y || py >= bounds.Max.Y {
				continue
			}
			for x := minX; x <= maxX; x++ {
				px := x + bounds.Min.X
				if px < bounds.Min.X || px >= bounds.Max.X {
					continue
				}
				d := math.Hypot(float64(x)-circle.X, float64(y)-circle.Y)
				if d >= inner && d <= outer {
					canvas.Set(px, py, c)
				}
			}
		}
	}
	return canvas
}

// SavePNG encodes img as PNG at path, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save png: %w", err)
	}
	return nil
}
