package export

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

// Renderable is a session whose original image can be annotated.
type Renderable interface {
	Original() image.Image
	Snapshot() session.Snapshot
}

// OverlayStyle controls how blob outlines are drawn.
type OverlayStyle struct {
	Color     color.Color
	Thickness int
}

// DefaultOverlayStyle draws 10 px red rings.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{Color: color.RGBA{R: 255, A: 255}, Thickness: 10}
}

// Annotate draws every blob of snap over img.
func Annotate(img image.Image, snap session.Snapshot, style OverlayStyle) *image.RGBA {
	circles := make([]imaging.Circle, len(snap.Keypoints))
	for i, k := range snap.Keypoints {
		circles[i] = imaging.Circle{X: k.X, Y: k.Y, Radius: k.Size / 2}
	}
	return imaging.DrawCircles(img, circles, style.Color, style.Thickness)
}

// ImageName is the output file name of an annotated image: Sample_N.png,
// or the source base name when the sample number is unknown.
func ImageName(snap session.Snapshot) string {
	if snap.Sample != nil {
		return fmt.Sprintf("Sample_%d.png", *snap.Sample)
	}
	base := filepath.Base(snap.Source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}

// ExportImages writes an annotated PNG per session under outDir and returns
// the paths written.
func ExportImages[R Renderable](outDir string, items []R, style OverlayStyle) ([]string, error) {
	paths := make([]string, 0, len(items))
	for _, item := range items {
		snap := item.Snapshot()
		path := filepath.Join(dayDir(outDir, snap.Day), ImageName(snap))
		if err := imaging.SavePNG(path, Annotate(item.Original(), snap, style)); err != nil {
			return paths, apperr.Export("failed to save annotated image", err)
		}
		paths = append(paths, path)
	}
	logger.WithField("dir", outDir).WithField("images", len(paths)).Info("Annotated images saved")
	return paths, nil
}
