package detection

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// component is one 8-connected foreground region at a single threshold level.
type component struct {
	label int32
	start image.Point // first pixel in raster order, the contour trace origin

	area                   int
	minX, minY, maxX, maxY int

	// Raw moments up to second order.
	sumX, sumY          float64
	sumXX, sumYY, sumXY float64
}

// centroid returns the mean pixel position.
func (c *component) centroid() r2.Vec {
	n := float64(c.area)
	return r2.Vec{X: c.sumX / n, Y: c.sumY / n}
}

// radius is half the larger bounding box side, both sides counted inclusively.
func (c *component) radius() float64 {
	w := c.maxX - c.minX + 1
	h := c.maxY - c.minY + 1
	return float64(max(w, h)) / 2
}

// inertiaRatio returns the minor-to-major axis ratio of the ellipse with the
// same second-order central moments. A component without spread has ratio 1.
func (c *component) inertiaRatio() float64 {
	n := float64(c.area)
	centre := c.centroid()
	mu20 := c.sumXX/n - centre.X*centre.X
	mu02 := c.sumYY/n - centre.Y*centre.Y
	mu11 := c.sumXY/n - centre.X*centre.Y

	cov := mat.NewSymDense(2, []float64{mu20, mu11, mu11, mu02})
	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		return 0
	}
	values := eig.Values(nil) // ascending
	major := values[1]
	if major <= 1e-12 {
		return 1
	}
	minor := math.Max(values[0], 0)
	return math.Sqrt(minor / major)
}

// labeler extracts connected components from a binarised view of a plane.
// The label buffer is reused across threshold levels.
type labeler struct {
	pix    []uint8
	width  int
	height int
	labels []int32
	stack  []image.Point
}

func newLabeler(plane *image.Gray) *labeler {
	w, h := plane.Rect.Dx(), plane.Rect.Dy()
	return &labeler{
		pix:    plane.Pix,
		width:  w,
		height: h,
		labels: make([]int32, w*h),
	}
}

// components labels every pixel darker than level and returns the regions in
// the order their first pixel appears in raster order.
func (l *labeler) components(level int) []*component {
	clear(l.labels)

	var found []*component
	next := int32(0)
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			i := y*l.width + x
			if l.labels[i] != 0 || int(l.pix[i]) >= level {
				continue
			}
			next++
			found = append(found, l.floodFill(x, y, level, next))
		}
	}
	return found
}

// floodFill grows a region from (startX, startY) with an explicit stack so
// large colonies cannot overflow the goroutine stack. Pixels are labelled
// when pushed, so each one is visited once.
func (l *labeler) floodFill(startX, startY, level int, label int32) *component {
	c := &component{
		label: label,
		start: image.Point{X: startX, Y: startY},
		minX:  startX, minY: startY, maxX: startX, maxY: startY,
	}

	l.labels[startY*l.width+startX] = label
	l.stack = append(l.stack[:0], c.start)

	for len(l.stack) > 0 {
		p := l.stack[len(l.stack)-1]
		l.stack = l.stack[:len(l.stack)-1]

		fx, fy := float64(p.X), float64(p.Y)
		c.area++
		c.sumX += fx
		c.sumY += fy
		c.sumXX += fx * fx
		c.sumYY += fy * fy
		c.sumXY += fx * fy
		c.minX = min(c.minX, p.X)
		c.maxX = max(c.maxX, p.X)
		c.minY = min(c.minY, p.Y)
		c.maxY = max(c.maxY, p.Y)

		// 8-connected neighbours
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || nx >= l.width || ny < 0 || ny >= l.height {
					continue
				}
				j := ny*l.width + nx
				if l.labels[j] != 0 || int(l.pix[j]) >= level {
					continue
				}
				l.labels[j] = label
				l.stack = append(l.stack, image.Point{X: nx, Y: ny})
			}
		}
	}
	return c
}

// member reports whether p belongs to the component labelled label.
func (l *labeler) member(p image.Point, label int32) bool {
	if p.X < 0 || p.X >= l.width || p.Y < 0 || p.Y >= l.height {
		return false
	}
	return l.labels[p.Y*l.width+p.X] == label
}
