package detection

import "gonum.org/v1/gonum/spatial/r2"

// Blob is a circular region of interest, either detected or placed by hand.
type Blob struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Center returns the blob centre as a vector.
func (b Blob) Center() r2.Vec {
	return r2.Vec{X: b.X, Y: b.Y}
}

// Contains reports whether (x, y) lies within Radius of the centre,
// boundary included.
func (b Blob) Contains(x, y float64) bool {
	return r2.Norm(r2.Sub(r2.Vec{X: x, Y: y}, b.Center())) <= b.Radius
}

// Size is the blob diameter, the value written as a keypoint size on export.
func (b Blob) Size() float64 {
	return 2 * b.Radius
}
