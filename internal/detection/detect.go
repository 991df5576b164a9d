package detection

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/imaging"
)

// Detect runs the multi-level blob detector over gray.
//
// The returned slice is never nil on success. Blobs are ordered by the
// threshold level and raster position at which their chain was first seen.
func Detect(gray *image.Gray, p Params) ([]Blob, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if gray == nil || gray.Rect.Empty() {
		return nil, apperr.EmptyImage("image has zero area")
	}

	plane := Preprocess(gray, p)
	l := newLabeler(plane)

	var chains chainSet
	for level := p.MinThreshold; level <= p.MaxThreshold; level++ {
		var survivors []instance
		for _, c := range l.components(level) {
			if inst, ok := measure(l, c, p); ok {
				survivors = append(survivors, inst)
			}
		}
		chains.advance(level, survivors, p.MinDistBetweenBlobs)
	}
	return chains.blobs(), nil
}

// Preprocess returns the plane the detector thresholds: a zero-origin,
// tightly packed copy of gray, blurred and opened when p asks for it.
func Preprocess(gray *image.Gray, p Params) *image.Gray {
	plane := gray
	if gray.Rect.Min != (image.Point{}) || gray.Stride != gray.Rect.Dx() {
		plane = imaging.ToGray(gray)
	}
	if p.ApplyBlur {
		plane = imaging.GaussianBlur5(plane)
	}
	if p.ApplyMorphology {
		plane = imaging.Open5(plane)
	}
	return plane
}

// instance is a component that passed every filter.
type instance struct {
	centre r2.Vec
	area   int
	radius float64
}

// measure applies the filters to c, cheapest first.
func measure(l *labeler, c *component, p Params) (instance, bool) {
	area := float64(c.area)
	if area < p.MinArea || area > p.MaxArea {
		return instance{}, false
	}

	if p.MinCircularity > 0 || p.MinConvexity > 0 {
		outline := traceContour(l, c)
		contourArea := polygonArea(outline.points)

		if p.MinCircularity > 0 {
			circularity := 0.0
			if outline.perimeter > 0 {
				circularity = 4 * math.Pi * contourArea / (outline.perimeter * outline.perimeter)
			}
			if circularity < p.MinCircularity {
				return instance{}, false
			}
		}

		if p.MinConvexity > 0 {
			convexity := 0.0
			if hullArea := polygonArea(convexHull(outline.points)); hullArea > 0 {
				convexity = contourArea / hullArea
			}
			if convexity < p.MinConvexity {
				return instance{}, false
			}
		}
	}

	if p.MinInertiaRatio > 0 && c.inertiaRatio() < p.MinInertiaRatio {
		return instance{}, false
	}

	return instance{centre: c.centroid(), area: c.area, radius: c.radius()}, true
}

type chain struct {
	last  instance
	level int
}

// chainSet links instances across adjacent threshold levels.
type chainSet struct {
	chains []*chain
}

// advance attaches the survivors of level to chains last extended at
// level-1. Candidate pairs are accepted greedily by ascending distance, then
// by larger chain area, then by discovery order. A chain accepts at most one
// instance per level and unmatched instances start new chains.
func (s *chainSet) advance(level int, found []instance, maxDist float64) {
	type pair struct {
		inst, chain int
		dist        float64
	}

	var pairs []pair
	for ci, h := range s.chains {
		if h.level != level-1 {
			continue
		}
		for ii, inst := range found {
			if d := r2.Norm(r2.Sub(inst.centre, h.last.centre)); d <= maxDist {
				pairs = append(pairs, pair{inst: ii, chain: ci, dist: d})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		if aa, ba := s.chains[a.chain].last.area, s.chains[b.chain].last.area; aa != ba {
			return aa > ba
		}
		if a.chain != b.chain {
			return a.chain < b.chain
		}
		return a.inst < b.inst
	})

	instTaken := make([]bool, len(found))
	chainTaken := make(map[int]bool, len(pairs))
	for _, pr := range pairs {
		if instTaken[pr.inst] || chainTaken[pr.chain] {
			continue
		}
		instTaken[pr.inst] = true
		chainTaken[pr.chain] = true
		h := s.chains[pr.chain]
		h.last = found[pr.inst]
		h.level = level
	}

	for ii, inst := range found {
		if !instTaken[ii] {
			s.chains = append(s.chains, &chain{last: inst, level: level})
		}
	}
}

func (s *chainSet) blobs() []Blob {
	out := make([]Blob, 0, len(s.chains))
	for _, h := range s.chains {
		out = append(out, Blob{X: h.last.centre.X, Y: h.last.centre.Y, Radius: h.last.radius})
	}
	return out
}
