package detection

import (
	"image"
	"math"
	"sort"
)

// mooreDirs lists the 8 neighbour offsets clockwise (in image coordinates)
// starting east.
var mooreDirs = [8]image.Point{
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
}

func dirIndex(v image.Point) int {
	for i, d := range mooreDirs {
		if d == v {
			return i
		}
	}
	return -1
}

// contour is the closed outer boundary of a component.
type contour struct {
	points    []image.Point
	perimeter float64
}

// traceContour walks the outer boundary of c with Moore-neighbour tracing.
// The trace starts at c.start, whose west neighbour is background because
// start is the first pixel of the component in raster order. It stops when
// the walk is about to leave the start pixel by the same move it first left
// by, at which point the whole boundary has been visited.
func traceContour(l *labeler, c *component) contour {
	start := c.start
	out := contour{points: []image.Point{start}}

	cur := start
	back := 4 // west
	firstMove := -1
	limit := 8*c.area + 16

	for step := 0; step < limit; step++ {
		move := -1
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			if l.member(cur.Add(mooreDirs[d]), c.label) {
				move = d
				break
			}
		}
		if move < 0 {
			break // isolated pixel
		}
		if cur == start && move == firstMove {
			break
		}
		if firstMove < 0 {
			firstMove = move
		}

		// The neighbour examined just before move is background; it becomes
		// the backtrack point for the next pixel.
		prev := cur.Add(mooreDirs[(move+7)%8])
		next := cur.Add(mooreDirs[move])
		back = dirIndex(prev.Sub(next))

		if move%2 == 0 {
			out.perimeter++
		} else {
			out.perimeter += math.Sqrt2
		}
		cur = next
		out.points = append(out.points, cur)
	}

	if n := len(out.points); n > 1 && out.points[n-1] == start {
		out.points = out.points[:n-1]
	}
	return out
}

// polygonArea returns the absolute shoelace area of a closed polygon.
func polygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// convexHull returns the hull of pts in counter-clockwise order using
// Andrew's monotone chain. Collinear points are dropped.
func convexHull(pts []image.Point) []image.Point {
	sorted := make([]image.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	uniq := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
