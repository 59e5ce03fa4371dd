package tree

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

type frame struct {
	idx    int32
	region r2.Rect
}

var plane = r2.Rect{
	X: r1.Interval{Lo: math.Inf(-1), Hi: math.Inf(1)},
	Y: r1.Interval{Lo: math.Inf(-1), Hi: math.Inf(1)},
}

// Query returns every value whose point lies within radius of center,
// boundary included. A negative or NaN radius yields no values.
func (t *Tree[T]) Query(center r2.Point, radius float64) []T {
	var out []T
	t.Search(center, radius, func(_ r2.Point, v T) {
		out = append(out, v)
	})
	return out
}

// Search calls visit for every value within radius of center. Subtrees whose
// region lies farther than radius from center are skipped.
func (t *Tree[T]) Search(center r2.Point, radius float64, visit func(p r2.Point, v T)) {
	if len(t.nodes) == 0 || !(radius >= 0) || math.IsNaN(center.X) || math.IsNaN(center.Y) {
		return
	}
	r2max := radius * radius
	stack := []frame{{idx: 0, region: plane}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[f.idx]
		if distanceSquared(center, n.point) <= r2max {
			visit(n.point, t.values.value(f.idx))
		}
		for q, child := range n.children {
			if child == none {
				continue
			}
			region := split(f.region, n.point, Quadrant(q))
			if distanceSquared(center, region.ClampPoint(center)) > r2max {
				continue
			}
			stack = append(stack, frame{idx: child, region: region})
		}
	}
}

// split returns the part of region lying in quadrant q of origin. Regions are
// closed on the split line, so they may overlap their siblings there.
func split(region r2.Rect, origin r2.Point, q Quadrant) r2.Rect {
	out := region
	switch q {
	case NE, SE:
		out.X.Lo = origin.X
	default:
		out.X.Hi = origin.X
	}
	switch q {
	case NE, NW:
		out.Y.Lo = origin.Y
	default:
		out.Y.Hi = origin.Y
	}
	return out
}

func distanceSquared(a, b r2.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
