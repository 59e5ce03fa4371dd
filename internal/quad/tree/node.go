package tree

import "github.com/golang/geo/r2"

// Quadrant addresses one of the four child slots of a node.
type Quadrant uint8

const (
	// NE holds points with dx >= 0 and dy >= 0.
	NE Quadrant = iota
	// SE holds points with dx >= 0 and dy < 0.
	SE
	// NW holds points with dx < 0 and dy >= 0.
	NW
	// SW holds points with dx < 0 and dy < 0.
	SW
)

func (q Quadrant) String() string {
	switch q {
	case NE:
		return "NE"
	case SE:
		return "SE"
	case NW:
		return "NW"
	case SW:
		return "SW"
	}
	return "?"
}

// QuadrantOf returns the quadrant of p relative to origin. A zero delta
// routes to the positive side on that axis.
func QuadrantOf(origin, p r2.Point) Quadrant {
	east := p.X-origin.X >= 0
	north := p.Y-origin.Y >= 0
	switch {
	case east && north:
		return NE
	case east:
		return SE
	case north:
		return NW
	default:
		return SW
	}
}

const none int32 = -1

// node is an arena slot. Its value lives at the same index in the value arena.
type node struct {
	point    r2.Point
	children [4]int32
}

func newNode(p r2.Point) node {
	return node{point: p, children: [4]int32{none, none, none, none}}
}
