package geo

import (
	"math"

	"github.com/golang/geo/r2"
)

// DistanceSquared returns the squared planar distance between a and b.
func DistanceSquared(a, b r2.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Distance returns the planar distance between a and b.
func Distance(a, b r2.Point) float64 { return math.Sqrt(DistanceSquared(a, b)) }

// Within reports whether b lies within radius of a, boundary included.
func Within(a, b r2.Point, radius float64) bool {
	if !(radius >= 0) {
		return false
	}
	return DistanceSquared(a, b) <= radius*radius
}
