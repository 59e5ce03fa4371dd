package index

import "github.com/golang/geo/r2"

// Index defines a generic point index with basic lifecycle methods.
// It enables building from (id, point) pairs, radius queries, and
// binary serialization for persistence.
type Index interface {
	// Build constructs the index from the given ids and points.
	// ids and points must have the same length.
	Build(ids []string, points []r2.Point) error

	// Query returns the ids of every point within radius of center, boundary
	// included, in build order. A negative radius matches nothing.
	Query(center r2.Point, radius float64) ([]string, error)

	// Len returns the number of indexed points.
	Len() int

	// MarshalBinary serializes the index into a byte slice.
	MarshalBinary() ([]byte, error)

	// UnmarshalBinary reconstructs the index from a serialized byte slice.
	UnmarshalBinary(data []byte) error
}
