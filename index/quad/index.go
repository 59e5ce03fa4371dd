package quad

import (
	"errors"
	"fmt"
	"slices"

	"github.com/digitaltembo/Crime-And-Dining/index/bruteforce"
	"github.com/digitaltembo/Crime-And-Dining/internal/quad/tree"
	"github.com/golang/geo/r2"
)

const magic = "QUD1"

// Index answers radius queries with a point quadtree.
type Index struct {
	ids    []string
	points []r2.Point
	tree   *tree.Tree[int32]
}

// New returns an empty quadtree index.
func New() *Index {
	return &Index{tree: tree.New[int32]()}
}

// Build inserts every point in order.
func (i *Index) Build(ids []string, points []r2.Point) error {
	if err := bruteforce.Validate(ids, points); err != nil {
		return fmt.Errorf("quad: %w", err)
	}
	t := tree.New[int32]()
	for j, p := range points {
		if err := t.Insert(p, int32(j)); err != nil {
			return fmt.Errorf("quad: insert %q: %w", ids[j], err)
		}
	}
	if i.tree != nil {
		i.tree.Reset()
	}
	i.ids = append([]string(nil), ids...)
	i.points = append([]r2.Point(nil), points...)
	i.tree = t
	return nil
}

// Query returns ids within radius of center in build order.
func (i *Index) Query(center r2.Point, radius float64) ([]string, error) {
	if i.tree == nil {
		return nil, nil
	}
	hits := i.tree.Query(center, radius)
	if len(hits) == 0 {
		return nil, nil
	}
	slices.Sort(hits)
	out := make([]string, len(hits))
	for n, h := range hits {
		out[n] = i.ids[h]
	}
	return out, nil
}

// Len returns the number of points.
func (i *Index) Len() int { return len(i.ids) }

// Depth returns the depth of the underlying tree.
func (i *Index) Depth() int {
	if i.tree == nil {
		return 0
	}
	return i.tree.Depth()
}

// MarshalBinary writes the magic header followed by the bruteforce format.
func (i *Index) MarshalBinary() ([]byte, error) {
	return append([]byte(magic), bruteforce.Encode(i.ids, i.points)...), nil
}

// UnmarshalBinary loads the bruteforce payload and rebuilds the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	if !IsBlob(data) {
		return errors.New("quad: invalid data")
	}
	ids, points, err := bruteforce.Decode(data[len(magic):])
	if err != nil {
		return err
	}
	return i.Build(ids, points)
}

// IsBlob reports whether blob was produced by MarshalBinary.
func IsBlob(blob []byte) bool {
	return len(blob) >= len(magic) && string(blob[:len(magic)]) == magic
}
