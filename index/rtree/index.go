package rtree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/digitaltembo/Crime-And-Dining/index/bruteforce"
	"github.com/golang/geo/r2"
)

const (
	magic = "RTR1"

	minChildren = 25
	maxChildren = 50
	// tolerance is the half side of the square stored for each point, in meters.
	tolerance = 1.0
)

type item struct {
	idx   int
	point r2.Point
	rect  rtreego.Rect
}

func (it *item) Bounds() rtreego.Rect { return it.rect }

// Index answers radius queries with an R-tree.
type Index struct {
	ids    []string
	points []r2.Point
	tree   *rtreego.Rtree
}

// New returns an empty R-tree index.
func New() *Index { return &Index{} }

// Build bulk-loads every point.
func (i *Index) Build(ids []string, points []r2.Point) error {
	if err := bruteforce.Validate(ids, points); err != nil {
		return fmt.Errorf("rtree: %w", err)
	}
	objs := make([]rtreego.Spatial, len(points))
	for j, p := range points {
		objs[j] = &item{idx: j, point: p, rect: rtreego.Point{p.X, p.Y}.ToRect(tolerance)}
	}
	i.ids = append([]string(nil), ids...)
	i.points = append([]r2.Point(nil), points...)
	i.tree = rtreego.NewTree(2, minChildren, maxChildren, objs...)
	return nil
}

// Query returns ids within radius of center in build order.
func (i *Index) Query(center r2.Point, radius float64) ([]string, error) {
	if i.tree == nil || i.tree.Size() == 0 || !(radius >= 0) {
		return nil, nil
	}
	r2max := radius * radius
	bb := rtreego.Point{center.X, center.Y}.ToRect(radius + tolerance)
	within := func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		p := obj.(*item).point
		dx := p.X - center.X
		dy := p.Y - center.Y
		return dx*dx+dy*dy > r2max, false
	}
	found := i.tree.SearchIntersect(bb, within)
	if len(found) == 0 {
		return nil, nil
	}
	hits := make([]int, len(found))
	for n, obj := range found {
		hits[n] = obj.(*item).idx
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

// MarshalBinary writes the magic header followed by the bruteforce format.
func (i *Index) MarshalBinary() ([]byte, error) {
	return append([]byte(magic), bruteforce.Encode(i.ids, i.points)...), nil
}

// UnmarshalBinary loads the bruteforce payload and rebuilds the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	if !IsBlob(data) {
		return errors.New("rtree: invalid data")
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
