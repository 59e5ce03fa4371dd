package tree

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
)

var (
	// ErrCapacity is returned when the node arena cannot address another node.
	ErrCapacity = errors.New("tree: node capacity exceeded")
	// ErrInvalidPoint is returned for points with NaN or infinite coordinates.
	ErrInvalidPoint = errors.New("tree: invalid point")
)

// Tree is a point quadtree holding one value per node. Nodes are kept in an
// arena addressed by int32 and are only released as a whole by Reset.
//
// Tree is not safe for concurrent use. Concurrent readers are fine once all
// inserts have completed.
type Tree[T any] struct {
	nodes  []node
	values values[T]
	depth  int
	limit  int
}

// New creates an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{limit: math.MaxInt32}
}

// Len returns the number of stored values.
func (t *Tree[T]) Len() int { return len(t.nodes) }

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *Tree[T]) Depth() int { return t.depth }

// Insert stores value at p. Duplicate points are kept as separate nodes.
func (t *Tree[T]) Insert(p r2.Point, value T) error {
	if !valid(p) {
		return ErrInvalidPoint
	}
	if len(t.nodes) >= t.capacity() {
		return ErrCapacity
	}
	idx := int32(len(t.nodes))
	if idx == 0 {
		t.append(p, value)
		t.depth = 1
		return nil
	}
	cur := int32(0)
	level := 1
	for {
		q := QuadrantOf(t.nodes[cur].point, p)
		next := t.nodes[cur].children[q]
		level++
		if next == none {
			t.append(p, value)
			t.nodes[cur].children[q] = idx
			if level > t.depth {
				t.depth = level
			}
			return nil
		}
		cur = next
	}
}

// Reset drops every node. Stored values are not otherwise touched.
func (t *Tree[T]) Reset() {
	clear(t.nodes)
	t.nodes = nil
	t.values.reset()
	t.depth = 0
}

func (t *Tree[T]) append(p r2.Point, value T) {
	t.nodes = append(t.nodes, newNode(p))
	t.values.put(value)
}

func (t *Tree[T]) capacity() int {
	if t.limit <= 0 || t.limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return t.limit
}

func valid(p r2.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
