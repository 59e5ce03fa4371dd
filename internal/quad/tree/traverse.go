package tree

import "github.com/golang/geo/r2"

// Map calls fn once for every stored value, in insertion order.
func (t *Tree[T]) Map(fn func(p r2.Point, v T)) {
	for i := range t.nodes {
		fn(t.nodes[i].point, t.values.value(int32(i)))
	}
}

// Walk visits values depth-first from the root, stopping early when fn
// returns false.
func (t *Tree[T]) Walk(fn func(p r2.Point, v T) bool) {
	if len(t.nodes) == 0 {
		return
	}
	stack := []int32{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[idx]
		if !fn(n.point, t.values.value(idx)) {
			return
		}
		for q := len(n.children) - 1; q >= 0; q-- {
			if child := n.children[q]; child != none {
				stack = append(stack, child)
			}
		}
	}
}
