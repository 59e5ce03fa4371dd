// Package quad adapts the point quadtree to the index.Index interface. It
// persists using the bruteforce encoding prefixed with a magic header and
// rebuilds in the original insertion order, reproducing the same tree.
package quad
