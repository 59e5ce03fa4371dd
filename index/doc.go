// Package index defines a minimal abstraction for point indexes that can be
// built from planar points, queried by radius, and serialized for persistence.
// Implementations in this module include a linear-scan baseline, a point
// quadtree and an R-tree.
package index
