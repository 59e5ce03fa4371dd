// Package tree implements a point quadtree over planar coordinates with
// radius queries and full traversal. Each node stores exactly one value and
// has four child slots, one per quadrant of its point.
package tree
