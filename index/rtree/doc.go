// Package rtree adapts github.com/dhconnelly/rtreego to the index.Index
// interface. Points are stored as small squares and every candidate is
// checked against the exact radius.
package rtree
