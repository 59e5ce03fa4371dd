package index

import (
	"fmt"
	"strings"

	"github.com/digitaltembo/Crime-And-Dining/index/bruteforce"
	"github.com/digitaltembo/Crime-And-Dining/index/quad"
	"github.com/digitaltembo/Crime-And-Dining/index/rtree"
)

// Kind names an index implementation.
type Kind string

const (
	KindAuto  Kind = "auto"
	KindBrute Kind = "brute"
	KindQuad  Kind = "quad"
	KindRTree Kind = "rtree"
)

// autoQuadMinPoints is the size from which auto selects the quadtree.
const autoQuadMinPoints = 64

// ParseKind parses a kind name; the empty string means auto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindBrute, KindQuad, KindRTree:
		return k, nil
	default:
		return "", fmt.Errorf("index: unknown kind %q", s)
	}
}

// Resolve picks a concrete kind for n points.
func Resolve(kind Kind, n int) Kind {
	switch kind {
	case KindBrute, KindQuad, KindRTree:
		return kind
	}
	if n >= autoQuadMinPoints {
		return KindQuad
	}
	return KindBrute
}

// New returns an empty index of the given concrete kind.
func New(kind Kind) Index {
	switch kind {
	case KindQuad:
		return quad.New()
	case KindRTree:
		return rtree.New()
	default:
		return &bruteforce.Index{}
	}
}

// Detect returns the kind that produced blob.
func Detect(blob []byte) Kind {
	switch {
	case quad.IsBlob(blob):
		return KindQuad
	case rtree.IsBlob(blob):
		return KindRTree
	default:
		return KindBrute
	}
}

// Load reconstructs an index from a blob written by MarshalBinary.
func Load(blob []byte) (Index, error) {
	idx := New(Detect(blob))
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, err
	}
	return idx, nil
}
