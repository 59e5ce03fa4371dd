package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/digitaltembo/Crime-And-Dining/index/bruteforce"
	"github.com/digitaltembo/Crime-And-Dining/index/quad"
	"github.com/digitaltembo/Crime-And-Dining/index/rtree"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Index = (*bruteforce.Index)(nil)
	_ Index = (*quad.Index)(nil)
	_ Index = (*rtree.Index)(nil)
)

func TestParseKind(t *testing.T) {
	testCases := []struct {
		input    string
		expect   Kind
		hasError bool
	}{
		{input: "", expect: KindAuto},
		{input: "QUAD", expect: KindQuad},
		{input: " rtree ", expect: KindRTree},
		{input: "brute", expect: KindBrute},
		{input: "cover", hasError: true},
	}
	for _, tc := range testCases {
		got, err := ParseKind(tc.input)
		if tc.hasError {
			assert.Error(t, err, tc.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expect, got)
	}
	assert.Equal(t, KindBrute, Resolve(KindAuto, 10))
	assert.Equal(t, KindQuad, Resolve(KindAuto, 1000))
	assert.Equal(t, KindRTree, Resolve(KindRTree, 1))
}

func TestKindsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 1500
	ids := make([]string, n)
	points := make([]r2.Point, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
		points[i] = r2.Point{X: rng.Float64() * 3000, Y: rng.Float64() * 3000}
	}
	points[10] = points[11]

	kinds := []Kind{KindBrute, KindQuad, KindRTree}
	built := map[Kind]Index{}
	for _, k := range kinds {
		idx := New(k)
		require.NoError(t, idx.Build(ids, points), k)
		assert.Equal(t, n, idx.Len())
		built[k] = idx
	}
	for q := 0; q < 150; q++ {
		center := r2.Point{X: rng.Float64() * 3000, Y: rng.Float64() * 3000}
		if q%3 == 0 {
			center = points[rng.Intn(n)]
		}
		radius := []float64{0, 25, 100, 400}[q%4]
		expect, err := built[KindBrute].Query(center, radius)
		require.NoError(t, err)
		for _, k := range kinds[1:] {
			got, err := built[k].Query(center, radius)
			require.NoError(t, err)
			assert.Equal(t, expect, got, "kind %s center %v radius %v", k, center, radius)
		}
	}
}

func TestLoadRoundTrip(t *testing.T) {
	ids := []string{"a", "b", "c"}
	points := []r2.Point{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 200, Y: 0}}
	for _, k := range []Kind{KindBrute, KindQuad, KindRTree} {
		t.Run(string(k), func(t *testing.T) {
			idx := New(k)
			require.NoError(t, idx.Build(ids, points))
			blob, err := idx.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, k, Detect(blob))

			loaded, err := Load(blob)
			require.NoError(t, err)
			got, err := loaded.Query(r2.Point{}, 100)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, got)
			got, err = loaded.Query(r2.Point{}, 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, got)
			got, err = loaded.Query(r2.Point{}, -5)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestEmptyIndex(t *testing.T) {
	for _, k := range []Kind{KindBrute, KindQuad, KindRTree} {
		idx := New(k)
		got, err := idx.Query(r2.Point{}, 100)
		require.NoError(t, err)
		assert.Empty(t, got, k)
		require.NoError(t, idx.Build(nil, nil))
		got, err = idx.Query(r2.Point{}, 100)
		require.NoError(t, err)
		assert.Empty(t, got, k)
	}
}
