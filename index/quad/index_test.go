package quad

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildKeepsShape(t *testing.T) {
	ids := []string{"root", "ne", "sw", "ne2"}
	points := []r2.Point{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: -10, Y: -10}, {X: 20, Y: 20}}
	idx := New()
	require.NoError(t, idx.Build(ids, points))
	assert.Equal(t, 3, idx.Depth())

	blob, err := idx.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, IsBlob(blob))

	restored := New()
	require.NoError(t, restored.UnmarshalBinary(blob))
	assert.Equal(t, idx.Depth(), restored.Depth())
	got, err := restored.Query(r2.Point{X: 15, Y: 15}, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"ne", "ne2"}, got)

	assert.Error(t, restored.UnmarshalBinary([]byte("RTR1")))
}

func TestBuildRejectsInvalid(t *testing.T) {
	idx := New()
	assert.Error(t, idx.Build([]string{"a", "b"}, []r2.Point{{}}))
}
