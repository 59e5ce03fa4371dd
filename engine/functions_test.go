package engine

import (
	"errors"
	"testing"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGeoFunctionsAndUse(t *testing.T) {
	// Register globally before first connection so functions are available.
	require.NoError(t, RegisterGeoFunctions(nil))
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RegisterGeoFunctions(db))

	origin := geo.EncodePoint(r2.Point{})
	threeFour := geo.EncodePoint(r2.Point{X: 3, Y: 4})

	var dist float64
	require.NoError(t, db.QueryRow(`SELECT geo_dist(?, ?)`, origin, threeFour).Scan(&dist))
	assert.InDelta(t, 5, dist, 1e-9)

	var within int
	require.NoError(t, db.QueryRow(`SELECT geo_within(?, ?, 5)`, origin, threeFour).Scan(&within))
	assert.Equal(t, 1, within, "geo_within(r=5)")
	require.NoError(t, db.QueryRow(`SELECT geo_within(?, ?, 4.9)`, origin, threeFour).Scan(&within))
	assert.Equal(t, 0, within, "geo_within(r=4.9)")

	require.NoError(t, db.QueryRow(`SELECT geo_dist(geo_point(0, 0), geo_point(6, 8))`).Scan(&dist))
	assert.InDelta(t, 10, dist, 1e-9)

	var meters float64
	require.NoError(t, db.QueryRow(`SELECT geo_haversine(42.0, -71.0, 43.0, -71.0)`).Scan(&meters))
	assert.InDelta(t, 111195, meters, 50)
}

func TestRegisterGeoFunctionsKeepsError(t *testing.T) {
	require.NoError(t, RegisterGeoFunctions(nil))
	saved := registerGeoErr
	t.Cleanup(func() { registerGeoErr = saved })

	failed := errors.New("engine: register geo_point: boom")
	registerGeoErr = failed
	assert.ErrorIs(t, RegisterGeoFunctions(nil), failed)
	assert.ErrorIs(t, RegisterGeoFunctions(nil), failed)
}
