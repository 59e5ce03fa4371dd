package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"
	sqlite "modernc.org/sqlite"
)

var (
	registerGeoOnce sync.Once
	registerGeoErr  error
)

// RegisterGeoFunctions registers geo_point, geo_dist, geo_within and
// geo_haversine with the driver so they are available on new connections
// opened after this call. Existing open connections will not see them.
func RegisterGeoFunctions(_ *sql.DB) error {
	registerGeoOnce.Do(func() {
		for name, fn := range map[string]struct {
			args int
			impl func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
		}{
			"geo_point":     {2, geoPointImpl},
			"geo_dist":      {2, geoDistImpl},
			"geo_within":    {3, geoWithinImpl},
			"geo_haversine": {4, geoHaversineImpl},
		} {
			if e := sqlite.RegisterDeterministicScalarFunction(name, int32(fn.args), fn.impl); e != nil && !strings.Contains(e.Error(), "already") {
				registerGeoErr = multierr.Append(registerGeoErr, fmt.Errorf("engine: register %s: %w", name, e))
			}
		}
	})
	return registerGeoErr
}

func asPoint(arg driver.Value) (*r2.Point, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		p, err := geo.DecodePoint(v)
		if err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("geo: unsupported argument type %T for point; want BLOB", arg)
	}
}

func asNumber(arg driver.Value) (float64, bool, error) {
	switch v := arg.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case int64:
		return float64(v), true, nil
	default:
		return 0, false, fmt.Errorf("geo: unsupported numeric argument type %T", arg)
	}
}

func geoPointImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("geo_point: expected 2 arguments, got %d", len(args))
	}
	x, ok, err := asNumber(args[0])
	if err != nil || !ok {
		return nil, err
	}
	y, ok, err := asNumber(args[1])
	if err != nil || !ok {
		return nil, err
	}
	return geo.EncodePoint(r2.Point{X: x, Y: y}), nil
}

func geoDistImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("geo_dist: expected 2 arguments, got %d", len(args))
	}
	a, err := asPoint(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asPoint(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	return geo.Distance(*a, *b), nil
}

func geoWithinImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("geo_within: expected 3 arguments, got %d", len(args))
	}
	a, err := asPoint(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asPoint(args[1])
	if err != nil {
		return nil, err
	}
	r, ok, err := asNumber(args[2])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil || !ok {
		return nil, nil
	}
	if geo.Within(*a, *b, r) {
		return int64(1), nil
	}
	return int64(0), nil
}

func geoHaversineImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("geo_haversine: expected 4 arguments, got %d", len(args))
	}
	var v [4]float64
	for i, arg := range args {
		f, ok, err := asNumber(arg)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		v[i] = f
	}
	return geo.GreatCircleMeters(geo.LatLng{Lat: v[0], Lng: v[1]}, geo.LatLng{Lat: v[2], Lng: v[3]}), nil
}
