package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/record"
	kgeo "github.com/kellydunn/golang-geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeGeocoder struct {
	known map[string]*kgeo.Point
	calls []string
}

func (f *fakeGeocoder) Geocode(address string) (*kgeo.Point, error) {
	f.calls = append(f.calls, address)
	if p, ok := f.known[address]; ok {
		return p, nil
	}
	return nil, errors.New("ZERO_RESULTS")
}

func (f *fakeGeocoder) ReverseGeocode(*kgeo.Point) (string, error) { return "", nil }

func TestFill(t *testing.T) {
	g := &fakeGeocoder{known: map[string]*kgeo.Point{
		"1 Main St Boston, MA, 02110": kgeo.NewPoint(42.35, -71.05),
		"0 Null Island":               kgeo.NewPoint(0, 0),
	}}
	establishments := []*record.Establishment{
		{Name: "a", Address: "1 Main St Boston, MA, 02110"},
		{Name: "b", Address: "1 Main St Boston, MA, 02110"},
		{Name: "c", Address: "2 Elm St Boston, MA, 02110"},
		{Name: "d", Address: "3 Known St Boston, MA, 02110"},
		{Name: "e", Address: "located", Located: true},
		{Name: "f", Address: "0 Null Island"},
		{Name: "g"},
	}
	book := record.AddressBook{"3 Known St Boston, MA, 02110": {Lat: 42.3, Lng: -71.1}}

	f := &Filler{Geocoder: g, Limiter: NewLimiter(0)}
	out, stats, err := f.Fill(context.Background(), establishments, book)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 Main St Boston, MA, 02110", "2 Elm St Boston, MA, 02110", "0 Null Island"}, g.calls)
	assert.Equal(t, Stats{Requested: 3, Resolved: 1, Failed: 2}, stats)
	assert.Equal(t, geo.LatLng{Lat: 42.35, Lng: -71.05}, out["1 Main St Boston, MA, 02110"])
	assert.Len(t, out, 2)
	_, ok := out["2 Elm St Boston, MA, 02110"]
	assert.False(t, ok)
}

func TestFillCancelled(t *testing.T) {
	g := &fakeGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Filler{Geocoder: g, Limiter: rate.NewLimiter(1, 1)}
	book, _, err := f.Fill(ctx, []*record.Establishment{{Address: "x"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, book)
	assert.Empty(t, g.calls)
}

func TestFillRequiresGeocoder(t *testing.T) {
	_, _, err := (&Filler{}).Fill(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestGoogle(t *testing.T) {
	var gotKey, gotAddress string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAddress = r.URL.Query().Get("address")
		if gotAddress == "nowhere" {
			fmt.Fprint(w, `{"results": [], "status": "ZERO_RESULTS"}`)
			return
		}
		fmt.Fprint(w, `{"results": [{"formatted_address": "1 Main St", "geometry": {"location": {"lat": 42.35, "lng": -71.05}}}], "status": "OK"}`)
	}))
	defer srv.Close()
	t.Cleanup(func() { NewGoogle("", DefaultEndpoint, nil) })

	g := NewGoogle("secret", srv.URL, srv.Client())
	f := &Filler{Geocoder: g, Limiter: NewLimiter(100)}
	book, stats, err := f.Fill(context.Background(), []*record.Establishment{
		{Address: "1 Main St Boston, MA, 02110"},
		{Address: "nowhere"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, Stats{Requested: 2, Resolved: 1, Failed: 1}, stats)
	assert.Equal(t, geo.LatLng{Lat: 42.35, Lng: -71.05}, book["1 Main St Boston, MA, 02110"])
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0).Limit())
	assert.Equal(t, rate.Limit(5), NewLimiter(5).Limit())
}
