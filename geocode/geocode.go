// Package geocode fills missing establishment locations through a
// rate-limited geocoder and records them in an address book.
package geocode

import (
	"context"
	"fmt"
	"net/http"

	"github.com/digitaltembo/Crime-And-Dining/geo"
	"github.com/digitaltembo/Crime-And-Dining/logging"
	"github.com/digitaltembo/Crime-And-Dining/record"
	kgeo "github.com/kellydunn/golang-geo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the Google geocoding endpoint.
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// DefaultRPS is the request rate allowed by the Google geocoding API.
const DefaultRPS = 5

// NewGoogle returns a Google geocoder. The API key and endpoint are process
// wide settings of the underlying client, so the last call wins.
func NewGoogle(apiKey, endpoint string, client *http.Client) *kgeo.GoogleGeocoder {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	kgeo.SetGoogleAPIKey(apiKey)
	kgeo.SetGoogleGeocodeURL(endpoint)
	return &kgeo.GoogleGeocoder{HttpClient: client}
}

// NewLimiter paces requests at rps per second. rps <= 0 disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Stats counts the outcome of a Fill.
type Stats struct {
	Requested int
	Resolved  int
	Failed    int
}

// Filler resolves addresses of unlocated establishments.
type Filler struct {
	Geocoder kgeo.Geocoder
	Limiter  *rate.Limiter
	Logger   *zap.Logger
}

// Fill geocodes the address of every unlocated establishment that book does
// not know yet and stores the result in book, which is created when nil.
// Each address is requested once. Failed lookups are logged and leave the
// book unchanged. Fill stops when ctx is done and returns the book filled
// so far.
func (f *Filler) Fill(ctx context.Context, establishments []*record.Establishment, book record.AddressBook) (record.AddressBook, Stats, error) {
	if f.Geocoder == nil {
		return book, Stats{}, fmt.Errorf("geocode: geocoder is nil")
	}
	if book == nil {
		book = record.AddressBook{}
	}
	limiter := f.Limiter
	if limiter == nil {
		limiter = NewLimiter(DefaultRPS)
	}
	logger := logging.OrNop(f.Logger).Named("geocode")

	var stats Stats
	seen := map[string]bool{}
	for _, e := range establishments {
		if e.Located || e.Address == "" || seen[e.Address] {
			continue
		}
		seen[e.Address] = true
		if _, ok := book[e.Address]; ok {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return book, stats, err
		}
		stats.Requested++
		p, err := f.Geocoder.Geocode(e.Address)
		if err != nil || p == nil {
			stats.Failed++
			logger.Warn("geocode failed", zap.String("address", e.Address), zap.Error(err))
			continue
		}
		ll := geo.LatLng{Lat: p.Lat(), Lng: p.Lng()}
		if !ll.IsSet() {
			stats.Failed++
			logger.Warn("geocode returned no position", zap.String("address", e.Address))
			continue
		}
		book[e.Address] = ll
		stats.Resolved++
		logger.Debug("geocoded", zap.String("address", e.Address), zap.Stringer("location", ll))
	}
	logger.Info("geocoding finished",
		zap.Int("requested", stats.Requested),
		zap.Int("resolved", stats.Resolved),
		zap.Int("failed", stats.Failed))
	return book, stats, nil
}
