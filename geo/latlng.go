package geo

import (
	"fmt"
	"strconv"
	"strings"

	kgeo "github.com/kellydunn/golang-geo"
)

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat float64
	Lng float64
}

// IsSet reports whether the position carries a value. Source data uses
// (0, 0) for unknown locations.
func (l LatLng) IsSet() bool { return l.Lat != 0 }

func (l LatLng) String() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(l.Lng, 'f', -1, 64)
}

// ParseLatLng parses "(lat, lng)" with optional surrounding quotes and
// parentheses. An empty string yields the zero value.
func ParseLatLng(s string) (LatLng, error) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if strings.TrimSpace(s) == "" {
		return LatLng{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLng{}, fmt.Errorf("geo: invalid location %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("geo: invalid latitude %q: %w", parts[0], err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("geo: invalid longitude %q: %w", parts[1], err)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}

// GreatCircleMeters returns the haversine distance between a and b in meters.
func GreatCircleMeters(a, b LatLng) float64 {
	return kgeo.NewPoint(a.Lat, a.Lng).GreatCircleDistance(kgeo.NewPoint(b.Lat, b.Lng)) * 1000
}
