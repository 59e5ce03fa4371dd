package geo

import (
	"github.com/golang/geo/r2"
)

// DefaultOrigin is the south-west corner of the Boston open data extent.
var DefaultOrigin = LatLng{Lat: 42.237125, Lng: -71.17261}

// Projection maps geographic positions to planar meters east (X) and north
// (Y) of Origin using a scale fixed at the origin. It is accurate enough for
// city-sized extents.
type Projection struct {
	Origin          LatLng
	MetersPerDegLat float64
	MetersPerDegLng float64
}

// NewProjection derives the per-degree scales at origin from great-circle
// distances.
func NewProjection(origin LatLng) *Projection {
	north := LatLng{Lat: origin.Lat + 0.5, Lng: origin.Lng}
	south := LatLng{Lat: origin.Lat - 0.5, Lng: origin.Lng}
	east := LatLng{Lat: origin.Lat, Lng: origin.Lng + 0.5}
	west := LatLng{Lat: origin.Lat, Lng: origin.Lng - 0.5}
	return &Projection{
		Origin:          origin,
		MetersPerDegLat: GreatCircleMeters(south, north),
		MetersPerDegLng: GreatCircleMeters(west, east),
	}
}

// Project converts l to planar meters.
func (p *Projection) Project(l LatLng) r2.Point {
	return r2.Point{
		X: (l.Lng - p.Origin.Lng) * p.MetersPerDegLng,
		Y: (l.Lat - p.Origin.Lat) * p.MetersPerDegLat,
	}
}

// Unproject converts planar meters back to a geographic position.
func (p *Projection) Unproject(pt r2.Point) LatLng {
	return LatLng{
		Lat: p.Origin.Lat + pt.Y/p.MetersPerDegLat,
		Lng: p.Origin.Lng + pt.X/p.MetersPerDegLng,
	}
}
