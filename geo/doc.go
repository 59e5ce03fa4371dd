// Package geo holds the coordinate types shared by the index, the record
// readers and the SQLite layer:
//   - LatLng for geographic positions as they appear in source data
//   - Projection to planar meters around an origin
//   - distance helpers and a BLOB encoding for planar points
package geo
