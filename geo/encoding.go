package geo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// PointSize is the length of an encoded point.
const PointSize = 16

// EncodePoint encodes p as two little-endian IEEE 754 float64 values, X then Y.
func EncodePoint(p r2.Point) []byte {
	b := make([]byte, PointSize)
	binary.LittleEndian.PutUint64(b[0:], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(p.Y))
	return b
}

// DecodePoint decodes a BLOB produced by EncodePoint.
func DecodePoint(b []byte) (r2.Point, error) {
	if len(b) != PointSize {
		return r2.Point{}, fmt.Errorf("geo: invalid point blob length %d", len(b))
	}
	return r2.Point{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
	}, nil
}

// EncodeCircle encodes a center and radius as three float64 values.
func EncodeCircle(center r2.Point, radius float64) []byte {
	b := make([]byte, PointSize+8)
	copy(b, EncodePoint(center))
	binary.LittleEndian.PutUint64(b[PointSize:], math.Float64bits(radius))
	return b
}

// DecodeCircle decodes a BLOB produced by EncodeCircle.
func DecodeCircle(b []byte) (r2.Point, float64, error) {
	if len(b) != PointSize+8 {
		return r2.Point{}, 0, fmt.Errorf("geo: invalid circle blob length %d", len(b))
	}
	center, err := DecodePoint(b[:PointSize])
	if err != nil {
		return r2.Point{}, 0, err
	}
	return center, math.Float64frombits(binary.LittleEndian.Uint64(b[PointSize:])), nil
}
