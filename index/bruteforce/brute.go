package bruteforce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Index is a simple linear-scan point index.
type Index struct {
	ids    []string
	points []r2.Point
}

// Build loads ids and points.
func (i *Index) Build(ids []string, points []r2.Point) error {
	if err := Validate(ids, points); err != nil {
		return err
	}
	if len(ids) == 0 {
		i.ids, i.points = nil, nil
		return nil
	}
	i.ids = append([]string(nil), ids...)
	i.points = append([]r2.Point(nil), points...)
	return nil
}

// Query returns ids within radius of center in build order.
func (i *Index) Query(center r2.Point, radius float64) ([]string, error) {
	if len(i.points) == 0 || !(radius >= 0) {
		return nil, nil
	}
	r2max := radius * radius
	var out []string
	for j, p := range i.points {
		dx := p.X - center.X
		dy := p.Y - center.Y
		if dx*dx+dy*dy <= r2max {
			out = append(out, i.ids[j])
		}
	}
	return out, nil
}

// Len returns the number of points.
func (i *Index) Len() int { return len(i.ids) }

// MarshalBinary stores the points with Encode.
func (i *Index) MarshalBinary() ([]byte, error) {
	return Encode(i.ids, i.points), nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	ids, points, err := Decode(data)
	if err != nil {
		return err
	}
	return i.Build(ids, points)
}

// Validate checks that ids and points pair up and every point is finite.
func Validate(ids []string, points []r2.Point) error {
	if len(ids) != len(points) {
		return fmt.Errorf("bruteforce: ids and points length mismatch: %d != %d", len(ids), len(points))
	}
	for j, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("bruteforce: invalid point for id %q", ids[j])
		}
	}
	return nil
}

// Encode writes n(uint32), then for each item:
// idLen(uint32), id bytes, x(float64), y(float64).
func Encode(ids []string, points []r2.Point) []byte {
	size := 4
	for _, id := range ids {
		size += 4 + len(id) + 16
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(ids)))
	for idx, id := range ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(points[idx].X))
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(points[idx].Y))
	}
	return out
}

// Decode reads the format written by Encode.
func Decode(data []byte) ([]string, []r2.Point, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("bruteforce: invalid data")
	}
	off := 0
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }
	getF64 := func() float64 {
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
		off += 8
		return v
	}
	n := int(getU32())
	if n > (len(data)-4)/20 {
		return nil, nil, errors.New("bruteforce: truncated")
	}
	ids := make([]string, n)
	points := make([]r2.Point, n)
	for idx := 0; idx < n; idx++ {
		if off+4 > len(data) {
			return nil, nil, errors.New("bruteforce: truncated")
		}
		idlen := int(getU32())
		if idlen < 0 || off+idlen > len(data) {
			return nil, nil, errors.New("bruteforce: truncated id")
		}
		ids[idx] = string(data[off : off+idlen])
		off += idlen
		if off+16 > len(data) {
			return nil, nil, errors.New("bruteforce: truncated point")
		}
		points[idx] = r2.Point{X: getF64(), Y: getF64()}
	}
	return ids, points, nil
}
