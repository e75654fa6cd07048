// Package polyline encodes and decodes route geometry in the encoded polyline
// format (precision 5) and measures great-circle distances along it.
//
// Format reference: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformed is returned when an encoded string ends in the middle of a value
// or holds a character outside the format's alphabet.
var ErrMalformed = errors.New("malformed polyline")

// EarthRadiusKm is the mean Earth radius used for distance calculations.
const EarthRadiusKm = 6371.0

const precision = 1e5

// Point is a WGS84 position in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Decode parses an encoded polyline. An empty string decodes to no points.
func Decode(encoded string) ([]Point, error) {
	var (
		points   []Point
		lat, lon int
		pos      int
	)
	for pos < len(encoded) {
		dLat, next, err := readValue(encoded, pos)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readValue(encoded, next)
		if err != nil {
			return nil, err
		}
		pos = next
		lat += dLat
		lon += dLon
		points = append(points, Point{Lat: float64(lat) / precision, Lon: float64(lon) / precision})
	}
	return points, nil
}

// readValue reads one zig-zag encoded delta starting at pos.
func readValue(encoded string, pos int) (int, int, error) {
	var result, shift int
	for {
		if pos >= len(encoded) {
			return 0, pos, fmt.Errorf("%w: truncated at offset %d", ErrMalformed, pos)
		}
		chunk := int(encoded[pos]) - 63
		if chunk < 0 || chunk > 0x3f {
			return 0, pos, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformed, encoded[pos], pos)
		}
		pos++
		result |= (chunk & 0x1f) << shift
		shift += 5
		if chunk < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), pos, nil
	}
	return result >> 1, pos, nil
}

// Encode is the inverse of Decode.
func Encode(points []Point) string {
	buf := make([]byte, 0, len(points)*6)
	var prevLat, prevLon int
	for _, p := range points {
		lat := int(math.Round(p.Lat * precision))
		lon := int(math.Round(p.Lon * precision))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func appendValue(buf []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte(0x20|(u&0x1f))+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b Point) float64 {
	const rad = math.Pi / 180
	phi1, phi2 := a.Lat*rad, b.Lat*rad
	dPhi := (b.Lat - a.Lat) * rad
	dLambda := (b.Lon - a.Lon) * rad

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// LengthKm sums the distances between consecutive points.
func LengthKm(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// Thin keeps at most limit points, always including the first and last, picked
// at evenly spaced indexes. It returns points unchanged when already short enough.
func Thin(points []Point, limit int) []Point {
	if limit < 2 || len(points) <= limit {
		return points
	}
	out := make([]Point, 0, limit)
	step := float64(len(points)-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		out = append(out, points[int(math.Round(float64(i)*step))])
	}
	return out
}
