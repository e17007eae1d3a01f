package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatLonLatSeq serializes a sequence of (lon, lat) pairs as
// "lon1,lat1;lon2,lat2;..." with 6-decimal precision — the canonical
// on-disk representation for both mined sub-path keys and persisted
// PathRecord.Points (spec.md §4.4/§6).
func FormatLonLatSeq(points [][2]float64) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.6f,%.6f", p[0], p[1])
	}
	return strings.Join(parts, ";")
}

// ParseLonLatSeq parses the "lon,lat;lon,lat;..." format back into pairs.
func ParseLonLatSeq(s string) ([][2]float64, error) {
	if s == "" {
		return nil, nil
	}
	groups := strings.Split(s, ";")
	out := make([][2]float64, len(groups))
	for i, g := range groups {
		parts := strings.Split(g, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed point group %q in sequence %q", g, s)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude in %q: %w", g, err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude in %q: %w", g, err)
		}
		out[i] = [2]float64{lon, lat}
	}
	return out, nil
}

// PathLengthMeters sums the haversine distance between consecutive points
// in a sequence — the geodesic length contract for PathRecord.LengthM.
func PathLengthMeters(points [][2]float64) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1][0], points[i-1][1], points[i][0], points[i][1])
	}
	return total
}
