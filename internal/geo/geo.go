// Package geo provides the spatial primitives shared by the R-tree index,
// the path-mining pipeline, and the query engine: haversine distance, grid
// quantization, and axis-aligned box arithmetic over (lon, lat, t).
package geo

import "math"

// EarthRadiusMeters is the mean radius used for haversine distance.
const EarthRadiusMeters = 6371000.0

// DefaultGridSize is the grid cell side, in degrees, used for sub-path
// quantization (~200m at Beijing's latitude).
const DefaultGridSize = 0.002

// Point is a single trajectory sample.
type Point struct {
	TaxiID uint64
	T      float64 // epoch seconds
	Lon    float64
	Lat    float64
}

// Haversine returns the great-circle distance in meters between two
// lon/lat points. It is non-negative, symmetric, and zero iff the points
// are equal.
func Haversine(lon1, lat1, lon2, lat2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return EarthRadiusMeters * c
}

// GridOf quantizes a lon/lat pair into a grid cell (gx, gy) of side G.
func GridOf(lon, lat, g float64) (gx, gy int64) {
	return int64(math.Floor(lon / g)), int64(math.Floor(lat / g))
}

// CellCenter returns the canonical representative point of grid cell
// (gx, gy) at side G, rounded to 6 decimal places so identical cells hash
// identically across runs.
func CellCenter(gx, gy int64, g float64) (lon, lat float64) {
	return round6((float64(gx) + 0.5) * g), round6((float64(gy) + 0.5) * g)
}

func round6(v float64) float64 {
	const scale = 1e6
	return math.Round(v*scale) / scale
}

// BBox is an axis-aligned 3D box over (lon, lat, t). For a point entry,
// Min == Max on every axis.
type BBox struct {
	MinLon, MinLat, MinT float64
	MaxLon, MaxLat, MaxT float64
}

// PointBBox returns the degenerate (zero-volume) box for a single point.
func PointBBox(lon, lat, t float64) BBox {
	return BBox{MinLon: lon, MinLat: lat, MinT: t, MaxLon: lon, MaxLat: lat, MaxT: t}
}

// Intersects reports whether two boxes overlap on every axis (boundaries
// inclusive).
func (b BBox) Intersects(o BBox) bool {
	return b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon &&
		b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinT <= o.MaxT && o.MinT <= b.MaxT
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLon: math.Min(b.MinLon, o.MinLon),
		MinLat: math.Min(b.MinLat, o.MinLat),
		MinT:   math.Min(b.MinT, o.MinT),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MaxT:   math.Max(b.MaxT, o.MaxT),
	}
}

// ContainsLonLat reports whether (lon, lat) falls within the box's lon/lat
// extent, ignoring the time axis. Used for axis-aligned start/end
// containment checks in frequent-path queries.
func (b BBox) ContainsLonLat(lon, lat float64) bool {
	return b.MinLon <= lon && lon <= b.MaxLon && b.MinLat <= lat && lat <= b.MaxLat
}

// LonLatBox is a 2D axis-aligned region, used for region/flow/density
// operator inputs before a time window is attached.
type LonLatBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// WithTime attaches a [tLo, tHi] window to produce a full 3D query box.
func (r LonLatBox) WithTime(tLo, tHi float64) BBox {
	return BBox{MinLon: r.MinLon, MinLat: r.MinLat, MinT: tLo, MaxLon: r.MaxLon, MaxLat: r.MaxLat, MaxT: tHi}
}

// ContainsPoint reports whether (lon, lat) is inside the region (inclusive).
func (r LonLatBox) ContainsPoint(lon, lat float64) bool {
	return r.MinLon <= lon && lon <= r.MaxLon && r.MinLat <= lat && lat <= r.MaxLat
}

// Valid reports whether the region is non-degenerate (min strictly less
// than max on both axes), per spec.md §4.5.1's validation requirement.
func (r LonLatBox) Valid() bool {
	return r.MinLon < r.MaxLon && r.MinLat < r.MaxLat
}

// OuterBBox derives the "outer" region for the inner/outer flow operator
// (§4.5.5): same center as inner, each axis scaled by scale (1.5 per spec),
// clipped to clip.
func OuterBBox(inner LonLatBox, scale float64, clip LonLatBox) LonLatBox {
	cLon := (inner.MinLon + inner.MaxLon) / 2
	cLat := (inner.MinLat + inner.MaxLat) / 2
	halfLon := (inner.MaxLon - inner.MinLon) / 2 * scale
	halfLat := (inner.MaxLat - inner.MinLat) / 2 * scale

	out := LonLatBox{
		MinLon: cLon - halfLon,
		MaxLon: cLon + halfLon,
		MinLat: cLat - halfLat,
		MaxLat: cLat + halfLat,
	}

	if out.MinLon < clip.MinLon {
		out.MinLon = clip.MinLon
	}
	if out.MaxLon > clip.MaxLon {
		out.MaxLon = clip.MaxLon
	}
	if out.MinLat < clip.MinLat {
		out.MinLat = clip.MinLat
	}
	if out.MaxLat > clip.MaxLat {
		out.MaxLat = clip.MaxLat
	}
	return out
}

// MetersToDegrees is the spec's documented rough meters→degrees
// approximation used for density grid sizing (§4.5.2).
func MetersToDegrees(meters float64) float64 {
	return meters / 111000.0
}

// BeijingBounds is the fixed bounding box used by the density operators.
var BeijingBounds = LonLatBox{MinLon: 115.7, MaxLon: 117.4, MinLat: 39.4, MaxLat: 41.6}

// BeijingClipBounds is the fixed bounding box used to clip inner/outer
// flow regions (§6).
var BeijingClipBounds = LonLatBox{MinLon: 116.0, MaxLon: 116.8, MinLat: 39.6, MaxLat: 40.2}
