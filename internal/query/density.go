package query

import (
	"context"
	"math"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
	"gonum.org/v1/gonum/stat"
)

// DensityGridRequest is spec.md §4.5.2's input. GridMeters selects the
// grid cell side; the scan is always bounded to geo.BeijingBounds.
type DensityGridRequest struct {
	GridMeters float64 `json:"grid_meters"`
	TLo        float64 `json:"t_lo"`
	THi        float64 `json:"t_hi"`
}

// DensityCell is one non-empty grid cell's normalized density.
type DensityCell struct {
	SW      [2]float64 `json:"sw"`
	NE      [2]float64 `json:"ne"`
	Density int        `json:"density"` // normalized 0..100
	Count   int        `json:"count"`   // raw point count
}

// DensityGridResponse is a normalized density snapshot over one window.
type DensityGridResponse struct {
	Cells            []DensityCell `json:"cells"`
	MaxCount         int           `json:"max_count"`
	TotalPoints      int           `json:"total_points"`
	Truncated        bool          `json:"truncated"`
	MeanDensity      float64       `json:"mean_density"`
	QueryTimeSeconds float64       `json:"query_time_seconds,omitempty"`
}

func (r DensityGridRequest) validate() *Error {
	if r.GridMeters <= 0 {
		return newErr(BadRequest, "grid_meters must be positive")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	return nil
}

type gridAccumulator struct {
	gDeg    float64
	bounds  geo.LonLatBox
	cols    int
	rows    int
	counts  map[[2]int]int
	total   int
	capHit  bool
}

func newGridAccumulator(gridMeters float64) *gridAccumulator {
	gDeg := geo.MetersToDegrees(gridMeters)
	bounds := geo.BeijingBounds
	cols := int(math.Floor((bounds.MaxLon-bounds.MinLon)/gDeg)) + 1
	rows := int(math.Floor((bounds.MaxLat-bounds.MinLat)/gDeg)) + 1
	return &gridAccumulator{gDeg: gDeg, bounds: bounds, cols: cols, rows: rows, counts: make(map[[2]int]int)}
}

func (g *gridAccumulator) cellOf(lon, lat float64) (int, int) {
	col := int(math.Floor((lon - g.bounds.MinLon) / g.gDeg))
	row := int(math.Floor((lat - g.bounds.MinLat) / g.gDeg))
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

func (g *gridAccumulator) add(lon, lat float64) {
	col, row := g.cellOf(lon, lat)
	g.counts[[2]int{col, row}]++
	g.total++
}

func (g *gridAccumulator) cellBox(col, row int) ([2]float64, [2]float64) {
	sw := [2]float64{g.bounds.MinLon + float64(col)*g.gDeg, g.bounds.MinLat + float64(row)*g.gDeg}
	ne := [2]float64{sw[0] + g.gDeg, sw[1] + g.gDeg}
	return sw, ne
}

func (g *gridAccumulator) maxCount() int {
	max := 0
	for _, c := range g.counts {
		if c > max {
			max = c
		}
	}
	return max
}

func (g *gridAccumulator) cells() []DensityCell {
	max := g.maxCount()
	cells := make([]DensityCell, 0, len(g.counts))
	for key, count := range g.counts {
		sw, ne := g.cellBox(key[0], key[1])
		density := 0
		if max > 0 {
			density = int(math.Floor(float64(count) / float64(max) * 100))
		}
		cells = append(cells, DensityCell{SW: sw, NE: ne, Density: density, Count: count})
	}
	return cells
}

// DensityGrid answers a single-window normalized density snapshot
// (spec.md §4.5.2): points are quantized into grid_meters cells over the
// fixed Beijing bounding box, counted, then each cell's count is scaled
// 0..100 against the busiest cell. Scanning stops after
// e.DensityMaxPoints raw points, and the response reports Truncated in
// that case.
func (e *Engine) DensityGrid(ctx context.Context, req DensityGridRequest) (DensityGridResponse, *Error) {
	if err := req.validate(); err != nil {
		return DensityGridResponse{}, err
	}

	var resp DensityGridResponse
	if e.cacheGet("density_grid", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return DensityGridResponse{}, err
	}
	defer idx.Close()

	acc := newGridAccumulator(req.GridMeters)
	box := geo.BeijingBounds.WithTime(req.TLo, req.THi)

	serr := idx.IntersectStream(ctx, box, e.DensityBatchSize, func(batch []rtree.Entry) (bool, error) {
		for _, entry := range batch {
			acc.add(entry.BBox.MinLon, entry.BBox.MinLat)
		}
		if acc.total >= e.DensityMaxPoints {
			acc.capHit = true
			return true, nil
		}
		return false, nil
	})
	if serr != nil {
		return DensityGridResponse{}, wrapErr(IoError, serr, "failed to scan r-tree for density grid")
	}

	if acc.total == 0 {
		return DensityGridResponse{}, newErr(NotFound, "no points found in window for density grid")
	}

	cells := acc.cells()
	densities := make([]float64, len(cells))
	for i, c := range cells {
		densities[i] = float64(c.Density)
	}

	resp = DensityGridResponse{
		Cells:            cells,
		MaxCount:         acc.maxCount(),
		TotalPoints:      acc.total,
		Truncated:        acc.capHit,
		MeanDensity:      stat.Mean(densities, nil),
		QueryTimeSeconds: time.Since(start).Seconds(),
	}
	e.cachePut("density_grid", req, resp)
	return resp, nil
}
