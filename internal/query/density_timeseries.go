package query

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
	"gonum.org/v1/gonum/stat"
)

// DensityTimeSeriesRequest buckets the window [TLo, THi] into fixed
// IntervalSeconds slices anchored to absolute epoch time — bucket index
// floor(t/IntervalSeconds), not offset from TLo — and reports a density
// snapshot for each (spec.md §4.5.3).
type DensityTimeSeriesRequest struct {
	GridMeters      float64 `json:"grid_meters"`
	TLo             float64 `json:"t_lo"`
	THi             float64 `json:"t_hi"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// DensityBucket is one time slice's density snapshot.
type DensityBucket struct {
	Start       float64       `json:"start"`
	End         float64       `json:"end"`
	MaxCount    int           `json:"max_count"`
	TotalPoints int           `json:"total_points"`
	ActiveCells int           `json:"active_cells"`
	MeanDensity float64       `json:"mean_density"`
	Cells       []DensityCell `json:"cells"`
}

// DensityTimeSeriesResponse is the ordered sequence of per-bucket
// snapshots plus the overall scan outcome.
type DensityTimeSeriesResponse struct {
	Buckets          []DensityBucket `json:"buckets"`
	TotalPoints      int             `json:"total_points"`
	Truncated        bool            `json:"truncated"`
	QueryTimeSeconds float64         `json:"query_time_seconds,omitempty"`
}

func (r DensityTimeSeriesRequest) validate() *Error {
	if r.GridMeters <= 0 {
		return newErr(BadRequest, "grid_meters must be positive")
	}
	if r.IntervalSeconds <= 0 {
		return newErr(BadRequest, "interval_seconds must be positive")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	return nil
}

// DensityTimeSeries answers a sequence of density snapshots over fixed
// time buckets spanning the window (spec.md §4.5.3). Bucket boundaries are
// absolute (floor(t/IntervalSeconds)*IntervalSeconds), matching
// F4_density_analysis.py, so two overlapping windows agree on where a
// bucket starts; the first and last buckets are clamped to [TLo, THi] for
// display and may be shorter than IntervalSeconds as a result.
func (e *Engine) DensityTimeSeries(ctx context.Context, req DensityTimeSeriesRequest) (DensityTimeSeriesResponse, *Error) {
	if err := req.validate(); err != nil {
		return DensityTimeSeriesResponse{}, err
	}

	var resp DensityTimeSeriesResponse
	if e.cacheGet("density_timeseries", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return DensityTimeSeriesResponse{}, err
	}
	defer idx.Close()

	accs := make(map[int64]*gridAccumulator)
	box := geo.BeijingBounds.WithTime(req.TLo, req.THi)
	total := 0
	truncated := false

	serr := idx.IntersectStream(ctx, box, e.DensityBatchSize, func(batch []rtree.Entry) (bool, error) {
		for _, entry := range batch {
			t := entry.BBox.MinT
			bucketIdx := int64(math.Floor(t / req.IntervalSeconds))
			acc, ok := accs[bucketIdx]
			if !ok {
				acc = newGridAccumulator(req.GridMeters)
				accs[bucketIdx] = acc
			}
			acc.add(entry.BBox.MinLon, entry.BBox.MinLat)
			total++
		}
		if total >= e.DensityMaxPoints {
			truncated = true
			return true, nil
		}
		return false, nil
	})
	if serr != nil {
		return DensityTimeSeriesResponse{}, wrapErr(IoError, serr, "failed to scan r-tree for density time series")
	}

	if total == 0 {
		return DensityTimeSeriesResponse{}, newErr(NotFound, "no points found in window for density time series")
	}

	bucketIdxs := make([]int64, 0, len(accs))
	for idx := range accs {
		bucketIdxs = append(bucketIdxs, idx)
	}
	sort.Slice(bucketIdxs, func(i, j int) bool { return bucketIdxs[i] < bucketIdxs[j] })

	buckets := make([]DensityBucket, 0, len(bucketIdxs))
	for _, bi := range bucketIdxs {
		acc := accs[bi]
		bucketStart := float64(bi) * req.IntervalSeconds
		bucketEnd := bucketStart + req.IntervalSeconds
		displayStart := bucketStart
		if displayStart < req.TLo {
			displayStart = req.TLo
		}
		displayEnd := bucketEnd
		if displayEnd > req.THi {
			displayEnd = req.THi
		}

		cells := acc.cells()
		densities := make([]float64, len(cells))
		for i, c := range cells {
			densities[i] = float64(c.Density)
		}

		buckets = append(buckets, DensityBucket{
			Start:       displayStart,
			End:         displayEnd,
			MaxCount:    acc.maxCount(),
			TotalPoints: acc.total,
			ActiveCells: len(cells),
			MeanDensity: stat.Mean(densities, nil),
			Cells:       cells,
		})
	}

	resp = DensityTimeSeriesResponse{Buckets: buckets, TotalPoints: total, Truncated: truncated, QueryTimeSeconds: time.Since(start).Seconds()}
	e.cachePut("density_timeseries", req, resp)
	return resp, nil
}
