package query

import (
	"context"
	"sort"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

// maxSampleTaxis bounds how many distinct taxi ids RegionCount echoes back
// in its response, so a dense region doesn't blow up the cached payload.
const maxSampleTaxis = 100

// RegionCountRequest is spec.md §4.5.1's input: a lon/lat region and a
// [TLo, THi] time window, both inclusive.
type RegionCountRequest struct {
	Box geo.LonLatBox `json:"box"`
	TLo float64       `json:"t_lo"`
	THi float64       `json:"t_hi"`
}

// RegionCountResponse is the distinct-taxi and total-point counts for one
// region/window, plus a bounded sample of the taxi ids observed.
type RegionCountResponse struct {
	DistinctTaxis    int      `json:"distinct_taxis"`
	TotalPoints      int      `json:"total_points"`
	SampleTaxiIDs    []uint64 `json:"sample_taxi_ids"`
	QueryTimeSeconds float64  `json:"query_time_seconds,omitempty"`
}

func (r RegionCountRequest) validate() *Error {
	if !r.Box.Valid() {
		return newErr(BadRequest, "region box must have min < max on both axes")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	return nil
}

// RegionCount answers "how many taxis, and how many raw points, fall
// inside this region during this window" (spec.md §4.5.1).
func (e *Engine) RegionCount(ctx context.Context, req RegionCountRequest) (RegionCountResponse, *Error) {
	if err := req.validate(); err != nil {
		return RegionCountResponse{}, err
	}

	var resp RegionCountResponse
	if e.cacheGet("region_count", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return RegionCountResponse{}, err
	}
	defer idx.Close()

	seen := make(map[uint64]struct{})
	total := 0
	box := req.Box.WithTime(req.TLo, req.THi)

	entries, ierr := idx.Intersect(ctx, box)
	if ierr != nil {
		return RegionCountResponse{}, wrapErr(IoError, ierr, "failed to scan r-tree for region count")
	}
	for _, entry := range entries {
		total++
		seen[entry.Payload] = struct{}{}
	}

	sample := make([]uint64, 0, len(seen))
	for id := range seen {
		sample = append(sample, id)
	}
	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	if len(sample) > maxSampleTaxis {
		sample = sample[:maxSampleTaxis]
	}

	resp = RegionCountResponse{
		DistinctTaxis:    len(seen),
		TotalPoints:      total,
		SampleTaxiIDs:    sample,
		QueryTimeSeconds: time.Since(start).Seconds(),
	}
	e.cachePut("region_count", req, resp)
	return resp, nil
}
