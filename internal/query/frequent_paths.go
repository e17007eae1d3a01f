package query

import (
	"os"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathstore"
)

// FrequentPathsRequest is spec.md §4.5.7's input. If AB is non-nil the
// query restricts results to paths whose first point falls in BoxA and
// last point falls in BoxB; otherwise it is the unrestricted global top-k.
type FrequentPathsRequest struct {
	K         int            `json:"k"`
	LengthMin float64        `json:"length_min_meters"`
	AB        *FrequentPathsAB `json:"ab,omitempty"`
}

// FrequentPathsAB restricts a frequent-paths query to paths that start in
// BoxA and end in BoxB.
type FrequentPathsAB struct {
	BoxA geo.LonLatBox `json:"box_a"`
	BoxB geo.LonLatBox `json:"box_b"`
}

// FrequentPathsResult is one ranked path.
type FrequentPathsResult struct {
	Frequency int         `json:"frequency"`
	LengthM   float64     `json:"length_meters"`
	Points    [][2]float64 `json:"points"`
}

// FrequentPathsResponse is the ranked top-k list.
type FrequentPathsResponse struct {
	Results          []FrequentPathsResult `json:"results"`
	QueryTimeSeconds float64               `json:"query_time_seconds,omitempty"`
}

func (r FrequentPathsRequest) validate() *Error {
	if r.K <= 0 {
		return newErr(BadRequest, "k must be positive")
	}
	if r.LengthMin < 0 {
		return newErr(BadRequest, "length_min_meters must be non-negative")
	}
	if r.AB != nil && (!r.AB.BoxA.Valid() || !r.AB.BoxB.Valid()) {
		return newErr(BadRequest, "ab.box_a and ab.box_b must have min < max on both axes")
	}
	return nil
}

// FrequentPaths answers the top-k most frequent sub-paths meeting the
// minimum length, globally or restricted to an A→B start/end containment
// check (spec.md §4.5.7). Returns NotFound when the store yields zero
// rows under the length filter. A caller that omits LengthMin gets
// e.PathLengthMin (BuildConfig.GetPathLengthMinM, 100m by default,
// matching F8_frequent_paths_ab.py's min_distance=100) applied before the
// cache key is computed, so an omitted and an explicit-100 request share
// one cache entry.
func (e *Engine) FrequentPaths(req FrequentPathsRequest) (FrequentPathsResponse, *Error) {
	if req.LengthMin == 0 {
		req.LengthMin = e.PathLengthMin
	}
	if err := req.validate(); err != nil {
		return FrequentPathsResponse{}, err
	}

	var resp FrequentPathsResponse
	if e.cacheGet("frequent_paths", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	if _, err := os.Stat(e.PathStorePath); err != nil {
		if os.IsNotExist(err) {
			return FrequentPathsResponse{}, newErr(StoreMissing, "path store %q does not exist; run mine-paths first", e.PathStorePath)
		}
		return FrequentPathsResponse{}, wrapErr(IoError, err, "failed to stat path store %q", e.PathStorePath)
	}

	store, serr := pathstore.OpenStore(e.PathStorePath)
	if serr != nil {
		return FrequentPathsResponse{}, wrapErr(IoError, serr, "failed to open path store %q", e.PathStorePath)
	}
	defer store.Close()

	var rows []pathstore.PathRecord
	var rerr error
	if req.AB == nil {
		rows, rerr = store.FrequentPaths(req.LengthMin, req.K)
	} else {
		rows, rerr = store.FrequentPathsFiltered(req.LengthMin, req.K, func(points [][2]float64) bool {
			if len(points) == 0 {
				return false
			}
			first := points[0]
			last := points[len(points)-1]
			return req.AB.BoxA.ContainsPoint(first[0], first[1]) && req.AB.BoxB.ContainsPoint(last[0], last[1])
		})
	}
	if rerr != nil {
		return FrequentPathsResponse{}, wrapErr(IoError, rerr, "failed to query frequent paths")
	}

	if len(rows) == 0 {
		return FrequentPathsResponse{}, newErr(NotFound, "no paths meet the requested length/region filters")
	}

	results := make([]FrequentPathsResult, 0, len(rows))
	for _, row := range rows {
		points, perr := geo.ParseLonLatSeq(row.Points)
		if perr != nil {
			return FrequentPathsResponse{}, wrapErr(Internal, perr, "failed to parse stored path points")
		}
		results = append(results, FrequentPathsResult{Frequency: row.Frequency, LengthM: row.LengthM, Points: points})
	}

	resp = FrequentPathsResponse{Results: results, QueryTimeSeconds: time.Since(start).Seconds()}
	e.cachePut("frequent_paths", req, resp)
	return resp, nil
}
