package query

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/trajectory"
)

// ShortestTravelTimeRequest shares its prelude with FlowRequest (two
// regions, one window) but applies no gate: every A→B transition across
// every common taxi is a candidate (spec.md §4.5.6).
type ShortestTravelTimeRequest struct {
	BoxA geo.LonLatBox `json:"box_a"`
	BoxB geo.LonLatBox `json:"box_b"`
	TLo  float64       `json:"t_lo"`
	THi  float64       `json:"t_hi"`
}

// ShortestTravelTimeResponse identifies the fastest observed A→B trip.
type ShortestTravelTimeResponse struct {
	TaxiID           uint64      `json:"taxi_id"`
	DepartT          float64     `json:"depart_t"`
	ArriveT          float64     `json:"arrive_t"`
	DurationSecs     float64     `json:"duration_seconds"`
	Track            []geo.Point `json:"track"`
	QueryTimeSeconds float64     `json:"query_time_seconds,omitempty"`
}

func (r ShortestTravelTimeRequest) validate() *Error {
	if !r.BoxA.Valid() || !r.BoxB.Valid() {
		return newErr(BadRequest, "box_a and box_b must have min < max on both axes")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	return nil
}

// ShortestTravelTime finds the fastest observed A→B transition across all
// taxis seen in both regions during the window, then re-reads that taxi's
// raw trajectory file to recover the realized track (spec.md §4.5.6).
// Returns NotFound if no taxi appears in both regions, or none of them
// ever transitions A→B.
func (e *Engine) ShortestTravelTime(ctx context.Context, req ShortestTravelTimeRequest) (ShortestTravelTimeResponse, *Error) {
	if err := req.validate(); err != nil {
		return ShortestTravelTimeResponse{}, err
	}

	var resp ShortestTravelTimeResponse
	if e.cacheGet("shortest_travel_time", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return ShortestTravelTimeResponse{}, err
	}
	defer idx.Close()

	eventsA, ierr := intersectLabeled(ctx, idx, req.BoxA.WithTime(req.TLo, req.THi), "A")
	if ierr != nil {
		return ShortestTravelTimeResponse{}, wrapErr(IoError, ierr, "failed to scan region A for shortest travel time")
	}
	eventsB, ierr := intersectLabeled(ctx, idx, req.BoxB.WithTime(req.TLo, req.THi), "B")
	if ierr != nil {
		return ShortestTravelTimeResponse{}, wrapErr(IoError, ierr, "failed to scan region B for shortest travel time")
	}

	taxis := commonTaxis(eventsA, eventsB)
	if len(taxis) == 0 {
		return ShortestTravelTimeResponse{}, newErr(NotFound, "no taxi observed in both regions during the window")
	}

	bestDur := math.Inf(1)
	var bestTaxi uint64
	var bestFrom, bestTo float64
	found := false

	for _, taxiID := range taxis {
		merged := append(append([]taxiEvent{}, eventsA[taxiID]...), eventsB[taxiID]...)
		sort.Slice(merged, func(i, j int) bool {
			if merged[i].T != merged[j].T {
				return merged[i].T < merged[j].T
			}
			return merged[i].Label < merged[j].Label
		})

		for _, tr := range detectTransitions(taxiID, merged) {
			if tr.From != "A" || tr.To != "B" {
				continue
			}
			dur := tr.TTo - tr.TFrom
			if dur < bestDur {
				bestDur = dur
				bestTaxi = taxiID
				bestFrom = tr.TFrom
				bestTo = tr.TTo
				found = true
			}
		}
	}

	if !found {
		return ShortestTravelTimeResponse{}, newErr(NotFound, "no A-to-B transition observed for any common taxi")
	}

	track, terr := trajectory.ReadTaxiTrack(e.TrajectoryDir, bestTaxi, bestFrom, bestTo, e.Loc)
	if terr != nil {
		return ShortestTravelTimeResponse{}, wrapErr(IoError, terr, "failed to re-read track for taxi %d", bestTaxi)
	}

	resp = ShortestTravelTimeResponse{
		TaxiID:           bestTaxi,
		DepartT:          bestFrom,
		ArriveT:          bestTo,
		DurationSecs:     bestDur,
		Track:            track,
		QueryTimeSeconds: time.Since(start).Seconds(),
	}
	e.cachePut("shortest_travel_time", req, resp)
	return resp, nil
}
