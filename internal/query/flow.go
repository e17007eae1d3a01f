package query

import (
	"context"
	"sort"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/timeparse"
)

const hourSeconds = 3600.0

// FlowRequest is spec.md §4.5.4's input: two regions, a time window, and
// the gate delta (minutes) a transition must land within to be credited.
type FlowRequest struct {
	BoxA        geo.LonLatBox `json:"box_a"`
	BoxB        geo.LonLatBox `json:"box_b"`
	TLo         float64       `json:"t_lo"`
	THi         float64       `json:"t_hi"`
	DeltaMinute float64       `json:"delta_minutes"`
}

// FlowSlot is one hourly bucket's transition counts.
type FlowSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	AToB  int    `json:"a_to_b"`
	BToA  int    `json:"b_to_a"`
}

// FlowResponse is the per-hour transition breakdown plus totals.
type FlowResponse struct {
	Slots            []FlowSlot `json:"slots"`
	TotalAToB        int        `json:"total_a_to_b"`
	TotalBToA        int        `json:"total_b_to_a"`
	CommonTaxi       int        `json:"common_taxi_count"`
	QueryTimeSeconds float64    `json:"query_time_seconds,omitempty"`
}

func (r FlowRequest) validate() *Error {
	if !r.BoxA.Valid() || !r.BoxB.Valid() {
		return newErr(BadRequest, "box_a and box_b must have min < max on both axes")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	if r.DeltaMinute <= 0 {
		return newErr(BadRequest, "delta_minutes must be positive")
	}
	return nil
}

// Flow answers A↔B transition counts per hourly bucket, gated by
// DeltaMinute (spec.md §4.5.4): only a taxi's region change from A to B
// (or B to A) within the gate counts as a transition.
func (e *Engine) Flow(ctx context.Context, req FlowRequest) (FlowResponse, *Error) {
	if err := req.validate(); err != nil {
		return FlowResponse{}, err
	}

	var resp FlowResponse
	if e.cacheGet("flow_ab", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return FlowResponse{}, err
	}
	defer idx.Close()

	eventsA, ierr := intersectLabeled(ctx, idx, req.BoxA.WithTime(req.TLo, req.THi), "A")
	if ierr != nil {
		return FlowResponse{}, wrapErr(IoError, ierr, "failed to scan region A for flow")
	}
	eventsB, ierr := intersectLabeled(ctx, idx, req.BoxB.WithTime(req.TLo, req.THi), "B")
	if ierr != nil {
		return FlowResponse{}, wrapErr(IoError, ierr, "failed to scan region B for flow")
	}

	taxis := commonTaxis(eventsA, eventsB)
	gateSeconds := req.DeltaMinute * 60

	buckets := newHourlyBuckets(req.TLo, req.THi)
	for _, taxiID := range taxis {
		merged := append(append([]taxiEvent{}, eventsA[taxiID]...), eventsB[taxiID]...)
		sort.Slice(merged, func(i, j int) bool {
			if merged[i].T != merged[j].T {
				return merged[i].T < merged[j].T
			}
			return merged[i].Label < merged[j].Label
		})

		for _, tr := range detectTransitions(taxiID, merged) {
			if tr.TTo-tr.TFrom > gateSeconds {
				continue
			}
			b := buckets.bucketFor(tr.TTo)
			if b == nil {
				continue
			}
			if tr.From == "A" && tr.To == "B" {
				b.aToB++
			} else if tr.From == "B" && tr.To == "A" {
				b.bToA++
			}
		}
	}

	slots, totalA, totalB := buckets.slots(e.Loc)
	resp = FlowResponse{Slots: slots, TotalAToB: totalA, TotalBToA: totalB, CommonTaxi: len(taxis), QueryTimeSeconds: time.Since(start).Seconds()}
	e.cachePut("flow_ab", req, resp)
	return resp, nil
}

type hourlyBucket struct {
	start, end float64
	aToB       int
	bToA       int
}

type hourlyBuckets struct {
	tLo, tHi float64
	buckets  []*hourlyBucket
}

func newHourlyBuckets(tLo, tHi float64) *hourlyBuckets {
	n := int((tHi-tLo)/hourSeconds) + 1
	hb := &hourlyBuckets{tLo: tLo, tHi: tHi}
	for i := 0; i < n; i++ {
		start := tLo + float64(i)*hourSeconds
		end := start + hourSeconds
		if end > tHi {
			end = tHi
		}
		hb.buckets = append(hb.buckets, &hourlyBucket{start: start, end: end})
	}
	return hb
}

func (hb *hourlyBuckets) bucketFor(t float64) *hourlyBucket {
	if t < hb.tLo || t > hb.tHi {
		return nil
	}
	i := int((t - hb.tLo) / hourSeconds)
	if i < 0 {
		i = 0
	}
	if i >= len(hb.buckets) {
		i = len(hb.buckets) - 1
	}
	return hb.buckets[i]
}

func (hb *hourlyBuckets) slots(loc *time.Location) ([]FlowSlot, int, int) {
	slots := make([]FlowSlot, 0, len(hb.buckets))
	totalA, totalB := 0, 0
	for _, b := range hb.buckets {
		slots = append(slots, FlowSlot{
			Start: timeparse.FormatTimestamp(b.start, loc),
			End:   timeparse.FormatTimestamp(b.end, loc),
			AToB:  b.aToB,
			BToA:  b.bToA,
		})
		totalA += b.aToB
		totalB += b.bToA
	}
	return slots, totalA, totalB
}
