package query

import (
	"context"
	"sort"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

// InnerOuterFlowRequest is spec.md §4.5.5's input: one inner region; the
// outer ring is derived (geo.OuterBBox, scale 1.5, clipped to
// geo.BeijingClipBounds) rather than supplied directly. Unlike Flow, there
// is no gate delta — every detected transition counts.
type InnerOuterFlowRequest struct {
	Inner geo.LonLatBox `json:"inner"`
	TLo   float64       `json:"t_lo"`
	THi   float64       `json:"t_hi"`
}

// InnerOuterFlowResponse mirrors FlowResponse with inner/outer labels.
type InnerOuterFlowResponse struct {
	Slots            []FlowSlot    `json:"slots"`
	TotalInToOut     int           `json:"total_inner_to_outer"`
	TotalOutToIn     int           `json:"total_outer_to_inner"`
	CommonTaxi       int           `json:"common_taxi_count"`
	DerivedOuterBox  geo.LonLatBox `json:"derived_outer_box"`
	QueryTimeSeconds float64       `json:"query_time_seconds,omitempty"`
}

func (r InnerOuterFlowRequest) validate() *Error {
	if !r.Inner.Valid() {
		return newErr(BadRequest, "inner region must have min < max on both axes")
	}
	if r.TLo >= r.THi {
		return newErr(BadRequest, "t_lo must be < t_hi")
	}
	return nil
}

// InnerOuterFlow answers inner↔outer transition counts per hourly bucket
// (spec.md §4.5.5). A single query over the derived outer box is
// classified per point: inside the inner box is labeled "inner", the
// remaining outer-ring points are labeled "outer" — so a point is never
// double-counted between the two labels for the same (taxi, timestamp).
func (e *Engine) InnerOuterFlow(ctx context.Context, req InnerOuterFlowRequest) (InnerOuterFlowResponse, *Error) {
	if err := req.validate(); err != nil {
		return InnerOuterFlowResponse{}, err
	}

	var resp InnerOuterFlowResponse
	if e.cacheGet("flow_inner_outer", req, &resp) {
		resp.QueryTimeSeconds = 0
		return resp, nil
	}
	start := time.Now()

	idx, err := e.openIndex()
	if err != nil {
		return InnerOuterFlowResponse{}, err
	}
	defer idx.Close()

	outer := geo.OuterBBox(req.Inner, 1.5, geo.BeijingClipBounds)
	entries, ierr := idx.Intersect(ctx, outer.WithTime(req.TLo, req.THi))
	if ierr != nil {
		return InnerOuterFlowResponse{}, wrapErr(IoError, ierr, "failed to scan outer region for inner/outer flow")
	}

	perTaxi := make(map[uint64][]taxiEvent)
	for _, entry := range entries {
		label := "outer"
		if req.Inner.ContainsPoint(entry.BBox.MinLon, entry.BBox.MinLat) {
			label = "inner"
		}
		perTaxi[entry.Payload] = append(perTaxi[entry.Payload], taxiEvent{T: entry.BBox.MinT, Label: label})
	}
	mergeEvents(perTaxi)

	taxiIDs := make([]uint64, 0, len(perTaxi))
	common := 0
	for id, events := range perTaxi {
		taxiIDs = append(taxiIDs, id)
		labels := make(map[string]bool, 2)
		for _, ev := range events {
			labels[ev.Label] = true
		}
		if labels["inner"] && labels["outer"] {
			common++
		}
	}
	sort.Slice(taxiIDs, func(i, j int) bool { return taxiIDs[i] < taxiIDs[j] })

	buckets := newHourlyBuckets(req.TLo, req.THi)
	for _, taxiID := range taxiIDs {
		for _, tr := range detectTransitions(taxiID, perTaxi[taxiID]) {
			b := buckets.bucketFor(tr.TTo)
			if b == nil {
				continue
			}
			if tr.From == "inner" && tr.To == "outer" {
				b.aToB++
			} else if tr.From == "outer" && tr.To == "inner" {
				b.bToA++
			}
		}
	}

	slots, totalInToOut, totalOutToIn := buckets.slots(e.Loc)
	resp = InnerOuterFlowResponse{
		Slots:            slots,
		TotalInToOut:     totalInToOut,
		TotalOutToIn:     totalOutToIn,
		CommonTaxi:       common,
		DerivedOuterBox:  outer,
		QueryTimeSeconds: time.Since(start).Seconds(),
	}
	e.cachePut("flow_inner_outer", req, resp)
	return resp, nil
}
