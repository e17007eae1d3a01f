package query

import (
	"context"
	"sort"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
)

// taxiEvent is one labeled region-entry sample in a taxi's merged event
// stream (spec.md §4.5.4).
type taxiEvent struct {
	T     float64
	Label string // "A"/"B", or "inner"/"outer"
}

// transition is one detected label change in a taxi's event stream.
type transition struct {
	TaxiID uint64
	From   string
	To     string
	TFrom  float64
	TTo    float64
}

// intersectLabeled runs a region/time intersection and returns one event
// per matching entry, labeled. Entries are not deduplicated across calls;
// callers append the two labels' events per taxi and sort them by
// (t, label) themselves.
func intersectLabeled(ctx context.Context, idx *rtree.Index, box geo.BBox, label string) (map[uint64][]taxiEvent, error) {
	entries, err := idx.Intersect(ctx, box)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64][]taxiEvent)
	for _, e := range entries {
		out[e.Payload] = append(out[e.Payload], taxiEvent{T: e.BBox.MinT, Label: label})
	}
	return out, nil
}

// mergeEvents sorts each taxi's combined event list by (t ASC, label ASC),
// the tie-break rule spec.md §5 fixes for simultaneous same-timestamp
// events across labels.
func mergeEvents(perTaxi map[uint64][]taxiEvent) {
	for _, events := range perTaxi {
		sort.Slice(events, func(i, j int) bool {
			if events[i].T != events[j].T {
				return events[i].T < events[j].T
			}
			return events[i].Label < events[j].Label
		})
	}
}

// commonTaxis returns the set of taxi ids present in both label maps.
func commonTaxis(a, b map[uint64][]taxiEvent) []uint64 {
	var out []uint64
	for id := range a {
		if _, ok := b[id]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// detectTransitions scans one taxi's time-ordered event stream and
// returns every label change, tracking (last_area, last_t) exactly as
// spec.md §4.5.4 step 3 describes; it applies no time gate — callers
// (hourly flow aggregation, shortest-travel-time) apply their own policy
// on top of the raw transitions.
func detectTransitions(taxiID uint64, events []taxiEvent) []transition {
	if len(events) == 0 {
		return nil
	}
	var out []transition
	lastArea := events[0].Label
	lastT := events[0].T

	for _, e := range events[1:] {
		if e.Label != lastArea {
			out = append(out, transition{TaxiID: taxiID, From: lastArea, To: e.Label, TFrom: lastT, TTo: e.T})
		}
		lastArea = e.Label
		lastT = e.T
	}
	return out
}
