// Package pathmining implements the sliding-window sub-path extraction
// pass: for each taxi's trajectory, quantize to grid cells, slide windows
// W ∈ {5..16}, dedup within the taxi, and shard the resulting (key, taxi)
// pairs into block files keyed by (W, first cell) — the transient
// inverted index consolidated by internal/pathstore (spec.md §4.4).
package pathmining

import (
	"sort"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

// blockID identifies one shard: a window size and the grid cell of the
// sub-path's first point.
type blockID struct {
	W  int
	GX int64
	GY int64
}

// Miner accumulates mined sub-paths in memory across one or more calls to
// Mine, ready to be persisted via Flush. Not safe for concurrent Mine
// calls against the same Miner.
type Miner struct {
	gridSize   float64
	windowMin  int
	windowMax  int
	blocks     map[blockID]block
	taxisMined int
}

// block maps a sub-path's canonical point-sequence key to the set of
// distinct taxi ids that produced it.
type block map[string]map[uint64]struct{}

// NewMiner constructs a Miner for window sizes [windowMin, windowMax]
// inclusive and the given grid size in degrees.
func NewMiner(gridSize float64, windowMin, windowMax int) *Miner {
	return &Miner{
		gridSize:  gridSize,
		windowMin: windowMin,
		windowMax: windowMax,
		blocks:    make(map[blockID]block),
	}
}

// Mine quantizes points and emits every length-W sub-path for W in the
// miner's configured range, deduped within this taxi at each W, shaded by
// (W, first_cell). A trajectory shorter than W contributes nothing for
// that W; stationary runs (repeated cells) still produce legitimate keys.
func (m *Miner) Mine(taxiID uint64, points []geo.Point) {
	n := len(points)
	if n == 0 {
		return
	}
	m.taxisMined++

	gx := make([]int64, n)
	gy := make([]int64, n)
	centerLon := make([]float64, n)
	centerLat := make([]float64, n)
	for i, p := range points {
		x, y := geo.GridOf(p.Lon, p.Lat, m.gridSize)
		gx[i], gy[i] = x, y
		centerLon[i], centerLat[i] = geo.CellCenter(x, y, m.gridSize)
	}

	for w := m.windowMin; w <= m.windowMax; w++ {
		if n < w {
			continue
		}
		seen := make(map[string]struct{})
		for i := 0; i <= n-w; i++ {
			cells := make([][2]float64, w)
			for j := 0; j < w; j++ {
				cells[j] = [2]float64{centerLon[i+j], centerLat[i+j]}
			}
			key := geo.FormatLonLatSeq(cells)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			id := blockID{W: w, GX: gx[i], GY: gy[i]}
			b, ok := m.blocks[id]
			if !ok {
				b = make(block)
				m.blocks[id] = b
			}
			taxis, ok := b[key]
			if !ok {
				taxis = make(map[uint64]struct{})
				b[key] = taxis
			}
			taxis[taxiID] = struct{}{}
		}
	}
}

// TaxisMined returns how many non-empty trajectories have been passed to
// Mine since construction or the last Reset.
func (m *Miner) TaxisMined() int { return m.taxisMined }

// Reset clears all in-memory accumulation without touching any
// previously flushed block files.
func (m *Miner) Reset() {
	m.blocks = make(map[blockID]block)
	m.taxisMined = 0
}

// blockIDs returns the miner's current block ids in deterministic order
// (by W, then grid cell), for deterministic flush ordering.
func (m *Miner) blockIDs() []blockID {
	ids := make([]blockID, 0, len(m.blocks))
	for id := range m.blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].W != ids[j].W {
			return ids[i].W < ids[j].W
		}
		if ids[i].GX != ids[j].GX {
			return ids[i].GX < ids[j].GX
		}
		return ids[i].GY < ids[j].GY
	})
	return ids
}
