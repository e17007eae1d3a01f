// Package rtree implements a disk-resident, bulk-loaded 3D R-tree over
// (lon, lat, t) point entries carrying a 64-bit payload (taxi id). The index
// is built once by a single writer (Builder), then opened read-only by any
// number of concurrent query goroutines (Index).
package rtree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

const (
	nodeFileSuffix = ".rtnode"
	dataFileSuffix = ".rtdata"

	dataMagic = uint32(0x52543344) // "RT3D"
	nodeMagic = uint32(0x52543352) // "RT3R"

	// dataRecordSize is the on-disk size of one leaf entry: id(8) +
	// bbox(6*8=48) + payload(8).
	dataRecordSize = 8 + 48 + 8

	// DefaultFanout is the node-level fanout hint used when a Builder does
	// not specify one (spec default).
	DefaultFanout = 10
)

// Entry is one indexed point: a zero-volume bbox plus its taxi-id payload.
type Entry struct {
	ID      uint64
	BBox    geo.BBox
	Payload uint64
}

// Builder accumulates entries in memory and bulk-loads them into an
// on-disk R-tree via Build. A Builder is single-writer, not safe for
// concurrent Insert calls.
type Builder struct {
	Fanout  int
	entries []Entry
}

// NewBuilder returns a Builder with the given fanout hint, or
// DefaultFanout if fanout <= 0.
func NewBuilder(fanout int) *Builder {
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Builder{Fanout: fanout}
}

// Insert appends one entry to the builder's in-memory buffer.
func (b *Builder) Insert(id uint64, bbox geo.BBox, payload uint64) {
	b.entries = append(b.entries, Entry{ID: id, BBox: bbox, Payload: payload})
}

// Build bulk-loads the accumulated entries into a node file and a data
// file sharing basename, using a sort-tile-recursive (STR) packing. Any
// pre-existing files at basename are removed first. Both files are written
// under temporary names (final name + ".tmp") and renamed into place only
// once both are complete, the node file last; Open reads the node file
// first, so an index whose build stopped partway cannot be opened.
func (b *Builder) Build(basename string) error {
	nodePath := basename + nodeFileSuffix
	dataPath := basename + dataFileSuffix

	for _, p := range []string{nodePath, dataPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing rtree file %s: %w", p, err)
		}
	}

	leaves, ordered := strPackLeaves(b.entries, b.Fanout)
	root := buildInternalLevels(leaves, b.Fanout)

	flat := flattenTree(root)

	tmpData := dataPath + ".tmp"
	tmpNode := nodePath + ".tmp"
	if err := writeDataFile(tmpData, ordered); err != nil {
		return fmt.Errorf("failed to write rtree data file: %w", err)
	}
	if err := writeNodeFile(tmpNode, flat, b.Fanout); err != nil {
		return fmt.Errorf("failed to write rtree node file: %w", err)
	}
	if err := os.Rename(tmpData, dataPath); err != nil {
		return fmt.Errorf("failed to move rtree data file into place: %w", err)
	}
	if err := os.Rename(tmpNode, nodePath); err != nil {
		return fmt.Errorf("failed to move rtree node file into place: %w", err)
	}
	return nil
}

// treeNode is the in-memory representation of one R-tree node during and
// after packing, before it is flattened to a serializable index.
type treeNode struct {
	bbox      geo.BBox
	isLeaf    bool
	leafStart int
	leafCount int
	children  []*treeNode

	index int // assigned by flattenTree
}

// strPackLeaves partitions entries into fanout-sized leaf groups via a 3D
// sort-tile-recursive pass (slice by lon, then by lat within each lon
// slab, then by t within each lat slab), returning the leaf nodes in their
// final on-disk order plus the entries reordered to match.
func strPackLeaves(entries []Entry, fanout int) ([]*treeNode, []Entry) {
	if len(entries) == 0 {
		return nil, nil
	}

	n := len(entries)
	leafCount := ceilDiv(n, fanout)
	slabSlices := int(math.Ceil(math.Cbrt(float64(leafCount))))
	if slabSlices < 1 {
		slabSlices = 1
	}

	sorted := make([]Entry, n)
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BBox.MinLon < sorted[j].BBox.MinLon })

	lonSlabSize := ceilDiv(n, slabSlices)
	var leaves []*treeNode
	var ordered []Entry

	for lonStart := 0; lonStart < n; lonStart += lonSlabSize {
		lonEnd := min(lonStart+lonSlabSize, n)
		lonSlab := sorted[lonStart:lonEnd]

		sort.Slice(lonSlab, func(i, j int) bool { return lonSlab[i].BBox.MinLat < lonSlab[j].BBox.MinLat })

		latSlabSize := ceilDiv(len(lonSlab), slabSlices)
		for latStart := 0; latStart < len(lonSlab); latStart += latSlabSize {
			latEnd := min(latStart+latSlabSize, len(lonSlab))
			latSlab := lonSlab[latStart:latEnd]

			sort.Slice(latSlab, func(i, j int) bool { return latSlab[i].BBox.MinT < latSlab[j].BBox.MinT })

			for leafStart := 0; leafStart < len(latSlab); leafStart += fanout {
				leafEnd := min(leafStart+fanout, len(latSlab))
				group := latSlab[leafStart:leafEnd]

				bbox := group[0].BBox
				for _, e := range group[1:] {
					bbox = bbox.Union(e.BBox)
				}

				leaves = append(leaves, &treeNode{
					bbox:      bbox,
					isLeaf:    true,
					leafStart: len(ordered),
					leafCount: len(group),
				})
				ordered = append(ordered, group...)
			}
		}
	}

	return leaves, ordered
}

// buildInternalLevels groups nodes into fanout-sized parents repeatedly
// until a single root remains. Because each level's nodes already carry
// spatial locality from the STR pass (or from the level below), simple
// sequential chunking preserves that locality without re-sorting.
func buildInternalLevels(nodes []*treeNode, fanout int) *treeNode {
	if len(nodes) == 0 {
		return &treeNode{isLeaf: true, leafStart: 0, leafCount: 0}
	}
	for len(nodes) > 1 {
		var parents []*treeNode
		for start := 0; start < len(nodes); start += fanout {
			end := min(start+fanout, len(nodes))
			group := nodes[start:end]

			bbox := group[0].bbox
			for _, child := range group[1:] {
				bbox = bbox.Union(child.bbox)
			}
			parents = append(parents, &treeNode{bbox: bbox, children: group})
		}
		nodes = parents
	}
	return nodes[0]
}

// flattenTree assigns a sequential index to every node via post-order
// traversal and returns the flat slice in index order.
func flattenTree(root *treeNode) []*treeNode {
	var flat []*treeNode
	var visit func(n *treeNode)
	visit = func(n *treeNode) {
		for _, c := range n.children {
			visit(c)
		}
		n.index = len(flat)
		flat = append(flat, n)
	}
	visit(root)
	return flat
}

func writeDataFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, dataMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func writeEntry(w *bufio.Writer, e Entry) error {
	fields := []float64{e.BBox.MinLon, e.BBox.MinLat, e.BBox.MinT, e.BBox.MaxLon, e.BBox.MaxLat, e.BBox.MaxT}
	if err := binary.Write(w, binary.LittleEndian, e.ID); err != nil {
		return err
	}
	for _, v := range fields {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, e.Payload)
}

func writeNodeFile(path string, flat []*treeNode, fanout int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	rootIndex := int32(0)
	if len(flat) > 0 {
		rootIndex = int32(len(flat) - 1)
	}

	if err := binary.Write(w, binary.LittleEndian, nodeMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(fanout)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rootIndex); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(flat))); err != nil {
		return err
	}

	for _, n := range flat {
		var isLeaf uint8
		if n.isLeaf {
			isLeaf = 1
		}
		if err := binary.Write(w, binary.LittleEndian, isLeaf); err != nil {
			return err
		}
		fields := []float64{n.bbox.MinLon, n.bbox.MinLat, n.bbox.MinT, n.bbox.MaxLon, n.bbox.MaxLat, n.bbox.MaxT}
		for _, v := range fields {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if n.isLeaf {
			if err := binary.Write(w, binary.LittleEndian, int64(n.leafStart)); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, int32(n.leafCount)); err != nil {
				return err
			}
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(n.children))); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := binary.Write(w, binary.LittleEndian, int32(c.index)); err != nil {
				return err
			}
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
