package rtree

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

// diskNode is the read-only in-memory form of one on-disk node record.
type diskNode struct {
	bbox      geo.BBox
	isLeaf    bool
	leafStart int64
	leafCount int32
	children  []int32
}

// Index attaches read-only to an R-tree built by Builder.Build. Node
// metadata (bboxes, child pointers) is loaded once into memory at Open
// time; leaf entry data is read from the data file on demand, via
// concurrency-safe ReadAt calls, so multiple goroutines may share one
// Index for the lifetime of a query.
type Index struct {
	nodes     []diskNode
	rootIndex int32
	fanout    int32

	dataFile *os.File
	dataPath string
}

// Open attaches read-only to the node/data file pair sharing basename.
func Open(basename string) (*Index, error) {
	nodePath := basename + nodeFileSuffix
	dataPath := basename + dataFileSuffix

	nodes, rootIndex, fanout, err := readNodeFile(nodePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rtree node file %s: %w", nodePath, err)
	}

	dataFile, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rtree data file %s: %w", dataPath, err)
	}

	return &Index{
		nodes:     nodes,
		rootIndex: rootIndex,
		fanout:    fanout,
		dataFile:  dataFile,
		dataPath:  dataPath,
	}, nil
}

// Close releases the data file handle.
func (idx *Index) Close() error {
	return idx.dataFile.Close()
}

func readNodeFile(path string) ([]diskNode, int32, int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	var magic uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read node file magic: %w", err)
	}
	if magic != nodeMagic {
		return nil, 0, 0, fmt.Errorf("unrecognized rtree node file magic: %x", magic)
	}

	var fanout, rootIndex, count int32
	if err := binary.Read(f, binary.LittleEndian, &fanout); err != nil {
		return nil, 0, 0, err
	}
	if err := binary.Read(f, binary.LittleEndian, &rootIndex); err != nil {
		return nil, 0, 0, err
	}
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, 0, 0, err
	}

	nodes := make([]diskNode, count)
	for i := int32(0); i < count; i++ {
		var isLeaf uint8
		if err := binary.Read(f, binary.LittleEndian, &isLeaf); err != nil {
			return nil, 0, 0, err
		}
		var fields [6]float64
		if err := binary.Read(f, binary.LittleEndian, &fields); err != nil {
			return nil, 0, 0, err
		}
		n := diskNode{
			bbox: geo.BBox{
				MinLon: fields[0], MinLat: fields[1], MinT: fields[2],
				MaxLon: fields[3], MaxLat: fields[4], MaxT: fields[5],
			},
			isLeaf: isLeaf == 1,
		}
		if n.isLeaf {
			if err := binary.Read(f, binary.LittleEndian, &n.leafStart); err != nil {
				return nil, 0, 0, err
			}
			if err := binary.Read(f, binary.LittleEndian, &n.leafCount); err != nil {
				return nil, 0, 0, err
			}
		} else {
			var numChildren int32
			if err := binary.Read(f, binary.LittleEndian, &numChildren); err != nil {
				return nil, 0, 0, err
			}
			n.children = make([]int32, numChildren)
			for j := range n.children {
				if err := binary.Read(f, binary.LittleEndian, &n.children[j]); err != nil {
					return nil, 0, 0, err
				}
			}
		}
		nodes[i] = n
	}

	return nodes, rootIndex, fanout, nil
}

// readEntries reads leafCount consecutive data-file records starting at
// leafStart.
func (idx *Index) readEntries(leafStart int64, leafCount int32) ([]Entry, error) {
	if leafCount == 0 {
		return nil, nil
	}
	buf := make([]byte, int64(leafCount)*dataRecordSize)
	offset := dataHeaderSize() + leafStart*dataRecordSize
	if _, err := idx.dataFile.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read rtree leaf entries at offset %d: %w", offset, err)
	}

	entries := make([]Entry, leafCount)
	for i := range entries {
		rec := buf[i*dataRecordSize : (i+1)*dataRecordSize]
		entries[i] = decodeEntry(rec)
	}
	return entries, nil
}

func dataHeaderSize() int64 {
	return 4 + 8 // magic(uint32) + count(int64)
}

func decodeEntry(rec []byte) Entry {
	id := binary.LittleEndian.Uint64(rec[0:8])
	var fields [6]float64
	for i := 0; i < 6; i++ {
		bits := binary.LittleEndian.Uint64(rec[8+i*8 : 16+i*8])
		fields[i] = math.Float64frombits(bits)
	}
	payload := binary.LittleEndian.Uint64(rec[56:64])
	return Entry{
		ID: id,
		BBox: geo.BBox{
			MinLon: fields[0], MinLat: fields[1], MinT: fields[2],
			MaxLon: fields[3], MaxLat: fields[4], MaxT: fields[5],
		},
		Payload: payload,
	}
}

// StreamFunc receives one batch of matching entries; returning stop=true
// ends the traversal early (e.g. once a result cap has been reached).
type StreamFunc func(batch []Entry) (stop bool, err error)

// DefaultBatchSize is the cooperative-cancellation batch size from §5.
const DefaultBatchSize = 10000

// IntersectStream enumerates every entry whose bbox intersects box,
// delivering results in batches of batchSize (DefaultBatchSize if <= 0).
// Between batches it checks ctx for cancellation. The traversal order is
// unspecified; no entry is ever delivered twice, since leaves partition
// the data file disjointly.
func (idx *Index) IntersectStream(ctx context.Context, box geo.BBox, batchSize int, fn StreamFunc) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(idx.nodes) == 0 {
		return nil
	}

	var batch []Entry
	var stopped bool

	var walk func(nodeIdx int32) error
	walk = func(nodeIdx int32) error {
		if stopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := idx.nodes[nodeIdx]
		if !n.bbox.Intersects(box) {
			return nil
		}

		if n.isLeaf {
			entries, err := idx.readEntries(n.leafStart, n.leafCount)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if !e.BBox.Intersects(box) {
					continue
				}
				batch = append(batch, e)
				if len(batch) >= batchSize {
					stop, err := fn(batch)
					if err != nil {
						return err
					}
					batch = nil
					if stop {
						stopped = true
						return nil
					}
				}
			}
			return nil
		}

		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
			if stopped {
				return nil
			}
		}
		return nil
	}

	if err := walk(idx.rootIndex); err != nil {
		return err
	}
	if len(batch) > 0 && !stopped {
		if _, err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// Intersect collects every entry whose bbox intersects box into a single
// slice. Callers needing a bounded/cancellable scan (density, region
// counts over large windows) should prefer IntersectStream directly.
func (idx *Index) Intersect(ctx context.Context, box geo.BBox) ([]Entry, error) {
	var all []Entry
	err := idx.IntersectStream(ctx, box, DefaultBatchSize, func(batch []Entry) (bool, error) {
		all = append(all, batch...)
		return false, nil
	})
	return all, err
}
