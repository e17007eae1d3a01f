package pathmining

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/HOWILLMAKEIT/taxiflow/internal/fsutil"
)

// blockFileName returns the canonical shard filename for a block id,
// using the first point's grid indices rather than its floating-point
// cell center so filenames stay exact across platforms.
func blockFileName(id blockID) string {
	return fmt.Sprintf("w%02d_%d_%d.block", id.W, id.GX, id.GY)
}

// encodeBlock serializes a block as sorted "key\ttaxi1,taxi2,...\n" lines,
// sorted by key and by taxi id, so identical content always produces
// byte-identical output (mining determinism, spec.md §8).
func encodeBlock(b block) []byte {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, key := range keys {
		taxis := make([]uint64, 0, len(b[key]))
		for id := range b[key] {
			taxis = append(taxis, id)
		}
		sort.Slice(taxis, func(i, j int) bool { return taxis[i] < taxis[j] })

		taxiStrs := make([]string, len(taxis))
		for i, id := range taxis {
			taxiStrs[i] = strconv.FormatUint(id, 10)
		}
		buf.WriteString(key)
		buf.WriteByte('\t')
		buf.WriteString(strings.Join(taxiStrs, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decodeBlock parses the format written by encodeBlock.
func decodeBlock(data []byte) (block, error) {
	b := make(block)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed block line: %q", line)
		}
		key := parts[0]
		taxis := make(map[uint64]struct{})
		for _, s := range strings.Split(parts[1], ",") {
			if s == "" {
				continue
			}
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed taxi id %q in block line: %w", s, err)
			}
			taxis[id] = struct{}{}
		}
		b[key] = taxis
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// WalkBlocks reads every "*.block" file directly inside dir and calls fn
// once per (key, taxis) pair found. Since a sub-path key always shards to
// exactly the block file matching its first cell, each key is seen
// exactly once across the whole walk — consolidation never needs to
// merge a key across files. taxis is sorted ascending.
func WalkBlocks(dir string, fn func(key string, taxis []uint64) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read block directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".block" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read block file %s: %w", path, err)
		}
		b, err := decodeBlock(data)
		if err != nil {
			return fmt.Errorf("failed to decode block file %s: %w", path, err)
		}

		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			taxis := make([]uint64, 0, len(b[key]))
			for id := range b[key] {
				taxis = append(taxis, id)
			}
			sort.Slice(taxis, func(i, j int) bool { return taxis[i] < taxis[j] })
			if err := fn(key, taxis); err != nil {
				return fmt.Errorf("failed to consolidate key from %s: %w", path, err)
			}
		}
	}
	return nil
}

// mergeBlocks unions b2's taxi sets into b1 in place.
func mergeBlocks(b1, b2 block) {
	for key, taxis := range b2 {
		existing, ok := b1[key]
		if !ok {
			existing = make(map[uint64]struct{})
			b1[key] = existing
		}
		for id := range taxis {
			existing[id] = struct{}{}
		}
	}
}

// Flush persists the miner's current in-memory blocks to dir, merging
// with any existing content at each block's path (Open Question (a) in
// spec.md §9: merges are staged into a uuid-named temp file, then
// atomically renamed over the block file, so a crash mid-merge never
// leaves a half-written block visible to a concurrent reader). It clears
// the miner's in-memory state on success.
func (m *Miner) Flush(dir string) error {
	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create block directory %s: %w", dir, err)
	}

	for _, id := range m.blockIDs() {
		name := blockFileName(id)
		path := filepath.Join(dir, name)

		merged := m.blocks[id]
		if existing, err := os.ReadFile(path); err == nil {
			existingBlock, decodeErr := decodeBlock(existing)
			if decodeErr != nil {
				return fmt.Errorf("failed to decode existing block %s: %w", path, decodeErr)
			}
			mergeBlocks(existingBlock, merged)
			merged = existingBlock
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read existing block %s: %w", path, err)
		}

		data := encodeBlock(merged)
		if err := fsutil.WriteFileAtomic(fsys, dir, path, uuid.NewString(), data); err != nil {
			return fmt.Errorf("failed to write block %s: %w", path, err)
		}
	}

	m.Reset()
	return nil
}
