package pathstore

import (
	"fmt"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/monitoring"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathmining"
)

// consolidateBatchSize bounds how many rows accumulate in memory before a
// batch is flushed to the database during Consolidate.
const consolidateBatchSize = 5000

// Consolidate walks every mining block file under blockDir and inserts one
// row per (key, taxis) pair into store: frequency is the distinct-taxi
// count, length is the geodesic sum over the key's cell centers, and
// points is the key string itself, already in the "lon,lat;..." format
// the paths table expects (spec.md §4.4).
func Consolidate(blockDir string, store *Store) (int, error) {
	var batch []PathRecord
	var total int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertPathsBatch(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := pathmining.WalkBlocks(blockDir, func(key string, taxis []uint64) error {
		points, err := geo.ParseLonLatSeq(key)
		if err != nil {
			return fmt.Errorf("failed to parse sub-path key %q: %w", key, err)
		}
		lengthM := geo.PathLengthMeters(points)

		batch = append(batch, PathRecord{
			Frequency: len(taxis),
			LengthM:   lengthM,
			Points:    key,
		})
		if len(batch) >= consolidateBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}

	monitoring.Logf("pathstore: consolidated %d paths from %s", total, blockDir)
	return total, nil
}
