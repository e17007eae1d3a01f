// Command mine-paths runs the sliding-window sub-path mining pass over a
// directory of trajectory files, then consolidates the mined block
// shards into a fresh path-store database (spec.md §4.4).
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/config"
	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathmining"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathstore"
	"github.com/HOWILLMAKEIT/taxiflow/internal/timeparse"
	"github.com/HOWILLMAKEIT/taxiflow/internal/trajectory"
)

func main() {
	var trajDir string
	var blockDir string
	var storePath string
	var configPath string
	var tz string

	flag.StringVar(&trajDir, "dir", "", "directory of <taxi_id>.txt trajectory files")
	flag.StringVar(&blockDir, "blocks", "blocks", "directory for sharded mining block files")
	flag.StringVar(&storePath, "store", "paths.db", "output path-store sqlite file")
	flag.StringVar(&configPath, "config", "", "optional build config JSON (defaults per spec)")
	flag.StringVar(&tz, "tz", "", "IANA timezone for naive trajectory timestamps (default Asia/Shanghai)")
	flag.Parse()

	if trajDir == "" {
		log.Fatal("mine-paths: -dir is required")
	}

	cfg := config.DefaultBuildConfig()
	if configPath != "" {
		loaded, err := config.LoadBuildConfig(configPath)
		if err != nil {
			log.Fatalf("mine-paths: failed to load config: %v", err)
		}
		cfg = loaded
	}
	if tz != "" {
		cfg.Timezone = &tz
	}

	loc, err := timeparse.Location(cfg.GetTimezone())
	if err != nil {
		log.Fatalf("mine-paths: %v", err)
	}

	windowMin, windowMax := cfg.GetMiningWindows()
	miner := pathmining.NewMiner(cfg.GetGridSizeDegrees(), windowMin, windowMax)

	start := time.Now()
	walkErr := trajectory.WalkDir(trajDir, loc, func(taxiID uint64, path string, points []geo.Point, stats trajectory.Stats) {
		if len(points) == 0 {
			return
		}
		trajectory.SortByTime(points)
		miner.Mine(taxiID, points)
	})
	if walkErr != nil {
		log.Fatalf("mine-paths: failed to walk %s: %v", trajDir, walkErr)
	}

	if err := miner.Flush(blockDir); err != nil {
		log.Fatalf("mine-paths: failed to flush mining blocks: %v", err)
	}
	log.Printf("mine-paths: mined %d taxis into %s in %s", miner.TaxisMined(), blockDir, time.Since(start).Round(time.Millisecond))

	// Consolidation always rebuilds the store fresh (internal/pathstore's
	// single-writer contract); remove any previous file at storePath.
	if err := os.Remove(storePath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("mine-paths: failed to remove existing path store %s: %v", storePath, err)
	}

	store, err := pathstore.NewStore(storePath)
	if err != nil {
		log.Fatalf("mine-paths: failed to create path store %s: %v", storePath, err)
	}
	defer store.Close()

	consolidateStart := time.Now()
	n, err := pathstore.Consolidate(blockDir, store)
	if err != nil {
		log.Fatalf("mine-paths: consolidation failed: %v", err)
	}
	log.Printf("mine-paths: consolidated %d paths into %s in %s", n, storePath, time.Since(consolidateStart).Round(time.Millisecond))
}
