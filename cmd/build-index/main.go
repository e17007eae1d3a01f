// Command build-index scans a directory of per-taxi trajectory files and
// bulk-loads every point into an on-disk 3D R-tree (spec.md §4.3).
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/config"
	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/monitoring"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
	"github.com/HOWILLMAKEIT/taxiflow/internal/timeparse"
	"github.com/HOWILLMAKEIT/taxiflow/internal/trajectory"
)

func main() {
	var trajDir string
	var outBasename string
	var configPath string
	var tz string

	flag.StringVar(&trajDir, "dir", "", "directory of <taxi_id>.txt trajectory files")
	flag.StringVar(&outBasename, "out", "index/taxi", "output r-tree basename (writes .rtnode/.rtdata)")
	flag.StringVar(&configPath, "config", "", "optional build config JSON (defaults per spec)")
	flag.StringVar(&tz, "tz", "", "IANA timezone for naive trajectory timestamps (default Asia/Shanghai)")
	flag.Parse()

	if trajDir == "" {
		log.Fatal("build-index: -dir is required")
	}

	cfg := config.DefaultBuildConfig()
	if configPath != "" {
		loaded, err := config.LoadBuildConfig(configPath)
		if err != nil {
			log.Fatalf("build-index: failed to load config: %v", err)
		}
		cfg = loaded
	}
	if tz != "" {
		cfg.Timezone = &tz
	}

	loc, err := timeparse.Location(cfg.GetTimezone())
	if err != nil {
		log.Fatalf("build-index: %v", err)
	}

	if dir := filepath.Dir(outBasename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("build-index: failed to create output directory %s: %v", dir, err)
		}
	}

	builder := rtree.NewBuilder(cfg.GetRtreeFanout())

	var entryID uint64
	var taxisSeen, pointsSeen int
	start := time.Now()

	walkErr := trajectory.WalkDir(trajDir, loc, func(taxiID uint64, path string, points []geo.Point, stats trajectory.Stats) {
		if len(points) == 0 {
			return
		}
		taxisSeen++
		for _, p := range points {
			builder.Insert(entryID, geo.PointBBox(p.Lon, p.Lat, p.T), taxiID)
			entryID++
			pointsSeen++
		}
		if stats.LinesSkipped > 0 {
			monitoring.Logf("build-index: %s skipped %d/%d malformed lines", path, stats.LinesSkipped, stats.LinesRead)
		}
	})
	if walkErr != nil {
		log.Fatalf("build-index: failed to walk %s: %v", trajDir, walkErr)
	}

	if err := builder.Build(outBasename); err != nil {
		log.Fatalf("build-index: failed to build r-tree at %s: %v", outBasename, err)
	}

	log.Printf("build-index: indexed %d points across %d taxis into %s in %s",
		pointsSeen, taxisSeen, outBasename, time.Since(start).Round(time.Millisecond))
}
