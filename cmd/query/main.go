// Command query is the CLI front-end for the five analytic operators
// (spec.md §4.5): region_count, density_grid, density_timeseries, flow,
// inner_outer_flow, shortest_travel_time, frequent_paths.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/config"
	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/query"
	"github.com/HOWILLMAKEIT/taxiflow/internal/timeparse"
	"github.com/HOWILLMAKEIT/taxiflow/internal/version"
)

func main() {
	var showVersion bool
	var op string
	var indexBasename, storePath, trajDir, cacheDir, configPath, tz string
	var noCache bool
	var tLoStr, tHiStr string
	var boxAStr, boxBStr, innerStr string
	var abBoxAStr, abBoxBStr string
	var gridMeters, intervalSeconds, deltaMinutes, lengthMin float64
	var k int

	flag.StringVar(&op, "op", "", "operator: region_count|density_grid|density_timeseries|flow|inner_outer_flow|shortest_travel_time|frequent_paths")
	flag.StringVar(&indexBasename, "index", "index/taxi", "r-tree index basename")
	flag.StringVar(&storePath, "store", "paths.db", "path-store sqlite file")
	flag.StringVar(&trajDir, "traj", "", "trajectory directory (shortest_travel_time re-reads raw tracks from here)")
	flag.StringVar(&cacheDir, "cache", "", "result cache directory (empty uses the config's cache_dir, normally \"cache\")")
	flag.BoolVar(&noCache, "no-cache", false, "disable result caching entirely")
	flag.StringVar(&configPath, "config", "", "optional build config JSON (defaults per spec)")
	flag.StringVar(&tz, "tz", "", "IANA timezone (default Asia/Shanghai)")
	flag.StringVar(&tLoStr, "t-lo", "", "window start, YYYY-MM-DDTHH:MM or YYYY-MM-DD HH:MM:SS")
	flag.StringVar(&tHiStr, "t-hi", "", "window end, same formats as -t-lo")
	flag.StringVar(&boxAStr, "box-a", "", "region A: minLon,minLat,maxLon,maxLat")
	flag.StringVar(&boxBStr, "box-b", "", "region B: minLon,minLat,maxLon,maxLat (region_count uses box-a only; the density operators use neither)")
	flag.StringVar(&innerStr, "inner", "", "inner region for inner_outer_flow: minLon,minLat,maxLon,maxLat")
	flag.StringVar(&abBoxAStr, "ab-box-a", "", "frequent_paths: restrict start point to this box")
	flag.StringVar(&abBoxBStr, "ab-box-b", "", "frequent_paths: restrict end point to this box")
	flag.Float64Var(&gridMeters, "grid-meters", 500, "density grid cell size in meters")
	flag.Float64Var(&intervalSeconds, "interval-seconds", 3600, "density_timeseries bucket width")
	flag.Float64Var(&deltaMinutes, "delta-minutes", 30, "flow: max minutes between region sightings to count as a transition")
	flag.Float64Var(&lengthMin, "length-min", 0, "frequent_paths: minimum path length in meters (0 uses the config's path_length_min_m, normally 100m)")
	flag.IntVar(&k, "k", 10, "frequent_paths: how many results to return")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("taxiflow-query v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		return
	}

	if op == "" {
		log.Fatal("query: -op is required")
	}

	cfg := config.DefaultBuildConfig()
	if configPath != "" {
		loaded, cerr := config.LoadBuildConfig(configPath)
		if cerr != nil {
			log.Fatalf("query: failed to load config: %v", cerr)
		}
		cfg = loaded
	}
	if tz != "" {
		cfg.Timezone = &tz
	}
	if cacheDir != "" {
		cfg.CacheDir = &cacheDir
	}
	if noCache {
		empty := ""
		cfg.CacheDir = &empty
	}

	loc, err := timeparse.Location(cfg.GetTimezone())
	if err != nil {
		log.Fatalf("query: %v", err)
	}

	tLo, tHi, err := parseWindow(tLoStr, tHiStr, loc)
	if err != nil && op != "frequent_paths" {
		log.Fatalf("query: %v", err)
	}

	engine := query.NewEngineWithConfig(indexBasename, storePath, trajDir, cfg, loc)
	ctx := context.Background()

	var resp any
	var qerr *query.Error

	switch op {
	case "region_count":
		box, berr := parseBox(boxAStr)
		if berr != nil {
			log.Fatalf("query: -box-a: %v", berr)
		}
		resp, qerr = engine.RegionCount(ctx, query.RegionCountRequest{Box: box, TLo: tLo, THi: tHi})

	case "density_grid":
		resp, qerr = engine.DensityGrid(ctx, query.DensityGridRequest{GridMeters: gridMeters, TLo: tLo, THi: tHi})

	case "density_timeseries":
		resp, qerr = engine.DensityTimeSeries(ctx, query.DensityTimeSeriesRequest{
			GridMeters: gridMeters, TLo: tLo, THi: tHi, IntervalSeconds: intervalSeconds,
		})

	case "flow":
		boxA, aerr := parseBox(boxAStr)
		boxB, berr := parseBox(boxBStr)
		if aerr != nil || berr != nil {
			log.Fatalf("query: -box-a/-box-b required for flow")
		}
		resp, qerr = engine.Flow(ctx, query.FlowRequest{BoxA: boxA, BoxB: boxB, TLo: tLo, THi: tHi, DeltaMinute: deltaMinutes})

	case "inner_outer_flow":
		inner, ierr := parseBox(innerStr)
		if ierr != nil {
			log.Fatalf("query: -inner required for inner_outer_flow: %v", ierr)
		}
		resp, qerr = engine.InnerOuterFlow(ctx, query.InnerOuterFlowRequest{Inner: inner, TLo: tLo, THi: tHi})

	case "shortest_travel_time":
		boxA, aerr := parseBox(boxAStr)
		boxB, berr := parseBox(boxBStr)
		if aerr != nil || berr != nil {
			log.Fatalf("query: -box-a/-box-b required for shortest_travel_time")
		}
		resp, qerr = engine.ShortestTravelTime(ctx, query.ShortestTravelTimeRequest{BoxA: boxA, BoxB: boxB, TLo: tLo, THi: tHi})

	case "frequent_paths":
		req := query.FrequentPathsRequest{K: k, LengthMin: lengthMin}
		if abBoxAStr != "" || abBoxBStr != "" {
			boxA, aerr := parseBox(abBoxAStr)
			boxB, berr := parseBox(abBoxBStr)
			if aerr != nil || berr != nil {
				log.Fatalf("query: -ab-box-a/-ab-box-b must both be valid boxes")
			}
			req.AB = &query.FrequentPathsAB{BoxA: boxA, BoxB: boxB}
		}
		resp, qerr = engine.FrequentPaths(req)

	default:
		log.Fatalf("query: unknown -op %q", op)
	}

	if qerr != nil {
		fmt.Fprintf(os.Stderr, "query: %s (status %d): %s\n", qerr.Kind, qerr.Kind.StatusCode(), qerr.Message)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		log.Fatalf("query: failed to encode response: %v", err)
	}
}

// parseWindow resolves the t-lo/t-hi flags to epoch seconds using the
// engine's configured zone; both must be present and parse (§6's dual
// time-format rule).
func parseWindow(loStr, hiStr string, loc *time.Location) (float64, float64, error) {
	if loStr == "" || hiStr == "" {
		return 0, 0, fmt.Errorf("-t-lo and -t-hi are required")
	}
	tLo, err := timeparse.ParseTimestamp(loStr, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("-t-lo: %w", err)
	}
	tHi, err := timeparse.ParseTimestamp(hiStr, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("-t-hi: %w", err)
	}
	return tLo, tHi, nil
}

// parseBox parses "minLon,minLat,maxLon,maxLat".
func parseBox(s string) (geo.LonLatBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geo.LonLatBox{}, fmt.Errorf("expected 4 comma-separated values, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.LonLatBox{}, fmt.Errorf("invalid number %q: %w", p, err)
		}
		vals[i] = v
	}
	return geo.LonLatBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}, nil
}
