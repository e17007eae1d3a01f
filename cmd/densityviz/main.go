// Command densityviz renders a density_grid snapshot (spec.md §4.5.2) as a
// standalone interactive HTML heatmap, for visually spot-checking a grid
// without standing up the JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/HOWILLMAKEIT/taxiflow/internal/config"
	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/query"
	"github.com/HOWILLMAKEIT/taxiflow/internal/timeparse"
)

func main() {
	var indexBasename, storePath, trajDir, cacheDir, configPath, tz string
	var noCache bool
	var tLoStr, tHiStr string
	var gridMeters float64
	var outPath string

	flag.StringVar(&indexBasename, "index", "index/taxi", "r-tree index basename")
	flag.StringVar(&storePath, "store", "paths.db", "path-store sqlite file")
	flag.StringVar(&trajDir, "traj", "", "trajectory directory (unused by density_grid, accepted for flag parity with cmd/query)")
	flag.StringVar(&cacheDir, "cache", "", "result cache directory (empty uses the config's cache_dir, normally \"cache\")")
	flag.BoolVar(&noCache, "no-cache", false, "disable result caching entirely")
	flag.StringVar(&configPath, "config", "", "optional build config JSON (defaults per spec)")
	flag.StringVar(&tz, "tz", "", "IANA timezone (default Asia/Shanghai)")
	flag.StringVar(&tLoStr, "t-lo", "", "window start, YYYY-MM-DDTHH:MM or YYYY-MM-DD HH:MM:SS")
	flag.StringVar(&tHiStr, "t-hi", "", "window end, same formats as -t-lo")
	flag.Float64Var(&gridMeters, "grid-meters", 500, "density grid cell size in meters")
	flag.StringVar(&outPath, "out", "density.html", "output HTML file")
	flag.Parse()

	cfg := config.DefaultBuildConfig()
	if configPath != "" {
		loaded, cerr := config.LoadBuildConfig(configPath)
		if cerr != nil {
			log.Fatalf("densityviz: failed to load config: %v", cerr)
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
		log.Fatalf("densityviz: %v", err)
	}

	if tLoStr == "" || tHiStr == "" {
		log.Fatal("densityviz: -t-lo and -t-hi are required")
	}
	tLo, err := timeparse.ParseTimestamp(tLoStr, loc)
	if err != nil {
		log.Fatalf("densityviz: -t-lo: %v", err)
	}
	tHi, err := timeparse.ParseTimestamp(tHiStr, loc)
	if err != nil {
		log.Fatalf("densityviz: -t-hi: %v", err)
	}

	engine := query.NewEngineWithConfig(indexBasename, storePath, trajDir, cfg, loc)
	resp, qerr := engine.DensityGrid(context.Background(), query.DensityGridRequest{
		GridMeters: gridMeters, TLo: tLo, THi: tHi,
	})
	if qerr != nil {
		log.Fatalf("densityviz: %s (status %d): %s", qerr.Kind, qerr.Kind.StatusCode(), qerr.Message)
	}

	f, err := os.Create(outPath)
	if err != nil {
		log.Fatalf("densityviz: failed to create %s: %v", outPath, err)
	}
	defer f.Close()

	if err := render(resp, gridMeters, f); err != nil {
		log.Fatalf("densityviz: %v", err)
	}
	log.Printf("densityviz: wrote %d cells (max_count=%d, truncated=%t) to %s", len(resp.Cells), resp.MaxCount, resp.Truncated, outPath)
}

// render lays resp's non-empty cells onto a fixed-resolution lon/lat grid
// and draws them as a go-echarts HeatMap, following the teacher's
// SetGlobalOptions/AddSeries/Render shape (echarts_handlers.go's scatter
// charts) but with a HeatMap series and a Min/Max VisualMap in place of
// the teacher's per-point Dimension-based color scale.
func render(resp query.DensityGridResponse, gridMeters float64, w *os.File) error {
	if len(resp.Cells) == 0 {
		return fmt.Errorf("no density cells to render")
	}

	gDeg := geo.MetersToDegrees(gridMeters)
	bounds := geo.BeijingBounds
	cols := int(math.Floor((bounds.MaxLon-bounds.MinLon)/gDeg)) + 1
	rows := int(math.Floor((bounds.MaxLat-bounds.MinLat)/gDeg)) + 1

	xLabels := make([]string, cols)
	for c := 0; c < cols; c++ {
		xLabels[c] = fmt.Sprintf("%.4f", bounds.MinLon+float64(c)*gDeg)
	}
	yLabels := make([]string, rows)
	for r := 0; r < rows; r++ {
		yLabels[r] = fmt.Sprintf("%.4f", bounds.MinLat+float64(r)*gDeg)
	}

	data := make([]opts.HeatMapData, 0, len(resp.Cells))
	for _, cell := range resp.Cells {
		col := int(math.Floor((cell.SW[0] - bounds.MinLon) / gDeg))
		row := int(math.Floor((cell.SW[1] - bounds.MinLat) / gDeg))
		if col < 0 || col >= cols || row < 0 || row >= rows {
			continue
		}
		data = append(data, opts.HeatMapData{Value: [3]interface{}{col, row, cell.Density}})
	}

	heatmap := charts.NewHeatMap()
	heatmap.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Taxi Density Grid", Theme: "dark", Width: "1100px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Taxi density grid", Subtitle: fmt.Sprintf("cells=%d total_points=%d truncated=%t", len(resp.Cells), resp.TotalPoints, resp.Truncated)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "Longitude", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "Latitude", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        100,
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	heatmap.AddSeries("density", data)
	return heatmap.Render(w)
}
