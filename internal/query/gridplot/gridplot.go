// Package gridplot renders a density-grid query response (spec.md
// §4.5.2/§4.5.3) as a PNG heatmap for offline inspection. No command in
// this repository calls it; cmd/densityviz renders HTML via go-echarts.
package gridplot

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/query"
)

// densityMatrix adapts a sparse set of DensityCell values into the dense
// plotter.GridXYZ gonum/plot expects, filling uncovered cells with zero.
type densityMatrix struct {
	gDeg       float64
	minLon     float64
	minLat     float64
	cols, rows int
	z          [][]float64 // [row][col]
}

func (m *densityMatrix) Dims() (c, r int) { return m.cols, m.rows }

func (m *densityMatrix) X(c int) float64 { return m.minLon + (float64(c)+0.5)*m.gDeg }

func (m *densityMatrix) Y(r int) float64 { return m.minLat + (float64(r)+0.5)*m.gDeg }

func (m *densityMatrix) Z(c, r int) float64 { return m.z[r][c] }

func newDensityMatrix(cells []query.DensityCell, gridMeters float64) *densityMatrix {
	gDeg := geo.MetersToDegrees(gridMeters)
	bounds := geo.BeijingBounds
	cols := int(math.Floor((bounds.MaxLon-bounds.MinLon)/gDeg)) + 1
	rows := int(math.Floor((bounds.MaxLat-bounds.MinLat)/gDeg)) + 1

	z := make([][]float64, rows)
	for i := range z {
		z[i] = make([]float64, cols)
	}

	m := &densityMatrix{gDeg: gDeg, minLon: bounds.MinLon, minLat: bounds.MinLat, cols: cols, rows: rows, z: z}
	for _, cell := range cells {
		col := int(math.Floor((cell.SW[0] - bounds.MinLon) / gDeg))
		row := int(math.Floor((cell.SW[1] - bounds.MinLat) / gDeg))
		if col < 0 || col >= cols || row < 0 || row >= rows {
			continue
		}
		z[row][col] = float64(cell.Density)
	}
	return m
}

// RenderDensityGrid draws resp's non-empty cells as a heatmap PNG at
// outputPath, sized width×height (vg.Length values). It mirrors the teacher's
// gridplotter.go rendering shape: build a gonum/plot plot.Plot, add one
// plotter, label axes, save at a fixed DPI-equivalent size.
func RenderDensityGrid(resp query.DensityGridResponse, gridMeters float64, outputPath string, width, height vg.Length) error {
	if len(resp.Cells) == 0 {
		return fmt.Errorf("no density cells to render")
	}

	matrix := newDensityMatrix(resp.Cells, gridMeters)

	p := plot.New()
	p.Title.Text = "Taxi density grid"
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	pal := moreland.SmoothBlueRed()
	pal.SetMin(0)
	pal.SetMax(100)

	heat := plotter.NewHeatMap(matrix, pal)
	p.Add(heat)

	if err := p.Save(width, height, outputPath); err != nil {
		return fmt.Errorf("failed to save density heatmap to %s: %w", outputPath, err)
	}
	return nil
}

// RenderDensityTimeSeries draws one heatmap PNG per non-empty bucket,
// using namer to name each bucket's output file.
func RenderDensityTimeSeries(resp query.DensityTimeSeriesResponse, gridMeters float64, namer func(bucketIndex int) string, width, height vg.Length) (int, error) {
	count := 0
	for i, bucket := range resp.Buckets {
		if len(bucket.Cells) == 0 {
			continue
		}
		path := namer(i)
		if err := RenderDensityGrid(query.DensityGridResponse{Cells: bucket.Cells}, gridMeters, path, width, height); err != nil {
			return count, fmt.Errorf("failed to render bucket %d: %w", i, err)
		}
		count++
	}
	return count, nil
}
