// Package taxidata generates synthetic taxi trajectory corpora: one
// "<taxi_id>.txt" file per taxi in the raw line format internal/trajectory
// reads, for demos and integration tests that need a realistic-shaped
// corpus without checking in real GPS traces.
package taxidata

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Config tunes a synthetic corpus. Every taxi follows a slow circular
// drift around Center plus per-step jitter, sampled every SampleInterval
// starting at StartTime, so consecutive points land in neighboring grid
// cells the way a real trajectory does.
type Config struct {
	TaxiCount      int
	PointsPerTaxi  int
	Center         [2]float64 // lon, lat
	RadiusDegrees  float64
	SampleInterval time.Duration
	StartTime      time.Time
	Seed           int64
}

// DefaultConfig returns a small corpus centered on central Beijing
// (116.4, 39.9), inside the bounding box used by the density operators.
func DefaultConfig() Config {
	return Config{
		TaxiCount:      20,
		PointsPerTaxi:  200,
		Center:         [2]float64{116.4, 39.9},
		RadiusDegrees:  0.05,
		SampleInterval: 30 * time.Second,
		StartTime:      time.Date(2008, 2, 2, 13, 0, 0, 0, time.UTC),
		Seed:           1,
	}
}

// GenerateCorpus writes cfg.TaxiCount trajectory files into dir, creating
// dir if needed. Taxi ids run 1..TaxiCount. Returns the list of taxi ids
// written, in ascending order.
func GenerateCorpus(dir string, cfg Config) ([]uint64, error) {
	if cfg.TaxiCount <= 0 {
		return nil, fmt.Errorf("taxi count must be positive, got %d", cfg.TaxiCount)
	}
	if cfg.PointsPerTaxi <= 0 {
		return nil, fmt.Errorf("points per taxi must be positive, got %d", cfg.PointsPerTaxi)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory %s: %w", dir, err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	ids := make([]uint64, 0, cfg.TaxiCount)

	for i := 0; i < cfg.TaxiCount; i++ {
		taxiID := uint64(i + 1)
		ids = append(ids, taxiID)

		path := filepath.Join(dir, fmt.Sprintf("%d.txt", taxiID))
		if err := writeTaxiFile(path, taxiID, cfg, rng); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func writeTaxiFile(path string, taxiID uint64, cfg Config, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create taxi file %s: %w", path, err)
	}
	defer f.Close()

	baseAngle := rng.Float64() * 2 * math.Pi
	angularSpeed := (0.5 + rng.Float64()) / 50.0 // radians per sample step
	radius := cfg.RadiusDegrees * (0.3 + 0.7*rng.Float64())

	t := cfg.StartTime
	for i := 0; i < cfg.PointsPerTaxi; i++ {
		angle := baseAngle + float64(i)*angularSpeed
		jitterLon := (rng.Float64() - 0.5) * cfg.RadiusDegrees * 0.05
		jitterLat := (rng.Float64() - 0.5) * cfg.RadiusDegrees * 0.05

		lon := cfg.Center[0] + radius*math.Cos(angle) + jitterLon
		lat := cfg.Center[1] + radius*math.Sin(angle) + jitterLat

		line := fmt.Sprintf("%d,\"%s\",%.6f,%.6f\n", taxiID, t.Format("2006-01-02 15:04:05"), lon, lat)
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("failed to write taxi file %s: %w", path, err)
		}
		t = t.Add(cfg.SampleInterval)
	}
	return nil
}
