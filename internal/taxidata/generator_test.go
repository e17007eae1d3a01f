package taxidata

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/trajectory"
)

func TestGenerateCorpusWritesOneFilePerTaxi(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		TaxiCount:      3,
		PointsPerTaxi:  10,
		Center:         [2]float64{116.4, 39.9},
		RadiusDegrees:  0.02,
		SampleInterval: 10 * time.Second,
		StartTime:      time.Date(2008, 2, 2, 13, 0, 0, 0, time.UTC),
		Seed:           42,
	}

	ids, err := GenerateCorpus(dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	for _, id := range ids {
		path := filepath.Join(dir, fmt.Sprintf("%d.txt", id))
		points, _, rerr := trajectory.ReadFile(path, time.UTC)
		require.NoError(t, rerr)
		assert.Len(t, points, cfg.PointsPerTaxi)
		for _, p := range points {
			assert.Equal(t, id, p.TaxiID)
		}
	}
}

func TestGenerateCorpusRejectsInvalidCounts(t *testing.T) {
	dir := t.TempDir()
	_, err := GenerateCorpus(dir, Config{TaxiCount: 0, PointsPerTaxi: 10})
	assert.Error(t, err)

	_, err = GenerateCorpus(dir, Config{TaxiCount: 1, PointsPerTaxi: 0})
	assert.Error(t, err)
}

func TestGenerateCorpusIsDeterministicForSameSeed(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	cfg := DefaultConfig()
	cfg.TaxiCount = 2
	cfg.PointsPerTaxi = 5

	_, err := GenerateCorpus(dirA, cfg)
	require.NoError(t, err)
	_, err = GenerateCorpus(dirB, cfg)
	require.NoError(t, err)

	pointsA, _, err := trajectory.ReadFile(filepath.Join(dirA, "1.txt"), time.UTC)
	require.NoError(t, err)
	pointsB, _, err := trajectory.ReadFile(filepath.Join(dirB, "1.txt"), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, pointsA, pointsB)
}
