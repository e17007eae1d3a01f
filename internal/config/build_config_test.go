package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBuildConfig(t *testing.T) {
	cfg := DefaultBuildConfig()
	assert.Equal(t, 0.002, cfg.GetGridSizeDegrees())
	assert.Equal(t, 10, cfg.GetRtreeFanout())

	min, max := cfg.GetMiningWindows()
	assert.Equal(t, 5, min)
	assert.Equal(t, 16, max)

	assert.Equal(t, 100000, cfg.GetDensityMaxPoints())
	assert.Equal(t, 10000, cfg.GetDensityBatchSize())
	assert.Equal(t, "cache", cfg.GetCacheDir())
	assert.Equal(t, "Asia/Shanghai", cfg.GetTimezone())
	assert.Equal(t, 100.0, cfg.GetPathLengthMinM())
}

func TestEmptyBuildConfigUsesDefaults(t *testing.T) {
	cfg := EmptyBuildConfig()
	assert.Equal(t, 0.002, cfg.GetGridSizeDegrees())
	assert.Equal(t, 10, cfg.GetRtreeFanout())
	assert.Equal(t, 100000, cfg.GetDensityMaxPoints())
	assert.NoError(t, cfg.Validate())
}

func TestLoadBuildConfigPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"grid_size_degrees": 0.005, "rtree_fanout": 8}`), 0644))

	cfg, err := LoadBuildConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.005, cfg.GetGridSizeDegrees())
	assert.Equal(t, 8, cfg.GetRtreeFanout())
	// Unset fields still fall back to spec defaults.
	assert.Equal(t, 100000, cfg.GetDensityMaxPoints())
}

func TestLoadBuildConfigRejectsNonJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0644))

	_, err := LoadBuildConfig(path)
	assert.Error(t, err)
}

func TestLoadBuildConfigRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	oversized := make([]byte, maxConfigFileSize+1)
	for i := range oversized {
		oversized[i] = ' '
	}
	require.NoError(t, os.WriteFile(path, oversized, 0644))

	_, err := LoadBuildConfig(path)
	assert.Error(t, err)
}

func TestLoadBuildConfigRejectsMissingFile(t *testing.T) {
	_, err := LoadBuildConfig("/nonexistent/build.json")
	assert.Error(t, err)
}

func TestLoadBuildConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rtree_fanout": 1}`), 0644))

	_, err := LoadBuildConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsInvertedMiningWindow(t *testing.T) {
	cfg := EmptyBuildConfig()
	cfg.MiningWindowMin = ptrInt(16)
	cfg.MiningWindowMax = ptrInt(5)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveGridSize(t *testing.T) {
	cfg := EmptyBuildConfig()
	cfg.GridSizeDegrees = ptrFloat64(0)
	assert.Error(t, cfg.Validate())
}
