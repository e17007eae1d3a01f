// Package config carries the offline build/query tuning parameters: grid
// size, mining window sizes, R-tree fanout, the density point cap, and the
// cache root. It follows the teacher's pointer-field, partial-JSON pattern
// (every field optional, `Get*` methods supply the spec's literal default)
// so a config file only needs to mention the values it overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the conventional location of a build defaults file,
// relative to the repo root. The repository ships no file at this path.
const DefaultConfigPath = "config/build.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MiB

// BuildConfig holds tunables for the index build, the mining pipeline, and
// the query engine. Fields left nil fall back to the spec's defaults via
// the corresponding Get* accessor.
type BuildConfig struct {
	GridSizeDegrees *float64 `json:"grid_size_degrees,omitempty"`
	RtreeFanout     *int     `json:"rtree_fanout,omitempty"`
	MiningWindowMin *int     `json:"mining_window_min,omitempty"`
	MiningWindowMax *int     `json:"mining_window_max,omitempty"`
	DensityMaxPoints *int    `json:"density_max_points,omitempty"`
	DensityBatchSize *int    `json:"density_batch_size,omitempty"`
	CacheDir         *string `json:"cache_dir,omitempty"`
	Timezone         *string `json:"timezone,omitempty"`
	PathLengthMinM   *float64 `json:"path_length_min_m,omitempty"`
}

// EmptyBuildConfig returns a config with every field nil, so LoadBuildConfig
// can unmarshal a partial file directly into it.
func EmptyBuildConfig() *BuildConfig {
	return &BuildConfig{}
}

// DefaultBuildConfig returns the literal defaults named in spec.md.
func DefaultBuildConfig() *BuildConfig {
	return &BuildConfig{
		GridSizeDegrees:  ptrFloat64(0.002),
		RtreeFanout:      ptrInt(10),
		MiningWindowMin:  ptrInt(5),
		MiningWindowMax:  ptrInt(16),
		DensityMaxPoints: ptrInt(100000),
		DensityBatchSize: ptrInt(10000),
		CacheDir:         ptrString("cache"),
		Timezone:         ptrString("Asia/Shanghai"),
		PathLengthMinM:   ptrFloat64(100),
	}
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// LoadBuildConfig loads a BuildConfig from a JSON file. The file must have a
// .json extension and be under maxConfigFileSize; fields omitted from the
// file retain nil (and thus their spec default via the Get* accessors).
func LoadBuildConfig(path string) (*BuildConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyBuildConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks any fields that are set for internal consistency.
func (c *BuildConfig) Validate() error {
	if c.GridSizeDegrees != nil && *c.GridSizeDegrees <= 0 {
		return fmt.Errorf("grid_size_degrees must be positive, got %f", *c.GridSizeDegrees)
	}
	if c.RtreeFanout != nil && *c.RtreeFanout < 2 {
		return fmt.Errorf("rtree_fanout must be at least 2, got %d", *c.RtreeFanout)
	}
	if c.MiningWindowMin != nil && c.MiningWindowMax != nil && *c.MiningWindowMin > *c.MiningWindowMax {
		return fmt.Errorf("mining_window_min (%d) must be <= mining_window_max (%d)", *c.MiningWindowMin, *c.MiningWindowMax)
	}
	if c.DensityMaxPoints != nil && *c.DensityMaxPoints <= 0 {
		return fmt.Errorf("density_max_points must be positive, got %d", *c.DensityMaxPoints)
	}
	return nil
}

// GetGridSizeDegrees returns the grid size or the spec default (0.002°).
func (c *BuildConfig) GetGridSizeDegrees() float64 {
	if c.GridSizeDegrees == nil {
		return 0.002
	}
	return *c.GridSizeDegrees
}

// GetRtreeFanout returns the R-tree node fanout hint or the spec default (10).
func (c *BuildConfig) GetRtreeFanout() int {
	if c.RtreeFanout == nil {
		return 10
	}
	return *c.RtreeFanout
}

// GetMiningWindows returns the inclusive [min, max] sliding-window sizes,
// defaulting to the spec's W ∈ {5..16}.
func (c *BuildConfig) GetMiningWindows() (min, max int) {
	min, max = 5, 16
	if c.MiningWindowMin != nil {
		min = *c.MiningWindowMin
	}
	if c.MiningWindowMax != nil {
		max = *c.MiningWindowMax
	}
	return min, max
}

// GetDensityMaxPoints returns the hard cap on points streamed by the
// density operators, or the spec default (100000).
func (c *BuildConfig) GetDensityMaxPoints() int {
	if c.DensityMaxPoints == nil {
		return 100000
	}
	return *c.DensityMaxPoints
}

// GetDensityBatchSize returns the batch size for cooperative cancellation
// while streaming R-tree intersections, or the spec default (10000).
func (c *BuildConfig) GetDensityBatchSize() int {
	if c.DensityBatchSize == nil {
		return 10000
	}
	return *c.DensityBatchSize
}

// GetCacheDir returns the result-cache root directory, or "cache".
func (c *BuildConfig) GetCacheDir() string {
	if c.CacheDir == nil {
		return "cache"
	}
	return *c.CacheDir
}

// GetTimezone returns the configured IANA zone used to interpret naive
// trajectory timestamps, or the default (Asia/Shanghai).
func (c *BuildConfig) GetTimezone() string {
	if c.Timezone == nil {
		return "Asia/Shanghai"
	}
	return *c.Timezone
}

// GetPathLengthMinM returns the minimum path length floor applied to
// frequent-path queries when the caller omits one, or the spec default
// (100m, per original_source/api/F8_frequent_paths_ab.py).
func (c *BuildConfig) GetPathLengthMinM() float64 {
	if c.PathLengthMinM == nil {
		return 100
	}
	return *c.PathLengthMinM
}
