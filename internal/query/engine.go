package query

import (
	"encoding/json"
	"os"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/config"
	"github.com/HOWILLMAKEIT/taxiflow/internal/resultcache"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
)

// Engine holds the read-only handles shared by every operator call: the
// R-tree basename, the trajectory directory ShortestTravelTime re-reads
// from, the result cache, the timezone the trajectory files were written
// in, and the BuildConfig-sourced tunables the density and frequent-path
// operators need (spec.md §5). Per spec.md §5, an operator opens its own
// index/store handles for the duration of one call rather than holding
// them open across calls — Engine only remembers the paths needed to do
// so.
type Engine struct {
	IndexBasename string
	PathStorePath string
	TrajectoryDir string
	Cache         *resultcache.Cache
	Loc           *time.Location

	// DensityMaxPoints and DensityBatchSize bound the density_grid and
	// density_timeseries scans (BuildConfig.GetDensityMaxPoints/
	// GetDensityBatchSize). PathLengthMin is the minimum path length
	// floor FrequentPaths applies when a caller omits one
	// (BuildConfig.GetPathLengthMinM).
	DensityMaxPoints int
	DensityBatchSize int
	PathLengthMin    float64
}

// NewEngine returns an Engine over the given index basename, path-store
// file, and trajectory directory, using the spec's literal tunable
// defaults. cacheDir may be empty to disable result caching
// (BuildConfig.CacheDir defaults it to "cache"). Callers that need a
// BuildConfig's overrides applied should use NewEngineWithConfig instead.
func NewEngine(indexBasename, pathStorePath, trajectoryDir, cacheDir string, loc *time.Location) *Engine {
	return newEngine(indexBasename, pathStorePath, trajectoryDir, cacheDir, loc, config.DefaultBuildConfig())
}

// NewEngineWithConfig returns an Engine whose cache directory, density
// scan bounds, and frequent-path length floor come from cfg — the way
// cmd/query and cmd/densityviz load the tuning a config file overrides.
func NewEngineWithConfig(indexBasename, pathStorePath, trajectoryDir string, cfg *config.BuildConfig, loc *time.Location) *Engine {
	return newEngine(indexBasename, pathStorePath, trajectoryDir, cfg.GetCacheDir(), loc, cfg)
}

func newEngine(indexBasename, pathStorePath, trajectoryDir, cacheDir string, loc *time.Location, cfg *config.BuildConfig) *Engine {
	var cache *resultcache.Cache
	if cacheDir != "" {
		cache = resultcache.New(cacheDir)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		IndexBasename:    indexBasename,
		PathStorePath:    pathStorePath,
		TrajectoryDir:    trajectoryDir,
		Cache:            cache,
		Loc:              loc,
		DensityMaxPoints: cfg.GetDensityMaxPoints(),
		DensityBatchSize: cfg.GetDensityBatchSize(),
		PathLengthMin:    cfg.GetPathLengthMinM(),
	}
}

// openIndex opens the engine's R-tree, translating a missing-file error
// into the typed IndexMissing kind (spec.md §7).
func (e *Engine) openIndex() (*rtree.Index, *Error) {
	if _, err := os.Stat(e.IndexBasename + ".rtnode"); err != nil {
		if os.IsNotExist(err) {
			return nil, newErr(IndexMissing, "r-tree index %q does not exist; run build-index first", e.IndexBasename)
		}
		return nil, wrapErr(IoError, err, "failed to stat r-tree index %q", e.IndexBasename)
	}

	idx, err := rtree.Open(e.IndexBasename)
	if err != nil {
		return nil, wrapErr(IoError, err, "failed to open r-tree index %q", e.IndexBasename)
	}
	return idx, nil
}

// cacheGet is a generic-free helper: callers pass a pointer to their
// response struct; it is populated from the cache on a hit.
func (e *Engine) cacheGet(operator string, req any, out any) bool {
	if e.Cache == nil {
		return false
	}
	data, ok := e.Cache.Get(operator, req)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	return true
}

func (e *Engine) cachePut(operator string, req any, resp any) {
	if e.Cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	e.Cache.Put(operator, req, data)
}
