// Package resultcache implements the content-addressed JSON result cache
// (spec.md §4.6): each operator gets its own subdirectory, a request is
// canonicalized by sorting its JSON keys and hashed to name the file
// holding the prior response verbatim. Misses compute then best-effort
// write; a write failure is logged and otherwise ignored, never
// propagated to the caller.
package resultcache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/HOWILLMAKEIT/taxiflow/internal/fsutil"
	"github.com/HOWILLMAKEIT/taxiflow/internal/monitoring"
)

// Cache is a directory-backed, content-addressed cache. The zero value is
// not usable; construct with New.
type Cache struct {
	dir  string
	fsys fsutil.FileSystem
}

// New returns a Cache rooted at dir, using the OS filesystem.
func New(dir string) *Cache {
	return &Cache{dir: dir, fsys: fsutil.OSFileSystem{}}
}

// NewWithFS returns a Cache using a caller-supplied filesystem, for tests.
func NewWithFS(dir string, fsys fsutil.FileSystem) *Cache {
	return &Cache{dir: dir, fsys: fsys}
}

// Key canonicalizes req into a stable hash: marshal to JSON, round-trip
// through a map so encoding/json re-emits object keys sorted, then hash
// the result with md5 (the spec's "128-bit content hash").
func Key(req any) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache request: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("failed to canonicalize cache request: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to re-marshal canonical cache request: %w", err)
	}

	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Cache) path(operator, key string) string {
	return filepath.Join(c.dir, operator, key+".json")
}

// Get returns the cached response body for (operator, req), if present.
func (c *Cache) Get(operator string, req any) (data []byte, ok bool) {
	key, err := Key(req)
	if err != nil {
		return nil, false
	}
	data, err = c.fsys.ReadFile(c.path(operator, key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put best-effort writes data as the cached response for (operator, req).
// Failures are logged and swallowed — cache writes never fail a request
// (spec.md §7).
func (c *Cache) Put(operator string, req any, data []byte) {
	key, err := Key(req)
	if err != nil {
		monitoring.Logf("resultcache: failed to key request for %s: %v", operator, err)
		return
	}

	dir := filepath.Join(c.dir, operator)
	if err := c.fsys.MkdirAll(dir, 0755); err != nil {
		monitoring.Logf("resultcache: failed to create cache dir %s: %v", dir, err)
		return
	}
	if err := c.fsys.WriteFile(c.path(operator, key), data, 0644); err != nil {
		monitoring.Logf("resultcache: failed to write cache entry for %s: %v", operator, err)
	}
}
