package resultcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/fsutil"
)

type testRequest struct {
	B int    `json:"b"`
	A string `json:"a"`
}

func TestKeyIsStableAcrossFieldOrder(t *testing.T) {
	k1, err := Key(testRequest{A: "x", B: 1})
	require.NoError(t, err)
	k2, err := Key(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersForDifferentRequests(t *testing.T) {
	k1, _ := Key(testRequest{A: "x", B: 1})
	k2, _ := Key(testRequest{A: "x", B: 2})
	assert.NotEqual(t, k1, k2)
}

func TestPutThenGetHit(t *testing.T) {
	c := NewWithFS("cache", fsutil.NewMemoryFileSystem())
	req := testRequest{A: "region", B: 7}

	_, ok := c.Get("region_count", req)
	assert.False(t, ok)

	c.Put("region_count", req, []byte(`{"total":3}`))

	data, ok := c.Get("region_count", req)
	require.True(t, ok)
	assert.Equal(t, `{"total":3}`, string(data))
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := NewWithFS("cache", fsutil.NewMemoryFileSystem())
	_, ok := c.Get("region_count", testRequest{A: "none", B: 0})
	assert.False(t, ok)
}

func TestPutIsIdempotentForIdenticalRequests(t *testing.T) {
	c := NewWithFS("cache", fsutil.NewMemoryFileSystem())
	req := testRequest{A: "x", B: 1}
	c.Put("op", req, []byte("first"))
	c.Put("op", req, []byte("second"))

	data, ok := c.Get("op", req)
	require.True(t, ok)
	assert.Equal(t, "second", string(data))
}

func TestDifferentOperatorsAreIsolated(t *testing.T) {
	c := NewWithFS("cache", fsutil.NewMemoryFileSystem())
	req := testRequest{A: "x", B: 1}
	c.Put("op_a", req, []byte("a-value"))

	_, ok := c.Get("op_b", req)
	assert.False(t, ok)
}
