package clientcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub.app/config"
)

func testConfig(t *testing.T) *config.ClientCacheConfig {
	t.Helper()
	return &config.ClientCacheConfig{
		Dir:                  t.TempDir(),
		DurableFile:          "durable.db",
		LargeObjectThreshold: 1024,
	}
}

func newTestCache(t *testing.T) *TieredCache {
	t.Helper()

	cache, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

type profile struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func TestTieredCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("user:u1", profile{Name: "Dana", Role: "admin"}, Options{
		Category: CategoryUser,
		TTL:      time.Minute,
	}))

	var got profile
	assert.True(t, cache.Get("user:u1", &got))
	assert.Equal(t, profile{Name: "Dana", Role: "admin"}, got)

	assert.False(t, cache.Get("user:unknown", &got))
}

func TestTieredCache_TierPlacement(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("volatile-key", profile{Name: "a"}, Options{
		Category: CategoryUser, TTL: time.Minute,
	}))
	require.NoError(t, cache.Set("durable-key", profile{Name: "b"}, Options{
		Category: CategorySettings, TTL: time.Minute, Persistent: true,
	}))
	require.NoError(t, cache.Set("big-key", strings.Repeat("x", 2048), Options{
		Category: CategoryMessage, TTL: time.Minute,
	}))
	require.NoError(t, cache.Set("forced-key", profile{Name: "c"}, Options{
		Category: CategoryUser, TTL: time.Minute, ForceLargeObject: true,
	}))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Volatile.Entries)
	assert.Equal(t, 1, stats.Durable.Entries)
	assert.Equal(t, 2, stats.LargeObject.Entries)

	// oversized payloads bypass the persistent flag
	require.NoError(t, cache.Set("big-persistent", strings.Repeat("y", 2048), Options{
		Category: CategorySettings, TTL: time.Minute, Persistent: true,
	}))
	stats = cache.Stats()
	assert.Equal(t, 1, stats.Durable.Entries)
	assert.Equal(t, 3, stats.LargeObject.Entries)
}

func TestTieredCache_ResetMovesEntryBetweenTiers(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("k", profile{Name: "v1"}, Options{
		Category: CategoryUser, TTL: time.Minute,
	}))
	require.NoError(t, cache.Set("k", profile{Name: "v2"}, Options{
		Category: CategoryUser, TTL: time.Minute, Persistent: true,
	}))

	stats := cache.Stats()
	assert.Equal(t, 0, stats.Volatile.Entries)
	assert.Equal(t, 1, stats.Durable.Entries)

	var got profile
	require.True(t, cache.Get("k", &got))
	assert.Equal(t, "v2", got.Name)
}

func TestTieredCache_ExpiryEnforcedOnRead(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("volatile-short", profile{Name: "a"}, Options{
		Category: CategoryUser, TTL: 30 * time.Millisecond,
	}))
	require.NoError(t, cache.Set("durable-short", profile{Name: "b"}, Options{
		Category: CategoryUser, TTL: 30 * time.Millisecond, Persistent: true,
	}))
	require.NoError(t, cache.Set("blob-short", profile{Name: "c"}, Options{
		Category: CategoryUser, TTL: 30 * time.Millisecond, ForceLargeObject: true,
	}))

	time.Sleep(80 * time.Millisecond)

	var got profile
	assert.False(t, cache.Get("volatile-short", &got))
	assert.False(t, cache.Get("durable-short", &got))
	assert.False(t, cache.Get("blob-short", &got))

	// expired entries were evicted, not just hidden
	assert.Empty(t, cache.Keys())
}

func TestTieredCache_Remove(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("k", profile{Name: "v"}, Options{
		Category: CategoryUser, TTL: time.Minute, Persistent: true,
	}))
	cache.Remove("k")

	var got profile
	assert.False(t, cache.Get("k", &got))
}

func TestTieredCache_ClearByCategory(t *testing.T) {
	cache := newTestCache(t)

	// task entries spread across all three tiers
	require.NoError(t, cache.Set("task:volatile", profile{Name: "a"}, Options{
		Category: CategoryTask, TTL: time.Minute,
	}))
	require.NoError(t, cache.Set("task:durable", profile{Name: "b"}, Options{
		Category: CategoryTask, TTL: time.Minute, Persistent: true,
	}))
	require.NoError(t, cache.Set("task:blob", profile{Name: "c"}, Options{
		Category: CategoryTask, TTL: time.Minute, ForceLargeObject: true,
	}))

	// team entries that must survive
	require.NoError(t, cache.Set("team:volatile", profile{Name: "d"}, Options{
		Category: CategoryTeam, TTL: time.Minute,
	}))
	require.NoError(t, cache.Set("team:durable", profile{Name: "e"}, Options{
		Category: CategoryTeam, TTL: time.Minute, Persistent: true,
	}))

	removed := cache.ClearByCategory(CategoryTask)
	assert.Equal(t, 3, removed)

	var got profile
	assert.False(t, cache.Get("task:volatile", &got))
	assert.False(t, cache.Get("task:durable", &got))
	assert.False(t, cache.Get("task:blob", &got))

	assert.True(t, cache.Get("team:volatile", &got))
	assert.True(t, cache.Get("team:durable", &got))
}

func TestTieredCache_ClearAllAndKeys(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("a", 1, Options{Category: CategoryUser, TTL: time.Minute}))
	require.NoError(t, cache.Set("b", 2, Options{Category: CategoryTeam, TTL: time.Minute, Persistent: true}))
	require.NoError(t, cache.Set("c", 3, Options{Category: CategoryTask, TTL: time.Minute, ForceLargeObject: true}))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, cache.Keys())

	cache.ClearAll()
	assert.Empty(t, cache.Keys())
}

func TestTieredCache_DurableTierSurvivesReopen(t *testing.T) {
	cfg := testConfig(t)

	cache, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, cache.Set("settings:u1", profile{Name: "dark-mode"}, Options{
		Category: CategorySettings, TTL: time.Hour, Persistent: true,
	}))
	require.NoError(t, cache.Set("session-only", profile{Name: "gone"}, Options{
		Category: CategoryUser, TTL: time.Hour,
	}))
	require.NoError(t, cache.Close())

	reopened, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	var got profile
	assert.True(t, reopened.Get("settings:u1", &got))
	assert.Equal(t, "dark-mode", got.Name)

	// the volatile tier is session-scoped
	assert.False(t, reopened.Get("session-only", &got))
}

func TestTieredCache_EmptyKeyRejected(t *testing.T) {
	cache := newTestCache(t)

	err := cache.Set("", profile{}, Options{Category: CategoryUser, TTL: time.Minute})
	assert.Error(t, err)

	// whitespace-only keys are empty too
	err = cache.Set("   ", profile{}, Options{Category: CategoryUser, TTL: time.Minute})
	assert.Error(t, err)
}

func TestTieredCache_UnknownCategoryRejected(t *testing.T) {
	cache := newTestCache(t)

	err := cache.Set("k", profile{}, Options{Category: Category("weather"), TTL: time.Minute})
	assert.Error(t, err)
}

func TestTieredCache_GetOrDefault(t *testing.T) {
	cache := newTestCache(t)

	fallback := profile{Name: "Guest", Role: "viewer"}

	var got profile
	assert.False(t, cache.GetOrDefault("user:missing", &got, fallback))
	assert.Equal(t, fallback, got)

	require.NoError(t, cache.Set("user:u1", profile{Name: "Dana", Role: "admin"}, Options{
		Category: CategoryUser, TTL: time.Minute,
	}))
	assert.True(t, cache.GetOrDefault("user:u1", &got, fallback))
	assert.Equal(t, "Dana", got.Name)
}

func TestTieredCache_GetOrDefaultOnExpiredEntry(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.Set("user:u1", profile{Name: "Dana"}, Options{
		Category: CategoryUser, TTL: 30 * time.Millisecond,
	}))
	time.Sleep(80 * time.Millisecond)

	fallback := profile{Name: "Guest"}
	var got profile
	assert.False(t, cache.GetOrDefault("user:u1", &got, fallback))
	assert.Equal(t, "Guest", got.Name)
}

func TestTieredCache_ClearAllDropsCorruptBlobFiles(t *testing.T) {
	cfg := testConfig(t)
	cache, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, cache.Set("blob-key", profile{Name: "a"}, Options{
		Category: CategoryUser, TTL: time.Minute, ForceLargeObject: true,
	}))

	blobDir := filepath.Join(cfg.Dir, "blobs")
	corrupt := filepath.Join(blobDir, "deadbeef"+blobExtension)
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	cache.ClearAll()

	files, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	assert.Empty(t, files, "clear should also drop undecodable envelope files")
}
