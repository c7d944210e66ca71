package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/provenance/internal/model"
)

func TestKey_StableAndPrefixed(t *testing.T) {
	a := Key("facts", "artist-1")
	assert.Equal(t, a, Key("facts", "artist-1"))
	assert.NotEqual(t, a, Key("facts", "artist-2"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Contains(t, a, keyPrefix)
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("facts", "artist-1")
	require.NoError(t, c.Set(ctx, key, []byte(`[1,2]`), 0))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte(`[1,2]`), got)

	require.NoError(t, c.Set(ctx, key, []byte(`old`), -time.Second))
	_, ok = c.Get(ctx, key)
	assert.False(t, ok, "expired entries are misses")

	_, err := os.Stat(c.path(key))
	assert.True(t, os.IsNotExist(err), "expired entries are removed")

	assert.NoError(t, c.Delete(ctx, key), "deleting a missing entry is not an error")
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("{not json"), 0644))
	_, ok := c.Get(ctx, "bad")
	assert.False(t, ok)
}

func TestLayeredCache_PromotesHits(t *testing.T) {
	ctx := context.Background()
	fast := NewMemoryCache(time.Minute, time.Minute)
	slow := NewDiskCache(t.TempDir(), time.Hour)
	layered := NewLayeredCache(fast, slow)

	require.NoError(t, slow.Set(ctx, "k", []byte("v"), 0))

	got, ok := layered.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	promoted, ok := fast.Get(ctx, "k")
	require.True(t, ok, "hit from the slow layer is promoted")
	assert.Equal(t, []byte("v"), promoted)

	require.NoError(t, layered.Delete(ctx, "k"))
	_, ok = slow.Get(ctx, "k")
	assert.False(t, ok)
	_, ok = fast.Get(ctx, "k")
	assert.False(t, ok)
}

func TestFactCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	fc := NewFactCache(NewMemoryCache(time.Minute, time.Minute), time.Minute, nil)

	facts := []model.FactResult{
		model.ValidFact{Type: model.ClaimTypeBirthDate, Value: "1963-06-18", Confidence: 0.9, Status: model.FactStatusVerified},
		model.ConflictingFact{Type: model.ClaimTypeBirthplace, Values: []model.ConflictValue{{Value: "Detroit"}, {Value: "Chicago"}}},
		model.UnverifiedFact{Type: model.ClaimTypeAlias},
	}
	fc.Set(ctx, "artist-1", facts)

	got, ok := fc.Get(ctx, "artist-1")
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.Equal(t, facts[0], got[0])
	assert.IsType(t, model.ConflictingFact{}, got[1])
	assert.IsType(t, model.UnverifiedFact{}, got[2])

	fc.Invalidate(ctx, "artist-1")
	_, ok = fc.Get(ctx, "artist-1")
	assert.False(t, ok)
}

func TestFactCache_UndecodableEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryCache(time.Minute, time.Minute)
	fc := NewFactCache(mem, time.Minute, nil)

	require.NoError(t, mem.Set(ctx, factsKey("artist-1"), []byte(`[{"kind":"mystery","fact":{}}]`), 0))

	_, ok := fc.Get(ctx, "artist-1")
	assert.False(t, ok)
	_, ok = mem.Get(ctx, factsKey("artist-1"))
	assert.False(t, ok)
}

func TestNew_Disabled(t *testing.T) {
	c, err := New(context.Background(), model.CacheConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)
}

func TestNew_MemoryAndDisk(t *testing.T) {
	c, err := New(context.Background(), model.CacheConfig{Enabled: true, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LayeredCache{}, c)
}

func TestRedisCache_Integration(t *testing.T) {
	url := os.Getenv("PROVENANCE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PROVENANCE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	rc, err := NewRedisCache(ctx, url, time.Minute)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	key := Key("test", t.Name())
	require.NoError(t, rc.Set(ctx, key, []byte("v"), 0))
	got, ok := rc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	require.NoError(t, rc.Delete(ctx, key))
	_, ok = rc.Get(ctx, key)
	assert.False(t, ok)
}
