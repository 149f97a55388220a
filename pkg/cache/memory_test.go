package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
	mc := NewMemoryCache(append([]MemoryOption{WithMemoryClock(clock.Now), WithMemoryCleanup(0)}, opts...)...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc, clock
}

func TestMemoryCacheGetDecodesLikeRedis(t *testing.T) {
	ctx := context.Background()
	mc, _ := newTestCache(t)

	type weight struct {
		ID    string  `json:"id"`
		Value float64 `json:"value"`
	}
	require.NoError(t, mc.Set(ctx, "w", []weight{{"momentum", 0.6}}, 0))
	require.NoError(t, mc.Set(ctx, "s", "plain", 0))

	var got []weight
	require.NoError(t, mc.Get(ctx, "w", &got))
	assert.Equal(t, []weight{{"momentum", 0.6}}, got)

	var s string
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	require.NoError(t, mc.Set(ctx, "cooldown:BTCUSDT", "1", 15*time.Minute))
	ok, err := mc.Exists(ctx, "cooldown:BTCUSDT")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(15 * time.Minute)
	ok, err = mc.Exists(ctx, "cooldown:BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	clock.Advance(time.Second)
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	clock.Advance(time.Second)
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.NoError(t, mc.Get(ctx, "c", &s))
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestCache(t)

	ok, err := mc.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = mc.TryLock(ctx, "scan", time.Minute)
	assert.False(t, ok)

	clock.Advance(time.Minute)
	ok, _ = mc.TryLock(ctx, "scan", time.Minute)
	assert.True(t, ok)

	require.NoError(t, mc.Unlock(ctx, "scan"))
	ok, _ = mc.TryLock(ctx, "scan", time.Minute)
	assert.True(t, ok)
}
