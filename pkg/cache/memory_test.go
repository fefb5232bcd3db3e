package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	in := []bar{{Date: "2024-06-13", Close: 149.5}, {Date: "2024-06-14", Close: 150}}
	require.NoError(t, mc.Set(ctx, "AAPL", in, time.Minute))

	var out []bar
	require.NoError(t, mc.Get(ctx, "AAPL", &out))
	assert.Equal(t, in, out)

	var s string
	require.NoError(t, mc.Set(ctx, "plain", "hello", time.Minute))
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "hello", s)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var out []bar
	assert.ErrorIs(t, mc.Get(ctx, "missing", &out), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", []bar{{Close: 1}}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &out), ErrCacheMiss)

	ok, err := mc.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCache_OverwriteDoesNotEvict(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", "3", time.Minute))

	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Get(ctx, "b", &s))
	assert.Equal(t, "3", s)
}

func TestLayeredCache_PromotesFromL2(t *testing.T) {
	l2 := NewMemoryCache()
	lc := NewLayeredCache(l2, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "MSFT", []bar{{Close: 420}}, time.Hour))

	var out []bar
	require.NoError(t, lc.Get(ctx, "MSFT", &out))
	assert.Equal(t, []bar{{Close: 420}}, out)

	require.NoError(t, l2.Delete(ctx, "MSFT"))
	out = nil
	require.NoError(t, lc.Get(ctx, "MSFT", &out), "served from L1 after promotion")
	assert.Equal(t, []bar{{Close: 420}}, out)

	require.NoError(t, lc.Delete(ctx, "MSFT"))
	assert.ErrorIs(t, lc.Get(ctx, "MSFT", &out), ErrCacheMiss)
}
