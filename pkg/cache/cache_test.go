package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Kind   string    `json:"kind"`
	Values []float64 `json:"values"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisCacheFromClient(client, "test")
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := payload{Kind: "ARIMA", Values: []float64{1, 2, 3}}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))

	var out payload
	require.NoError(t, mc.Get(ctx, "k", &out))
	assert.Equal(t, in, out)

	// mutating the copy must not leak into the cache
	out.Values[0] = 99
	var again payload
	require.NoError(t, mc.Get(ctx, "k", &again))
	assert.Equal(t, 1.0, again.Values[0])

	assert.ErrorIs(t, mc.Get(ctx, "missing", &out), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "short", &s), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

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

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "forecast:ARIMA:1", "x", 0))
	require.NoError(t, mc.Set(ctx, "forecast:GARCH:1", "y", 0))
	require.NoError(t, mc.Set(ctx, "history:all", "z", 0))

	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("forecast")))
	assert.Equal(t, 1, mc.Len())
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	defer rc.Close()

	in := payload{Kind: "VAR", Values: []float64{4.5}}
	require.NoError(t, rc.Set(ctx, "k", in, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	var out payload
	require.NoError(t, rc.Get(ctx, "k", &out))
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "k", &out), ErrCacheMiss)

	require.NoError(t, rc.Set(ctx, "forecast:a", "1", 0))
	require.NoError(t, rc.Set(ctx, "forecast:b", "2", 0))
	require.NoError(t, rc.Set(ctx, "other", "3", 0))
	require.NoError(t, rc.DeleteByPattern(ctx, BuildPattern("forecast")))
	assert.False(t, mr.Exists("test:forecast:a"))
	assert.False(t, mr.Exists("test:forecast:b"))
	assert.True(t, mr.Exists("test:other"))
}

func TestLayeredCachePromotesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	require.NoError(t, rc.Set(ctx, "k", payload{Kind: "GARCH", Values: []float64{0.2}}, time.Hour))

	var out payload
	require.NoError(t, lc.Get(ctx, "k", &out))
	assert.Equal(t, "GARCH", out.Kind)

	// served from L1 once Redis has lost it
	mr.Del("test:k")
	var again payload
	require.NoError(t, lc.Get(ctx, "k", &again))
	assert.Equal(t, out, again)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &again), ErrCacheMiss)
}

func TestHashKeyStable(t *testing.T) {
	assert.Equal(t, HashKey("forecast:ARIMA:30"), HashKey("forecast:ARIMA:30"))
	assert.NotEqual(t, HashKey("forecast:ARIMA:30"), HashKey("forecast:ARIMA:31"))
	assert.Equal(t, "forecast:ARIMA:30", GenerateKeyWithParams("forecast", "ARIMA", 30))
	assert.Equal(t, "forecast:*", BuildPattern("forecast"))
}
