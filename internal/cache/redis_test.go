package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-consent/internal/cache"
	"github.com/oggyb/muzz-consent/internal/config"
)

func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestDailyLikes_MissSetInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)
	day := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	_, cached, err := c.GetDailyLikes(ctx, 7, day)
	require.NoError(t, err)
	assert.False(t, cached)

	// invalidating a cold key is a no-op
	require.NoError(t, c.InvalidateDailyLikes(ctx, 7, day))

	require.NoError(t, c.SetDailyLikes(ctx, 7, day, 2))
	n, cached, err := c.GetDailyLikes(ctx, 7, day)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.InvalidateDailyLikes(ctx, 7, day))
	assert.False(t, mr.Exists(c.KeyForDailyLikes(7, day)))

	_, cached, err = c.GetDailyLikes(ctx, 7, day)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestDailyLikes_KeyIsPerDay(t *testing.T) {
	c, _ := setupCache(t)
	d1 := time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)
	d2 := d1.Add(2 * time.Minute)

	assert.Equal(t, "quota:likes:7:20261015", c.KeyForDailyLikes(7, d1))
	assert.Equal(t, "quota:likes:7:20261016", c.KeyForDailyLikes(7, d2))
}

func TestLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	token, err := c.AcquireLock(ctx, "batcher:lock:match", time.Minute)
	require.NoError(t, err)

	_, err = c.AcquireLock(ctx, "batcher:lock:match", time.Minute)
	assert.ErrorIs(t, err, cache.ErrLockHeld)

	// a stale token must not release someone else's lock
	require.NoError(t, c.ReleaseLock(ctx, "batcher:lock:match", "stale"))
	assert.True(t, mr.Exists("batcher:lock:match"))

	require.NoError(t, c.ReleaseLock(ctx, "batcher:lock:match", token))
	assert.False(t, mr.Exists("batcher:lock:match"))
}

func TestLock_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t)

	_, err := c.AcquireLock(ctx, "batcher:lock:message", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = c.AcquireLock(ctx, "batcher:lock:message", time.Minute)
	assert.NoError(t, err)
}
