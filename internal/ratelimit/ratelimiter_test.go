package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*NoopLimiter)(nil)
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRedisLimiter_AllowWithDetails(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := NewRedisLimiter(setupTestRedis(t))
		ctx := context.Background()
		limit := 5

		for i := 0; i < 5; i++ {
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "10.0.0.1", limit)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, limit-i-1, remaining)
			assert.False(t, resetAt.IsZero())
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewRedisLimiter(setupTestRedis(t))
		ctx := context.Background()
		limit := 3

		for i := 0; i < 3; i++ {
			allowed, _, _, err := limiter.AllowWithDetails(ctx, "10.0.0.2", limit)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "10.0.0.2", limit)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
		assert.False(t, resetAt.IsZero())

		// rejected requests do not consume budget
		usage, err := limiter.GetCurrentUsage(ctx, "10.0.0.2")
		require.NoError(t, err)
		assert.Equal(t, int64(3), usage)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		limiter := NewRedisLimiter(setupTestRedis(t))
		ctx := context.Background()

		for i := 0; i < 100; i++ {
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "10.0.0.3", 0)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, -1, remaining)
			assert.True(t, resetAt.IsZero())
		}
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewRedisLimiter(setupTestRedis(t))
		clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
		limiter.now = clock.Now
		ctx := context.Background()

		allowed, _, resetAt, err := limiter.AllowWithDetails(ctx, "10.0.0.4", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, clock.Now().Add(Window).UnixMilli(), resetAt.UnixMilli())

		clock.Advance(30 * time.Second)
		allowed, _, _, err = limiter.AllowWithDetails(ctx, "10.0.0.4", 2)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _, _, err = limiter.AllowWithDetails(ctx, "10.0.0.4", 2)
		require.NoError(t, err)
		assert.False(t, allowed)

		// the first request leaves the window
		clock.Advance(31 * time.Second)
		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "10.0.0.4", 2)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewRedisLimiter(setupTestRedis(t))
		ctx := context.Background()

		allowed, _, _, err := limiter.AllowWithDetails(ctx, "a", 1)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, _, _, err = limiter.AllowWithDetails(ctx, "b", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRedisLimiter_GetCurrentUsage(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t))
	ctx := context.Background()

	usage, err := limiter.GetCurrentUsage(ctx, "usage")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)

	for i := 0; i < 3; i++ {
		_, _, _, err := limiter.AllowWithDetails(ctx, "usage", 10)
		require.NoError(t, err)
	}

	usage, err = limiter.GetCurrentUsage(ctx, "usage")
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t))
	ctx := context.Background()
	limit := 2

	for i := 0; i < 2; i++ {
		allowed, _, _, err := limiter.AllowWithDetails(ctx, "reset", limit)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _, _, err := limiter.AllowWithDetails(ctx, "reset", limit)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "reset"))

	allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "reset", limit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, limit-1, remaining)
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	limiter := NewRedisLimiter(client)
	allowed, _, _, err := limiter.AllowWithDetails(context.Background(), "x", 5)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestLocalLimiter(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLocalLimiter()
	limiter.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _, err := limiter.AllowWithDetails(ctx, "ip", 3)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3-i-1, remaining)
	}

	allowed, remaining, resetAt, err := limiter.AllowWithDetails(ctx, "ip", 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.True(t, resetAt.After(clock.Now()))

	// one token every 20s at 3 per minute
	clock.Advance(20 * time.Second)
	allowed, _, _, err = limiter.AllowWithDetails(ctx, "ip", 3)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _, err = limiter.AllowWithDetails(ctx, "other-ip", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocalLimiter_Unlimited(t *testing.T) {
	limiter := NewLocalLimiter()
	allowed, remaining, resetAt, err := limiter.AllowWithDetails(context.Background(), "ip", 0)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, -1, remaining)
	assert.True(t, resetAt.IsZero())
}

func TestLocalLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLocalLimiter()
	limiter.now = clock.Now
	ctx := context.Background()

	_, _, _, err := limiter.AllowWithDetails(ctx, "idle", 5)
	require.NoError(t, err)

	clock.Advance(11 * time.Minute)
	_, _, _, err = limiter.AllowWithDetails(ctx, "fresh", 5)
	require.NoError(t, err)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.buckets, "idle")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestNoopLimiter(t *testing.T) {
	limiter := NewNoopLimiter()
	for i := 0; i < 100; i++ {
		allowed, remaining, _, err := limiter.AllowWithDetails(context.Background(), "any-key", 1)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, -1, remaining)
	}
}
