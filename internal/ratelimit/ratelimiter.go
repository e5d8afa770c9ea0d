// Package ratelimit enforces per-client request limits over a one minute
// window, shared through Redis or local to the process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Window is the length of the rate limit window.
const Window = time.Minute

// Limiter decides whether a request identified by key may proceed. A limit
// of 0 or less means unlimited, reported as remaining -1 and zero resetAt.
type Limiter interface {
	AllowWithDetails(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) AllowWithDetails(context.Context, string, int) (bool, int, time.Time, error) {
	return true, -1, time.Time{}, nil
}

// slidingWindowScript trims the window, admits the request if there is
// room and reports the remaining budget and the reset time in ms.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		count = count + 1
		allowed = 1
	end
	redis.call('PEXPIRE', key, window * 2)

	local reset = now + window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] then
		reset = tonumber(oldest[2]) + window
	end

	return {allowed, limit - count, reset}
`)

// RedisLimiter implements a distributed sliding window using Redis sorted
// sets. Rejected requests do not consume budget.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:", now: time.Now}
}

func (rl *RedisLimiter) key(id string) string {
	return rl.prefix + id
}

// AllowWithDetails implements Limiter.
func (rl *RedisLimiter) AllowWithDetails(ctx context.Context, id string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := rl.now().UnixMilli()
	member := fmt.Sprintf("%d:%s", now, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, rl.client,
		[]string{rl.key(id)},
		now, Window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check returned %d values", len(res))
	}

	return res[0] == 1, int(res[1]), time.UnixMilli(res[2]), nil
}

// GetCurrentUsage returns the request count in the current window
func (rl *RedisLimiter) GetCurrentUsage(ctx context.Context, id string) (int64, error) {
	key := rl.key(id)
	windowStart := rl.now().Add(-Window)

	if err := rl.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}
	return count, nil
}

// Reset clears the window of a key
func (rl *RedisLimiter) Reset(ctx context.Context, id string) error {
	return rl.client.Del(ctx, rl.key(id)).Err()
}

// LocalLimiter is an in-process token bucket per key refilling limit
// tokens per Window. Idle buckets are evicted.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	now       func() time.Time
	idleTTL   time.Duration
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// NewLocalLimiter creates a process-local limiter
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		idleTTL: 10 * time.Minute,
	}
}

// AllowWithDetails implements Limiter.
func (l *LocalLimiter) AllowWithDetails(_ context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(Window/time.Duration(limit)), limit),
			limit:   limit,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	interval := Window / time.Duration(limit)
	missing := float64(limit) - tokens
	resetAt := now.Add(time.Duration(missing * float64(interval)))
	return allowed, remaining, resetAt, nil
}

func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < Window {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}
