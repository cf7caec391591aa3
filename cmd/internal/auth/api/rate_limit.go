package authapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts failed attempts per key within a fixed window. Check does
// not count; only Fail does, so successful attempts never use up the budget.
type Limiter interface {
	// Check reports whether key is still under max failures. When it is not,
	// retryAfter says how long until the window resets.
	Check(ctx context.Context, key string, max int) (allowed bool, retryAfter time.Duration, err error)
	// Fail records one failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset forgets the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

// NoopLimiter allows everything. It is used when Redis is not configured.
type NoopLimiter struct{}

func (NoopLimiter) Check(context.Context, string, int) (bool, time.Duration, error) {
	return true, 0, nil
}
func (NoopLimiter) Fail(context.Context, string) error  { return nil }
func (NoopLimiter) Reset(context.Context, string) error { return nil }

// RedisLimiter keeps fixed-window failure counters shared by every process
// using the same Redis. The window starts at a key's first failure.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
}

// NewRedisLimiter counts failures per key over window.
func NewRedisLimiter(client redis.UniversalClient, window time.Duration) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("authapi: nil redis client")
	}
	if window <= 0 {
		return nil, errors.New("authapi: limiter window must be positive")
	}
	return &RedisLimiter{client: client, prefix: "ratelimit:", window: window}, nil
}

func (l *RedisLimiter) Check(ctx context.Context, key string, max int) (bool, time.Duration, error) {
	if max <= 0 {
		return true, 0, nil
	}
	k := l.prefix + key

	var (
		count *redis.StringCmd
		ttl   *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		count = p.Get(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}

	n, err := count.Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	case n < int64(max):
		return true, 0, nil
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = l.window
	}
	return false, remaining, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) error {
	k := l.prefix + key

	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return err
	}

	// First failure of a window (or a key that lost its TTL): start the window.
	if ttl.Val() < 0 {
		return l.client.PExpire(ctx, k, l.window).Err()
	}
	return nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
