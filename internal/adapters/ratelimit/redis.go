package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisOption applies a configuration option to the RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithRedisClock replaces time.Now, for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// RedisLimiter counts requests in fixed windows shared by every replica.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis uses client for counters. The client is owned by the caller.
func NewRedis(client *redis.Client, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{client: client, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) Name() string { return "redis" }

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if err := validate(limit, window); err != nil {
		return Decision{}, err
	}
	now := l.now()
	slot := now.UnixNano() / int64(window)
	windowEnd := time.Unix(0, (slot+1)*int64(window))
	counter := keyPrefix + key + ":" + strconv.FormatInt(slot, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	if count > limit {
		return Decision{Limit: limit, RetryAfter: windowEnd.Sub(now)}, nil
	}
	return Decision{Allowed: true, Limit: limit, Remaining: limit - count}, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (l *RedisLimiter) Close() error { return nil }
