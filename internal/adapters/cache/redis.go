package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis using SET with expiry.
type RedisCache struct {
	client *redis.Client
	url    string
}

// NewRedis connects lazily to the Redis server at rawURL. The connection is
// not checked here, use Ping.
func NewRedis(_ context.Context, rawURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opt), url: rawURL}, nil
}

// Client exposes the underlying client so other components can share the pool.
func (c *RedisCache) Client() *redis.Client { return c.client }

// URL returns the server URL with any password redacted.
func (c *RedisCache) URL() string { return RedactURL(c.url) }

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats reports DBSIZE and used_memory_human from INFO memory. When INFO is
// unavailable the memory figure is "N/A".
func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	n, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis dbsize: %w", err)
	}
	st := Stats{KeyCount: n, UsedMemory: "N/A"}
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return st, nil //nolint:nilerr // memory figure is best effort
	}
	if v := infoField(info, "used_memory_human"); v != "" {
		st.UsedMemory = v
	}
	return st, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

// infoField extracts one "name:value" line from an INFO reply.
func infoField(info, name string) string {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if ok && k == name {
			return v
		}
	}
	return ""
}

// RedactURL hides the password component of a connection URL.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
