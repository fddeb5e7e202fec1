// Package cache stores upstream JSON responses with a time to live.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/okian/bookfinder/internal/config"
)

// Sentinel errors for this package.
var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	ErrClosed         = errors.New("cache closed")
)

// Stats describes the contents of a cache backend.
type Stats struct {
	KeyCount   int64
	UsedMemory string
}

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Stats reports key count and memory use.
	Stats(ctx context.Context) (Stats, error)
	// Name is the backend name used in logs and metrics.
	Name() string
	Close() error
}

// Sweeper is implemented by backends that need expired entries removed
// periodically. Redis expires keys on its own.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Key derives a cache key from a URL and its query parameters. Empty values
// are ignored and parameters are sorted, so equivalent requests share a key.
func Key(rawURL string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	sum := sha256.Sum256([]byte(rawURL + "?" + q.Encode()))
	return hex.EncodeToString(sum[:])
}

// New builds the backend selected by cfg. It returns (nil, nil) when caching
// is disabled.
func New(ctx context.Context, cfg *config.Config) (Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheNone:
		return nil, nil //nolint:nilnil // nil cache means disabled
	case config.CacheRedis:
		c, err := NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.CacheMemory:
		return NewMemory(WithMaxEntries(cfg.MemoryCacheSize)), nil
	case config.CacheSQLite:
		c, err := NewSQLite(ctx, cfg.CachePath)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.CacheBackend)
	}
}
