package cache

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 50_000

// MemoryOption applies a configuration option to the MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMaxEntries bounds the number of stored entries. If maxEntries <= 0 the
// cache is unbounded and only expiry removes entries.
func WithMaxEntries(maxEntries int) MemoryOption {
	return func(c *MemoryCache) {
		c.maxEntries = maxEntries
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// entry is a cached value with its own deadline. Upstream responses carry
// different TTLs, so expiry is tracked per entry rather than per cache.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a process-local LRU cache. Reads refresh recency, and when
// full the least recently used entry is evicted first.
type MemoryCache struct {
	items      *lru.Cache[string, entry]
	maxEntries int
	bytes      atomic.Int64 // total size of stored values
	closed     atomic.Bool
	now        func() time.Time
}

// NewMemory creates a memory cache with configuration options.
func NewMemory(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	size := c.maxEntries
	if size <= 0 {
		size = math.MaxInt32
	}
	items, err := lru.NewWithEvict(size, func(_ string, e entry) {
		c.bytes.Add(-int64(len(e.value)))
	})
	if err != nil {
		// Only a non-positive size fails, which is ruled out above.
		panic(fmt.Sprintf("cache: lru: %v", err))
	}
	c.items = items
	return c
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.closed.Load() {
		return nil, false, ErrClosed
	}
	e, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.items.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	// Remove first so the eviction callback accounts for the old value.
	c.items.Remove(key)
	c.bytes.Add(int64(len(buf)))
	c.items.Add(key, entry{value: buf, expiresAt: c.now().Add(ttl)})
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *MemoryCache) Sweep(_ context.Context) (int64, error) {
	now := c.now()
	var removed int64
	for _, key := range c.items.Keys() {
		e, ok := c.items.Peek(key)
		if ok && !now.Before(e.expiresAt) && c.items.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

func (c *MemoryCache) Ping(_ context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Stats reports entry count and the size of stored values.
func (c *MemoryCache) Stats(_ context.Context) (Stats, error) {
	return Stats{
		KeyCount:   int64(c.items.Len()),
		UsedMemory: humanize.IBytes(uint64(max(c.bytes.Load(), 0))),
	}, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

func (c *MemoryCache) Close() error {
	c.closed.Store(true)
	c.items.Purge()
	return nil
}
