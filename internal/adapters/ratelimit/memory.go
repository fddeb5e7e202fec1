package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleTTL = 5 * time.Minute

// MemoryOption applies a configuration option to the MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in process memory. Each bucket
// holds limit tokens and refills at limit per window.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	stop    chan struct{}
	done    chan struct{}
}

// NewMemory creates a MemoryLimiter and starts its idle bucket janitor.
// Call Close to stop it.
func NewMemory(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		idleTTL: defaultIdleTTL,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.janitor()
	return l
}

func (l *MemoryLimiter) Name() string { return "memory" }

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if err := validate(limit, window); err != nil {
		return Decision{}, err
	}
	now := time.Now()
	b := l.bucketFor(key, limit, window, now)

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Limit: limit, RetryAfter: delay}, nil
	}
	remaining := int(math.Floor(b.limiter.TokensAt(now)))
	return Decision{Allowed: true, Limit: limit, Remaining: max(remaining, 0)}, nil
}

func (l *MemoryLimiter) bucketFor(key string, limit int, window time.Duration, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
		}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// Len returns the number of live buckets.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) janitor() {
	defer close(l.done)
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// Close stops the janitor. It is safe to call more than once.
func (l *MemoryLimiter) Close() error {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	<-l.done
	return nil
}
