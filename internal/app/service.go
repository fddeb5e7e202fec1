// Package service implements the book lookup, discovery and health
// operations served by the HTTP API.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/bookfinder/internal/adapters/cache"
	"github.com/okian/bookfinder/internal/adapters/upstream"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/internal/domain/scoring"
	"github.com/okian/bookfinder/pkg/logger"
)

// GoogleBooks is the subset of the Google Books client the service uses.
type GoogleBooks interface {
	Enabled() bool
	VolumeByISBN(ctx context.Context, isbn string) *upstream.Volume
	Search(ctx context.Context, q, subject string, limit, startIndex int) []model.SearchResult
	Health(ctx context.Context) error
}

// OpenLibrary is the subset of the Open Library client the service uses.
type OpenLibrary interface {
	BookByISBN(ctx context.Context, isbn string) *upstream.Edition
	Work(ctx context.Context, key string) *upstream.Work
	Author(ctx context.Context, key string) *upstream.AuthorRecord
	Editions(ctx context.Context, workID string) *upstream.EditionsPage
	Search(ctx context.Context, q, subject string, limit, offset int) []model.SearchResult
	NewReleases(ctx context.Context, subject string, limit, offset int, now time.Time) []model.SearchResult
	Health(ctx context.Context) error
}

// LibraryOfCongress is the subset of the LOC client the service uses.
type LibraryOfCongress interface {
	ByISBN(ctx context.Context, isbn string) *model.LOCRecord
	ByLCCN(ctx context.Context, lccn string) *model.LOCRecord
	Search(ctx context.Context, q string, limit int) []model.LOCRecord
}

// Service answers API requests by fanning out to the metadata sources.
type Service struct {
	mu sync.Mutex

	google      GoogleBooks
	openLibrary OpenLibrary
	loc         LibraryOfCongress
	cache       cache.Cache
	scorer      *scoring.Scorer

	version       string
	maxResults    int
	healthTimeout time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache sets the response cache reported by health and stats. Nil means
// caching is disabled.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithScorer sets the ranking used for merged search results.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported by Root.
func WithVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.version = v
		}
	}
}

// WithMaxResults caps the limit accepted by list operations.
func WithMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithHealthTimeout bounds each dependency check.
func WithHealthTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.healthTimeout = d
		}
	}
}

// WithSweepInterval sets how often expired cache entries are purged on
// backends that need it.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// New constructs a Service over the three metadata clients.
func New(google GoogleBooks, openLibrary OpenLibrary, loc LibraryOfCongress, opts ...Option) *Service {
	s := &Service{
		google:        google,
		openLibrary:   openLibrary,
		loc:           loc,
		scorer:        scoring.New(),
		version:       "3.2.0",
		maxResults:    40,
		healthTimeout: 5 * time.Second,
		sweepInterval: 10 * time.Minute,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		logger:        logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches background maintenance. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if sw, ok := s.cache.(cache.Sweeper); ok {
		s.wg.Add(1)
		go s.sweepLoop(ctx, sw)
	}
	s.started = true
	s.logger.Info(ctx, "bookfinder service started",
		logger.String("cache", s.cacheName()),
		logger.Bool("google_enabled", s.google.Enabled()),
	)
	return nil
}

// Stop halts background maintenance and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = make(chan struct{})
	s.started = false
	s.logger.Info(context.Background(), "bookfinder service stopped")
}

func (s *Service) sweepLoop(ctx context.Context, sw cache.Sweeper) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			n, err := sw.Sweep(ctx)
			if err != nil {
				s.logger.Warn(ctx, "cache sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug(ctx, "swept expired cache entries", logger.Int64("removed", n))
			}
		}
	}
}

func (s *Service) cacheName() string {
	if s.cache == nil {
		return "none"
	}
	return s.cache.Name()
}

// Root returns the banner served at GET /.
func (s *Service) Root() string {
	return "Bookfinder Intelligent API v" + s.version + " is running!"
}

func (s *Service) clampLimit(n int) int {
	switch {
	case n < 1:
		return 1
	case n > s.maxResults:
		return s.maxResults
	default:
		return n
	}
}
