// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load(ctx) layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache backends accepted by CacheBackend.
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// Version is reported by GET /.
	Version string `koanf:"version"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CacheBackend is one of redis, memory, sqlite, none.
	CacheBackend string `koanf:"cache_backend"`

	// RedisURL is used by the redis cache and the redis rate limiter.
	RedisURL string `koanf:"redis_url"`

	// CachePath is the SQLite database file for the sqlite backend.
	CachePath string `koanf:"cache_path"`

	// MemoryCacheSize bounds the number of entries held by the memory backend.
	MemoryCacheSize int `koanf:"memory_cache_size"`

	// CacheTTL is the default lifetime of cached upstream responses.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// NewReleasesTTL is the lifetime of cached new-release searches.
	NewReleasesTTL time.Duration `koanf:"new_releases_ttl"`

	// GoogleAPIKey enables the Google Books client. Empty disables it.
	GoogleAPIKey string `koanf:"google_api_key"`

	// AdminKey gates /cache/stats. Empty means admin endpoints answer 500.
	AdminKey string `koanf:"admin_key"`

	// Upstream endpoints. Overridable so tests and mirrors can be used.
	GoogleBooksURL string `koanf:"google_books_url"`
	OpenLibraryURL string `koanf:"open_library_url"`
	LOCURL         string `koanf:"loc_url"`

	// UserAgent is sent on every upstream request.
	UserAgent string `koanf:"user_agent"`

	// UpstreamTimeout bounds a single upstream request.
	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`

	// HealthTimeout bounds each dependency probe in /health.
	HealthTimeout time.Duration `koanf:"health_timeout"`

	// UpstreamRPS and UpstreamBurst shape outbound traffic across all sources.
	UpstreamRPS   float64 `koanf:"upstream_rps"`
	UpstreamBurst int     `koanf:"upstream_burst"`

	// RateLimitBackend is redis or memory. Empty follows CacheBackend.
	RateLimitBackend string `koanf:"rate_limit_backend"`

	// RateLimitWindow is the accounting window for the per-route budgets.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// Per-route request budgets per window, keyed by client address.
	RateLimitDefault     int `koanf:"rate_limit_default"`
	RateLimitCacheStats  int `koanf:"rate_limit_cache_stats"`
	RateLimitGenres      int `koanf:"rate_limit_genres"`
	RateLimitSearch      int `koanf:"rate_limit_search"`
	RateLimitNewReleases int `koanf:"rate_limit_new_releases"`

	// TrustProxy makes the limiter key on X-Forwarded-For.
	TrustProxy bool `koanf:"trust_proxy"`

	// MaxResults caps the limit query parameter of list endpoints.
	MaxResults int `koanf:"max_results"`
}

// New creates a Config populated with defaults. The context is reserved for
// loaders that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "json",
		Addr:                 ":8000",
		Version:              "3.2.0",
		ShutdownTimeout:      10 * time.Second,
		CacheBackend:         CacheRedis,
		RedisURL:             "redis://localhost:6379",
		CachePath:            "bookfinder-cache.db",
		MemoryCacheSize:      50_000,
		CacheTTL:             7 * 24 * time.Hour,
		NewReleasesTTL:       time.Hour,
		GoogleBooksURL:       "https://www.googleapis.com/books/v1/volumes",
		OpenLibraryURL:       "https://openlibrary.org",
		LOCURL:               "https://www.loc.gov",
		UserAgent:            "Bookfinder/4.0 (educational-research-tool; contact@example.com)",
		UpstreamTimeout:      20 * time.Second,
		HealthTimeout:        5 * time.Second,
		UpstreamRPS:          20,
		UpstreamBurst:        40,
		RateLimitWindow:      time.Minute,
		RateLimitDefault:     100,
		RateLimitCacheStats:  10,
		RateLimitGenres:      20,
		RateLimitSearch:      60,
		RateLimitNewReleases: 30,
		MaxResults:           40,
	}
}

// LimiterBackend resolves the effective rate limiter backend.
func (c *Config) LimiterBackend() string {
	if c.RateLimitBackend != "" {
		return c.RateLimitBackend
	}
	if c.CacheBackend == CacheRedis {
		return CacheRedis
	}
	return CacheMemory
}

// Validate checks the invariants the rest of the process relies on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	c.CacheBackend = strings.ToLower(strings.TrimSpace(c.CacheBackend))
	switch c.CacheBackend {
	case CacheRedis, CacheMemory, CacheSQLite, CacheNone:
	default:
		return fmt.Errorf("%w: %w: cache %q", ErrInvalidConfig, ErrUnknownBackend, c.CacheBackend)
	}
	switch c.RateLimitBackend {
	case "", CacheRedis, CacheMemory:
	default:
		return fmt.Errorf("%w: %w: rate limit %q", ErrInvalidConfig, ErrUnknownBackend, c.RateLimitBackend)
	}
	if c.CacheBackend == CacheSQLite && c.CachePath == "" {
		return fmt.Errorf("%w: cache_path is required for the sqlite backend", ErrInvalidConfig)
	}
	if c.CacheTTL <= 0 || c.NewReleasesTTL <= 0 {
		return fmt.Errorf("%w: cache ttls must be positive", ErrInvalidConfig)
	}
	if c.UpstreamTimeout <= 0 || c.HealthTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: rate_limit_window must be positive", ErrInvalidConfig)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("%w: max_results must be at least 1", ErrInvalidConfig)
	}
	return nil
}
