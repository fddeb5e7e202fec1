package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/bookfinder/internal/adapters/cache"
	"github.com/okian/bookfinder/internal/adapters/http/api"
	"github.com/okian/bookfinder/internal/adapters/http/swagger"
	"github.com/okian/bookfinder/internal/adapters/ratelimit"
	"github.com/okian/bookfinder/internal/adapters/upstream"
	service "github.com/okian/bookfinder/internal/app"
	"github.com/okian/bookfinder/internal/config"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
)

// HTTP server timeout constants. Book lookups fan out to three upstreams, so
// the write timeout leaves room for a slow source.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> legacy env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	srv, cleanup, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	go startSystemMetricsUpdater(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// build wires cache, limiter, upstream clients, service and routes. The
// returned cleanup stops the service and releases backends.
func build(ctx context.Context, cfg *config.Config) (*http.Server, func(), error) {
	log := logger.Get()

	store, err := cache.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache: %w", err)
	}
	if store != nil {
		if err := store.Ping(ctx); err != nil {
			// Keep serving; lookups fall through to the upstreams.
			log.Warn(ctx, "cache backend unreachable at startup", logger.String("backend", store.Name()), logger.Error(err))
		}
	}

	limiter := newLimiter(cfg, store)

	fetcherOpts := []upstream.Option{
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithRateLimit(cfg.UpstreamRPS, cfg.UpstreamBurst),
		upstream.WithUserAgent(cfg.UserAgent),
		upstream.WithLogger(logger.Named("upstream")),
	}
	if store != nil {
		fetcherOpts = append(fetcherOpts, upstream.WithCache(store))
	}
	fetcher := upstream.NewFetcher(fetcherOpts...)

	google := upstream.NewGoogle(fetcher, cfg.GoogleBooksURL, cfg.GoogleAPIKey, cfg.CacheTTL)
	if !google.Enabled() {
		log.Warn(ctx, "GOOGLE_API_KEY not set; Google Books is disabled")
	}
	openLibrary := upstream.NewOpenLibrary(fetcher, cfg.OpenLibraryURL, cfg.CacheTTL, cfg.NewReleasesTTL)
	loc := upstream.NewLOC(fetcher, cfg.LOCURL, cfg.CacheTTL)

	svcOpts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithVersion(cfg.Version),
		service.WithMaxResults(cfg.MaxResults),
		service.WithHealthTimeout(cfg.HealthTimeout),
	}
	if store != nil {
		svcOpts = append(svcOpts, service.WithCache(store))
	}
	svc := service.New(google, openLibrary, loc, svcOpts...)
	if err := svc.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc,
		api.WithAdminKey(cfg.AdminKey),
		api.WithLimiter(limiter, cfg.RateLimitWindow, budgets(cfg)),
		api.WithTrustProxy(cfg.TrustProxy),
		api.WithLogger(logger.Named("api")),
	).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	cleanup := func() {
		svc.Stop()
		if err := limiter.Close(); err != nil {
			log.Warn(context.Background(), "failed to close rate limiter", logger.Error(err))
		}
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn(context.Background(), "failed to close cache", logger.Error(err))
			}
		}
	}
	return srv, cleanup, nil
}

// newLimiter shares the Redis connection pool with the cache when both use
// Redis, and falls back to an in-process limiter otherwise.
func newLimiter(cfg *config.Config, store cache.Cache) ratelimit.Limiter {
	if cfg.LimiterBackend() == config.CacheRedis {
		if rc, ok := store.(*cache.RedisCache); ok {
			return ratelimit.NewRedis(rc.Client())
		}
		logger.Get().Warn(context.Background(), "redis rate limiting needs the redis cache backend; using memory")
	}
	return ratelimit.NewMemory()
}

func budgets(cfg *config.Config) api.Budgets {
	return api.Budgets{
		Default:     cfg.RateLimitDefault,
		CacheStats:  cfg.RateLimitCacheStats,
		Genres:      cfg.RateLimitGenres,
		Search:      cfg.RateLimitSearch,
		NewReleases: cfg.RateLimitNewReleases,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
