package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/bookfinder/internal/adapters/cache"
	"github.com/okian/bookfinder/internal/adapters/ratelimit"
	"github.com/okian/bookfinder/internal/config"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

// emptyUpstream answers every request with an empty JSON object so the
// wiring can be exercised without network access.
func emptyUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func initLogger(t *testing.T) {
	t.Helper()
	if err := logger.InitWith(io.Discard, logger.FormatText); err != nil {
		t.Fatalf("init logger: %v", err)
	}
}

func setUpstreamEnv(t *testing.T, base string) {
	t.Helper()
	t.Setenv("BOOKFINDER_GOOGLE_BOOKS_URL", base+"/google")
	t.Setenv("BOOKFINDER_OPEN_LIBRARY_URL", base+"/ol")
	t.Setenv("BOOKFINDER_LOC_URL", base+"/loc")
}

func TestMainFunction(t *testing.T) {
	initLogger(t)

	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			t.Setenv("BOOKFINDER_ADDR", ":8080")
			t.Setenv("BOOKFINDER_CACHE_BACKEND", "memory")
			t.Setenv("BOOKFINDER_RATE_LIMIT_SEARCH", "7")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CacheBackend, convey.ShouldEqual, config.CacheMemory)
				convey.So(budgets(cfg).Search, convey.ShouldEqual, 7)
				convey.So(budgets(cfg).Default, convey.ShouldEqual, cfg.RateLimitDefault)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager(metrics.WithRegisterer(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestBuild(t *testing.T) {
	initLogger(t)

	convey.Convey("Given a memory-cache configuration", t, func() {
		up := emptyUpstream(t)
		setUpstreamEnv(t, up.URL)
		t.Setenv("BOOKFINDER_CACHE_BACKEND", "memory")
		t.Setenv("BOOKFINDER_ADMIN_KEY", "secret")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		srv, cleanup, err := build(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer cleanup()

		get := func(path string, header http.Header) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			for k, v := range header {
				req.Header[k] = v
			}
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)
			return rec
		}

		convey.Convey("Then the server uses the configured address and timeouts", func() {
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})

		convey.Convey("Then the banner, docs and metrics routes are wired", func() {
			convey.So(get("/", nil).Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/docs", nil).Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml", nil).Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/metrics", nil).Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then cache stats are guarded by the admin key", func() {
			convey.So(get("/cache/stats", nil).Code, convey.ShouldEqual, http.StatusForbidden)
			rec := get("/cache/stats", http.Header{"X-Admin-Key": []string{"secret"}})
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "memory")
		})

		convey.Convey("Then rate limit headers are set", func() {
			rec := get("/genres/fiction", nil)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Header().Get("X-RateLimit-Limit"), convey.ShouldEqual, "20")
		})

		convey.Convey("Then an unknown isbn is a json 404", func() {
			rec := get("/book/isbn/9780441172719", nil)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(strings.Contains(rec.Body.String(), `"book_not_found"`), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an unknown cache backend", t, func() {
		t.Setenv("BOOKFINDER_CACHE_BACKEND", "dynamo")

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})
}

func TestNewLimiter(t *testing.T) {
	initLogger(t)

	convey.Convey("Given limiter backend selection", t, func() {
		convey.Convey("When the cache is memory", func() {
			cfg := config.New(context.Background())
			cfg.CacheBackend = config.CacheMemory
			lim := newLimiter(cfg, nil)
			defer func() { _ = lim.Close() }()

			convey.Convey("Then the limiter is in-process", func() {
				_, ok := lim.(*ratelimit.MemoryLimiter)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the cache is redis", func() {
			mr := miniredis.RunT(t)
			cfg := config.New(context.Background())
			cfg.CacheBackend = config.CacheRedis
			cfg.RedisURL = "redis://" + mr.Addr()

			store, err := cache.New(context.Background(), cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			lim := newLimiter(cfg, store)

			convey.Convey("Then the limiter shares the redis pool", func() {
				_, ok := lim.(*ratelimit.RedisLimiter)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When redis limiting is requested without a redis cache", func() {
			cfg := config.New(context.Background())
			cfg.CacheBackend = config.CacheNone
			cfg.RateLimitBackend = config.CacheRedis
			lim := newLimiter(cfg, nil)
			defer func() { _ = lim.Close() }()

			convey.Convey("Then it falls back to memory", func() {
				convey.So(lim.Name(), convey.ShouldEqual, "memory")
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})
	})
}
