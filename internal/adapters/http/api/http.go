// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/bookfinder/internal/adapters/ratelimit"
	"github.com/okian/bookfinder/internal/domain/genres"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Root() string
	Health(ctx context.Context) model.HealthResponse
	CacheStats(ctx context.Context) model.CacheStats
	Genres(name string) ([]genres.Genre, error)

	BookByISBN(ctx context.Context, isbn string) (*model.MergedBook, error)
	BookByLCCN(ctx context.Context, lccn string) (*model.MergedBook, error)
	Search(ctx context.Context, q, subject string, limit, startIndex int) (model.SearchResponse, error)
	NewReleases(ctx context.Context, subject string, limit, startIndex int) model.NewReleasesResponse
	Author(ctx context.Context, id string) (*model.AuthorProfile, error)
	WorkEditions(ctx context.Context, key string) (*model.WorkEditions, error)
	PrimarySources(ctx context.Context, q string, limit int) (model.PrimarySourcesResponse, error)
}

// Budgets are per-route request allowances per window, keyed by client.
type Budgets struct {
	Default     int
	CacheStats  int
	Genres      int
	Search      int
	NewReleases int
}

// DefaultBudgets mirrors the limits the public deployment runs with.
func DefaultBudgets() Budgets {
	return Budgets{Default: 100, CacheStats: 10, Genres: 20, Search: 60, NewReleases: 30}
}

const defaultPageSize = 10

// Option configures a Server.
type Option func(*Server)

// WithAdminKey sets the key expected in X-Admin-Key. Empty leaves admin
// routes unconfigured.
func WithAdminKey(key string) Option {
	return func(s *Server) { s.adminKey = key }
}

// WithLimiter enables per-route rate limiting.
func WithLimiter(l ratelimit.Limiter, window time.Duration, budgets Budgets) Option {
	return func(s *Server) {
		s.limiter = l
		if window > 0 {
			s.window = window
		}
		s.budgets = budgets
	}
}

// WithTrustProxy keys the limiter on the first X-Forwarded-For address.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

// WithLogger overrides the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps       Dependencies
	adminKey   string
	limiter    ratelimit.Limiter
	window     time.Duration
	budgets    Budgets
	trustProxy bool
	log        logger.Logger
}

// NewServer creates a new API server over deps.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		window:  time.Minute,
		budgets: DefaultBudgets(),
		log:     logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	b := s.budgets

	mux.HandleFunc("GET /{$}", s.route("root", b.Default, s.handleRoot))
	mux.HandleFunc("GET /health", s.route("health", b.Default, s.handleHealth))
	mux.HandleFunc("GET /cache/stats", s.route("cache_stats", b.CacheStats, s.requireAdmin(s.handleCacheStats)))
	mux.HandleFunc("GET /genres/{taxonomy}", s.route("genres", b.Genres, s.handleGenres))
	mux.HandleFunc("GET /book/isbn/{isbn}", s.route("book_isbn", b.Default, s.handleBookByISBN))
	mux.HandleFunc("GET /book/lccn/{lccn}", s.route("book_lccn", b.Default, s.handleBookByLCCN))
	mux.HandleFunc("GET /search", s.route("search", b.Search, s.handleSearch))
	mux.HandleFunc("GET /new-releases", s.route("new_releases", b.NewReleases, s.handleNewReleases))
	mux.HandleFunc("GET /author/{id}", s.route("author", b.Default, s.handleAuthor))
	mux.HandleFunc("GET /work/{key}", s.route("work", b.Default, s.handleWorkEditions))
	mux.HandleFunc("GET /primary-sources", s.route("primary_sources", b.Default, s.handlePrimarySources))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(handleMetrics, "metrics"))
}

// route stacks the middleware every business endpoint shares.
func (s *Server) route(name string, budget int, h http.HandlerFunc) http.HandlerFunc {
	return MetricsMiddleware(s.rateLimit(name, budget, h), name)
}

// Handler wraps mux with request ids and a JSON 404 for unknown paths.
func Handler(mux *http.ServeMux) http.Handler {
	return RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" {
			writeError(w, ErrRouteNotFound)
			return
		}
		mux.ServeHTTP(w, r)
	}))
}

type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the mapped JSON error body for err.
func writeError(w http.ResponseWriter, err error) {
	m := lookupStatus(err)
	detail := m.detail
	var de *detailedError
	if errors.As(err, &de) {
		detail = de.detail
	}
	writeJSON(w, m.status, errorResponse{Code: m.code, Detail: detail})
}
