// Package upstream talks to the book metadata sources: Google Books, Open
// Library and the Library of Congress.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/bookfinder/internal/adapters/cache"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
	"golang.org/x/time/rate"
)

// Source names used in logs and metrics.
const (
	SourceGoogle      = "google_books"
	SourceOpenLibrary = "open_library"
	SourceLOC         = "library_of_congress"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 8 << 20
)

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.httpClient.Timeout = d
		}
	}
}

// WithCache stores successful responses in c. A nil cache disables caching.
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithRateLimit shapes outbound traffic across every source. rps <= 0
// removes the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

// Fetcher performs cached JSON GETs against upstream sources.
type Fetcher struct {
	httpClient *http.Client
	cache      cache.Cache
	limiter    *rate.Limiter
	userAgent  string
	log        logger.Logger
}

// NewFetcher creates a Fetcher with configuration options.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "bookfinder",
		log:        logger.Named("upstream"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetJSON fetches rawURL with params and decodes the body into out. A cached
// copy is used when present. found is false for 404 and for empty bodies
// ({}, [] or null); neither is an error. Only non-empty bodies are cached.
func (f *Fetcher) GetJSON(ctx context.Context, source, rawURL string, params map[string]string, ttl time.Duration, out any) (bool, error) {
	key := cache.Key(rawURL, params)
	if f.cache != nil {
		if body, ok := f.cacheGet(ctx, key); ok {
			if err := json.Unmarshal(body, out); err == nil {
				return true, nil
			}
			f.log.Warn(ctx, "discarding undecodable cache entry", logger.String("upstream", source))
		}
	}

	body, status, err := f.do(ctx, source, rawURL, params)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if isEmptyJSON(body) {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("%w from %s: %w", ErrDecode, source, err)
	}
	if f.cache != nil && ttl > 0 {
		if err := f.cache.Set(ctx, key, body, ttl); err != nil {
			metrics.RecordCacheError(f.cache.Name(), "set")
			f.log.Warn(ctx, "cache set failed", logger.String("upstream", source), logger.Error(err))
		}
	}
	return true, nil
}

// Probe issues an uncached GET and reports whether it answered 2xx.
func (f *Fetcher) Probe(ctx context.Context, source, rawURL string, params map[string]string) error {
	_, status, err := f.do(ctx, source, rawURL, params)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s answered %d", ErrStatus, source, status)
	}
	return nil
}

func (f *Fetcher) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheError(f.cache.Name(), "get")
		f.log.Warn(ctx, "cache get failed", logger.Error(err))
		return nil, false
	case !ok:
		metrics.RecordCacheMiss(f.cache.Name())
		return nil, false
	default:
		metrics.RecordCacheHit(f.cache.Name())
		return body, true
	}
}

// do sends the request. It returns the body and status for 2xx and 404;
// every other status is an error.
func (f *Fetcher) do(ctx context.Context, source, rawURL string, params map[string]string) ([]byte, int, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	target, err := buildURL(rawURL, params)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordUpstreamRequest(source, "error", latency)
		return nil, 0, fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordUpstreamRequest(source, "not_found", latency)
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.RecordUpstreamRequest(source, "error", latency)
		return nil, resp.StatusCode, fmt.Errorf("%w: %s answered %d", ErrStatus, source, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordUpstreamRequest(source, "error", latency)
		return nil, resp.StatusCode, fmt.Errorf("%s read body: %w", source, err)
	}
	metrics.RecordUpstreamRequest(source, "ok", latency)
	return body, resp.StatusCode, nil
}

func buildURL(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isEmptyJSON(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || bytes.Equal(b, []byte("{}")) || bytes.Equal(b, []byte("[]")) || bytes.Equal(b, []byte("null"))
}
