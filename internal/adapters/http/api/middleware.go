package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

// Header names used by the middleware.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAdminKey  = "X-Admin-Key"
)

type ctxKey struct{}

// RequestID tags each request with an id, reusing the caller's X-Request-ID
// when present, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestIDFrom returns the id stored by RequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			errorType := getErrorType(wrapped.statusCode)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType)
			metrics.RecordErrorByType(errorType, getErrorSeverity(wrapped.statusCode))
		}
	}
}

// rateLimit enforces budget requests per window for each client on route.
// Limiter failures let the request through.
func (s *Server) rateLimit(route string, budget int, next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil || budget <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := route + ":" + s.clientIP(r)
		d, err := s.limiter.Allow(r.Context(), key, budget, s.window)
		if err != nil {
			metrics.RecordLimiterError()
			s.log.Warn(r.Context(), "rate limiter unavailable, allowing request",
				logger.String("route", route),
				logger.String("limiter", s.limiter.Name()),
				logger.Error(err))
			next(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			metrics.RecordRateLimited(route)
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			writeError(w, withDetail(ErrRateLimited,
				fmt.Sprintf("Rate limit exceeded: %d per %s", budget, humanWindow(s.window))))
			return
		}
		next(w, r)
	}
}

// requireAdmin guards admin routes with X-Admin-Key.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkAdmin(r.Header.Get(HeaderAdminKey)); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) checkAdmin(got string) error {
	switch {
	case s.adminKey == "":
		return ErrAdminNotConfigured
	case got == "":
		return ErrAdminKeyMissing
	case subtle.ConstantTimeCompare([]byte(got), []byte(s.adminKey)) != 1:
		return ErrAdminKeyInvalid
	default:
		return nil
	}
}

// clientIP is the limiter key: the first X-Forwarded-For hop when the proxy
// is trusted, otherwise the peer address.
func (s *Server) clientIP(r *http.Request) string {
	if s.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func humanWindow(d time.Duration) string {
	switch d {
	case time.Minute:
		return "1 minute"
	case time.Hour:
		return "1 hour"
	case time.Second:
		return "1 second"
	default:
		return d.String()
	}
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// getErrorSeverity returns error severity based on HTTP status code.
func getErrorSeverity(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "high"
	case statusCode >= statusBadRequest:
		return "medium"
	default:
		return "low"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
