package api

import (
	"errors"
	"net/http"

	service "github.com/okian/bookfinder/internal/app"
	"github.com/okian/bookfinder/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrRouteNotFound      = errors.New("route not found")
	ErrBadRequest         = errors.New("bad request")
	ErrAdminNotConfigured = errors.New("admin key not configured")
	ErrAdminKeyMissing    = errors.New("admin key missing")
	ErrAdminKeyInvalid    = errors.New("admin key invalid")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// statusMapping translates an error to the response it produces.
type statusMapping struct {
	err    error
	status int
	code   string
	detail string
}

var statusMappings = []statusMapping{ //nolint:gochecknoglobals // static lookup table
	{service.ErrInvalidISBN, http.StatusBadRequest, "invalid_isbn", "Invalid ISBN."},
	{service.ErrInvalidLCCN, http.StatusBadRequest, "invalid_lccn", "Invalid LCCN."},
	{service.ErrInvalidWorkKey, http.StatusBadRequest, "invalid_work_key", "Invalid Work Key"},
	{service.ErrMissingQuery, http.StatusBadRequest, "missing_query", "Query parameter q is required."},
	{ErrBadRequest, http.StatusBadRequest, "bad_request", "Invalid query parameter."},
	{service.ErrUnknownTaxonomy, http.StatusNotFound, "unknown_taxonomy", "Unknown genre taxonomy."},
	{service.ErrBookNotFound, http.StatusNotFound, "book_not_found", "Book not found in any source."},
	{service.ErrAuthorNotFound, http.StatusNotFound, "author_not_found", "Author not found"},
	{service.ErrWorkNotFound, http.StatusNotFound, "work_not_found", "Work not found"},
	{ErrRouteNotFound, http.StatusNotFound, "not_found", "Not Found"},
	{ErrAdminKeyInvalid, http.StatusUnauthorized, "invalid_admin_key", "Invalid key."},
	{ErrAdminKeyMissing, http.StatusForbidden, "not_authenticated", "Not authenticated"},
	{ErrAdminNotConfigured, http.StatusInternalServerError, "admin_not_configured", "Admin not configured."},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded."},
}

// detailedError overrides the mapped detail text of the error it wraps.
type detailedError struct {
	err    error
	detail string
}

func (e *detailedError) Error() string { return e.err.Error() + ": " + e.detail }
func (e *detailedError) Unwrap() error { return e.err }

// withDetail keeps err's status and code but reports detail to the client.
func withDetail(err error, detail string) error {
	return &detailedError{err: err, detail: detail}
}

// lookupStatus returns the mapping for err, or a generic 500.
func lookupStatus(err error) statusMapping {
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			return m
		}
	}
	return statusMapping{err: err, status: http.StatusInternalServerError, code: "internal_error", detail: "Internal Server Error"}
}

// writeServiceError writes the mapped response for err. Unmapped errors are
// logged since they indicate a bug rather than bad input.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	m := lookupStatus(err)
	if m.status >= http.StatusInternalServerError && !errors.Is(err, ErrAdminNotConfigured) {
		s.log.Error(r.Context(), "unhandled service error",
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err))
	}
	writeError(w, err)
}
