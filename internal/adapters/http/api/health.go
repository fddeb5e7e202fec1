package api

import (
	"net/http"

	"github.com/okian/bookfinder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleMetrics serves the custom registry in the Prometheus text format.
func handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: s.deps.Root()})
}

// handleHealth answers 503 when any dependency reported an error so load
// balancers can act on the status alone.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.deps.Health(r.Context())
	status := http.StatusOK
	if !h.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.CacheStats(r.Context()))
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Genres(r.PathValue("taxonomy"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
