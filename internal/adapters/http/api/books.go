package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleBookByISBN(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.BookByISBN(r.Context(), r.PathValue("isbn"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleBookByLCCN(w http.ResponseWriter, r *http.Request) {
	book, err := s.deps.BookByLCCN(r.Context(), r.PathValue("lccn"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, start, err := pageParams(q.Get("limit"), q.Get("start_index"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.Search(r.Context(), q.Get("q"), q.Get("subject"), limit, start)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleNewReleases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, start, err := pageParams(q.Get("limit"), q.Get("start_index"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.NewReleases(r.Context(), q.Get("subject"), limit, start))
}

func (s *Server) handleAuthor(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Author(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleWorkEditions(w http.ResponseWriter, r *http.Request) {
	editions, err := s.deps.WorkEditions(r.Context(), r.PathValue("key"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, editions)
}

func (s *Server) handlePrimarySources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _, err := pageParams(q.Get("limit"), "")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.deps.PrimarySources(r.Context(), q.Get("q"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pageParams parses limit and start_index. Missing values default to 10 and
// 0; clamping to the allowed range is the service's job.
func pageParams(rawLimit, rawStart string) (limit, start int, err error) {
	limit, err = intParam("limit", rawLimit, defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	start, err = intParam("start_index", rawStart, 0)
	if err != nil {
		return 0, 0, err
	}
	if start < 0 {
		start = 0
	}
	return limit, start, nil
}

func intParam(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, name)
	}
	return n, nil
}
