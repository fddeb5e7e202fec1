package service

import (
	"context"
	"errors"

	"github.com/okian/bookfinder/internal/adapters/upstream"
	"github.com/okian/bookfinder/internal/domain/genres"
	"github.com/okian/bookfinder/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const (
	googleKeyMissing = "GOOGLE_API_KEY not set."
	emptyCacheMemory = "0B"
)

// urlReporter is implemented by caches backed by a server.
type urlReporter interface {
	URL() string
}

// Health checks the cache and both book sources concurrently. Each check is
// bounded by the health timeout. Any failing check makes the overall status
// "error"; a disabled cache does not.
func (s *Service) Health(ctx context.Context) model.HealthResponse {
	checks := []func(context.Context) model.ServiceHealth{
		s.checkCache,
		s.checkGoogle,
		s.checkOpenLibrary,
	}
	services := make([]model.ServiceHealth, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
			defer cancel()
			services[i] = check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := model.HealthResponse{Status: model.StatusOK, Services: services}
	for _, svc := range services {
		if svc.Status == model.StatusError {
			resp.Status = model.StatusError
			break
		}
	}
	return resp
}

func (s *Service) checkCache(ctx context.Context) model.ServiceHealth {
	if s.cache == nil {
		return model.ServiceHealth{Name: "cache", Status: model.StatusDisabled}
	}
	if err := s.cache.Ping(ctx); err != nil {
		return model.ServiceHealth{Name: s.cache.Name(), Status: model.StatusError, Detail: err.Error()}
	}
	return model.ServiceHealth{Name: s.cache.Name(), Status: model.StatusOK}
}

func (s *Service) checkGoogle(ctx context.Context) model.ServiceHealth {
	err := s.google.Health(ctx)
	switch {
	case errors.Is(err, upstream.ErrDisabled):
		return model.ServiceHealth{Name: upstream.SourceGoogle, Status: model.StatusError, Detail: googleKeyMissing}
	case err != nil:
		return model.ServiceHealth{Name: upstream.SourceGoogle, Status: model.StatusError, Detail: err.Error()}
	}
	return model.ServiceHealth{Name: upstream.SourceGoogle, Status: model.StatusOK}
}

func (s *Service) checkOpenLibrary(ctx context.Context) model.ServiceHealth {
	if err := s.openLibrary.Health(ctx); err != nil {
		return model.ServiceHealth{Name: upstream.SourceOpenLibrary, Status: model.StatusError, Detail: err.Error()}
	}
	return model.ServiceHealth{Name: upstream.SourceOpenLibrary, Status: model.StatusOK}
}

// CacheStats reports the cache backend contents. Errors are reported in the
// body rather than returned.
func (s *Service) CacheStats(ctx context.Context) model.CacheStats {
	if s.cache == nil {
		return model.CacheStats{Status: model.StatusDisabled, Backend: "none", UsedMemory: emptyCacheMemory}
	}
	out := model.CacheStats{Status: model.StatusOK, Backend: s.cache.Name()}
	if r, ok := s.cache.(urlReporter); ok {
		out.RedisURL = r.URL()
	}
	st, err := s.cache.Stats(ctx)
	if err != nil {
		out.Status = model.StatusError
		out.UsedMemory = emptyCacheMemory
		out.RedisURL = "Error: " + err.Error()
		return out
	}
	out.KeyCount = st.KeyCount
	out.UsedMemory = st.UsedMemory
	return out
}

// Genres returns a static taxonomy by name.
func (s *Service) Genres(name string) ([]genres.Genre, error) {
	return genres.Lookup(name)
}
