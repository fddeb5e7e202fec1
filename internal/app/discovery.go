package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/bookfinder/internal/adapters/upstream"
	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/merge"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	releaseBatchSize   = 40
	releaseMaxBatches  = 5
	coverRescueWorkers = 8
	authorWorksLimit   = 20
	googleAuthorBio    = "Author profile generated from Google Books data."
	unknownAuthorName  = "Unknown Author"
)

// Search queries both book sources in parallel and returns the merged,
// ranked results.
func (s *Service) Search(ctx context.Context, q, subject string, limit, startIndex int) (model.SearchResponse, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return model.SearchResponse{}, ErrMissingQuery
	}
	limit = s.clampLimit(limit)
	startIndex = max(startIndex, 0)

	var (
		fromGoogle, fromOL []model.SearchResult
		g                  errgroup.Group
	)
	g.Go(func() error { fromGoogle = s.google.Search(ctx, q, subject, limit, startIndex); return nil })
	g.Go(func() error { fromOL = s.openLibrary.Search(ctx, q, subject, limit, startIndex); return nil })
	_ = g.Wait()

	results := merge.SearchResults(fromGoogle, fromOL, s.scorer)
	return model.SearchResponse{Query: q, Subject: subject, NumFound: len(results), Results: results}, nil
}

// NewReleases pages through Open Library's newest works in batches of 40,
// at most five batches, until limit releases pass the quality gate. Results
// missing a cover are retried against Google Books first.
func (s *Service) NewReleases(ctx context.Context, subject string, limit, startIndex int) model.NewReleasesResponse {
	limit = s.clampLimit(limit)
	offset := max(startIndex, 0)
	now := s.now()

	var valid []model.SearchResult
	for depth := 0; depth < releaseMaxBatches && len(valid) < limit; depth++ {
		if ctx.Err() != nil {
			break
		}
		batch := s.openLibrary.NewReleases(ctx, subject, releaseBatchSize, offset, now)
		if len(batch) == 0 {
			break
		}
		s.rescueCovers(ctx, batch)
		for _, b := range batch {
			ok, reason := merge.IsValidRelease(b, now)
			if !ok {
				metrics.RecordReleaseRejected(reason)
				continue
			}
			valid = append(valid, b)
		}
		offset += releaseBatchSize
	}

	results := merge.UniqueReleases(valid, limit)
	return model.NewReleasesResponse{Subject: subject, NumFound: len(results), Results: results}
}

// rescueCovers fills missing cover URLs from Google Books thumbnails.
func (s *Service) rescueCovers(ctx context.Context, batch []model.SearchResult) {
	if !s.google.Enabled() {
		return
	}
	var g errgroup.Group
	g.SetLimit(coverRescueWorkers)
	for i := range batch {
		if batch[i].CoverURL != "" {
			continue
		}
		code := firstNonEmpty(batch[i].ISBN13, batch[i].ISBN10)
		if code == "" {
			continue
		}
		g.Go(func() error {
			vol := s.google.VolumeByISBN(ctx, code)
			if vol == nil {
				return nil
			}
			links := vol.VolumeInfo.ImageLinks
			if u := firstNonEmpty(links.Thumbnail, links.SmallThumbnail); u != "" {
				batch[i].CoverURL = heuristics.EnsureHTTPS(u)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Author builds an author page. Open Library ids (OL…A) return the profile
// and bibliography; anything else is treated as a name and answered from a
// Google Books author search.
func (s *Service) Author(ctx context.Context, id string) (*model.AuthorProfile, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "OL") && strings.HasSuffix(id, "A") {
		return s.openLibraryAuthor(ctx, id)
	}
	return s.googleAuthor(ctx, id)
}

func (s *Service) openLibraryAuthor(ctx context.Context, id string) (*model.AuthorProfile, error) {
	rec := s.openLibrary.Author(ctx, id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrAuthorNotFound, id)
	}
	works := s.openLibrary.Search(ctx, "author_key:"+id, "", authorWorksLimit, 0)
	if works == nil {
		works = []model.SearchResult{}
	}

	p := &model.AuthorProfile{
		Key:       id,
		Name:      firstNonEmpty(rec.Name, unknownAuthorName),
		Bio:       heuristics.CleanHTML(rec.Bio.String()),
		BirthDate: rec.BirthDate,
		DeathDate: rec.DeathDate,
		Books:     works,
		Source:    model.ProfileOpenLibrary,
	}
	if len(rec.Photos) > 0 && rec.Photos[0] > 0 {
		p.PhotoURL = upstream.AuthorPhoto(rec.Photos[0])
	}
	return p, nil
}

func (s *Service) googleAuthor(ctx context.Context, id string) (*model.AuthorProfile, error) {
	name := strings.TrimSpace(strings.ReplaceAll(id, `"`, ""))
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrAuthorNotFound)
	}
	books := s.google.Search(ctx, `inauthor:"`+name+`"`, "", authorWorksLimit, 0)
	if len(books) == 0 {
		s.logger.Debug(ctx, "no books for author name", logger.String("name", name))
		return nil, fmt.Errorf("%w: %s", ErrAuthorNotFound, name)
	}
	display := name
	if len(books[0].Authors) > 0 {
		display = books[0].Authors[0].Name
	}
	return &model.AuthorProfile{
		Key:    id,
		Name:   display,
		Bio:    googleAuthorBio,
		Books:  books,
		Source: model.ProfileGoogleBooks,
	}, nil
}

// WorkEditions lists the editions of an Open Library work. Entries without
// top-level ISBNs take them from their identifiers block.
func (s *Service) WorkEditions(ctx context.Context, key string) (*model.WorkEditions, error) {
	if !strings.HasPrefix(key, "OL") || !strings.HasSuffix(key, "W") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkKey, key)
	}
	page := s.openLibrary.Editions(ctx, key)
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkNotFound, key)
	}

	out := &model.WorkEditions{
		Key:     "/works/" + key,
		Entries: make([]model.WorkEdition, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		we := model.WorkEdition{
			Key:         e.Key,
			Title:       e.Title,
			PublishDate: e.PublishDate,
			ISBN13:      e.ISBN13,
			ISBN10:      e.ISBN10,
		}
		if len(we.ISBN13) == 0 && len(we.ISBN10) == 0 {
			we.ISBN13 = e.Identifiers.ISBN13
			we.ISBN10 = e.Identifiers.ISBN10
		}
		if we.ISBN13 == nil {
			we.ISBN13 = []string{}
		}
		if we.ISBN10 == nil {
			we.ISBN10 = []string{}
		}
		out.Entries = append(out.Entries, we)
	}
	out.Size = len(out.Entries)
	if page.Size != nil {
		out.Size = *page.Size
	}
	return out, nil
}

// PrimarySources searches the Library of Congress collections.
func (s *Service) PrimarySources(ctx context.Context, q string, limit int) (model.PrimarySourcesResponse, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return model.PrimarySourcesResponse{}, ErrMissingQuery
	}
	results := s.loc.Search(ctx, q, s.clampLimit(limit))
	if results == nil {
		results = []model.LOCRecord{}
	}
	return model.PrimarySourcesResponse{Query: q, NumFound: len(results), Results: results}, nil
}
