package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/okian/bookfinder/internal/adapters/upstream"
	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/isbn"
	"github.com/okian/bookfinder/internal/domain/merge"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
	"github.com/okian/bookfinder/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	maxAuthorBios    = 3
	minSubjects      = 3
	titleNotFound    = "Title Not Found"
	unknownAuthor    = "Unknown"
	hybridDataSource = "hybrid"
)

// BookByISBN looks the ISBN up in Google Books, Open Library and the Library
// of Congress in parallel, then fetches the work record and up to three
// author bios in a second wave, and merges everything into one record.
func (s *Service) BookByISBN(ctx context.Context, raw string) (*model.MergedBook, error) {
	code, err := isbn.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidISBN, err)
	}

	var (
		vol *upstream.Volume
		ed  *upstream.Edition
		rec *model.LOCRecord
		g   errgroup.Group
	)
	g.Go(func() error { vol = s.google.VolumeByISBN(ctx, code); return nil })
	g.Go(func() error { ed = s.openLibrary.BookByISBN(ctx, code); return nil })
	g.Go(func() error { rec = s.loc.ByISBN(ctx, code); return nil })
	_ = g.Wait()

	if vol == nil && ed == nil && rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, code)
	}

	work, bios := s.bookDetails(ctx, ed)
	book := buildMergedBook(code, vol, ed, rec, work, bios)
	merge.ApplyLOC(book, rec)

	metrics.RecordBookServed(strings.Join(book.DataSources, "+"))
	s.logger.Debug(ctx, "book merged",
		logger.String("isbn", code),
		logger.Any("sources", book.DataSources),
	)
	return book, nil
}

// bookDetails fetches the edition's work and author records concurrently.
// Bios are keyed by bare author id.
func (s *Service) bookDetails(ctx context.Context, ed *upstream.Edition) (*upstream.Work, map[string]string) {
	bios := make(map[string]string)
	if ed == nil {
		return nil, bios
	}

	var refs []string
	for _, a := range ed.Authors {
		if k := a.RefKey(); k != "" {
			refs = append(refs, k)
		}
		if len(refs) == maxAuthorBios {
			break
		}
	}

	var (
		work    *upstream.Work
		authors = make([]*upstream.AuthorRecord, len(refs))
		g       errgroup.Group
	)
	if key := ed.WorkKey(); key != "" {
		g.Go(func() error { work = s.openLibrary.Work(ctx, key); return nil })
	}
	for i, ref := range refs {
		g.Go(func() error { authors[i] = s.openLibrary.Author(ctx, ref); return nil })
	}
	_ = g.Wait()

	for i, a := range authors {
		if a == nil {
			continue
		}
		key := a.Key
		if key == "" {
			key = refs[i]
		}
		if bio := heuristics.CleanHTML(a.Bio.String()); bio != "" {
			bios[path.Base(key)] = bio
		}
	}
	return work, bios
}

func buildMergedBook(code string, vol *upstream.Volume, ed *upstream.Edition, rec *model.LOCRecord,
	work *upstream.Work, bios map[string]string,
) *model.MergedBook {
	var info upstream.VolumeInfo
	if vol != nil {
		info = vol.VolumeInfo
	}
	if ed == nil {
		ed = &upstream.Edition{}
	}

	book := &model.MergedBook{
		Subtitle:      info.Subtitle,
		ISBN13:        code,
		Description:   firstNonEmpty(heuristics.CleanHTML(info.Description), heuristics.CleanHTML(ed.Description.String())),
		Publisher:     info.Publisher,
		PublishedDate: firstNonEmpty(info.PublishedDate, ed.PublishDate),
		PageCount:     info.PageCount,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Dimensions:    info.Dimensions,
		OpenLibraryID: ed.Key,
		RelatedISBNs:  []string{},
		LCCN:          []string{},
		DataSource:    hybridDataSource,
	}
	if book.Publisher == "" {
		if pubs := upstream.Names(ed.Publishers); len(pubs) > 0 {
			book.Publisher = pubs[0]
		}
	}
	if book.PageCount == nil {
		book.PageCount = ed.NumberOfPages
	}
	if book.Description == "" && rec != nil {
		book.Description = heuristics.CleanHTML(rec.Description)
	}
	if book.Description == "" && work != nil {
		book.Description = heuristics.CleanHTML(work.Description.String())
	}

	book.Title = firstNonEmpty(info.Title, ed.Title)
	if book.Title == "" && rec != nil {
		book.Title = rec.Title
	}
	if book.Title == "" {
		book.Title = titleNotFound
	}

	book.Subjects = heuristics.Union(
		heuristics.SplitCategories(info.Categories),
		heuristics.SplitCategories(upstream.Names(ed.Subjects)),
		heuristics.SplitCategories(work.Tags()),
	)
	hasLOCSubjects := rec != nil && len(rec.Subjects) > 0
	if !hasLOCSubjects && len(book.Subjects) < minSubjects && book.Description != "" {
		book.Subjects = heuristics.InferGenres(book.Description+" "+info.Title, book.Subjects)
	}

	book.Authors = mergeAuthors(ed, info, rec, bios)

	if vol != nil {
		_, book.ISBN10 = vol.ISBNs()
		book.RelatedISBNs = vol.Identifiers()
		book.GoogleBookID = vol.ID
		book.SaleInfo = vol.SaleInfo
		book.AccessInfo = vol.AccessInfo
		covers := vol.Covers()
		book.GoogleCoverLinks = &covers
		book.CoverURL = covers.First()
	}
	if book.CoverURL == "" {
		book.CoverURL = upstream.OpenLibraryISBNCover(code, "M")
	}
	olCovers := upstream.OpenLibraryCovers(code)
	book.OpenLibraryCoverLinks = &olCovers

	isEbook := vol != nil && vol.IsEbook()
	book.FormatTag = heuristics.ClassifyFormat(book.PageCount, isEbook)
	book.ContentFlag = heuristics.ContentFlag(book.Description, book.Subjects)
	if name, order, ok := heuristics.DetectSeries(book.Title, book.Subtitle); ok {
		book.Series = &model.Series{Name: name, Order: order}
	}

	if vol != nil {
		book.DataSources = append(book.DataSources, model.SourceGoogleBooks)
	}
	if ed.Key != "" || ed.Title != "" {
		book.DataSources = append(book.DataSources, model.SourceOpenLibrary)
	}
	if rec != nil {
		book.DataSources = append(book.DataSources, model.SourceLibraryOfCongress)
	}
	return book
}

// mergeAuthors prefers the Open Library author list, which carries keys, and
// attaches bios. Google names and then LOC contributors are fallbacks.
func mergeAuthors(ed *upstream.Edition, info upstream.VolumeInfo, rec *model.LOCRecord, bios map[string]string) []model.Author {
	authors := make([]model.Author, 0, len(ed.Authors))
	for _, a := range ed.Authors {
		key := a.ShortKey()
		authors = append(authors, model.Author{
			Name: firstNonEmpty(a.Name, unknownAuthor),
			Key:  key,
			Bio:  bios[key],
		})
	}
	if len(authors) > 0 {
		return authors
	}
	for _, name := range info.Authors {
		authors = append(authors, model.Author{Name: name})
	}
	if len(authors) == 0 && rec != nil {
		authors = append(authors, rec.Authors...)
	}
	return authors
}

// BookByLCCN fetches a Library of Congress item by control number.
func (s *Service) BookByLCCN(ctx context.Context, lccn string) (*model.MergedBook, error) {
	lccn = strings.TrimSpace(lccn)
	if !validLCCN(lccn) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLCCN, lccn)
	}
	rec := s.loc.ByLCCN(ctx, lccn)
	if rec == nil {
		return nil, fmt.Errorf("%w: lccn %s", ErrBookNotFound, lccn)
	}

	book := &model.MergedBook{
		Title:        rec.Title,
		Authors:      rec.Authors,
		Description:  heuristics.CleanHTML(rec.Description),
		Subjects:     []string{},
		RelatedISBNs: []string{},
		LCCN:         []string{},
		DataSource:   model.SourceLibraryOfCongress,
		DataSources:  []string{model.SourceLibraryOfCongress},
	}
	merge.ApplyLOC(book, rec)
	if len(book.LCCN) == 0 {
		book.LCCN = []string{lccn}
	}
	book.ContentFlag = heuristics.ContentFlag(book.Description, book.Subjects)
	metrics.RecordBookServed(model.SourceLibraryOfCongress)
	return book, nil
}

// validLCCN accepts letters, digits and hyphens, at most 20 characters.
func validLCCN(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && r != '-' {
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
