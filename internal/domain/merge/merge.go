// Package merge combines records from several metadata sources and filters
// new-release candidates.
package merge

import (
	"strconv"
	"strings"
	"time"

	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/internal/domain/scoring"
)

// Release rejection reasons, reported by IsValidRelease.
const (
	RejectNoCover   = "no_cover"
	RejectNoISBN    = "no_isbn"
	RejectNoAuthor  = "no_author"
	RejectBadTitle  = "unsafe_title"
	RejectBlacklist = "blacklisted"
	RejectReprint   = "reprint"
	RejectNoDate    = "no_date"
	RejectTooOld    = "too_old"
)

const maxReleaseTitleLen = 150

var (
	titleBlacklist = []string{
		"cloud mountain",
		"the great gatsby",
		"1984",
		"animal farm",
		"pride and prejudice",
		"the hobbit",
		"little women",
		"me before you",
		"the dead zone",
	}
	reprintTriggers = []string{"anniversary edition", "classic", "reissue", "reprint"}
)

// SearchResults merges Google Books and Open Library results. Records are
// matched by ISBN-13, then by lowercased "title|first author"; Open Library
// records without either fall back to their work id. Google records with no
// key are dropped. Matched records take missing fields from Open Library and
// the union of both category lists. The output is ranked by scorer, or by the
// default scorer when nil.
func SearchResults(google, openLibrary []model.SearchResult, scorer *scoring.Scorer) []model.SearchResult {
	if scorer == nil {
		scorer = scoring.New()
	}
	out := make([]model.SearchResult, 0, len(google)+len(openLibrary))
	index := make(map[string]int, len(google)+len(openLibrary))

	for _, r := range google {
		key := resultKey(r)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}

	for _, r := range openLibrary {
		key := resultKey(r)
		if key == "" {
			key = r.OpenLibraryWorkID
		}
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		existing := &out[i]
		if existing.OpenLibraryWorkID == "" {
			existing.OpenLibraryWorkID = r.OpenLibraryWorkID
		}
		if len(existing.Authors) == 0 && len(r.Authors) > 0 {
			existing.Authors = r.Authors
		}
		if existing.PublishedDate == "" {
			existing.PublishedDate = r.PublishedDate
		}
		if existing.CoverURL == "" {
			existing.CoverURL = r.CoverURL
		}
		existing.Categories = heuristics.Union(existing.Categories, r.Categories)
	}

	scorer.Rank(out)
	return out
}

func resultKey(r model.SearchResult) string {
	if r.ISBN13 != "" {
		return r.ISBN13
	}
	if len(r.Authors) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(r.Title)) + "|" + strings.ToLower(strings.TrimSpace(r.Authors[0].Name))
}

// IsValidRelease applies the new-release quality gate. It reports whether r is
// acceptable and, when not, the rejection reason.
func IsValidRelease(r model.SearchResult, now time.Time) (bool, string) {
	if r.CoverURL == "" {
		return false, RejectNoCover
	}
	if r.ISBN13 == "" && r.ISBN10 == "" {
		return false, RejectNoISBN
	}
	if len(r.Authors) == 0 || r.Authors[0].Name == "Unknown" {
		return false, RejectNoAuthor
	}
	title := strings.ToLower(r.Title)
	if strings.ContainsAny(title, "<{") || len(title) > maxReleaseTitleLen {
		return false, RejectBadTitle
	}
	if containsAny(title, titleBlacklist) {
		return false, RejectBlacklist
	}
	if containsAny(title, reprintTriggers) {
		return false, RejectReprint
	}
	year := heuristics.ExtractYear(r.PublishedDate)
	if year == "" {
		return false, RejectNoDate
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return false, RejectNoDate
	}
	if y < now.Year()-1 {
		return false, RejectTooOld
	}
	return true, ""
}

// UniqueReleases drops duplicates by ISBN-13, then ISBN-10, then title,
// keeping the first occurrence, and truncates to limit.
func UniqueReleases(books []model.SearchResult, limit int) []model.SearchResult {
	seen := make(map[string]struct{}, len(books))
	out := make([]model.SearchResult, 0, min(len(books), max(limit, 0)))
	for _, b := range books {
		if len(out) >= limit {
			break
		}
		key := b.ISBN13
		if key == "" {
			key = b.ISBN10
		}
		if key == "" {
			key = b.Title
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// ApplyLOC folds a Library of Congress record into book. The LOC date wins,
// subjects are unioned, the publisher is only filled when missing and the
// catalog identifiers are recorded.
func ApplyLOC(book *model.MergedBook, rec *model.LOCRecord) {
	if book == nil || rec == nil {
		return
	}
	if rec.PublishedDate != "" {
		book.PublishedDate = rec.PublishedDate
	}
	if len(rec.Subjects) > 0 {
		book.Subjects = heuristics.Union(book.Subjects, rec.Subjects)
	}
	if book.Publisher == "" {
		book.Publisher = rec.Publisher
	}
	if len(rec.LCCN) > 0 {
		book.LCCN = rec.LCCN
	}
	if book.CallNumber == "" {
		book.CallNumber = rec.CallNumber
	}
	if book.LOCURL == "" {
		book.LOCURL = rec.LOCURL
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
