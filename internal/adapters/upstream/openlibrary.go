package upstream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
)

const (
	olSearchFields   = "title,subtitle,author_name,author_key,isbn,key,publisher,subject,first_publish_year,cover_i"
	olCoversBase     = "https://covers.openlibrary.org"
	olMaxSubjects    = 8
	olEditionsLimit  = 50
	olHealthWorkPath = "/works/OL45804W.json"
)

// OpenLibraryISBNCover returns the cover URL for isbn at size S, M or L.
func OpenLibraryISBNCover(isbn, size string) string {
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg", olCoversBase, isbn, size)
}

// OpenLibraryCovers returns the three ISBN cover sizes.
func OpenLibraryCovers(isbn string) model.OpenLibraryCoverLinks {
	return model.OpenLibraryCoverLinks{
		Small:  OpenLibraryISBNCover(isbn, "S"),
		Medium: OpenLibraryISBNCover(isbn, "M"),
		Large:  OpenLibraryISBNCover(isbn, "L"),
	}
}

// AuthorPhoto returns the photo URL for an Open Library photo id.
func AuthorPhoto(id int64) string {
	return fmt.Sprintf("%s/a/id/%d-L.jpg", olCoversBase, id)
}

// EditionAuthor is an author reference in the books API. Depending on the
// endpoint the key is in URL, Key or Author.Key.
type EditionAuthor struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Key    string `json:"key"`
	Author *struct {
		Key string `json:"key"`
	} `json:"author"`
}

// RefKey returns the author key used to fetch the profile.
func (a EditionAuthor) RefKey() string {
	if a.Author != nil && a.Author.Key != "" {
		return a.Author.Key
	}
	return a.Key
}

// ShortKey returns the bare OL…A id. Books API URLs carry a name slug
// after the id.
func (a EditionAuthor) ShortKey() string {
	if _, rest, ok := strings.Cut(a.URL, "/authors/"); ok {
		id, _, _ := strings.Cut(rest, "/")
		return id
	}
	if a.URL != "" {
		return lastSegment(a.URL)
	}
	if k := a.RefKey(); k != "" {
		return lastSegment(k)
	}
	return ""
}

// Edition is a books API record (jscmd=data).
type Edition struct {
	Key           string          `json:"key"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle"`
	Publishers    []Named         `json:"publishers"`
	PublishDate   string          `json:"publish_date"`
	NumberOfPages *int            `json:"number_of_pages"`
	Description   TextValue       `json:"description"`
	Authors       []EditionAuthor `json:"authors"`
	Subjects      []Named         `json:"subjects"`
	Works         []struct {
		Key string `json:"key"`
	} `json:"works"`
}

// WorkKey returns the first linked work key.
func (e *Edition) WorkKey() string {
	if e == nil || len(e.Works) == 0 {
		return ""
	}
	return e.Works[0].Key
}

// Work is an Open Library work record.
type Work struct {
	Key           string    `json:"key"`
	Title         string    `json:"title"`
	Description   TextValue `json:"description"`
	Subjects      []Named   `json:"subjects"`
	SubjectPlaces []Named   `json:"subject_places"`
	SubjectTimes  []Named   `json:"subject_times"`
}

// Tags returns subjects, places and times together.
func (w *Work) Tags() []string {
	if w == nil {
		return nil
	}
	out := Names(w.Subjects)
	out = append(out, Names(w.SubjectPlaces)...)
	return append(out, Names(w.SubjectTimes)...)
}

// AuthorRecord is an Open Library author record.
type AuthorRecord struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Bio       TextValue `json:"bio"`
	BirthDate string    `json:"birth_date"`
	DeathDate string    `json:"death_date"`
	Photos    []int64   `json:"photos"`
}

// SearchDoc is one document of search.json.
type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle"`
	AuthorName       []string `json:"author_name"`
	AuthorKey        []string `json:"author_key"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Subject          []string `json:"subject"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverI           int64    `json:"cover_i"`
}

// ToSearchResult maps a search document to the compact result shape.
func (d SearchDoc) ToSearchResult() model.SearchResult {
	var isbn13, isbn10 string
	for _, s := range d.ISBN {
		switch {
		case len(s) == 13 && isbn13 == "":
			isbn13 = s
		case len(s) == 10 && isbn10 == "":
			isbn10 = s
		}
	}

	authors := make([]model.Author, 0, len(d.AuthorName))
	for i, name := range d.AuthorName {
		a := model.Author{Name: name}
		if i < len(d.AuthorKey) {
			a.Key = d.AuthorKey[i]
		}
		authors = append(authors, a)
	}

	cats := heuristics.SplitCategories(d.Subject)
	if len(cats) > olMaxSubjects {
		cats = cats[:olMaxSubjects]
	}

	r := model.SearchResult{
		Title:             firstNonEmpty(d.Title, "No Title"),
		Subtitle:          d.Subtitle,
		Authors:           authors,
		ISBN13:            isbn13,
		ISBN10:            isbn10,
		Categories:        cats,
		OpenLibraryWorkID: d.Key,
	}
	if len(d.Publisher) > 0 {
		r.Publisher = d.Publisher[0]
	}
	if d.FirstPublishYear != 0 {
		r.PublishedDate = strconv.Itoa(d.FirstPublishYear)
	}
	if d.CoverI > 0 {
		r.CoverURL = fmt.Sprintf("%s/b/id/%d-M.jpg", olCoversBase, d.CoverI)
	}
	return r
}

type searchPage struct {
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

// EditionEntry is one entry of a work's editions listing.
type EditionEntry struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	PublishDate string   `json:"publish_date"`
	ISBN13      []string `json:"isbn_13"`
	ISBN10      []string `json:"isbn_10"`
	Identifiers struct {
		ISBN13 []string `json:"isbn_13"`
		ISBN10 []string `json:"isbn_10"`
	} `json:"identifiers"`
}

// EditionsPage is the editions listing of a work.
type EditionsPage struct {
	Size    *int           `json:"size"`
	Entries []EditionEntry `json:"entries"`
}

// OpenLibrary is the Open Library client.
type OpenLibrary struct {
	f           *Fetcher
	baseURL     string
	ttl         time.Duration
	releasesTTL time.Duration
	log         logger.Logger
}

// NewOpenLibrary creates an Open Library client. New-release searches are
// cached for releasesTTL, everything else for ttl.
func NewOpenLibrary(f *Fetcher, baseURL string, ttl, releasesTTL time.Duration) *OpenLibrary {
	return &OpenLibrary{
		f:           f,
		baseURL:     strings.TrimRight(baseURL, "/"),
		ttl:         ttl,
		releasesTTL: releasesTTL,
		log:         logger.Named("open_library"),
	}
}

func (o *OpenLibrary) get(ctx context.Context, path string, params map[string]string, ttl time.Duration, out any) bool {
	found, err := o.f.GetJSON(ctx, SourceOpenLibrary, o.baseURL+path, params, ttl, out)
	if err != nil {
		o.log.Warn(ctx, "request failed", logger.String("path", path), logger.Error(err))
		return false
	}
	return found
}

// BookByISBN returns the books API record for isbn, or nil.
func (o *OpenLibrary) BookByISBN(ctx context.Context, isbn string) *Edition {
	bibkey := "ISBN:" + isbn
	var res map[string]Edition
	if !o.get(ctx, "/api/books", map[string]string{"bibkeys": bibkey, "format": "json", "jscmd": "data"}, o.ttl, &res) {
		return nil
	}
	e, ok := res[bibkey]
	if !ok {
		return nil
	}
	return &e
}

// Work returns a work by key ("/works/OL…W" or the bare id), or nil.
func (o *OpenLibrary) Work(ctx context.Context, key string) *Work {
	var w Work
	if !o.get(ctx, "/works/"+lastSegment(key)+".json", nil, o.ttl, &w) {
		return nil
	}
	return &w
}

// Author returns an author by key ("/authors/OL…A" or the bare id), or nil.
func (o *OpenLibrary) Author(ctx context.Context, key string) *AuthorRecord {
	var a AuthorRecord
	if !o.get(ctx, "/authors/"+lastSegment(key)+".json", nil, o.ttl, &a) {
		return nil
	}
	return &a
}

// Editions returns the first page of editions of a work, or nil.
func (o *OpenLibrary) Editions(ctx context.Context, workID string) *EditionsPage {
	var p EditionsPage
	if !o.get(ctx, "/works/"+workID+"/editions.json", map[string]string{"limit": strconv.Itoa(olEditionsLimit)}, o.ttl, &p) {
		return nil
	}
	return &p
}

// Search runs search.json restricted to English.
func (o *OpenLibrary) Search(ctx context.Context, q, subject string, limit, offset int) []model.SearchResult {
	return o.search(ctx, map[string]string{
		"q":        q,
		"limit":    strconv.Itoa(limit),
		"offset":   strconv.Itoa(offset),
		"fields":   olSearchFields,
		"subject":  subject,
		"language": "eng",
	}, o.ttl)
}

// NewReleases searches for works first published since the year before now,
// newest first.
func (o *OpenLibrary) NewReleases(ctx context.Context, subject string, limit, offset int, now time.Time) []model.SearchResult {
	base := "language:eng"
	if subject != "" {
		base = "subject:" + subject
	}
	q := fmt.Sprintf("%s first_publish_year:[%d TO *]", base, now.Year()-1)
	return o.search(ctx, map[string]string{
		"q":      q,
		"sort":   "new",
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
		"fields": olSearchFields,
	}, o.releasesTTL)
}

func (o *OpenLibrary) search(ctx context.Context, params map[string]string, ttl time.Duration) []model.SearchResult {
	var page searchPage
	if !o.get(ctx, "/search.json", params, ttl, &page) {
		return nil
	}
	out := make([]model.SearchResult, 0, len(page.Docs))
	for _, d := range page.Docs {
		out = append(out, d.ToSearchResult())
	}
	return out
}

// Health fetches a well-known work without the cache.
func (o *OpenLibrary) Health(ctx context.Context) error {
	return o.f.Probe(ctx, SourceOpenLibrary, o.baseURL+olHealthWorkPath, nil)
}
