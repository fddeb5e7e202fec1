package upstream

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
)

const (
	googleVolumeFields = "totalItems,items(id,volumeInfo(title,subtitle,authors,publisher,publishedDate,description," +
		"pageCount,averageRating,ratingsCount,categories,dimensions," +
		"imageLinks(thumbnail,smallThumbnail,small,medium,large,extraLarge),industryIdentifiers,language),saleInfo,accessInfo)"
	googleSearchFields = "items(id,volumeInfo(title,subtitle,authors,publisher,publishedDate,averageRating,ratingsCount," +
		"categories,imageLinks(thumbnail,smallThumbnail,small,medium),industryIdentifiers,description,pageCount),saleInfo(isEbook))"
)

// Identifier is a Google Books industry identifier.
type Identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ImageLinks as served by Google Books.
type ImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

// VolumeInfo is the descriptive part of a Google Books volume.
type VolumeInfo struct {
	Title               string            `json:"title"`
	Subtitle            string            `json:"subtitle"`
	Authors             []string          `json:"authors"`
	Publisher           string            `json:"publisher"`
	PublishedDate       string            `json:"publishedDate"`
	Description         string            `json:"description"`
	PageCount           *int              `json:"pageCount"`
	AverageRating       *float64          `json:"averageRating"`
	RatingsCount        *int              `json:"ratingsCount"`
	Categories          []string          `json:"categories"`
	Dimensions          *model.Dimensions `json:"dimensions"`
	ImageLinks          ImageLinks        `json:"imageLinks"`
	IndustryIdentifiers []Identifier      `json:"industryIdentifiers"`
	Language            string            `json:"language"`
}

// Volume is a Google Books volume.
type Volume struct {
	ID         string            `json:"id"`
	VolumeInfo VolumeInfo        `json:"volumeInfo"`
	SaleInfo   *model.SaleInfo   `json:"saleInfo"`
	AccessInfo *model.AccessInfo `json:"accessInfo"`
}

type volumeList struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

// ISBNs returns the first ISBN-13 and ISBN-10 identifiers.
func (v Volume) ISBNs() (isbn13, isbn10 string) {
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		switch {
		case id.Type == "ISBN_13" && isbn13 == "":
			isbn13 = id.Identifier
		case id.Type == "ISBN_10" && isbn10 == "":
			isbn10 = id.Identifier
		}
	}
	return isbn13, isbn10
}

// Identifiers returns every industry identifier value.
func (v Volume) Identifiers() []string {
	out := make([]string, 0, len(v.VolumeInfo.IndustryIdentifiers))
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		out = append(out, id.Identifier)
	}
	return out
}

// IsEbook reports the saleInfo ebook flag.
func (v Volume) IsEbook() bool { return v.SaleInfo != nil && v.SaleInfo.IsEbook }

// Covers returns https image links. Missing large sizes are derived from
// the thumbnail.
func (v Volume) Covers() model.GoogleCoverLinks {
	l := v.VolumeInfo.ImageLinks
	c := model.GoogleCoverLinks{
		Thumbnail:      heuristics.EnsureHTTPS(l.Thumbnail),
		SmallThumbnail: heuristics.EnsureHTTPS(l.SmallThumbnail),
		Small:          heuristics.EnsureHTTPS(l.Small),
		Medium:         heuristics.EnsureHTTPS(l.Medium),
		Large:          heuristics.EnsureHTTPS(l.Large),
		ExtraLarge:     heuristics.EnsureHTTPS(l.ExtraLarge),
	}
	if c.Thumbnail != "" {
		if c.Large == "" {
			c.Large = heuristics.HighResURL(c.Thumbnail)
		}
		if c.ExtraLarge == "" {
			c.ExtraLarge = heuristics.HighResURL(c.Thumbnail)
		}
	}
	return c
}

// ToSearchResult maps a volume to the compact result shape.
func (v Volume) ToSearchResult() model.SearchResult {
	info := v.VolumeInfo
	isbn13, isbn10 := v.ISBNs()

	cover := v.Covers().First()
	if cover == "" {
		if id := firstNonEmpty(isbn13, isbn10); id != "" {
			cover = OpenLibraryISBNCover(id, "M")
		}
	}

	authors := make([]model.Author, 0, len(info.Authors))
	for _, a := range info.Authors {
		authors = append(authors, model.Author{Name: a})
	}

	cats := heuristics.SplitCategories(info.Categories)
	if len(cats) < 2 {
		cats = heuristics.InferGenres(info.Description+" "+info.Title, cats)
	}

	r := model.SearchResult{
		Title:         firstNonEmpty(info.Title, "No Title"),
		Subtitle:      info.Subtitle,
		Authors:       authors,
		ISBN13:        isbn13,
		ISBN10:        isbn10,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Categories:    cats,
		GoogleBookID:  v.ID,
		CoverURL:      cover,
		FormatTag:     heuristics.ClassifyFormat(info.PageCount, v.IsEbook()),
	}
	if name, order, ok := heuristics.DetectSeries(info.Title, info.Subtitle); ok {
		r.Series = &model.Series{Name: name, Order: order}
	}
	return r
}

// Google is the Google Books volumes client. Without an API key every call
// returns empty.
type Google struct {
	f       *Fetcher
	baseURL string
	apiKey  string
	ttl     time.Duration
	log     logger.Logger
}

// NewGoogle creates a Google Books client.
func NewGoogle(f *Fetcher, baseURL, apiKey string, ttl time.Duration) *Google {
	return &Google{f: f, baseURL: baseURL, apiKey: apiKey, ttl: ttl, log: logger.Named("google_books")}
}

// Enabled reports whether an API key is configured.
func (g *Google) Enabled() bool { return g.apiKey != "" }

// VolumeByISBN returns the first volume matching isbn, or nil.
func (g *Google) VolumeByISBN(ctx context.Context, isbn string) *Volume {
	if !g.Enabled() {
		return nil
	}
	var list volumeList
	found, err := g.f.GetJSON(ctx, SourceGoogle, g.baseURL, map[string]string{
		"q":      "isbn:" + isbn,
		"key":    g.apiKey,
		"fields": googleVolumeFields,
	}, g.ttl, &list)
	if err != nil {
		g.log.Warn(ctx, "volume lookup failed", logger.String("isbn", isbn), logger.Error(err))
		return nil
	}
	if !found || list.TotalItems == 0 || len(list.Items) == 0 {
		return nil
	}
	return &list.Items[0]
}

// Search runs a volumes query restricted to English. A non-empty subject is
// appended as a subject: qualifier.
func (g *Google) Search(ctx context.Context, q, subject string, limit, startIndex int) []model.SearchResult {
	if !g.Enabled() {
		return nil
	}
	if subject != "" {
		q += " subject:" + subject
	}
	var list volumeList
	_, err := g.f.GetJSON(ctx, SourceGoogle, g.baseURL, map[string]string{
		"q":            q,
		"key":          g.apiKey,
		"maxResults":   strconv.Itoa(limit),
		"startIndex":   strconv.Itoa(startIndex),
		"langRestrict": "en",
		"fields":       googleSearchFields,
	}, g.ttl, &list)
	if err != nil {
		g.log.Warn(ctx, "search failed", logger.String("query", q), logger.Error(err))
		return nil
	}
	out := make([]model.SearchResult, 0, len(list.Items))
	for _, v := range list.Items {
		out = append(out, v.ToSearchResult())
	}
	return out
}

// Health issues a minimal uncached query.
func (g *Google) Health(ctx context.Context) error {
	if !g.Enabled() {
		return ErrDisabled
	}
	return g.f.Probe(ctx, SourceGoogle, g.baseURL, map[string]string{
		"q": "a", "maxResults": "1", "fields": "totalItems", "key": g.apiKey,
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
