package upstream

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/okian/bookfinder/internal/domain/heuristics"
	"github.com/okian/bookfinder/internal/domain/model"
	"github.com/okian/bookfinder/pkg/logger"
)

const (
	locMaxAuthors     = 3
	locUntitled       = "Untitled Document"
	locUnknownFormat  = "Unknown"
	locWebPageFormat  = "web page"
	locDefaultResults = 10
)

// LOC is the Library of Congress JSON API client.
type LOC struct {
	f       *Fetcher
	baseURL string
	ttl     time.Duration
	log     logger.Logger
}

// NewLOC creates a Library of Congress client.
func NewLOC(f *Fetcher, baseURL string, ttl time.Duration) *LOC {
	return &LOC{f: f, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl, log: logger.Named("loc")}
}

func (l *LOC) get(ctx context.Context, path string, params map[string]string, out any) bool {
	found, err := l.f.GetJSON(ctx, SourceLOC, l.baseURL+path, params, l.ttl, out)
	if err != nil {
		l.log.Warn(ctx, "request failed", logger.String("path", path), logger.Error(err))
		return false
	}
	return found
}

// ByISBN returns the most relevant book record for isbn, or nil.
func (l *LOC) ByISBN(ctx context.Context, isbn string) *model.LOCRecord {
	var page struct {
		Results []map[string]any `json:"results"`
	}
	if !l.get(ctx, "/books", map[string]string{"q": "isbn:" + isbn, "fo": "json", "at": "results,pagination"}, &page) {
		return nil
	}
	if len(page.Results) == 0 {
		return nil
	}
	rec := NormalizeLOC(page.Results[0])
	return &rec
}

// ByLCCN fetches an item directly by its control number, or nil.
func (l *LOC) ByLCCN(ctx context.Context, lccn string) *model.LOCRecord {
	var page struct {
		Item map[string]any `json:"item"`
	}
	lccn = strings.TrimSpace(lccn)
	if !l.get(ctx, "/item/"+lccn+"/", map[string]string{"fo": "json"}, &page) {
		return nil
	}
	if len(page.Item) == 0 {
		l.log.Warn(ctx, "item response without item field", logger.String("lccn", lccn))
		return nil
	}
	rec := NormalizeLOC(page.Item)
	return &rec
}

// Search runs a general collection search. Web pages about the library
// are skipped; every other hit is flagged as a primary source.
func (l *LOC) Search(ctx context.Context, q string, limit int) []model.LOCRecord {
	if limit <= 0 {
		limit = locDefaultResults
	}
	var page struct {
		Results []map[string]any `json:"results"`
	}
	if !l.get(ctx, "/search", map[string]string{"q": q, "fo": "json", "c": strconv.Itoa(limit), "at": "results"}, &page) {
		return nil
	}
	out := make([]model.LOCRecord, 0, len(page.Results))
	for _, item := range page.Results {
		if containsFold(stringList(item["original_format"]), locWebPageFormat) {
			continue
		}
		rec := NormalizeLOC(item)
		rec.IsPrimarySource = true
		out = append(out, rec)
	}
	return out
}

// NormalizeLOC extracts a record from either a search result or an item
// body. Most LOC fields may be a string or a list.
func NormalizeLOC(item map[string]any) model.LOCRecord {
	rec := model.LOCRecord{
		Title:         firstNonEmpty(firstString(item["title"]), locUntitled),
		PublishedDate: heuristics.ExtractYear(firstString(item["date"])),
		Publisher:     firstString(item["publisher"]),
		Edition:       firstString(item["edition"]),
		Subjects:      stringList(item["subject"]),
		CallNumber:    firstString(item["call_number"]),
		LOCURL:        firstString(item["id"]),
		Format:        firstString(item["original_format"]),
		Authors:       []model.Author{},
	}
	if rec.LOCURL == "" {
		rec.LOCURL = firstString(item["url"])
	}
	if rec.Format == "" {
		rec.Format = locUnknownFormat
	}

	desc := item["summary"]
	if isEmptyValue(desc) {
		desc = item["description"]
	}
	rec.Description = strings.Join(stringList(desc), " ")

	contributors := item["contributor_names"]
	if isEmptyValue(contributors) {
		contributors = item["contributor"]
	}
	for _, c := range anyList(contributors) {
		if len(rec.Authors) == locMaxAuthors {
			break
		}
		var name string
		switch v := c.(type) {
		case string:
			name = v
		case map[string]any:
			name, _ = v["name"].(string)
		}
		if name != "" {
			rec.Authors = append(rec.Authors, model.Author{Name: name})
		}
	}

	lccn := item["lccn"]
	if isEmptyValue(lccn) {
		lccn = item["library_of_congress_control_number"]
	}
	rec.LCCN = stringList(lccn)
	if rec.Subjects == nil {
		rec.Subjects = []string{}
	}
	return rec
}

func anyList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func stringList(v any) []string {
	out := []string{}
	for _, e := range anyList(v) {
		switch s := e.(type) {
		case string:
			if s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(s, 'f', -1, 64))
		}
	}
	return out
}

func firstString(v any) string {
	if l := stringList(v); len(l) > 0 {
		return l[0]
	}
	return ""
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func containsFold(list []string, needle string) bool {
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}
