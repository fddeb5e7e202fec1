// Package heuristics derives tags, series, formats and clean text from raw
// upstream metadata.
package heuristics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Format tags returned by ClassifyFormat.
const (
	FormatUnknown    = "Unknown Format"
	FormatShortStory = "Short Story"
	FormatNovella    = "Novella"
	FormatEbook      = "eBook"
	FormatNovel      = "Novel"
)

// MatureContent is the only content flag currently produced.
const MatureContent = "Mature Content"

const maxSeriesNameLen = 50

var (
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
	catSplit   = regexp.MustCompile(`/+|--`)
	yearRe     = regexp.MustCompile(`\d{4}`)

	seriesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?P<name>.+?),?\s+Book\s+(?P<order>\d+)`),
		regexp.MustCompile(`(?i)Book\s+(?P<order>\d+)\s+of\s+(?P<name>.+)`),
		regexp.MustCompile(`(?i)(?P<name>.+?)\s+Trilogy`),
		regexp.MustCompile(`(?i)(?P<name>.+?)\s+Series`),
	}
	genericSeriesNames = map[string]bool{"fiction": true, "novel": true, "edition": true}

	categoryStopWords = map[string]bool{
		"general":             true,
		"electronic books":    true,
		"books":               true,
		"juvenile fiction":    true,
		"young adult fiction": true,
	}

	contentTriggers = []string{"erotica", "explicit", "mature content", "dark romance", "sexual violence"}
)

// genreKeywords maps whole words found in descriptions to genre tags.
var genreKeywords = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"vampire":   "Paranormal",
	"werewolf":  "Paranormal",
	"witch":     "Fantasy",
	"dragon":    "Fantasy",
	"magic":     "Fantasy",
	"wizard":    "Fantasy",
	"kingdom":   "Fantasy",
	"space":     "Sci-Fi",
	"alien":     "Sci-Fi",
	"robot":     "Sci-Fi",
	"future":    "Sci-Fi",
	"detective": "Mystery",
	"murder":    "Mystery",
	"crime":     "Mystery",
	"police":    "Mystery",
	"spy":       "Thriller",
	"espionage": "Thriller",
	"agent":     "Thriller",
	"love":      "Romance",
	"marriage":  "Romance",
	"kiss":      "Romance",
	"history":   "Historical",
	"war":       "Historical",
	"battle":    "Historical",
	"code":      "Technology",
	"computer":  "Technology",
	"ai":        "Technology",
}

// EnsureHTTPS upgrades http links and drops the curled-page effect from
// Google Books thumbnails.
func EnsureHTTPS(url string) string {
	if url == "" {
		return ""
	}
	secure := strings.ReplaceAll(url, "http://", "https://")
	if strings.Contains(secure, "books.google.com") {
		secure = strings.ReplaceAll(secure, "&edge=curl", "")
	}
	return secure
}

// HighResURL asks Google Books for the largest rendition of a thumbnail.
func HighResURL(url string) string {
	return strings.ReplaceAll(EnsureHTTPS(url), "zoom=1", "zoom=0")
}

// CleanHTML strips tags, decodes the common entities and collapses whitespace.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}
	clean := htmlTag.ReplaceAllString(text, "")
	clean = strings.NewReplacer("&quot;", `"`, "&apos;", "'", "&amp;", "&").Replace(clean)
	return strings.TrimSpace(whitespace.ReplaceAllString(clean, " "))
}

// DetectSeries looks for series markers in the title and subtitle. It returns
// the series name and, when present, the position within it.
func DetectSeries(title, subtitle string) (name string, order *int, ok bool) {
	full := title + " " + subtitle
	for _, re := range seriesPatterns {
		m := re.FindStringSubmatch(full)
		if m == nil {
			continue
		}
		var ord *int
		if i := re.SubexpIndex("order"); i >= 0 && m[i] != "" {
			if n, err := strconv.Atoi(m[i]); err == nil {
				ord = &n
			}
		}
		n := strings.TrimSpace(m[re.SubexpIndex("name")])
		if len(n) > maxSeriesNameLen || genericSeriesNames[strings.ToLower(n)] {
			continue
		}
		return n, ord, true
	}
	return "", nil, false
}

// ClassifyFormat buckets a book by page count. A nil or zero count is unknown.
func ClassifyFormat(pageCount *int, isEbook bool) string {
	if pageCount == nil || *pageCount == 0 {
		return FormatUnknown
	}
	switch {
	case *pageCount < 50:
		return FormatShortStory
	case *pageCount < 150:
		return FormatNovella
	case isEbook:
		return FormatEbook
	default:
		return FormatNovel
	}
}

// ContentFlag returns MatureContent when the description or categories mention
// adult themes, otherwise "".
func ContentFlag(description string, categories []string) string {
	text := strings.ToLower(description + " " + strings.Join(categories, " "))
	for _, t := range contentTriggers {
		if strings.Contains(text, t) {
			return MatureContent
		}
	}
	return ""
}

// InferGenres adds genre tags for keywords that appear as whole words in text.
// The result is the sorted union with existing.
func InferGenres(text string, existing []string) []string {
	tags := make(map[string]struct{}, len(existing)+2)
	for _, t := range existing {
		tags[t] = struct{}{}
	}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), notWordRune) {
		if tag, ok := genreKeywords[w]; ok {
			tags[tag] = struct{}{}
		}
	}
	return sortedKeys(tags)
}

// SplitCategories splits BISAC style paths such as "Fiction / Science Fiction"
// or "Dragons -- Fiction" into individual tags, dropping generic ones.
func SplitCategories(raw []string) []string {
	tags := make(map[string]struct{})
	for _, cat := range raw {
		for _, part := range catSplit.Split(cat, -1) {
			clean := strings.TrimSpace(part)
			if clean == "" || categoryStopWords[strings.ToLower(clean)] {
				continue
			}
			tags[clean] = struct{}{}
		}
	}
	return sortedKeys(tags)
}

// ExtractYear returns the first four digit run in date, or "".
func ExtractYear(date string) string {
	return yearRe.FindString(date)
}

// Union merges string sets and returns them sorted.
func Union(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, s := range l {
			set[s] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func notWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
