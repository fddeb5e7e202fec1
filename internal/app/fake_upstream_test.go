package service_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/bookfinder/internal/adapters/upstream"
	service "github.com/okian/bookfinder/internal/app"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const duneVolume = `{"totalItems":1,"items":[{
  "id":"B1gcgsgAAAAJ",
  "volumeInfo":{
    "title":"Dune","authors":["Frank Herbert"],"publisher":"Ace","publishedDate":"1990-09-01",
    "description":"<p>A desert planet &amp; a spice.</p>","pageCount":535,"averageRating":4.5,
    "categories":["Fiction / Science Fiction / General"],
    "imageLinks":{"thumbnail":"http://books.google.com/books/content?id=x&zoom=1&edge=curl"},
    "industryIdentifiers":[{"type":"ISBN_10","identifier":"0441172717"},{"type":"ISBN_13","identifier":"9780441172719"}]},
  "saleInfo":{"country":"US","isEbook":false}}]}`

const rescueVolume = `{"totalItems":1,"items":[{"id":"r1","volumeInfo":{"title":"Rescued",
  "imageLinks":{"smallThumbnail":"http://books.google.com/rescued?zoom=1&edge=curl"}}}]}`

const releaseDocs = `{"docs":[
  {"key":"/works/OL1W","title":"Fresh Book","author_name":["A. Writer"],"isbn":["9780000000002"],"first_publish_year":2026,"cover_i":1},
  {"key":"/works/OL2W","title":"Needs A Cover","author_name":["B. Writer"],"isbn":["9781111111113"],"first_publish_year":2025},
  {"key":"/works/OL3W","title":"Old Book","author_name":["C. Writer"],"isbn":["9782222222222"],"first_publish_year":2010,"cover_i":3},
  {"key":"/works/OL4W","title":"Fresh Book","author_name":["A. Writer"],"isbn":["9780000000002"],"first_publish_year":2026,"cover_i":1},
  {"key":"/works/OL5W","title":"Classic Tales","author_name":["D. Writer"],"isbn":["9783333333333"],"first_publish_year":2026,"cover_i":5}
]}`

// fakeUpstream serves Google Books under /google, Open Library under /ol and
// the Library of Congress under /loc.
type fakeUpstream struct {
	*httptest.Server
	mu      sync.Mutex
	queries map[string][]string
}

func (f *fakeUpstream) record(path, q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[path] = append(f.queries[path], q)
}

func (f *fakeUpstream) seen(path string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries[path]...)
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{queries: make(map[string][]string)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.record(r.URL.Path, r.URL.RawQuery)
		write := func(body string) { _, _ = w.Write([]byte(body)) }

		switch r.URL.Path {
		case "/google":
			query := q.Get("q")
			switch {
			case query == "isbn:9780441172719", strings.HasPrefix(query, "dune"), query == `inauthor:"Frank Herbert"`:
				write(duneVolume)
			case query == "isbn:9781111111113":
				write(rescueVolume)
			case query == "a":
				write(`{"totalItems":1}`)
			default:
				write(`{"totalItems":0}`)
			}
		case "/ol/api/books":
			if q.Get("bibkeys") != "ISBN:9780441172719" {
				write(`{}`)
				return
			}
			write(`{"ISBN:9780441172719":{"key":"/books/OL1M","title":"Dune","publishers":[{"name":"Chilton"}],
				"authors":[{"url":"https://openlibrary.org/authors/OL79034A/Frank_Herbert","name":"Frank Herbert","key":"/authors/OL79034A"}],
				"subjects":[{"name":"Deserts"}],"works":[{"key":"/works/OL893415W"}]}}`)
		case "/ol/works/OL893415W.json":
			write(`{"key":"/works/OL893415W","description":"Work text","subjects":["Arrakis"]}`)
		case "/ol/works/OL45804W.json":
			write(`{"key":"/works/OL45804W"}`)
		case "/ol/authors/OL79034A.json":
			write(`{"key":"/authors/OL79034A","name":"Frank Herbert","bio":{"type":"/type/text","value":"<b>Writer.</b>"},"birth_date":"1920","photos":[123]}`)
		case "/ol/works/OL893415W/editions.json":
			write(`{"entries":[
				{"key":"/books/OL1M","title":"Dune","isbn_13":["9780441172719"]},
				{"key":"/books/OL2M","title":"Dune","identifiers":{"isbn_10":["0441013597"]}}]}`)
		case "/ol/search.json":
			switch {
			case q.Get("sort") == "new" && q.Get("offset") == "0":
				write(releaseDocs)
			case q.Get("sort") == "new":
				write(`{"docs":[]}`)
			case strings.HasPrefix(q.Get("q"), "author_key:"):
				write(`{"docs":[{"key":"/works/OL893415W","title":"Dune","author_name":["Frank Herbert"],"author_key":["OL79034A"]}]}`)
			default:
				write(`{"docs":[{"key":"/works/OL893415W","title":"Dune","author_name":["Frank Herbert"],
					"isbn":["9780441172719"],"subject":["Deserts"],"first_publish_year":1965,"cover_i":9}]}`)
			}
		case "/loc/books":
			if q.Get("q") != "isbn:9780441172719" {
				write(`{"results":[]}`)
				return
			}
			write(`{"results":[{"title":"Dune","date":"1965","subject":["science fiction"],"lccn":["65022651"],
				"call_number":["PZ4.H5356 Du"],"id":"http://www.loc.gov/item/65022651/"}]}`)
		case "/loc/item/65022651/":
			write(`{"item":{"title":"Dune","contributor_names":["Herbert, Frank"],"date":"1965","lccn":"65022651","summary":["Desert epic."]}}`)
		case "/loc/search":
			write(`{"results":[{"title":"About","original_format":["web page"]},{"title":"Letter","original_format":["manuscript"]}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

// newService wires real upstream clients to the fake server.
func newService(f *fakeUpstream, googleKey string, opts ...service.Option) *service.Service {
	fetcher := upstream.NewFetcher(
		upstream.WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}),
	)
	google := upstream.NewGoogle(fetcher, f.URL+"/google", googleKey, time.Hour)
	ol := upstream.NewOpenLibrary(fetcher, f.URL+"/ol", time.Hour, time.Minute)
	loc := upstream.NewLOC(fetcher, f.URL+"/loc", time.Hour)
	opts = append([]service.Option{service.WithClock(func() time.Time { return fixedNow })}, opts...)
	return service.New(google, ol, loc, opts...)
}
