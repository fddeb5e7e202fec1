package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/bookfinder/internal/adapters/cache"
	"github.com/okian/bookfinder/internal/adapters/upstream"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFetcher(t *testing.T) {
	Convey("Given a fetcher with a memory cache", t, func() {
		ctx := context.Background()
		var calls atomic.Int32
		var lastUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			lastUA = r.Header.Get("User-Agent")
			switch r.URL.Path {
			case "/ok":
				_, _ = w.Write([]byte(`{"title":"Dune","q":"` + r.URL.Query().Get("q") + `"}`))
			case "/empty":
				_, _ = w.Write([]byte(`{}`))
			case "/boom":
				w.WriteHeader(http.StatusInternalServerError)
			case "/garbage":
				_, _ = w.Write([]byte(`<html>`))
			default:
				http.NotFound(w, r)
			}
		}))
		Reset(srv.Close)

		mem := cache.NewMemory()
		f := upstream.NewFetcher(upstream.WithCache(mem), upstream.WithUserAgent("test-agent/1.0"), upstream.WithRateLimit(1000, 10))

		Convey("When the same document is requested twice", func() {
			var a, b struct {
				Title string `json:"title"`
				Q     string `json:"q"`
			}
			found1, err1 := f.GetJSON(ctx, "test", srv.URL+"/ok", map[string]string{"q": "dune", "unused": ""}, time.Hour, &a)
			found2, err2 := f.GetJSON(ctx, "test", srv.URL+"/ok", map[string]string{"q": "dune"}, time.Hour, &b)

			Convey("Then the second answer should come from the cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(found1, ShouldBeTrue)
				So(found2, ShouldBeTrue)
				So(b, ShouldResemble, a)
				So(a.Q, ShouldEqual, "dune")
				So(calls.Load(), ShouldEqual, 1)
				So(lastUA, ShouldEqual, "test-agent/1.0")
			})
		})

		Convey("When the upstream answers 404", func() {
			var out map[string]any
			found, err := f.GetJSON(ctx, "test", srv.URL+"/missing", nil, time.Hour, &out)

			Convey("Then it should be a miss without error", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When the upstream answers an empty object", func() {
			var out map[string]any
			found, err := f.GetJSON(ctx, "test", srv.URL+"/empty", nil, time.Hour, &out)
			_, _ = f.GetJSON(ctx, "test", srv.URL+"/empty", nil, time.Hour, &out)

			Convey("Then it should not be found and not cached", func() {
				So(err, ShouldBeNil)
				So(found, ShouldBeFalse)
				So(calls.Load(), ShouldEqual, 2)
				So(mem.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the upstream fails", func() {
			var out map[string]any
			_, err := f.GetJSON(ctx, "test", srv.URL+"/boom", nil, time.Hour, &out)
			So(errors.Is(err, upstream.ErrStatus), ShouldBeTrue)

			_, err = f.GetJSON(ctx, "test", srv.URL+"/garbage", nil, time.Hour, &out)
			So(errors.Is(err, upstream.ErrDecode), ShouldBeTrue)
		})

		Convey("When probing", func() {
			So(f.Probe(ctx, "test", srv.URL+"/ok", nil), ShouldBeNil)
			So(f.Probe(ctx, "test", srv.URL+"/missing", nil), ShouldNotBeNil)
			So(f.Probe(ctx, "test", srv.URL+"/boom", nil), ShouldNotBeNil)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			var out map[string]any
			_, err := f.GetJSON(cctx, "test", srv.URL+"/ok", map[string]string{"q": "fresh"}, time.Hour, &out)
			So(err, ShouldNotBeNil)
		})
	})
}

const googleVolumeBody = `{
  "totalItems": 1,
  "items": [{
    "id": "B1gcgsgAAAAJ",
    "volumeInfo": {
      "title": "Dune",
      "subtitle": "Dune Chronicles, Book 1",
      "authors": ["Frank Herbert"],
      "publisher": "Ace",
      "publishedDate": "1990-09-01",
      "description": "<p>A desert planet &amp; a spice.</p>",
      "pageCount": 535,
      "averageRating": 4.5,
      "categories": ["Fiction / Science Fiction / General"],
      "imageLinks": {"thumbnail": "http://books.google.com/books/content?id=x&zoom=1&edge=curl"},
      "industryIdentifiers": [
        {"type": "ISBN_10", "identifier": "0441172717"},
        {"type": "ISBN_13", "identifier": "9780441172719"}
      ]
    },
    "saleInfo": {"country": "US", "isEbook": false}
  }]
}`

func TestGoogle(t *testing.T) {
	Convey("Given a fake Google Books server", t, func() {
		ctx := context.Background()
		var lastQuery atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastQuery.Store(r.URL.Query())
			if r.URL.Query().Get("key") != "k" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(googleVolumeBody))
		}))
		Reset(srv.Close)
		f := upstream.NewFetcher()

		Convey("When no API key is configured", func() {
			g := upstream.NewGoogle(f, srv.URL, "", time.Hour)

			Convey("Then every call should be empty", func() {
				So(g.Enabled(), ShouldBeFalse)
				So(g.VolumeByISBN(ctx, "9780441172719"), ShouldBeNil)
				So(g.Search(ctx, "dune", "", 10, 0), ShouldBeEmpty)
				So(g.Health(ctx), ShouldEqual, upstream.ErrDisabled)
			})
		})

		Convey("When looking up a volume by ISBN", func() {
			g := upstream.NewGoogle(f, srv.URL, "k", time.Hour)
			v := g.VolumeByISBN(ctx, "9780441172719")

			Convey("Then the volume should be decoded", func() {
				So(v, ShouldNotBeNil)
				So(v.ID, ShouldEqual, "B1gcgsgAAAAJ")
				isbn13, isbn10 := v.ISBNs()
				So(isbn13, ShouldEqual, "9780441172719")
				So(isbn10, ShouldEqual, "0441172717")
				So(v.Identifiers(), ShouldResemble, []string{"0441172717", "9780441172719"})
				So(lastQuery.Load().(url.Values)["q"], ShouldResemble, []string{"isbn:9780441172719"})
			})

			Convey("Then covers should be https with derived large sizes", func() {
				c := v.Covers()
				So(c.Thumbnail, ShouldEqual, "https://books.google.com/books/content?id=x&zoom=1")
				So(c.Large, ShouldEqual, "https://books.google.com/books/content?id=x&zoom=0")
				So(c.ExtraLarge, ShouldEqual, c.Large)
			})

			Convey("Then large sizes served by Google should be kept", func() {
				vol := upstream.Volume{VolumeInfo: upstream.VolumeInfo{ImageLinks: upstream.ImageLinks{
					Thumbnail: "http://books.google.com/books/content?id=x&zoom=1",
					Large:     "http://books.google.com/books/content?id=x&zoom=4",
				}}}
				c := vol.Covers()
				So(c.Large, ShouldEqual, "https://books.google.com/books/content?id=x&zoom=4")
				So(c.ExtraLarge, ShouldEqual, "https://books.google.com/books/content?id=x&zoom=0")
			})
		})

		Convey("When searching with a subject", func() {
			g := upstream.NewGoogle(f, srv.URL, "k", time.Hour)
			res := g.Search(ctx, "dune", "fiction", 5, 10)

			Convey("Then the query and mapping should follow the volume", func() {
				q := lastQuery.Load().(url.Values)
				So(q["q"], ShouldResemble, []string{"dune subject:fiction"})
				So(q["maxResults"], ShouldResemble, []string{"5"})
				So(q["startIndex"], ShouldResemble, []string{"10"})
				So(q["langRestrict"], ShouldResemble, []string{"en"})

				So(res, ShouldHaveLength, 1)
				r := res[0]
				So(r.Title, ShouldEqual, "Dune")
				So(r.Authors[0].Name, ShouldEqual, "Frank Herbert")
				So(r.ISBN13, ShouldEqual, "9780441172719")
				So(r.Categories, ShouldContain, "Science Fiction")
				So(r.Categories, ShouldNotContain, "General")
				So(r.FormatTag, ShouldEqual, "Novel")
				So(r.Series, ShouldNotBeNil)
				So(r.Series.Name, ShouldEqual, "Dune Dune Chronicles")
				So(*r.Series.Order, ShouldEqual, 1)
				So(r.CoverURL, ShouldStartWith, "https://books.google.com/")
			})
		})

		Convey("When the key is rejected", func() {
			g := upstream.NewGoogle(f, srv.URL, "bad", time.Hour)
			So(g.VolumeByISBN(ctx, "9780441172719"), ShouldBeNil)
			So(g.Health(ctx), ShouldNotBeNil)
		})
	})

	Convey("Given a volume without images", t, func() {
		var v upstream.Volume
		So(json.Unmarshal([]byte(`{"id":"x","volumeInfo":{"industryIdentifiers":[{"type":"ISBN_13","identifier":"9780000000002"}]}}`), &v), ShouldBeNil)
		r := v.ToSearchResult()

		Convey("Then the cover should fall back to Open Library and the title to a placeholder", func() {
			So(r.CoverURL, ShouldEqual, "https://covers.openlibrary.org/b/isbn/9780000000002-M.jpg")
			So(r.Title, ShouldEqual, "No Title")
			So(r.FormatTag, ShouldEqual, "Unknown Format")
		})
	})
}

func TestOpenLibrary(t *testing.T) {
	Convey("Given a fake Open Library server", t, func() {
		ctx := context.Background()
		var lastQuery atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastQuery.Store(r.URL.Query())
			switch r.URL.Path {
			case "/api/books":
				_, _ = w.Write([]byte(`{"ISBN:9780441172719":{
					"key":"/books/OL1M","title":"Dune","publishers":[{"name":"Ace"}],
					"number_of_pages":535,"description":{"type":"/type/text","value":"Spice."},
					"authors":[{"url":"https://openlibrary.org/authors/OL79034A/Frank_Herbert","name":"Frank Herbert"}],
					"subjects":[{"name":"Science Fiction","url":"x"},"Deserts"],
					"works":[{"key":"/works/OL893415W"}]}}`))
			case "/works/OL893415W.json":
				_, _ = w.Write([]byte(`{"key":"/works/OL893415W","description":"Work text","subjects":["Arrakis"],"subject_places":["Dune (Imaginary place)"],"subject_times":["10191"]}`))
			case "/authors/OL79034A.json":
				_, _ = w.Write([]byte(`{"key":"/authors/OL79034A","name":"Frank Herbert","bio":"Writer.","photos":[-1,123]}`))
			case "/works/OL893415W/editions.json":
				_, _ = w.Write([]byte(`{"entries":[{"key":"/books/OL1M","title":"Dune","identifiers":{"isbn_13":["9780441172719"]}}]}`))
			case "/search.json":
				_, _ = w.Write([]byte(`{"numFound":1,"docs":[{"key":"/works/OL893415W","title":"Dune",
					"author_name":["Frank Herbert","Someone"],"author_key":["OL79034A"],
					"isbn":["0441172717","9780441172719","9780441013593"],"publisher":["Ace","Chilton"],
					"subject":["Fiction","Science Fiction -- Fiction"],"first_publish_year":1965,"cover_i":12345}]}`))
			default:
				http.NotFound(w, r)
			}
		}))
		Reset(srv.Close)
		ol := upstream.NewOpenLibrary(upstream.NewFetcher(), srv.URL+"/", 7*24*time.Hour, time.Hour)

		Convey("When fetching an edition by ISBN", func() {
			e := ol.BookByISBN(ctx, "9780441172719")

			Convey("Then mixed field shapes should decode", func() {
				So(e, ShouldNotBeNil)
				So(e.Description.String(), ShouldEqual, "Spice.")
				So(upstream.Names(e.Publishers), ShouldResemble, []string{"Ace"})
				So(upstream.Names(e.Subjects), ShouldResemble, []string{"Science Fiction", "Deserts"})
				So(e.WorkKey(), ShouldEqual, "/works/OL893415W")
				So(e.Authors[0].ShortKey(), ShouldEqual, "OL79034A")
				So(*e.NumberOfPages, ShouldEqual, 535)
			})
		})

		Convey("When the ISBN is unknown", func() {
			So(ol.BookByISBN(ctx, "9780000000002"), ShouldBeNil)
		})

		Convey("When fetching related records", func() {
			w := ol.Work(ctx, "/works/OL893415W")
			a := ol.Author(ctx, "/authors/OL79034A")
			p := ol.Editions(ctx, "OL893415W")

			Convey("Then each should decode", func() {
				So(w.Description.String(), ShouldEqual, "Work text")
				So(w.Tags(), ShouldResemble, []string{"Arrakis", "Dune (Imaginary place)", "10191"})
				So(a.Bio.String(), ShouldEqual, "Writer.")
				So(a.Photos, ShouldResemble, []int64{-1, 123})
				So(p.Size, ShouldBeNil)
				So(p.Entries[0].Identifiers.ISBN13, ShouldResemble, []string{"9780441172719"})
				So(lastQuery.Load().(url.Values)["limit"], ShouldResemble, []string{"50"})
			})
		})

		Convey("When searching", func() {
			res := ol.Search(ctx, "dune", "", 10, 0)

			Convey("Then documents should map to results", func() {
				So(res, ShouldHaveLength, 1)
				r := res[0]
				So(r.ISBN13, ShouldEqual, "9780441172719")
				So(r.ISBN10, ShouldEqual, "0441172717")
				So(r.Authors, ShouldHaveLength, 2)
				So(r.Authors[0].Key, ShouldEqual, "OL79034A")
				So(r.Authors[1].Key, ShouldBeEmpty)
				So(r.Publisher, ShouldEqual, "Ace")
				So(r.PublishedDate, ShouldEqual, "1965")
				So(r.CoverURL, ShouldEqual, "https://covers.openlibrary.org/b/id/12345-M.jpg")
				So(r.OpenLibraryWorkID, ShouldEqual, "/works/OL893415W")
				So(r.Categories, ShouldResemble, []string{"Fiction", "Science Fiction"})

				q := lastQuery.Load().(url.Values)
				So(q["language"], ShouldResemble, []string{"eng"})
				_, hasSubject := q["subject"]
				So(hasSubject, ShouldBeFalse)
			})
		})

		Convey("When searching new releases", func() {
			now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			_ = ol.NewReleases(ctx, "fantasy", 40, 80, now)

			Convey("Then the query should bound the first publish year", func() {
				q := lastQuery.Load().(url.Values)
				So(q["q"], ShouldResemble, []string{"subject:fantasy first_publish_year:[2025 TO *]"})
				So(q["sort"], ShouldResemble, []string{"new"})
				So(q["offset"], ShouldResemble, []string{"80"})
			})
		})

		Convey("Then health should probe a known work", func() {
			So(ol.Health(ctx), ShouldNotBeNil)
		})
	})
}

func TestNormalizeLOC(t *testing.T) {
	Convey("Given a search style LOC item", t, func() {
		var item map[string]any
		So(json.Unmarshal([]byte(`{
			"title": "Dune",
			"date": "c1965.",
			"edition": ["1st ed."],
			"subject": "science fiction",
			"description": ["First line.", "Second line."],
			"contributor": ["herbert, frank", "a", "b", "c"],
			"id": "http://www.loc.gov/item/65022651/",
			"lccn": "65022651",
			"call_number": ["PZ4.H5356 Du"],
			"original_format": ["book"],
			"publisher": ["Chilton Books"]
		}`), &item), ShouldBeNil)
		rec := upstream.NormalizeLOC(item)

		Convey("Then polymorphic fields should be flattened", func() {
			So(rec.Title, ShouldEqual, "Dune")
			So(rec.PublishedDate, ShouldEqual, "1965")
			So(rec.Edition, ShouldEqual, "1st ed.")
			So(rec.Subjects, ShouldResemble, []string{"science fiction"})
			So(rec.Description, ShouldEqual, "First line. Second line.")
			So(rec.Authors, ShouldHaveLength, 3)
			So(rec.LCCN, ShouldResemble, []string{"65022651"})
			So(rec.CallNumber, ShouldEqual, "PZ4.H5356 Du")
			So(rec.LOCURL, ShouldEqual, "http://www.loc.gov/item/65022651/")
			So(rec.Format, ShouldEqual, "book")
			So(rec.Publisher, ShouldEqual, "Chilton Books")
		})
	})

	Convey("Given an item body with sparse fields", t, func() {
		rec := upstream.NormalizeLOC(map[string]any{
			"summary":           []any{"A summary."},
			"contributor_names": []any{map[string]any{"name": "Doe, Jane"}},
			"url":               "https://www.loc.gov/item/x/",
			"library_of_congress_control_number": "2001012345",
		})

		Convey("Then defaults and alternates should apply", func() {
			So(rec.Title, ShouldEqual, "Untitled Document")
			So(rec.Format, ShouldEqual, "Unknown")
			So(rec.Description, ShouldEqual, "A summary.")
			So(rec.Authors[0].Name, ShouldEqual, "Doe, Jane")
			So(rec.LOCURL, ShouldEqual, "https://www.loc.gov/item/x/")
			So(rec.LCCN, ShouldResemble, []string{"2001012345"})
			So(rec.Subjects, ShouldNotBeNil)
		})
	})
}

func TestLOC(t *testing.T) {
	Convey("Given a fake LOC server", t, func() {
		ctx := context.Background()
		var lastUA, lastAccept string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastUA, lastAccept = r.Header.Get("User-Agent"), r.Header.Get("Accept")
			switch {
			case r.URL.Path == "/books":
				_, _ = w.Write([]byte(`{"results":[{"title":"Dune","lccn":["65022651"],"date":"1965"}]}`))
			case r.URL.Path == "/item/65022651/":
				_, _ = w.Write([]byte(`{"item":{"title":"Dune","lccn":"65022651"}}`))
			case r.URL.Path == "/item/noitem/":
				_, _ = w.Write([]byte(`{"other":1}`))
			case r.URL.Path == "/search":
				_, _ = w.Write([]byte(`{"results":[
					{"title":"About the Library","original_format":["web page"]},
					{"title":"Lincoln letter","original_format":["manuscript/mixed material"]}]}`))
			default:
				http.NotFound(w, r)
			}
		}))
		Reset(srv.Close)
		l := upstream.NewLOC(upstream.NewFetcher(upstream.WithUserAgent("Bookfinder/4.0")), srv.URL, time.Hour)

		Convey("Then lookups should normalize the first record", func() {
			rec := l.ByISBN(ctx, "9780441172719")
			So(rec, ShouldNotBeNil)
			So(rec.LCCN, ShouldResemble, []string{"65022651"})
			So(lastUA, ShouldEqual, "Bookfinder/4.0")
			So(lastAccept, ShouldEqual, "application/json")

			So(l.ByLCCN(ctx, " 65022651 ").Title, ShouldEqual, "Dune")
			So(l.ByLCCN(ctx, "noitem"), ShouldBeNil)
			So(l.ByLCCN(ctx, "missing"), ShouldBeNil)
		})

		Convey("Then search should skip web pages and flag primary sources", func() {
			res := l.Search(ctx, "lincoln", 5)
			So(res, ShouldHaveLength, 1)
			So(res[0].Title, ShouldEqual, "Lincoln letter")
			So(res[0].IsPrimarySource, ShouldBeTrue)
			So(strings.ToLower(res[0].Format), ShouldContainSubstring, "manuscript")
		})
	})
}
