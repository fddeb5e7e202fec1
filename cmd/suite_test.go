package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/bookfinder/internal/config"
	"github.com/okian/bookfinder/internal/smoke"
	"github.com/smartystreets/goconvey/convey"
)

const leftHandDocs = `{"docs":[{"key":"/works/OL59863W","title":"The Left Hand of Darkness",
  "author_name":["Ursula K. Le Guin"],"isbn":["9780441478125"],"first_publish_year":1969,"cover_i":1}]}`

// catalogUpstream knows a single search and answers everything else with an
// empty object. The first search for it is slow so a cached repeat is faster.
func catalogUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	var searched atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(strings.ToLower(r.URL.Query().Get("q")), "left hand") {
			if searched.Add(1) == 1 {
				time.Sleep(150 * time.Millisecond)
			}
			_, _ = w.Write([]byte(leftHandDocs))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaultSuiteAgainstServer(t *testing.T) {
	initLogger(t)

	convey.Convey("Given the shipped server with a near-empty catalog", t, func() {
		up := catalogUpstream(t)
		setUpstreamEnv(t, up.URL)
		t.Setenv("GOOGLE_API_KEY", "")
		t.Setenv("BOOKFINDER_GOOGLE_API_KEY", "")
		t.Setenv("BOOKFINDER_CACHE_BACKEND", "memory")
		t.Setenv("BOOKFINDER_ADMIN_KEY", "secret")

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)
		srv, cleanup, err := build(ctx, cfg)
		convey.So(err, convey.ShouldBeNil)
		defer cleanup()

		api := httptest.NewServer(srv.Handler)
		defer api.Close()

		convey.Convey("When the embedded suite runs with the rate-limit check", func() {
			report, err := smoke.Run(ctx, smoke.Config{
				BaseURL:   api.URL,
				AdminKey:  "secret",
				RateLimit: true,
			})
			convey.So(err, convey.ShouldBeNil)

			outcomes := make(map[string]smoke.Outcome, len(report.Results))
			for _, res := range report.Results {
				outcomes[res.Probe] = res.Outcome
			}

			convey.Convey("Then only lookups that need catalog data fail", func() {
				convey.So(report.Total, convey.ShouldEqual, 41)
				convey.So(report.Passed, convey.ShouldEqual, 28)
				convey.So(report.Failed, convey.ShouldEqual, 10)
				convey.So(report.Warnings, convey.ShouldEqual, 3)
				convey.So(smoke.ExitCode(report), convey.ShouldEqual, 10)

				for _, name := range []string{
					"book by isbn-13",
					"book by isbn-10 normalizes to isbn-13",
					"book by hyphenated isbn",
					"book lists subjects and sources",
					"book carries lccn list",
					"book cover is https",
					"book published date present",
					"series detected",
					"author by open library key",
					"work editions",
				} {
					convey.So(outcomes[name], convey.ShouldEqual, smoke.Fail)
				}
			})

			convey.Convey("Then missing optional sources only warn", func() {
				convey.So(outcomes["health is ok"], convey.ShouldEqual, smoke.Warning)
				convey.So(outcomes["book by lccn"], convey.ShouldEqual, smoke.Warning)
				convey.So(outcomes["author by name"], convey.ShouldEqual, smoke.Warning)
			})

			convey.Convey("Then error statuses, caching and rate limiting match the suite", func() {
				for _, name := range []string{
					"unknown route is a json 404",
					"cache stats with admin key",
					"cache stats without admin key",
					"cache stats with wrong admin key",
					"unknown taxonomy",
					"invalid isbn length",
					"invalid isbn checksum",
					"unknown isbn",
					"malformed lccn",
					"search without query",
					"malformed work key",
					"primary sources without query",
					"cache cold vs hot",
					"genres rate limit",
				} {
					convey.So(outcomes[name], convey.ShouldEqual, smoke.Pass)
				}
			})
		})
	})
}
