package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func runCLI(args ...string) (string, error) {
	var out bytes.Buffer
	exitCode = 0
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSmokeCLI(t *testing.T) {
	convey.Convey("Given the smoke command", t, func() {
		convey.Convey("When listing probes by tag", func() {
			out, err := runCLI("list", "--tags", "genres")

			convey.Convey("Then only genre probes and the timing checks are shown", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "fiction taxonomy")
				convey.So(out, convey.ShouldNotContainSubstring, "hybrid search")
				convey.So(out, convey.ShouldContainSubstring, "genres rate limit")
			})
		})

		convey.Convey("When running a custom suite against a live server", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if r.URL.Path == "/" {
					_, _ = w.Write([]byte(`{"message":"Bookfinder API is running"}`))
					return
				}
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"not_found","detail":"Not Found"}`))
			}))
			defer srv.Close()

			path := filepath.Join(t.TempDir(), "suite.yaml")
			doc := `name: mini
probes:
  - name: root
    path: /
    filter: '.message | test("running")'
  - name: health
    path: /health
`
			convey.So(os.WriteFile(path, []byte(doc), 0o600), convey.ShouldBeNil)

			out, err := runCLI("run", "--url", srv.URL, "--suite", path, "--tags", "", "--log-level", "error")

			convey.Convey("Then the exit code is the failure count", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(exitCode, convey.ShouldEqual, 1)
				convey.So(out, convey.ShouldContainSubstring, "PASS    root")
				convey.So(out, convey.ShouldContainSubstring, "FAIL    health")
			})
		})

		convey.Convey("When the url is not absolute", func() {
			_, err := runCLI("run", "--url", "localhost", "--log-level", "error")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
