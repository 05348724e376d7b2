package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSiteHandler(t *testing.T) {
	Convey("Given a site handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		Convey("When registering the site handler", func() {
			Register(ctx, mux)

			Convey("Then / serves the landing page", func() {
				req := httptest.NewRequest("GET", "/", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldContainSubstring, "MarkSense")
				So(w.Body.String(), ShouldContainSubstring, "/api-docs")
			})

			Convey("And the stylesheet is served", func() {
				req := httptest.NewRequest("GET", "/style.css", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
			})

			Convey("And unknown files are not found", func() {
				req := httptest.NewRequest("GET", "/missing.html", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("And writes are not found", func() {
				req := httptest.NewRequest("POST", "/", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When registering on a nil mux", func() {
			Convey("Then it panics", func() {
				So(func() { Register(ctx, nil) }, ShouldPanic)
			})
		})
	})
}

func TestFS(t *testing.T) {
	Convey("Given the embedded file system", t, func() {
		fsys := FS()

		Convey("Then index.html is present", func() {
			f, err := fsys.Open("index.html")
			So(err, ShouldBeNil)
			So(f.Close(), ShouldBeNil)
		})
	})
}
