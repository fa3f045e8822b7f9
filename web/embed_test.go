package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestSPAHandler(t *testing.T) {
	t.Parallel()

	root := fstest.MapFS{
		"index.html":       {Data: []byte("<html>app</html>")},
		"assets/app-1a.js": {Data: []byte("console.log(1)")},
		"favicon.svg":      {Data: []byte("<svg/>")},
	}
	h := spaHandler(root)

	tests := []struct {
		path      string
		wantBody  string
		wantCache string
	}{
		{path: "/", wantBody: "<html>app</html>", wantCache: "no-cache"},
		{path: "/gallery", wantBody: "<html>app</html>", wantCache: "no-cache"},
		{path: "/assets", wantBody: "<html>app</html>", wantCache: "no-cache"},
		{path: "/assets/app-1a.js", wantBody: "console.log(1)", wantCache: "public, max-age=31536000, immutable"},
		{path: "/favicon.svg", wantBody: "<svg/>", wantCache: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("Expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
			if got := rec.Header().Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Expected Cache-Control %q, got %q", tt.wantCache, got)
			}
		})
	}
}

func TestEmbeddedIndex(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Technology Covenant") {
		t.Fatalf("Unexpected response %d: %q", rec.Code, rec.Body.String())
	}
}
