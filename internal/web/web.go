// Package web serves the static assets the live map and the PDF export read: the city GeoJSON and the
// document font.
//
// The handler satisfies the server Handler interface, so it mounts with
//
//	router.Handler(assets)
//
// Files are served read-only from a single directory under /assets/. Directory listings are not served.
package web

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/desertthunder/footprint/internal/shared"
)

// Prefix is the URL path the assets are mounted under.
const Prefix = "/assets/"

var contentTypes = map[string]string{
	".geojson": "application/geo+json",
	".json":    "application/json",
	".ttf":     "font/ttf",
	".otf":     "font/otf",
	".woff":    "font/woff",
	".woff2":   "font/woff2",
}

// Assets serves files from a directory.
type Assets struct {
	dir    string
	files  http.Handler
	maxAge int
}

// NewAssets creates an asset handler rooted at dir. The directory must exist.
func NewAssets(dir string) (*Assets, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: asset directory %s: %w", shared.ErrMissingConfig, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidConfig, dir)
	}

	return &Assets{
		dir:    dir,
		files:  http.StripPrefix(strings.TrimSuffix(Prefix, "/"), http.FileServer(http.Dir(dir))),
		maxAge: 3600,
	}, nil
}

// Dir returns the served directory.
func (a *Assets) Dir() string { return a.dir }

// Routes implements the server Handler interface.
func (a *Assets) Routes() []string {
	return []string{"GET " + Prefix}
}

// ServeHTTP serves one file, setting content types the stdlib does not know.
func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}

	if ct, ok := contentTypes[strings.ToLower(path.Ext(r.URL.Path))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", a.maxAge))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	a.files.ServeHTTP(w, r)
}
