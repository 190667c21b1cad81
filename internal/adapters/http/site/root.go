// Package site serves the embedded read-only web viewer.
package site

import (
	"context"
	"net/http"
)

// Register attaches the viewer routes to mux: the page itself at / and its
// assets under /assets/.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("GET /{$}", NewRootHandler())
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(FS())))
}

// RootHandler serves the viewer page.
type RootHandler struct{}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// ServeHTTP handles GET / requests.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, staticFS, "static/index.html")
}
