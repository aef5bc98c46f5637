package web

import (
	"io/fs"
	"net/http"
)

// StaticFile serves a single file from fsys.
func StaticFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, fsys, name)
	}
}
