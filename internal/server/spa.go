package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// handleSPA serves the browser renderer from dir, falling back to
// index.html for paths that are not real files (client-side routing).
// Hashed assets are cached; index.html never is.
func handleSPA(dir string) http.HandlerFunc {
	root := os.DirFS(dir)
	fileServer := http.FileServerFS(root)

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" {
			info, err := fs.Stat(root, name)
			if err == nil && !info.IsDir() {
				if strings.HasPrefix(name, "assets/") {
					w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				}
				fileServer.ServeHTTP(w, r)
				return
			}
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		}

		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, root, "index.html")
	}
}
