package web

import (
	"net/http"
	"os"
	"path/filepath"
)

// Server serves the bundled chat page. Responses are never cached so a
// redeploy shows up on plain refresh.
type Server struct {
	Dir string
}

func (s *Server) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.Dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		if r.URL.Path != "/" {
			candidate := filepath.Join(s.Dir, filepath.Clean(r.URL.Path))
			if _, err := os.Stat(candidate); err != nil {
				http.ServeFile(w, r, filepath.Join(s.Dir, "index.html"))
				return
			}
		}
		fs.ServeHTTP(w, r)
	})
}
