package api

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleSite serves the site directory. Pages the processor matches are
// decorated on the way out; everything else goes to the file server.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	// Cleaning a rooted path drops any ".." that would escape the root.
	rel := strings.TrimPrefix(path.Clean(upath), "/")

	full := filepath.Join(s.site.Root(), filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		s.files.ServeHTTP(w, r)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			target := r.URL.Path + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		rel = path.Join(rel, "index.html")
		full = filepath.Join(full, "index.html")
		if info, err = os.Stat(full); err != nil {
			s.files.ServeHTTP(w, r)
			return
		}
	}

	if !s.site.Matches(rel) {
		s.files.ServeHTTP(w, r)
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		s.log.Error("read page", "path", rel, "error", err)
		http.Error(w, "failed to read page", http.StatusInternalServerError)
		return
	}
	out, res, err := s.decorate(data, rel)
	if err != nil {
		s.log.Warn("decorate failed, serving original", "path", rel, "error", err)
		s.files.ServeHTTP(w, r)
		return
	}

	writeResultHeaders(w, res)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, path.Base(rel), info.ModTime(), bytes.NewReader(out))
}
