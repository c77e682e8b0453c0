package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/page"
)

// handleDecorate decorates the page in the request body. The optional
// "name" query parameter selects the loader by extension.
func (s *Server) handleDecorate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	name := sanitizeFilename(r.URL.Query().Get("name"))
	if name == "unnamed" {
		name = "page.html"
	}
	if !page.IsSupported(name) {
		jsonError(w, fmt.Sprintf("unsupported page type: %s", filepath.Ext(name)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("page exceeds max size (%d bytes)", s.cfg.MaxBodyBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// The HTML parser recovers from any markup, so a failure here is ours.
	out, res, err := s.decorate(data, name)
	if err != nil {
		s.log.Error("decorate failed", "name", name, "error", err)
		jsonError(w, "failed to decorate page", http.StatusInternalServerError)
		return
	}

	writeResultHeaders(w, res)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

// decorate runs one page through the decorator and records it.
func (s *Server) decorate(data []byte, name string) ([]byte, decorate.Result, error) {
	start := time.Now()
	out, res, err := page.Process(data, name, s.dec)
	if err != nil {
		return nil, res, err
	}
	if s.stats != nil {
		s.stats.Record(time.Since(start), res)
	}
	return out, res, nil
}

func writeResultHeaders(w http.ResponseWriter, res decorate.Result) {
	h := w.Header()
	h.Set("X-Docdecor-Blocks", strconv.Itoa(res.Blocks))
	h.Set("X-Docdecor-Headers", strconv.Itoa(res.Headers))
	h.Set("X-Docdecor-Groups", strconv.Itoa(res.Groups))
	h.Set("X-Docdecor-Moved", strconv.Itoa(res.Moved))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
