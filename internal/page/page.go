// Package page loads documentation pages into HTML trees, runs the
// decorator over them and serializes the result.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docdecor/internal/decorate"
	"golang.org/x/net/html"
)

// ErrUnsupported is returned for files no loader handles.
var ErrUnsupported = errors.New("unsupported page type")

// Loader parses raw page bytes into a document tree.
type Loader interface {
	Load(r io.Reader, filename string) (*html.Node, error)
}

// SupportedExtensions lists file extensions that can be decorated.
var SupportedExtensions = map[string]bool{
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".md", ".markdown":
		return NewMarkdownLoader(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupported checks if a file extension can be decorated.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsMarkdown reports whether filename is a Markdown source.
func IsMarkdown(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".md" || ext == ".markdown"
}

// Render serializes a document tree.
func Render(w io.Writer, doc *html.Node) error {
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// Process loads data as filename, decorates it and returns the rendered
// page. When nothing changed and the input was already HTML the original
// bytes are returned untouched so callers can skip rewriting the file.
func Process(data []byte, filename string, dec *decorate.Decorator) ([]byte, decorate.Result, error) {
	loader, err := ForFile(filename)
	if err != nil {
		return nil, decorate.Result{}, err
	}
	doc, err := loader.Load(bytes.NewReader(data), filename)
	if err != nil {
		return nil, decorate.Result{}, err
	}

	res := dec.Decorate(doc)
	if !res.Changed() && !IsMarkdown(filename) {
		return data, res, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + len(data)/8)
	if err := Render(&buf, doc); err != nil {
		return nil, res, err
	}
	return buf.Bytes(), res, nil
}
