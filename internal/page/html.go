package page

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// HTMLLoader handles rendered HTML pages.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", filename, err)
	}
	return doc, nil
}
