package page

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

// MarkdownLoader renders Markdown sources with goldmark. Raw HTML passes
// through, so mkdocstrings blocks pasted into a page are decorated too.
// Fenced code is highlighted with inline styles.
type MarkdownLoader struct {
	md goldmark.Markdown
}

func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

var shell = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*html.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := l.md.Convert(src, &body); err != nil {
		return nil, fmt.Errorf("convert markdown %s: %w", filename, err)
	}

	base := filepath.Base(filename)
	title := strings.TrimSuffix(strings.TrimSuffix(base, ".md"), ".markdown")

	var page bytes.Buffer
	err = shell.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("wrap markdown %s: %w", filename, err)
	}

	doc, err := html.Parse(&page)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown %s: %w", filename, err)
	}
	return doc, nil
}
