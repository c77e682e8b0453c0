package site

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/google/go-cmp/cmp"
)

const classPage = `<html><body>
<div class="doc doc-object doc-class">
<div class="doc-signature"></div>
<div class="doc doc-contents first">
<p>Docs.</p>
<div class="doc doc-children">
<div class="doc doc-object doc-function"></div>
</div>
</div>
</div>
</body></html>`

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newProcessor(t *testing.T, opts Options) *Processor {
	t.Helper()
	p, err := NewProcessor(opts, decorate.New(nil), nil)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRun_InPlace(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":            "<html><body><p>home</p></body></html>",
		"api/widget/index.html": classPage,
		"assets/site.css":       "body{}",
	})
	p := newProcessor(t, Options{Root: root, Include: []string{"**/*.html"}, Workers: 2})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scanned != 2 {
		t.Errorf("expected 2 scanned pages, got %d", report.Scanned)
	}
	if report.Changed != 1 || report.Unchanged != 1 {
		t.Errorf("expected 1 changed and 1 unchanged, got %+v", report)
	}
	if report.Copied != 0 {
		t.Errorf("expected no copies in place, got %d", report.Copied)
	}
	if report.Totals.Headers != 3 || report.Totals.Groups != 1 {
		t.Errorf("unexpected totals %+v", report.Totals)
	}

	got := readFile(t, filepath.Join(root, "api", "widget", "index.html"))
	if !strings.Contains(got, `<h4 class="section-header">Signature:</h4>`) {
		t.Errorf("expected decorated page, got %q", got)
	}

	// A second run finds nothing to do.
	again, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Changed != 0 || again.Unchanged != 2 {
		t.Errorf("expected idempotent second run, got %+v", again)
	}
	if again.Totals.Headers != 0 || again.Totals.Groups != 0 {
		t.Errorf("expected no mutations on second run, got %+v", again.Totals)
	}
}

func TestRun_OutDirMirrorsSite(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":      classPage,
		"assets/site.css": "body{}",
	})
	out := filepath.Join(t.TempDir(), "out")
	p := newProcessor(t, Options{Root: root, OutDir: out})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Copied != 1 {
		t.Errorf("expected 1 copied asset, got %d", report.Copied)
	}
	if got := readFile(t, filepath.Join(out, "assets", "site.css")); got != "body{}" {
		t.Errorf("expected copied css, got %q", got)
	}
	if got := readFile(t, filepath.Join(root, "index.html")); got != classPage {
		t.Error("source page must not be modified when out dir is set")
	}
	if got := readFile(t, filepath.Join(out, "index.html")); !strings.Contains(got, "collapse-children") {
		t.Errorf("expected decorated output, got %q", got)
	}
}

func TestRun_Exclude(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":        classPage,
		"404.html":          classPage,
		"search/index.html": classPage,
	})
	p := newProcessor(t, Options{
		Root:    root,
		Include: []string{"**/*.html"},
		Exclude: []string{"404.html", "search/**"},
	})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scanned != 1 {
		t.Errorf("expected only index.html scanned, got %d", report.Scanned)
	}
	if got := readFile(t, filepath.Join(root, "404.html")); got != classPage {
		t.Error("excluded page was rewritten")
	}
}

func TestRun_Markdown(t *testing.T) {
	root := writeSite(t, map[string]string{
		"docs/ref.md": "# Ref\n\n" + `<div class="doc doc-object doc-module">` + "\n" +
			`<div class="doc-signature">mod</div>` + "\n</div>\n",
	})
	p := newProcessor(t, Options{Root: root, Include: []string{"**/*.md"}})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Changed != 1 {
		t.Fatalf("expected 1 written page, got %+v", report)
	}
	got := readFile(t, filepath.Join(root, "docs", "ref.html"))
	if !strings.Contains(got, "Signature:") {
		t.Errorf("expected decorated markdown page, got %q", got)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	root := writeSite(t, map[string]string{"index.html": classPage})
	p := newProcessor(t, Options{Root: root})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx, nil); err == nil {
		t.Fatal("expected context error")
	}
	if got := readFile(t, filepath.Join(root, "index.html")); got != classPage {
		t.Error("canceled run should not write pages")
	}
}

func TestFiles_SkipsVCSAndOutDir(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":     "x",
		".git/HEAD":      "ref",
		"out/index.html": "x",
		"a/b.html":       "x",
	})
	p := newProcessor(t, Options{Root: root, OutDir: filepath.Join(root, "out")})

	files, err := p.Files()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(files)
	want := []string{filepath.Join("a", "b.html"), "index.html"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestMatches(t *testing.T) {
	p := newProcessor(t, Options{
		Root:    "site",
		Include: []string{"**/*.html", "**/*.md"},
		Exclude: []string{"drafts/**", "404.html"},
	})
	tests := []struct {
		rel  string
		want bool
	}{
		{"index.html", true},
		{"api/pkg/index.html", true},
		{"guide.md", true},
		{"drafts/wip.html", false},
		{"nested/404.html", false},
		{"assets/site.css", false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.rel); got != tt.want {
			t.Errorf("Matches(%q): expected %v, got %v", tt.rel, tt.want, got)
		}
	}
}

func TestNewProcessor_InvalidPattern(t *testing.T) {
	if _, err := NewProcessor(Options{Root: "site", Include: []string{"[unclosed"}}, decorate.New(nil), nil); err == nil {
		t.Fatal("expected error for malformed glob")
	}
	if _, err := NewProcessor(Options{}, decorate.New(nil), nil); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestOutputPath(t *testing.T) {
	p := newProcessor(t, Options{Root: "site", OutDir: "out"})
	if got, want := p.OutputPath("a/ref.md"), filepath.Join("out", "a", "ref.html"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := p.OutputPath("index.html"), filepath.Join("out", "index.html"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRun_MarkdownOwnsRenderedPage(t *testing.T) {
	root := writeSite(t, map[string]string{
		"guide.md":   "# Guide\n\nFresh.\n",
		"guide.html": "<html><body><p>stale</p></body></html>",
		"index.html": classPage,
	})
	p := newProcessor(t, Options{Root: root, Include: []string{"**/*.html", "**/*.md"}, Workers: 4})

	for i := 0; i < 3; i++ {
		report, err := p.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		if report.Scanned != 2 || report.Failed != 0 {
			t.Fatalf("run %d: expected guide.md and index.html only, got %+v", i, report)
		}
		got := readFile(t, filepath.Join(root, "guide.html"))
		if !strings.Contains(got, "Fresh.") || strings.Contains(got, "stale") {
			t.Fatalf("run %d: expected guide.html rendered from guide.md, got %q", i, got)
		}
	}
}

func TestRun_MarkdownOutputConflict(t *testing.T) {
	root := writeSite(t, map[string]string{
		"a.markdown": "# From markdown\n",
		"a.md":       "# From md\n",
	})
	p := newProcessor(t, Options{Root: root, Include: []string{"**/*.md", "**/*.markdown"}})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Scanned != 1 || report.Failed != 1 {
		t.Fatalf("expected one rendered source and one conflict, got %+v", report)
	}
	// Walk order is lexical, so a.markdown claims a.html first.
	if report.Errors[0].Path != "a.md" {
		t.Errorf("expected conflict on a.md, got %+v", report.Errors)
	}
	if got := readFile(t, filepath.Join(root, "a.html")); !strings.Contains(got, "From markdown") {
		t.Errorf("expected a.html from a.markdown, got %q", got)
	}
}

func TestRun_OutDirSkipsAssetShadowedByMarkdown(t *testing.T) {
	root := writeSite(t, map[string]string{
		"guide.md":   "# Guide\n\nFresh.\n",
		"guide.html": "stale",
	})
	out := filepath.Join(t.TempDir(), "out")
	p := newProcessor(t, Options{Root: root, OutDir: out, Include: []string{"**/*.md"}})

	report, err := p.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Copied != 0 {
		t.Errorf("expected shadowed guide.html not to be copied, got %+v", report)
	}
	if got := readFile(t, filepath.Join(out, "guide.html")); !strings.Contains(got, "Fresh.") {
		t.Errorf("expected rendered markdown in out dir, got %q", got)
	}
}
