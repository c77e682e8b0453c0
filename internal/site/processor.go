// Package site decorates every page of a built documentation site on a
// bounded worker pool.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/page"
	"github.com/dgallion1/docdecor/internal/progress"
)

// Options controls a Processor.
type Options struct {
	Root    string   // site directory
	OutDir  string   // empty rewrites Root in place
	Include []string // globs relative to Root; empty means every supported page
	Exclude []string
	Workers int
}

// FileResult describes one processed file.
type FileResult struct {
	Path    string          `json:"path"`
	Result  decorate.Result `json:"result"`
	Written bool            `json:"written"`
	Copied  bool            `json:"copied,omitempty"`
}

// FileError records a file that could not be processed.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarizes a Run. Changed counts pages written, Unchanged pages
// whose output already matched what was on disk.
type Report struct {
	Scanned   int             `json:"scanned"`
	Changed   int             `json:"changed"`
	Unchanged int             `json:"unchanged"`
	Copied    int             `json:"copied"`
	Failed    int             `json:"failed"`
	Totals    decorate.Result `json:"totals"`
	Errors    []FileError     `json:"errors"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Processor decorates the pages of one site directory.
type Processor struct {
	opts Options
	dec  *decorate.Decorator
	log  *slog.Logger

	outAbs string
}

func NewProcessor(opts Options, dec *decorate.Decorator, log *slog.Logger) (*Processor, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("site root is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p, ok := ValidPatterns(opts.Include); !ok {
		return nil, fmt.Errorf("invalid include pattern %q", p)
	}
	if p, ok := ValidPatterns(opts.Exclude); !ok {
		return nil, fmt.Errorf("invalid exclude pattern %q", p)
	}
	p := &Processor{opts: opts, dec: dec, log: log}
	if opts.OutDir != "" {
		abs, err := filepath.Abs(opts.OutDir)
		if err != nil {
			return nil, fmt.Errorf("resolve out dir: %w", err)
		}
		p.outAbs = abs
	}
	return p, nil
}

// Root returns the site directory.
func (p *Processor) Root() string { return p.opts.Root }

// Matches reports whether the page at relPath should be decorated.
func (p *Processor) Matches(relPath string) bool {
	if !page.IsSupported(relPath) {
		return false
	}
	if len(p.opts.Include) > 0 && !matchesAny(relPath, p.opts.Include) {
		return false
	}
	return !matchesAny(relPath, p.opts.Exclude)
}

// Files lists every regular file under the root, relative to it.
func (p *Processor) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.opts.Root && p.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(p.opts.Root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p.opts.Root, err)
	}
	return files, nil
}

// SkipDir reports whether the directory at path is never walked: VCS and
// build directories, and the out dir when it lives under the root.
func (p *Processor) SkipDir(path string) bool {
	return shouldSkipDir(filepath.Base(path)) || p.isOutDir(path)
}

func (p *Processor) isOutDir(path string) bool {
	if p.outAbs == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	return err == nil && abs == p.outAbs
}

// OutputPath maps a page to where its decorated form is written. Markdown
// sources become .html pages.
func (p *Processor) OutputPath(relPath string) string {
	dir := p.opts.Root
	if p.opts.OutDir != "" {
		dir = p.opts.OutDir
	}
	if page.IsMarkdown(relPath) {
		relPath = strings.TrimSuffix(relPath, filepath.Ext(relPath)) + ".html"
	}
	return filepath.Join(dir, relPath)
}

// ProcessFile decorates one page. The output is only written when it
// differs from what is already on disk.
func (p *Processor) ProcessFile(ctx context.Context, relPath string) (FileResult, error) {
	fr := FileResult{Path: relPath}
	if err := ctx.Err(); err != nil {
		return fr, err
	}

	src := filepath.Join(p.opts.Root, relPath)
	data, err := os.ReadFile(src)
	if err != nil {
		return fr, fmt.Errorf("read %s: %w", relPath, err)
	}

	out, res, err := page.Process(data, relPath, p.dec)
	if err != nil {
		return fr, err
	}
	fr.Result = res

	written, err := writeIfChanged(p.OutputPath(relPath), out)
	if err != nil {
		return fr, err
	}
	fr.Written = written
	return fr, nil
}

// copyFile mirrors an undecorated asset into the out dir.
func (p *Processor) copyFile(relPath string) (FileResult, error) {
	fr := FileResult{Path: relPath, Copied: true}
	data, err := os.ReadFile(filepath.Join(p.opts.Root, relPath))
	if err != nil {
		return fr, fmt.Errorf("read %s: %w", relPath, err)
	}
	written, err := writeIfChanged(filepath.Join(p.opts.OutDir, relPath), data)
	fr.Written = written
	return fr, err
}

func writeIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".docdecor-*")
	if err != nil {
		return false, fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return false, fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("rename %s: %w", path, err)
	}
	return true, nil
}

type task struct {
	rel      string
	decorate bool
}

// plan turns the walked files into tasks so that no two tasks write the
// same output. A Markdown source owns the .html path it renders to: the
// page or asset already at that path is skipped, and a second source
// rendering to the same path is reported as a conflict.
func (p *Processor) plan(files []string) ([]task, []FileError) {
	var conflicts []FileError
	owner := make(map[string]string)
	for _, rel := range files {
		if !page.IsMarkdown(rel) || !p.Matches(rel) {
			continue
		}
		out := p.OutputPath(rel)
		if prev, ok := owner[out]; ok {
			conflicts = append(conflicts, FileError{
				Path:  rel,
				Error: fmt.Sprintf("output %s is already rendered from %s", out, prev),
			})
			continue
		}
		owner[out] = rel
	}

	var tasks []task
	for _, rel := range files {
		var t task
		var out string
		switch {
		case p.Matches(rel):
			t, out = task{rel: rel, decorate: true}, p.OutputPath(rel)
		case p.opts.OutDir != "":
			t, out = task{rel: rel}, filepath.Join(p.opts.OutDir, rel)
		default:
			continue
		}
		if src, ok := owner[out]; ok && src != rel {
			p.log.Debug("skipping page rendered from markdown", "path", rel, "source", src)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, conflicts
}

type outcome struct {
	fr  FileResult
	err error
}

// Run decorates every matching page. With an out dir, other files are
// copied so the output is a complete site. Per-file failures are collected
// in the report; the returned error is only set when the walk fails or ctx
// is canceled.
func (p *Processor) Run(ctx context.Context, rep progress.Reporter) (Report, error) {
	start := time.Now()
	var report Report
	if rep == nil {
		rep = progress.Nop{}
	}

	files, err := p.Files()
	if err != nil {
		return report, err
	}

	tasks, conflicts := p.plan(files)
	for _, fe := range conflicts {
		p.log.Error("decorate failed", "path", fe.Path, "error", fe.Error)
		report.Failed++
		report.Errors = append(report.Errors, fe)
	}

	rep.Start(len(tasks))
	defer rep.Finish()

	queue := make(chan task)
	results := make(chan outcome, p.opts.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				var o outcome
				if t.decorate {
					o.fr, o.err = p.ProcessFile(ctx, t.rel)
				} else {
					o.fr, o.err = p.copyFile(t.rel)
				}
				results <- o
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case queue <- t:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for o := range results {
		done++
		rep.Update(done, o.fr.Path)
		if o.err != nil {
			if errors.Is(o.err, context.Canceled) || errors.Is(o.err, context.DeadlineExceeded) {
				continue
			}
			p.log.Error("decorate failed", "path", o.fr.Path, "error", o.err)
			report.Failed++
			report.Errors = append(report.Errors, FileError{Path: o.fr.Path, Error: o.err.Error()})
			continue
		}
		if o.fr.Copied {
			report.Copied++
			continue
		}
		report.Scanned++
		report.Totals.Add(o.fr.Result)
		if o.fr.Written {
			report.Changed++
			p.log.Debug("decorated page", "path", o.fr.Path,
				"headers", o.fr.Result.Headers, "groups", o.fr.Result.Groups)
		} else {
			report.Unchanged++
		}
	}

	report.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	p.log.Info("site decorated",
		"root", p.opts.Root,
		"scanned", report.Scanned,
		"changed", report.Changed,
		"failed", report.Failed,
		"headers", report.Totals.Headers,
		"groups", report.Totals.Groups,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
