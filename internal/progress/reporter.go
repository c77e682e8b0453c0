// Package progress reports how far a site pass has got.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress while a site is being decorated. Calls come
// from a single goroutine.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a CIReporter when a CI environment is detected and a
// TerminalReporter otherwise.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return NewCIReporter(w)
	}
	return &TerminalReporter{w: w}
}

// TerminalReporter draws a page counter with the page being decorated.
type TerminalReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Decorating"),
		progressbar.OptionSetItsString("pages"),
		progressbar.OptionShowIts(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, page string) {
	if r.bar == nil {
		return
	}
	// Deep mkdocs paths would wrap the line; the last two parts identify it.
	r.bar.Describe(shortPath(page))
	_ = r.bar.Set(current)
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

func shortPath(p string) string {
	dir, base := filepath.Split(filepath.Clean(p))
	parent := filepath.Base(dir)
	if dir == "" || parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return filepath.Join("…", parent, base)
}

// CIReporter writes a line each time another tenth of the pages is done,
// so large sites do not flood CI logs.
type CIReporter struct {
	w     io.Writer
	total int
	step  int
	start time.Time
	now   func() time.Time
}

func NewCIReporter(w io.Writer) *CIReporter {
	return &CIReporter{w: w, now: time.Now}
}

func (r *CIReporter) Start(total int) {
	r.total = total
	r.step = 0
	r.start = r.now()
	fmt.Fprintf(r.w, "decorating %d pages\n", total)
}

func (r *CIReporter) Update(current int, page string) {
	if r.total <= 0 {
		return
	}
	step := current * 10 / r.total
	if step <= r.step {
		return
	}
	r.step = step
	fmt.Fprintf(r.w, "%3d%% %d/%d %s\n", step*10, current, r.total, page)
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(r.w, "decorated %d pages in %s\n", r.total, r.now().Sub(r.start).Round(time.Millisecond))
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int)          {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}
