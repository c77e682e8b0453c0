// Package watch re-runs decoration for pages that change under a site
// directory, e.g. while mkdocs rebuilds into it.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called once per settled change with the page path relative to
// the watched root.
type Handler func(ctx context.Context, relPath string)

// Options configures a Watcher. Match selects pages by path relative to
// Root; SkipDir keeps directories (absolute or root-joined paths) out of the
// watch set.
type Options struct {
	Root     string
	Debounce time.Duration
	Match    func(relPath string) bool
	SkipDir  func(path string) bool
}

// Watcher watches a directory tree and reports changed pages after they
// have been quiet for the debounce interval.
type Watcher struct {
	root     string
	match    func(relPath string) bool
	skipDir  func(path string) bool
	handle   Handler
	debounce time.Duration
	log      *slog.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(opts Options, handle Handler, log *slog.Logger) (*Watcher, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("watch root is required")
	}
	if opts.Match == nil {
		opts.Match = func(string) bool { return true }
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(string) bool { return false }
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     opts.Root,
		match:    opts.Match,
		skipDir:  opts.SkipDir,
		handle:   handle,
		debounce: opts.Debounce,
		log:      log,
		fsw:      fsw,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds every directory under root and begins the event loop. It does
// not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.log.Info("watching site", "root", w.root, "debounce", w.debounce.String())

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		w.log.Error("closing watcher", "error", err)
	}
}

// Done is closed once the event loop has exited.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev, time.Now())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for _, rel := range w.due(now) {
				w.handle(ctx, rel)
			}
		}
	}
}

// handleEvent queues matching pages and follows newly created directories.
func (w *Watcher) handleEvent(ev fsnotify.Event, now time.Time) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.skipDir(ev.Name) {
				return
			}
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || !w.match(rel) {
		return
	}

	w.mu.Lock()
	w.pending[rel] = now
	w.mu.Unlock()
}

// due removes and returns the pages that have been quiet long enough.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for rel, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, rel)
			delete(w.pending, rel)
		}
	}
	return ready
}
