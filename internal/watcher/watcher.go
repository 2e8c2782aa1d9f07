// Package watcher reports debounced batches of template changes below a
// theme directory.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/plonepack/internal/logging"
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpRemoved
	OpRenamed
)

// String returns the string representation of the Op
func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is the last change seen for one path within a batch.
type Event struct {
	Op   Op
	Path string
}

// Filter reports whether a path is of interest.
type Filter func(path string) bool

// Handler receives each debounced batch, sorted by path.
type Handler func(ctx context.Context, events []Event) error

// Watcher watches a directory tree.
type Watcher struct {
	fs     *fsnotify.Watcher
	delay  time.Duration
	logger logging.Logger

	mu       sync.RWMutex
	filters  []Filter
	handlers []Handler
}

// New creates a watcher that waits delay after the last change before
// delivering a batch.
func New(delay time.Duration, logger logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{fs: fw, delay: delay, logger: logger.WithComponent("watcher")}, nil
}

// AddFilter adds a filter; a path must pass every filter.
func (w *Watcher) AddFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// AddHandler adds a batch handler.
func (w *Watcher) AddHandler(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// AddRecursive watches root and every directory below it, skipping
// hidden directories and node_modules.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// Run delivers batches until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	pending := make(map[string]Event)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.trackNewDir(ev)
			if !w.accept(ev.Name) {
				continue
			}
			pending[ev.Name] = Event{Op: opOf(ev.Op), Path: ev.Name}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, err, "File watcher error")

		case <-fire:
			fire = nil
			batch := make([]Event, 0, len(pending))
			for _, e := range pending {
				batch = append(batch, e)
			}
			pending = make(map[string]Event)
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			w.dispatch(ctx, batch)
		}
	}
}

func (w *Watcher) trackNewDir(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() || skipDir(info.Name()) {
		return
	}
	if err := w.AddRecursive(ev.Name); err != nil {
		w.logger.Warn(context.Background(), err, "Cannot watch new directory", "path", ev.Name)
	}
}

func (w *Watcher) accept(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, f := range w.filters {
		if !f(path) {
			return false
		}
	}
	return true
}

func (w *Watcher) dispatch(ctx context.Context, batch []Event) {
	w.mu.RLock()
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.RUnlock()

	w.logger.Debug(ctx, "Delivering changes", "count", len(batch))
	for _, h := range handlers {
		if err := h(ctx, batch); err != nil {
			w.logger.Warn(ctx, err, "Change handler failed")
		}
	}
}

func opOf(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreated
	case op.Has(fsnotify.Remove):
		return OpRemoved
	case op.Has(fsnotify.Rename):
		return OpRenamed
	default:
		return OpModified
	}
}

// PatternFilter accepts paths below root matching any of the doublestar
// patterns, which are relative to root.
func PatternFilter(root string, patterns []string) Filter {
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return false
		}
		rel = filepath.ToSlash(rel)
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	}
}
