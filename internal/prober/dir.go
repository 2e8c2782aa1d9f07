package prober

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/portal"
	"github.com/conneroisu/plonepack/internal/resource"
)

// DirProber answers probes from a local directory that mirrors the portal
// host: the URL portalBase + "/Plone/++theme++x/a.png" exists when
// root/Plone/++theme++x/a.png does. An in-memory index of the tree is
// built on construction and kept current with fsnotify until Close.
type DirProber struct {
	root   string
	coords portal.Coordinates
	logger logging.Logger

	mu    sync.RWMutex
	files map[string]struct{}

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewDirProber indexes root and starts watching it.
func NewDirProber(root string, coords portal.Coordinates, logger logging.Logger) (*DirProber, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve probe root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, perrors.NewIOError(perrors.ErrCodeConfigInvalid, "probe root unavailable", err).WithTarget(abs)
	}
	if !info.IsDir() {
		return nil, perrors.NewConfigError(perrors.ErrCodeConfigInvalid, "probe root is not a directory").WithTarget(abs)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	p := &DirProber{
		root:    abs,
		coords:  coords,
		logger:  logger.WithComponent("dir-prober"),
		files:   make(map[string]struct{}),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	if err := p.addTree(abs); err != nil {
		watcher.Close()
		return nil, err
	}

	go p.watch()
	return p, nil
}

// Close stops the watcher.
func (p *DirProber) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.watcher.Close()
	})
	return err
}

// Len returns the number of indexed files.
func (p *DirProber) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.files)
}

// Probe implements Prober.
func (p *DirProber) Probe(ctx context.Context, target string, extensions []string, debug bool) (*resource.Location, error) {
	for _, candidate := range Candidates(target, extensions) {
		if err := ctx.Err(); err != nil {
			return nil, perrors.NewProbeFailure(candidate, err)
		}
		if debug {
			p.logger.Info(ctx, "Probing candidate", "url", candidate)
		}
		u, q := resource.Split(candidate)
		rel, ok := p.relative(u)
		if !ok {
			continue
		}
		if p.has(rel) {
			return &resource.Location{URL: u, Path: filepath.Join(p.root, filepath.FromSlash(rel)), Query: q}, nil
		}
	}
	return nil, perrors.NotFound(target)
}

// relative maps a portal URL to a slash separated path below root.
func (p *DirProber) relative(u string) (string, bool) {
	if !p.coords.Owns(u) {
		return "", false
	}
	escaped := strings.TrimPrefix(u[len(p.coords.Base):], "/")
	rel, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	rel = portal.CollapseSlashes(rel)
	if rel == "" || strings.HasPrefix(rel, "../") || strings.Contains(rel, "/../") {
		return "", false
	}
	return rel, true
}

func (p *DirProber) has(rel string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.files[rel]
	return ok
}

func (p *DirProber) key(path string) (string, bool) {
	rel, err := filepath.Rel(p.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addTree indexes every regular file below dir and watches every directory.
func (p *DirProber) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if werr := p.watcher.Add(path); werr != nil {
				p.logger.Warn(context.Background(), werr, "Cannot watch directory", "path", path)
			}
			return nil
		}
		if d.Type().IsRegular() {
			if k, ok := p.key(path); ok {
				p.mu.Lock()
				p.files[k] = struct{}{}
				p.mu.Unlock()
			}
		}
		return nil
	})
}

// forget drops path and everything below it from the index.
func (p *DirProber) forget(path string) {
	k, ok := p.key(path)
	if !ok {
		return
	}
	prefix := k + "/"
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.files, k)
	for f := range p.files {
		if strings.HasPrefix(f, prefix) {
			delete(p.files, f)
		}
	}
}

func (p *DirProber) watch() {
	ctx := context.Background()
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handle(ctx, event)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn(ctx, err, "Watcher error", "root", p.root)
		}
	}
}

func (p *DirProber) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := p.addTree(event.Name); err != nil {
				p.logger.Warn(ctx, err, "Cannot index directory", "path", event.Name)
			}
			return
		}
		if k, ok := p.key(event.Name); ok && info.Mode().IsRegular() {
			p.mu.Lock()
			p.files[k] = struct{}{}
			p.mu.Unlock()
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		p.forget(event.Name)
	}
}
