// Package scanner discovers asset references in theme templates.
//
// The scanner globs template files below a theme source directory with
// doublestar patterns, parses each one as HTML and extracts the
// script[src], link[href] and img[src] attributes. Every reference is turned
// into a file request issued from the template's directory, ready for the
// resolution engine. Resolve runs a batch of references through a resolver
// concurrently with a bounded errgroup.
package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/portal"
	"github.com/conneroisu/plonepack/internal/resource"
)

// DefaultPatterns are the template globs used when none are configured.
func DefaultPatterns() []string {
	return []string{"**/*.html", "**/*.pt"}
}

// Reference is one asset reference found in a template.
type Reference struct {
	Template string `json:"template" yaml:"template"`
	Tag      string `json:"tag" yaml:"tag"`
	Attr     string `json:"attr" yaml:"attr"`
	// Value is the attribute as written in the template.
	Value   string           `json:"value" yaml:"value"`
	Request resource.Request `json:"-" yaml:"-"`
}

// Options configures a Scanner.
type Options struct {
	Root     string
	Patterns []string
	// Coords, when set, keeps absolute URLs that point at the portal host.
	// Without it every absolute URL is skipped.
	Coords  *portal.Coordinates
	Workers int
	Logger  logging.Logger
}

// Scanner finds templates and extracts references from them.
type Scanner struct {
	root     string
	patterns []string
	coords   *portal.Coordinates
	workers  int
	logger   logging.Logger
}

// New creates a scanner.
func New(opts Options) *Scanner {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scanner{
		root:     opts.Root,
		patterns: patterns,
		coords:   opts.Coords,
		workers:  workers,
		logger:   logger.WithComponent("scanner"),
	}
}

// Templates returns the template files below the root, sorted and without
// duplicates.
func (s *Scanner) Templates() ([]string, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("theme source %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("theme source %s is not a directory", s.root)
	}

	seen := make(map[string]bool)
	var out []string
	for _, pattern := range s.patterns {
		matches, err := doublestar.Glob(filepath.Join(s.root, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if fi, err := os.Stat(m); err != nil || fi.IsDir() {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Scan extracts the references of every template. Templates are parsed
// concurrently; the result is ordered by template then document order.
func (s *Scanner) Scan(ctx context.Context) ([]Reference, error) {
	templates, err := s.Templates()
	if err != nil {
		return nil, err
	}

	perFile := make([][]Reference, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, tmpl := range templates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			refs, err := s.ScanFile(tmpl)
			if err != nil {
				return err
			}
			perFile[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Reference
	for _, refs := range perFile {
		out = append(out, refs...)
	}
	s.logger.Debug(ctx, "Scanned templates", "templates", len(templates), "references", len(out))
	return out, nil
}

// ScanFile extracts the references of one template.
func (s *Scanner) ScanFile(path string) ([]Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	attrs, err := Extract(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	refs := make([]Reference, 0, len(attrs))
	for _, a := range attrs {
		raw, ok := s.requestFor(a.Value)
		if !ok {
			continue
		}
		refs = append(refs, Reference{
			Template: path,
			Tag:      a.Tag,
			Attr:     a.Attr,
			Value:    a.Value,
			Request:  resource.NewRequest(raw, dir, "", resource.FileRequest),
		})
	}
	return refs, nil
}

// Attribute is a raw asset attribute of an element.
type Attribute struct {
	Tag   string
	Attr  string
	Value string
}

var assetAttrs = map[string]string{
	"script": "src",
	"link":   "href",
	"img":    "src",
}

// Extract returns the asset attributes of an HTML document in document
// order. Empty values are dropped.
func Extract(r io.Reader) ([]Attribute, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []Attribute
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if want, ok := assetAttrs[n.Data]; ok {
				for _, a := range n.Attr {
					if a.Namespace == "" && a.Key == want && strings.TrimSpace(a.Val) != "" {
						out = append(out, Attribute{Tag: n.Data, Attr: a.Key, Value: strings.TrimSpace(a.Val)})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return out, nil
}

// requestFor turns an attribute value into a file request, or reports that
// the value is not something the engine should see.
func (s *Scanner) requestFor(value string) (string, bool) {
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(value, "#"),
		strings.HasPrefix(value, "//"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"):
		return "", false
	}

	// "${portal_url}/++theme++x/a.js" and friends: the expression stands
	// for the portal URL.
	if strings.HasPrefix(value, "${") {
		end := strings.Index(value, "}")
		if end < 0 {
			return "", false
		}
		return "." + value[end+1:], true
	}

	if portal.IsAbsoluteURL(value) {
		if s.coords == nil || !s.coords.Owns(value) {
			return "", false
		}
		return "./" + value, true
	}
	if strings.HasPrefix(value, ".") || strings.HasPrefix(value, "/") {
		return value, true
	}
	return "./" + value, true
}

// Resolver is the part of the engine Resolve needs.
type Resolver interface {
	Resolve(ctx context.Context, req resource.Request) (*resource.Location, error)
}

// Status of a resolved reference.
type Status string

// Reference outcomes.
const (
	StatusResolved    Status = "resolved"
	StatusFallthrough Status = "fallthrough"
	StatusFailed      Status = "failed"
)

// Outcome is the result of resolving one reference.
type Outcome struct {
	Reference Reference          `json:"reference" yaml:"reference"`
	Status    Status             `json:"status" yaml:"status"`
	Location  *resource.Location `json:"location,omitempty" yaml:"location,omitempty"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Resolve resolves refs with at most limit requests in flight. A failed
// reference does not stop the others; outcomes keep the order of refs.
func Resolve(ctx context.Context, r Resolver, refs []Reference, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	outcomes := make([]Outcome, len(refs))

	var g errgroup.Group
	g.SetLimit(limit)
	var mu sync.Mutex
	var cancelled error
	for i, ref := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				cancelled = err
				mu.Unlock()
				return nil
			}
			loc, err := r.Resolve(ctx, ref.Request)
			o := Outcome{Reference: ref, Location: loc}
			switch {
			case err != nil:
				o.Status = StatusFailed
				o.Error = err.Error()
			case loc == nil:
				o.Status = StatusFallthrough
			default:
				o.Status = StatusResolved
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()
	if cancelled != nil {
		return nil, cancelled
	}
	return outcomes, nil
}

// Summary counts outcomes by status.
func Summary(outcomes []Outcome) map[Status]int {
	out := make(map[Status]int, 3)
	for _, o := range outcomes {
		out[o.Status]++
	}
	return out
}
