// Package prober implements the existence check behind the resolver: given
// a candidate portal URL and an ordered list of extensions it returns the
// first variant that exists, or a not-found error.
//
// Two transports are provided. HTTPProber asks the portal itself with HEAD
// requests. DirProber answers from a local directory that mirrors the
// portal host, kept current with fsnotify. Neither caches results beyond
// the lifetime of the prober.
package prober

import (
	"context"
	"path"
	"strings"

	"github.com/conneroisu/plonepack/internal/resource"
)

// Prober is the capability the engine consumes. Implementations return
// errors.ErrNotFound (possibly wrapped) when no candidate exists and a
// probe failure for transport errors. debug asks the prober to log every
// candidate it tries.
type Prober interface {
	Probe(ctx context.Context, target string, extensions []string, debug bool) (*resource.Location, error)
}

// Func adapts a function to the Prober interface.
type Func func(ctx context.Context, target string, extensions []string, debug bool) (*resource.Location, error)

// Probe calls f.
func (f Func) Probe(ctx context.Context, target string, extensions []string, debug bool) (*resource.Location, error) {
	return f(ctx, target, extensions, debug)
}

// DefaultExtensions are tried when none are configured.
func DefaultExtensions() []string {
	return []string{".js", ""}
}

// recognizedExtensions are asset extensions that make a URL worth trying
// literally before any extension is appended.
var recognizedExtensions = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".json": true, ".map": true,
	".css": true, ".less": true, ".scss": true, ".sass": true,
	".png": true, ".gif": true, ".jpg": true, ".jpeg": true, ".svg": true, ".ico": true, ".webp": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".html": true, ".htm": true, ".pt": true, ".xml": true, ".txt": true, ".cfg": true,
}

// HasRecognizedExtension reports whether the last path segment of target
// ends in a known asset extension.
func HasRecognizedExtension(target string) bool {
	p, _ := resource.Split(target)
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[j:]
		} else {
			p = ""
		}
	}
	return recognizedExtensions[strings.ToLower(path.Ext(p))]
}

// Candidates lists the URLs to try for target in order: the literal URL
// first when it already has a recognized extension, then target with each
// extension appended. Duplicates are dropped and a query suffix on target
// is kept on every candidate.
func Candidates(target string, extensions []string) []string {
	base, query := resource.Split(target)

	out := make([]string, 0, len(extensions)+1)
	seen := make(map[string]bool, len(extensions)+1)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c+query)
		}
	}

	if HasRecognizedExtension(base) {
		add(base)
	}
	for _, ext := range extensions {
		add(base + ext)
	}
	return out
}
