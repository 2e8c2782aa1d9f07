// Package resolver is the resolution engine the host build tool calls for
// every file and module request.
//
// For each request the engine classifies it, maps the candidate to a portal
// URL and asks the injected prober whether it exists. The answer is one of:
//
//   - a *resource.Location the host should use
//   - (nil, nil): continue with the host's default resolver chain
//   - a probe failure error for this one request
//
// The engine keeps no state between requests besides its read-only
// configuration, so any number of resolutions may run concurrently.
package resolver

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/conneroisu/plonepack/internal/classifier"
	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/overrides"
	"github.com/conneroisu/plonepack/internal/portal"
	"github.com/conneroisu/plonepack/internal/prober"
	"github.com/conneroisu/plonepack/internal/resource"
)

// Options configures an Engine. Only Prober is required.
type Options struct {
	// PortalURL defaults to portal.DefaultURL.
	PortalURL string
	// Extensions defaults to prober.DefaultExtensions when nil.
	Extensions []string
	// Tables defaults to overrides.Defaults when nil.
	Tables *overrides.Tables
	// Fallbacks may be nil to disable static fallbacks.
	Fallbacks overrides.StaticFallbacks
	Prober    prober.Prober
	// WorkDir anchors the virtual namespace; defaults to os.Getwd.
	WorkDir string
	// Marker is the namespace segment below WorkDir; defaults to "@".
	Marker string
	Debug  bool
	Logger logging.Logger
	// Stat defaults to os.Stat.
	Stat func(string) (fs.FileInfo, error)
}

// Engine resolves requests against a portal.
type Engine struct {
	mapper     *portal.Mapper
	classifier *classifier.Classifier
	prober     prober.Prober
	extensions []string
	tables     *overrides.Tables
	debug      bool
	logger     logging.Logger
}

// New validates opts and builds an engine. A portal URL that cannot be
// split into base and path is fatal.
func New(opts Options) (*Engine, error) {
	if opts.Prober == nil {
		return nil, perrors.NewConfigError(perrors.ErrCodeConfigInvalid, "a prober is required")
	}

	raw := opts.PortalURL
	if raw == "" {
		raw = portal.DefaultURL
	}
	coords, err := portal.ParseCoordinates(raw)
	if err != nil {
		return nil, err
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
	}

	extensions := opts.Extensions
	if extensions == nil {
		extensions = prober.DefaultExtensions()
	}
	extensions = append([]string(nil), extensions...)

	tables := opts.Tables
	if tables == nil {
		tables = overrides.Defaults()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	mapper := portal.NewMapper(coords, portal.NewNamespace(workDir, opts.Marker))

	return &Engine{
		mapper: mapper,
		classifier: classifier.New(classifier.Options{
			Mapper:    mapper,
			Tables:    tables,
			Fallbacks: opts.Fallbacks,
			Stat:      opts.Stat,
		}),
		prober:     opts.Prober,
		extensions: extensions,
		tables:     tables,
		debug:      opts.Debug,
		logger:     logger.WithComponent("resolver"),
	}, nil
}

// Mapper returns the namespace mapper in use.
func (e *Engine) Mapper() *portal.Mapper { return e.mapper }

// Coordinates returns the portal coordinates.
func (e *Engine) Coordinates() portal.Coordinates { return e.mapper.Coords }

// Extensions returns a copy of the probe extensions.
func (e *Engine) Extensions() []string { return append([]string(nil), e.extensions...) }

// Tables returns the override tables.
func (e *Engine) Tables() *overrides.Tables { return e.tables }

// Explain classifies req without probing.
func (e *Engine) Explain(req resource.Request) classifier.Decision {
	return e.classifier.Classify(req)
}

// ResolveFile resolves a file-type request issued from contextPath.
func (e *Engine) ResolveFile(ctx context.Context, request, contextPath, query string) (*resource.Location, error) {
	return e.Resolve(ctx, resource.NewRequest(request, contextPath, query, resource.FileRequest))
}

// ResolveModule resolves a module-type request issued from contextPath.
func (e *Engine) ResolveModule(ctx context.Context, request, contextPath, query string) (*resource.Location, error) {
	return e.Resolve(ctx, resource.NewRequest(request, contextPath, query, resource.ModuleRequest))
}

// Resolve runs one request through classification and probing. (nil, nil)
// means the host should continue with its default chain.
func (e *Engine) Resolve(ctx context.Context, req resource.Request) (*resource.Location, error) {
	d := e.classifier.Classify(req)
	if e.debug {
		e.logger.Info(ctx, "Classified request",
			"request", req.Raw,
			"context", req.Context,
			"kind", req.Kind.String(),
			"strategy", d.Strategy.String(),
			"reason", d.Reason,
			"target", d.Target)
	}

	switch {
	case d.Strategy == classifier.StaticFallback:
		return &resource.Location{
			Path:     d.LocalPath,
			Query:    req.Query,
			Resolved: true,
			Strategy: d.Strategy.String(),
		}, nil
	case d.Strategy.FallsThrough():
		return nil, nil
	}

	target := e.mapper.ToRemoteURL(d.Target)
	loc, err := e.prober.Probe(ctx, target, e.extensions, e.debug)
	if err != nil {
		if perrors.IsNotFound(err) {
			if e.debug {
				e.logger.Info(ctx, "Not found on portal, continuing default chain", "target", target)
			}
			return nil, nil
		}
		if !perrors.IsProbeFailure(err) {
			err = perrors.NewProbeFailure(target, err)
		}
		e.logger.Warn(ctx, err, "Probe failed", "request", req.Raw, "target", target)
		return nil, err
	}
	if loc == nil {
		return nil, nil
	}

	out := *loc
	if out.Query == "" {
		out.Query = req.Query
	}
	out.Strategy = d.Strategy.String()
	return &out, nil
}

// Callback receives the outcome of an asynchronous resolution.
type Callback func(loc *resource.Location, err error)

// ResolveAsync resolves req in its own goroutine and calls cb exactly once.
// It never blocks the caller.
func (e *Engine) ResolveAsync(ctx context.Context, req resource.Request, cb Callback) {
	go func() {
		loc, err := e.Resolve(ctx, req)
		cb(loc, err)
	}()
}
