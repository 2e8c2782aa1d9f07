// Package esbuildplugin exposes the resolution engine to esbuild.
//
// Relative imports go through the engine's file callback and bare
// specifiers through its module callback. Remote results live in the
// "plone" namespace and are fetched from the portal on load. Each loaded
// remote module gets the namespace path of its URL as resolve directory,
// so its own relative imports classify as context relative again.
package esbuildplugin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/plonepack/internal/contexthook"
	"github.com/conneroisu/plonepack/internal/logging"
	"github.com/conneroisu/plonepack/internal/overrides"
	"github.com/conneroisu/plonepack/internal/resolver"
	"github.com/conneroisu/plonepack/internal/resource"
)

// Name of the plugin and of the namespace remote modules live in.
const (
	Name      = "plone"
	Namespace = "plone"
)

// Options configures the plugin.
type Options struct {
	// Hook injects extra imports into matching modules; nil disables it.
	Hook *contexthook.Hook
	// Replacements run over every request before resolution.
	Replacements overrides.Replacements
	// Client fetches remote modules; defaults to a 30s timeout client.
	Client *http.Client
	// Context bounds probes and fetches; defaults to context.Background.
	Context context.Context
	Logger  logging.Logger
}

type plugin struct {
	engine *resolver.Engine
	opts   Options
	client *http.Client
	logger logging.Logger
}

// New returns the esbuild plugin for engine.
func New(engine *resolver.Engine, opts Options) api.Plugin {
	p := &plugin{engine: engine, opts: opts, client: opts.Client, logger: opts.Logger}
	if p.client == nil {
		p.client = &http.Client{Timeout: 30 * time.Second}
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	p.logger = p.logger.WithComponent("esbuild")
	if p.opts.Context == nil {
		p.opts.Context = context.Background()
	}

	return api.Plugin{
		Name:  Name,
		Setup: p.setup,
	}
}

func (p *plugin) setup(build api.PluginBuild) {
	build.OnResolve(api.OnResolveOptions{Filter: `^\.`}, p.onResolve)
	build.OnResolve(api.OnResolveOptions{Filter: `^[^./]`}, p.onResolve)
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: Namespace}, p.onLoadRemote)
	if p.opts.Hook != nil && p.opts.Hook.Condition != nil {
		build.OnLoad(api.OnLoadOptions{Filter: p.opts.Hook.Condition.String(), Namespace: "file"}, p.onLoadLocal)
	}
}

func (p *plugin) onResolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	if args.Kind == api.ResolveEntryPoint {
		return api.OnResolveResult{}, nil
	}

	request := p.opts.Replacements.Apply(args.Path)
	kind := resource.ModuleRequest
	if strings.HasPrefix(request, ".") {
		kind = resource.FileRequest
	}

	contextDir := args.ResolveDir
	if contextDir == "" && args.Importer != "" {
		contextDir = p.engine.Mapper().VirtualPath(args.Importer)
		if contextDir != "" {
			contextDir = path.Dir(contextDir)
		}
	}

	loc, err := p.engine.Resolve(p.opts.Context, resource.NewRequest(request, contextDir, "", kind))
	if err != nil {
		return api.OnResolveResult{}, err
	}
	if loc == nil {
		return api.OnResolveResult{}, nil
	}
	if loc.IsRemote() {
		return api.OnResolveResult{Path: loc.URL, Namespace: Namespace, Suffix: loc.Query}, nil
	}
	return api.OnResolveResult{Path: loc.Path, Suffix: loc.Query}, nil
}

func (p *plugin) onLoadRemote(args api.OnLoadArgs) (api.OnLoadResult, error) {
	body, err := p.fetch(args.Path, args.Suffix)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	dir := p.engine.Mapper().VirtualPath(args.Path)
	if dir != "" {
		dir = path.Dir(dir)
	}
	loader := LoaderFor(args.Path)
	contents := p.inject(string(body), dir, loader)

	return api.OnLoadResult{
		Contents:   &contents,
		ResolveDir: dir,
		Loader:     loader,
		PluginName: Name,
	}, nil
}

func (p *plugin) onLoadLocal(args api.OnLoadArgs) (api.OnLoadResult, error) {
	loader := LoaderFor(args.Path)
	if loader != api.LoaderJS {
		return api.OnLoadResult{}, nil
	}
	body, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	dir := filepath.Dir(args.Path)
	contents := p.inject(string(body), dir, loader)
	return api.OnLoadResult{Contents: &contents, ResolveDir: dir, Loader: loader}, nil
}

// inject appends an import for every extra the hook adds to the module's
// directory enumeration. Each loaded module is its own context.
func (p *plugin) inject(contents, dir string, loader api.Loader) string {
	hook := p.opts.Hook
	if hook == nil || loader != api.LoaderJS || !hook.Matches(dir) {
		return contents
	}
	items := []contexthook.Alternative{{Context: dir, Request: "./"}}
	items = hook.Open().Alternatives(items)

	var b strings.Builder
	b.WriteString(contents)
	for _, alt := range items[1:] {
		fmt.Fprintf(&b, "\nimport %q;", alt.Request)
	}
	if len(items) > 1 {
		p.logger.Debug(p.opts.Context, "Injected context extras", "dir", dir, "count", len(items)-1)
	}
	return b.String()
}

func (p *plugin) fetch(u, suffix string) ([]byte, error) {
	target := u
	if strings.HasPrefix(suffix, "?") {
		target += suffix
	}
	req, err := http.NewRequestWithContext(p.opts.Context, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var loaders = map[string]api.Loader{
	".js":    api.LoaderJS,
	".mjs":   api.LoaderJS,
	".cjs":   api.LoaderJS,
	".jsx":   api.LoaderJSX,
	".json":  api.LoaderJSON,
	".css":   api.LoaderCSS,
	".txt":   api.LoaderText,
	".html":  api.LoaderText,
	".htm":   api.LoaderText,
	".pt":    api.LoaderText,
	".xml":   api.LoaderText,
	".png":   api.LoaderFile,
	".gif":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".svg":   api.LoaderFile,
	".ico":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".ttf":   api.LoaderFile,
	".eot":   api.LoaderFile,
	".otf":   api.LoaderFile,
}

// LoaderFor picks the esbuild loader for a module path or URL. Names
// without a known extension, such as "++resource++plone", are JavaScript.
func LoaderFor(p string) api.Loader {
	p, _ = resource.Split(p)
	if l, ok := loaders[strings.ToLower(path.Ext(p))]; ok {
		return l
	}
	return api.LoaderJS
}
