package classifier

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/plonepack/internal/overrides"
	"github.com/conneroisu/plonepack/internal/portal"
	"github.com/conneroisu/plonepack/internal/resource"
)

// Rule is one (predicate, strategy) pair of the file request chain.
type Rule struct {
	Name     string
	Strategy Strategy
	Match    func(c *Classifier, in *input) (Decision, bool)
}

// input is a file request prepared once for all rules.
type input struct {
	// request is the raw request with a mangled scheme repaired.
	request string
	context string
	// resolved is request resolved against context.
	resolved string
}

// Options configures a Classifier.
type Options struct {
	Mapper    *portal.Mapper
	Tables    *overrides.Tables
	Fallbacks overrides.StaticFallbacks
	// Stat defaults to os.Stat.
	Stat func(string) (fs.FileInfo, error)
}

// Classifier is safe for concurrent use; it holds only read-only state.
type Classifier struct {
	mapper    *portal.Mapper
	tables    *overrides.Tables
	fallbacks overrides.StaticFallbacks
	stat      func(string) (fs.FileInfo, error)
	rules     []Rule
}

// New builds a classifier. Nil tables mean empty tables; nil fallbacks
// disable the static fallback rule.
func New(opts Options) *Classifier {
	c := &Classifier{
		mapper:    opts.Mapper,
		tables:    opts.Tables,
		fallbacks: opts.Fallbacks,
		stat:      opts.Stat,
		rules:     fileRules(),
	}
	if c.tables == nil {
		c.tables = overrides.NewTables(nil, nil)
	}
	if c.stat == nil {
		c.stat = os.Stat
	}
	return c
}

// Rules returns the file request chain in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify decides the strategy for req.
func (c *Classifier) Classify(req resource.Request) Decision {
	if req.Kind == resource.ModuleRequest {
		return c.classifyModule(req)
	}
	return c.classifyFile(req)
}

func (c *Classifier) classifyFile(req resource.Request) Decision {
	request := portal.NormalizeScheme(req.Raw)
	in := &input{
		request:  request,
		context:  req.Context,
		resolved: portal.ResolveRelative(req.Context, request),
	}
	for _, rule := range c.rules {
		if d, ok := rule.Match(c, in); ok {
			d.Strategy = rule.Strategy
			d.Reason = rule.Name
			return d
		}
	}
	return Decision{Strategy: Unmatched, Reason: "no-rule"}
}

func (c *Classifier) classifyModule(req resource.Request) Decision {
	if req.Raw == "" {
		return Decision{Strategy: PassThrough, Reason: "empty-module"}
	}
	// Guards against package names that double as portal resource ids.
	if c.tables.Blacklisted(req.Raw) {
		return Decision{Strategy: PassThrough, Reason: "module-blacklist"}
	}
	return Decision{Strategy: Module, Target: c.mapper.Coords.Join(req.Raw), Reason: "portal-module"}
}

// fileRules is the file request chain. Order is significant: a request
// that exists on disk is never sent to the portal, even when a probe would
// also find it.
func fileRules() []Rule {
	return []Rule{
		{Name: "empty-or-existing", Strategy: PassThrough, Match: matchPassThrough},
		{Name: "full-portal-path", Strategy: FullPortalPath, Match: matchFullPortalPath},
		{Name: "plus-plus-resource", Strategy: PlusPlusResource, Match: matchPlusPlus},
		{Name: "known-static-fallback", Strategy: StaticFallback, Match: matchStaticFallback},
		{Name: "portal-context-relative", Strategy: ContextRelative, Match: matchContextRelative},
	}
}

func matchPassThrough(c *Classifier, in *input) (Decision, bool) {
	if in.request == "" {
		return Decision{}, true
	}
	literal := in.request
	if !filepath.IsAbs(literal) && !portal.IsAbsoluteURL(literal) {
		literal = filepath.Join(in.context, literal)
	}
	if _, err := c.stat(literal); err == nil {
		return Decision{}, true
	}
	return Decision{}, false
}

func matchFullPortalPath(c *Classifier, in *input) (Decision, bool) {
	prefix := "./" + c.mapper.Coords.Base
	if !strings.HasPrefix(in.request, prefix) {
		return Decision{}, false
	}
	return Decision{Target: c.mapper.FromPortalBase(in.request[len(prefix):])}, true
}

func matchPlusPlus(c *Classifier, in *input) (Decision, bool) {
	if !strings.HasPrefix(in.request, "./++") {
		return Decision{}, false
	}
	return Decision{Target: c.mapper.Coords.Join(in.request[2:])}, true
}

func matchStaticFallback(c *Classifier, in *input) (Decision, bool) {
	if c.fallbacks == nil {
		return Decision{}, false
	}
	name := strings.TrimPrefix(in.request, "./")
	if name == "" || name == "LICENSE" || strings.Contains(name, "/") {
		return Decision{}, false
	}
	p, ok := c.fallbacks.Lookup(name)
	if !ok {
		return Decision{}, false
	}
	return Decision{LocalPath: p}, true
}

func matchContextRelative(c *Classifier, in *input) (Decision, bool) {
	ns := c.mapper.Namespace
	if !ns.Contains(in.resolved, c.mapper.Coords.Path) && !ns.Contains(in.resolved, "++") {
		return Decision{}, false
	}
	target := in.resolved
	if mapped, ok := c.tables.Mapped(in.request); ok {
		target = portal.ResolveRelative(in.context, mapped)
	}
	return Decision{Target: c.mapper.FromNamespace(target)}, true
}
