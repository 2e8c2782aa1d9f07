package overrides

import "regexp"

// Replacement rewrites a raw request before it reaches the resolver, the
// way a bundler's module replacement hook does.
type Replacement struct {
	Name    string
	Pattern *regexp.Regexp
	Rewrite func(request string) string
}

// Replacements is an ordered list of rewrites; every matching rule is
// applied in turn.
type Replacements []Replacement

var leadingDotsAndSlashes = regexp.MustCompile(`^[./]+`)

// BrokenRelativeResource turns "../../++resource++x" into "++resource++x".
// Some add-ons reference resources relative to a directory layout that only
// exists on the server.
func BrokenRelativeResource() Replacement {
	return Replacement{
		Name:    "broken-relative-resource",
		Pattern: regexp.MustCompile(`^\.\./[^+]*\+\+resource\+\+`),
		Rewrite: func(request string) string {
			return leadingDotsAndSlashes.ReplaceAllString(request, "")
		},
	}
}

// JqtreeCircle points jqtree's stylesheet image at the copy Plone ships.
// The stylesheet is loaded from a local package, so the request never
// reaches the namespace mapping.
func JqtreeCircle() Replacement {
	return Replacement{
		Name:    "jqtree-circle",
		Pattern: regexp.MustCompile(`^\./jqtree-circle\.png$`),
		Rewrite: func(string) string {
			return "++plone++static/components/jqtree/jqtree-circle.png"
		},
	}
}

// DefaultReplacements returns the replacements enabled by default.
func DefaultReplacements() Replacements {
	return Replacements{JqtreeCircle(), BrokenRelativeResource()}
}

// Apply runs every matching replacement over request.
func (r Replacements) Apply(request string) string {
	for _, rule := range r {
		if rule.Pattern != nil && rule.Pattern.MatchString(request) {
			request = rule.Rewrite(request)
		}
	}
	return request
}
