// Package overrides holds the static configuration consulted by the
// classifier: the module blacklist, the request mapping table, bundled
// static fallbacks and host-side request replacements.
package overrides

import "sort"

// DefaultBlacklist lists module names that coincide with portal resource
// ids but must come from node_modules.
func DefaultBlacklist() []string {
	return []string{
		"events",
		"layouts-editor",
		"plone",
		"translate",
	}
}

// DefaultMapping returns the request aliases shipped by default.
func DefaultMapping() map[string]string {
	return map[string]string{
		"./jqtree-circle.png": "./components/jqtree/jqtree-circle.png",
	}
}

// Tables is the read-only pair of override tables. All methods are safe
// for concurrent use.
type Tables struct {
	blacklist map[string]struct{}
	mapping   map[string]string
}

// NewTables copies blacklist and mapping into a Tables. A nil argument
// yields an empty table, not the defaults.
func NewTables(blacklist []string, mapping map[string]string) *Tables {
	t := &Tables{
		blacklist: make(map[string]struct{}, len(blacklist)),
		mapping:   make(map[string]string, len(mapping)),
	}
	for _, name := range blacklist {
		t.blacklist[name] = struct{}{}
	}
	for k, v := range mapping {
		t.mapping[k] = v
	}
	return t
}

// Defaults returns tables filled with DefaultBlacklist and DefaultMapping.
func Defaults() *Tables {
	return NewTables(DefaultBlacklist(), DefaultMapping())
}

// Blacklisted reports whether a module request must never be resolved
// remotely.
func (t *Tables) Blacklisted(request string) bool {
	_, ok := t.blacklist[request]
	return ok
}

// Mapped returns the substitute relative path for request.
func (t *Tables) Mapped(request string) (string, bool) {
	v, ok := t.mapping[request]
	return v, ok
}

// Blacklist returns the blacklist entries sorted.
func (t *Tables) Blacklist() []string {
	out := make([]string, 0, len(t.blacklist))
	for name := range t.blacklist {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Mapping returns a copy of the mapping table.
func (t *Tables) Mapping() map[string]string {
	out := make(map[string]string, len(t.mapping))
	for k, v := range t.mapping {
		out[k] = v
	}
	return out
}
