// Package contexthook injects extra module specifiers into the enumeration
// of a wildcard directory import.
//
// A dynamic require of a whole directory only discovers what exists on the
// local disk at build time. For contexts whose path matches a fixed
// condition the hook appends a fixed list of portal hosted siblings,
// exactly once per context.
package contexthook

import (
	"regexp"
	"sync"
)

// Alternative is one entry of a context enumeration.
type Alternative struct {
	Context string `json:"context"`
	Request string `json:"request"`
}

// Hook holds the armed "new context" tokens keyed by context id. A
// context is armed by AfterResolve and disarmed by the first Alternatives
// call for it, so concurrently enumerated contexts never see each other's
// state.
type Hook struct {
	Condition *regexp.Regexp
	Extras    []string
	// Filter, when set, replaces the enumeration filter for matching
	// contexts so the injected specifiers survive it.
	Filter *regexp.Regexp

	mu    sync.Mutex
	armed map[string]struct{}
}

// New creates a hook for condition and extras.
func New(condition *regexp.Regexp, extras []string) *Hook {
	return &Hook{
		Condition: condition,
		Extras:    append([]string(nil), extras...),
		armed:     make(map[string]struct{}),
	}
}

// Defaults returns the hook for the structure pattern, whose collection
// views are loaded through a dynamic require.
func Defaults() *Hook {
	h := New(regexp.MustCompile(`mockup/structure|mockup/patterns/structure`), []string{
		"mockup-patterns-structure-url/js/actions",
		"mockup-patterns-structure-url/js/actionmenu",
		"mockup-patterns-structure-url/js/navigation",
		"mockup-patterns-structure-url/js/collections/result",
	})
	h.Filter = regexp.MustCompile(`^\./.*$|^mockup-patterns-structure-url/.*$`)
	return h
}

// Matches reports whether context satisfies the hook condition.
func (h *Hook) Matches(context string) bool {
	return h.Condition != nil && h.Condition.MatchString(context)
}

// AfterResolve marks contextID as freshly opened.
func (h *Hook) AfterResolve(contextID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.armed == nil {
		h.armed = make(map[string]struct{})
	}
	h.armed[contextID] = struct{}{}
}

// Alternatives returns items with the extras appended when contextID is
// armed and the context of items[0] matches the condition. The token is
// consumed either way once a matching enumeration has been seen.
func (h *Hook) Alternatives(contextID string, items []Alternative) []Alternative {
	if len(items) == 0 || !h.Matches(items[0].Context) {
		return items
	}
	if !h.consume(contextID) {
		return items
	}
	return appendExtras(items, h.Extras)
}

// Close drops an unconsumed token for contextID.
func (h *Hook) Close(contextID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.armed, contextID)
}

// Pending returns the number of armed, unconsumed contexts.
func (h *Hook) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.armed)
}

func (h *Hook) consume(contextID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.armed[contextID]; !ok {
		return false
	}
	delete(h.armed, contextID)
	return true
}

// FilterFor returns the enumeration filter to use for context.
func (h *Hook) FilterFor(context string) (*regexp.Regexp, bool) {
	if h.Filter == nil || !h.Matches(context) {
		return nil, false
	}
	return h.Filter, true
}

// Open returns a scope for hosts that own their context instances and do
// not need ids.
func (h *Hook) Open() *Scope {
	return &Scope{hook: h, fresh: true}
}

// Scope is the token of a single context instance. It is safe for
// concurrent use.
type Scope struct {
	hook  *Hook
	mu    sync.Mutex
	fresh bool
}

// AfterResolve re-arms the scope.
func (s *Scope) AfterResolve() {
	s.mu.Lock()
	s.fresh = true
	s.mu.Unlock()
}

// Alternatives is Hook.Alternatives for this scope.
func (s *Scope) Alternatives(items []Alternative) []Alternative {
	if len(items) == 0 || !s.hook.Matches(items[0].Context) {
		return items
	}
	s.mu.Lock()
	fresh := s.fresh
	s.fresh = false
	s.mu.Unlock()
	if !fresh {
		return items
	}
	return appendExtras(items, s.hook.Extras)
}

func appendExtras(items []Alternative, extras []string) []Alternative {
	out := make([]Alternative, len(items), len(items)+len(extras))
	copy(out, items)
	for _, extra := range extras {
		out = append(out, Alternative{Context: items[0].Context, Request: extra})
	}
	return out
}
