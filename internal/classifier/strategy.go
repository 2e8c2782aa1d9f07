// Package classifier assigns every resolution request to exactly one
// resolution strategy.
//
// File requests run through an ordered rule list; the first rule that
// matches decides. Module requests are either blacklisted or sent to the
// portal. Classification is pure apart from the injected file existence
// check.
package classifier

// Strategy is the outcome of classifying one request.
type Strategy int

const (
	// Unmatched requests continue with the host's default chain.
	Unmatched Strategy = iota
	// PassThrough requests are empty or already exist locally.
	PassThrough
	// FullPortalPath requests spell out the portal base ("./http://h/...").
	FullPortalPath
	// PlusPlusResource requests address a "++type++name" resource.
	PlusPlusResource
	// StaticFallback requests are served from a bundled replacement file.
	StaticFallback
	// ContextRelative requests land inside the portal namespace.
	ContextRelative
	// Module requests are bare specifiers looked up on the portal.
	Module
)

var strategyNames = map[Strategy]string{
	Unmatched:        "unmatched",
	PassThrough:      "pass-through",
	FullPortalPath:   "full-portal-path",
	PlusPlusResource: "plus-plus-resource",
	StaticFallback:   "static-fallback",
	ContextRelative:  "context-relative",
	Module:           "module",
}

// String returns the string representation of the Strategy
func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// Probes reports whether the strategy produces a portal URL to probe.
func (s Strategy) Probes() bool {
	switch s {
	case FullPortalPath, PlusPlusResource, ContextRelative, Module:
		return true
	default:
		return false
	}
}

// FallsThrough reports whether the host's default chain takes over
// without any probing.
func (s Strategy) FallsThrough() bool {
	switch s {
	case Unmatched, PassThrough:
		return true
	default:
		return false
	}
}

// Decision is the classifier's answer for one request.
type Decision struct {
	Strategy Strategy
	// Target is the candidate portal URL for probing strategies.
	Target string
	// LocalPath is set for StaticFallback.
	LocalPath string
	// Reason names the rule that decided.
	Reason string
}
