package portal

import "path"

// Mapper turns classifier candidates into absolute portal URLs.
type Mapper struct {
	Coords    Coordinates
	Namespace Namespace
}

// NewMapper returns a mapper for the given portal and namespace.
func NewMapper(c Coordinates, ns Namespace) *Mapper {
	return &Mapper{Coords: c, Namespace: ns}
}

// ToRemoteURL maps a candidate to an absolute portal URL:
//   - absolute URLs are returned unchanged
//   - namespace paths are stripped and resolved against the portal URL
//   - anything else is a CMS-relative tail, cleaned and joined to the
//     portal URL
//
// A "?query" or "#fragment" suffix is carried over untouched. The result is
// always absolute, so ToRemoteURL(ToRemoteURL(x)) == ToRemoteURL(x).
func (m *Mapper) ToRemoteURL(candidate string) string {
	p, q := splitSuffix(candidate)
	switch {
	case IsAbsoluteURL(p):
		return candidate
	case m.Namespace.Contains(p, ""):
		return m.FromNamespace(p) + q
	default:
		tail := path.Clean("/" + CollapseSlashes(p))
		return m.Coords.Join(tail) + q
	}
}

// FromNamespace strips the namespace root from p and resolves the
// remaining CMS-relative path against the portal URL.
func (m *Mapper) FromNamespace(p string) string {
	return m.Coords.ResolveAgainst(m.Namespace.Strip(p))
}

// FromPortalBase builds an URL from a remainder that followed the portal
// base in a request, collapsing duplicate slashes in the remainder.
func (m *Mapper) FromPortalBase(remainder string) string {
	return m.Coords.Base + CollapseSlashes(remainder)
}

// VirtualPath is Namespace.VirtualPath for this mapper's portal.
func (m *Mapper) VirtualPath(u string) string {
	return m.Namespace.VirtualPath(m.Coords, u)
}
