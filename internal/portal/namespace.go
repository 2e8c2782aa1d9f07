package portal

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMarker is the path segment below the working directory that
// mirrors the portal host.
const DefaultMarker = "@"

var (
	repeatedSlashes = regexp.MustCompile(`/{2,}`)
	mangledScheme   = regexp.MustCompile(`:/+`)
	schemePrefix    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// CollapseSlashes replaces every run of slashes with a single one.
func CollapseSlashes(p string) string {
	return repeatedSlashes.ReplaceAllString(p, "/")
}

// NormalizeScheme repairs the first ":/+" run into "://". Hosts that join
// paths with path semantics turn "http://h" into "http:/h".
func NormalizeScheme(request string) string {
	loc := mangledScheme.FindStringIndex(request)
	if loc == nil {
		return request
	}
	return request[:loc[0]] + "://" + request[loc[1]:]
}

// IsAbsoluteURL reports whether s starts with "scheme://".
func IsAbsoluteURL(s string) bool {
	return schemePrefix.MatchString(s)
}

// ResolveRelative resolves ref against the directory base the way a
// relative URL reference is resolved: "." and ".." segments are applied,
// absolute refs and URLs are returned as they are, and a trailing slash on
// ref survives.
func ResolveRelative(base, ref string) string {
	ref = filepath.ToSlash(ref)
	if IsAbsoluteURL(ref) || strings.HasPrefix(ref, "/") {
		return ref
	}
	joined := strings.TrimSuffix(filepath.ToSlash(base), "/") + "/" + ref
	cleaned := path.Clean(joined)
	if strings.HasSuffix(ref, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// Namespace is a synthetic directory below the working directory whose
// layout mirrors the portal host: root + "Plone/x.js" stands for
// portalBase + "/Plone/x.js". Nothing is ever written below it.
type Namespace struct {
	root string
}

// NewNamespace returns the namespace rooted at cwd/marker/.
func NewNamespace(cwd, marker string) Namespace {
	if marker == "" {
		marker = DefaultMarker
	}
	return Namespace{root: CollapseSlashes(filepath.ToSlash(cwd) + "/" + marker + "/")}
}

// Root returns the namespace root with its trailing slash.
func (n Namespace) Root() string { return n.root }

// Path returns the namespace path for p.
func (n Namespace) Path(p string) string {
	return CollapseSlashes(n.root + p)
}

// Contains reports whether p lies below the namespace path for prefix.
// p is normalized before comparing.
func (n Namespace) Contains(p, prefix string) bool {
	return strings.HasPrefix(CollapseSlashes(filepath.ToSlash(p)), n.Path(prefix))
}

// Strip removes the namespace root from p, giving a CMS-relative path.
// Paths outside the namespace are returned normalized but otherwise as is.
func (n Namespace) Strip(p string) string {
	p = CollapseSlashes(filepath.ToSlash(p))
	return strings.TrimPrefix(p, n.root)
}

// VirtualPath maps a portal URL back into the namespace so that requests
// issued from a remote module classify as context relative. URLs on other
// hosts yield "".
func (n Namespace) VirtualPath(c Coordinates, u string) string {
	if !c.Owns(u) {
		return ""
	}
	rest, _ := splitSuffix(u[len(c.Base):])
	return n.Path(rest)
}

func splitSuffix(s string) (string, string) {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
