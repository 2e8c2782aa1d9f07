// Package portal converts between the three coordinate systems the
// resolver works with: local virtual filesystem paths, CMS-relative
// resource paths and absolute portal URLs.
package portal

import (
	"fmt"
	"net/url"
	"strings"

	perrors "github.com/conneroisu/plonepack/internal/errors"
)

// DefaultURL is the portal used when none is configured.
const DefaultURL = "http://localhost:8080/Plone"

// Coordinates are the process-lifetime constants derived from the portal
// URL. URL == Base + Path always holds.
type Coordinates struct {
	// URL is the absolute portal URL without a trailing slash.
	URL string
	// Base is scheme and host ("http://localhost:8080").
	Base string
	// Path is the path component ("/Plone"), empty for a root portal.
	Path string
}

// ParseCoordinates splits raw into base and path. A URL without scheme or
// host, or one carrying a query or fragment, is rejected with a
// MisconfiguredPortalURL error.
func ParseCoordinates(raw string) (Coordinates, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return Coordinates{}, perrors.NewMisconfiguredPortalURL(raw, fmt.Errorf("empty url"))
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Coordinates{}, perrors.NewMisconfiguredPortalURL(raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Coordinates{}, perrors.NewMisconfiguredPortalURL(raw, fmt.Errorf("scheme and host are required"))
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return Coordinates{}, perrors.NewMisconfiguredPortalURL(raw, fmt.Errorf("query and fragment are not allowed"))
	}

	path := u.EscapedPath()
	if !strings.HasSuffix(trimmed, path) {
		return Coordinates{}, perrors.NewMisconfiguredPortalURL(raw, fmt.Errorf("path %q is not a suffix of the url", path))
	}

	return Coordinates{
		URL:  trimmed,
		Base: trimmed[:len(trimmed)-len(path)],
		Path: path,
	}, nil
}

// Join appends a CMS-relative tail to the portal URL with a single slash.
func (c Coordinates) Join(tail string) string {
	return c.URL + "/" + strings.TrimPrefix(tail, "/")
}

// ResolveAgainst resolves rel as a URL reference against the portal URL.
// Because the portal URL has no trailing slash its last segment is
// replaced, so "Plone/x.js" against "http://h/Plone" gives
// "http://h/Plone/x.js". rel is always read as a path reference, so a
// first segment such as "a:b" is never taken for a scheme.
func (c Coordinates) ResolveAgainst(rel string) string {
	base, err := url.Parse(c.URL)
	if err != nil {
		return c.Base + "/" + strings.TrimPrefix(rel, "/")
	}
	ref, err := url.Parse(rel)
	if err != nil || ref.Scheme != "" || ref.Opaque != "" {
		// "./a:b" resolves to the same path as "a:b" would as a path.
		if ref, err = url.Parse("./" + rel); err != nil {
			ref = &url.URL{Path: rel}
		}
	}
	return base.ResolveReference(ref).String()
}

// Owns reports whether u points at the portal's host.
func (c Coordinates) Owns(u string) bool {
	return u == c.Base || strings.HasPrefix(u, c.Base+"/")
}
