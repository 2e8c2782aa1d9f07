// Package resource holds the data model exchanged between the host build
// tool, the resolution engine and the probers.
package resource

import "strings"

// Kind tells which resolver callback issued a request.
type Kind int

const (
	// FileRequest is a path-like request ("./x.png", "../++resource++y").
	FileRequest Kind = iota
	// ModuleRequest is a bare specifier ("jquery", "mockup-utils").
	ModuleRequest
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case FileRequest:
		return "file"
	case ModuleRequest:
		return "module"
	default:
		return "unknown"
	}
}

// ParseKind converts "file" or "module" into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "", "file":
		return FileRequest, true
	case "module":
		return ModuleRequest, true
	default:
		return FileRequest, false
	}
}

// Request is one resolution callback invocation. It is never mutated after
// construction.
type Request struct {
	// Raw is the request string without its query suffix.
	Raw string
	// Context is the directory the request was issued from.
	Context string
	// Query is the "?..." or "#..." suffix, forwarded untouched.
	Query string
	Kind  Kind
}

// NewRequest builds a Request, splitting any query suffix off raw. An
// explicit query wins over one embedded in raw.
func NewRequest(raw, context, query string, kind Kind) Request {
	path, embedded := Split(raw)
	if query == "" {
		query = embedded
	}
	return Request{Raw: path, Context: context, Query: query, Kind: kind}
}

// Split separates the path part of a request from its "?query" or
// "#fragment" suffix.
func Split(raw string) (path, query string) {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i], raw[i:]
	}
	return raw, ""
}

// Location is the terminal output of the engine for one request: a local
// filesystem path or an absolute remote URL.
type Location struct {
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Query string `json:"query,omitempty" yaml:"query,omitempty"`
	// Resolved marks a location the host must not resolve any further.
	Resolved bool `json:"resolved" yaml:"resolved"`
	// Strategy names the classifier strategy that produced the location.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// IsRemote reports whether the location points at the portal.
func (l *Location) IsRemote() bool {
	return l != nil && l.URL != ""
}

// Target returns the URL for remote locations and the path otherwise.
func (l *Location) Target() string {
	if l == nil {
		return ""
	}
	if l.URL != "" {
		return l.URL
	}
	return l.Path
}

// String returns the target with the query suffix appended.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	return l.Target() + l.Query
}
