package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		raw, path, query string
	}{
		{"./fonts/x.woff?v=4.2", "./fonts/x.woff", "?v=4.2"},
		{"./fonts/x.svg#iefix", "./fonts/x.svg", "#iefix"},
		{"jquery", "jquery", ""},
		{"", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			path, query := Split(tc.raw)
			assert.Equal(t, tc.path, path)
			assert.Equal(t, tc.query, query)
		})
	}
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("./a.png?x=1", "/site/src", "", FileRequest)
	assert.Equal(t, "./a.png", req.Raw)
	assert.Equal(t, "?x=1", req.Query)

	req = NewRequest("./a.png?x=1", "/site/src", "?y=2", FileRequest)
	assert.Equal(t, "?y=2", req.Query)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("module")
	assert.True(t, ok)
	assert.Equal(t, ModuleRequest, k)

	k, ok = ParseKind("")
	assert.True(t, ok)
	assert.Equal(t, FileRequest, k)

	_, ok = ParseKind("context")
	assert.False(t, ok)

	assert.Equal(t, "file", FileRequest.String())
	assert.Equal(t, "module", ModuleRequest.String())
	assert.Equal(t, "unknown", Kind(7).String())
}

func TestLocation(t *testing.T) {
	var nilLoc *Location
	assert.False(t, nilLoc.IsRemote())
	assert.Equal(t, "", nilLoc.String())

	remote := &Location{URL: "http://localhost:8080/Plone/x.js", Query: "?v=1"}
	assert.True(t, remote.IsRemote())
	assert.Equal(t, "http://localhost:8080/Plone/x.js?v=1", remote.String())

	local := &Location{Path: "/static/next.gif", Resolved: true}
	assert.False(t, local.IsRemote())
	assert.Equal(t, "/static/next.gif", local.Target())
}
