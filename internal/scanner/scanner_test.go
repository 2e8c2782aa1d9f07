package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plonepack/internal/portal"
	"github.com/conneroisu/plonepack/internal/resource"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="++theme++mytheme/css/main.css">
  <link rel="icon" href="data:image/png;base64,AAAA">
  <script src="${portal_url}/++resource++plone.js"></script>
  <script src="http://localhost:8080/Plone/++plone++static/plone.js"></script>
  <script src="https://cdn.example.org/jquery.js"></script>
  <script>var inline = true;</script>
</head>
<body>
  <img src="./img/logo.png">
  <img src="//cdn.example.org/pixel.gif">
  <a href="#top">top</a>
</body>
</html>
`

func writeTemplate(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTheme(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTemplate(t, filepath.Join(root, "index.html"), indexTemplate)
	writeTemplate(t, filepath.Join(root, "views", "main_template.pt"), `<html><body><img src="../img/bg.jpg"></body></html>`)
	writeTemplate(t, filepath.Join(root, "css", "main.css"), `body {}`)
	return root
}

func TestExtract(t *testing.T) {
	attrs, err := Extract(strings.NewReader(indexTemplate))
	require.NoError(t, err)

	var values []string
	for _, a := range attrs {
		values = append(values, a.Tag+"["+a.Attr+"]="+a.Value)
	}
	assert.Equal(t, []string{
		"link[href]=++theme++mytheme/css/main.css",
		"link[href]=data:image/png;base64,AAAA",
		"script[src]=${portal_url}/++resource++plone.js",
		"script[src]=http://localhost:8080/Plone/++plone++static/plone.js",
		"script[src]=https://cdn.example.org/jquery.js",
		"img[src]=./img/logo.png",
		"img[src]=//cdn.example.org/pixel.gif",
	}, values)
}

func TestTemplates(t *testing.T) {
	root := newTheme(t)

	s := New(Options{Root: root})
	templates, err := s.Templates()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "index.html"),
		filepath.Join(root, "views", "main_template.pt"),
	}, templates)

	s = New(Options{Root: root, Patterns: []string{"*.html", "**/*.html"}})
	templates, err = s.Templates()
	require.NoError(t, err)
	assert.Len(t, templates, 1)
}

func TestTemplatesMissingRoot(t *testing.T) {
	_, err := New(Options{Root: filepath.Join(t.TempDir(), "none")}).Templates()
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	root := newTheme(t)
	coords, err := portal.ParseCoordinates(portal.DefaultURL)
	require.NoError(t, err)

	refs, err := New(Options{Root: root, Coords: &coords, Workers: 2}).Scan(context.Background())
	require.NoError(t, err)

	var raws []string
	for _, r := range refs {
		raws = append(raws, r.Request.Raw)
		assert.Equal(t, resource.FileRequest, r.Request.Kind)
		assert.Equal(t, filepath.Dir(r.Template), r.Request.Context)
	}
	assert.Equal(t, []string{
		"./++theme++mytheme/css/main.css",
		"./++resource++plone.js",
		"./http://localhost:8080/Plone/++plone++static/plone.js",
		"./img/logo.png",
		"../img/bg.jpg",
	}, raws)
}

func TestScanSkipsPortalURLsWithoutCoordinates(t *testing.T) {
	root := newTheme(t)

	refs, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)
	for _, r := range refs {
		assert.NotContains(t, r.Request.Raw, "http://")
	}
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, req resource.Request) (*resource.Location, error) {
	switch {
	case strings.Contains(req.Raw, "++theme++"):
		return &resource.Location{URL: "http://localhost:8080/Plone/" + strings.TrimPrefix(req.Raw, "./")}, nil
	case strings.Contains(req.Raw, "++resource++"):
		return nil, errors.New("connection refused")
	default:
		return nil, nil
	}
}

func TestResolve(t *testing.T) {
	root := newTheme(t)
	refs, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	outcomes, err := Resolve(context.Background(), fakeResolver{}, refs, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, len(refs))

	for i, o := range outcomes {
		assert.Equal(t, refs[i].Value, o.Reference.Value)
	}
	assert.Equal(t, StatusResolved, outcomes[0].Status)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Equal(t, "connection refused", outcomes[1].Error)

	counts := Summary(outcomes)
	assert.Equal(t, 1, counts[StatusResolved])
	assert.Equal(t, 1, counts[StatusFailed])
	assert.Equal(t, len(refs)-2, counts[StatusFallthrough])
}

func TestResolveCancelled(t *testing.T) {
	root := newTheme(t)
	refs, err := New(Options{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Resolve(ctx, fakeResolver{}, refs, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
