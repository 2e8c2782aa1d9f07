package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	tables := Defaults()

	for _, name := range []string{"events", "layouts-editor", "plone", "translate"} {
		assert.True(t, tables.Blacklisted(name), name)
	}
	assert.False(t, tables.Blacklisted("jquery"))

	mapped, ok := tables.Mapped("./jqtree-circle.png")
	require.True(t, ok)
	assert.Equal(t, "./components/jqtree/jqtree-circle.png", mapped)
}

func TestTablesAreCopies(t *testing.T) {
	blacklist := []string{"events"}
	mapping := map[string]string{"./a.png": "./b.png"}
	tables := NewTables(blacklist, mapping)

	blacklist[0] = "changed"
	mapping["./a.png"] = "./c.png"

	assert.True(t, tables.Blacklisted("events"))
	got, _ := tables.Mapped("./a.png")
	assert.Equal(t, "./b.png", got)

	copied := tables.Mapping()
	copied["./x"] = "./y"
	_, ok := tables.Mapped("./x")
	assert.False(t, ok)

	assert.Equal(t, []string{"events"}, tables.Blacklist())
}

func TestBundledNames(t *testing.T) {
	assert.Equal(t, []string{"next.gif", "pb_close.png", "prev.gif"}, BundledNames())
}

func TestMaterializeAndLookup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "static")

	written, err := Materialize(dir)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	// Second call leaves existing files alone.
	written, err = Materialize(dir)
	require.NoError(t, err)
	assert.Empty(t, written)

	fallbacks := DirFallbacks{Dir: dir}
	p, ok := fallbacks.Lookup("next.gif")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "next.gif"), p)

	_, ok = fallbacks.Lookup("missing.gif")
	assert.False(t, ok)
}

func TestLookupRefusesLicense(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LICENSE"), []byte("BSD"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	fallbacks := DirFallbacks{Dir: dir}

	_, ok := fallbacks.Lookup("LICENSE")
	assert.False(t, ok)
	_, ok = fallbacks.Lookup("sub")
	assert.False(t, ok, "directories are not fallbacks")
	_, ok = fallbacks.Lookup("../LICENSE")
	assert.False(t, ok)
	_, ok = DirFallbacks{}.Lookup("next.gif")
	assert.False(t, ok)
}

func TestReplacements(t *testing.T) {
	r := DefaultReplacements()

	assert.Equal(t, "++resource++plone-app-jquerytools.js", r.Apply("../../++resource++plone-app-jquerytools.js"))
	assert.Equal(t, "./++resource++x.js", r.Apply("./++resource++x.js"))
	assert.Equal(t, "../lib/a.js", r.Apply("../lib/a.js"))

	assert.Equal(t, "++plone++static/components/jqtree/jqtree-circle.png", r.Apply("./jqtree-circle.png"))
	assert.Equal(t, "./img/jqtree-circle.png", r.Apply("./img/jqtree-circle.png"))
	assert.Equal(t, "./jqtree-circle.png.bak", r.Apply("./jqtree-circle.png.bak"))
}
