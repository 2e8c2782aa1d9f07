package contexthook

import (
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structureCtx = "/src/node_modules/mockup/patterns/structure/js/views"

func countExtras(items []Alternative, extras []string) int {
	want := make(map[string]bool, len(extras))
	for _, e := range extras {
		want[e] = true
	}
	n := 0
	for _, it := range items {
		if want[it.Request] {
			n++
		}
	}
	return n
}

func TestAlternativesOncePerContext(t *testing.T) {
	h := Defaults()
	items := []Alternative{{Context: structureCtx, Request: "./app.js"}}

	h.AfterResolve("ctx-1")
	first := h.Alternatives("ctx-1", items)
	require.Len(t, first, 1+len(h.Extras))
	for _, alt := range first[1:] {
		assert.Equal(t, structureCtx, alt.Context)
	}
	assert.Len(t, items, 1, "input slice is not modified")

	second := h.Alternatives("ctx-1", items)
	assert.Equal(t, items, second)
	assert.Zero(t, h.Pending())
}

func TestAlternativesRequiresCondition(t *testing.T) {
	h := Defaults()
	items := []Alternative{{Context: "/src/node_modules/mockup/patterns/modal", Request: "./x.js"}}

	h.AfterResolve("ctx")
	assert.Equal(t, items, h.Alternatives("ctx", items))
	assert.Equal(t, 1, h.Pending())

	h.Close("ctx")
	assert.Zero(t, h.Pending())
}

func TestAlternativesWithoutAfterResolve(t *testing.T) {
	h := Defaults()
	items := []Alternative{{Context: structureCtx, Request: "./a.js"}}
	assert.Equal(t, items, h.Alternatives("never-opened", items))
	assert.Empty(t, h.Alternatives("never-opened", nil))
}

func TestConcurrentContexts(t *testing.T) {
	h := Defaults()

	const contexts = 16
	const rounds = 8
	results := make([][]Alternative, contexts)

	var wg sync.WaitGroup
	for i := 0; i < contexts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("ctx-%d", i)
			items := []Alternative{{Context: structureCtx, Request: "./a.js"}}
			h.AfterResolve(id)
			for r := 0; r < rounds; r++ {
				items = h.Alternatives(id, items)
			}
			results[i] = items
		}(i)
	}
	wg.Wait()

	for i, items := range results {
		assert.Equal(t, len(h.Extras), countExtras(items, h.Extras), "context %d", i)
	}
	assert.Zero(t, h.Pending())
}

func TestScope(t *testing.T) {
	h := Defaults()
	items := []Alternative{{Context: structureCtx, Request: "./a.js"}}

	a, b := h.Open(), h.Open()
	gotA := a.Alternatives(items)
	gotB := b.Alternatives(items)
	assert.Equal(t, len(h.Extras), countExtras(gotA, h.Extras))
	assert.Equal(t, len(h.Extras), countExtras(gotB, h.Extras))
	assert.Equal(t, items, a.Alternatives(items))

	a.AfterResolve()
	assert.Equal(t, len(h.Extras), countExtras(a.Alternatives(items), h.Extras))
}

func TestFilterFor(t *testing.T) {
	h := Defaults()

	f, ok := h.FilterFor(structureCtx)
	require.True(t, ok)
	assert.True(t, f.MatchString("mockup-patterns-structure-url/js/actions"))
	assert.True(t, f.MatchString("./views/app.js"))

	_, ok = h.FilterFor("/src/other")
	assert.False(t, ok)

	custom := New(regexp.MustCompile(`x`), []string{"y"})
	_, ok = custom.FilterFor("x")
	assert.False(t, ok)
}
