//go:build property
// +build property

package classifier

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/plonepack/internal/resource"
)

func requestGen() gopter.Gen {
	return gen.OneGenOf(
		gen.Const(""),
		gen.Const("./++theme++mytheme/logo.png"),
		gen.Const("./http://localhost:8080/Plone/x.js"),
		gen.Const("./next.gif"),
		gen.Const("./LICENSE"),
		gen.Const("./jqtree-circle.png"),
		gen.Const("../lib/a.js"),
		gen.Const("events"),
		gen.AlphaString().Map(func(s string) string { return "./" + s }),
		gen.AlphaString(),
	)
}

func contextGen() gopter.Gen {
	return gen.OneGenOf(
		gen.Const("/site/src"),
		gen.Const("/work/@/Plone/++resource++a"),
		gen.Const("/work/@/++theme++t"),
		gen.SliceOf(gen.AlphaString()).Map(func(parts []string) string {
			return "/" + strings.Join(parts, "/")
		}),
	)
}

// TestClassifierProperties checks classification invariants
func TestClassifierProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	c := newClassifier(t, "/site/src/local.js")

	// Property: same input always yields the same decision
	properties.Property("deterministic", prop.ForAll(
		func(raw, context string, module bool) bool {
			kind := resource.FileRequest
			if module {
				kind = resource.ModuleRequest
			}
			req := resource.NewRequest(raw, context, "", kind)
			return c.Classify(req) == c.Classify(req)
		},
		requestGen(),
		contextGen(),
		gen.Bool(),
	))

	// Property: probing strategies always carry an absolute portal URL
	properties.Property("probing targets are portal urls", prop.ForAll(
		func(raw, context string) bool {
			d := c.Classify(resource.NewRequest(raw, context, "", resource.FileRequest))
			if !d.Strategy.Probes() {
				return d.Target == ""
			}
			return strings.HasPrefix(d.Target, "http://localhost:8080/")
		},
		requestGen(),
		contextGen(),
	))

	// Property: LICENSE never resolves to a static fallback
	properties.Property("license excluded", prop.ForAll(
		func(context string) bool {
			d := c.Classify(resource.NewRequest("./LICENSE", context, "", resource.FileRequest))
			return d.Strategy != StaticFallback
		},
		contextGen(),
	))

	properties.TestingRun(t)
}
