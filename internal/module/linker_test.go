// linker_test.go drives Graph.Link/Evaluate directly (no pkg/esvm facade)
// against spec.md §8 scenario 5: a mutual A/B import cycle where both
// modules export a synchronously computed constant depending on the
// other's export. link must succeed for both modules with identical
// statuses afterward, and evaluation must resolve the expected constants.
package module

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/value"
	"github.com/Voskan/esvm/internal/vm"
)

func parseOrFail(t *testing.T, src, specifier string) *Module {
	t.Helper()
	m, errs := ParseModule(src, specifier, nil)
	if len(errs) > 0 {
		t.Fatalf("ParseModule(%s): %v", specifier, errs)
	}
	return m
}

func TestMutualImportCycleLinksAndEvaluatesBothModules(t *testing.T) {
	const srcA = `
		import { bVal } from "./b.js";
		export const aVal = 1;
		export const sum = aVal + bVal;
	`
	const srcB = `
		import { aVal } from "./a.js";
		export const bVal = 2;
		export const combined = aVal + bVal;
	`

	realm := vm.NewRealm(zap.NewNop())
	loader := LoaderFunc(func(_ context.Context, _ *Module, specifier string) (*Module, error) {
		if specifier != "./b.js" {
			t.Fatalf("unexpected load request for %q", specifier)
		}
		return parseOrFail(t, srcB, "./b.js"), nil
	})
	g := NewGraph(realm, loader)

	a := parseOrFail(t, srcA, "./a.js")
	g.AddRoot("./a.js", a)

	if err := g.LoadRequestedModules(context.Background(), a); err != nil {
		t.Fatalf("LoadRequestedModules: %v", err)
	}
	if err := g.Link(a); err != nil {
		t.Fatalf("Link: %v", err)
	}

	bHandle, ok := g.Lookup("./b.js")
	if !ok {
		t.Fatalf("./b.js should have been registered during the load walk")
	}
	b := g.Get(bHandle)

	if a.Status != StatusLinked || b.Status != StatusLinked {
		t.Fatalf("after Link: a.Status=%v b.Status=%v, want both StatusLinked", a.Status, b.Status)
	}

	if _, err := g.Evaluate(a); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if a.Status != StatusEvaluated || b.Status != StatusEvaluated {
		t.Fatalf("after Evaluate: a.Status=%v b.Status=%v, want both StatusEvaluated", a.Status, b.Status)
	}

	ns := g.GetModuleNamespace(a)
	sum, _, _ := realm.Heap.Get(ns, realm.Heap.PropertyKeyFor("sum"))
	if sum.Kind() != value.KindSmallInt || sum.AsInt32() != 3 {
		t.Fatalf("a.js's sum export = %v, want small int 3 (1 + 2)", sum)
	}

	bNs := g.GetModuleNamespace(b)
	combined, _, _ := realm.Heap.Get(bNs, realm.Heap.PropertyKeyFor("combined"))
	if combined.Kind() != value.KindSmallInt || combined.AsInt32() != 3 {
		t.Fatalf("b.js's combined export = %v, want small int 3 (1 + 2)", combined)
	}
}

// resolve_export's circularity detection: a module that re-exports a name
// from itself (directly or through a star cycle) must not recurse forever;
// resolving a name through it terminates and reports the name as not found.
func TestResolveExportDetectsSelfCycle(t *testing.T) {
	const src = `export * from "./self.js";`

	realm := vm.NewRealm(zap.NewNop())
	a := parseOrFail(t, src, "./self.js")

	var g *Graph
	loader := LoaderFunc(func(_ context.Context, _ *Module, specifier string) (*Module, error) {
		h, ok := g.Lookup(specifier)
		if !ok {
			t.Fatalf("unexpected specifier %q", specifier)
		}
		return g.Get(h), nil
	})
	g = NewGraph(realm, loader)
	g.AddRoot("./self.js", a)

	if err := g.LoadRequestedModules(context.Background(), a); err != nil {
		t.Fatalf("LoadRequestedModules: %v", err)
	}

	_, ambiguous, found := g.ResolveExport(a, "anything")
	if found || ambiguous {
		t.Fatalf("resolving a name neither module exports should yield found=false ambiguous=false, got found=%v ambiguous=%v", found, ambiguous)
	}
}
