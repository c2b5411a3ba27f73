// esvm_test.go exercises spec.md §8's "Testable Properties" scenarios end
// to end through the public Realm/Script/Module surface, the way a real
// embedder would drive it.
package esvm

import (
	"context"
	"testing"

	"github.com/Voskan/esvm/internal/module"
	"github.com/Voskan/esvm/internal/value"
)

func mustEval(t *testing.T, src string) value.Value {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	s, err := r.ParseScript(src, "test.js")
	if err != nil {
		t.Fatalf("ParseScript(%q): %v", src, err)
	}
	res, err := s.Evaluate()
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", src, err)
	}
	return res
}

// Scenario 1: `let o = { a: 1 }; o.b = 2; o.a` => 1. The shape transition
// from adding `b` must not disturb the already-cached offset for `a`.
func TestScenarioShapeTransitionPreservesExistingProperty(t *testing.T) {
	res := mustEval(t, `let o = { a: 1 }; o.b = 2; o.a`)
	if res.Kind() != value.KindSmallInt || res.AsInt32() != 1 {
		t.Fatalf("got kind=%v payload=%v, want small int 1", res.Kind(), res)
	}
}

// Scenario 2: a prototype-chain method call populates a prototype-hit cache
// entry and still resolves correctly.
func TestScenarioPrototypeMethodCall(t *testing.T) {
	res := mustEval(t, `function F(){}; F.prototype.m = function(){ return 42 }; (new F()).m()`)
	if res.Kind() != value.KindSmallInt || res.AsInt32() != 42 {
		t.Fatalf("got %v, want small int 42", res)
	}
}

// Scenario 3: defining `m` directly on an instance after a prototype-hit
// cache entry was already populated must invalidate that entry so the next
// read observes the own property, not the stale prototype hit.
func TestScenarioOwnPropertyInvalidatesPrototypeCache(t *testing.T) {
	res := mustEval(t, `function F(){}; F.prototype.m = function(){ return 42 }; let x = new F(); x.m; x.m = 7; x.m`)
	if res.Kind() != value.KindSmallInt || res.AsInt32() != 7 {
		t.Fatalf("got %v, want small int 7", res)
	}
}

// Scenario 4: a TypeError raised for `null.x` is reachable from script as
// `instanceof TypeError`, per the global error constructors wired in
// internal/vm/errorctors.go.
func TestScenarioNullPropertyAccessThrowsTypeError(t *testing.T) {
	res := mustEval(t, `try { null.x; "unreachable" } catch (e) { e instanceof TypeError }`)
	if res.Kind() != value.KindBoolean || !res.AsBool() {
		t.Fatalf("got %v, want boolean true", res)
	}
}

// Scenario 6: a class derived from `extends null` whose constructor calls
// `super()` explicitly must still succeed in constructing an object.
func TestScenarioClassExtendsNull(t *testing.T) {
	res := mustEval(t, `class C extends null { constructor(){ super(); } }; (new C()) instanceof C`)
	if res.Kind() != value.KindBoolean || !res.AsBool() {
		t.Fatalf("got %v, want boolean true", res)
	}
}

// Scenario 5: a mutual import cycle between two modules, each exporting a
// synchronously computed constant that depends on the other's export,
// links and evaluates successfully: a ends up StatusEvaluated and its sum
// export reads 3.
func TestScenarioMutualModuleImportCycle(t *testing.T) {
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

	loader := module.LoaderFunc(func(_ context.Context, _ *module.Module, specifier string) (*module.Module, error) {
		switch specifier {
		case "./b.js":
			m, errs := module.ParseModule(srcB, "./b.js", nil)
			if len(errs) > 0 {
				t.Fatalf("parsing b.js: %v", errs)
			}
			return m, nil
		default:
			t.Fatalf("unexpected specifier %q", specifier)
			return nil, nil
		}
	})

	r, err := New(WithHostModuleLoader(loader))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	a, err := r.ParseModule(srcA, "./a.js")
	if err != nil {
		t.Fatalf("ParseModule(a): %v", err)
	}

	ctx := context.Background()
	if err := a.LoadRequestedModules(ctx); err != nil {
		t.Fatalf("LoadRequestedModules: %v", err)
	}
	if err := a.Link(); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if _, err := a.Evaluate(); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if a.Status() != module.StatusEvaluated {
		t.Fatalf("module a status = %v, want evaluated", a.Status())
	}

	h := r.vm.Heap
	ns := a.Namespace()
	sum, _, _ := h.Get(ns, h.PropertyKeyFor("sum"))
	if sum.Kind() != value.KindSmallInt || sum.AsInt32() != 3 {
		t.Fatalf("a.js's sum export = %v, want small int 3", sum)
	}
}

// instanceof's right-hand side must itself be a global, callable binding
// whose `.prototype` property identifies the same prototype object every
// VM-raised error of that kind is rooted against.
func TestGlobalErrorConstructorsExposePrototype(t *testing.T) {
	res := mustEval(t, `new RangeError("x") instanceof RangeError`)
	if res.Kind() != value.KindBoolean || !res.AsBool() {
		t.Fatalf("got %v, want boolean true", res)
	}
	res = mustEval(t, `new RangeError("x") instanceof TypeError`)
	if res.Kind() != value.KindBoolean || res.AsBool() {
		t.Fatalf("got %v, want boolean false", res)
	}
}
