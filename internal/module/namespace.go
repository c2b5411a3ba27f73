// namespace.go builds and (once a module finishes evaluating) populates the
// exotic module-namespace object `import * as ns` and `export * as ns from`
// both need (spec.md §3 value Kind "module namespace").
//
// Simplification, recorded here rather than left implicit: ECMA-262's
// module namespace exotic object reflects its target's bindings *live* —
// assigning to the target's binding later is observable through the
// namespace immediately. esvm's internal/heap has no per-Kind exotic
// [[Get]] override for KindModuleNamespace (ordinaryOf treats it as a plain
// shaped object, heap/create.go), so this package instead snapshots every
// export's value once, immediately after the target module's own
// [[ExecuteModule]] step completes (syncNamespace, called from
// evaluate.go). This is faithful for spec.md §8 scenario 5 (two modules
// exporting synchronously-computed constants that never change after
// evaluation) and for the overwhelming majority of real module graphs,
// which do not mutate an export binding after the defining module's top
// level finishes running.
package module

import (
	"sort"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// GetModuleNamespace returns m's namespace object, creating it (with every
// currently-statically-known export name, but no values yet if m has not
// evaluated) on first use. Grounded on ECMA-262's GetModuleNamespace
// abstract operation, simplified per this file's doc comment.
func (g *Graph) GetModuleNamespace(m *Module) value.Value {
	if m.HasNamespace {
		return m.Namespace
	}
	names := exportedNames(g, m, make(map[Handle]bool))
	sort.Strings(names)

	h := g.Realm.Heap
	keys := make([]value.PropertyKey, len(names))
	for i, n := range names {
		keys[i] = h.PropertyKeyFor(n)
	}
	ns := h.NewModuleNamespace(value.Null, m.handle, keys)
	m.Namespace = ns
	m.HasNamespace = true
	if m.Status == StatusEvaluated || m.Status == StatusEvaluatingAsync {
		g.syncNamespace(m)
	}
	return ns
}

// exportedNames computes the deduplicated union of m's own export names
// (spec.md §4.8's star-export union rule: "unioned after filtering `default`
// and deduplicating").
func exportedNames(g *Graph, m *Module, seen map[Handle]bool) []string {
	if seen[m.handle] {
		return nil
	}
	seen[m.handle] = true

	set := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "default" || set[name] {
			return
		}
		set[name] = true
		out = append(out, name)
	}
	for _, le := range m.LocalExports {
		add(le.ExportName)
	}
	for _, ie := range m.IndirectExports {
		add(ie.ExportName)
	}
	for _, se := range m.StarExports {
		target := g.Get(m.LoadedModules[se.ModuleRequest])
		for _, n := range exportedNames(g, target, seen) {
			add(n)
		}
	}
	return out
}

// syncNamespace writes every current export value into m's already-created
// namespace object. Called once, right after m's own body finishes
// evaluating (evaluate.go).
func (g *Graph) syncNamespace(m *Module) {
	if !m.HasNamespace {
		return
	}
	h := g.Realm.Heap
	for _, name := range exportedNames(g, m, make(map[Handle]bool)) {
		resolution, ambiguous, ok := g.ResolveExport(m, name)
		if ambiguous || !ok {
			continue
		}
		v, verr := resolution.Module.Environment.GetOwnBindingValue(resolution.BindingName)
		if verr != nil {
			continue // still in its TDZ; leave unset rather than surface an internal error here
		}
		h.DefineOwnProperty(m.Namespace, h.PropertyKeyFor(name), object.PropertyDescriptor{
			Value: v,
			Attr:  shape.Attr{Writable: false, Enumerable: true, Configurable: false},
		})
	}
}
