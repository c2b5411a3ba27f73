// export.go implements spec.md §4.8's `resolve_export(exportName,
// resolveSet)`: "returns resolved-binding, null, or ambiguous; circularity
// detected by the (module, exportName) pair already being in the resolve
// set; star exports are unioned after filtering `default` and deduplicating;
// bindings found via multiple distinct star-export paths yield ambiguous."
//
// Grounded on original_source/.../source_text_module_records.rs's
// ResolveExport algorithm.
package module

import "fmt"

// ResolvedBinding names a concrete binding an export name resolves to:
// BindingName "*namespace*" is the sentinel ECMA-262 uses for "the target
// module's namespace object" rather than one of its ordinary bindings
// (produced by `export * as ns from "..."` and by a star-export that
// resolves to a whole-namespace rather than a single name).
type ResolvedBinding struct {
	Module     *Module
	BindingName string
}

const namespaceBindingName = "*namespace*"

type resolveKey struct {
	module Handle
	name   string
}

// ResolveExport resolves exportName against m, per spec.md §4.8. The second
// return is true iff resolution is definitively ambiguous (two distinct
// star-export paths produced different bindings); the third is false iff
// exportName does not resolve to anything (ECMA-262's "null" result).
func (g *Graph) ResolveExport(m *Module, exportName string) (ResolvedBinding, bool, bool) {
	return g.resolveExport(m, exportName, make(map[resolveKey]bool))
}

func (g *Graph) resolveExport(m *Module, exportName string, resolveSet map[resolveKey]bool) (ResolvedBinding, bool, bool) {
	key := resolveKey{module: m.handle, name: exportName}
	if resolveSet[key] {
		// Circular: `export * from` cycles without ever binding exportName
		// locally resolve to "not found", per ECMA-262's handling of
		// AlreadyResolved.
		return ResolvedBinding{}, false, false
	}
	resolveSet[key] = true

	for _, le := range m.LocalExports {
		if le.ExportName == exportName {
			return ResolvedBinding{Module: m, BindingName: le.LocalName}, false, true
		}
	}
	for _, ie := range m.IndirectExports {
		if ie.ExportName != exportName {
			continue
		}
		target := g.Get(m.LoadedModules[ie.ModuleRequest])
		if ie.ImportName == "*" {
			return ResolvedBinding{Module: target, BindingName: namespaceBindingName}, false, true
		}
		return g.resolveExport(target, ie.ImportName, resolveSet)
	}

	if exportName == "default" {
		// `default` is never implicitly re-exported by a star export
		// (spec.md §4.8: "filtering `default`").
		return ResolvedBinding{}, false, false
	}

	var starResolution ResolvedBinding
	found := false
	for _, se := range m.StarExports {
		target := g.Get(m.LoadedModules[se.ModuleRequest])
		resolution, ambiguous, ok := g.resolveExport(target, exportName, resolveSet)
		if ambiguous {
			return ResolvedBinding{}, true, false
		}
		if !ok {
			continue
		}
		if !found {
			starResolution = resolution
			found = true
			continue
		}
		if resolution != starResolution {
			return ResolvedBinding{}, true, false
		}
	}
	return starResolution, false, found
}

// String renders a ResolvedBinding for diagnostics (link errors).
func (rb ResolvedBinding) String() string {
	if rb.Module == nil {
		return "<unresolved>"
	}
	return fmt.Sprintf("%s#%s", rb.Module.Specifier, rb.BindingName)
}
