// link.go implements spec.md §4.8's Link step: "inner depth-first, assigns
// DFS indices, calls initialize_environment on bottom-up exit; SCC members
// transition to linked together." This is Tarjan's strongly-connected-
// components algorithm specialized to ECMA-262's InnerModuleLinking, the
// canonical shape spec.md §9 calls "the language-neutral form of the cycle
// problem": "represented not by pointer cycles but by arena indices... an
// auxiliary per-module [[DFSIndex]]/[[DFSAncestorIndex]] and a work stack."
//
// Grounded on original_source/.../cyclic_module_records.rs's
// InnerModuleLinking.
package module

import "fmt"

// Link resolves every cross-module binding root (transitively) needs,
// running InnerModuleLinking until root and every module reachable from it
// via RequestedModules/LoadedModules reaches StatusLinked. An error resets
// every module still on the DFS stack back to StatusUnlinked (ECMA-262's
// "on failure, reset affected modules' status"); a module whose strongly
// connected component had already finished keeps StatusLinked. This
// satisfies spec.md §8's testable
// property: "For every pair of modules in a cycle, link either succeeds for
// both or fails for both."
func (g *Graph) Link(root *Module) error {
	switch root.Status {
	case StatusLinked, StatusEvaluating, StatusEvaluatingAsync, StatusEvaluated, StatusEvaluatedWithError:
		return nil
	case StatusUnlinked:
	default:
		return fmt.Errorf("module %q: cannot link from status %s", root.Specifier, root.Status)
	}

	g.Realm.Heap.Metrics().IncModuleLink()
	var stack []*Module
	onStack := make(map[Handle]bool)
	_, err := g.innerLink(root, &stack, onStack, 0)
	if err != nil {
		for _, m := range stack {
			m.Status = StatusUnlinked
			m.DFSIndex, m.DFSAncestorIndex = 0, 0
			m.HasDFSIndex = false
		}
		return err
	}
	return nil
}

func (g *Graph) innerLink(m *Module, stack *[]*Module, onStack map[Handle]bool, index int) (int, error) {
	switch m.Status {
	case StatusLinking, StatusLinked, StatusEvaluating, StatusEvaluatingAsync, StatusEvaluated:
		return index, nil
	}
	if m.Status != StatusUnlinked {
		return index, fmt.Errorf("module %q: cannot link from status %s", m.Specifier, m.Status)
	}

	m.Status = StatusLinking
	m.DFSIndex = index
	m.DFSAncestorIndex = index
	m.HasDFSIndex = true
	index++
	*stack = append(*stack, m)
	onStack[m.handle] = true

	for _, spec := range m.RequestedModules {
		h, ok := m.LoadedModules[spec]
		if !ok {
			return index, fmt.Errorf("module %q: %q was not resolved by load_requested_modules", m.Specifier, spec)
		}
		required := g.Get(h)
		var err error
		index, err = g.innerLink(required, stack, onStack, index)
		if err != nil {
			return index, err
		}
		if required.Status == StatusLinking && required.DFSAncestorIndex < m.DFSAncestorIndex {
			m.DFSAncestorIndex = required.DFSAncestorIndex
		}
	}

	if err := g.initializeEnvironment(m); err != nil {
		return index, err
	}

	if m.DFSAncestorIndex == m.DFSIndex {
		for {
			n := len(*stack)
			top := (*stack)[n-1]
			*stack = (*stack)[:n-1]
			onStack[top.handle] = false
			top.Status = StatusLinked
			if top == m {
				break
			}
		}
	}
	return index, nil
}

// initializeEnvironment implements spec.md §4.8's "Environment
// initialization creates a module environment over the realm's global
// environment [already done at registration; see Graph.register], creates
// immutable import bindings and link-time import bindings, then declares
// var and lexical declarations per scope analysis." The var/lexical half of
// that is handled lazily by the compiled body's own OpInitEnv instructions
// the first time the module is evaluated (internal/compiler's hoisting
// convention, shared with top-level scripts) rather than duplicated here;
// only cross-module import bindings, which must exist before any module in
// the graph runs, are wired at link time.
func (g *Graph) initializeEnvironment(m *Module) error {
	for _, ie := range m.ImportEntries {
		h, ok := m.LoadedModules[ie.ModuleRequest]
		if !ok {
			return fmt.Errorf("module %q: unresolved import source %q", m.Specifier, ie.ModuleRequest)
		}
		target := g.Get(h)

		if ie.IsNamespace {
			ns := g.GetModuleNamespace(target)
			m.Environment.DeclareImmutable(ie.LocalName)
			m.Environment.InitializeBinding(ie.LocalName, ns)
			continue
		}

		resolution, ambiguous, ok := g.ResolveExport(target, ie.ImportName)
		if ambiguous {
			return fmt.Errorf("module %q: import %q from %q is ambiguous", m.Specifier, ie.ImportName, ie.ModuleRequest)
		}
		if !ok {
			return fmt.Errorf("module %q: %q does not provide an export named %q", m.Specifier, ie.ModuleRequest, ie.ImportName)
		}
		if resolution.BindingName == namespaceBindingName {
			ns := g.GetModuleNamespace(resolution.Module)
			m.Environment.DeclareImmutable(ie.LocalName)
			m.Environment.InitializeBinding(ie.LocalName, ns)
			continue
		}
		m.Environment.DeclareIndirect(ie.LocalName, resolution.Module.Environment, resolution.BindingName)
	}

	for _, ee := range m.IndirectExports {
		target := g.Get(m.LoadedModules[ee.ModuleRequest])
		if ee.ImportName == "*" {
			continue // namespace re-export: resolved lazily by GetModuleNamespace
		}
		if _, ambiguous, ok := g.ResolveExport(target, ee.ImportName); ambiguous || !ok {
			return fmt.Errorf("module %q: re-exported name %q is not provided by %q", m.Specifier, ee.ImportName, ee.ModuleRequest)
		}
	}
	return nil
}
