// entries.go extracts spec.md §4.8's ImportEntry/LocalExportEntry/
// IndirectExportEntry/StarExportEntry lists from a parsed module's AST, the
// step ParseModule (module.go) runs once per module before it is ever
// linked. Grounded on original_source/.../source_text_module_records.rs's
// ParseModule algorithm, adapted to internal/ast's generic Node shape the
// same way internal/compiler/scope.go walks it for hoisting.
package module

import "github.com/Voskan/esvm/internal/ast"

func extractEntries(tree *ast.Tree, program ast.NodeID, m *Module) {
	n := tree.Get(program)
	for _, stmt := range n.Children {
		sn := *tree.Get(stmt)
		switch sn.Kind {
		case ast.KindImportDeclaration:
			extractImport(tree, sn, m)
		case ast.KindExportNamedDeclaration:
			extractExportNamed(tree, sn, m)
		case ast.KindExportDefaultDeclaration:
			extractExportDefault(tree, sn, m)
		case ast.KindExportAllDeclaration:
			extractExportAll(tree, sn, m)
		}
	}
}

func extractImport(tree *ast.Tree, n ast.Node, m *Module) {
	src := tree.Get(n.Property).StringValue
	if len(n.Children) == 0 {
		// import "specifier" with no bindings: still a module-request entry
		// (spec.md §4.8), no ImportEntry.
		m.RequestedModules = appendUnique(m.RequestedModules, src)
		return
	}
	for _, specID := range n.Children {
		spec := *tree.Get(specID)
		switch spec.Kind {
		case ast.KindImportDefaultSpecifier:
			local := tree.Get(spec.Id).Name
			m.ImportEntries = append(m.ImportEntries, ImportEntry{ModuleRequest: src, ImportName: "default", LocalName: local})
		case ast.KindImportNamespaceSpecifier:
			local := tree.Get(spec.Id).Name
			m.ImportEntries = append(m.ImportEntries, ImportEntry{ModuleRequest: src, ImportName: "*", LocalName: local, IsNamespace: true})
		case ast.KindImportSpecifier:
			local := tree.Get(spec.Id).Name
			m.ImportEntries = append(m.ImportEntries, ImportEntry{ModuleRequest: src, ImportName: spec.Name, LocalName: local})
		}
	}
}

func extractExportNamed(tree *ast.Tree, n ast.Node, m *Module) {
	if !ast.IsEmpty(n.Argument) {
		// `export var/let/const/function/class ...`: every name the wrapped
		// declaration introduces is a local export under the same name.
		for _, name := range declaredNames(tree, n.Argument) {
			m.LocalExports = append(m.LocalExports, LocalExportEntry{ExportName: name, LocalName: name})
		}
		return
	}
	src := ""
	hasSrc := !ast.IsEmpty(n.Property)
	if hasSrc {
		src = tree.Get(n.Property).StringValue
	}
	for _, specID := range n.Children {
		spec := *tree.Get(specID)
		local := tree.Get(spec.Id).Name
		exported := spec.Name
		if hasSrc {
			m.IndirectExports = append(m.IndirectExports, IndirectExportEntry{ExportName: exported, ModuleRequest: src, ImportName: local})
		} else {
			m.LocalExports = append(m.LocalExports, LocalExportEntry{ExportName: exported, LocalName: local})
		}
	}
}

func extractExportDefault(tree *ast.Tree, n ast.Node, m *Module) {
	decl := tree.Get(n.Argument)
	local := "*default*"
	if (decl.Kind == ast.KindFunctionDeclaration || decl.Kind == ast.KindClassDeclaration) && !ast.IsEmpty(decl.Id) {
		local = tree.Get(decl.Id).Name
	}
	m.LocalExports = append(m.LocalExports, LocalExportEntry{ExportName: "default", LocalName: local})
}

func extractExportAll(tree *ast.Tree, n ast.Node, m *Module) {
	src := tree.Get(n.Property).StringValue
	if ast.IsEmpty(n.Id) {
		m.StarExports = append(m.StarExports, StarExportEntry{ModuleRequest: src})
		return
	}
	exportedAs := tree.Get(n.Id).Name
	m.IndirectExports = append(m.IndirectExports, IndirectExportEntry{ExportName: exportedAs, ModuleRequest: src, ImportName: "*"})
}

// declaredNames flattens every binding a var/let/const/function/class
// declaration statement introduces, for `export <declaration>`'s implicit
// local-export-per-binding rule.
func declaredNames(tree *ast.Tree, id ast.NodeID) []string {
	n := *tree.Get(id)
	switch n.Kind {
	case ast.KindVariableDeclaration:
		var out []string
		for _, d := range n.Children {
			decl := tree.Get(d)
			collectIdentifiers(tree, decl.Id, &out)
		}
		return out
	case ast.KindFunctionDeclaration, ast.KindClassDeclaration:
		if ast.IsEmpty(n.Id) {
			return nil
		}
		return []string{tree.Get(n.Id).Name}
	default:
		return nil
	}
}

func collectIdentifiers(tree *ast.Tree, id ast.NodeID, out *[]string) {
	if ast.IsEmpty(id) {
		return
	}
	n := *tree.Get(id)
	switch n.Kind {
	case ast.KindIdentifier:
		*out = append(*out, n.Name)
	case ast.KindArrayPattern:
		for _, c := range n.Children {
			collectIdentifiers(tree, c, out)
		}
	case ast.KindObjectPattern:
		for _, c := range n.Children {
			prop := *tree.Get(c)
			if prop.Kind == ast.KindRestElement {
				collectIdentifiers(tree, prop.Argument, out)
			} else {
				collectIdentifiers(tree, prop.Right, out)
			}
		}
	case ast.KindAssignmentPattern:
		collectIdentifiers(tree, n.Left, out)
	case ast.KindRestElement:
		collectIdentifiers(tree, n.Argument, out)
	}
}
