package compiler

import "github.com/Voskan/esvm/internal/ast"

// binding describes one name a scope introduces, enough for the compiler to
// emit the right environment record kind and initialization order
// (spec.md §4.5, grounded on original_source/.../scope_analysis.rs).
type binding struct {
	name    string
	mutable bool
	isFunc  bool // FunctionDeclaration: initialized eagerly at scope entry
	fn      ast.NodeID
}

// lexicallyDeclaredNames returns the let/const/class/function bindings a
// single block introduces directly (not walking into nested blocks or
// function bodies), in source order.
func lexicallyDeclaredNames(tree *ast.Tree, stmts []ast.NodeID) []binding {
	var out []binding
	for _, id := range stmts {
		n := tree.Get(id)
		switch n.Kind {
		case ast.KindVariableDeclaration:
			if !n.Flags.Has(ast.FlagVarLet) && !n.Flags.Has(ast.FlagVarConst) {
				continue // var is function/global-scoped, collected separately
			}
			mutable := !n.Flags.Has(ast.FlagVarConst)
			for _, d := range n.Children {
				declNode := tree.Get(d)
				collectPatternNames(tree, declNode.Id, mutable, &out)
			}
		case ast.KindFunctionDeclaration:
			out = append(out, binding{name: tree.Get(n.Id).Name, mutable: true, isFunc: true, fn: id})
		case ast.KindClassDeclaration:
			if !ast.IsEmpty(n.Id) {
				out = append(out, binding{name: tree.Get(n.Id).Name, mutable: true})
			}
		}
	}
	return out
}

// collectPatternNames flattens a (possibly destructuring) binding target
// into its leaf identifier bindings.
func collectPatternNames(tree *ast.Tree, pat ast.NodeID, mutable bool, out *[]binding) {
	if ast.IsEmpty(pat) {
		return
	}
	n := *tree.Get(pat)
	switch n.Kind {
	case ast.KindIdentifier:
		*out = append(*out, binding{name: n.Name, mutable: mutable})
	case ast.KindArrayPattern:
		for _, c := range n.Children {
			collectPatternNames(tree, c, mutable, out)
		}
	case ast.KindObjectPattern:
		for _, c := range n.Children {
			prop := *tree.Get(c)
			if prop.Kind == ast.KindRestElement {
				collectPatternNames(tree, prop.Argument, mutable, out)
			} else {
				collectPatternNames(tree, prop.Right, mutable, out)
			}
		}
	case ast.KindAssignmentPattern:
		collectPatternNames(tree, n.Left, mutable, out)
	case ast.KindRestElement:
		collectPatternNames(tree, n.Argument, mutable, out)
	}
}

// varDeclaredNames walks stmts (and every nested statement except inside
// function/arrow/class bodies, which own their own var scope) collecting
// `var`-declared and function-declared names, for hoisting to the nearest
// function or global environment.
func varDeclaredNames(tree *ast.Tree, stmts []ast.NodeID) []string {
	var out []string
	for _, id := range stmts {
		walkVarNames(tree, id, &out)
	}
	return out
}

func walkVarNames(tree *ast.Tree, id ast.NodeID, out *[]string) {
	if ast.IsEmpty(id) {
		return
	}
	n := *tree.Get(id)
	switch n.Kind {
	case ast.KindVariableDeclaration:
		if n.Flags.Has(ast.FlagVarLet) || n.Flags.Has(ast.FlagVarConst) {
			return
		}
		for _, d := range n.Children {
			declNode := tree.Get(d)
			var names []binding
			collectPatternNames(tree, declNode.Id, true, &names)
			for _, b := range names {
				*out = append(*out, b.name)
			}
		}
	case ast.KindFunctionDeclaration:
		*out = append(*out, tree.Get(n.Id).Name)
	case ast.KindBlockStmt, ast.KindProgram:
		for _, c := range n.Children {
			walkVarNames(tree, c, out)
		}
	case ast.KindIfStmt:
		walkVarNames(tree, n.Consequent, out)
		walkVarNames(tree, n.Alternate, out)
	case ast.KindForStmt:
		walkVarNames(tree, n.Init, out)
		walkVarNames(tree, n.Body, out)
	case ast.KindForInStmt, ast.KindForOfStmt:
		walkVarNames(tree, n.Left, out)
		walkVarNames(tree, n.Body, out)
	case ast.KindWhileStmt, ast.KindDoWhileStmt, ast.KindLabeledStmt:
		walkVarNames(tree, n.Body, out)
	case ast.KindTryStmt:
		walkVarNames(tree, n.Body, out)
		if !ast.IsEmpty(n.Handler) {
			walkVarNames(tree, tree.Get(n.Handler).Body, out)
		}
		walkVarNames(tree, n.Finalizer, out)
	case ast.KindSwitchStmt:
		for _, c := range n.Children {
			for _, s := range tree.Get(c).Children {
				walkVarNames(tree, s, out)
			}
		}
	}
}
