// Class-definition-evaluation, spec.md §4.5 and §8 scenario 6 (`extends`,
// `extends null`). Grounded on original_source/.../class_definition_evaluation.rs
// for evaluation order (heritage first, then the constructor, then the
// remaining elements in source order) and on this package's own
// compileObjectExpr for how a single persistent "target" reference is built
// up across several Dup+define sequences.
//
// © 2025 esvm authors. MIT License.
package compiler

import (
	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/value"
)

// compileClassDeclaration lowers a class declaration statement: the class
// value is built exactly as compileClassValue would, then bound to its own
// name via OpInitEnv, which creates and initializes the binding here
// (declareLexical in compiler.go does not pre-declare class names).
func (c *Compiler) compileClassDeclaration(id ast.NodeID) {
	n := *c.tree.Get(id)
	c.compileClassCommon(n)
	name := c.tree.Get(n.Id).Name
	c.emit(OpInitEnv, c.identIndexFor(name), 0)
	c.emit(OpPop, 0, 0) // discard OpInitEnv's result; a declaration is not an expression
}

// compileClassValue lowers a class expression, leaving the constructor on
// the stack.
func (c *Compiler) compileClassValue(id ast.NodeID) {
	c.compileClassCommon(*c.tree.Get(id))
}

// compileClassCommon implements both: evaluate the heritage expression,
// build the constructor (explicit, synthesized, or the VM's default), then
// define every other element on the constructor or its prototype in source
// order, finally leaving just the constructor on the stack.
func (c *Compiler) compileClassCommon(n ast.Node) {
	isDerived := n.Flags.Has(ast.FlagDerivedClass)
	extendsNull := n.Flags.Has(ast.FlagExtendsNull)

	switch {
	case extendsNull:
		c.emit(OpLoadNull, 0, 0)
	case isDerived:
		c.compileExpr(n.SuperClass)
	default:
		c.emit(OpLoadUndefined, 0, 0)
	}

	members := c.tree.Get(n.Body).Children

	var ctorID ast.NodeID = ast.Empty
	var instanceFieldIDs []ast.NodeID
	for _, m := range members {
		mn := *c.tree.Get(m)
		switch mn.Kind {
		case ast.KindMethodDefinition:
			if ast.IsEmpty(mn.Property) && ast.IsEmpty(mn.Right) {
				continue // static block; handled in the definition loop below
			}
			if !mn.Flags.Has(ast.FlagStatic) && !mn.Flags.Has(ast.FlagGetter) &&
				!mn.Flags.Has(ast.FlagSetter) && !mn.Flags.Has(ast.FlagComputed) &&
				staticKeyName(c.tree, mn.Property) == "constructor" {
				ctorID = m
			}
		case ast.KindPropertyDefinition:
			if !mn.Flags.Has(ast.FlagStatic) {
				instanceFieldIDs = append(instanceFieldIDs, m)
			}
		}
	}

	switch {
	case !ast.IsEmpty(ctorID):
		exec := c.buildExplicitConstructor(*c.tree.Get(ctorID), instanceFieldIDs, isDerived)
		idx := c.constIndexFor(value.Int(int32(c.registerNested(exec))))
		c.emit(OpClassDefineConstructor, idx, boolInt32(isDerived))
	case len(instanceFieldIDs) > 0:
		exec := c.buildSynthesizedConstructor(instanceFieldIDs, isDerived)
		idx := c.constIndexFor(value.Int(int32(c.registerNested(exec))))
		c.emit(OpClassDefineConstructor, idx, boolInt32(isDerived))
	default:
		c.emit(OpClassDefineDefaultConstructor, 0, boolInt32(isDerived))
	}

	// The constructor is now on top of the stack. Keep a prototype
	// reference alongside it and toggle which one is "active" (on top) as
	// source order alternates between instance and static elements,
	// mirroring compileObjectExpr's single-target Dup+define idiom but
	// across two persistent targets instead of one.
	c.emit(OpDup, 0, 0)
	c.emit(OpGetProperty, c.identIndexFor("prototype"), c.allocCacheSlot())
	activeIsProto := true

	for _, m := range members {
		if m == ctorID {
			continue
		}
		mn := *c.tree.Get(m)
		switch mn.Kind {
		case ast.KindMethodDefinition:
			if ast.IsEmpty(mn.Property) && ast.IsEmpty(mn.Right) {
				if activeIsProto {
					c.emit(OpSwap, 0, 0)
					activeIsProto = false
				}
				c.compileClassStaticBlock(mn)
				continue
			}
			needProto := !mn.Flags.Has(ast.FlagStatic)
			if needProto != activeIsProto {
				c.emit(OpSwap, 0, 0)
				activeIsProto = needProto
			}
			c.compileObjectDefineMethod(mn)
		case ast.KindPropertyDefinition:
			if !mn.Flags.Has(ast.FlagStatic) {
				continue // instance field; initialized inside the constructor
			}
			if activeIsProto {
				c.emit(OpSwap, 0, 0)
				activeIsProto = false
			}
			c.compileClassStaticField(mn)
		}
	}
	if !activeIsProto {
		c.emit(OpSwap, 0, 0)
	}
	c.emit(OpPop, 0, 0) // discard the prototype reference, leaving just the constructor
}

// buildExplicitConstructor compiles a user-written `constructor(...) {...}`
// method into its own Executable, splicing instance field initializers in
// right after a leading `super(...)` call (the common case for derived
// classes) or at the very top otherwise (spec.md §7's field-order note).
func (c *Compiler) buildExplicitConstructor(ctorMember ast.Node, instanceFields []ast.NodeID, isDerived bool) *Executable {
	fnNode := *c.tree.Get(ctorMember.Right)
	nested := newCompiler(c.tree, "constructor")
	nested.exec.IsClassConstructor = true
	nested.exec.IsDerivedConstructor = isDerived
	nested.exec.ParamCount = len(fnNode.Children)
	for i, p := range fnNode.Children {
		pn := *c.tree.Get(p)
		if pn.Kind == ast.KindRestElement {
			nested.emit(OpGetRestArgs, int32(i), 0)
			nested.bindPattern(pn.Argument, true)
			continue
		}
		nested.emit(OpGetLocal, int32(i), 0)
		nested.bindPattern(p, true)
	}

	bodyStmts := c.tree.Get(fnNode.Body).Children
	start := 0
	if isDerived && len(bodyStmts) > 0 {
		first := *c.tree.Get(bodyStmts[0])
		if first.Kind == ast.KindExpressionStmt {
			expr := *c.tree.Get(first.Argument)
			if expr.Kind == ast.KindCallExpr && c.tree.Get(expr.Callee).Kind == ast.KindSuperExpr {
				nested.compileStatement(bodyStmts[0])
				start = 1
			}
		}
	}
	nested.compileInstanceFieldInits(instanceFields)
	for _, s := range bodyStmts[start:] {
		nested.compileStatement(s)
	}
	nested.emit(OpLoadUndefined, 0, 0)
	nested.emit(OpReturn, 0, 0)
	return nested.exec
}

// buildSynthesizedConstructor handles the one case the VM's intrinsic
// default constructor can't: a class with instance fields but no explicit
// constructor still needs bytecode to run the field initializers, so one is
// synthesized here — `constructor(...args) { super(...args); <fields> }`
// for a derived class, `constructor() { <fields> }` otherwise.
func (c *Compiler) buildSynthesizedConstructor(instanceFields []ast.NodeID, isDerived bool) *Executable {
	nested := newCompiler(c.tree, "constructor")
	nested.exec.IsClassConstructor = true
	nested.exec.IsDerivedConstructor = isDerived
	if isDerived {
		nested.exec.ParamCount = 1
		argsID := c.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: "args"})
		restID := c.tree.New(ast.Node{Kind: ast.KindRestElement, Argument: argsID})
		nested.emit(OpGetRestArgs, 0, 0)
		nested.bindPattern(restID, true)

		argsRefID := c.tree.New(ast.Node{Kind: ast.KindIdentifier, Name: "args"})
		spreadID := c.tree.New(ast.Node{Kind: ast.KindSpreadElement, Argument: argsRefID})
		nested.compileSuperCall(ast.Node{Children: []ast.NodeID{spreadID}})
		nested.emit(OpPop, 0, 0) // discard super()'s `this` result; statement position
	}
	nested.compileInstanceFieldInits(instanceFields)
	nested.emit(OpLoadUndefined, 0, 0)
	nested.emit(OpReturn, 0, 0)
	return nested.exec
}

// compileInstanceFieldInits emits `this.key = init;` (or `this.key =
// undefined;`) for each field, in source order, discarding each store's
// result like any other statement.
func (c *Compiler) compileInstanceFieldInits(fields []ast.NodeID) {
	for _, f := range fields {
		fn := *c.tree.Get(f)
		c.emit(OpLoadThis, 0, 0)
		if fn.Flags.Has(ast.FlagComputed) {
			c.compileExpr(fn.Property)
			c.compileFieldInitValue(fn.Right)
			c.emit(OpSetPropertyByKey, 0, 0)
		} else {
			c.compileFieldInitValue(fn.Right)
			c.emit(OpSetProperty, c.identIndexFor(staticKeyName(c.tree, fn.Property)), c.allocCacheSlot())
		}
		c.emit(OpPop, 0, 0)
	}
}

// compileClassStaticField defines a static field directly on the
// constructor, which must already be the active (topmost) target.
func (c *Compiler) compileClassStaticField(fn ast.Node) {
	c.emit(OpDup, 0, 0)
	if fn.Flags.Has(ast.FlagComputed) {
		c.compileExpr(fn.Property)
		c.compileFieldInitValue(fn.Right)
		c.emit(OpSetPropertyByKey, 0, 0)
	} else {
		c.compileFieldInitValue(fn.Right)
		c.emit(OpSetProperty, c.identIndexFor(staticKeyName(c.tree, fn.Property)), c.allocCacheSlot())
	}
	c.emit(OpPop, 0, 0)
}

func (c *Compiler) compileFieldInitValue(init ast.NodeID) {
	if ast.IsEmpty(init) {
		c.emit(OpLoadUndefined, 0, 0)
		return
	}
	c.compileExpr(init)
}

// compileClassStaticBlock runs a `static { ... }` block once, immediately,
// with `this` bound to the constructor, which must already be the active
// (topmost) target.
func (c *Compiler) compileClassStaticBlock(mn ast.Node) {
	bodyStmts := c.tree.Get(mn.Body).Children
	exec := c.compileFunctionBody(nil, bodyStmts, false, false, "")
	idx := c.constIndexFor(value.Int(int32(c.registerNested(exec))))
	c.emit(OpDup, 0, 0)
	c.emit(OpNewFunction, idx, 0)
	c.emit(OpSwap, 0, 0)
	c.emit(OpCall, 0, 0)
	c.emit(OpPop, 0, 0)
}

// staticKeyName resolves a non-computed property/method/field key to its
// name, prefixing private names with "#" to keep them out of the ordinary
// string-keyed namespace (matching KindPrivateIdentifier's handling in
// compileExpr's KindIdentifier/KindPrivateIdentifier cases).
func staticKeyName(tree *ast.Tree, key ast.NodeID) string {
	n := *tree.Get(key)
	switch n.Kind {
	case ast.KindStringLiteral:
		return n.StringValue
	case ast.KindPrivateIdentifier:
		return "#" + n.Name
	default:
		return n.Name
	}
}
