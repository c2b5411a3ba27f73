package compiler

import (
	"strings"

	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/value"
)

// compileExpr lowers an expression, leaving exactly one value on the VM
// stack.
func (c *Compiler) compileExpr(id ast.NodeID) {
	n := *c.tree.Get(id)
	switch n.Kind {
	case ast.KindNumericLiteral:
		c.emit(OpLoadConst, c.constIndexFor(value.Double(n.NumberValue)), 0)
	case ast.KindStringLiteral:
		c.compileStringLiteral(n.StringValue)
	case ast.KindTemplateLiteral:
		c.compileTemplateLiteral(n.StringValue)
	case ast.KindBooleanLiteral:
		if n.Flags != 0 {
			c.emit(OpLoadTrue, 0, 0)
		} else {
			c.emit(OpLoadFalse, 0, 0)
		}
	case ast.KindNullLiteral:
		c.emit(OpLoadNull, 0, 0)
	case ast.KindThisExpr:
		c.emit(OpLoadThis, 0, 0)
	case ast.KindSuperExpr:
		// `super` only ever appears as the receiver of a member/call
		// expression; those cases unwrap it directly. Bare evaluation (a
		// malformed program) loads undefined rather than crashing.
		c.emit(OpLoadUndefined, 0, 0)
	case ast.KindIdentifier:
		c.emit(OpGetEnv, c.identIndexFor(n.Name), 0)
	case ast.KindPrivateIdentifier:
		c.emit(OpGetEnv, c.identIndexFor("#"+n.Name), 0)
	case ast.KindArrayExpr:
		c.compileArrayExpr(n)
	case ast.KindObjectExpr:
		c.compileObjectExpr(n)
	case ast.KindSpreadElement:
		c.compileExpr(n.Argument) // only meaningful inside array/arg lists, handled by the caller
	case ast.KindTaggedTemplateExpr:
		c.compileExpr(n.Callee)
		c.compileTemplateLiteral(c.tree.Get(n.Property).StringValue)
		c.emit(OpCall, 1, 0)
	case ast.KindUnaryExpr:
		c.compileUnary(n)
	case ast.KindUpdateExpr:
		c.compileUpdate(n)
	case ast.KindBinaryExpr:
		c.compileExpr(n.Left)
		c.compileExpr(n.Right)
		c.emitBinaryOp(n.Operator)
	case ast.KindLogicalExpr:
		c.compileLogical(n)
	case ast.KindConditionalExpr:
		c.compileConditional(n)
	case ast.KindSequenceExpr:
		for i, child := range n.Children {
			c.compileExpr(child)
			if i != len(n.Children)-1 {
				c.emit(OpPop, 0, 0)
			}
		}
	case ast.KindAssignExpr:
		c.compileAssign(n)
	case ast.KindMemberExpr:
		c.compileMemberExpr(n)
	case ast.KindCallExpr:
		c.compileCallExpr(n)
	case ast.KindNewExpr:
		c.compileNewExpr(n)
	case ast.KindFunctionExpr:
		c.compileFunctionValue(id)
	case ast.KindArrowFunctionExpr:
		c.compileArrowValue(id)
	case ast.KindClassExpr:
		c.compileClassValue(id)
	case ast.KindYieldExpr:
		c.compileYield(n)
	case ast.KindAwaitExpr:
		// spec.md §9 open question: await parses/compiles but the VM does
		// not suspend execution across a host microtask turn (see
		// internal/vm/async.go) — the operand's value passes through.
		c.compileExpr(n.Argument)
		c.emit(OpAwait, 0, 0)
	default:
		c.errorf("compiler: unhandled expression kind %d", n.Kind)
		c.emit(OpLoadUndefined, 0, 0)
	}
}

func (c *Compiler) compileStringLiteral(s string) {
	if v, ok := value.SmallString(s); ok {
		c.emit(OpLoadConst, c.constIndexFor(v), 0)
		return
	}
	// Strings too long to pack inline are interned by the heap at runtime;
	// the compiler just records the raw text as an identifier-pool entry
	// and a distinguishing large-string marker constant.
	c.emit(OpLoadConst, c.constIndexFor(value.Int(int32(c.identIndexFor(s)))), 1)
}

// compileTemplateLiteral lowers a whole `...` token to one string constant:
// the text between the backticks, taken verbatim from the token's raw
// source. ${...} substitutions are neither parsed nor evaluated, and escape
// sequences are not decoded; both appear in the resulting string as written.
func (c *Compiler) compileTemplateLiteral(raw string) {
	text := raw
	if len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	c.compileStringLiteral(text)
}

func (c *Compiler) compileArrayExpr(n ast.Node) {
	c.emit(OpNewArray, int32(len(n.Children)), 0)
	for i, el := range n.Children {
		if el == ast.Empty {
			continue
		}
		elNode := *c.tree.Get(el)
		if elNode.Kind == ast.KindSpreadElement {
			c.emit(OpDup, 0, 0)
			c.compileExpr(elNode.Argument)
			c.emit(OpCallSpread, int32(i), 1) // B=1: array-spread-append mode
			continue
		}
		c.emit(OpDup, 0, 0)
		c.emit(OpLoadConst, c.constIndexFor(value.Int(int32(i))), 0)
		c.compileExpr(el)
		c.emit(OpSetPropertyByKey, 0, 0) // VM pops [array, index, value] in push order
	}
}

func (c *Compiler) compileObjectExpr(n ast.Node) {
	c.emit(OpNewObject, 0, 0)
	for _, p := range n.Children {
		prop := *c.tree.Get(p)
		if prop.Kind == ast.KindSpreadElement {
			c.emit(OpDup, 0, 0)
			c.compileExpr(prop.Argument)
			c.emit(OpCallSpread, 0, 2) // B=2: object-spread-merge mode
			continue
		}
		if prop.Flags.Has(ast.FlagGetter) || prop.Flags.Has(ast.FlagSetter) || prop.Flags.Has(ast.FlagMethod) {
			c.compileObjectDefineMethod(prop)
			continue
		}
		c.emit(OpDup, 0, 0)
		c.compileExpr(prop.Right)
		if prop.Flags.Has(ast.FlagComputed) {
			c.compileExpr(prop.Property)
			c.emit(OpSetPropertyByKey, 0, 0)
		} else {
			keyNode := *c.tree.Get(prop.Property)
			name := keyNode.Name
			if keyNode.Kind == ast.KindStringLiteral {
				name = keyNode.StringValue
			}
			c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
		c.emit(OpPop, 0, 0) // discard OpSetProperty's result; the object itself stays below
	}
}

// compileObjectDefineMethod emits [target-dup, key?, fn] followed by
// OpObjectDefineMethod for one method/getter/setter property or class
// element. target must already be on top of the stack; it is consumed.
func (c *Compiler) compileObjectDefineMethod(prop ast.Node) {
	c.emit(OpDup, 0, 0)
	kind := int32(0)
	switch {
	case prop.Flags.Has(ast.FlagGetter):
		kind = 1
	case prop.Flags.Has(ast.FlagSetter):
		kind = 2
	}
	fnExec := c.compileMethodExecutable(prop.Right, "")
	idx := c.constIndexFor(value.Int(int32(c.registerNested(fnExec))))
	if prop.Flags.Has(ast.FlagComputed) {
		c.compileExpr(prop.Property)
		c.emit(OpNewFunction, idx, 0)
		c.emit(OpObjectDefineMethod, -1, kind)
		return
	}
	keyNode := *c.tree.Get(prop.Property)
	name := keyNode.Name
	if keyNode.Kind == ast.KindStringLiteral {
		name = keyNode.StringValue
	}
	c.emit(OpNewFunction, idx, 0)
	c.emit(OpObjectDefineMethod, c.identIndexFor(name), kind)
}

// compileMethodExecutable compiles a FunctionExpr method body the same way
// compileFunctionValue does, but returns the Executable instead of emitting
// OpNewFunction — the caller (object literal / class element) wires it
// through OpObjectDefineMethod or OpClassDefineConstructor instead.
func (c *Compiler) compileMethodExecutable(id ast.NodeID, name string) *Executable {
	n := *c.tree.Get(id)
	if name == "" && !ast.IsEmpty(n.Id) {
		name = c.tree.Get(n.Id).Name
	}
	bodyStmts := c.tree.Get(n.Body).Children
	return c.compileFunctionBody(n.Children, bodyStmts, n.Flags.Has(ast.FlagGenerator), n.Flags.Has(ast.FlagAsync), name)
}

func (c *Compiler) compileUnary(n ast.Node) {
	if n.Operator == "delete" {
		target := *c.tree.Get(n.Argument)
		if target.Kind == ast.KindMemberExpr {
			c.compileExpr(target.Object)
			if target.Flags.Has(ast.FlagComputed) {
				c.compileExpr(target.Property)
				c.emit(OpDeleteProperty, 1, 0)
			} else {
				name := c.tree.Get(target.Property).Name
				c.emit(OpDeleteProperty, c.identIndexFor(name), 0)
			}
			return
		}
		c.emit(OpLoadTrue, 0, 0) // deleting a non-reference is a no-op that evaluates to true
		return
	}
	c.compileExpr(n.Argument)
	switch n.Operator {
	case "+":
		// unary plus: ToNumber, computed as operand * 1 (OpAdd would pop two operands)
		c.emit(OpLoadConst, c.constIndexFor(value.Int(1)), 0)
		c.emit(OpMul, 0, 0)
	case "-":
		c.emit(OpNeg, 0, 0)
	case "!":
		c.emit(OpNot, 0, 0)
	case "~":
		c.emit(OpBitNot, 0, 0)
	case "typeof":
		c.emit(OpTypeof, 0, 0)
	case "void":
		c.emit(OpPop, 0, 0)
		c.emit(OpLoadUndefined, 0, 0)
	default:
		c.errorf("compiler: unhandled unary operator %q", n.Operator)
	}
}

func (c *Compiler) compileUpdate(n ast.Node) {
	isInc := strings.HasSuffix(n.Operator, "++")
	isPrefix := !strings.HasPrefix(n.Operator, "post")
	target := *c.tree.Get(n.Argument)
	one := c.constIndexFor(value.Double(1))

	switch target.Kind {
	case ast.KindIdentifier:
		c.emit(OpGetEnv, c.identIndexFor(target.Name), 0)
		if !isPrefix {
			c.emit(OpDup, 0, 0)
		}
		c.emit(OpLoadConst, one, 0)
		if isInc {
			c.emit(OpAdd, 0, 0)
		} else {
			c.emit(OpSub, 0, 0)
		}
		if isPrefix {
			c.emit(OpDup, 0, 0)
		} else {
			c.emit(OpSwap, 0, 0)
		}
		c.emit(OpSetEnv, c.identIndexFor(target.Name), 0)
	case ast.KindMemberExpr:
		c.compileExpr(target.Object)
		c.emit(OpDup, 0, 0)
		if target.Flags.Has(ast.FlagComputed) {
			c.compileExpr(target.Property)
			c.emit(OpDup, 0, 0)
			c.emit(OpGetPropertyByKey, 0, 0)
		} else {
			name := c.tree.Get(target.Property).Name
			c.emit(OpGetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
		if !isPrefix {
			c.emit(OpDup, 0, 0)
		}
		c.emit(OpLoadConst, one, 0)
		if isInc {
			c.emit(OpAdd, 0, 0)
		} else {
			c.emit(OpSub, 0, 0)
		}
		if isPrefix {
			c.emit(OpDup, 0, 0)
		}
		if target.Flags.Has(ast.FlagComputed) {
			c.emit(OpSetPropertyByKey, 0, 0)
		} else {
			name := c.tree.Get(target.Property).Name
			c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
	default:
		c.errorf("compiler: invalid update target kind %d", target.Kind)
	}
}

func (c *Compiler) emitBinaryOp(op string) {
	switch op {
	case "+":
		c.emit(OpAdd, 0, 0)
	case "-":
		c.emit(OpSub, 0, 0)
	case "*":
		c.emit(OpMul, 0, 0)
	case "/":
		c.emit(OpDiv, 0, 0)
	case "%":
		c.emit(OpMod, 0, 0)
	case "**":
		c.emit(OpExp, 0, 0)
	case "==":
		c.emit(OpEq, 0, 0)
	case "!=":
		c.emit(OpEq, 0, 0)
		c.emit(OpNot, 0, 0)
	case "===":
		c.emit(OpStrictEq, 0, 0)
	case "!==":
		c.emit(OpStrictEq, 0, 0)
		c.emit(OpNot, 0, 0)
	case "<":
		c.emit(OpLt, 0, 0)
	case "<=":
		c.emit(OpLte, 0, 0)
	case ">":
		c.emit(OpGt, 0, 0)
	case ">=":
		c.emit(OpGte, 0, 0)
	case "instanceof":
		c.emit(OpInstanceOf, 0, 0)
	case "in":
		c.emit(OpIn, 0, 0)
	case "&", "|", "^", "<<", ">>", ">>>":
		c.errorf("compiler: bitwise operator %q not yet lowered", op)
		c.emit(OpPop, 0, 0)
		c.emit(OpPop, 0, 0)
		c.emit(OpLoadUndefined, 0, 0)
	default:
		c.errorf("compiler: unhandled binary operator %q", op)
	}
}

// compileLogical lowers &&/||/?? with the same peek-don't-consume jump
// convention compileIf/compileConditional use: the tested copy of Left is
// explicitly popped on both the short-circuit and fallthrough paths, so
// exactly one value survives either way.
func (c *Compiler) compileLogical(n ast.Node) {
	c.compileExpr(n.Left)
	c.emit(OpDup, 0, 0)
	var jmp int
	switch n.Operator {
	case "&&":
		jmp = c.emit(OpJumpIfFalse, 0, 0)
	case "||":
		jmp = c.emit(OpJumpIfTrue, 0, 0)
	case "??":
		jmp = c.emit(OpJumpIfNullish, 0, 0)
	default:
		c.errorf("compiler: unhandled logical operator %q", n.Operator)
		return
	}
	c.emit(OpPop, 0, 0) // fallthrough: Left didn't short-circuit, discard both copies
	c.emit(OpPop, 0, 0)
	c.compileExpr(n.Right)
	jmpEnd := c.emit(OpJump, 0, 0)
	c.patchJump(jmp) // short-circuit: one Left copy remains, discard the other
	c.emit(OpPop, 0, 0)
	c.patchJump(jmpEnd)
}

func (c *Compiler) compileConditional(n ast.Node) {
	c.compileExpr(n.Test)
	jmpElse := c.emit(OpJumpIfFalse, 0, 0)
	c.emit(OpPop, 0, 0)
	c.compileExpr(n.Consequent)
	jmpEnd := c.emit(OpJump, 0, 0)
	c.patchJump(jmpElse)
	c.emit(OpPop, 0, 0)
	c.compileExpr(n.Alternate)
	c.patchJump(jmpEnd)
}

func (c *Compiler) compileMemberExpr(n ast.Node) {
	c.compileExpr(n.Object)
	if n.Flags.Has(ast.FlagOptional) {
		c.emit(OpDup, 0, 0)
		jmp := c.emit(OpJumpIfNullish, 0, 0)
		c.emit(OpPop, 0, 0)
		c.compileMemberRead(n.Property, n.Flags.Has(ast.FlagComputed))
		c.patchJump(jmp)
		return
	}
	c.compileMemberRead(n.Property, n.Flags.Has(ast.FlagComputed))
}

func (c *Compiler) compileCallExpr(n ast.Node) {
	callee := *c.tree.Get(n.Callee)
	if callee.Kind == ast.KindSuperExpr {
		c.compileSuperCall(n)
		return
	}
	if callee.Kind == ast.KindMemberExpr && c.tree.Get(callee.Object).Kind == ast.KindSuperExpr {
		c.emit(OpLoadThis, 0, 0) // receiver for the looked-up method is still `this`
		c.compileSuperMemberRead(callee.Property, callee.Flags.Has(ast.FlagComputed))
		c.emit(OpSwap, 0, 0) // stack: [callee, receiver]
		c.compileCallTail(n)
		return
	}
	if callee.Kind == ast.KindMemberExpr {
		c.compileExpr(callee.Object)
		c.emit(OpDup, 0, 0) // keep receiver for `this`
		c.compileMemberRead(callee.Property, callee.Flags.Has(ast.FlagComputed))
		c.emit(OpSwap, 0, 0) // stack: [callee, receiver]
	} else {
		c.compileExpr(n.Callee)
		c.emit(OpLoadUndefined, 0, 0) // no receiver
	}
	c.compileCallTail(n)
}

// compileSuperCall lowers `super(...)`, valid only at the top of a derived
// constructor (spec.md §8 scenario 6): it constructs SuperConstructor with
// the given arguments and binds the result as the running frame's `this`.
func (c *Compiler) compileSuperCall(n ast.Node) {
	spread := false
	for _, a := range n.Children {
		if c.tree.Get(a).Kind == ast.KindSpreadElement {
			spread = true
		}
		c.compileExpr(a)
	}
	if spread {
		c.emit(OpSuperCallSpread, int32(len(n.Children)), 0)
	} else {
		c.emit(OpSuperCall, int32(len(n.Children)), 0)
	}
}

// compileSuperMemberRead looks up key on the running function's HomeObject's
// [[Prototype]] (spec.md §8 scenario 6's `super.method()`), leaving the
// found value on the stack without consuming a receiver the way
// compileMemberRead does — the VM already knows `this` independently.
func (c *Compiler) compileSuperMemberRead(key ast.NodeID, computed bool) {
	if computed {
		c.compileExpr(key)
		c.emit(OpGetSuperPropertyByKey, 0, 0)
		return
	}
	name := c.tree.Get(key).Name
	c.emit(OpGetSuperProperty, c.identIndexFor(name), c.allocCacheSlot())
}

func (c *Compiler) compileCallTail(n ast.Node) {
	spread := false
	for _, a := range n.Children {
		if c.tree.Get(a).Kind == ast.KindSpreadElement {
			spread = true
		}
		c.compileExpr(a)
	}
	if n.Flags.Has(ast.FlagOptional) {
		// Receiver-nullish-short-circuit for `a?.()`: approximate by letting
		// the VM's call raise on a nullish callee the same as a normal call
		// would, documented as imprecise relative to strict optional-call
		// semantics.
	}
	if spread {
		c.emit(OpCallSpread, int32(len(n.Children)), 0)
	} else {
		c.emit(OpCall, int32(len(n.Children)), 0)
	}
}

func (c *Compiler) compileNewExpr(n ast.Node) {
	c.compileExpr(n.Callee)
	for _, a := range n.Children {
		c.compileExpr(a)
	}
	c.emit(OpConstruct, int32(len(n.Children)), 0)
}

func (c *Compiler) compileAssign(n ast.Node) {
	if n.Operator != "=" {
		c.compileCompoundAssign(n)
		return
	}
	target := *c.tree.Get(n.Left)
	switch target.Kind {
	case ast.KindIdentifier:
		c.compileExpr(n.Right)
		c.emit(OpDup, 0, 0)
		c.emit(OpSetEnv, c.identIndexFor(target.Name), 0)
	case ast.KindMemberExpr:
		c.compileExpr(n.Right)
		c.emit(OpDup, 0, 0)
		c.compileExpr(target.Object)
		if target.Flags.Has(ast.FlagComputed) {
			c.compileExpr(target.Property)
			c.emit(OpSetPropertyByKey, 0, 0)
		} else {
			name := c.tree.Get(target.Property).Name
			c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
	case ast.KindArrayPattern, ast.KindObjectPattern:
		c.compileExpr(n.Right)
		c.emit(OpDup, 0, 0)
		c.bindPattern(n.Left, false)
	default:
		c.errorf("compiler: invalid assignment target kind %d", target.Kind)
	}
}

func isLogicalAssignOp(op string) bool { return op == "&&" || op == "||" || op == "??" }

func (c *Compiler) compileCompoundAssign(n ast.Node) {
	op := strings.TrimSuffix(n.Operator, "=")
	target := *c.tree.Get(n.Left)

	readCurrent := func() {
		if target.Kind == ast.KindIdentifier {
			c.emit(OpGetEnv, c.identIndexFor(target.Name), 0)
			return
		}
		if target.Flags.Has(ast.FlagComputed) {
			c.emit(OpDup, 0, 0) // dup [obj, key] pair (below, see call site)
			c.emit(OpGetPropertyByKey, 0, 0)
		} else {
			name := c.tree.Get(target.Property).Name
			c.emit(OpGetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
	}

	if isLogicalAssignOp(op) {
		readCurrent2 := func() ast.NodeID { return n.Left }
		_ = readCurrent2
		if target.Kind == ast.KindIdentifier {
			c.emit(OpGetEnv, c.identIndexFor(target.Name), 0)
			c.emit(OpDup, 0, 0)
			var jmp int
			switch op {
			case "&&":
				jmp = c.emit(OpJumpIfFalse, 0, 0)
			case "||":
				jmp = c.emit(OpJumpIfTrue, 0, 0)
			default:
				jmp = c.emit(OpJumpIfNullish, 0, 0)
			}
			c.emit(OpPop, 0, 0)
			c.compileExpr(n.Right)
			c.emit(OpDup, 0, 0)
			c.emit(OpSetEnv, c.identIndexFor(target.Name), 0)
			c.patchJump(jmp)
			return
		}
		// Member logical-assignment is not lowered: emitBinaryOp has no
		// case for a logical operator, so a member target of ||=, &&= or
		// ??= records an "unhandled binary operator" compile diagnostic.
		c.compileExpr(target.Object)
		c.emit(OpDup, 0, 0)
		c.compileMemberRead(target.Property, target.Flags.Has(ast.FlagComputed))
		c.compileExpr(n.Right)
		c.emitBinaryOp("??") // records the diagnostic described above
		c.emit(OpDup, 0, 0)
		if target.Flags.Has(ast.FlagComputed) {
			c.compileExpr(target.Property)
			c.emit(OpSwap, 0, 0)
			c.emit(OpSetPropertyByKey, 0, 0)
		} else {
			name := c.tree.Get(target.Property).Name
			c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
		}
		return
	}

	if target.Kind == ast.KindIdentifier {
		readCurrent()
		c.compileExpr(n.Right)
		c.emitBinaryOp(op)
		c.emit(OpDup, 0, 0)
		c.emit(OpSetEnv, c.identIndexFor(target.Name), 0)
		return
	}

	c.compileExpr(target.Object)
	c.emit(OpDup, 0, 0)
	c.compileMemberRead(target.Property, target.Flags.Has(ast.FlagComputed))
	c.compileExpr(n.Right)
	c.emitBinaryOp(op)
	c.emit(OpDup, 0, 0)
	if target.Flags.Has(ast.FlagComputed) {
		c.compileExpr(target.Property)
		c.emit(OpSwap, 0, 0)
		c.emit(OpSetPropertyByKey, 0, 0)
	} else {
		name := c.tree.Get(target.Property).Name
		c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
	}
}

func (c *Compiler) compileAssignTarget(target ast.NodeID) {
	n := *c.tree.Get(target)
	if n.Kind != ast.KindMemberExpr {
		c.errorf("compiler: unsupported destructuring assignment target kind %d", n.Kind)
		return
	}
	c.emit(OpDup, 0, 0) // value being assigned, from the enclosing pattern walk
	c.compileExpr(n.Object)
	if n.Flags.Has(ast.FlagComputed) {
		c.compileExpr(n.Property)
		c.emit(OpSwap, 0, 0)
		c.emit(OpSetPropertyByKey, 0, 0)
	} else {
		name := c.tree.Get(n.Property).Name
		c.emit(OpSetProperty, c.identIndexFor(name), c.allocCacheSlot())
	}
}

func (c *Compiler) compileYield(n ast.Node) {
	if ast.IsEmpty(n.Argument) {
		c.emit(OpLoadUndefined, 0, 0)
	} else {
		c.compileExpr(n.Argument)
	}
	delegate := int32(0)
	if n.Flags.Has(ast.FlagGenerator) {
		delegate = 1
	}
	c.emit(OpYield, delegate, 0)
}

/* -------------------------------------------------------------------------
   Function/class value expressions
   ------------------------------------------------------------------------- */

func (c *Compiler) compileFunctionValue(id ast.NodeID) {
	n := *c.tree.Get(id)
	name := ""
	if !ast.IsEmpty(n.Id) {
		name = c.tree.Get(n.Id).Name
	}
	bodyStmts := c.tree.Get(n.Body).Children
	exec := c.compileFunctionBody(n.Children, bodyStmts, n.Flags.Has(ast.FlagGenerator), n.Flags.Has(ast.FlagAsync), name)
	idx := c.constIndexFor(value.Int(int32(c.registerNested(exec))))
	c.emit(OpNewFunction, idx, 0)
}

func (c *Compiler) compileArrowValue(id ast.NodeID) {
	n := *c.tree.Get(id)
	var bodyStmts []ast.NodeID
	body := *c.tree.Get(n.Body)
	if body.Kind == ast.KindBlockStmt {
		bodyStmts = body.Children
	} else {
		// Concise body: treated as a single implicit-return expression
		// statement so compileFunctionBody's ordinary lowering applies.
		ret := c.tree.New(ast.Node{Kind: ast.KindReturnStmt, Argument: n.Body, Start: body.Start, End: body.End})
		bodyStmts = []ast.NodeID{ret}
	}
	exec := c.compileFunctionBody(n.Children, bodyStmts, false, n.Flags.Has(ast.FlagAsync), "")
	exec.IsArrow = true
	idx := c.constIndexFor(value.Int(int32(c.registerNested(exec))))
	c.emit(OpNewFunction, idx, 1) // B=1: arrow, VM binds `this`/`arguments` lexically
}

// registerNested appends a nested Executable to a side table addressed by
// the constant pool (Executables aren't value.Values, so they can't live in
// Constants directly); OpNewFunction's A operand is a constant whose int
// value indexes this table.
func (c *Compiler) registerNested(exec *Executable) int {
	c.exec.Nested = append(c.exec.Nested, exec)
	return len(c.exec.Nested) - 1
}
