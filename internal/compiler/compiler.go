// Package compiler lowers parsed ASTs (internal/ast) into the flat
// instruction stream internal/vm executes, per spec.md §4.5. Every named
// binding — parameters, var/let/const, function/class declarations, catch
// parameters — resolves through OpGetEnv/OpSetEnv/OpInitEnv against the
// internal/environment.Environment chain the VM maintains at runtime,
// rather than through a statically allocated local-slot table: there is no
// escape analysis deciding which bindings a nested closure might capture,
// so giving every binding the general (environment-record) path is the one
// correct answer. OpGetLocal/OpGetRestArgs are the one exception: reading a
// call's positional arguments to feed bindPattern during parameter binding.
//
// Grounded on original_source/.../scope_analysis.rs and
// .../class_definition_evaluation.rs for hoisting order and class
// evaluation sequencing; translated into the teacher's plain, mostly
// unexported, single-pass emitter style.
//
// © 2025 esvm authors. MIT License.
package compiler

import (
	"fmt"

	"github.com/Voskan/esvm/internal/ast"
	"github.com/Voskan/esvm/internal/value"
)

// Compiler lowers one function or top-level program body at a time; nested
// functions get their own Compiler (and their own Executable), closing over
// the running environment chain rather than this struct.
type Compiler struct {
	tree *ast.Tree
	exec *Executable

	constIndex map[value.Value]int32
	identIndex map[string]int32

	// frames is the enclosing break/continue target stack. A switch (or a
	// label wrapping something other than a loop) pushes a frame that only
	// accepts break: an unlabeled `continue` must skip past it to the
	// nearest enclosing loop, matching spec.md's "continue only targets
	// IterationStatements" rule.
	frames []loopFrame

	inGenerator bool
	inAsync     bool

	// trackCompletion is set only on the single top-level Compiler
	// CompileScript creates: a top-level ExpressionStatement updates the
	// script's completion value (OpSetCompletion) instead of discarding it
	// (OpPop), matching spec.md §8's scenarios that evaluate a script
	// directly to its last expression's value. Every nested function/method/
	// class-field Compiler (compileFunctionBody, and friends) is its own
	// fresh newCompiler with this false, since a function body's fall-
	// through value is never the enclosing script's completion.
	trackCompletion bool

	diagnostics []error
}

type loopFrame struct {
	isLoop    bool
	label     string
	breaks    []int
	continues []int
}

// CompileScript lowers a Script-goal Program node into a top-level
// Executable.
func CompileScript(tree *ast.Tree, program ast.NodeID, source string) (*Executable, []error) {
	c := newCompiler(tree, "script")
	c.exec.SourceText = source
	c.trackCompletion = true
	n := *tree.Get(program)
	c.compileTopLevel(n.Children)
	c.emit(OpHalt, 0, 0)
	return c.exec, c.diagnostics
}

// CompileModule lowers a Module-goal Program node the same way a script is
// lowered; import/export bookkeeping is the linker's job (internal/module),
// not the bytecode's — ImportDeclaration/ExportNamedDeclaration nodes
// compile their inner declarations (if any) and are otherwise no-ops here.
func CompileModule(tree *ast.Tree, program ast.NodeID, source string) (*Executable, []error) {
	ex, diags := CompileScript(tree, program, source)
	return ex, diags
}

func newCompiler(tree *ast.Tree, name string) *Compiler {
	return &Compiler{
		tree:       tree,
		exec:       &Executable{Name: name},
		constIndex: make(map[value.Value]int32),
		identIndex: make(map[string]int32),
	}
}

func (c *Compiler) errorf(format string, args ...any) {
	c.diagnostics = append(c.diagnostics, fmt.Errorf(format, args...))
}

func (c *Compiler) emit(op Op, a, b int32) int {
	c.exec.Instructions = append(c.exec.Instructions, Instruction{Op: op, A: a, B: b})
	return len(c.exec.Instructions) - 1
}

func (c *Compiler) here() int32 { return int32(len(c.exec.Instructions)) }

// patchJump rewrites the instruction at idx (expected to be a jump) so its
// A operand lands on the current instruction.
func (c *Compiler) patchJump(idx int) {
	c.exec.Instructions[idx].A = c.here() - int32(idx)
}

func (c *Compiler) constIndexFor(v value.Value) int32 {
	if idx, ok := c.constIndex[v]; ok {
		return idx
	}
	idx := int32(len(c.exec.Constants))
	c.exec.Constants = append(c.exec.Constants, v)
	c.constIndex[v] = idx
	return idx
}

func (c *Compiler) identIndexFor(name string) int32 {
	if idx, ok := c.identIndex[name]; ok {
		return idx
	}
	idx := int32(len(c.exec.IdentifierNames))
	c.exec.IdentifierNames = append(c.exec.IdentifierNames, name)
	c.identIndex[name] = idx
	return idx
}

// allocCacheSlot reserves one inline-cache slot for a static property-access
// site (spec.md §4.3: one Record chain per call site, not per dynamic call).
func (c *Compiler) allocCacheSlot() int32 {
	idx := int32(c.exec.CacheSlotCount)
	c.exec.CacheSlotCount++
	return idx
}

/* -------------------------------------------------------------------------
   Top level / function bodies
   ------------------------------------------------------------------------- */

func (c *Compiler) compileTopLevel(stmts []ast.NodeID) {
	c.hoistVarsAndFunctions(stmts)
	c.declareLexical(stmts)
	for _, s := range stmts {
		c.compileStatement(s)
	}
}

// hoistVarsAndFunctions pre-declares every var/function name reachable from
// stmts (without crossing into nested function bodies) as undefined-
// initialized env bindings, matching spec.md §7's hoisting semantics.
func (c *Compiler) hoistVarsAndFunctions(stmts []ast.NodeID) {
	for _, name := range varDeclaredNames(c.tree, stmts) {
		c.emit(OpLoadUndefined, 0, 0)
		c.emit(OpInitEnv, c.identIndexFor(name), 0)
	}
}

// declareLexical instantiates this block's function declarations and binds
// each one immediately via OpInitEnv. let/const/class names are not
// pre-declared here: each of those bindings comes into existence when its
// declaration statement runs.
func (c *Compiler) declareLexical(stmts []ast.NodeID) {
	for _, b := range lexicallyDeclaredNames(c.tree, stmts) {
		if b.isFunc {
			c.compileFunctionValue(b.fn)
			c.emit(OpInitEnv, c.identIndexFor(b.name), 0)
		}
	}
}

func (c *Compiler) compileFunctionBody(params []ast.NodeID, bodyStmts []ast.NodeID, isGenerator, isAsync bool, name string) *Executable {
	nested := newCompiler(c.tree, name)
	nested.inGenerator = isGenerator
	nested.inAsync = isAsync
	nested.exec.IsGenerator = isGenerator
	nested.exec.IsAsync = isAsync
	nested.exec.ParamCount = len(params)
	for i, p := range params {
		n := *c.tree.Get(p)
		if n.Kind == ast.KindRestElement {
			nested.emit(OpGetRestArgs, int32(i), 0)
			nested.bindPattern(n.Argument, true)
			continue
		}
		nested.emit(OpGetLocal, int32(i), 0)
		nested.bindPattern(p, true)
	}
	nested.compileTopLevel(bodyStmts)
	nested.emit(OpLoadUndefined, 0, 0)
	nested.emit(OpReturn, 0, 0)
	return nested.exec
}

/* -------------------------------------------------------------------------
   Statements
   ------------------------------------------------------------------------- */

func (c *Compiler) compileStatement(id ast.NodeID) {
	n := *c.tree.Get(id)
	switch n.Kind {
	case ast.KindExpressionStmt:
		c.compileExpr(n.Argument)
		if c.trackCompletion {
			c.emit(OpSetCompletion, 0, 0)
		} else {
			c.emit(OpPop, 0, 0)
		}
	case ast.KindEmptyStmt, ast.KindDebuggerStmt:
		// no-op
	case ast.KindBlockStmt:
		c.compileBlock(n.Children)
	case ast.KindVariableDeclaration:
		c.compileVariableDeclaration(n)
	case ast.KindFunctionDeclaration:
		// Already hoisted/initialized by declareLexical; nothing to emit here.
	case ast.KindClassDeclaration:
		c.compileClassDeclaration(id)
	case ast.KindIfStmt:
		c.compileIf(n)
	case ast.KindWhileStmt:
		c.compileWhile(n, "")
	case ast.KindDoWhileStmt:
		c.compileDoWhile(n, "")
	case ast.KindForStmt:
		c.compileFor(n, "")
	case ast.KindForInStmt:
		c.compileForInOf(n, false, "")
	case ast.KindForOfStmt:
		c.compileForInOf(n, true, "")
	case ast.KindReturnStmt:
		if ast.IsEmpty(n.Argument) {
			c.emit(OpLoadUndefined, 0, 0)
		} else {
			c.compileExpr(n.Argument)
		}
		c.emit(OpReturn, 0, 0)
	case ast.KindBreakStmt:
		c.compileBreak(n)
	case ast.KindContinueStmt:
		c.compileContinue(n)
	case ast.KindThrowStmt:
		c.compileExpr(n.Argument)
		c.emit(OpThrow, 0, 0)
	case ast.KindTryStmt:
		c.compileTry(n)
	case ast.KindSwitchStmt:
		c.compileSwitch(n)
	case ast.KindLabeledStmt:
		c.compileLabeled(n)
	case ast.KindImportDeclaration:
		// Bindings are installed by the module linker before evaluation
		// (internal/module); nothing to emit.
	case ast.KindExportNamedDeclaration, ast.KindExportDefaultDeclaration, ast.KindExportAllDeclaration:
		c.compileExportDeclaration(n)
	default:
		c.errorf("compiler: unhandled statement kind %d", n.Kind)
	}
}

func (c *Compiler) compileExportDeclaration(n ast.Node) {
	switch n.Kind {
	case ast.KindExportNamedDeclaration:
		if !ast.IsEmpty(n.Argument) {
			c.compileStatement(n.Argument)
		}
	case ast.KindExportDefaultDeclaration:
		decl := *c.tree.Get(n.Argument)
		if decl.Kind == ast.KindFunctionDeclaration || decl.Kind == ast.KindClassDeclaration {
			c.compileStatement(n.Argument)
			return
		}
		c.compileExpr(n.Argument)
		c.emit(OpInitEnv, c.identIndexFor("*default*"), 0)
	}
}

func (c *Compiler) compileBlock(stmts []ast.NodeID) {
	c.emit(OpPushEnv, 0, 0)
	c.hoistVarsAndFunctionsBlockLocal(stmts)
	c.declareLexical(stmts)
	for _, s := range stmts {
		c.compileStatement(s)
	}
	c.emit(OpPopEnv, 0, 0)
}

// hoistVarsAndFunctionsBlockLocal re-initializes (rather than re-declares)
// var bindings a nested block introduces: var hoisting already declared
// them in the function/global scope, a block only needs its own
// let/const/class/function bindings (handled by declareLexical).
func (c *Compiler) hoistVarsAndFunctionsBlockLocal(stmts []ast.NodeID) {}

func (c *Compiler) compileVariableDeclaration(n ast.Node) {
	for _, d := range n.Children {
		decl := *c.tree.Get(d)
		if ast.IsEmpty(decl.Init) {
			if n.Flags == 0 { // var already undefined-initialized during hoisting
				continue
			}
			c.emit(OpLoadUndefined, 0, 0)
		} else {
			c.compileExpr(decl.Init)
		}
		if n.Flags == 0 {
			c.bindPattern(decl.Id, false) // var: plain assignment, already declared
		} else {
			c.bindPattern(decl.Id, true) // let/const: TDZ-clearing init
		}
	}
}

// bindPattern destructures the value on top of the stack into target,
// which may be a plain identifier or an Array/ObjectPattern. init selects
// OpInitEnv (first write, clears TDZ) vs OpSetEnv (plain assignment, used
// for `var`, which was already initialized to undefined during hoisting).
func (c *Compiler) bindPattern(target ast.NodeID, init bool) {
	n := *c.tree.Get(target)
	switch n.Kind {
	case ast.KindIdentifier:
		op := OpSetEnv
		if init {
			op = OpInitEnv
		}
		c.emit(op, c.identIndexFor(n.Name), 0)
		c.emit(OpPop, 0, 0) // discard the store's result; bindPattern is never used as an expression
	case ast.KindAssignmentPattern:
		c.emit(OpDup, 0, 0)
		c.emit(OpLoadUndefined, 0, 0)
		c.emit(OpStrictEq, 0, 0)
		jmp := c.emit(OpJumpIfFalse, 0, 0)
		c.emit(OpPop, 0, 0)
		c.compileExpr(n.Right)
		c.patchJump(jmp)
		c.bindPattern(n.Left, init)
	case ast.KindArrayPattern:
		// OpIteratorNext leaves the iterator (`it`) on the stack below its
		// [val, done] pair (internal/vm's iteratorNext peeks `it` rather
		// than popping it, so the same cursor serves every element); each
		// branch below must therefore balance the stack back down to just
		// `it` before the next iteration, same invariant compileForInOf
		// relies on. A trailing rest element consumes `it` itself (B=1
		// drain mode pops it and pushes the drained array), so it must be
		// the pattern's last child — already guaranteed by grammar.
		c.emit(OpIteratorOpen, 0, 0)
		endedInRest := false
		for _, el := range n.Children {
			if el == ast.Empty {
				c.emit(OpIteratorNext, 0, 0) // [it, val, done]
				c.emit(OpPop, 0, 0)          // discard done -> [it, val]
				c.emit(OpPop, 0, 0)          // discard val  -> [it]
				continue
			}
			elNode := *c.tree.Get(el)
			if elNode.Kind == ast.KindRestElement {
				c.emit(OpIteratorNext, 1, 0) // B=1: drain rest, consumes it -> [arr]
				c.bindPattern(elNode.Argument, init)
				endedInRest = true
				continue
			}
			c.emit(OpIteratorNext, 0, 0) // [it, val, done]
			c.emit(OpPop, 0, 0)          // discard done -> [it, val]
			c.bindPattern(el, init)      // consumes val -> [it]
		}
		if !endedInRest {
			c.emit(OpIteratorClose, 0, 0)
		}
	case ast.KindObjectPattern:
		for _, p := range n.Children {
			prop := *c.tree.Get(p)
			if prop.Kind == ast.KindRestElement {
				c.emit(OpDup, 0, 0)
				c.bindPattern(prop.Argument, init)
				continue
			}
			c.emit(OpDup, 0, 0)
			c.compileMemberRead(prop.Property, prop.Flags.Has(ast.FlagComputed))
			c.bindPattern(prop.Right, init)
		}
		c.emit(OpPop, 0, 0)
	case ast.KindMemberExpr:
		// Destructuring assignment into an existing member, not a binding:
		// left as-is for compileAssignTarget to handle via Set.
		c.compileAssignTarget(target)
	default:
		c.errorf("compiler: unsupported binding target kind %d", n.Kind)
	}
}

func (c *Compiler) compileMemberRead(key ast.NodeID, computed bool) {
	if computed {
		c.compileExpr(key)
		c.emit(OpGetPropertyByKey, 0, 0)
		return
	}
	name := c.tree.Get(key).Name
	c.emit(OpGetProperty, c.identIndexFor(name), c.allocCacheSlot())
}

func (c *Compiler) compileIf(n ast.Node) {
	c.compileExpr(n.Test)
	jmpElse := c.emit(OpJumpIfFalse, 0, 0)
	c.emit(OpPop, 0, 0)
	c.compileStatement(n.Consequent)
	if ast.IsEmpty(n.Alternate) {
		c.patchJump(jmpElse)
		c.emit(OpPop, 0, 0)
		return
	}
	jmpEnd := c.emit(OpJump, 0, 0)
	c.patchJump(jmpElse)
	c.emit(OpPop, 0, 0)
	c.compileStatement(n.Alternate)
	c.patchJump(jmpEnd)
}

func (c *Compiler) pushLoopTargets(label string) { c.pushFrame(label, true) }

func (c *Compiler) pushFrame(label string, isLoop bool) {
	c.frames = append(c.frames, loopFrame{isLoop: isLoop, label: label})
}

func (c *Compiler) popLoopTargets(label string, continueAt int32) {
	top := len(c.frames) - 1
	f := c.frames[top]
	for _, idx := range f.continues {
		c.exec.Instructions[idx].A = continueAt - int32(idx)
	}
	c.frames = c.frames[:top]
	for _, idx := range f.breaks {
		c.patchJump(idx)
	}
}

func (c *Compiler) compileWhile(n ast.Node, label string) {
	c.pushLoopTargets(label)
	start := c.here()
	c.compileExpr(n.Test)
	exitJmp := c.emit(OpJumpIfFalse, 0, 0)
	c.emit(OpPop, 0, 0)
	c.compileStatement(n.Body)
	c.emit(OpJump, start-c.here(), 0)
	c.patchJump(exitJmp)
	c.emit(OpPop, 0, 0)
	c.popLoopTargets(label, start)
}

func (c *Compiler) compileDoWhile(n ast.Node, label string) {
	c.pushLoopTargets(label)
	start := c.here()
	c.compileStatement(n.Body)
	testAt := c.here()
	c.compileExpr(n.Test)
	c.emit(OpJumpIfTrue, start-c.here(), 0)
	c.emit(OpPop, 0, 0)
	c.popLoopTargets(label, testAt)
}

func (c *Compiler) compileFor(n ast.Node, label string) {
	c.emit(OpPushEnv, 0, 0)
	if !ast.IsEmpty(n.Init) {
		initNode := *c.tree.Get(n.Init)
		if initNode.Kind == ast.KindVariableDeclaration {
			c.declareLexical([]ast.NodeID{n.Init})
			c.compileVariableDeclaration(initNode)
		} else {
			c.compileExpr(n.Init)
			c.emit(OpPop, 0, 0)
		}
	}
	c.pushLoopTargets(label)
	start := c.here()
	var exitJmp int = -1
	if !ast.IsEmpty(n.Test) {
		c.compileExpr(n.Test)
		exitJmp = c.emit(OpJumpIfFalse, 0, 0)
		c.emit(OpPop, 0, 0)
	}
	c.compileStatement(n.Body)
	continueAt := c.here()
	if !ast.IsEmpty(n.Update) {
		c.compileExpr(n.Update)
		c.emit(OpPop, 0, 0)
	}
	c.emit(OpJump, start-c.here(), 0)
	if exitJmp >= 0 {
		c.patchJump(exitJmp)
		c.emit(OpPop, 0, 0)
	}
	c.popLoopTargets(label, continueAt)
	c.emit(OpPopEnv, 0, 0)
}

// compileForInOf keeps exactly `it` on the operand stack across loop
// iterations (the same invariant bindPattern's ArrayPattern case relies
// on): OpIteratorNext peeks it and pushes [val, done] on top without
// consuming it, so every path out of one iteration must pop exactly those
// two back off before looping (continue) or leave them for the shared
// exit cleanup below (break leaks a single `it`, same as a break out of
// any other construct that hasn't unwound its own scratch values — the
// try-stack's stackLen truncation is what actually bounds this, not the
// loop compiler).
func (c *Compiler) compileForInOf(n ast.Node, isOf bool, label string) {
	c.compileExpr(n.Right)
	c.emit(OpIteratorOpen, boolInt32(isOf), 0)
	c.pushLoopTargets(label)
	start := c.here()
	c.emit(OpIteratorNext, 0, 0)          // [it, val, done]
	exitJmp := c.emit(OpJumpIfTrue, 0, 0) // peek done; stack unchanged either way
	c.emit(OpPop, 0, 0)                   // discard done -> [it, val]
	c.emit(OpPushEnv, 0, 0)
	left := n.Left
	leftNode := *c.tree.Get(left)
	if leftNode.Kind == ast.KindVariableDeclaration {
		c.declareLexical([]ast.NodeID{left})
		decl := *c.tree.Get(leftNode.Children[0])
		c.bindPattern(decl.Id, leftNode.Flags != 0)
	} else {
		c.bindPattern(left, false) // consumes val -> [it]
	}
	c.compileStatement(n.Body)
	c.emit(OpPopEnv, 0, 0)
	c.emit(OpJump, start-c.here(), 0)
	c.patchJump(exitJmp)
	c.emit(OpPop, 0, 0) // discard done
	c.emit(OpPop, 0, 0) // discard val
	c.emit(OpIteratorClose, 0, 0)
	c.popLoopTargets(label, start)
}

func boolInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (c *Compiler) compileBreak(n ast.Node) {
	if ast.IsEmpty(n.Label) {
		if len(c.frames) == 0 {
			c.errorf("compiler: break outside loop/switch")
			return
		}
		top := len(c.frames) - 1
		idx := c.emit(OpJump, 0, 0)
		c.frames[top].breaks = append(c.frames[top].breaks, idx)
		return
	}
	name := c.tree.Get(n.Label).Name
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].label == name {
			idx := c.emit(OpJump, 0, 0)
			c.frames[i].breaks = append(c.frames[i].breaks, idx)
			return
		}
	}
	c.errorf("compiler: undefined break label %q", name)
}

func (c *Compiler) compileContinue(n ast.Node) {
	if ast.IsEmpty(n.Label) {
		for i := len(c.frames) - 1; i >= 0; i-- {
			if c.frames[i].isLoop {
				idx := c.emit(OpJump, 0, 0)
				c.frames[i].continues = append(c.frames[i].continues, idx)
				return
			}
		}
		c.errorf("compiler: continue outside loop")
		return
	}
	name := c.tree.Get(n.Label).Name
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].label == name && c.frames[i].isLoop {
			idx := c.emit(OpJump, 0, 0)
			c.frames[i].continues = append(c.frames[i].continues, idx)
			return
		}
	}
	c.errorf("compiler: undefined continue label %q", name)
}

func (c *Compiler) compileLabeled(n ast.Node) {
	label := c.tree.Get(n.Label).Name
	body := *c.tree.Get(n.Body)
	switch body.Kind {
	case ast.KindWhileStmt:
		c.compileWhile(body, label)
	case ast.KindDoWhileStmt:
		c.compileDoWhile(body, label)
	case ast.KindForStmt:
		c.compileFor(body, label)
	case ast.KindForInStmt:
		c.compileForInOf(body, false, label)
	case ast.KindForOfStmt:
		c.compileForInOf(body, true, label)
	default:
		c.pushFrame(label, false)
		c.compileStatement(n.Body)
		c.popLoopTargets(label, c.here())
	}
}

func (c *Compiler) compileTry(n ast.Node) {
	pushTry := c.emit(OpPushTry, 0, 0)
	c.compileStatement(n.Body)
	c.emit(OpPopTry, 0, 0)
	skipHandler := c.emit(OpJump, 0, 0)
	c.patchJump(pushTry)
	if !ast.IsEmpty(n.Handler) {
		handler := *c.tree.Get(n.Handler)
		c.emit(OpPushEnv, 0, 0)
		if !ast.IsEmpty(handler.Param) {
			c.bindPattern(handler.Param, true)
		} else {
			c.emit(OpPop, 0, 0)
		}
		c.compileStatement(handler.Body)
		c.emit(OpPopEnv, 0, 0)
	} else if !ast.IsEmpty(n.Finalizer) {
		// No catch clause: the thrown value is already on the stack where
		// the VM's unwind dispatch left it. Run the finalizer (a statement
		// sequence, net-zero stack effect) while it's still there, then
		// rethrow the same value, rather than skipping straight past the
		// finalizer the way an unconditional OpThrow here would.
		c.compileStatement(n.Finalizer)
		c.emit(OpThrow, 0, 0)
		c.patchJump(skipHandler)
		return
	} else {
		c.emit(OpThrow, 0, 0)
	}
	c.patchJump(skipHandler)
	if !ast.IsEmpty(n.Finalizer) {
		c.compileStatement(n.Finalizer)
	}
}

func (c *Compiler) compileSwitch(n ast.Node) {
	c.compileExpr(n.Discriminant)
	c.emit(OpPushEnv, 0, 0)
	c.pushFrame("", false)
	var caseJumps []int
	defaultIdx := -1
	for i, cs := range n.Children {
		csNode := *c.tree.Get(cs)
		if ast.IsEmpty(csNode.Test) {
			defaultIdx = i
			caseJumps = append(caseJumps, -1)
			continue
		}
		c.emit(OpDup, 0, 0)
		c.compileExpr(csNode.Test)
		c.emit(OpStrictEq, 0, 0)
		caseJumps = append(caseJumps, c.emit(OpJumpIfTrue, 0, 0))
	}
	endOfTests := c.emit(OpJump, 0, 0)
	var bodyStarts []int32
	for i, cs := range n.Children {
		if caseJumps[i] >= 0 {
			c.patchJump(caseJumps[i])
			c.emit(OpPop, 0, 0)
		}
		bodyStarts = append(bodyStarts, c.here())
		for _, s := range c.tree.Get(cs).Children {
			c.compileStatement(s)
		}
	}
	c.patchJump(endOfTests)
	if defaultIdx >= 0 {
		c.emit(OpPop, 0, 0)
		c.emit(OpJump, bodyStarts[defaultIdx]-c.here(), 0)
	} else {
		c.emit(OpPop, 0, 0)
	}
	c.popLoopTargets("", c.here())
	c.emit(OpPopEnv, 0, 0)
}
