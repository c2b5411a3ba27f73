// Package compiler lowers parsed ASTs (internal/ast) into the flat
// instruction stream internal/vm executes, per spec.md §4.5 "Bytecode
// Compiler". This file defines the Executable product of that pass and the
// instruction set both the compiler and the VM agree on; compiler.go,
// scope.go and class.go implement the lowering itself.
//
// Every named binding resolves through OpGetEnv/OpSetEnv/OpInitEnv against
// the environment chain; OpGetLocal/OpSetLocal/LocalCount are the one
// exception, used only to read a call's positional arguments during
// parameter binding (there is no escape analysis deciding which bindings a
// closure might capture, so locals never get their own slot beyond that).
//
// © 2025 esvm authors. MIT License.
package compiler

import "github.com/Voskan/esvm/internal/value"

// Op is one VM instruction's opcode.
type Op uint8

const (
	OpNop Op = iota
	OpLoadConst
	OpLoadUndefined
	OpLoadNull
	OpLoadTrue
	OpLoadFalse
	OpLoadThis

	OpGetLocal
	OpSetLocal
	// OpGetRestArgs pushes an array built from every positional argument at
	// index A and beyond (a function's `...rest` parameter); unlike
	// OpGetLocal it does not read a single argument.
	OpGetRestArgs
	OpGetGlobal
	OpSetGlobal
	OpGetEnv // resolve identifier through the running environment chain
	OpSetEnv
	OpInitEnv // bind without the "already declared" TDZ check (var/function hoisting)

	OpGetProperty // uses a propcache slot, spec.md §4.3
	// OpGetSuperProperty/OpGetSuperPropertyByKey resolve a `super.x`
	// reference: lookup starts at the running function's HomeObject's own
	// [[Prototype]] rather than `this`, but the receiver passed to an
	// accessor getter is still `this` (ECMA-262's "home object" indirection,
	// spec.md §8 scenario 6). No object operand on the stack; A/B mirror
	// OpGetProperty's identifier-index/cache-slot pair, and the computed
	// variant takes its key from the stack exactly like OpGetPropertyByKey.
	OpGetSuperProperty
	OpGetSuperPropertyByKey
	// OpSetProperty/OpSetPropertyByKey/OpSetEnv/OpInitEnv all share one
	// "store" convention: operands are pushed object-first ([key]-second,
	// value-last), the op consumes the reference operands (object, and key
	// if computed) but leaves the stored value itself on the stack. Env-only
	// stores (OpSetEnv/OpInitEnv) have no reference operand to consume, so
	// they leave the stack untouched. This lets assignment *expressions*
	// read their own result with no extra Dup/Swap dance; callers that
	// don't need the result (declarations, destructuring) emit one trailing
	// OpPop.
	OpSetProperty
	OpGetPropertyByKey // computed member access, no cache
	OpSetPropertyByKey
	OpDeleteProperty

	OpNewObject
	OpNewArray
	OpNewFunction  // A: constant holding the Nested index; closes over current env
	OpNewRegExp

	// Class-definition-evaluation, spec.md §4.5 / §8 scenario 6. Both pop
	// the evaluated heritage expression (Undefined for a plain `class C`,
	// Null for `extends null`, the superclass value otherwise) and push the
	// finished constructor function, with its .prototype / [[Prototype]]
	// chain already wired by the VM. A operand is a constant-pool index
	// holding value.Int(nestedExecIndex) (OpNewFunction's convention); B is
	// 1 when the class has an `extends` clause, 0 otherwise.
	OpClassDefineConstructor
	OpClassDefineDefaultConstructor // no explicit constructor; A unused

	// OpObjectDefineMethod installs a method/getter/setter on the object
	// beneath it on the stack without leaving a residual value (unlike
	// OpSetProperty, it is never used as an expression). Stack order is
	// [target, key?, fn]; A is an identifier-pool index, or -1 if the key
	// is computed and pushed on the stack ahead of fn. B selects
	// 0 = method, 1 = getter, 2 = setter.
	OpObjectDefineMethod
	// OpObjectSetPrototype pops [object, newProto] and sets object's
	// [[Prototype]] (newProto may be Null), pushing nothing.
	OpObjectSetPrototype

	// OpSuperCall/OpSuperCallSpread run inside a derived constructor:
	// they invoke the running function's SuperConstructor (spec.md §8
	// scenario 6) with the given arguments, bind the result as `this` for
	// the remainder of the constructor, and push that value. A is the
	// argument count for OpSuperCall; OpSuperCallSpread treats its last
	// argument as a spread per OpCallSpread's convention.
	OpSuperCall
	OpSuperCallSpread

	OpCall
	OpConstruct
	OpCallSpread
	OpReturn
	OpThrow

	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpJumpIfNullish

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpNeg
	OpNot
	OpBitNot
	OpTypeof
	OpInstanceOf
	OpIn

	OpEq
	OpStrictEq
	OpLt
	OpLte
	OpGt
	OpGte

	OpDup
	OpPop
	OpSwap

	OpPushEnv   // enter a new declarative environment (block scope)
	OpPopEnv
	OpPushTry   // exception-unwind target, spec.md §4.6
	OpPopTry

	OpIteratorOpen
	OpIteratorNext
	OpIteratorClose

	OpAwait // spec.md §9 open question: parses/compiles, see internal/vm/async.go
	OpYield

	// OpSetCompletion records a top-level ExpressionStatement's value as the
	// running script's completion value (ECMA-262's ScriptEvaluation result),
	// without leaving it on the operand stack the way OpPop's discard would.
	// Only CompileScript's outermost Compiler ever emits it; a nested
	// function body's Compiler always falls back to OpPop (compiler.go).
	OpSetCompletion

	OpHalt
)

// Instruction is one decoded bytecode unit: an opcode plus up to two operand
// words. Which operands are meaningful depends on Op; e.g. OpJump uses A as a
// signed-as-unsigned relative offset, OpGetProperty uses A as an
// IdentifierNames index and B as an inline property-cache slot index.
type Instruction struct {
	Op Op
	A  int32
	B  int32
}

// Executable is one function body or top-level script/module's compiled
// output: its instruction stream, constant pool, and the property-cache slot
// count the heap must allocate cache chains for (spec.md §4.3: one
// Record chain per distinct (instruction site, property key) the compiler
// statically identifies, not per dynamic call).
type Executable struct {
	Name         string
	ParamCount   int
	LocalCount   int
	Instructions []Instruction
	Constants    []value.Value

	// IdentifierNames holds interned property-key / binding-name strings
	// referenced by OpGetProperty and friends via index into this slice,
	// kept separate from Constants because property keys are PropertyKeys,
	// not Values (spec.md §3 distinguishes the two).
	IdentifierNames []string

	// CacheSlotCount is how many propcache.Table entries this Executable's
	// OpGetProperty/OpSetProperty sites need; the VM allocates them lazily,
	// keyed by (Executable, slot index) the first time each site executes.
	CacheSlotCount int

	IsGenerator bool
	IsAsync     bool
	IsArrow     bool
	IsDerivedConstructor bool
	IsClassConstructor   bool

	SourceText string // for Function.prototype.toString and stack traces

	// Nested holds the compiled bodies of every function/arrow/method/class
	// constructor this Executable's OpNewFunction/OpClassDefineConstructor
	// instructions reference; their A operand is a constant-pool index whose
	// value.Int is the index into Nested. Kept separate from Constants since
	// an *Executable isn't a value.Value.
	Nested []*Executable
}
