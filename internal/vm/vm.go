// VM is the dispatch loop spec.md §4.6 "Bytecode Interpreter" describes: one
// stack-based interpreter walking an Executable's Instructions, re-entering
// itself through Call/Construct (call.go) for every nested invocation.
//
// Grounded on the teacher's shard-level request-dispatch loop (a switch over
// request kind, one case per operation, errors returned rather than
// panicked) generalized from "cache request" to "bytecode instruction";
// the try/catch unwind model is grounded on
// original_source/nova_vm/src/ecmascript/execution/execution_context.rs's
// exception-propagation-by-unwinding-a-handler-stack approach.
//
// © 2025 esvm authors. MIT License.
package vm

import (
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/value"
)

// maxCallDepth bounds Go call-stack recursion through Call/Construct; beyond
// it the VM raises a RangeError instead of letting a pathological script
// overflow the host goroutine's stack.
const maxCallDepth = 2000

// VM holds no per-run state of its own beyond the Realm it executes
// against and a Go call-depth counter; every other piece of running state
// lives on the current Frame.
type VM struct {
	Realm     *Realm
	callDepth int
}

// New constructs a VM bound to realm.
func New(realm *Realm) *VM { return &VM{Realm: realm} }

// tryHandler is one exception-unwind target pushed by OpPushTry and popped
// by OpPopTry or by a throw (spec.md §4.6): where to resume, how far to
// truncate the operand stack, and which environment was active when the try
// block was entered.
type tryHandler struct {
	target   int
	stackLen int
	env      *environment.Environment
}

// Frame is one call's execution state: its Executable, current environment,
// operand stack, and `this`/newTarget/homeObject/superConstructor context
// (spec.md §4.8's function environment record extras, mirrored here instead
// of duplicated into env since the VM needs them on every OpLoadThis/
// OpSuperCall without an environment-chain walk).
type Frame struct {
	exec *compiler.Executable
	env  *environment.Environment

	stack []value.Value
	ip    int

	args []value.Value

	this             value.Value
	newTarget        value.Value
	homeObject       value.Value
	superConstructor value.Value
	fn               value.Value // the running function itself, for recursive self-reference and stack traces

	tryStack []tryHandler

	// yields collects OpYield's operand for the eager generator-evaluation
	// simplification call.go's generator Call path implements (async.go
	// documents why this is not true coroutine suspension).
	yields *[]value.Value

	// completion is OpSetCompletion's target: the running script's
	// ScriptEvaluation result (spec.md §8's scenarios), updated by every
	// top-level ExpressionStatement and left untouched by every other
	// top-level statement kind, matching ECMA-262's empty-completion rule
	// for declarations.
	completion value.Value
}

func (f *Frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *Frame) pop() value.Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

func (f *Frame) peek() value.Value { return f.stack[len(f.stack)-1] }

func (f *Frame) popN(n int) []value.Value {
	start := len(f.stack) - n
	out := append([]value.Value(nil), f.stack[start:]...)
	f.stack = f.stack[:start]
	return out
}

// run executes f's instruction stream to completion, returning either its
// normal result (OpReturn/falling off the end) or a thrown value that no
// handler in f's own try-stack caught (ok=false), per spec.md §4.6.
func (vm *VM) run(f *Frame) (result value.Value, thrown value.Value, ok bool) {
	h := vm.Realm.Heap

	raise := func(t value.Value) bool {
		if len(f.tryStack) == 0 {
			return false
		}
		n := len(f.tryStack) - 1
		handler := f.tryStack[n]
		f.tryStack = f.tryStack[:n]
		if handler.stackLen <= len(f.stack) {
			f.stack = f.stack[:handler.stackLen]
		}
		f.env = handler.env
		f.push(t)
		f.ip = handler.target
		return true
	}

	for {
		if f.ip >= len(f.exec.Instructions) {
			return value.Undefined, value.Value{}, true
		}
		instr := f.exec.Instructions[f.ip]
		f.ip++

		switch instr.Op {
		case compiler.OpNop:

		case compiler.OpLoadConst:
			c := f.exec.Constants[instr.A]
			if instr.B == 1 {
				f.push(h.InternString(f.exec.IdentifierNames[c.AsInt32()]))
			} else {
				f.push(c)
			}
		case compiler.OpLoadUndefined:
			f.push(value.Undefined)
		case compiler.OpLoadNull:
			f.push(value.Null)
		case compiler.OpLoadTrue:
			f.push(value.True)
		case compiler.OpLoadFalse:
			f.push(value.False)
		case compiler.OpLoadThis:
			f.push(f.this)

		case compiler.OpGetLocal:
			idx := int(instr.A)
			if idx < len(f.args) {
				f.push(f.args[idx])
			} else {
				f.push(value.Undefined)
			}
		case compiler.OpSetLocal:
			idx := int(instr.A)
			if idx < len(f.args) {
				f.args[idx] = f.peek()
			}
		case compiler.OpGetRestArgs:
			from := int(instr.A)
			arr := h.NewArray(vm.Realm.ArrayProto)
			if from < len(f.args) {
				for i, a := range f.args[from:] {
					h.SetArrayIndex(arr, uint32(i), a)
				}
			}
			f.push(arr)

		case compiler.OpGetGlobal:
			name := f.exec.IdentifierNames[instr.A]
			v, terr, found := vm.getBinding(vm.Realm.GlobalEnv, name)
			if !found {
				if raise(terr) {
					continue
				}
				return value.Undefined, terr, false
			}
			f.push(v)
		case compiler.OpSetGlobal:
			name := f.exec.IdentifierNames[instr.A]
			vm.setBinding(vm.Realm.GlobalEnv, name, f.peek(), true)

		case compiler.OpGetEnv:
			name := f.exec.IdentifierNames[instr.A]
			v, terr, found := vm.getBinding(f.env, name)
			if !found {
				if raise(terr) {
					continue
				}
				return value.Undefined, terr, false
			}
			f.push(v)
		case compiler.OpSetEnv:
			name := f.exec.IdentifierNames[instr.A]
			vm.setBinding(f.env, name, f.peek(), true)
		case compiler.OpInitEnv:
			name := f.exec.IdentifierNames[instr.A]
			v := f.peek()
			if f.env.HasOwnBinding(name) {
				f.env.InitializeBinding(name, v)
			} else if instr.B == 1 {
				f.env.DeclareImmutable(name)
				f.env.InitializeBinding(name, v)
			} else {
				f.env.DeclareMutable(name, false)
				f.env.InitializeBinding(name, v)
			}

		case compiler.OpGetProperty:
			name := f.exec.IdentifierNames[instr.A]
			obj := f.pop()
			res, accessor, hasAccessor, terr, okGet := h.GetV(obj, name, vm.Realm.ErrorProto)
			if !okGet {
				if raise(terr) {
					continue
				}
				return value.Undefined, terr, false
			}
			if hasAccessor {
				r, t, okCall := vm.Call(accessor, obj, nil)
				if !okCall {
					if raise(t) {
						continue
					}
					return value.Undefined, t, false
				}
				f.push(r)
			} else {
				f.push(res)
			}
		case compiler.OpGetPropertyByKey:
			keyV := f.pop()
			obj := f.pop()
			key := vm.toPropertyKey(keyV)
			res, accessor, hasAccessor, terr, okGet := h.GetV(obj, h.PropertyKeyString(key), vm.Realm.ErrorProto)
			if !okGet {
				if raise(terr) {
					continue
				}
				return value.Undefined, terr, false
			}
			if hasAccessor {
				r, t, okCall := vm.Call(accessor, obj, nil)
				if !okCall {
					if raise(t) {
						continue
					}
					return value.Undefined, t, false
				}
				f.push(r)
			} else {
				f.push(res)
			}

		case compiler.OpGetSuperProperty:
			name := f.exec.IdentifierNames[instr.A]
			res, thr, handled := vm.getSuperProperty(f, h.PropertyKeyFor(name))
			if !handled {
				if raise(thr) {
					continue
				}
				return value.Undefined, thr, false
			}
			f.push(res)
		case compiler.OpGetSuperPropertyByKey:
			keyV := f.pop()
			res, thr, handled := vm.getSuperProperty(f, vm.toPropertyKey(keyV))
			if !handled {
				if raise(thr) {
					continue
				}
				return value.Undefined, thr, false
			}
			f.push(res)

		case compiler.OpSetProperty:
			name := f.exec.IdentifierNames[instr.A]
			val := f.pop()
			obj := f.pop()
			if obj.IsNullish() {
				t := vm.Realm.typeError("Cannot set properties of " + obj.TypeOf() + " (setting '" + name + "')")
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			key := h.PropertyKeyFor(name)
			okSet, setter, hasSetter := h.Set(obj, key, val)
			if hasSetter {
				_, t, okCall := vm.Call(setter, obj, []value.Value{val})
				if !okCall {
					if raise(t) {
						continue
					}
					return value.Undefined, t, false
				}
			} else if !okSet {
				t := vm.Realm.typeError("object is not extensible")
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(val)
		case compiler.OpSetPropertyByKey:
			val := f.pop()
			keyV := f.pop()
			obj := f.pop()
			key := vm.toPropertyKey(keyV)
			if obj.IsNullish() {
				t := vm.Realm.typeError("Cannot set properties of " + obj.TypeOf())
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			okSet, setter, hasSetter := h.Set(obj, key, val)
			if hasSetter {
				_, t, okCall := vm.Call(setter, obj, []value.Value{val})
				if !okCall {
					if raise(t) {
						continue
					}
					return value.Undefined, t, false
				}
			} else if !okSet {
				t := vm.Realm.typeError("object is not extensible")
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(val)
		case compiler.OpDeleteProperty:
			keyV := f.pop()
			obj := f.pop()
			key := vm.toPropertyKey(keyV)
			f.push(value.Bool(h.Delete(obj, key)))

		case compiler.OpNewObject:
			f.push(h.NewOrdinaryObject(vm.Realm.ObjectProto, true))
		case compiler.OpNewArray:
			f.push(h.NewArray(vm.Realm.ArrayProto))
		case compiler.OpNewFunction:
			c := f.exec.Constants[instr.A]
			nested := f.exec.Nested[c.AsInt32()]
			kind := value.KindECMAScriptFunction
			protoParent := vm.Realm.ObjectProto
			if nested.IsGenerator {
				kind = value.KindGeneratorFunction
				protoParent = vm.Realm.GeneratorProto
			}
			fn := h.NewECMAScriptFunction(vm.Realm.FunctionProto, nested, f.env, kind)
			if !nested.IsArrow {
				// spec.md §8 scenario 2: `F.prototype.m = ...` must have
				// somewhere to land before `new F()` ever runs.
				vm.attachPrototypeObject(fn, protoParent)
			}
			f.push(fn)
		case compiler.OpNewRegExp:
			c := f.exec.Constants[instr.A]
			src := h.StringValue(c)
			flags := f.exec.IdentifierNames[instr.B]
			f.push(h.NewRegExp(vm.Realm.ObjectProto, src, flags))

		case compiler.OpClassDefineConstructor:
			heritage := f.pop()
			c := f.exec.Constants[instr.A]
			nested := f.exec.Nested[c.AsInt32()]
			ctor := vm.defineClassConstructor(nested, f.env, heritage, instr.B == 1)
			f.push(ctor)
		case compiler.OpClassDefineDefaultConstructor:
			heritage := f.pop()
			ctor := vm.defineDefaultClassConstructor(f.env, heritage, instr.B == 1)
			f.push(ctor)

		case compiler.OpObjectDefineMethod:
			fn := f.pop()
			var key value.PropertyKey
			if instr.A == -1 {
				key = vm.toPropertyKey(f.pop())
			} else {
				key = h.PropertyKeyFor(f.exec.IdentifierNames[instr.A])
			}
			target := f.peek()
			vm.defineMethodOrAccessor(target, key, fn, int(instr.B))
		case compiler.OpObjectSetPrototype:
			newProto := f.pop()
			obj := f.pop()
			h.SetPrototypeOf(obj, newProto, !newProto.IsNull() || true)

		case compiler.OpSuperCall:
			args := f.popN(int(instr.A))
			res, t, okCall := vm.superCall(f, args)
			if !okCall {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(res)
		case compiler.OpSuperCallSpread:
			args := spreadArgs(h, f.popN(int(instr.A)))
			res, t, okCall := vm.superCall(f, args)
			if !okCall {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(res)

		case compiler.OpCall:
			args := f.popN(int(instr.A))
			thisV := f.pop()
			fn := f.pop()
			res, t, okCall := vm.Call(fn, thisV, args)
			if !okCall {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(res)
		case compiler.OpCallSpread:
			raw := f.popN(int(instr.A))
			args := spreadArgs(h, raw)
			thisV := f.pop()
			fn := f.pop()
			res, t, okCall := vm.Call(fn, thisV, args)
			if !okCall {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(res)
		case compiler.OpConstruct:
			args := f.popN(int(instr.A))
			ctor := f.pop()
			res, t, okCall := vm.Construct(ctor, args, ctor)
			if !okCall {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(res)

		case compiler.OpReturn:
			return f.pop(), value.Value{}, true
		case compiler.OpThrow:
			t := f.pop()
			if raise(t) {
				continue
			}
			return value.Undefined, t, false

		case compiler.OpJump:
			f.ip = int(instr.A)
		case compiler.OpJumpIfFalse:
			if !isTruthy(h, f.peek()) {
				f.ip = int(instr.A)
			}
		case compiler.OpJumpIfTrue:
			if isTruthy(h, f.peek()) {
				f.ip = int(instr.A)
			}
		case compiler.OpJumpIfNullish:
			if f.peek().IsNullish() {
				f.ip = int(instr.A)
			}

		case compiler.OpAdd:
			b, a := f.pop(), f.pop()
			f.push(numericAdd(h, a, b))
		case compiler.OpSub:
			b, a := f.pop(), f.pop()
			f.push(numericSub(h, a, b))
		case compiler.OpMul:
			b, a := f.pop(), f.pop()
			f.push(numericMul(h, a, b))
		case compiler.OpDiv:
			b, a := f.pop(), f.pop()
			f.push(numericDiv(h, a, b))
		case compiler.OpMod:
			b, a := f.pop(), f.pop()
			f.push(numericMod(h, a, b))
		case compiler.OpExp:
			b, a := f.pop(), f.pop()
			f.push(numericExp(h, a, b))
		case compiler.OpNeg:
			a := f.pop()
			f.push(boxNumeric(a, a, -toNumber(h, a)))
		case compiler.OpNot:
			f.push(value.Bool(!isTruthy(h, f.pop())))
		case compiler.OpBitNot:
			a := f.pop()
			f.push(value.Int(^toInt32(h, a)))
		case compiler.OpTypeof:
			f.push(typeofSmallString(f.pop().TypeOf()))
		case compiler.OpInstanceOf:
			b, a := f.pop(), f.pop()
			res, t, okInst := vm.instanceOf(a, b)
			if !okInst {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(value.Bool(res))
		case compiler.OpIn:
			b, a := f.pop(), f.pop()
			if !b.Kind().IsObjectLike() {
				t := vm.Realm.typeError("Cannot use 'in' operator on non-object")
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(value.Bool(h.HasProperty(b, vm.toPropertyKey(a))))

		case compiler.OpEq:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(looseEquals(h, a, b)))
		case compiler.OpStrictEq:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(strictEquals(h, a, b)))
		case compiler.OpLt:
			b, a := f.pop(), f.pop()
			less, undef := compareLess(h, a, b)
			f.push(value.Bool(!undef && less))
		case compiler.OpLte:
			b, a := f.pop(), f.pop()
			greater, undef := compareLess(h, b, a)
			f.push(value.Bool(!undef && !greater))
		case compiler.OpGt:
			b, a := f.pop(), f.pop()
			less, undef := compareLess(h, b, a)
			f.push(value.Bool(!undef && less))
		case compiler.OpGte:
			b, a := f.pop(), f.pop()
			less, undef := compareLess(h, a, b)
			f.push(value.Bool(!undef && !less))

		case compiler.OpDup:
			f.push(f.peek())
		case compiler.OpPop:
			f.pop()
		case compiler.OpSetCompletion:
			f.completion = f.pop()
		case compiler.OpSwap:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

		case compiler.OpPushEnv:
			f.env = environment.NewDeclarative(f.env)
		case compiler.OpPopEnv:
			f.env = f.env.Outer
		case compiler.OpPushTry:
			f.tryStack = append(f.tryStack, tryHandler{target: int(instr.A), stackLen: len(f.stack), env: f.env})
		case compiler.OpPopTry:
			if len(f.tryStack) > 0 {
				f.tryStack = f.tryStack[:len(f.tryStack)-1]
			}

		case compiler.OpIteratorOpen:
			src := f.pop()
			it, t, okIt := vm.iteratorOpen(src, instr.A == 1)
			if !okIt {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(it)
		case compiler.OpIteratorNext:
			if instr.B == 1 {
				it := f.pop()
				arr, t, okDrain := vm.iteratorDrainRest(it)
				if !okDrain {
					if raise(t) {
						continue
					}
					return value.Undefined, t, false
				}
				f.push(arr)
				continue
			}
			it := f.peek()
			val, done, t, okNext := vm.iteratorNext(it)
			if !okNext {
				if raise(t) {
					continue
				}
				return value.Undefined, t, false
			}
			f.push(val)
			f.push(value.Bool(done))
		case compiler.OpIteratorClose:
			f.pop()

		case compiler.OpAwait:
			// No suspension (async.go): the awaited value is already the
			// resolved result in esvm's synchronous-evaluation simplification.
			v := f.pop()
			res, thrown, ok := vm.awaitValue(v)
			if !ok {
				if raise(thrown) {
					continue
				}
				return value.Undefined, thrown, false
			}
			f.push(res)
		case compiler.OpYield:
			v := f.pop()
			if f.yields != nil {
				*f.yields = append(*f.yields, v)
			}
			f.push(value.Undefined)

		case compiler.OpHalt:
			return f.completion, value.Value{}, true

		default:
			t := vm.Realm.typeError("unimplemented opcode")
			if raise(t) {
				continue
			}
			return value.Undefined, t, false
		}

		h.Safepoint(f.stack)
	}
}

// getBinding walks env's Outer chain looking for name, returning a
// ReferenceError Value (and found=false) if it is never declared, or if it
// is declared but still in its TDZ.
func (vm *VM) getBinding(env *environment.Environment, name string) (value.Value, value.Value, bool) {
	for e := env; e != nil; e = e.Outer {
		if e.HasOwnBinding(name) {
			v, err := e.GetOwnBindingValue(name)
			if err != nil {
				return value.Value{}, temporalDeadZone(vm.Realm, name), false
			}
			return v, value.Value{}, true
		}
	}
	return value.Value{}, undeclaredVariable(vm.Realm, name), false
}

// setBinding walks env's Outer chain and assigns the first matching
// binding; createGlobalIfMissing implements non-strict-mode's implicit
// global creation (ECMA-262 Annex B / legacy sloppy-mode assignment).
func (vm *VM) setBinding(env *environment.Environment, name string, v value.Value, createGlobalIfMissing bool) {
	for e := env; e != nil; e = e.Outer {
		if e.HasOwnBinding(name) {
			if ok, immutable := e.SetOwnMutableBinding(name, v); ok || immutable {
				return
			}
		}
	}
	if createGlobalIfMissing {
		vm.Realm.GlobalEnv.DeclareMutable(name, false)
		vm.Realm.GlobalEnv.InitializeBinding(name, v)
	}
}

func (vm *VM) toPropertyKey(v value.Value) value.PropertyKey {
	h := vm.Realm.Heap
	if v.Kind() == value.KindSymbol {
		return value.SymbolKey(v.Handle())
	}
	return h.PropertyKeyFor(toStringValue(h, v))
}

func toInt32(h *heap.Heap, v value.Value) int32 {
	f := toNumber(h, v)
	if f != f || f == 0 { // NaN or zero
		return 0
	}
	const twoTo32 = 4294967296
	n := int64(f) % twoTo32
	if n < 0 {
		n += twoTo32
	}
	if n >= twoTo32/2 {
		n -= twoTo32
	}
	return int32(n)
}

func typeofSmallString(s string) value.Value {
	if v, ok := value.SmallString(s); ok {
		return v
	}
	return value.Value{}
}

// spreadArgs builds the positional argument list for OpCallSpread and
// OpSuperCallSpread: when the LAST popped value is an array its elements
// are expanded in its place; every other value, and a non-array last
// value, is passed through as one argument.
func spreadArgs(h *heap.Heap, raw []value.Value) []value.Value {
	if len(raw) == 0 {
		return raw
	}
	last := raw[len(raw)-1]
	if last.Kind() != value.KindArray {
		return raw
	}
	arr := h.ArrayData(last)
	out := append([]value.Value(nil), raw[:len(raw)-1]...)
	for i := uint32(0); i < arr.Length; i++ {
		out = append(out, h.GetArrayIndex(last, i))
	}
	return out
}
