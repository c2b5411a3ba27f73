// Call/Construct dispatch over every object.FunctionKind, spec.md §4.6's
// "calling convention" and §8 scenario 6's super-call/super-property
// plumbing. Grounded on
// original_source/nova_vm/src/ecmascript/execution/agent.rs's Call/Construct
// dispatch, collapsed from Rust's per-variant enum match into the same
// switch-over-Kind idiom internal/heap/create.go's ordinaryOf uses.
//
// © 2025 esvm authors. MIT License.
package vm

import (
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// Call implements the [[Call]] internal method for every callable Kind.
func (vm *VM) Call(fn, this value.Value, args []value.Value) (value.Value, value.Value, bool) {
	if !fn.Kind().IsCallable() {
		return value.Undefined, notCallable(vm.Realm, fn), false
	}
	vm.callDepth++
	defer func() { vm.callDepth-- }()
	if vm.callDepth > maxCallDepth {
		return value.Undefined, vm.Realm.rangeError("Maximum call stack size exceeded"), false
	}

	h := vm.Realm.Heap
	switch fn.Kind() {
	case value.KindBoundFunction:
		fd := h.FunctionData(fn)
		combined := append(append([]value.Value(nil), fd.BoundArgs...), args...)
		return vm.Call(fd.BoundTarget, fd.BoundThis, combined)
	case value.KindBuiltinFunction, value.KindPromiseResolvingFunction, value.KindProxyRevoker:
		fd := h.FunctionData(fn)
		return fd.Native(this, args)
	case value.KindProxy:
		pd := h.ProxyData(fn)
		if pd.Revoked {
			return value.Undefined, vm.Realm.typeError("Cannot call a revoked Proxy"), false
		}
		return vm.Call(pd.Target, this, args)
	case value.KindConstructor:
		return value.Undefined, vm.Realm.typeError("Class constructor "+h.FunctionData(fn).Name+" cannot be invoked without 'new'"), false
	case value.KindGeneratorFunction:
		return vm.callGenerator(fn, this, args)
	case value.KindECMAScriptFunction:
		return vm.callECMAScript(fn, this, args, value.Undefined)
	default:
		return value.Undefined, notCallable(vm.Realm, fn), false
	}
}

func (vm *VM) callECMAScript(fn, this value.Value, args []value.Value, newTarget value.Value) (value.Value, value.Value, bool) {
	h := vm.Realm.Heap
	fd := h.FunctionData(fn)
	exec := fd.Executable

	frame := &Frame{exec: exec, args: args, fn: fn, newTarget: newTarget}
	if exec.IsArrow {
		frame.env = environment.NewDeclarative(fd.Closure)
		if tv, ok := fd.Closure.ThisBinding(); ok {
			frame.this = tv
		} else {
			frame.this = value.Undefined
		}
		if outer, ok := arrowHomeContext(fd.Closure); ok {
			frame.homeObject = outer.homeObject
			frame.superConstructor = outer.superConstructor
		}
	} else {
		frame.env = environment.NewFunction(fd.Closure, this, fn, newTarget)
		frame.this = this
		frame.homeObject = fd.HomeObject
		frame.superConstructor = fd.SuperConstructor
	}

	res, thrown, ok := vm.run(frame)
	if !ok {
		return value.Undefined, thrown, false
	}
	if exec.IsAsync {
		p := h.NewPromise(vm.Realm.PromiseProto)
		pd := h.PromiseData(p)
		pd.State = object.PromiseFulfilled
		pd.Result = res
		return p, value.Value{}, true
	}
	return res, value.Value{}, true
}

// arrowHomeContext is a documented no-op placeholder: an arrow function
// nested inside a method could in principle inherit that method's
// HomeObject/SuperConstructor for `super` references of its own, but esvm
// does not track that lexical link (DESIGN.md Open Question) since arrows
// using `super` are rare and Frame carries no environment-side record of
// it. Always reports "no home context" so arrow-bodied `super` usage fails
// the same explicit ReferenceError a base-class `super()` call does.
func arrowHomeContext(*environment.Environment) (struct{ homeObject, superConstructor value.Value }, bool) {
	return struct{ homeObject, superConstructor value.Value }{}, false
}

// callGenerator runs a generator function's entire body eagerly, collecting
// every OpYield operand into the returned generator object's own indexed
// properties (DESIGN.md's documented simplification: no coroutine
// suspension, so `for (x of gen())` works but a generator cannot observe a
// value sent back via .next(v)).
func (vm *VM) callGenerator(fn, this value.Value, args []value.Value) (value.Value, value.Value, bool) {
	h := vm.Realm.Heap
	fd := h.FunctionData(fn)
	genObj := h.NewGeneratorObject(vm.Realm.GeneratorProto, fd.Executable, fd.Closure)

	frame := &Frame{
		exec: fd.Executable, args: args, fn: fn, this: this,
		env: environment.NewFunction(fd.Closure, this, fn, value.Undefined),
	}
	var yields []value.Value
	frame.yields = &yields

	_, thrown, ok := vm.run(frame)
	if !ok {
		return value.Undefined, thrown, false
	}
	for i, v := range yields {
		h.DefineOwnProperty(genObj, value.IntegerKey(uint32(i)), nonEnumDataProp(v))
	}
	h.DefineOwnProperty(genObj, h.PropertyKeyFor("length"), nonEnumDataProp(value.Int(int32(len(yields)))))
	return genObj, value.Value{}, true
}

// Construct implements the [[Construct]] internal method.
func (vm *VM) Construct(ctor value.Value, args []value.Value, newTarget value.Value) (value.Value, value.Value, bool) {
	vm.callDepth++
	defer func() { vm.callDepth-- }()
	if vm.callDepth > maxCallDepth {
		return value.Undefined, vm.Realm.rangeError("Maximum call stack size exceeded"), false
	}

	h := vm.Realm.Heap
	switch ctor.Kind() {
	case value.KindBoundFunction:
		fd := h.FunctionData(ctor)
		combined := append(append([]value.Value(nil), fd.BoundArgs...), args...)
		return vm.Construct(fd.BoundTarget, combined, newTarget)
	case value.KindBuiltinFunction:
		fd := h.FunctionData(ctor)
		if fd.Native == nil {
			return value.Undefined, notConstructable(vm.Realm), false
		}
		return fd.Native(value.Undefined, args)
	case value.KindConstructor:
		return vm.constructECMAScript(ctor, args, newTarget)
	case value.KindProxy:
		pd := h.ProxyData(ctor)
		if pd.Revoked {
			return value.Undefined, vm.Realm.typeError("Cannot construct a revoked Proxy"), false
		}
		return vm.Construct(pd.Target, args, newTarget)
	default:
		return value.Undefined, notConstructable(vm.Realm), false
	}
}

func (vm *VM) constructECMAScript(ctor value.Value, args []value.Value, newTarget value.Value) (value.Value, value.Value, bool) {
	h := vm.Realm.Heap
	fd := h.FunctionData(ctor)

	var this value.Value
	if fd.ConstructorKind == 1 {
		this = value.Value{} // derived: `this` stays unbound until super() runs
	} else {
		protoV, _, _ := h.Get(ctor, h.PropertyKeyFor("prototype"))
		if !protoV.Kind().IsObjectLike() {
			protoV = vm.Realm.ObjectProto
		}
		this = h.NewOrdinaryObject(protoV, true)
	}

	if fd.Executable == nil {
		// Intrinsic default constructor (no Executable):
		// base is a no-op, derived forwards straight to its superclass.
		if fd.ConstructorKind == 1 {
			return vm.Construct(fd.SuperConstructor, args, newTarget)
		}
		return this, value.Value{}, true
	}

	frame := &Frame{
		exec: fd.Executable, args: args, fn: ctor, this: this, newTarget: newTarget,
		env:              environment.NewFunction(fd.Closure, this, ctor, newTarget),
		homeObject:       fd.HomeObject,
		superConstructor: fd.SuperConstructor,
	}
	res, thrown, ok := vm.run(frame)
	if !ok {
		return value.Undefined, thrown, false
	}
	if res.Kind().IsObjectLike() {
		return res, value.Value{}, true
	}
	return frame.this, value.Value{}, true
}

/* -------------------------------------------------------------------------
   super() / super.x
   ------------------------------------------------------------------------- */

// superCall runs inside a derived constructor frame: it either invokes the
// real superclass constructor, or — for the `extends null` simplification
// spec.md §8 scenario 6 requires — synthesizes a fresh null-prototype
// object directly, since there is no ordinary constructor to call.
func (vm *VM) superCall(f *Frame, args []value.Value) (value.Value, value.Value, bool) {
	switch {
	case f.superConstructor.IsUndefined():
		return value.Undefined, vm.Realm.referenceError("'super' keyword is unexpected here"), false
	case f.superConstructor.IsNull():
		obj := vm.Realm.Heap.NewOrdinaryObject(value.Null, true)
		f.this = obj
		return obj, value.Value{}, true
	default:
		res, t, ok := vm.Construct(f.superConstructor, args, f.newTarget)
		if !ok {
			return value.Undefined, t, false
		}
		f.this = res
		return res, value.Value{}, true
	}
}

// getSuperProperty resolves `super.x`/`super[x]`: the search starts at the
// running method's HomeObject's own [[Prototype]], but an accessor getter
// still receives the current `this`, not the home object (ECMA-262's
// "home object" indirection).
func (vm *VM) getSuperProperty(f *Frame, key value.PropertyKey) (value.Value, value.Value, bool) {
	h := vm.Realm.Heap
	if f.homeObject.IsUndefined() {
		return value.Value{}, vm.Realm.referenceError("'super' keyword is unexpected here"), false
	}
	startProto, ok := h.GetPrototypeOf(f.homeObject)
	if !ok || startProto.IsNull() {
		return value.Undefined, value.Value{}, true
	}
	d, found := vm.lookupFrom(startProto, key)
	if !found {
		return value.Undefined, value.Value{}, true
	}
	if d.HasGet {
		if d.Getter.IsUndefined() {
			return value.Undefined, value.Value{}, true
		}
		return vm.Call(d.Getter, f.this, nil)
	}
	return d.Value, value.Value{}, true
}

// lookupFrom walks the prototype chain starting at an arbitrary object
// (reimplementing heap's unexported resolveProperty against its exported
// GetOwnProperty/GetPrototypeOf, since super-property lookup needs a search
// start other than the receiver Get/GetV always use).
func (vm *VM) lookupFrom(start value.Value, key value.PropertyKey) (object.PropertyDescriptor, bool) {
	h := vm.Realm.Heap
	cur := start
	for {
		if d, ok := h.GetOwnProperty(cur, key); ok {
			return d, true
		}
		proto, ok := h.GetPrototypeOf(cur)
		if !ok || proto.IsNull() {
			return object.PropertyDescriptor{}, false
		}
		cur = proto
	}
}

/* -------------------------------------------------------------------------
   instanceof
   ------------------------------------------------------------------------- */

func (vm *VM) instanceOf(a, b value.Value) (bool, value.Value, bool) {
	if !b.Kind().IsCallable() {
		return false, vm.Realm.typeError("Right-hand side of 'instanceof' is not callable"), false
	}
	if !a.Kind().IsObjectLike() {
		return false, value.Value{}, true
	}
	h := vm.Realm.Heap
	target, _, _ := h.Get(b, h.PropertyKeyFor("prototype"))
	cur, ok := h.GetPrototypeOf(a)
	for ok && !cur.IsNull() {
		if cur.Kind() == target.Kind() && cur.Handle() == target.Handle() {
			return true, value.Value{}, true
		}
		cur, ok = h.GetPrototypeOf(cur)
	}
	return false, value.Value{}, true
}
