// class.go implements the two pieces of spec.md §4.5's class-definition
// evaluation the VM (as opposed to the compiler) is responsible for:
// building the constructor function value OpClassDefineConstructor and
// OpClassDefineDefaultConstructor reference, and giving every ordinary,
// non-arrow function its own `prototype` object (spec.md §8 scenario 2:
// `F.prototype.m = ...` needs somewhere to hang `m` before `new F()` ever
// runs).
//
// Grounded on original_source/.../class_definition_evaluation.rs's
// ClassDefinitionEvaluation for derived-vs-base prototype-chain wiring, and
// on ordinary_function_create's OrdinaryCreateFromConstructor step for why
// a plain function needs a `prototype` own property at all.
package vm

import (
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// attachPrototypeObject gives fn (an ECMAScript function or generator, never
// an arrow) its own `prototype` object: non-enumerable, non-configurable,
// writable, per ECMA-262's OrdinaryFunctionCreate — configurable:false so a
// script cannot `delete F.prototype` out from under `new F()`.
func (vm *VM) attachPrototypeObject(fn value.Value, protoParent value.Value) {
	h := vm.Realm.Heap
	proto := h.NewOrdinaryObject(protoParent, true)
	h.DefineOwnProperty(fn, h.PropertyKeyFor("prototype"), object.PropertyDescriptor{
		Value: proto,
		Attr:  shape.Attr{Writable: true, Enumerable: false, Configurable: false},
	})
	h.DefineOwnProperty(proto, h.PropertyKeyFor("constructor"), nonEnumDataProp(fn))
}

// classHeritageProto resolves the prototype a class's own `prototype`
// object should chain to, given the already-evaluated heritage expression
// on the stack (OpLoadNull for `extends null`, the evaluated expression for
// `extends Base`, OpLoadUndefined for a class with no `extends` clause at
// all — the last case never reaches here since isDerived is false then).
func (vm *VM) classHeritageProto(heritage value.Value) value.Value {
	if heritage.IsNull() {
		return value.Null
	}
	h := vm.Realm.Heap
	p, _, _ := h.Get(heritage, h.PropertyKeyFor("prototype"))
	if p.IsNull() || p.Kind().IsObjectLike() {
		return p
	}
	return vm.Realm.ObjectProto
}

// defineClassConstructor builds the constructor for a class with an
// explicit `constructor(){...}` method or synthesized field-initializing
// body (compiler/class.go's buildExplicitConstructor/buildSynthesizedConstructor).
func (vm *VM) defineClassConstructor(nested *compiler.Executable, env *environment.Environment, heritage value.Value, isDerived bool) value.Value {
	h := vm.Realm.Heap
	protoParent := vm.Realm.ObjectProto
	var superCtor value.Value
	constructorKind := 0
	if isDerived {
		superCtor = heritage
		protoParent = vm.classHeritageProto(heritage)
		constructorKind = 1
	}
	proto := h.NewOrdinaryObject(protoParent, true)
	ctor := h.NewClassConstructor(vm.Realm.FunctionProto, nested, env, nested.Name, constructorKind, proto, superCtor)
	h.DefineOwnProperty(ctor, h.PropertyKeyFor("prototype"), object.PropertyDescriptor{
		Value: proto,
		Attr:  shape.Attr{Writable: false, Enumerable: false, Configurable: false},
	})
	h.DefineOwnProperty(proto, h.PropertyKeyFor("constructor"), nonEnumDataProp(ctor))
	return ctor
}

// defineDefaultClassConstructor builds the synthesized constructor ECMA-262
// gives a class with no explicit constructor element: a base class gets a
// no-op body, a derived class forwards every argument straight to its
// superclass via `super(...args)`. With `extends null` that construct call
// throws a TypeError, since null is not a constructor; only an explicit
// `super()` reaches superCall's null-prototype path.
// constructECMAScript (call.go) special-cases fd.Executable == nil to
// implement exactly that without ever compiling a body for it.
func (vm *VM) defineDefaultClassConstructor(env *environment.Environment, heritage value.Value, isDerived bool) value.Value {
	h := vm.Realm.Heap
	protoParent := vm.Realm.ObjectProto
	var superCtor value.Value
	if isDerived {
		superCtor = heritage
		protoParent = vm.classHeritageProto(heritage)
	}
	proto := h.NewOrdinaryObject(protoParent, true)
	ctor := h.NewClassConstructor(vm.Realm.FunctionProto, nil, env, "", boolToInt(isDerived), proto, superCtor)
	h.DefineOwnProperty(ctor, h.PropertyKeyFor("prototype"), object.PropertyDescriptor{
		Value: proto,
		Attr:  shape.Attr{Writable: false, Enumerable: false, Configurable: false},
	})
	h.DefineOwnProperty(proto, h.PropertyKeyFor("constructor"), nonEnumDataProp(ctor))
	return ctor
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
