// Package environment implements the five ECMAScript environment record
// kinds from spec.md §3 "Environments" and §4.8: declarative, object,
// function, module, and global. An environment is a binding map plus an
// optional outer link; resolution walks outer links until a binding is
// found or the chain ends at the global environment.
//
// Grounded on the teacher's generic entry/index pattern (internal/arena +
// a map from key to slot), generalized here from "cache key -> cached
// value" to "binding name -> (value, mutability, initialized)".
//
// © 2025 esvm authors. MIT License.
package environment

import (
	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/value"
)

// Kind distinguishes the five environment record flavors spec.md §3 lists.
type Kind uint8

const (
	KindDeclarative Kind = iota
	KindFunction         // declarative + [[ThisValue]]/[[FunctionObject]]/[[NewTarget]]
	KindModule           // declarative + import bindings resolved indirectly
	KindObject           // bindings delegate to a backing object (with-statement, global object record)
	KindGlobal           // object record + a declarative record for let/const/class at top level
)

// binding is one name's storage slot.
type binding struct {
	value       value.Value
	mutable     bool
	initialized bool // false until TDZ is cleared (let/const/class, spec.md §4.8)
	deletable   bool
}

// indirectBinding is a module environment's re-export: resolving it means
// resolving a binding name in another module's environment instead of a
// local slot (spec.md §4.8 "import bindings resolved indirectly").
type indirectBinding struct {
	target   *Environment
	localKey string
}

// Environment is one environment record. Kind selects which of the optional
// fields below are meaningful; Declarative/Function/Module/Global all use
// bindings, Object/Global additionally delegate to BackingObject.
type Environment struct {
	Kind  Kind
	Outer *Environment

	bindings map[string]*binding
	indirect map[string]indirectBinding

	// KindFunction extras.
	ThisValue      value.Value
	HasThisValue   bool
	FunctionObject value.Value
	NewTarget      value.Value

	// KindObject/KindGlobal extras: property lookups on this object back the
	// environment's bindings (spec.md's "object environment record").
	BackingObject arena.Handle
	HasBacking    bool
	Withheld      bool // with-statement unscopables opt-out, checked by the VM
}

// NewDeclarative creates a block/catch/function-body scope.
func NewDeclarative(outer *Environment) *Environment {
	return &Environment{Kind: KindDeclarative, Outer: outer, bindings: make(map[string]*binding)}
}

// NewFunction creates a function call's top environment, seeded with `this`
// per spec.md §4.8 (arrow functions never get one — they inherit Outer's).
func NewFunction(outer *Environment, thisValue value.Value, fn value.Value, newTarget value.Value) *Environment {
	return &Environment{
		Kind: KindFunction, Outer: outer, bindings: make(map[string]*binding),
		ThisValue: thisValue, HasThisValue: true,
		FunctionObject: fn, NewTarget: newTarget,
	}
}

// NewModule creates a module's top-level lexical environment.
func NewModule(outer *Environment) *Environment {
	return &Environment{Kind: KindModule, Outer: outer, bindings: make(map[string]*binding), indirect: make(map[string]indirectBinding)}
}

// NewObject creates a with-statement environment backed by obj.
func NewObject(outer *Environment, obj arena.Handle, withheld bool) *Environment {
	return &Environment{Kind: KindObject, Outer: outer, BackingObject: obj, HasBacking: true, Withheld: withheld}
}

// NewGlobal creates the realm's global environment: a declarative record for
// let/const/class plus an object record backed by the global object.
func NewGlobal(globalObject arena.Handle) *Environment {
	return &Environment{
		Kind: KindGlobal, bindings: make(map[string]*binding),
		BackingObject: globalObject, HasBacking: true,
	}
}

/* -------------------------------------------------------------------------
   Declaration & initialization (spec.md §4.8 CreateMutableBinding /
   CreateImmutableBinding / InitializeBinding)
   ------------------------------------------------------------------------- */

// DeclareMutable creates an uninitialized `var`/`let`/function-parameter
// binding. deletable is true only for `var` declarations created by direct
// eval, matching ECMA-262's CreateMutableBinding(deletable) parameter.
func (e *Environment) DeclareMutable(name string, deletable bool) {
	if e.bindings == nil {
		e.bindings = make(map[string]*binding)
	}
	e.bindings[name] = &binding{mutable: true, deletable: deletable}
}

// DeclareImmutable creates an uninitialized `const`/`class` binding.
func (e *Environment) DeclareImmutable(name string) {
	if e.bindings == nil {
		e.bindings = make(map[string]*binding)
	}
	e.bindings[name] = &binding{mutable: false}
}

// DeclareIndirect wires a module's re-exported name to another module's
// local binding (spec.md §4.8's indirect import resolution).
func (e *Environment) DeclareIndirect(localName string, target *Environment, targetKey string) {
	if e.indirect == nil {
		e.indirect = make(map[string]indirectBinding)
	}
	e.indirect[localName] = indirectBinding{target: target, localKey: targetKey}
}

// InitializeBinding clears a binding's TDZ and gives it its first value
// (spec.md §4.8 InitializeBinding — var hoisting pre-declares as initialized
// undefined via DeclareMutable+InitializeBinding(undefined) in one step at
// compile-time-known positions).
func (e *Environment) InitializeBinding(name string, v value.Value) bool {
	b, ok := e.bindings[name]
	if !ok {
		return false
	}
	b.value = v
	b.initialized = true
	return true
}

/* -------------------------------------------------------------------------
   Resolution (spec.md §4.8 GetBindingValue / SetMutableBinding / HasBinding)
   ------------------------------------------------------------------------- */

// ErrTDZ is returned by GetBindingValue when name exists but has not been
// initialized yet (a `let`/`const`/class reference before its declaration).
type ErrTDZ struct{ Name string }

func (e *ErrTDZ) Error() string { return "Cannot access '" + e.Name + "' before initialization" }

// HasOwnBinding reports whether name is declared directly in e (not walking
// Outer), including indirect module bindings.
func (e *Environment) HasOwnBinding(name string) bool {
	if _, ok := e.bindings[name]; ok {
		return true
	}
	_, ok := e.indirect[name]
	return ok
}

// GetOwnBindingValue resolves name within e only (no outer-chain walk),
// following one level of module indirection if present.
func (e *Environment) GetOwnBindingValue(name string) (value.Value, error) {
	if b, ok := e.bindings[name]; ok {
		if !b.initialized {
			return value.Undefined, &ErrTDZ{Name: name}
		}
		return b.value, nil
	}
	if ind, ok := e.indirect[name]; ok {
		return ind.target.GetOwnBindingValue(ind.localKey)
	}
	return value.Undefined, nil
}

// SetOwnMutableBinding assigns name within e only. ok is false if name is
// absent or immutable (the caller is responsible for walking Outer and for
// raising TypeError on a non-strict assignment to a missing global, per
// spec.md §4.8).
func (e *Environment) SetOwnMutableBinding(name string, v value.Value) (ok bool, immutable bool) {
	b, present := e.bindings[name]
	if !present {
		return false, false
	}
	if !b.mutable {
		return false, true
	}
	b.value = v
	b.initialized = true
	return true, false
}

// DeleteBinding removes a deletable `var` binding created by direct eval.
func (e *Environment) DeleteBinding(name string) bool {
	b, ok := e.bindings[name]
	if !ok || !b.deletable {
		return false
	}
	delete(e.bindings, name)
	return true
}

// ThisBinding resolves `this` by walking outward to the nearest
// KindFunction/KindGlobal environment (arrow functions have no own `this`
// environment and so are skipped transparently by never creating one).
func (e *Environment) ThisBinding() (value.Value, bool) {
	for env := e; env != nil; env = env.Outer {
		if env.HasThisValue {
			return env.ThisValue, true
		}
		if env.Kind == KindGlobal {
			return value.Undefined, true // `this` is the global object at top level; caller substitutes it
		}
	}
	return value.Undefined, false
}

// OwnBindingNames returns every name directly declared in e, including
// indirect module bindings.
func (e *Environment) OwnBindingNames() []string {
	names := make([]string, 0, len(e.bindings)+len(e.indirect))
	for n := range e.bindings {
		names = append(names, n)
	}
	for n := range e.indirect {
		names = append(names, n)
	}
	return names
}

// Values walks this environment's directly-held bindings for the heap's GC
// marking pass (spec.md §4.1: closures keep their captured bindings alive).
// Indirect bindings are not traced here — tracing the target module's
// environment happens when that module's own environment is visited as a GC
// root, which internal/heap ensures by keeping every linked module alive
// for the program's lifetime.
func (e *Environment) Values(fn func(value.Value)) {
	for _, b := range e.bindings {
		if b.initialized {
			fn(b.value)
		}
	}
	if e.HasThisValue {
		fn(e.ThisValue)
		fn(e.FunctionObject)
		fn(e.NewTarget)
	}
}

// RewriteValues applies fn in place to every Value this environment holds
// directly, letting internal/heap's post-compaction pass fix up bindings
// that reference a relocated object (spec.md §4.1: "after collection, all
// indices in all arenas have been rewritten consistently" — Environments
// are program-lifetime artifacts that are never themselves swept, but the
// Values they hold live in arenas that are).
func (e *Environment) RewriteValues(fn func(value.Value) value.Value) {
	for _, b := range e.bindings {
		if b.initialized {
			b.value = fn(b.value)
		}
	}
	if e.HasThisValue {
		e.ThisValue = fn(e.ThisValue)
		e.FunctionObject = fn(e.FunctionObject)
		e.NewTarget = fn(e.NewTarget)
	}
}

// IndirectTargets returns every Environment this one's module-style
// indirect bindings point at, so the heap's rewrite/mark walk can follow
// them without this package needing to know about modules at all.
func (e *Environment) IndirectTargets() []*Environment {
	if len(e.indirect) == 0 {
		return nil
	}
	out := make([]*Environment, 0, len(e.indirect))
	for _, ind := range e.indirect {
		out = append(out, ind.target)
	}
	return out
}
