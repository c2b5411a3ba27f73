// Package value implements the tagged Value union and PropertyKey type from
// spec.md §3: "a uniform discriminated tag over: small integer, small
// string (inline), double, boolean, null, undefined, heap string, symbol,
// bigint, ordinary object, array, array buffer & typed-array variants,
// function variants ..., proxy, promise, map, set, weak collections,
// iterators, module namespace, error, date, regexp."
//
// Value carries no arena reference of its own — it only knows its Kind and a
// 64-bit payload, held in two separate fields (internal/unsafehelpers'
// PackTagged is not used, so a Value is not a single packed 64-bit word).
// For heap-resident
// kinds that payload is an internal/arena.Handle into the per-kind arena the
// Kind identifies; internal/heap owns the arenas and is the only package
// that dereferences a Handle into an actual object. This mirrors spec.md
// §3's invariant: "the tag uniquely determines which arena to index".
//
// © 2025 esvm authors. MIT License.
package value

import (
	"math"

	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/unsafehelpers"
)

// Kind discriminates a Value's representation.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindSmallInt
	KindSmallString
	KindDouble
	KindHeapString
	KindSymbol
	KindBigInt
	KindObject
	KindArray
	KindArrayBuffer
	KindTypedArray
	KindBoundFunction
	KindBuiltinFunction
	KindECMAScriptFunction
	KindConstructor
	KindPromiseResolvingFunction
	KindGeneratorFunction
	KindProxyRevoker
	KindProxy
	KindPromise
	KindMap
	KindSet
	KindWeakMap
	KindWeakSet
	KindWeakRef
	KindFinalizationRegistry
	KindArrayIterator
	KindStringIterator
	KindMapIterator
	KindSetIterator
	KindGeneratorObject
	KindModuleNamespace
	KindError
	KindDate
	KindRegExp
)

func (k Kind) IsHeapResident() bool {
	return k >= KindHeapString
}

func (k Kind) IsCallable() bool {
	switch k {
	case KindBoundFunction, KindBuiltinFunction, KindECMAScriptFunction,
		KindConstructor, KindPromiseResolvingFunction, KindGeneratorFunction,
		KindProxy:
		return true
	}
	return false
}

func (k Kind) IsObjectLike() bool {
	switch k {
	case KindObject, KindArray, KindArrayBuffer, KindTypedArray,
		KindProxy, KindPromise, KindMap, KindSet, KindWeakMap, KindWeakSet,
		KindWeakRef, KindFinalizationRegistry, KindArrayIterator,
		KindStringIterator, KindMapIterator, KindSetIterator,
		KindGeneratorObject, KindModuleNamespace, KindError, KindDate,
		KindRegExp:
		return true
	}
	return k.IsCallable()
}

// Value is the (kind, payload) pair described above.
type Value struct {
	kind    Kind
	payload uint64
}

var (
	Undefined = Value{kind: KindUndefined}
	Null      = Value{kind: KindNull}
	True      = Value{kind: KindBoolean, payload: 1}
	False     = Value{kind: KindBoolean, payload: 0}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int constructs a small-integer Value (ECMA-262's notion of a safe 32-bit
// integer inlined without heap allocation).
func Int(n int32) Value {
	return Value{kind: KindSmallInt, payload: uint64(uint32(n))}
}

// Double constructs a double Value, storing the IEEE-754 bit pattern in the
// payload.
func Double(f float64) Value {
	return Value{kind: KindDouble, payload: math.Float64bits(f)}
}

// SmallString inlines s (<=6 bytes) directly into the Value. Longer strings
// must be interned by internal/heap and referenced via HeapStringHandle.
func SmallString(s string) (Value, bool) {
	payload, ok := unsafehelpers.PackSmallString(s)
	if !ok {
		return Value{}, false
	}
	return Value{kind: KindSmallString, payload: payload}, true
}

// FromHandle builds a heap-resident Value of the given kind referencing h.
// kind must satisfy IsHeapResident(); internal/heap is the only caller.
func FromHandle(kind Kind, h arena.Handle) Value {
	return Value{kind: kind, payload: uint64(h)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsNullish() bool   { return v.kind == KindUndefined || v.kind == KindNull }
func (v Value) IsBoolean() bool   { return v.kind == KindBoolean }
func (v Value) IsObjectLike() bool {
	return v.kind.IsObjectLike()
}

func (v Value) AsBool() bool { return v.payload != 0 }

func (v Value) AsInt32() int32 { return int32(uint32(v.payload)) }

func (v Value) AsFloat64() float64 { return math.Float64frombits(v.payload) }

func (v Value) AsSmallString() string { return unsafehelpers.UnpackSmallString(v.payload) }

// Handle extracts the arena handle of a heap-resident Value. Callers must
// check Kind() first.
func (v Value) Handle() arena.Handle { return arena.Handle(v.payload) }

// WithHandle returns a copy of v addressing h instead of its current handle,
// keeping Kind unchanged. Used by internal/heap's post-compaction rewrite
// pass (spec.md §4.1) to fix up a Value in place after its target arena slot
// moved, without disturbing any non-heap-resident Value it might be called
// on by mistake (those simply round-trip their payload unchanged).
func (v Value) WithHandle(h arena.Handle) Value {
	if !v.kind.IsHeapResident() {
		return v
	}
	return Value{kind: v.kind, payload: uint64(h)}
}

// TypeOf implements the ECMAScript `typeof` operator's string results.
func (v Value) TypeOf() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "object"
	case KindBoolean:
		return "boolean"
	case KindSmallInt, KindDouble:
		return "number"
	case KindSmallString, KindHeapString:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindBigInt:
		return "bigint"
	default:
		if v.kind.IsCallable() {
			return "function"
		}
		return "object"
	}
}

/* -------------------------------------------------------------------------
   PropertyKey
   ------------------------------------------------------------------------- */

type pkKind uint8

const (
	pkString pkKind = iota
	pkSmallString
	pkSymbol
	pkInteger
)

// PropertyKey is a property name: an interned string, an inline small
// string, a symbol, or a canonical array-index integer (spec.md §3's
// "PropertyKeys"). It is comparable so it can be used directly as a Go map
// key (internal/propcache.Table's K type parameter).
type PropertyKey struct {
	kind pkKind
	bits uint64
}

// StringHandle is an internal/heap string-interner index; defined here (not
// imported from internal/heap) to avoid an import cycle, since internal/heap
// depends on internal/value, not vice versa.
type StringHandle = arena.Handle

// SymbolHandle is an internal/heap symbol-table index.
type SymbolHandle = arena.Handle

func InternedKey(h StringHandle) PropertyKey {
	return PropertyKey{kind: pkString, bits: uint64(h)}
}

func SmallStringKey(s string) (PropertyKey, bool) {
	payload, ok := unsafehelpers.PackSmallString(s)
	if !ok {
		return PropertyKey{}, false
	}
	return PropertyKey{kind: pkSmallString, bits: payload}, true
}

func SymbolKey(h SymbolHandle) PropertyKey {
	return PropertyKey{kind: pkSymbol, bits: uint64(h)}
}

// IntegerKey builds a canonical numeric property key (spec.md's "custom
// property storage for symbol/integer keys").
func IntegerKey(n uint32) PropertyKey {
	return PropertyKey{kind: pkInteger, bits: uint64(n)}
}

func (k PropertyKey) IsSymbol() bool  { return k.kind == pkSymbol }
func (k PropertyKey) IsInteger() bool { return k.kind == pkInteger }
func (k PropertyKey) IsString() bool  { return k.kind == pkString || k.kind == pkSmallString }

func (k PropertyKey) IntegerValue() uint32     { return uint32(k.bits) }
func (k PropertyKey) StringHandle() StringHandle { return arena.Handle(k.bits) }
func (k PropertyKey) SymbolHandle() SymbolHandle { return arena.Handle(k.bits) }
func (k PropertyKey) SmallString() string        { return unsafehelpers.UnpackSmallString(k.bits) }
