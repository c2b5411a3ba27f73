// Package object defines the heap-resident object representations from
// spec.md §3 "OrdinaryObject" and the exotic kinds §4.7 calls out (Array's
// length, typed arrays' integer-indexed access, proxies' trap dispatch).
// This package holds data only — the internal-methods algorithms that act on
// it live in internal/heap, which is the one place the shape graph, the
// property-lookup caches, and the typed arenas are all in scope together
// (spec.md §1: "these subsystems share a single allocator-like arena").
//
// © 2025 esvm authors. MIT License.
package object

import (
	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// PropertyDescriptor is a symbol/integer-keyed property stored outside a
// shape's ordered vector (spec.md §3: "optional custom property storage for
// symbol/integer keys").
type PropertyDescriptor struct {
	Value   value.Value
	Getter  value.Value
	Setter  value.Value
	Attr    shape.Attr
	HasGet  bool
	HasSet  bool
}

// OrdinaryObject is (shape, values vector, extensibility bit, optional
// custom property storage), exactly as spec.md §3 describes. Created empty
// against a root shape, mutated by shape transitions, destroyed when the
// heap sweeps and finds it unmarked.
type OrdinaryObject struct {
	Shape      shape.ID
	Values     []value.Value // parallel to Shape's own-property vector
	Extensible bool
	Custom     map[value.PropertyKey]*PropertyDescriptor
}

func NewOrdinary(rootShape shape.ID) *OrdinaryObject {
	return &OrdinaryObject{Shape: rootShape, Extensible: true}
}

/* -------------------------------------------------------------------------
   Exotic kinds
   ------------------------------------------------------------------------- */

// ArrayData layers the exotic `length` behavior over an OrdinaryObject
// (spec.md §4.7 "Array's length").
type ArrayData struct {
	OrdinaryObject
	Length uint32
}

// TypedArrayElementKind is the "any-typed-array" tag from spec.md §9: one
// enum value per element type, dispatched through a small per-kind switch
// rather than per-type instantiation.
type TypedArrayElementKind uint8

const (
	ElemInt8 TypedArrayElementKind = iota
	ElemUint8
	ElemUint8Clamped
	ElemInt16
	ElemUint16
	ElemInt32
	ElemUint32
	ElemFloat32
	ElemFloat64
	ElemBigInt64
	ElemBigUint64
)

// ElementSize returns the element width in bytes for k.
func (k TypedArrayElementKind) ElementSize() int {
	switch k {
	case ElemInt8, ElemUint8, ElemUint8Clamped:
		return 1
	case ElemInt16, ElemUint16:
		return 2
	case ElemInt32, ElemUint32, ElemFloat32:
		return 4
	default:
		return 8
	}
}

// TypedArrayData is a view over an ArrayBuffer with integer-indexed exotic
// access (spec.md §4.7).
type TypedArrayData struct {
	OrdinaryObject
	Buffer      arena.Handle // handle into the array-buffer arena
	ElementKind TypedArrayElementKind
	ByteOffset  uint32
	ArrayLength uint32
}

// ArrayBufferData is the raw backing storage a TypedArrayData views.
type ArrayBufferData struct {
	Bytes      []byte
	Detached   bool
}

// ProxyData implements the exotic trap-dispatch object (spec.md §4.7
// "proxies' trap dispatch").
type ProxyData struct {
	Target   value.Value
	Handler  value.Value
	Revoked  bool
}

// FunctionKind distinguishes the function variants spec.md §3 lists.
type FunctionKind uint8

const (
	FuncBound FunctionKind = iota
	FuncBuiltin
	FuncECMAScript
	FuncConstructor
	FuncPromiseResolving
	FuncGenerator
	FuncProxyRevoker
)

// BuiltinFn is a native function implemented in Go; it receives the `this`
// value and arguments and returns a result or throws by returning ok=false
// with the thrown value.Value in thrown.
type BuiltinFn func(this value.Value, args []value.Value) (result value.Value, thrown value.Value, ok bool)

// FunctionData covers every callable kind. Which fields are meaningful
// depends on Kind, mirroring spec.md's "function variants" enumeration
// collapsed into one tagged struct (spec.md §9 dispatch pattern).
type FunctionData struct {
	OrdinaryObject
	Kind FunctionKind

	Name        string
	ParamCount  int

	// FuncECMAScript / FuncGenerator. These are plain Go pointers rather
	// than arena handles: nothing computes a numeric offset into an
	// Executable or an Environment the way shapes index into a values
	// vector, so there is nothing for compaction to rewrite, and Go's own
	// collector already keeps them alive for exactly as long as this
	// FunctionData slot is live.
	Executable *compiler.Executable
	Closure    *environment.Environment

	// FuncBuiltin / FuncPromiseResolving / FuncProxyRevoker
	Native BuiltinFn

	// FuncBound
	BoundTarget value.Value
	BoundThis   value.Value
	BoundArgs   []value.Value

	// FuncConstructor (derived classes)
	HomeObject      value.Value
	ConstructorKind int // 0 = base, 1 = derived
	FieldsInitCount int

	// SuperConstructor is the evaluated class-heritage expression for a
	// FuncConstructor with ConstructorKind == 1: the value `super(...)`
	// constructs and `super.foo()` looks methods up through. Undefined for
	// a base-class constructor.
	SuperConstructor value.Value
}

// PromiseState mirrors the three-state ECMAScript promise lifecycle.
type PromiseState uint8

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

type PromiseData struct {
	OrdinaryObject
	State       PromiseState
	Result      value.Value
	IsHandled   bool
	OnFulfilled []value.Value // FuncBuiltin/FuncECMAScript reaction handles
	OnRejected  []value.Value
}

type MapData struct {
	OrdinaryObject
	Keys   []value.Value
	Values []value.Value
}

type SetData struct {
	OrdinaryObject
	Items []value.Value
}

// WeakEntry is one (key, value) pair in a weak collection; Alive is cleared
// by the heap's sweep phase when key dies, implementing spec.md §4.1's
// "weak references ... visited with a separate predicate that returns None
// when the target died".
type WeakEntry struct {
	Key   value.Value
	Value value.Value
	Alive bool
}

type WeakMapData struct {
	OrdinaryObject
	Entries []WeakEntry
}

type WeakSetData struct {
	OrdinaryObject
	Entries []WeakEntry
}

type IteratorKind uint8

const (
	IterArray IteratorKind = iota
	IterString
	IterMap
	IterSet
	IterGenerator
)

type IteratorData struct {
	OrdinaryObject
	Kind   IteratorKind
	Target value.Value
	Index  int
	Done   bool
}

type ModuleNamespaceData struct {
	OrdinaryObject
	ModuleIndex arena.Handle
	ExportNames []value.PropertyKey
}

type ErrorKind uint8

const (
	ErrorGeneric ErrorKind = iota
	ErrorType
	ErrorRange
	ErrorSyntax
	ErrorReference
	ErrorURI
	ErrorEval
	ErrorAggregate
)

type ErrorData struct {
	OrdinaryObject
	Kind       ErrorKind
	Message    string
	Stack      string
	Errors     []value.Value // ErrorAggregate only
}

type DateData struct {
	OrdinaryObject
	EpochMillis float64
	IsInvalid   bool
}

type RegExpData struct {
	OrdinaryObject
	Source string
	Flags  string
}
