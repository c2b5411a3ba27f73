// typedarrayctors.go installs ArrayBuffer and the eleven TypedArray
// constructors on the global object, mirroring errorctors.go's "one builtin
// constructor per spec entry, sharing one %XProto%" shape. Grounded on
// original_source/nova_vm/src/ecmascript/builtins/indexed_collections/typed_array_objects.rs's
// InitializeTypedArrayFromArrayBuffer/InitializeTypedArrayFromArrayLength,
// narrowed to the two forms a constructor call needs to support per
// SPEC_FULL.md §7 ("any-typed-array" enumeration): `new XArray(length)` and
// `new XArray(buffer[, byteOffset[, length]])`.
package vm

import (
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

type typedArrayCtorSpec struct {
	name string
	kind object.TypedArrayElementKind
}

var typedArrayCtorSpecs = []typedArrayCtorSpec{
	{"Int8Array", object.ElemInt8},
	{"Uint8Array", object.ElemUint8},
	{"Uint8ClampedArray", object.ElemUint8Clamped},
	{"Int16Array", object.ElemInt16},
	{"Uint16Array", object.ElemUint16},
	{"Int32Array", object.ElemInt32},
	{"Uint32Array", object.ElemUint32},
	{"Float32Array", object.ElemFloat32},
	{"Float64Array", object.ElemFloat64},
	{"BigInt64Array", object.ElemBigInt64},
	{"BigUint64Array", object.ElemBigUint64},
}

// installTypedArrayConstructors wires `ArrayBuffer` plus one constructor per
// typedArrayCtorSpec onto the global object. Every XArray constructor shares
// one %TypedArray.prototype%-equivalent (r.TypedArrayProto) the way esvm's
// other builtins share one prototype instance rather than ECMA-262's full
// %TypedArray% abstract-class hierarchy (DESIGN.md simplification, same
// shape as r.IteratorProto serving every iterator kind).
func (r *Realm) installTypedArrayConstructors() {
	h := r.Heap
	protoKey := h.PropertyKeyFor("prototype")
	ctorKey := h.PropertyKeyFor("constructor")
	nameKey := h.PropertyKeyFor("name")

	bufferCtor := h.NewBuiltinFunction(r.FunctionProto, "ArrayBuffer", 1, func(_ value.Value, args []value.Value) (value.Value, value.Value, bool) {
		length := 0
		if len(args) > 0 {
			length = int(toNumber(h, args[0]))
		}
		if length < 0 {
			return value.Undefined, r.rangeError("Invalid array buffer length"), false
		}
		// ArrayBufferData carries no OrdinaryObject/shape (create.go's
		// ordinaryOf: "raw bytes only"), so it has nothing for
		// SetPrototypeOf to act on; r.ArrayBufferProto only backs the
		// constructor's own `.prototype` property, matched against by
		// instanceof's literal `[[Prototype]]` walk never applying here.
		return h.NewArrayBuffer(length), value.Value{}, true
	})
	h.DefineOwnProperty(bufferCtor, protoKey, nonEnumDataProp(r.ArrayBufferProto))
	h.DefineOwnProperty(r.ArrayBufferProto, ctorKey, nonEnumDataProp(bufferCtor))
	r.GlobalEnv.DeclareMutable("ArrayBuffer", false)
	r.GlobalEnv.InitializeBinding("ArrayBuffer", bufferCtor)

	for _, spec := range typedArrayCtorSpecs {
		spec := spec
		proto := h.NewOrdinaryObject(r.TypedArrayProto, true)
		elemSize := uint32(spec.kind.ElementSize())

		ctor := h.NewBuiltinFunction(r.FunctionProto, spec.name, 1, func(_ value.Value, args []value.Value) (value.Value, value.Value, bool) {
			var first value.Value
			if len(args) > 0 {
				first = args[0]
			}
			if first.Kind() == value.KindArrayBuffer {
				bufLen := uint32(len(h.ArrayBufferData(first).Bytes))
				byteOffset := uint32(0)
				if len(args) > 1 {
					byteOffset = uint32(toNumber(h, args[1]))
				}
				if byteOffset > bufLen {
					return value.Undefined, r.rangeError("byteOffset out of range"), false
				}
				var length uint32
				if len(args) > 2 {
					length = uint32(toNumber(h, args[2]))
				} else if elemSize > 0 {
					length = (bufLen - byteOffset) / elemSize
				}
				if byteOffset+length*elemSize > bufLen {
					return value.Undefined, r.rangeError("typed array length out of bounds for buffer"), false
				}
				ta := h.NewTypedArray(proto, first, spec.kind, byteOffset, length)
				return ta, value.Value{}, true
			}
			length := uint32(0)
			if first.Kind() != value.KindUndefined {
				length = uint32(toNumber(h, first))
			}
			buffer := h.NewArrayBuffer(int(length * elemSize))
			return h.NewTypedArray(proto, buffer, spec.kind, 0, length), value.Value{}, true
		})
		h.DefineOwnProperty(ctor, protoKey, nonEnumDataProp(proto))
		h.DefineOwnProperty(proto, ctorKey, nonEnumDataProp(ctor))
		h.DefineOwnProperty(proto, nameKey, nonEnumDataProp(mustSmallOrNative(h, spec.name)))

		r.GlobalEnv.DeclareMutable(spec.name, false)
		r.GlobalEnv.InitializeBinding(spec.name, ctor)
	}
}
