// This file implements TypedArray's integer-indexed exotic [[Get]]/[[Set]]
// override (spec.md §4.7, the "TypedArray" sibling of Array's length
// override in methods.go), grounded on
// original_source/nova_vm/src/ecmascript/builtins/indexed_collections/typed_array_objects.rs's
// IntegerIndexedElementGet/IntegerIndexedElementSet, collapsed into the
// per-element-kind switch object.TypedArrayElementKind names (spec.md §9's
// "any-typed-array" enumeration).
package heap

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// typedArrayIndex reports whether key is a canonical integer index within
// [0, ArrayLength) for the typed array data td, returning its byte offset
// into the backing buffer.
func typedArrayIndex(td *object.TypedArrayData, key value.PropertyKey) (uint32, bool) {
	if !key.IsInteger() {
		return 0, false
	}
	idx := key.IntegerValue()
	if idx >= td.ArrayLength {
		return 0, false
	}
	return td.ByteOffset + idx*uint32(td.ElementKind.ElementSize()), true
}

// getTypedArrayElement implements IntegerIndexedElementGet: reads the
// element key addresses out of the backing ArrayBufferData, decoding it
// according to td.ElementKind. Returns false for a non-integer key or an
// out-of-range index, matching ECMA-262's "return undefined" outcome.
func (h *Heap) getTypedArrayElement(v value.Value, key value.PropertyKey) (value.Value, bool) {
	td := h.typedArrays.Get(v.Handle())
	byteOff, ok := typedArrayIndex(td, key)
	if !ok {
		return value.Value{}, false
	}
	buf := h.buffers.Get(td.Buffer)
	if buf.Detached {
		return value.Undefined, true
	}
	return h.decodeTypedArrayElement(td.ElementKind, buf.Bytes, byteOff), true
}

// setTypedArrayElement implements IntegerIndexedElementSet: writes val,
// coerced to td.ElementKind's representation, into the backing buffer at
// key's index. A non-integer key, an out-of-range index, or a detached
// buffer is a silent no-op, matching ECMA-262's IntegerIndexedElementSet
// returning without effect rather than throwing (strict-mode distinctions
// are not tracked anywhere else in this engine either, see methods.go's Set
// doc comment).
func (h *Heap) setTypedArrayElement(v value.Value, key value.PropertyKey, val value.Value) bool {
	td := h.typedArrays.Get(v.Handle())
	byteOff, ok := typedArrayIndex(td, key)
	if !ok {
		return false
	}
	buf := h.buffers.Get(td.Buffer)
	if buf.Detached {
		return true
	}
	h.encodeTypedArrayElement(td.ElementKind, buf.Bytes, byteOff, val)
	return true
}

func (h *Heap) decodeTypedArrayElement(kind object.TypedArrayElementKind, buf []byte, off uint32) value.Value {
	switch kind {
	case object.ElemInt8:
		return value.Int(int32(int8(buf[off])))
	case object.ElemUint8, object.ElemUint8Clamped:
		return value.Int(int32(buf[off]))
	case object.ElemInt16:
		return value.Int(int32(int16(binary.LittleEndian.Uint16(buf[off:]))))
	case object.ElemUint16:
		return value.Int(int32(binary.LittleEndian.Uint16(buf[off:])))
	case object.ElemInt32:
		return value.Int(int32(binary.LittleEndian.Uint32(buf[off:])))
	case object.ElemUint32:
		return value.Double(float64(binary.LittleEndian.Uint32(buf[off:])))
	case object.ElemFloat32:
		return value.Double(float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))))
	case object.ElemFloat64:
		return value.Double(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])))
	case object.ElemBigInt64:
		return h.NewBigInt(big.NewInt(int64(binary.LittleEndian.Uint64(buf[off:]))))
	case object.ElemBigUint64:
		return h.NewBigInt(new(big.Int).SetUint64(binary.LittleEndian.Uint64(buf[off:])))
	default:
		return value.Undefined
	}
}

func (h *Heap) encodeTypedArrayElement(kind object.TypedArrayElementKind, buf []byte, off uint32, val value.Value) {
	switch kind {
	case object.ElemInt8, object.ElemUint8, object.ElemUint8Clamped:
		buf[off] = byte(int32(h.toNumber(val)))
	case object.ElemInt16, object.ElemUint16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(int32(h.toNumber(val))))
	case object.ElemInt32, object.ElemUint32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(int64(h.toNumber(val))))
	case object.ElemFloat32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(h.toNumber(val))))
	case object.ElemFloat64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(h.toNumber(val)))
	case object.ElemBigInt64, object.ElemBigUint64:
		if val.Kind() == value.KindBigInt {
			binary.LittleEndian.PutUint64(buf[off:], h.BigIntValue(val).Uint64())
		}
	}
}

// toNumber narrows val to a float64 the way the typed-array element encoders
// need; esvm's numeric coercion lives in internal/vm (ToNumber, per spec.md
// §4.6), so this only covers the inline-tagged kinds a literal array
// initializer or arithmetic result can already produce, treating anything
// else as 0 the way ToNumber(undefined) then ToNumber(NaN)->0 does for an
// integer conversion.
func (h *Heap) toNumber(val value.Value) float64 {
	switch val.Kind() {
	case value.KindSmallInt:
		return float64(val.AsInt32())
	case value.KindDouble:
		return val.AsFloat64()
	case value.KindBoolean:
		if val.AsBool() {
			return 1
		}
		return 0
	default:
		return 0
	}
}
