// Operand coercion and the arithmetic/comparison opcodes, spec.md §4.6's
// OpAdd..OpGte family. Grounded on
// original_source/nova_vm/src/ecmascript/execution/agent.rs's ToNumber/
// ToString/ToPrimitive/IsLooselyEqual helpers, simplified the way SPEC_FULL.md
// records: ToPrimitive on an object falls straight to a fixed "[object
// Type]"/NaN result rather than calling valueOf/toString, since esvm does not
// implement those intrinsics (DESIGN.md Open Question).
package vm

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

func dataProp(v value.Value) object.PropertyDescriptor {
	return object.PropertyDescriptor{Value: v, Attr: shape.Attr{Writable: true, Enumerable: true, Configurable: true}}
}

func nonEnumDataProp(v value.Value) object.PropertyDescriptor {
	return object.PropertyDescriptor{Value: v, Attr: shape.Attr{Writable: true, Enumerable: false, Configurable: true}}
}

// isTruthy implements ToBoolean (ECMA-262 §7.1.2).
func isTruthy(h *heap.Heap, v value.Value) bool {
	switch v.Kind() {
	case value.KindUndefined, value.KindNull:
		return false
	case value.KindBoolean:
		return v.AsBool()
	case value.KindSmallInt:
		return v.AsInt32() != 0
	case value.KindDouble:
		f := v.AsFloat64()
		return f != 0 && !math.IsNaN(f)
	case value.KindSmallString:
		return v.AsSmallString() != ""
	case value.KindHeapString:
		return h.StringValue(v) != ""
	case value.KindBigInt:
		return h.BigIntValue(v).Sign() != 0
	default:
		return true // every object-like/callable value is truthy
	}
}

// toNumber implements ToNumber (ECMA-262 §7.1.4), with the object-operand
// simplification SPEC_FULL.md records (no valueOf/toString chain: objects
// coerce straight to NaN, matching a failed abstract-operation exhaustively
// rather than partially emulating one).
func toNumber(h *heap.Heap, v value.Value) float64 {
	switch v.Kind() {
	case value.KindUndefined:
		return math.NaN()
	case value.KindNull:
		return 0
	case value.KindBoolean:
		if v.AsBool() {
			return 1
		}
		return 0
	case value.KindSmallInt:
		return float64(v.AsInt32())
	case value.KindDouble:
		return v.AsFloat64()
	case value.KindSmallString:
		return stringToNumber(v.AsSmallString())
	case value.KindHeapString:
		return stringToNumber(h.StringValue(v))
	case value.KindBigInt:
		f, _ := new(big.Float).SetInt(h.BigIntValue(v)).Float64()
		return f
	default:
		return math.NaN()
	}
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// toStringValue implements ToString (ECMA-262 §7.1.17) for the handful of
// kinds the VM needs to stringify: template-less concatenation, property-key
// coercion, and console output.
func toStringValue(h *heap.Heap, v value.Value) string {
	switch v.Kind() {
	case value.KindUndefined:
		return "undefined"
	case value.KindNull:
		return "null"
	case value.KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.KindSmallInt:
		return strconv.FormatInt(int64(v.AsInt32()), 10)
	case value.KindDouble:
		return formatFloat(v.AsFloat64())
	case value.KindSmallString:
		return v.AsSmallString()
	case value.KindHeapString:
		return h.StringValue(v)
	case value.KindBigInt:
		return h.BigIntValue(v).String()
	case value.KindSymbol:
		return "Symbol(" + h.SymbolDescription(v.Handle()) + ")"
	default:
		if v.Kind().IsCallable() {
			return "function () { [native code] }"
		}
		if v.Kind() == value.KindArray {
			return arrayToString(h, v)
		}
		return "[object " + objectTag(v) + "]"
	}
}

func arrayToString(h *heap.Heap, v value.Value) string {
	arr := h.ArrayData(v)
	parts := make([]string, arr.Length)
	for i := uint32(0); i < arr.Length; i++ {
		el := h.GetArrayIndex(v, i)
		if el.IsNullish() {
			parts[i] = ""
			continue
		}
		parts[i] = toStringValue(h, el)
	}
	return strings.Join(parts, ",")
}

func objectTag(v value.Value) string {
	switch v.Kind() {
	case value.KindError:
		return "Error"
	case value.KindDate:
		return "Date"
	case value.KindRegExp:
		return "RegExp"
	default:
		return "Object"
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DisplayString is the console-output rendering used by Realm.consoleLog and
// pkg/esvm's uncaught-exception message. It returns toStringValue's result
// unchanged, so an ordinary object renders as "[object Object]" and an array
// as its comma-joined elements.
func DisplayString(h *heap.Heap, v value.Value) string {
	return toStringValue(h, v)
}

/* -------------------------------------------------------------------------
   Equality
   ------------------------------------------------------------------------- */

// strictEquals implements the === operator (ECMA-262 §7.2.16).
func strictEquals(h *heap.Heap, a, b value.Value) bool {
	if isNumeric(a) && isNumeric(b) {
		return toNumber(h, a) == toNumber(h, b)
	}
	if isStringLike(a) && isStringLike(b) {
		return toStringValue(h, a) == toStringValue(h, b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindUndefined, value.KindNull:
		return true
	case value.KindBoolean:
		return a.AsBool() == b.AsBool()
	case value.KindBigInt:
		return h.BigIntValue(a).Cmp(h.BigIntValue(b)) == 0
	default:
		if a.Kind().IsHeapResident() {
			return a.Handle() == b.Handle()
		}
		return true
	}
}

// looseEquals implements the == operator (ECMA-262 §7.2.15), simplified: no
// BigInt/Number cross-comparison edge cases beyond the common numeric
// coercion, matching SPEC_FULL.md's documented scope.
func looseEquals(h *heap.Heap, a, b value.Value) bool {
	if a.Kind() == b.Kind() || (isNumeric(a) && isNumeric(b)) || (isStringLike(a) && isStringLike(b)) {
		return strictEquals(h, a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	if (isNumeric(a) || isStringLike(a) || a.IsBoolean()) && b.Kind().IsObjectLike() {
		return false // ToPrimitive on objects unimplemented; never loosely equal (DESIGN.md)
	}
	if a.Kind().IsObjectLike() && (isNumeric(b) || isStringLike(b) || b.IsBoolean()) {
		return false
	}
	if a.IsBoolean() {
		return looseEquals(h, value.Double(toNumber(h, a)), b)
	}
	if b.IsBoolean() {
		return looseEquals(h, a, value.Double(toNumber(h, b)))
	}
	if isNumeric(a) && isStringLike(b) {
		return toNumber(h, a) == toNumber(h, b)
	}
	if isStringLike(a) && isNumeric(b) {
		return toNumber(h, a) == toNumber(h, b)
	}
	return false
}

func isNumeric(v value.Value) bool {
	return v.Kind() == value.KindSmallInt || v.Kind() == value.KindDouble
}

func isStringLike(v value.Value) bool {
	return v.Kind() == value.KindSmallString || v.Kind() == value.KindHeapString
}

/* -------------------------------------------------------------------------
   Arithmetic
   ------------------------------------------------------------------------- */

// numericAdd implements the `+` operator's string-concat-or-add dispatch
// (ECMA-262 §13.15.3): string concatenation wins if either operand is
// string-like, otherwise both operands coerce to Number.
func numericAdd(h *heap.Heap, a, b value.Value) value.Value {
	if isStringLike(a) || isStringLike(b) {
		s := toStringValue(h, a) + toStringValue(h, b)
		if sv, ok := value.SmallString(s); ok {
			return sv
		}
		return h.InternString(s)
	}
	return boxNumeric(a, b, toNumber(h, a)+toNumber(h, b))
}

// boxNumeric keeps the small-int fast path alive when both operands were
// small ints and the result still fits in int32, mirroring spec.md §3's
// small-integer inlining; every other case boxes as a double.
func boxNumeric(a, b value.Value, f float64) value.Value {
	if a.Kind() == value.KindSmallInt && b.Kind() == value.KindSmallInt {
		if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
			return value.Int(int32(f))
		}
	}
	return value.Double(f)
}

func numericSub(h *heap.Heap, a, b value.Value) value.Value {
	return boxNumeric(a, b, toNumber(h, a)-toNumber(h, b))
}

func numericMul(h *heap.Heap, a, b value.Value) value.Value {
	return boxNumeric(a, b, toNumber(h, a)*toNumber(h, b))
}

func numericDiv(h *heap.Heap, a, b value.Value) value.Value {
	return value.Double(toNumber(h, a) / toNumber(h, b))
}

func numericMod(h *heap.Heap, a, b value.Value) value.Value {
	return value.Double(math.Mod(toNumber(h, a), toNumber(h, b)))
}

func numericExp(h *heap.Heap, a, b value.Value) value.Value {
	return value.Double(math.Pow(toNumber(h, a), toNumber(h, b)))
}

// compareLess reports whether a < b under ECMA-262's Abstract Relational
// Comparison, setting isUndefined when a NaN makes that comparison
// "undefined"; callers translate it per operator (OpLt wants less, etc.).
func compareLess(h *heap.Heap, a, b value.Value) (less bool, isUndefined bool) {
	if isStringLike(a) && isStringLike(b) {
		sa, sb := toStringValue(h, a), toStringValue(h, b)
		return sa < sb, false
	}
	na, nb := toNumber(h, a), toNumber(h, b)
	if math.IsNaN(na) || math.IsNaN(nb) {
		return false, true
	}
	return na < nb, false
}
