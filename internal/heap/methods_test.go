// methods_test.go covers the property-lookup-cache invalidation rules of
// spec.md §4.3 (property removal and prototype change) plus the TypedArray
// and Proxy exotic-method overrides of spec.md §4.7.
package heap

import (
	"testing"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// Deleting a prototype's property must not leave a stale prototype-hit cache
// entry pointing at the index the prototype's remaining properties shift into.
func TestDeleteInvalidatesStalePrototypeCache(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))

	proto := h.NewOrdinaryObject(value.Null, true)
	mKey := h.PropertyKeyFor("m")
	bKey := h.PropertyKeyFor("b")
	if !h.DefineOwnProperty(proto, mKey, dataDesc(value.Int(42))) {
		t.Fatalf("define proto.m failed")
	}
	if !h.DefineOwnProperty(proto, bKey, dataDesc(value.Int(100))) {
		t.Fatalf("define proto.b failed")
	}

	x := h.NewOrdinaryObject(proto, true)
	if got, _, _ := h.Get(x, mKey); got.Kind() != value.KindSmallInt || got.AsInt32() != 42 {
		t.Fatalf("x.m = %v before delete, want 42", got)
	} // populates a PrototypeOffset cache entry for "m" against proto

	if !h.Delete(proto, mKey) {
		t.Fatalf("Delete(proto, m) failed")
	}

	got, _, _ := h.Get(x, mKey)
	if !got.IsUndefined() {
		t.Fatalf("x.m after delete = %v, want undefined (stale cache entry for the removed key was not evicted)", got)
	}
}

// Reparenting an object must invalidate cache entries recorded against keys
// it never owned itself, including entries with zero own properties.
func TestSetPrototypeOfInvalidatesStaleUnsetCache(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))

	v := h.NewOrdinaryObject(value.Null, true)
	r := h.NewOrdinaryObject(value.Null, true)
	if !h.SetPrototypeOf(r, v, true) {
		t.Fatalf("SetPrototypeOf(r, v) failed")
	}

	fooKey := h.PropertyKeyFor("foo")
	if got, _, _ := h.Get(r, fooKey); !got.IsUndefined() {
		t.Fatalf("r.foo = %v before foo exists anywhere, want undefined", got)
	} // populates an Unset cache entry for "foo" against r's shape

	vProto := h.NewOrdinaryObject(value.Null, true)
	h.DefineOwnProperty(vProto, fooKey, dataDesc(value.Int(99)))
	if !h.SetPrototypeOf(v, vProto, true) {
		t.Fatalf("SetPrototypeOf(v, vProto) failed")
	}

	got, _, _ := h.Get(r, fooKey)
	if got.Kind() != value.KindSmallInt || got.AsInt32() != 99 {
		t.Fatalf("r.foo after v gains a prototype providing foo = %v, want 99 (stale unset cache entry was not evicted)", got)
	}
}

func TestTypedArrayIntegerIndexedGetSet(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))

	buf := h.NewArrayBuffer(4)
	ta := h.NewTypedArray(value.Null, buf, object.ElemInt32, 0, 1)
	idx := value.IntegerKey(0)

	if !h.DefineOwnProperty(ta, idx, dataDesc(value.Int(1234))) {
		t.Fatalf("define ta[0] failed")
	}
	d, ok := h.GetOwnProperty(ta, idx)
	if !ok || d.Value.Kind() != value.KindSmallInt || d.Value.AsInt32() != 1234 {
		t.Fatalf("ta[0] = %+v, want 1234", d)
	}

	lengthDesc, ok := h.GetOwnProperty(ta, h.PropertyKeyFor("length"))
	if !ok || lengthDesc.Value.AsInt32() != 1 {
		t.Fatalf("ta.length = %+v, want 1", lengthDesc)
	}

	if _, ok := h.GetOwnProperty(ta, value.IntegerKey(5)); ok {
		t.Fatalf("out-of-range typed array index unexpectedly present")
	}
}

// fakeCallHook stands in for internal/vm.VM.Call, invoking only the builtin
// (native Go) callable kind the tests below construct their traps as.
func fakeCallHook(h *Heap) TrapCallFunc {
	return func(fn, this value.Value, args []value.Value) (value.Value, value.Value, bool) {
		if fn.Kind() != value.KindBuiltinFunction {
			return value.Undefined, value.Value{}, false
		}
		return h.FunctionData(fn).Native(this, args)
	}
}

func TestProxyGetDispatchesTrap(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))
	h.SetCallHook(fakeCallHook(h))

	target := h.NewOrdinaryObject(value.Null, true)
	handler := h.NewOrdinaryObject(value.Null, true)
	trap := h.NewBuiltinFunction(value.Null, "get", 3, func(_ value.Value, _ []value.Value) (value.Value, value.Value, bool) {
		return value.Int(7), value.Value{}, true
	})
	h.DefineOwnProperty(handler, h.PropertyKeyFor("get"), dataDesc(trap))

	p := h.NewProxy(target, handler)
	got, _, _ := h.Get(p, h.PropertyKeyFor("x"))
	if got.Kind() != value.KindSmallInt || got.AsInt32() != 7 {
		t.Fatalf("proxy get trap was not invoked: got %v", got)
	}
}

func TestProxyGetForwardsToTargetWithoutTrap(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))
	h.SetCallHook(fakeCallHook(h))

	target := h.NewOrdinaryObject(value.Null, true)
	key := h.PropertyKeyFor("x")
	h.DefineOwnProperty(target, key, dataDesc(value.Int(5)))
	handler := h.NewOrdinaryObject(value.Null, true) // no "get" trap installed

	p := h.NewProxy(target, handler)
	got, _, _ := h.Get(p, key)
	if got.Kind() != value.KindSmallInt || got.AsInt32() != 5 {
		t.Fatalf("proxy with no get trap should forward to target: got %v", got)
	}
}

func TestProxyHasPropertyAndDeleteDispatchTraps(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))
	h.SetCallHook(fakeCallHook(h))

	target := h.NewOrdinaryObject(value.Null, true)
	handler := h.NewOrdinaryObject(value.Null, true)
	hasTrap := h.NewBuiltinFunction(value.Null, "has", 2, func(_ value.Value, _ []value.Value) (value.Value, value.Value, bool) {
		return value.Bool(true), value.Value{}, true
	})
	deleteTrap := h.NewBuiltinFunction(value.Null, "deleteProperty", 2, func(_ value.Value, _ []value.Value) (value.Value, value.Value, bool) {
		return value.Bool(false), value.Value{}, true
	})
	h.DefineOwnProperty(handler, h.PropertyKeyFor("has"), dataDesc(hasTrap))
	h.DefineOwnProperty(handler, h.PropertyKeyFor("deleteProperty"), dataDesc(deleteTrap))

	p := h.NewProxy(target, handler)
	key := h.PropertyKeyFor("x")
	if !h.HasProperty(p, key) {
		t.Fatalf("has trap returned true, HasProperty should report true")
	}
	if h.Delete(p, key) {
		t.Fatalf("deleteProperty trap returned false, Delete should report false")
	}
}
