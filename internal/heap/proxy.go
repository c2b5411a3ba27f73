// This file implements Proxy's exotic trap dispatch (spec.md §4.7 "proxies'
// trap dispatch"), the sibling of Array's length override and TypedArray's
// integer-indexed override in methods.go/typedarray.go. Grounded on
// original_source/nova_vm/src/ecmascript/builtins/proxy.rs's per-trap
// ProxyGetPrototypeOf/ProxySet/ProxyHas/ProxyDefineOwnProperty/ProxyDelete/
// ProxyOwnPropertyKeys, each "call the trap if present, else forward to
// [[ProxyTarget]]" — collapsed here into one forwarding helper per method
// instead of one Rust fn per trap.
//
// internal/heap cannot call an arbitrary JavaScript function itself (that is
// internal/vm's job, and internal/vm imports internal/heap, not the other
// way around), so trap invocation goes through callHook, a function pointer
// internal/vm.NewRealm installs once at realm construction
// (SetCallHook(vm.Call)), wiring the collaborator in after construction.
package heap

import (
	"math"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// TrapCallFunc invokes fn(this, args) the way internal/vm.VM.Call does.
type TrapCallFunc func(fn, this value.Value, args []value.Value) (result, thrown value.Value, ok bool)

// SetCallHook installs the collaborator Proxy trap dispatch calls into.
// Scripts that never construct a Proxy never need it; a nil hook makes every
// trap lookup behave as "absent", forwarding straight to the proxy's target,
// which is also the correct behavior for a trap that genuinely is absent.
func (h *Heap) SetCallHook(fn TrapCallFunc) { h.callHook = fn }

func (h *Heap) trapFor(handler value.Value, name string) (value.Value, bool) {
	trap, _, _ := h.Get(handler, h.PropertyKeyFor(name))
	return trap, h.callHook != nil && trap.Kind().IsCallable()
}

// PropertyKeyToValue renders a PropertyKey back into the Value a trap
// function receives as its key argument (ECMA-262 traps always see a
// string or symbol, never the engine's internal key encoding).
func (h *Heap) PropertyKeyToValue(k value.PropertyKey) value.Value {
	if k.IsSymbol() {
		return value.FromHandle(value.KindSymbol, k.SymbolHandle())
	}
	s := h.PropertyKeyString(k)
	if sv, ok := value.SmallString(s); ok {
		return sv
	}
	return h.InternString(s)
}

// valueToPropertyKey is PropertyKeyToValue's inverse, used to fold a trap's
// returned key list (ownKeys) back into PropertyKeys.
func (h *Heap) valueToPropertyKey(v value.Value) value.PropertyKey {
	if v.Kind() == value.KindSymbol {
		return value.SymbolKey(v.Handle())
	}
	return h.PropertyKeyFor(h.StringValue(v))
}

// truthy is the narrow ToBoolean a trap's boolean-ish return value
// (has/deleteProperty/defineProperty/preventExtensions) needs; full ToBoolean
// coercion lives in internal/vm (spec.md §4.6), out of reach from this
// package, so this covers the kinds a trap function can plausibly return
// directly and treats every object-like kind as truthy same as ToBoolean
// does.
func truthy(v value.Value) bool {
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
	default:
		return true
	}
}

func (h *Heap) proxyGet(v value.Value, key value.PropertyKey) (value.Value, value.Value, bool) {
	pd := h.ProxyData(v)
	if pd.Revoked {
		return value.Undefined, value.Value{}, false
	}
	trap, has := h.trapFor(pd.Handler, "get")
	if !has {
		return h.Get(pd.Target, key)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target, h.PropertyKeyToValue(key), v})
	if !ok {
		return value.Undefined, value.Value{}, false
	}
	return res, value.Value{}, false
}

func (h *Heap) proxySet(recv value.Value, key value.PropertyKey, val value.Value) (bool, value.Value, bool) {
	pd := h.ProxyData(recv)
	if pd.Revoked {
		return false, value.Value{}, false
	}
	trap, has := h.trapFor(pd.Handler, "set")
	if !has {
		return h.Set(pd.Target, key, val)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target, h.PropertyKeyToValue(key), val, recv})
	if !ok {
		return false, value.Value{}, false
	}
	return truthy(res), value.Value{}, false
}

func (h *Heap) proxyHasProperty(v value.Value, key value.PropertyKey) bool {
	pd := h.ProxyData(v)
	if pd.Revoked {
		return false
	}
	trap, has := h.trapFor(pd.Handler, "has")
	if !has {
		return h.HasProperty(pd.Target, key)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target, h.PropertyKeyToValue(key)})
	return ok && truthy(res)
}

func (h *Heap) proxyDefineOwnProperty(v value.Value, key value.PropertyKey, desc object.PropertyDescriptor) bool {
	pd := h.ProxyData(v)
	if pd.Revoked {
		return false
	}
	trap, has := h.trapFor(pd.Handler, "defineProperty")
	if !has {
		return h.DefineOwnProperty(pd.Target, key, desc)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target, h.PropertyKeyToValue(key), h.descriptorToObject(desc)})
	return ok && truthy(res)
}

func (h *Heap) proxyDelete(v value.Value, key value.PropertyKey) bool {
	pd := h.ProxyData(v)
	if pd.Revoked {
		return false
	}
	trap, has := h.trapFor(pd.Handler, "deleteProperty")
	if !has {
		return h.Delete(pd.Target, key)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target, h.PropertyKeyToValue(key)})
	return ok && truthy(res)
}

func (h *Heap) proxyOwnPropertyKeys(v value.Value) []value.PropertyKey {
	pd := h.ProxyData(v)
	if pd.Revoked {
		return nil
	}
	trap, has := h.trapFor(pd.Handler, "ownKeys")
	if !has {
		return h.OwnPropertyKeys(pd.Target)
	}
	res, _, ok := h.callHook(trap, pd.Handler, []value.Value{pd.Target})
	if !ok || res.Kind() != value.KindArray {
		return nil
	}
	arr := h.arrays.Get(res.Handle())
	keys := make([]value.PropertyKey, 0, arr.Length)
	for i := uint32(0); i < arr.Length; i++ {
		keys = append(keys, h.valueToPropertyKey(h.GetArrayIndex(res, i)))
	}
	return keys
}

// descriptorToObject renders a PropertyDescriptor into the plain data object
// a defineProperty trap expects to receive, per ECMA-262's
// FromPropertyDescriptor. Built with a null prototype: the trap only ever
// reads named data properties off it, so it does not need %Object.prototype%
// (which this package, unlike internal/vm's Realm, does not have a handle
// to).
func (h *Heap) descriptorToObject(desc object.PropertyDescriptor) value.Value {
	o := h.NewOrdinaryObject(value.Null, true)
	set := func(name string, val value.Value) {
		h.DefineOwnProperty(o, h.PropertyKeyFor(name), object.PropertyDescriptor{
			Value: val,
			Attr:  shape.Attr{Writable: true, Enumerable: true, Configurable: true},
		})
	}
	if desc.HasGet || desc.HasSet {
		set("get", desc.Getter)
		set("set", desc.Setter)
	} else {
		set("value", desc.Value)
		set("writable", value.Bool(desc.Attr.Writable))
	}
	set("enumerable", value.Bool(desc.Attr.Enumerable))
	set("configurable", value.Bool(desc.Attr.Configurable))
	return o
}
