// This file implements the ordinary/exotic internal-methods contract from
// spec.md §4.7: GetPrototypeOf, SetPrototypeOf, IsExtensible,
// PreventExtensions, GetOwnProperty, DefineOwnProperty, HasProperty, Get,
// Set, Delete, and OwnPropertyKeys, plus the Array-length exotic override.
// Every algorithm here is grounded on
// original_source/nova_vm/src/ecmascript/builtins/ordinary.rs, translated
// from Rust's Option/Result idiom into Go's (value, ok) / (value, thrown,
// ok) return pairs.
package heap

import (
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/propcache"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// GetPrototypeOf implements OrdinaryGetPrototypeOf (ECMA-262 §10.1.1).
func (h *Heap) GetPrototypeOf(v value.Value) (value.Value, bool) {
	if v.Kind() == value.KindProxy {
		p := h.ProxyData(v)
		if p.Revoked {
			return value.Value{}, false
		}
		return h.GetPrototypeOf(p.Target)
	}
	id, ok := h.ShapeOf(v)
	if !ok {
		return value.Null, true
	}
	proto, hasProto := h.Shapes.Prototype(id)
	if !hasProto {
		return value.Null, true
	}
	return proto, true
}

// SetPrototypeOf implements OrdinarySetPrototypeOf (ECMA-262 §10.1.2),
// producing a new shape via spec.md §4.2's set_prototype and invalidating
// any property cache entries that named v as their cached prototype.
func (h *Heap) SetPrototypeOf(v, newProto value.Value, hasProto bool) bool {
	o := h.ordinaryOf(v)
	if o == nil {
		return false
	}
	current, curHas := h.Shapes.Prototype(o.Shape)
	if curHas == hasProto && (!hasProto || current == newProto) {
		return true // no-op per ECMA-262's SameValue short circuit
	}
	if !o.Extensible {
		return false
	}
	next := h.Shapes.SetPrototype(o.Shape, newProto, hasProto)
	o.Shape = next
	h.metrics.IncShapeTransition()
	h.invalidateCachesForPrototypeChange(v)
	return true
}

// IsExtensible implements OrdinaryIsExtensible.
func (h *Heap) IsExtensible(v value.Value) bool {
	o := h.ordinaryOf(v)
	if o == nil {
		return false
	}
	return o.Extensible
}

// PreventExtensions implements OrdinaryPreventExtensions.
func (h *Heap) PreventExtensions(v value.Value) bool {
	o := h.ordinaryOf(v)
	if o == nil {
		return false
	}
	o.Extensible = false
	return true
}

// GetOwnProperty implements OrdinaryGetOwnProperty plus the Array-length
// and TypedArray integer-indexed exotic overrides (spec.md §4.7).
func (h *Heap) GetOwnProperty(v value.Value, key value.PropertyKey) (object.PropertyDescriptor, bool) {
	if v.Kind() == value.KindArray && key.IsString() && h.PropertyKeyString(key) == "length" {
		arr := h.arrays.Get(v.Handle())
		return object.PropertyDescriptor{
			Value: value.Int(int32(arr.Length)),
			Attr:  shape.Attr{Writable: true, Enumerable: false, Configurable: false},
		}, true
	}
	if v.Kind() == value.KindTypedArray {
		if key.IsString() && h.PropertyKeyString(key) == "length" {
			td := h.typedArrays.Get(v.Handle())
			return object.PropertyDescriptor{
				Value: value.Int(int32(td.ArrayLength)),
				Attr:  shape.Attr{Writable: false, Enumerable: false, Configurable: false},
			}, true
		}
		if d, ok := h.getTypedArrayElement(v, key); ok {
			return object.PropertyDescriptor{
				Value: d,
				Attr:  shape.Attr{Writable: true, Enumerable: true, Configurable: true},
			}, true
		}
	}
	o := h.ordinaryOf(v)
	if o == nil {
		return object.PropertyDescriptor{}, false
	}
	if idx, attr, ok := h.Shapes.IndexOf(o.Shape, key); ok {
		return object.PropertyDescriptor{Value: o.Values[idx], Attr: attr}, true
	}
	if o.Custom != nil {
		if d, ok := o.Custom[key]; ok {
			return *d, true
		}
	}
	return object.PropertyDescriptor{}, false
}

// DefineOwnProperty implements OrdinaryDefineOwnProperty for the common
// "create or overwrite a data property" path used by object literals,
// class field initialization, and Object.defineProperty with a data
// descriptor. It drives the shape transition DAG (spec.md §4.2) and the
// cache-invalidation rule for prototype-chain changes (spec.md §4.3).
func (h *Heap) DefineOwnProperty(v value.Value, key value.PropertyKey, desc object.PropertyDescriptor) bool {
	if v.Kind() == value.KindProxy {
		return h.proxyDefineOwnProperty(v, key, desc)
	}
	if v.Kind() == value.KindTypedArray && key.IsInteger() {
		// IntegerIndexedElementSet: an in-range index writes through to the
		// backing buffer and never touches the shape; an out-of-range index
		// is a silent no-op (ECMA-262 returns undefined rather than throwing).
		h.setTypedArrayElement(v, key, desc.Value)
		return true
	}
	o := h.ordinaryOf(v)
	if o == nil {
		return false
	}
	if idx, _, ok := h.Shapes.IndexOf(o.Shape, key); ok {
		o.Values[idx] = desc.Value
		return true
	}
	if !o.Extensible {
		return false
	}
	if desc.Attr.Accessor || key.IsSymbol() || key.IsInteger() {
		if o.Custom == nil {
			o.Custom = make(map[value.PropertyKey]*object.PropertyDescriptor)
		}
		d := desc
		o.Custom[key] = &d
		return true
	}
	next, idx, isNew := h.Shapes.AddProperty(o.Shape, key, desc.Attr)
	o.Shape = next
	if idx >= uint32(len(o.Values)) {
		newValues := make([]value.Value, idx+1)
		copy(newValues, o.Values)
		o.Values = newValues
	}
	o.Values[idx] = desc.Value
	if isNew {
		h.metrics.IncShapeTransition()
		h.invalidateCacheForKey(v, key)
	}
	return true
}

// Delete implements OrdinaryDelete: removes a configurable own property,
// transitioning to the shape spec.md §4.2's remove_property produces and
// shifting the value vector to match.
func (h *Heap) Delete(v value.Value, key value.PropertyKey) bool {
	if v.Kind() == value.KindProxy {
		return h.proxyDelete(v, key)
	}
	o := h.ordinaryOf(v)
	if o == nil {
		return false
	}
	idx, attr, ok := h.Shapes.IndexOf(o.Shape, key)
	if !ok {
		if o.Custom != nil {
			if d, present := o.Custom[key]; present && d.Attr.Configurable {
				delete(o.Custom, key)
				return true
			}
		}
		return true // absent keys delete successfully per ECMA-262
	}
	if !attr.Configurable {
		return false
	}
	next, removedIdx, _ := h.Shapes.RemoveProperty(o.Shape, key)
	o.Shape = next
	o.Values = append(o.Values[:removedIdx], o.Values[removedIdx+1:]...)
	h.metrics.IncShapeTransition()
	// key itself identifies the affected cache entries directly; reading it
	// back from the post-removal shape would miss it (it's no longer there).
	h.invalidateCacheForKey(v, key)
	return true
}

// HasProperty implements OrdinaryHasProperty: walks the prototype chain,
// consulting the property cache first (spec.md §4.3's lookup()).
func (h *Heap) HasProperty(v value.Value, key value.PropertyKey) bool {
	if v.Kind() == value.KindProxy {
		return h.proxyHasProperty(v, key)
	}
	_, _, found := h.resolveProperty(v, key)
	return found
}

// OwnPropertyKeys returns v's own keys grouped as ECMA-262 §10.1.11 groups
// them: integer keys, then string keys (the shape's keys in insertion
// order, followed by string keys held in Custom), then symbol keys. Integer
// and symbol keys, and Custom's string keys, come from iterating the Custom
// map, so their order within each group is not defined; integer keys are
// not sorted.
func (h *Heap) OwnPropertyKeys(v value.Value) []value.PropertyKey {
	if v.Kind() == value.KindProxy {
		return h.proxyOwnPropertyKeys(v)
	}
	o := h.ordinaryOf(v)
	if o == nil {
		return nil
	}
	var ints, strs, syms []value.PropertyKey
	for _, k := range h.Shapes.Keys(o.Shape) {
		strs = append(strs, k)
	}
	for k := range o.Custom {
		switch {
		case k.IsInteger():
			ints = append(ints, k)
		case k.IsSymbol():
			syms = append(syms, k)
		default:
			strs = append(strs, k)
		}
	}
	out := make([]value.PropertyKey, 0, len(ints)+len(strs)+len(syms))
	out = append(out, ints...)
	out = append(out, strs...)
	out = append(out, syms...)
	return out
}

/* -------------------------------------------------------------------------
   Get / Set with property-lookup caches (spec.md §4.3)
   ------------------------------------------------------------------------- */

// resolveProperty finds key starting at v, walking the prototype chain, and
// reports which object it was found on (for Set's receiver-vs-holder
// distinction). It does not consult or populate the cache; callers that
// have a cache slot should use GetCached/SetCached instead.
func (h *Heap) resolveProperty(v value.Value, key value.PropertyKey) (object.PropertyDescriptor, value.Value, bool) {
	cur := v
	for {
		if d, ok := h.GetOwnProperty(cur, key); ok {
			return d, cur, true
		}
		proto, ok := h.GetPrototypeOf(cur)
		if !ok || proto.IsNull() {
			return object.PropertyDescriptor{}, value.Value{}, false
		}
		cur = proto
	}
}

// Get implements the Get(O, P) abstract operation for an ordinary receiver,
// using the monomorphic inline cache described in spec.md §4.3. When the
// resolved property is an accessor, Get does not call it — it reports the
// getter function via (accessor, true) and leaves invocation to the caller
// (internal/vm), which alone knows how to push a call frame; a getter-less
// accessor reports (value.Undefined, value.Value{}, false) same as a plain
// missing property. thrown is populated (ok=false) only via GetV, which
// additionally handles a nullish receiver (spec.md §6 "TypeError on null.x").
func (h *Heap) Get(receiver value.Value, key value.PropertyKey) (result value.Value, accessor value.Value, hasAccessor bool) {
	if receiver.Kind() == value.KindProxy {
		return h.proxyGet(receiver, key)
	}
	shapeID, isObject := h.ShapeOf(receiver)
	if !isObject {
		return value.Undefined, value.Value{}, false
	}
	if off, proto, found := h.Props.Lookup(key, shapeID); found {
		h.metrics.IncPropCacheHit()
		if off.IsUnset() {
			return value.Undefined, value.Value{}, false
		}
		target := receiver
		if off.IsPrototype() {
			target = proto
		}
		if d, ok := h.getByOffset(target, off); ok {
			return d, value.Value{}, false
		}
	}
	h.metrics.IncPropCacheMiss()
	desc, holder, found := h.resolveProperty(receiver, key)
	if !found {
		h.Props.InsertUnset(key, shapeID)
		return value.Undefined, value.Value{}, false
	}
	if desc.HasGet {
		if !desc.Getter.IsUndefined() {
			return value.Undefined, desc.Getter, true
		}
		return value.Undefined, value.Value{}, false
	}
	if holder == receiver {
		if idx, _, ok := h.Shapes.IndexOf(shapeID, key); ok {
			h.Props.InsertSelf(key, shapeID, idx)
		}
	} else if holderShape, ok := h.ShapeOf(holder); ok {
		if idx, _, ok := h.Shapes.IndexOf(holderShape, key); ok {
			h.Props.InsertPrototype(key, shapeID, idx, holder)
		}
	}
	return desc.Value, value.Value{}, false
}

// getByOffset reads the value an already-resolved Offset names, used on the
// cache-hit fast path. Custom-storage offsets (symbol/integer keys) are not
// cached at all — InsertSelf/InsertPrototype only ever encode a shape
// vector index — so this only needs the ordinary values-vector path.
func (h *Heap) getByOffset(target value.Value, off propcache.Offset) (value.Value, bool) {
	o := h.ordinaryOf(target)
	if o == nil || off.IsCustomStorage() {
		return value.Value{}, false
	}
	idx := off.Index()
	if int(idx) >= len(o.Values) {
		return value.Value{}, false
	}
	return o.Values[idx], true
}

// GetV implements the spec.md §6 "TypeError on null.x" scenario: GetV
// throws when the receiver is nullish, unlike Get, which is only ever
// invoked once an object-like receiver is already established. A resolved
// accessor is reported the same way Get reports it, via the returned
// (accessor, hasAccessor) pair riding along with the ok=true result.
func (h *Heap) GetV(receiver value.Value, keyName string, errorProto value.Value) (result value.Value, accessor value.Value, hasAccessor bool, thrown value.Value, ok bool) {
	if receiver.IsNullish() {
		msg := "Cannot read properties of " + receiver.TypeOf() + " (reading '" + keyName + "')"
		return value.Value{}, value.Value{}, false, h.NewError(errorProto, object.ErrorType, msg, ""), false
	}
	key := h.PropertyKeyFor(keyName)
	result, accessor, hasAccessor = h.Get(receiver, key)
	return result, accessor, hasAccessor, value.Value{}, true
}

// Set implements the Set(O, P, V, Receiver) abstract operation's ordinary
// path (OrdinarySet), writing through the same cache Get populates. When an
// inherited accessor setter is found up the prototype chain, Set does not
// call it — it reports the setter via (value.Value{}, setter, true) exactly
// the way Get reports a getter, leaving invocation to internal/vm. Writing
// through a getter-only accessor (no setter) is a silent no-op, matching
// non-strict-mode ECMA-262 semantics; esvm does not track strict-mode
// per-function, so this is the one behavior offered (spec.md §9, recorded
// in DESIGN.md).
func (h *Heap) Set(receiver value.Value, key value.PropertyKey, v value.Value) (ok bool, setter value.Value, hasSetter bool) {
	if receiver.Kind() == value.KindProxy {
		return h.proxySet(receiver, key, v)
	}
	shapeID, isObject := h.ShapeOf(receiver)
	if !isObject {
		return false, value.Value{}, false
	}
	if off, _, found := h.Props.Lookup(key, shapeID); found && !off.IsUnset() && !off.IsPrototype() {
		h.metrics.IncPropCacheHit()
		o := h.ordinaryOf(receiver)
		idx := off.Index()
		if int(idx) < len(o.Values) {
			o.Values[idx] = v
			return true, value.Value{}, false
		}
	}
	h.metrics.IncPropCacheMiss()
	if desc, _, found := h.resolveProperty(receiver, key); found {
		if desc.HasSet {
			if desc.Setter.IsUndefined() {
				return true, value.Value{}, false
			}
			return false, desc.Setter, true
		}
		if desc.HasGet {
			return true, value.Value{}, false // getter-only: silent no-op
		}
	}
	return h.DefineOwnProperty(receiver, key, object.PropertyDescriptor{
		Value: v,
		Attr:  shape.Attr{Writable: true, Enumerable: true, Configurable: true},
	}), value.Value{}, false
}
