// This file implements the property-lookup-cache invalidation rules from
// spec.md §4.3, grounded on
// original_source/nova_vm/src/ecmascript/types/language/object/caches.rs:
// invalidate_caches_on_intrinsic_shape_property_addition walks every cached
// entry for the changed key and drops (a) entries recording "definitely
// absent anywhere in the chain" and (b) entries recording a prototype hit
// through the exact object whose own properties just changed, since the
// object's identity — not a shape value — is what a cached prototype
// points at. A closer shadowing prototype invalidates the same way: the
// farther hit becomes wrong the moment a nearer one is populated.
package heap

import (
	"github.com/Voskan/esvm/internal/propcache"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

// invalidateCacheForKey drops every cache entry recorded under key that
// names obj as its cached prototype holder, or that had recorded key as
// definitively unset anywhere in the chain. It implements the property
// addition and property removal rules of spec.md §4.3, where the affected
// key is already known to the caller (DefineOwnProperty's new key, Delete's
// removed key) rather than needing to be rediscovered from obj's
// post-mutation shape.
func (h *Heap) invalidateCacheForKey(obj value.Value, key value.PropertyKey) {
	h.Props.Invalidate(key, func(s shape.ID, off propcache.Offset, cachedProto value.Value) (propcache.Offset, value.Value, bool) {
		if off.IsUnset() {
			return 0, value.Value{}, false
		}
		if off.IsPrototype() && cachedProto == obj {
			return 0, value.Value{}, false
		}
		return off, cachedProto, true
	})
}

// invalidateCachesForPrototypeChange implements spec.md §4.3's
// prototype-change rule. Reparenting obj can stale-out cache entries
// recorded under keys obj never owned itself — a lookup may have resolved
// through obj further up some *other* object's chain before obj's own
// prototype changed what lay beyond it — so there is no single key, or even
// obj's own key set, to target; unset verdicts everywhere are suspect, since
// any of them could have stopped its chain walk at obj. This sweeps every
// entry in the table. It is conservative by design (it does not try to
// determine which shapes actually have obj in their prototype chain before
// invalidating) because the shape graph has no reverse "who points at this
// prototype" index; spec.md §9 notes this as an accepted engine-wide
// simplification rather than the original's targeted shape-set walk.
func (h *Heap) invalidateCachesForPrototypeChange(obj value.Value) {
	h.Props.InvalidateAll(func(s shape.ID, off propcache.Offset, cachedProto value.Value) (propcache.Offset, value.Value, bool) {
		if off.IsUnset() {
			return 0, value.Value{}, false
		}
		if off.IsPrototype() && cachedProto == obj {
			return 0, value.Value{}, false
		}
		return off, cachedProto, true
	})
}
