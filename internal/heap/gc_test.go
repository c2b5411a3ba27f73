// gc_test.go covers spec.md §4.1's collection-transparency property
// ("running ops against H then triggering collection produces H' such that
// get(handle) = get_before(handle) for every handle alive in the scoped
// root set") and §8's implicit requirement that compaction rewrites
// cross-object references consistently.
package heap

import (
	"testing"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

func dataDesc(v value.Value) object.PropertyDescriptor {
	return object.PropertyDescriptor{
		Value: v,
		Attr:  shape.Attr{Writable: true, Enumerable: true, Configurable: true},
	}
}

func TestForceGCPreservesRootedObjectProperties(t *testing.T) {
	h := New(WithGCThreshold(1 << 30)) // never trip Safepoint's own threshold

	h.EnterScope()
	defer h.ExitScope()

	// Garbage allocated *before* the rooted object, so sweeping it away
	// forces compaction to actually shift the rooted object's handle down
	// rather than leaving it untouched at the front of the arena.
	for i := 0; i < 25; i++ {
		h.NewOrdinaryObject(value.Null, false)
	}

	o := h.Root(h.NewOrdinaryObject(value.Null, false))
	key := h.PropertyKeyFor("a")
	if !h.DefineOwnProperty(o, key, dataDesc(value.Int(42))) {
		t.Fatalf("DefineOwnProperty(a) failed")
	}

	for i := 0; i < 25; i++ {
		h.NewOrdinaryObject(value.Null, false)
	}

	h.ForceGC(nil)

	got, _, _ := h.Get(o, key)
	if got.Kind() != value.KindSmallInt || got.AsInt32() != 42 {
		t.Fatalf("after GC, o.a = %v, want small int 42 (handle rewrite must preserve identity+data)", got)
	}
}

// A rooted object that references another rooted object (a cross-arena
// Value stored in the first object's Values vector) must still resolve
// correctly after compaction renumbers both objects' handles.
func TestForceGCRewritesCrossObjectReferences(t *testing.T) {
	h := New(WithGCThreshold(1 << 30))

	h.EnterScope()
	defer h.ExitScope()

	for i := 0; i < 25; i++ {
		h.NewOrdinaryObject(value.Null, false)
	}

	target := h.Root(h.NewOrdinaryObject(value.Null, false))
	tkey := h.PropertyKeyFor("marker")
	h.DefineOwnProperty(target, tkey, dataDesc(value.Int(7)))

	for i := 0; i < 25; i++ {
		h.NewOrdinaryObject(value.Null, false)
	}

	holder := h.Root(h.NewOrdinaryObject(value.Null, false))
	hkey := h.PropertyKeyFor("ref")
	h.DefineOwnProperty(holder, hkey, dataDesc(target))

	for i := 0; i < 25; i++ {
		h.NewOrdinaryObject(value.Null, false)
	}

	h.ForceGC(nil)

	refVal, _, _ := h.Get(holder, hkey)
	if refVal.Kind() != value.KindObject {
		t.Fatalf("holder.ref kind = %v after GC, want KindObject", refVal.Kind())
	}
	marker, _, _ := h.Get(refVal, tkey)
	if marker.Kind() != value.KindSmallInt || marker.AsInt32() != 7 {
		t.Fatalf("holder.ref.marker = %v after GC, want small int 7 (cross-object reference not rewritten correctly)", marker)
	}
}

func TestSafepointTriggersCollectionPastThreshold(t *testing.T) {
	h := New(WithGCThreshold(8))

	h.EnterScope()
	defer h.ExitScope()

	o := h.Root(h.NewOrdinaryObject(value.Null, false))
	key := h.PropertyKeyFor("x")
	h.DefineOwnProperty(o, key, dataDesc(value.Int(1)))

	for i := 0; i < 20; i++ {
		h.NewOrdinaryObject(value.Null, false)
		h.Safepoint(nil)
	}

	got, _, _ := h.Get(o, key)
	if got.Kind() != value.KindSmallInt || got.AsInt32() != 1 {
		t.Fatalf("o.x = %v after repeated Safepoint-triggered collections, want small int 1", got)
	}
}
