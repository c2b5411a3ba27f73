// transition_test.go covers spec.md §4.2's dedup-by-structural-identity
// policy and the three transition operations (add/remove/set-prototype)
// the property-lookup cache invalidation rules in §4.3 depend on.
package shape

import (
	"testing"

	"github.com/Voskan/esvm/internal/value"
)

func dataAttr() Attr { return Attr{Writable: true, Enumerable: true, Configurable: true} }

func TestAddPropertySameKeyAndAttrsReusesTransitionEdge(t *testing.T) {
	g := NewGraph()
	root := g.RootShape(value.Null, false)

	keyA, _ := value.SmallStringKey("a")
	s1, idx1, isNew1 := g.AddProperty(root, keyA, dataAttr())
	if !isNew1 || idx1 != 0 {
		t.Fatalf("first AddProperty: isNew=%v idx=%d, want true/0", isNew1, idx1)
	}

	s2, idx2, isNew2 := g.AddProperty(root, keyA, dataAttr())
	if isNew2 {
		t.Fatalf("second AddProperty with identical (key, attrs) should follow the existing edge, not allocate")
	}
	if s1 != s2 {
		t.Fatalf("two objects adding the same (key, attrs) from the same root should land on the same shape")
	}
	if idx2 != idx1 {
		t.Fatalf("reused edge reported index %d, want %d", idx2, idx1)
	}
}

func TestAddPropertyDifferentAttrsAllocatesDistinctShape(t *testing.T) {
	g := NewGraph()
	root := g.RootShape(value.Null, false)
	keyA, _ := value.SmallStringKey("a")

	writable, _, _ := g.AddProperty(root, keyA, Attr{Writable: true, Enumerable: true, Configurable: true})
	readonly, _, _ := g.AddProperty(root, keyA, Attr{Writable: false, Enumerable: true, Configurable: true})

	if writable == readonly {
		t.Fatalf("differing attrs for the same key must not collapse onto one shape")
	}
}

// spec.md §8 scenario 1: `let o = { a: 1 }; o.b = 2; o.a` — adding `b` must
// preserve `a`'s existing offset in the successor shape.
func TestAddPropertyPreservesExistingOffsets(t *testing.T) {
	g := NewGraph()
	root := g.RootShape(value.Null, false)
	keyA, _ := value.SmallStringKey("a")
	keyB, _ := value.SmallStringKey("b")

	withA, idxA, _ := g.AddProperty(root, keyA, dataAttr())
	withAB, idxB, _ := g.AddProperty(withA, keyB, dataAttr())

	gotIdxA, _, ok := g.IndexOf(withAB, keyA)
	if !ok {
		t.Fatalf("key 'a' missing from the two-property shape")
	}
	if gotIdxA != idxA {
		t.Fatalf("'a' offset changed from %d to %d after adding 'b'", idxA, gotIdxA)
	}
	if idxB != 1 {
		t.Fatalf("'b' should be the second property (index 1), got %d", idxB)
	}
}

func TestRemovePropertyShiftsRemainingKeys(t *testing.T) {
	g := NewGraph()
	root := g.RootShape(value.Null, false)
	keyA, _ := value.SmallStringKey("a")
	keyB, _ := value.SmallStringKey("b")
	keyC, _ := value.SmallStringKey("c")

	s, _, _ := g.AddProperty(root, keyA, dataAttr())
	s, _, _ = g.AddProperty(s, keyB, dataAttr())
	s, _, _ = g.AddProperty(s, keyC, dataAttr())

	after, removedIdx, ok := g.RemoveProperty(s, keyB)
	if !ok {
		t.Fatalf("RemoveProperty(b) reported not found")
	}
	if removedIdx != 1 {
		t.Fatalf("removed index = %d, want 1", removedIdx)
	}
	if g.KeyCount(after) != 2 {
		t.Fatalf("key count after removal = %d, want 2", g.KeyCount(after))
	}
	idxC, _, ok := g.IndexOf(after, keyC)
	if !ok || idxC != 1 {
		t.Fatalf("'c' should shift down to index 1 after removing 'b', got idx=%d ok=%v", idxC, ok)
	}
	if _, _, ok := g.IndexOf(after, keyB); ok {
		t.Fatalf("removed key 'b' should no longer resolve")
	}
}

func TestSetPrototypePreservesKeysChangesProto(t *testing.T) {
	g := NewGraph()
	proto1, _ := value.SmallString("proto1")
	proto2, _ := value.SmallString("proto2")

	root := g.RootShape(proto1, true)
	keyA, _ := value.SmallStringKey("a")
	withA, _, _ := g.AddProperty(root, keyA, dataAttr())

	reparented := g.SetPrototype(withA, proto2, true)
	if g.KeyCount(reparented) != g.KeyCount(withA) {
		t.Fatalf("SetPrototype changed key count: %d vs %d", g.KeyCount(reparented), g.KeyCount(withA))
	}
	proto, hasProto := g.Prototype(reparented)
	if !hasProto || proto != proto2 {
		t.Fatalf("reparented shape's prototype = %v (hasProto=%v), want proto2", proto, hasProto)
	}
	if _, _, ok := g.IndexOf(reparented, keyA); !ok {
		t.Fatalf("'a' should still resolve after a prototype change")
	}
}

func TestRootShapeIsCanonicalPerPrototype(t *testing.T) {
	g := NewGraph()
	proto, _ := value.SmallString("shared-proto")

	r1 := g.RootShape(proto, true)
	r2 := g.RootShape(proto, true)
	if r1 != r2 {
		t.Fatalf("RootShape for the same prototype should return the same ID twice")
	}

	other := g.RootShape(value.Null, false)
	if r1 == other {
		t.Fatalf("RootShape for a different prototype should not collide")
	}
}
