// propcache_test.go covers spec.md §4.3's offset encoding and the Table's
// insert/lookup/invalidate contract, using plain ints/strings for the
// S (shape) and P (prototype) type parameters so the tests stay independent
// of internal/heap and internal/shape.
package propcache

import "testing"

func TestOffsetEncoding(t *testing.T) {
	self, ok := SelfOffset(5)
	if !ok {
		t.Fatalf("SelfOffset(5) should succeed")
	}
	if self.IsUnset() || self.IsPrototype() || self.IsCustomStorage() {
		t.Fatalf("SelfOffset should set no flag bits, got %016b", self)
	}
	if self.Index() != 5 {
		t.Fatalf("SelfOffset(5).Index() = %d, want 5", self.Index())
	}

	proto, ok := PrototypeOffset(9)
	if !ok || !proto.IsPrototype() || proto.IsUnset() {
		t.Fatalf("PrototypeOffset(9) should set only the prototype bit")
	}
	if proto.Index() != 9 {
		t.Fatalf("PrototypeOffset(9).Index() = %d, want 9", proto.Index())
	}

	custom := self.WithCustomStorage()
	if !custom.IsCustomStorage() || custom.Index() != 5 {
		t.Fatalf("WithCustomStorage should only set the custom bit, index unchanged")
	}

	if !Unset.IsUnset() {
		t.Fatalf("Unset sentinel must report IsUnset() true")
	}
}

func TestOffsetOverflowRejected(t *testing.T) {
	if _, ok := SelfOffset(MaxIndex + 1); ok {
		t.Fatalf("SelfOffset should reject an index past the 13-bit field")
	}
	if _, ok := PrototypeOffset(MaxIndex + 1); ok {
		t.Fatalf("PrototypeOffset should reject an index past the 13-bit field")
	}
}

func TestTableInsertSelfThenLookupHits(t *testing.T) {
	tbl := NewTable[string, int, int]()
	tbl.InsertSelf("a", 1 /* shape */, 0 /* index */)

	off, _, found := tbl.Lookup("a", 1)
	if !found {
		t.Fatalf("expected a cache hit for (key=a, shape=1)")
	}
	if off.IsPrototype() || off.Index() != 0 {
		t.Fatalf("got offset %016b, want a self-offset at index 0", off)
	}

	if _, _, found := tbl.Lookup("a", 2); found {
		t.Fatalf("shape=2 was never inserted; Lookup should miss")
	}
	hits, misses, _ := tbl.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("hits=%d misses=%d, want 1/1", hits, misses)
	}
}

func TestTableInsertPrototypeRoundTrips(t *testing.T) {
	tbl := NewTable[string, int, string]()
	tbl.InsertPrototype("m", 10 /* instance shape */, 3, "FProto")

	off, proto, found := tbl.Lookup("m", 10)
	if !found || !off.IsPrototype() || proto != "FProto" {
		t.Fatalf("got off=%016b proto=%q found=%v, want prototype hit at FProto", off, proto, found)
	}
}

func TestTableOverflowIndexBypassesCache(t *testing.T) {
	tbl := NewTable[string, int, int]()
	tbl.InsertSelf("k", 1, MaxIndex+1)

	if _, _, found := tbl.Lookup("k", 1); found {
		t.Fatalf("an offset that overflowed 13 bits must never be cached")
	}
	_, _, evictions := tbl.Stats()
	if evictions != 1 {
		t.Fatalf("overflow insert should count as an eviction, got %d", evictions)
	}
}

// spec.md §4.3's invalidation-on-addition rule: an unset or prototype-chain
// entry for a key gets redirected or evicted when that key is newly defined
// closer to the receiver.
func TestInvalidateRedirectsUnsetEntryToNewSelfOffset(t *testing.T) {
	tbl := NewTable[string, int, int]()
	tbl.InsertUnset("m", 7)

	tbl.Invalidate("m", func(shape int, off Offset, proto int) (Offset, int, bool) {
		if shape != 7 || !off.IsUnset() {
			t.Fatalf("unexpected entry shape=%d off=%016b during invalidate", shape, off)
		}
		newOff, ok := SelfOffset(2)
		return newOff, 0, ok
	})

	off, _, found := tbl.Lookup("m", 7)
	if !found || off.IsUnset() || off.Index() != 2 {
		t.Fatalf("after invalidation, expected a self-offset at index 2, got off=%016b found=%v", off, found)
	}
}

func TestInvalidateEvictsWhenPredicateReportsFalse(t *testing.T) {
	tbl := NewTable[string, int, int]()
	tbl.InsertSelf("p", 1, 0)

	tbl.Invalidate("p", func(int, Offset, int) (Offset, int, bool) {
		return 0, 0, false
	})

	if _, _, found := tbl.Lookup("p", 1); found {
		t.Fatalf("entry should have been evicted, not just updated")
	}
}

// spec.md §8 scenario 3: a self-property addition must invalidate a
// previously cached prototype hit so the next read observes the own
// property rather than a stale prototype offset.
func TestInvalidateOnOwnPropertyAdditionEvictsStalePrototypeHit(t *testing.T) {
	tbl := NewTable[string, int, int]()
	tbl.InsertPrototype("m", 5 /* instance shape */, 3, 99 /* F.prototype */)

	tbl.Invalidate("m", func(shape int, off Offset, proto int) (Offset, int, bool) {
		if shape != 5 {
			return off, proto, true
		}
		// m is now a direct own property; any existing prototype-chain hit
		// for this shape is stale and must be evicted.
		return 0, 0, false
	})

	if _, _, found := tbl.Lookup("m", 5); found {
		t.Fatalf("stale prototype-hit entry should have been evicted after the own-property addition")
	}
}
