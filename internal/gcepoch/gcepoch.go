// Package gcepoch tracks the heap's collection cycles as a small ring of
// monotonically increasing generation IDs, so that weak references (property
// lookup caches, WeakMap/WeakSet, FinalizationRegistry targets) can tell
// whether the object they point at died in a collection they have not yet
// observed, without keeping the dead object's memory alive.
//
// Adapted from the teacher's internal/genring: a generation there owned an
// arena freed on rotation, remembered only by a ghost ID so CLOCK-Pro could
// still influence admission decisions. Here a generation owns a GC cycle's
// compaction shift tables (per spec.md §4.1) instead of an arena, and
// "rotation" is a collection cycle rather than a TTL/capacity trigger; the
// ghost ID becomes the stale-epoch marker a weak reference checks before
// dereferencing through a shift table that has since been discarded.
//
// © 2025 esvm authors. MIT License.
package gcepoch

import "sync/atomic"

const ringSize = 4

// cycle records one completed collection: the epoch it produced and, while
// still retained, the per-arena shift tables so weak references taken during
// that epoch can resolve to their rewritten index.
type cycle struct {
	epoch  uint32
	shifts map[string][]int32 // arena kind name -> old index -> new index
}

// Ring keeps the last few collection cycles' shift tables so that weak
// references created just before a collection can still be resolved without
// forcing every weak holder to re-validate synchronously during sweep.
type Ring struct {
	cycles    [ringSize]*cycle
	activeIdx int
	epochCtr  atomic.Uint32
}

// New constructs an empty epoch ring. Epoch 0 is reserved for "never
// collected"; the first real cycle is epoch 1.
func New() *Ring {
	r := &Ring{}
	r.epochCtr.Store(0)
	return r
}

// CurrentEpoch returns the epoch of the most recently completed collection
// (0 before the first gc()).
func (r *Ring) CurrentEpoch() uint32 {
	return r.epochCtr.Load()
}

// BeginCycle allocates the next epoch and rotates the ring, discarding the
// oldest retained cycle's shift tables (their weak references must have been
// resolved during that cycle's own sweep; anything still pointing at them by
// the time the ring wraps is a leaked root, which is a caller bug, not a
// gcepoch concern).
func (r *Ring) BeginCycle() uint32 {
	epoch := r.epochCtr.Add(1)
	r.activeIdx = (r.activeIdx + 1) % ringSize
	r.cycles[r.activeIdx] = &cycle{epoch: epoch, shifts: make(map[string][]int32)}
	return epoch
}

// RecordShift stores the shift table produced for one arena kind during the
// cycle currently being built (must be called between BeginCycle and
// EndCycle).
func (r *Ring) RecordShift(arenaKind string, shift []int32) {
	r.cycles[r.activeIdx].shifts[arenaKind] = shift
}

// Resolve rewrites an old index recorded at the given epoch using that
// cycle's shift table, if still retained. ok is false when the epoch has
// aged out of the ring (the shift table was discarded) or the arena kind was
// not touched that cycle; callers fall back to treating the weak reference
// as dead, matching spec.md §4.1's "visited with a separate predicate that
// returns None when the target died".
func (r *Ring) Resolve(epoch uint32, arenaKind string, oldIndex int32) (newIndex int32, ok bool) {
	for _, c := range r.cycles {
		if c == nil || c.epoch != epoch {
			continue
		}
		shift, present := c.shifts[arenaKind]
		if !present || int(oldIndex) >= len(shift) {
			return 0, false
		}
		ni := shift[oldIndex]
		return ni, ni >= 0
	}
	return 0, false
}
