// This file implements the mark-sweep-compact collector from spec.md §4.1:
// mark from roots, sweep each arena independently via Compact, then rewrite
// every surviving cross-arena Handle using the shift tables Compact
// returns. Grounded on the teacher's pkg/shard.go rotation logic (a shard
// decides when to roll to a new generation; a Heap decides when to run a
// collection) and on internal/gcepoch, itself adapted from
// internal/genring.
//
// Executables, Environments, interned strings and symbols are treated as
// permanent compile-time/program-lifetime artifacts and are never swept:
// nothing computes a numeric offset into them that compaction would need
// to rewrite, and Go's own collector already reclaims an Environment or
// Executable once the last FunctionData referencing it is gone. Only the
// object-like/exotic-kind arenas participate in mark-sweep-compact.
package heap

import (
	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// TryResult is the Continue/Break flow-control value spec.md's original
// Rust source returns from callbacks that walk a collection and may want to
// stop early (e.g. a for-in loop whose body breaks, or Array.prototype.some
// short-circuiting). Go has no equivalent sum type, so this struct plays
// the same role explicitly.
type TryResult[T any] struct {
	broke bool
	value T
}

// Continue wraps v as "keep iterating".
func Continue[T any](v T) TryResult[T] { return TryResult[T]{value: v} }

// Break signals "stop iterating now".
func Break[T any]() TryResult[T] { return TryResult[T]{broke: true} }

// IsBreak reports whether the callback asked to stop.
func (r TryResult[T]) IsBreak() bool { return r.broke }

// Value returns the wrapped value; meaningless if IsBreak().
func (r TryResult[T]) Value() T { return r.value }

// GcScope marks a call as one that may trigger a collection. Go cannot
// enforce the borrow-checker discipline spec.md §4.1 describes ("values not
// rooted in a NoGcScope/GcScope-tracked slot may be relocated or freed"),
// so this is a documentation-level marker: any internal/vm code that holds
// a value.Value across a call taking a GcScope must first root it with
// Heap.Root.
type GcScope struct{ h *Heap }

// NoGcScope marks a call as guaranteed not to allocate or collect; code
// holding raw Handles (e.g. a cached property offset paired with a
// just-looked-up object) may only do so across calls typed to take one.
type NoGcScope struct{ h *Heap }

// NewGcScope opens a GC-visible scope (see Heap.EnterScope) and returns a
// marker callees can request to signal they may allocate.
func (h *Heap) NewGcScope() GcScope {
	h.EnterScope()
	return GcScope{h: h}
}

// Close exits the scope GcScope.h.EnterScope opened.
func (s GcScope) Close() { s.h.ExitScope() }

// ForEachOwnProperty enumerates v's own properties, honoring a callback
// that may Break early (for-in/for-of bodies with `break`, Array methods
// like `some`/`find`).
func (h *Heap) ForEachOwnProperty(v value.Value, fn func(key value.PropertyKey, val value.Value) TryResult[struct{}]) {
	for _, key := range h.OwnPropertyKeys(v) {
		desc, ok := h.GetOwnProperty(v, key)
		if !ok {
			continue
		}
		if fn(key, desc.Value).IsBreak() {
			return
		}
	}
}

/* -------------------------------------------------------------------------
   Mark-sweep-compact
   ------------------------------------------------------------------------- */

type markSet struct {
	bitmaps map[string]*roaring.Bitmap
}

func newMarkSet() *markSet { return &markSet{bitmaps: make(map[string]*roaring.Bitmap)} }

func (m *markSet) bitmapFor(kind string) *roaring.Bitmap {
	bm, ok := m.bitmaps[kind]
	if !ok {
		bm = roaring.New()
		m.bitmaps[kind] = bm
	}
	return bm
}

// arenaKindOf maps a heap-resident Value's Kind to the arena name used for
// both the mark bitmap and the gcepoch shift-table key. Empty string means
// "not subject to collection" (strings, symbols, bigints).
func arenaKindOf(k value.Kind) string {
	switch k {
	case value.KindObject:
		return "objects"
	case value.KindArray:
		return "arrays"
	case value.KindArrayBuffer:
		return "buffers"
	case value.KindTypedArray:
		return "typedArrays"
	case value.KindBoundFunction, value.KindBuiltinFunction, value.KindECMAScriptFunction,
		value.KindConstructor, value.KindPromiseResolvingFunction, value.KindGeneratorFunction,
		value.KindProxyRevoker:
		return "functions"
	case value.KindProxy:
		return "proxies"
	case value.KindPromise:
		return "promises"
	case value.KindMap:
		return "maps"
	case value.KindSet:
		return "sets"
	case value.KindWeakMap:
		return "weakMaps"
	case value.KindWeakSet:
		return "weakSets"
	case value.KindWeakRef:
		return "weakRefs"
	case value.KindFinalizationRegistry:
		return "finalizationRegistries"
	case value.KindArrayIterator, value.KindStringIterator, value.KindMapIterator, value.KindSetIterator:
		return "iterators"
	case value.KindGeneratorObject:
		return "generators"
	case value.KindModuleNamespace:
		return "moduleNamespaces"
	case value.KindError:
		return "errors"
	case value.KindDate:
		return "dates"
	case value.KindRegExp:
		return "regexps"
	default:
		return ""
	}
}

// traceChildren returns every Value directly reachable from v, for the mark
// worklist. WeakMap/WeakSet/WeakRef/FinalizationRegistry entries are
// deliberately NOT traced here: a weak reference must never itself keep its
// target alive (spec.md §4.1's "visited with a separate predicate"), so
// those targets are only marked if some strong root reaches them too.
func (h *Heap) traceChildren(v value.Value) []value.Value {
	o := h.ordinaryOf(v)
	var children []value.Value
	if o != nil {
		children = append(children, o.Values...)
		for _, d := range o.Custom {
			children = append(children, d.Value)
			if d.HasGet {
				children = append(children, d.Getter)
			}
			if d.HasSet {
				children = append(children, d.Setter)
			}
		}
	}
	switch v.Kind() {
	case value.KindProxy:
		p := h.ProxyData(v)
		children = append(children, p.Target, p.Handler)
	case value.KindBoundFunction, value.KindBuiltinFunction, value.KindECMAScriptFunction,
		value.KindConstructor, value.KindPromiseResolvingFunction, value.KindGeneratorFunction:
		fd := h.FunctionData(v)
		children = append(children, fd.BoundTarget, fd.BoundThis, fd.HomeObject)
		children = append(children, fd.BoundArgs...)
		if fd.Closure != nil {
			fd.Closure.Values(func(cv value.Value) { children = append(children, cv) })
		}
	case value.KindPromise:
		p := h.PromiseData(v)
		children = append(children, p.Result)
		children = append(children, p.OnFulfilled...)
		children = append(children, p.OnRejected...)
	case value.KindMap:
		m := h.MapData(v)
		children = append(children, m.Keys...)
		children = append(children, m.Values...)
	case value.KindSet:
		children = append(children, h.SetData(v).Items...)
	case value.KindArrayIterator, value.KindStringIterator, value.KindMapIterator, value.KindSetIterator:
		children = append(children, h.IteratorData(v).Target)
	case value.KindGeneratorObject:
		g := h.generators.Get(v.Handle())
		if g.Closure != nil {
			g.Closure.Values(func(cv value.Value) { children = append(children, cv) })
		}
	case value.KindError:
		children = append(children, h.ErrorData(v).Errors...)
	}
	return children
}

// collect runs one mark-sweep-compact cycle. extraRoots are values the
// caller (internal/vm) holds in registers or on the operand stack right
// now, which are not yet pushed onto Heap.roots.
func (h *Heap) collect(extraRoots []value.Value) {
	epoch := h.Epochs.BeginCycle()
	h.logger.Debug("gc cycle begin", zap.Uint32("epoch", epoch))

	marks := newMarkSet()
	worklist := make([]value.Value, 0, len(h.roots)+len(extraRoots))
	worklist = append(worklist, h.roots...)
	worklist = append(worklist, extraRoots...)

	for len(worklist) > 0 {
		n := len(worklist) - 1
		v := worklist[n]
		worklist = worklist[:n]

		kind := arenaKindOf(v.Kind())
		if kind == "" {
			continue
		}
		bm := marks.bitmapFor(kind)
		idx := uint32(v.Handle())
		if bm.Contains(idx) {
			continue
		}
		bm.Add(idx)
		worklist = append(worklist, h.traceChildren(v)...)
	}

	h.sweepWeakTables(marks)

	shifts := make(map[string][]int32)
	compacted := int64(0)
	compacted += compactArena(h.objects, "objects", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.arrays, "arrays", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.buffers, "buffers", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.typedArrays, "typedArrays", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.functions, "functions", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.proxies, "proxies", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.promises, "promises", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.maps, "maps", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.sets, "sets", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.weakMaps, "weakMaps", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.weakSets, "weakSets", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.finalizationRegistries, "finalizationRegistries", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.iterators, "iterators", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.generators, "generators", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.moduleNamespaces, "moduleNamespaces", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.errors, "errors", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.dates, "dates", marks, h.Epochs, epoch, shifts)
	compacted += compactArena(h.regexps, "regexps", marks, h.Epochs, epoch, shifts)

	h.rewriteReferences(shifts)

	h.allocSinceGC = 0
	h.metrics.IncGCCycle()
	h.metrics.AddObjectsCompacted(compacted)
	h.logger.Debug("gc cycle end", zap.Uint32("epoch", epoch), zap.Int64("relocated", compacted))
}

// compactArena tombstones everything the mark phase did not visit for kind,
// compacts, records the resulting shift table for epoch so any weak
// reference taken during this cycle can still resolve (spec.md §4.1), and
// also deposits the same table into shifts so collect's caller-local
// rewriteReferences pass can use it before the cycle ends.
func compactArena[T any](a *arena.Arena[T], kind string, marks *markSet, epochs interface {
	RecordShift(string, []int32)
}, epoch uint32, shifts map[string][]int32) int64 {
	bm := marks.bitmapFor(kind)
	before := a.Len()
	shift := a.Compact(func(h arena.Handle) bool { return bm.Contains(uint32(h)) })
	epochs.RecordShift(kind, shift)
	shifts[kind] = shift
	after := a.Len()
	return int64(before - after)
}

/* -------------------------------------------------------------------------
   Post-compaction strong-reference rewrite (spec.md §4.1 "a second pass
   rewrites every surviving index field in every live object using the shift
   tables")
   ------------------------------------------------------------------------- */

// rewriteReferences walks every live arena entry plus h.roots and the
// Environment graph reachable from every live closure, rewriting each
// embedded Value to the post-compaction handle its target arena entry now
// lives at. It must run after every compactArena call in this cycle and
// before any other code observes the heap again: compactArena has already
// physically moved survivors, so any Value field still holding a
// pre-compaction handle is stale the instant this function returns.
func (h *Heap) rewriteReferences(shifts map[string][]int32) {
	rw := func(v value.Value) value.Value { return rewriteHandle(shifts, v) }

	h.objects.ForEachLive(func(_ arena.Handle, o *object.OrdinaryObject) { rewriteOrdinary(o, rw) })
	h.arrays.ForEachLive(func(_ arena.Handle, a *object.ArrayData) { rewriteOrdinary(&a.OrdinaryObject, rw) })
	h.typedArrays.ForEachLive(func(_ arena.Handle, t *object.TypedArrayData) {
		rewriteOrdinary(&t.OrdinaryObject, rw)
		if shift, ok := shifts["buffers"]; ok && int(t.Buffer) < len(shift) && shift[t.Buffer] >= 0 {
			t.Buffer = arena.Handle(shift[t.Buffer])
		}
	})
	h.functions.ForEachLive(func(_ arena.Handle, f *object.FunctionData) {
		rewriteOrdinary(&f.OrdinaryObject, rw)
		f.BoundTarget = rw(f.BoundTarget)
		f.BoundThis = rw(f.BoundThis)
		f.HomeObject = rw(f.HomeObject)
		f.SuperConstructor = rw(f.SuperConstructor)
		for i := range f.BoundArgs {
			f.BoundArgs[i] = rw(f.BoundArgs[i])
		}
	})
	h.proxies.ForEachLive(func(_ arena.Handle, p *object.ProxyData) {
		p.Target = rw(p.Target)
		p.Handler = rw(p.Handler)
	})
	h.promises.ForEachLive(func(_ arena.Handle, p *object.PromiseData) {
		rewriteOrdinary(&p.OrdinaryObject, rw)
		p.Result = rw(p.Result)
		for i := range p.OnFulfilled {
			p.OnFulfilled[i] = rw(p.OnFulfilled[i])
		}
		for i := range p.OnRejected {
			p.OnRejected[i] = rw(p.OnRejected[i])
		}
	})
	h.maps.ForEachLive(func(_ arena.Handle, m *object.MapData) {
		rewriteOrdinary(&m.OrdinaryObject, rw)
		for i := range m.Keys {
			m.Keys[i] = rw(m.Keys[i])
		}
		for i := range m.Values {
			m.Values[i] = rw(m.Values[i])
		}
	})
	h.sets.ForEachLive(func(_ arena.Handle, s *object.SetData) {
		rewriteOrdinary(&s.OrdinaryObject, rw)
		for i := range s.Items {
			s.Items[i] = rw(s.Items[i])
		}
	})
	h.weakMaps.ForEachLive(func(_ arena.Handle, wm *object.WeakMapData) {
		rewriteOrdinary(&wm.OrdinaryObject, rw)
		rewriteWeakEntries(wm.Entries, rw)
	})
	h.weakSets.ForEachLive(func(_ arena.Handle, ws *object.WeakSetData) {
		rewriteOrdinary(&ws.OrdinaryObject, rw)
		rewriteWeakEntries(ws.Entries, rw)
	})
	h.weakRefs.ForEachLive(func(_ arena.Handle, d *weakRefData) {
		if d.Alive {
			d.Target = rw(d.Target)
		}
	})
	h.finalizationRegistries.ForEachLive(func(_ arena.Handle, fr *finalizationRegistryData) {
		rewriteOrdinary(&fr.OrdinaryObject, rw)
		fr.CleanupCallback = rw(fr.CleanupCallback)
		for i := range fr.Entries {
			e := &fr.Entries[i]
			if !e.Alive {
				continue
			}
			e.Target = rw(e.Target)
			e.HeldValue = rw(e.HeldValue)
			if e.HasToken {
				e.UnregisterToken = rw(e.UnregisterToken)
			}
		}
	})
	h.iterators.ForEachLive(func(_ arena.Handle, it *object.IteratorData) {
		rewriteOrdinary(&it.OrdinaryObject, rw)
		it.Target = rw(it.Target)
	})
	h.generators.ForEachLive(func(_ arena.Handle, g *generatorData) { rewriteOrdinary(&g.OrdinaryObject, rw) })
	h.moduleNamespaces.ForEachLive(func(_ arena.Handle, ns *object.ModuleNamespaceData) {
		rewriteOrdinary(&ns.OrdinaryObject, rw)
		// ModuleIndex addresses internal/module's own linker table, not a
		// Heap arena; nothing here to rewrite until that package registers
		// its table with the heap.
	})
	h.errors.ForEachLive(func(_ arena.Handle, e *object.ErrorData) {
		rewriteOrdinary(&e.OrdinaryObject, rw)
		for i := range e.Errors {
			e.Errors[i] = rw(e.Errors[i])
		}
	})
	h.dates.ForEachLive(func(_ arena.Handle, d *object.DateData) { rewriteOrdinary(&d.OrdinaryObject, rw) })
	h.regexps.ForEachLive(func(_ arena.Handle, r *object.RegExpData) { rewriteOrdinary(&r.OrdinaryObject, rw) })

	for i := range h.roots {
		h.roots[i] = rw(h.roots[i])
	}

	visited := make(map[*environment.Environment]bool)
	h.functions.ForEachLive(func(_ arena.Handle, f *object.FunctionData) {
		rewriteEnvironmentGraph(f.Closure, rw, visited)
	})
	h.generators.ForEachLive(func(_ arena.Handle, g *generatorData) {
		rewriteEnvironmentGraph(g.Closure, rw, visited)
	})
}

// rewriteOrdinary rewrites the generic part every object-like kind embeds:
// its own-property values vector and any symbol/integer-keyed custom
// descriptors (spec.md §3).
func rewriteOrdinary(o *object.OrdinaryObject, rw func(value.Value) value.Value) {
	for i := range o.Values {
		o.Values[i] = rw(o.Values[i])
	}
	for _, d := range o.Custom {
		d.Value = rw(d.Value)
		if d.HasGet {
			d.Getter = rw(d.Getter)
		}
		if d.HasSet {
			d.Setter = rw(d.Setter)
		}
	}
}

func rewriteWeakEntries(entries []object.WeakEntry, rw func(value.Value) value.Value) {
	for i := range entries {
		e := &entries[i]
		if !e.Alive {
			continue
		}
		e.Key = rw(e.Key)
		e.Value = rw(e.Value)
	}
}

// rewriteEnvironmentGraph walks env's Outer chain and any module-indirection
// targets, rewriting every Value each Environment holds directly. visited
// stops the walk as soon as it reaches an Environment already fixed up by an
// earlier call, since Outer chains are trees and any two closures share at
// most a common suffix.
func rewriteEnvironmentGraph(env *environment.Environment, rw func(value.Value) value.Value, visited map[*environment.Environment]bool) {
	for e := env; e != nil && !visited[e]; e = e.Outer {
		visited[e] = true
		e.RewriteValues(rw)
		for _, target := range e.IndirectTargets() {
			rewriteEnvironmentGraph(target, rw, visited)
		}
	}
}

// rewriteHandle rewrites a single Value using the shift table for its kind's
// arena, leaving non-heap-resident values and values from untouched arenas
// unchanged. A target that shift marks as dead (-1) is left as-is: every
// Value this pass visits was reached from a live object via a strong
// reference, so its target must have been marked live too, and disagreement
// here would mean a bug in traceChildren rather than something to paper
// over silently.
func rewriteHandle(shifts map[string][]int32, v value.Value) value.Value {
	kind := arenaKindOf(v.Kind())
	if kind == "" {
		return v
	}
	table, ok := shifts[kind]
	old := uint32(v.Handle())
	if !ok || int(old) >= len(table) {
		return v
	}
	ni := table[old]
	if ni < 0 {
		return v
	}
	return v.WithHandle(arena.Handle(ni))
}

// sweepWeakTables clears the Alive bit on any weak-collection entry whose
// key died this cycle, implementing spec.md §4.1's weak-reference sweep
// predicate. This must run before compactArena rewrites handles, since it
// inspects entries by their pre-compaction Handle.
func (h *Heap) sweepWeakTables(marks *markSet) {
	h.weakRefs.ForEachLive(func(_ arena.Handle, d *weakRefData) {
		if !d.Alive {
			return
		}
		kind := arenaKindOf(d.Target.Kind())
		if kind == "" || !marks.bitmapFor(kind).Contains(uint32(d.Target.Handle())) {
			d.Alive = false
		}
	})
	h.weakMaps.ForEachLive(func(_ arena.Handle, wm *object.WeakMapData) {
		sweepWeakEntries(wm.Entries, marks)
	})
	h.weakSets.ForEachLive(func(_ arena.Handle, ws *object.WeakSetData) {
		sweepWeakEntries(ws.Entries, marks)
	})
	h.finalizationRegistries.ForEachLive(func(_ arena.Handle, fr *finalizationRegistryData) {
		for i := range fr.Entries {
			e := &fr.Entries[i]
			if !e.Alive {
				continue
			}
			kind := arenaKindOf(e.Target.Kind())
			if kind == "" || !marks.bitmapFor(kind).Contains(uint32(e.Target.Handle())) {
				e.Alive = false
			}
		}
	})
}

func sweepWeakEntries(entries []object.WeakEntry, marks *markSet) {
	for i := range entries {
		e := &entries[i]
		if !e.Alive {
			continue
		}
		kind := arenaKindOf(e.Key.Kind())
		if kind == "" || !marks.bitmapFor(kind).Contains(uint32(e.Key.Handle())) {
			e.Alive = false
		}
	}
}

// Note: the WeakRef *wrapper* object (as opposed to the target it points
// at, handled by sweepWeakTables above) is treated as a permanent
// compile-time-style artifact and never compacted, the same simplification
// applied to Shapes, Executables and Environments — spec.md §9 accepts
// this as an engine-wide scope decision rather than a targeted one.
