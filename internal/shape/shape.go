// Package shape implements the hidden-class transition DAG from spec.md §3
// "ObjectShape" and §4.2. A Shape is a node carrying a prototype, an ordered
// vector of own property keys with per-key attributes, and forward
// transition edges labeled by (key, attrs) to a successor shape. Two objects
// sharing a Shape have identical key order and attributes; per-object values
// live in a parallel vector the object owns (internal/object), indexed by
// the offset this package hands back.
//
// Shape identity is structural for RootShape and AddProperty: the root shape
// is reused per prototype, and add_property follows an existing transition
// edge when one already matches, allocating a new Shape only on a genuine
// miss. SetPrototype and RemoveProperty always allocate a fresh Shape, so
// two objects given the same new prototype, or with the same key removed,
// land on distinct shapes. Edges are
// hash-indexed with hash/maphash, the same package the teacher's
// shard.hash uses for cache keys, so looking up an edge is O(1) rather than
// a linear scan of a shape's transition list.
//
// © 2025 esvm authors. MIT License.
package shape

import (
	"hash/maphash"

	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/value"
)

// ID addresses a Shape inside a Graph.
type ID = arena.Handle

// Attr captures a property's writable/enumerable/configurable bits, or its
// accessor-ness (spec.md §3: "per-key attributes (writable/enumerable/
// configurable or accessor kind)").
type Attr struct {
	Writable     bool
	Enumerable   bool
	Configurable bool
	Accessor     bool
}

type propertySlot struct {
	key  value.PropertyKey
	attr Attr
}

type edgeKey struct {
	key  value.PropertyKey
	attr Attr
}

// Shape is one node of the transition DAG.
type Shape struct {
	prototype   value.Value
	hasProto    bool
	properties  []propertySlot // immutable once constructed
	transitions map[uint64][]transitionEdge
	removalOf   ID // valid only for shapes produced by RemoveProperty; diagnostics only
}

type transitionEdge struct {
	key    edgeKey
	target ID
}

// Graph owns every Shape plus the root-shape registry
// (shape_of(intrinsic_proto)) from spec.md §4.2.
type Graph struct {
	shapes *arena.Arena[Shape]
	roots  map[value.Value]ID
	seed   maphash.Seed
}

// NewGraph constructs an empty shape graph.
func NewGraph() *Graph {
	return &Graph{
		shapes: arena.New[Shape](1024),
		roots:  make(map[value.Value]ID),
		seed:   maphash.MakeSeed(),
	}
}

func (g *Graph) hashEdge(k edgeKey) uint64 {
	var h maphash.Hash
	h.SetSeed(g.seed)
	if k.key.IsSymbol() {
		var b [8]byte
		v := k.key.SymbolHandle()
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		h.Write(b[:])
		h.WriteByte(1)
	} else if k.key.IsInteger() {
		var b [4]byte
		n := k.key.IntegerValue()
		for i := 0; i < 4; i++ {
			b[i] = byte(n >> (8 * i))
		}
		h.Write(b[:])
		h.WriteByte(2)
	} else {
		h.WriteString(k.key.SmallString())
		h.WriteByte(3)
	}
	var a byte
	if k.attr.Writable {
		a |= 1
	}
	if k.attr.Enumerable {
		a |= 2
	}
	if k.attr.Configurable {
		a |= 4
	}
	if k.attr.Accessor {
		a |= 8
	}
	h.WriteByte(a)
	return h.Sum64()
}

// RootShape returns the canonical empty shape for proto, creating it on
// first use (spec.md §4.2 shape_of).
func (g *Graph) RootShape(proto value.Value, hasProto bool) ID {
	key := proto
	if !hasProto {
		key = value.Null
	}
	if id, ok := g.roots[key]; ok {
		return id
	}
	id := g.shapes.Create(Shape{
		prototype:   proto,
		hasProto:    hasProto,
		transitions: make(map[uint64][]transitionEdge),
	})
	g.roots[key] = id
	return id
}

func (g *Graph) get(id ID) *Shape { return g.shapes.Get(id) }

// KeyCount returns the number of own properties the shape describes.
func (g *Graph) KeyCount(id ID) int { return len(g.get(id).properties) }

// Prototype returns the shape's prototype value and whether it has one
// (the root object's shape has hasProto=false, i.e. `Object.prototype` or a
// `class C extends null` instance).
func (g *Graph) Prototype(id ID) (value.Value, bool) {
	s := g.get(id)
	return s.prototype, s.hasProto
}

// IndexOf finds key among id's own properties.
func (g *Graph) IndexOf(id ID, key value.PropertyKey) (idx uint32, attr Attr, ok bool) {
	s := g.get(id)
	for i, p := range s.properties {
		if p.key == key {
			return uint32(i), p.attr, true
		}
	}
	return 0, Attr{}, false
}

// Keys returns the shape's own property keys in declaration order.
func (g *Graph) Keys(id ID) []value.PropertyKey {
	s := g.get(id)
	out := make([]value.PropertyKey, len(s.properties))
	for i, p := range s.properties {
		out[i] = p.key
	}
	return out
}

// AddProperty implements spec.md §4.2's add_property: follow an existing
// transition edge if one matches (key, attrs), else allocate a successor
// shape whose new property's index equals the old key count.
func (g *Graph) AddProperty(id ID, key value.PropertyKey, attr Attr) (next ID, index uint32, isNew bool) {
	s := g.get(id)
	ek := edgeKey{key: key, attr: attr}
	h := g.hashEdge(ek)
	for _, e := range s.transitions[h] {
		if e.key == ek {
			return e.target, uint32(len(s.properties)), false
		}
	}
	newProps := make([]propertySlot, len(s.properties)+1)
	copy(newProps, s.properties)
	newProps[len(s.properties)] = propertySlot{key: key, attr: attr}
	newID := g.shapes.Create(Shape{
		prototype:   s.prototype,
		hasProto:    s.hasProto,
		properties:  newProps,
		transitions: make(map[uint64][]transitionEdge),
	})
	// Re-fetch s: Create may have grown the backing slice, invalidating the
	// pointer obtained before the append.
	s = g.get(id)
	s.transitions[h] = append(s.transitions[h], transitionEdge{key: ek, target: newID})
	return newID, uint32(len(newProps) - 1), true
}

// RemoveProperty implements spec.md §4.2's remove_property: produces a
// shape with the key omitted; values-vector shifting is the caller's
// (internal/object's) responsibility since this package has no notion of a
// per-object value vector.
func (g *Graph) RemoveProperty(id ID, key value.PropertyKey) (next ID, removedIndex uint32, ok bool) {
	s := g.get(id)
	idx := -1
	for i, p := range s.properties {
		if p.key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return id, 0, false
	}
	newProps := make([]propertySlot, 0, len(s.properties)-1)
	newProps = append(newProps, s.properties[:idx]...)
	newProps = append(newProps, s.properties[idx+1:]...)
	newID := g.shapes.Create(Shape{
		prototype:   s.prototype,
		hasProto:    s.hasProto,
		properties:  newProps,
		transitions: make(map[uint64][]transitionEdge),
		removalOf:   id,
	})
	return newID, uint32(idx), true
}

// SetPrototype implements spec.md §4.2's set_prototype: a shape with
// identical keys and a new prototype. Cache invalidation for this operation
// is performed by internal/heap, which is the only package that can walk
// live objects' current shapes.
func (g *Graph) SetPrototype(id ID, newProto value.Value, hasProto bool) ID {
	s := g.get(id)
	return g.shapes.Create(Shape{
		prototype:   newProto,
		hasProto:    hasProto,
		properties:  s.properties,
		transitions: make(map[uint64][]transitionEdge),
	})
}

// Equal reports whether two shapes are the very same node (fast path used
// by property-lookup caches to compare a cached shape against a receiver's
// current shape).
func Equal(a, b ID) bool { return a == b }
