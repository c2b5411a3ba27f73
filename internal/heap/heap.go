// Package heap is the single allocator spec.md §1 describes as the place
// where "object shapes, property-lookup caches, and the heap's typed arenas
// share a single allocator-like arena; mutating one frequently invalidates
// state in the others". It owns one internal/arena.Arena[T] per
// heap-resident value kind, the internal/shape.Graph, the
// internal/propcache.Table, and the internal/gcepoch.Ring, and is the only
// package that dereferences a value.Value's Handle into an actual Go value.
//
// Grounded on the teacher's pkg/shard.go: a shard there owned an index, a
// CLOCK-Pro ring and a generation pointer and coordinated rotation; a Heap
// here owns N arenas, the shape graph, the cache table and the epoch ring,
// and coordinates GC cycles the same way shard.go coordinated eviction.
//
// © 2025 esvm authors. MIT License.
package heap

import (
	"math/big"

	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/arena"
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/gcepoch"
	"github.com/Voskan/esvm/internal/metrics"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/propcache"
	"github.com/Voskan/esvm/internal/shape"
	"github.com/Voskan/esvm/internal/value"
)

type symbolData struct {
	Description string
	HasDesc     bool
}

type weakRefData struct {
	Target value.Value
	Alive  bool
}

type finalizationEntry struct {
	Target          value.Value
	HeldValue       value.Value
	Alive           bool
	UnregisterToken value.Value
	HasToken        bool
}

type finalizationRegistryData struct {
	object.OrdinaryObject
	CleanupCallback value.Value
	Entries         []finalizationEntry
}

type generatorData struct {
	object.OrdinaryObject
	Executable *compiler.Executable
	Closure    *environment.Environment
	Done       bool
	Suspended  bool
}

// Heap owns every heap-resident arena plus the shape graph, property caches
// and GC epoch ring for one realm (spec.md §5: one realm, one agent, single
// threaded).
type Heap struct {
	logger  *zap.Logger
	metrics metrics.Sink

	strings     *arena.Arena[string]
	internTable map[string]arena.Handle

	symbols *arena.Arena[symbolData]
	bigints *arena.Arena[*big.Int]

	objects                *arena.Arena[object.OrdinaryObject]
	arrays                 *arena.Arena[object.ArrayData]
	buffers                *arena.Arena[object.ArrayBufferData]
	typedArrays            *arena.Arena[object.TypedArrayData]
	functions              *arena.Arena[object.FunctionData]
	proxies                *arena.Arena[object.ProxyData]
	promises               *arena.Arena[object.PromiseData]
	maps                   *arena.Arena[object.MapData]
	sets                   *arena.Arena[object.SetData]
	weakMaps               *arena.Arena[object.WeakMapData]
	weakSets               *arena.Arena[object.WeakSetData]
	weakRefs               *arena.Arena[weakRefData]
	finalizationRegistries *arena.Arena[finalizationRegistryData]
	iterators              *arena.Arena[object.IteratorData]
	generators             *arena.Arena[generatorData]
	moduleNamespaces       *arena.Arena[object.ModuleNamespaceData]
	errors                 *arena.Arena[object.ErrorData]
	dates                  *arena.Arena[object.DateData]
	regexps                *arena.Arena[object.RegExpData]

	Shapes *shape.Graph
	Props  *propcache.Table[value.PropertyKey, shape.ID, value.Value]
	Epochs *gcepoch.Ring

	// roots is the scoped handle stack spec.md §4.1 requires GC-visible
	// values to live on while a NoGcScope/GcScope marker is active; Enter
	// pushes a mark, Exit truncates back to it.
	roots      []value.Value
	scopeMarks []int

	allocSinceGC int
	gcThreshold  int

	// callHook lets Proxy trap dispatch (proxy.go) invoke a handler method
	// without this package importing internal/vm; nil until
	// internal/vm.NewRealm calls SetCallHook.
	callHook TrapCallFunc
}

// Option configures a Heap at construction, mirroring the teacher's
// functional-option config pattern (pkg/config.go).
type Option func(*Heap)

// WithLogger installs a zap logger for GC-cycle diagnostics.
func WithLogger(l *zap.Logger) Option { return func(h *Heap) { h.logger = l } }

// WithMetrics installs a metrics sink; defaults to metrics.Noop().
func WithMetrics(s metrics.Sink) Option { return func(h *Heap) { h.metrics = s } }

// WithGCThreshold sets how many allocations accumulate before Safepoint
// triggers a collection. Default is 64k, a deliberately small number so
// exercising the GC in tests does not require allocating gigabytes.
func WithGCThreshold(n int) Option { return func(h *Heap) { h.gcThreshold = n } }

// Metrics returns the sink installed via WithMetrics (metrics.Noop() if
// none was), so callers outside this package — internal/module's link/
// evaluate counters — can report through the same Sink the heap itself
// uses rather than opening a parallel path to Prometheus.
func (h *Heap) Metrics() metrics.Sink { return h.metrics }

// New constructs an empty heap.
func New(opts ...Option) *Heap {
	h := &Heap{
		logger:  zap.NewNop(),
		metrics: metrics.Noop(),

		strings:     arena.New[string](256),
		internTable: make(map[string]arena.Handle),
		symbols:     arena.New[symbolData](16),
		bigints:     arena.New[*big.Int](16),

		objects:                arena.New[object.OrdinaryObject](256),
		arrays:                 arena.New[object.ArrayData](64),
		buffers:                arena.New[object.ArrayBufferData](16),
		typedArrays:            arena.New[object.TypedArrayData](16),
		functions:              arena.New[object.FunctionData](128),
		proxies:                arena.New[object.ProxyData](8),
		promises:               arena.New[object.PromiseData](32),
		maps:                   arena.New[object.MapData](16),
		sets:                   arena.New[object.SetData](16),
		weakMaps:               arena.New[object.WeakMapData](8),
		weakSets:               arena.New[object.WeakSetData](8),
		weakRefs:               arena.New[weakRefData](8),
		finalizationRegistries: arena.New[finalizationRegistryData](4),
		iterators:              arena.New[object.IteratorData](32),
		generators:             arena.New[generatorData](8),
		moduleNamespaces:       arena.New[object.ModuleNamespaceData](4),
		errors:                 arena.New[object.ErrorData](32),
		dates:                  arena.New[object.DateData](8),
		regexps:                arena.New[object.RegExpData](8),

		Shapes: shape.NewGraph(),
		Props:  propcache.NewTable[value.PropertyKey, shape.ID, value.Value](),
		Epochs: gcepoch.New(),

		gcThreshold: 1 << 16,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

/* -------------------------------------------------------------------------
   String interning
   ------------------------------------------------------------------------- */

// InternString returns the heap-string Value for s, reusing an existing
// entry when s was interned before. Short strings should go through
// value.SmallString instead; this path is for strings that do not fit
// inline (spec.md §3's "heap string" kind).
func (h *Heap) InternString(s string) value.Value {
	if handle, ok := h.internTable[s]; ok {
		return value.FromHandle(value.KindHeapString, handle)
	}
	handle := h.strings.Create(s)
	h.internTable[s] = handle
	h.allocSinceGC++
	return value.FromHandle(value.KindHeapString, handle)
}

// StringValue returns the Go string a heap-string or small-string Value
// holds.
func (h *Heap) StringValue(v value.Value) string {
	if v.Kind() == value.KindSmallString {
		return v.AsSmallString()
	}
	return *h.strings.Get(v.Handle())
}

// PropertyKeyFor builds the PropertyKey for a property-name string,
// inlining it when short and interning it otherwise (spec.md §3's key
// representation).
func (h *Heap) PropertyKeyFor(name string) value.PropertyKey {
	if pk, ok := value.SmallStringKey(name); ok {
		return pk
	}
	if handle, ok := h.internTable[name]; ok {
		return value.InternedKey(handle)
	}
	handle := h.strings.Create(name)
	h.internTable[name] = handle
	h.allocSinceGC++
	return value.InternedKey(handle)
}

// PropertyKeyString renders a PropertyKey back to its source text, used by
// OwnPropertyKeys, error messages, and for-in/for-of enumeration.
func (h *Heap) PropertyKeyString(k value.PropertyKey) string {
	if k.IsSymbol() {
		return h.SymbolDescription(k.SymbolHandle())
	}
	if k.IsInteger() {
		return itoa(k.IntegerValue())
	}
	if pk, ok := value.SmallStringKey(""); ok && pk == k {
		return ""
	}
	return h.stringForKeyBits(k)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (h *Heap) stringForKeyBits(k value.PropertyKey) string {
	if k.IsString() {
		if s := k.SmallString(); s != "" {
			return s
		}
		return *h.strings.Get(k.StringHandle())
	}
	return ""
}

/* -------------------------------------------------------------------------
   Symbols
   ------------------------------------------------------------------------- */

// NewSymbol allocates a unique symbol, optionally with a description.
func (h *Heap) NewSymbol(description string, hasDescription bool) value.Value {
	handle := h.symbols.Create(symbolData{Description: description, HasDesc: hasDescription})
	h.allocSinceGC++
	return value.FromHandle(value.KindSymbol, handle)
}

// SymbolDescription returns a symbol's description, or "" if it has none.
func (h *Heap) SymbolDescription(handle arena.Handle) string {
	return h.symbols.Get(handle).Description
}

/* -------------------------------------------------------------------------
   BigInt
   ------------------------------------------------------------------------- */

func (h *Heap) NewBigInt(v *big.Int) value.Value {
	handle := h.bigints.Create(v)
	h.allocSinceGC++
	return value.FromHandle(value.KindBigInt, handle)
}

func (h *Heap) BigIntValue(v value.Value) *big.Int {
	return *h.bigints.Get(v.Handle())
}

/* -------------------------------------------------------------------------
   Scoped-handle discipline (spec.md §4.1 NoGcScope/GcScope)
   ------------------------------------------------------------------------- */

// EnterScope opens a new GC-visible scope; every root pushed after this call
// is dropped by the matching ExitScope, implementing the stack discipline
// spec.md §4.1 describes so that temporaries do not keep the whole call
// history's garbage alive.
func (h *Heap) EnterScope() {
	h.scopeMarks = append(h.scopeMarks, len(h.roots))
}

// ExitScope discards every root pushed since the matching EnterScope.
func (h *Heap) ExitScope() {
	n := len(h.scopeMarks)
	mark := h.scopeMarks[n-1]
	h.scopeMarks = h.scopeMarks[:n-1]
	h.roots = h.roots[:mark]
}

// Root pins v as a GC root until the enclosing scope exits, returning v
// unchanged for call-site chaining (`x := heap.Root(someCall())`).
func (h *Heap) Root(v value.Value) value.Value {
	h.roots = append(h.roots, v)
	return v
}

// Safepoint triggers a collection if enough allocations have accumulated
// since the last one. The VM calls this between bytecode instructions at
// backward jumps and call boundaries (spec.md §4.6 "safepoints").
func (h *Heap) Safepoint(extraRoots []value.Value) {
	if h.allocSinceGC < h.gcThreshold {
		return
	}
	h.collect(extraRoots)
}

// ForceGC runs a collection unconditionally; exposed for tests.
func (h *Heap) ForceGC(extraRoots []value.Value) {
	h.collect(extraRoots)
}
