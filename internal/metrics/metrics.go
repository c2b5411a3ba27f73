// Package metrics is a thin abstraction over Prometheus so that esvm can be
// embedded with or without metrics collection. When the embedder passes a
// *prometheus.Registry via esvm.WithMetrics, a real Sink is installed;
// otherwise a no-op sink is used and the hot path does not pay for metric
// updates.
//
// Grounded directly on the teacher's pkg/metrics.go: the same
// interface/noop/prom three-way split, the same "only register when a
// registry is supplied" rule, the same WithLabelValues hot-path pattern.
// Metric names are renamed from the cache domain (cache_hits_total,
// arena_bytes, ...) to the engine domain (SPEC_FULL.md §3).
//
// © 2025 esvm authors. MIT License.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the abstraction internal/heap, internal/propcache (via
// internal/heap), and internal/module report counters through.
type Sink interface {
	AddHeapBytes(delta int64)
	SetHeapBytes(value int64)
	IncGCCycle()
	AddObjectsCompacted(n int64)
	IncPropCacheHit()
	IncPropCacheMiss()
	IncPropCacheEviction()
	IncShapeTransition()
	IncModuleLink()
	IncModuleEvaluate()
}

/* -------------------------------------------------------------------------
   No-op implementation
   ------------------------------------------------------------------------- */

type noopSink struct{}

// Noop returns a Sink that discards every observation.
func Noop() Sink { return noopSink{} }

func (noopSink) AddHeapBytes(int64)       {}
func (noopSink) SetHeapBytes(int64)       {}
func (noopSink) IncGCCycle()              {}
func (noopSink) AddObjectsCompacted(int64) {}
func (noopSink) IncPropCacheHit()         {}
func (noopSink) IncPropCacheMiss()        {}
func (noopSink) IncPropCacheEviction()    {}
func (noopSink) IncShapeTransition()      {}
func (noopSink) IncModuleLink()           {}
func (noopSink) IncModuleEvaluate()       {}

/* -------------------------------------------------------------------------
   Prometheus implementation
   ------------------------------------------------------------------------- */

type promSink struct {
	heapBytes         prometheus.Gauge
	gcCycles          prometheus.Counter
	objectsCompacted  prometheus.Counter
	propCacheHits     prometheus.Counter
	propCacheMisses   prometheus.Counter
	propCacheEvicts   prometheus.Counter
	shapeTransitions  prometheus.Counter
	moduleLinks       prometheus.Counter
	moduleEvaluations prometheus.Counter
}

// NewPrometheus constructs and registers every esvm collector against reg.
func NewPrometheus(reg *prometheus.Registry) Sink {
	p := &promSink{
		heapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "esvm", Name: "heap_bytes", Help: "Live bytes estimated across all heap arenas.",
		}),
		gcCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "gc_cycles_total", Help: "Number of mark-sweep-compact collections run.",
		}),
		objectsCompacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "gc_objects_compacted_total", Help: "Number of heap objects relocated by compaction.",
		}),
		propCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "propcache_hits_total", Help: "Property-lookup cache hits.",
		}),
		propCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "propcache_misses_total", Help: "Property-lookup cache misses.",
		}),
		propCacheEvicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "propcache_evictions_total", Help: "Cache entries bypassed due to 13-bit offset overflow.",
		}),
		shapeTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "shape_transitions_total", Help: "Object-shape transitions (add/remove property, set prototype).",
		}),
		moduleLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "module_link_total", Help: "Module linker Link() invocations.",
		}),
		moduleEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "esvm", Name: "module_evaluate_total", Help: "Module linker Evaluate() invocations.",
		}),
	}
	reg.MustRegister(
		p.heapBytes, p.gcCycles, p.objectsCompacted,
		p.propCacheHits, p.propCacheMisses, p.propCacheEvicts,
		p.shapeTransitions, p.moduleLinks, p.moduleEvaluations,
	)
	return p
}

func (p *promSink) AddHeapBytes(delta int64)      { p.heapBytes.Add(float64(delta)) }
func (p *promSink) SetHeapBytes(v int64)          { p.heapBytes.Set(float64(v)) }
func (p *promSink) IncGCCycle()                   { p.gcCycles.Inc() }
func (p *promSink) AddObjectsCompacted(n int64)   { p.objectsCompacted.Add(float64(n)) }
func (p *promSink) IncPropCacheHit()              { p.propCacheHits.Inc() }
func (p *promSink) IncPropCacheMiss()             { p.propCacheMisses.Inc() }
func (p *promSink) IncPropCacheEviction()         { p.propCacheEvicts.Inc() }
func (p *promSink) IncShapeTransition()           { p.shapeTransitions.Inc() }
func (p *promSink) IncModuleLink()                { p.moduleLinks.Inc() }
func (p *promSink) IncModuleEvaluate()            { p.moduleEvaluations.Inc() }

// New picks the right implementation: nil registry means metrics are
// disabled for this Realm, matching the teacher's newMetricsSink factory.
func New(reg *prometheus.Registry) Sink {
	if reg == nil {
		return Noop()
	}
	return NewPrometheus(reg)
}
