// Command esvmdump runs a script (or, with -module, a module) and prints
// the resulting Prometheus counters — heap bytes, GC cycles, property-
// cache hit/miss/eviction, shape transitions, module link/evaluate counts
// (internal/metrics) — as text or JSON.
//
// Adapted from the teacher's cmd/arena-cache-inspect: that tool polled a
// running service's /debug/arena-cache/snapshot HTTP endpoint for cache
// counters; esvm is an embedded library rather than a long-running
// service, so there is nothing to poll. Gathering directly from the
// *prometheus.Registry this process just populated is the equivalent
// move for something that only ever runs once and exits. Watch mode and
// the pprof-profile-download flags accordingly have no analogue here and
// are dropped (spec.md's Non-goals exclude a host HTTP surface).
//
// © 2025 esvm authors. MIT License.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Voskan/esvm/pkg/esvm"
)

func main() {
	jsonOut := flag.Bool("json", false, "print counters as JSON instead of text")
	asModule := flag.Bool("module", false, "parse and run the input as a module instead of a script")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: esvmdump [-json] [-module] <file.js>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *asModule, *jsonOut); err != nil {
		fmt.Fprintln(os.Stderr, "esvmdump:", err)
		os.Exit(1)
	}
}

func run(path string, asModule, jsonOut bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	realm, err := esvm.New(esvm.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer realm.Close()

	if asModule {
		m, err := realm.ParseModule(string(src), path)
		if err != nil {
			return err
		}
		if err := m.LoadRequestedModules(context.Background()); err != nil {
			return err
		}
		if err := m.Link(); err != nil {
			return err
		}
		if _, err := m.Evaluate(); err != nil {
			return err
		}
	} else {
		script, err := realm.ParseScript(string(src), path)
		if err != nil {
			return err
		}
		if _, err := script.Evaluate(); err != nil {
			return err
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return err
	}
	snapshot := flatten(families)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}
	for _, name := range []string{
		"esvm_heap_bytes", "esvm_gc_cycles_total", "esvm_gc_objects_compacted_total",
		"esvm_propcache_hits_total", "esvm_propcache_misses_total", "esvm_propcache_evictions_total",
		"esvm_shape_transitions_total", "esvm_module_link_total", "esvm_module_evaluate_total",
	} {
		fmt.Printf("%-32s %v\n", name, snapshot[name])
	}
	return nil
}

// flatten reduces Prometheus's MetricFamily/Metric tree to name->value,
// valid here because every esvm collector (internal/metrics) is a single
// unlabeled Gauge or Counter.
func flatten(families []*dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64, len(families))
	for _, fam := range families {
		if len(fam.Metric) == 0 {
			continue
		}
		m := fam.Metric[0]
		switch {
		case m.Counter != nil:
			out[fam.GetName()] = m.Counter.GetValue()
		case m.Gauge != nil:
			out[fam.GetName()] = m.Gauge.GetValue()
		}
	}
	return out
}
