// Package esvm is the embedder-facing surface spec.md §6 "External
// Interfaces" describes: Realm::new, parse_script/parse_module, evaluate,
// and the module-loader host hooks, all implemented on top of the
// internal packages.
//
// Grounded on the teacher's top-level pkg/cache.go + pkg/config.go split:
// one exported struct (here, Realm) built by a constructor that validates
// functional options and wires its internal state, with every internal
// package (arena, clockpro, genring there; heap, vm, compiler, parser,
// module, compilecache here) kept unexported from the public API.
//
// © 2025 esvm authors. MIT License.
package esvm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/compilecache"
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/metrics"
	"github.com/Voskan/esvm/internal/module"
	"github.com/Voskan/esvm/internal/parser"
	"github.com/Voskan/esvm/internal/value"
	"github.com/Voskan/esvm/internal/vm"
)

// Realm is one embeddable ECMAScript agent: a heap, its intrinsics, and
// the module graph sharing them, per spec.md §5's "one realm, one agent,
// single threaded."
type Realm struct {
	vm     *vm.Realm
	cache  *compilecache.Store
	graph  *module.Graph
	logger *zap.Logger
}

// New constructs a Realm. The returned Realm owns a compile-cache handle
// (if WithCompileCache was given) that must be released with Close.
func New(opts ...Option) (*Realm, error) {
	cfg := applyOptions(opts)

	var sink metrics.Sink = metrics.Noop()
	if cfg.registry != nil {
		sink = metrics.New(cfg.registry)
	}

	heapOpts := []heap.Option{heap.WithMetrics(sink)}
	if cfg.gcThreshold > 0 {
		heapOpts = append(heapOpts, heap.WithGCThreshold(cfg.gcThreshold))
	}
	vmRealm := vm.NewRealm(cfg.logger, heapOpts...)

	var cache *compilecache.Store
	if cfg.compileCache != "" {
		c, err := compilecache.Open(cfg.compileCache, cfg.logger)
		if err != nil {
			return nil, fmt.Errorf("esvm: %w", err)
		}
		cache = c
	}

	r := &Realm{vm: vmRealm, cache: cache, logger: cfg.logger}
	r.graph = module.NewGraph(vmRealm, moduleLoaderOrNone(cfg.loader))
	return r, nil
}

func moduleLoaderOrNone(l module.Loader) module.Loader {
	if l != nil {
		return l
	}
	return module.LoaderFunc(func(_ context.Context, _ *module.Module, specifier string) (*module.Module, error) {
		return nil, fmt.Errorf("esvm: cannot load %q: %w", specifier, errNoLoader)
	})
}

// Close releases the Realm's compile cache, if one was configured.
func (r *Realm) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}

// compile parses and lowers source, consulting and populating the compile
// cache (if configured) around the parser+compiler pipeline.
func (r *Realm) compile(source, name string, isModule bool) (*compiler.Executable, error) {
	if r.cache != nil {
		if exec, ok := r.cache.Lookup(r.vm.Heap, source); ok {
			return exec, nil
		}
	}

	p := parser.New(source, isModule)
	var program = p.ParseScript
	if isModule {
		program = p.ParseModule
	}
	root := program()
	if diags := p.Diagnostics(); len(diags) > 0 {
		return nil, &ParseError{Name: name, Diagnostics: diags}
	}

	var exec *compiler.Executable
	var errs []error
	if isModule {
		exec, errs = compiler.CompileModule(p.Tree(), root, source)
	} else {
		exec, errs = compiler.CompileScript(p.Tree(), root, source)
	}
	if len(errs) > 0 {
		return nil, &CompileError{Name: name, Errors: errs}
	}
	exec.Name = name

	if r.cache != nil {
		if err := r.cache.Store(r.vm.Heap, source, exec); err != nil {
			r.logger.Warn("esvm: compile cache store failed", zap.Error(err))
		}
	}
	return exec, nil
}

// Global returns the realm's global object, for embedders that want to
// install additional host bindings before running any script.
func (r *Realm) Global() value.Value { return r.vm.GlobalObject }
