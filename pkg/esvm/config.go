// config.go defines esvm's constructor options, mirroring the teacher's
// pkg/config.go: a private config struct built by defaultConfig and
// mutated by a slice of functional Options, applied once in
// applyOptions and never touched again afterward.
//
// © 2025 esvm authors. MIT License.
package esvm

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/module"
)

// Option configures a Realm at construction time.
type Option func(*config)

type config struct {
	logger       *zap.Logger
	registry     *prometheus.Registry
	compileCache string
	gcThreshold  int
	loader       module.Loader
}

func defaultConfig() *config {
	return &config{
		logger:      zap.NewNop(),
		gcThreshold: 0, // 0 means "let internal/heap pick its own default"
	}
}

// WithLogger plugs an external zap.Logger; esvm's own diagnostics (GC
// cycles, compile-cache lookup/store failures) go through it. Parse and
// compile failures are returned as errors, not logged. Passing nil is a no-op, matching the teacher's WithLogger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for this Realm.
// Passing nil disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithCompileCache turns on a persistent bytecode cache rooted at dir
// (internal/compilecache): ParseScript checks it before running the
// parser+compiler pipeline and stores a fresh result after. ParseModule
// does not use it.
func WithCompileCache(dir string) Option {
	return func(c *config) { c.compileCache = dir }
}

// WithHeapArenaHint overrides internal/heap's default GC threshold (how
// many allocations accumulate before Safepoint triggers a collection).
func WithHeapArenaHint(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.gcThreshold = n
		}
	}
}

// WithHostModuleLoader installs the host hook internal/module's Graph
// calls to resolve an import specifier it has not already loaded
// (spec.md §6's load_imported_module). Required before LoadRequestedModules
// is called on any Module with a non-empty RequestedModules list.
func WithHostModuleLoader(loader module.Loader) Option {
	return func(c *config) { c.loader = loader }
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var errNoLoader = errors.New("esvm: module imports another specifier but no WithHostModuleLoader was configured")
