// module.go implements spec.md §6's Module::load_requested_modules/link/
// evaluate surface over internal/module's Graph, scoping one Graph per
// Realm (spec.md §5: modules loaded into a realm share its heap and
// intrinsics, never another realm's).
package esvm

import (
	"context"

	"github.com/Voskan/esvm/internal/module"
	"github.com/Voskan/esvm/internal/value"
)

// Module is an embedder handle to one entry in the realm's module graph.
type Module struct {
	realm *Realm
	m     *module.Module
}

// ParseModule parses source as Module-goal code under specifier and
// registers it as a root of the realm's module graph — the embedder's
// entry point into a (possibly cyclic) graph of further modules resolved
// on demand by the WithHostModuleLoader hook.
//
// Unlike ParseScript, module compilation does not currently consult the
// compile cache: a cache hit would still need the freshly (re-)parsed AST
// to extract import/export entries and top-level-await detection (module.go's
// ParseModule), so there is no pipeline stage a cache lookup could skip.
func (r *Realm) ParseModule(source, specifier string) (*Module, error) {
	m, errs := module.ParseModule(source, specifier, nil)
	if len(errs) > 0 {
		return nil, &CompileError{Name: specifier, Errors: errs}
	}
	r.graph.AddRoot(specifier, m)
	return &Module{realm: r, m: m}, nil
}

// LoadRequestedModules fetches (via the configured WithHostModuleLoader)
// every module m transitively imports that is not already in the graph.
func (m *Module) LoadRequestedModules(ctx context.Context) error {
	return m.realm.graph.LoadRequestedModules(ctx, m.m)
}

// Link resolves every cross-module binding m (and its dependencies) need.
func (m *Module) Link() error {
	return m.realm.graph.Link(m.m)
}

// Evaluate runs m's body (and any not-yet-evaluated dependency), returning
// a Promise settled with the outcome — fulfilled with Undefined, or
// rejected with the thrown exception value.
func (m *Module) Evaluate() (value.Value, error) {
	return m.realm.graph.Evaluate(m.m)
}

// Namespace returns m's module namespace object (`import * as ns`'s
// target), creating it on first use.
func (m *Module) Namespace() value.Value {
	return m.realm.graph.GetModuleNamespace(m.m)
}

// Status reports m's current position in spec.md §3's status progression.
func (m *Module) Status() module.Status { return m.m.Status }

// Specifier returns the specifier this module was registered under.
func (m *Module) Specifier() string { return m.m.Specifier }

// Unwrap exposes the internal/module.Module this handle wraps, for a
// WithHostModuleLoader implementation that needs to hand a freshly parsed
// dependency back to the graph (module.Loader's return type is
// *module.Module, not the public Module wrapper).
func (m *Module) Unwrap() *module.Module { return m.m }
