// loader.go implements spec.md §4.8's `load_requested_modules` step and
// §6's required host hook: "load_imported_module(referrer, specifier,
// host_data, state) -> () — the embedder must eventually call the
// completion hook finish_loading_imported_module(...)". esvm models that as
// a synchronous Loader the embedder implements (pkg/esvm wires one in);
// this file's job is purely the *fan-out and de-duplication* across one
// module's (possibly many, possibly repeated) specifiers, and transitively
// across its dependencies' dependencies.
//
// Grounded directly on the teacher's pkg/loader.go: loaderGroup wraps
// golang.org/x/sync/singleflight so concurrent requests for the same key
// collapse into one call; here the key is a module specifier instead of a
// cache key, and the "loader function" is Loader.LoadImportedModule instead
// of a LoaderFunc[K,V]. golang.org/x/sync/errgroup drives the concurrent
// walk itself, mirroring how the teacher's pkg/cache.go uses errgroup
// around batch Get calls.
//
// © 2025 esvm authors. MIT License.
package module

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Loader is the host collaborator spec.md §1 calls "the host operating-
// system interface for load_imported_module", deliberately out of the
// core's scope: given a referrer module and a specifier it names, resolve
// and parse the target source, returning an as-yet-unregistered *Module (or
// an already-registered Handle via Graph.Lookup, which LoadRequestedModules
// checks first).
type Loader interface {
	LoadImportedModule(ctx context.Context, referrer *Module, specifier string) (*Module, error)
}

// LoaderFunc adapts a plain function to Loader, the same convenience
// teacher callers get from cache.go's functional-option style.
type LoaderFunc func(ctx context.Context, referrer *Module, specifier string) (*Module, error)

func (f LoaderFunc) LoadImportedModule(ctx context.Context, referrer *Module, specifier string) (*Module, error) {
	return f(ctx, referrer, specifier)
}

// LoadRequestedModules implements spec.md §4.8's first DFS step: walk root's
// transitive RequestedModules, calling g.Loader at most once per distinct
// specifier (across the whole transitive walk, not just root's own list) and
// populating every visited module's LoadedModules map. On success every
// module reachable from root is in StatusUnlinked-or-later and registered in
// g; on failure the error identifies the first specifier that failed to
// resolve.
func (g *Graph) LoadRequestedModules(ctx context.Context, root *Module) error {
	var sf singleflight.Group
	var mu sync.Mutex
	visited := make(map[string]bool)
	var visit func(ctx context.Context, m *Module) error
	visit = func(ctx context.Context, m *Module) error {
		reqs := m.RequestedModules
		eg, ctx := errgroup.WithContext(ctx)
		for _, spec := range reqs {
			spec := spec
			eg.Go(func() error {
				h, err := g.resolveOne(ctx, &sf, m, spec)
				if err != nil {
					return fmt.Errorf("loading %q from %q: %w", spec, m.Specifier, err)
				}
				mu.Lock()
				m.LoadedModules[spec] = h
				alreadyVisited := visited[spec]
				visited[spec] = true
				mu.Unlock()
				if alreadyVisited {
					return nil
				}
				return visit(ctx, g.Get(h))
			})
		}
		return eg.Wait()
	}
	return visit(ctx, root)
}

// resolveOne resolves specifier relative to referrer, returning an existing
// Handle if the Graph (or a concurrent in-flight load collapsed by
// singleflight) already has it, otherwise invoking the host Loader exactly
// once for that specifier and registering the result.
func (g *Graph) resolveOne(ctx context.Context, sf *singleflight.Group, referrer *Module, specifier string) (Handle, error) {
	if h, ok := g.Lookup(specifier); ok {
		return h, nil
	}
	res, err, _ := sf.Do(specifier, func() (any, error) {
		if h, ok := g.Lookup(specifier); ok {
			return h, nil
		}
		mod, err := g.Loader.LoadImportedModule(ctx, referrer, specifier)
		if err != nil {
			return nil, err
		}
		if existing, ok := g.Lookup(specifier); ok {
			return existing, nil
		}
		return g.register(specifier, mod), nil
	})
	if err != nil {
		return 0, err
	}
	return res.(Handle), nil
}
