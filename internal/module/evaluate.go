// evaluate.go implements spec.md §4.8's Evaluate step: "inner depth-first;
// synchronous modules transition to evaluated on exit; TLA/async modules
// transition to evaluating-async and resolve their top-level capability
// when their async body settles" — and §7's "Exceptions in module
// evaluation are stored on the cyclic record's evaluation-error slot,
// transitioning its status to evaluated; subsequent calls re-surface the
// same error."
//
// Grounded on original_source/.../cyclic_module_records.rs's
// InnerModuleEvaluation, reusing link.go's Tarjan-SCC DFS shape (spec.md
// §9: the module-cycle problem has one canonical solution, used for both
// passes).
//
// Async simplification: esvm's VM does not suspend a Frame across a host
// microtask turn (internal/vm/async.go), so there is no real scheduler for
// this package's async bookkeeping (PendingAsyncDeps/AsyncParents/HasTLA) to
// drive — every module's body, TLA or not, runs to completion the instant
// its turn in the DFS arrives. Those fields are still computed and the
// status machine still visits evaluating-async on its way to evaluated, so
// a caller inspecting Module.Status mid-walk sees the states spec.md §3
// documents; they just never stay there waiting on anything.
package module

import (
	"fmt"

	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
	"github.com/Voskan/esvm/internal/vm"
)

// EvaluationError wraps a JavaScript exception value thrown during a
// module's own body (as opposed to a Go-level structural error like "not
// linked yet"), so callers can recover the original thrown value rather
// than just an error string.
type EvaluationError struct {
	Module *Module
	Value  value.Value
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("module %q: evaluation threw", e.Module.Specifier)
}

// Evaluate runs root (and every module it transitively depends on that has
// not already evaluated) and returns a Promise: fulfilled with Undefined on
// success, rejected with the thrown value on failure. Calling Evaluate again
// on an already-evaluated (or already-errored) root returns the same cached
// Promise, per spec.md §7's "subsequent calls re-surface the same error."
func (g *Graph) Evaluate(root *Module) (value.Value, error) {
	if root.HasCapability {
		return root.TopLevelCapability, nil
	}
	if root.Status != StatusLinked {
		return value.Value{}, fmt.Errorf("module %q: cannot evaluate from status %s", root.Specifier, root.Status)
	}

	g.Realm.Heap.Metrics().IncModuleEvaluate()
	var stack []*Module
	_, err := g.innerEvaluate(root, &stack, 0)

	h := g.Realm.Heap
	p := h.NewPromise(g.Realm.PromiseProto)
	pd := h.PromiseData(p)
	if err != nil {
		pd.State = object.PromiseRejected
		if ee, ok := err.(*EvaluationError); ok {
			pd.Result = ee.Value
		} else {
			pd.Result = g.Realm.TypeError(err.Error())
		}
	} else {
		pd.State = object.PromiseFulfilled
		pd.Result = value.Undefined
	}
	root.TopLevelCapability = p
	root.HasCapability = true
	return p, nil
}

func (g *Graph) innerEvaluate(m *Module, stack *[]*Module, index int) (int, error) {
	switch m.Status {
	case StatusEvaluating, StatusEvaluatingAsync, StatusEvaluated:
		return index, nil
	case StatusEvaluatedWithError:
		return index, &EvaluationError{Module: m, Value: m.EvaluationError}
	}
	if m.Status != StatusLinked && m.Status != StatusEvaluating {
		return index, fmt.Errorf("module %q: cannot evaluate from status %s", m.Specifier, m.Status)
	}

	if m.Status == StatusLinked {
		m.Status = StatusEvaluating
		m.DFSIndex = index
		m.DFSAncestorIndex = index
		index++
		*stack = append(*stack, m)

		for _, spec := range m.RequestedModules {
			required := g.Get(m.LoadedModules[spec])
			var err error
			index, err = g.innerEvaluate(required, stack, index)
			if err != nil {
				g.failThrough(stack, m, err)
				return index, err
			}
			if required.Status == StatusEvaluating && required.DFSAncestorIndex < m.DFSAncestorIndex {
				m.DFSAncestorIndex = required.DFSAncestorIndex
			} else if required.AsyncEvaluation {
				m.PendingAsyncDeps++
				required.AsyncParents = append(required.AsyncParents, m.handle)
			}
		}

		if m.HasTLA || m.PendingAsyncDeps > 0 {
			m.AsyncEvaluation = true
			m.Status = StatusEvaluatingAsync
		}

		machine := vm.New(m.Realm)
		res, thrown, ok := machine.ExecuteProgram(m.Executable, m.Environment, value.Undefined)
		if !ok {
			err := &EvaluationError{Module: m, Value: thrown}
			g.failThrough(stack, m, err)
			return index, err
		}
		_ = res
		g.syncNamespace(m)
	}

	if m.DFSAncestorIndex == m.DFSIndex {
		for {
			n := len(*stack)
			top := (*stack)[n-1]
			*stack = (*stack)[:n-1]
			top.Status = StatusEvaluated
			top.AsyncEvaluation = false
			if top == m {
				break
			}
		}
	}
	return index, nil
}

// failThrough marks every module from the top of stack down through (and
// including) m as StatusEvaluatedWithError carrying err's thrown value,
// popping them off stack — the same-SCC half of ECMA-262's
// AsyncModuleExecutionRejected propagation, simplified to run inline since
// nothing here is actually asynchronous.
func (g *Graph) failThrough(stack *[]*Module, m *Module, err error) {
	ee, _ := err.(*EvaluationError)
	for {
		n := len(*stack)
		if n == 0 {
			return
		}
		top := (*stack)[n-1]
		*stack = (*stack)[:n-1]
		top.Status = StatusEvaluatedWithError
		top.HasEvaluationError = true
		if ee != nil {
			top.EvaluationError = ee.Value
		}
		if top == m {
			return
		}
	}
}
