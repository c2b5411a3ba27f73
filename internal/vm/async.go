// async.go documents esvm's deliberate boundary around async/await, the
// DESIGN.md Open Question spec.md §9 calls out explicitly rather than
// leaving as silent partial behavior: "async arrow functions, full
// async/await support" are parsed and compiled, but the VM does not suspend
// a Frame across a host microtask turn.
//
// Grounded on the same simplification callGenerator documents in call.go:
// generator bodies run to completion eagerly instead of yielding control
// back to the caller, because Frame is a plain Go call-stack activation, not
// a heap-allocated continuation the host can resume later. OpAwait follows
// the identical shape — it unwraps an already-settled promise in place
// rather than parking the frame and returning a pending promise to the
// caller.
//
// © 2025 esvm authors. MIT License.
package vm

import (
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// awaitValue implements OpAwait (vm.go): if v is a promise, its settled
// result or rejection reason is unwrapped synchronously; a pending promise
// (one whose executor never called resolve/reject before this frame reached
// the await) is reported as a TypeError rather than silently hanging, so a
// script that actually depends on microtask-queue suspension fails loudly
// instead of returning undefined.
//
// This is the one place the documented boundary is load-bearing: top-level
// await (spec.md §4.8's TLA plumbing) only works in internal/module because
// the module linker drives dependency evaluation in an order that happens
// to settle every awaited promise before the awaiting module's frame
// resumes — there is no actual suspension underneath it.
func (vm *VM) awaitValue(v value.Value) (value.Value, value.Value, bool) {
	if v.Kind() != value.KindPromise {
		return v, value.Value{}, true
	}
	pd := vm.Realm.Heap.PromiseData(v)
	switch pd.State {
	case object.PromiseFulfilled:
		return pd.Result, value.Value{}, true
	case object.PromiseRejected:
		return value.Undefined, pd.Result, false
	default:
		return value.Undefined, vm.Realm.typeError("await of a promise that never settled synchronously"), false
	}
}
