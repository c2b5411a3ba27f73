// toplevel.go runs a compiled Script or Module body to completion: the same
// Frame/run machinery call.go uses for an ordinary function invocation,
// seeded with the environment the caller (pkg/esvm for a script,
// internal/module for a module's [[ExecuteModule]]) has already prepared
// rather than one this package constructs itself.
//
// Grounded on callECMAScript's frame setup in call.go, generalized from "a
// function body closing over its defining environment" to "a program body
// running directly in a caller-supplied environment", since a top-level
// script/module has no FunctionData/closure of its own to read Executable
// and Closure off of.
//
// © 2025 esvm authors. MIT License.
package vm

import (
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// ExecuteProgram runs exec's instruction stream directly in env, the way
// spec.md §6's `evaluate(script)` and internal/module's module-evaluation
// step both need: no [[Call]]/[[Construct]] dispatch, no argument binding,
// just the compiled top-level statements. thisValue is the global object
// for a script (ECMA-262's ScriptEvaluation) or Undefined for a module
// (module code is always strict, and a module's top-level `this` is
// Undefined per spec.md §3's SourceTextModule fields).
func (vm *VM) ExecuteProgram(exec *compiler.Executable, env *environment.Environment, thisValue value.Value) (value.Value, value.Value, bool) {
	frame := &Frame{exec: exec, env: env, this: thisValue}
	return vm.run(frame)
}

// ExecuteProgramAsync runs exec the way ExecuteProgram does, but always
// wraps its outcome in a Promise the way an async function body would
// (callECMAScript's exec.IsAsync branch): fulfilled with the completion
// value, or rejected with the thrown value. Nothing in esvm calls it;
// internal/module runs every module body, with or without top-level
// await, through ExecuteProgram.
func (vm *VM) ExecuteProgramAsync(exec *compiler.Executable, env *environment.Environment, thisValue value.Value) value.Value {
	h := vm.Realm.Heap
	res, thrown, ok := vm.ExecuteProgram(exec, env, thisValue)
	p := h.NewPromise(vm.Realm.PromiseProto)
	pd := h.PromiseData(p)
	if !ok {
		pd.State = object.PromiseRejected
		pd.Result = thrown
		return p
	}
	pd.State = object.PromiseFulfilled
	pd.Result = res
	return p
}
