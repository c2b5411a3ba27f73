// Package vm executes the bytecode internal/compiler produces, per spec.md
// §4.6 "Bytecode Interpreter". A Realm owns one Heap and the intrinsic
// prototypes/global object every value created while running a script or
// module is rooted against; a VM is the stateless dispatch loop that walks
// an Executable's Instructions against a stack of Frames.
//
// Grounded on the teacher's pkg/shard.go top-level wiring (one struct owning
// the heap-equivalent state plus the prototypes standing in for the
// teacher's eviction policy tables) and on
// original_source/nova_vm/src/ecmascript/execution/realm.rs for which
// intrinsics a realm must hold before any script can run.
//
// © 2025 esvm authors. MIT License.
package vm

import (
	"math"

	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/environment"
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// Realm bundles one Heap with the intrinsic objects spec.md §5 says every
// realm needs before evaluating anything: "one realm, one agent, single
// threaded", with %Object.prototype%, %Function.prototype%, %Array.prototype%
// and friends wired ahead of time so every OpNewObject/OpNewArray/
// OpNewFunction instruction has somewhere to hang its [[Prototype]].
type Realm struct {
	Heap   *heap.Heap
	Logger *zap.Logger

	ObjectProto   value.Value
	FunctionProto value.Value
	ArrayProto    value.Value

	ArrayBufferProto value.Value
	// TypedArrayProto stands in for ECMA-262's %TypedArray.prototype%
	// abstract base, shared by every XArray.prototype the way IteratorProto
	// below is shared by every iterator kind rather than each XArray getting
	// its own intrinsic (DESIGN.md simplification).
	TypedArrayProto value.Value

	ErrorProto          value.Value
	TypeErrorProto      value.Value
	RangeErrorProto     value.Value
	SyntaxErrorProto    value.Value
	ReferenceErrorProto value.Value
	EvalErrorProto      value.Value
	URIErrorProto       value.Value
	AggregateErrorProto value.Value

	PromiseProto  value.Value
	MapProto      value.Value
	SetProto      value.Value
	GeneratorProto value.Value
	// IteratorProto is shared by every built-in iterator kind (array, string,
	// map, set, generator): esvm does not implement Symbol.iterator dispatch
	// (DESIGN.md), so there is no value in giving each kind its own
	// %ArrayIteratorPrototype% etc. the way ECMA-262 does.
	IteratorProto value.Value

	GlobalObject value.Value
	GlobalEnv    *environment.Environment
}

// NewRealm allocates a Heap (unless one is supplied via opts) and wires every
// intrinsic prototype plus the global object/environment pair. logger feeds
// both the Heap's own diagnostics and the realm-level console binding.
func NewRealm(logger *zap.Logger, opts ...heap.Option) *Realm {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := heap.New(append([]heap.Option{heap.WithLogger(logger)}, opts...)...)

	r := &Realm{Heap: h, Logger: logger}

	// Proxy trap dispatch (internal/heap/proxy.go) needs to call back into
	// a handler's trap methods, which requires a VM; internal/heap cannot
	// import internal/vm (the reverse import already exists), so this hands
	// the heap a function pointer instead. Safe to wire before the
	// intrinsic prototypes below are populated: the hook is only invoked
	// once a script actually constructs and uses a Proxy, by which point
	// NewRealm has returned.
	h.SetCallHook((&VM{Realm: r}).Call)

	// %Object.prototype% sits at the root of every ordinary prototype chain;
	// it alone has no [[Prototype]] of its own.
	r.ObjectProto = h.NewOrdinaryObject(value.Null, true)
	r.FunctionProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.ArrayProto = h.NewOrdinaryObject(r.ObjectProto, true)

	r.ErrorProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.TypeErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.RangeErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.SyntaxErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.ReferenceErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.EvalErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.URIErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)
	r.AggregateErrorProto = h.NewOrdinaryObject(r.ErrorProto, true)

	r.ArrayBufferProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.TypedArrayProto = h.NewOrdinaryObject(r.ObjectProto, true)

	r.PromiseProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.MapProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.SetProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.GeneratorProto = h.NewOrdinaryObject(r.ObjectProto, true)
	r.IteratorProto = h.NewOrdinaryObject(r.ObjectProto, true)

	r.GlobalObject = h.NewOrdinaryObject(r.ObjectProto, true)
	r.GlobalEnv = environment.NewGlobal(r.GlobalObject.Handle())

	r.installGlobals()
	r.installErrorConstructors()
	r.installTypedArrayConstructors()
	return r
}

// ErrorProtoFor returns the prototype a thrown error of kind should use,
// falling back to the generic %Error.prototype% for unmapped kinds (spec.md
// §6 "TypeError on null.x" is the scenario that exercises this lookup).
func (r *Realm) ErrorProtoFor(kind object.ErrorKind) value.Value {
	switch kind {
	case object.ErrorType:
		return r.TypeErrorProto
	case object.ErrorRange:
		return r.RangeErrorProto
	case object.ErrorSyntax:
		return r.SyntaxErrorProto
	case object.ErrorReference:
		return r.ReferenceErrorProto
	case object.ErrorEval:
		return r.EvalErrorProto
	case object.ErrorURI:
		return r.URIErrorProto
	case object.ErrorAggregate:
		return r.AggregateErrorProto
	default:
		return r.ErrorProto
	}
}

// installGlobals seeds the handful of ambient bindings a hosted script
// expects to already exist: globalThis, the NaN/Infinity/undefined numeric
// literals some code looks up as identifiers rather than literals, and a
// console object wired to the realm's logger (spec.md's Non-goals exclude a
// full host-environment/WHATWG console, but the ambient logging stack is
// carried regardless, per SPEC_FULL.md's ambient-stack section).
func (r *Realm) installGlobals() {
	r.GlobalEnv.DeclareMutable("globalThis", false)
	r.GlobalEnv.InitializeBinding("globalThis", r.GlobalObject)
	r.GlobalEnv.DeclareImmutable("undefined")
	r.GlobalEnv.InitializeBinding("undefined", value.Undefined)
	r.GlobalEnv.DeclareImmutable("NaN")
	r.GlobalEnv.InitializeBinding("NaN", value.Double(math.NaN()))
	r.GlobalEnv.DeclareImmutable("Infinity")
	r.GlobalEnv.InitializeBinding("Infinity", value.Double(math.Inf(1)))

	console := r.Heap.NewOrdinaryObject(r.ObjectProto, true)
	logFn := r.Heap.NewBuiltinFunction(r.FunctionProto, "log", 0, r.consoleLog)
	r.Heap.DefineOwnProperty(console, r.Heap.PropertyKeyFor("log"), dataProp(logFn))
	errFn := r.Heap.NewBuiltinFunction(r.FunctionProto, "error", 0, r.consoleLog)
	r.Heap.DefineOwnProperty(console, r.Heap.PropertyKeyFor("error"), dataProp(errFn))
	warnFn := r.Heap.NewBuiltinFunction(r.FunctionProto, "warn", 0, r.consoleLog)
	r.Heap.DefineOwnProperty(console, r.Heap.PropertyKeyFor("warn"), dataProp(warnFn))

	r.GlobalEnv.DeclareMutable("console", false)
	r.GlobalEnv.InitializeBinding("console", console)
}

// consoleLog implements console.log/warn/error by forwarding each argument's
// display string to the realm's zap logger, matching the teacher's
// structured-logging-over-fmt.Println house style.
func (r *Realm) consoleLog(this value.Value, args []value.Value) (value.Value, value.Value, bool) {
	fields := make([]zap.Field, 0, len(args))
	for i, a := range args {
		fields = append(fields, zap.String(fieldName(i), DisplayString(r.Heap, a)))
	}
	r.Logger.Info("console", fields...)
	return value.Undefined, value.Value{}, true
}

func fieldName(i int) string {
	switch i {
	case 0:
		return "arg0"
	case 1:
		return "arg1"
	case 2:
		return "arg2"
	default:
		return "argN"
	}
}
