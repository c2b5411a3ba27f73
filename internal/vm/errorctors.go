// errorctors.go installs the Error/TypeError/RangeError/... constructors on
// the global object. spec.md §8 scenario 4 ("e instanceof TypeError") needs
// a global `TypeError` binding that is both callable (so `new TypeError(...)`
// works from script) and carries a `prototype` property identical to the one
// newError already roots thrown errors against (errors.go), since
// call.go's instanceOf reads `b.prototype` off whatever value the identifier
// resolves to.
package vm

import (
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

// errorCtorSpec pairs one ErrorKind with the global name it is exposed under.
type errorCtorSpec struct {
	name string
	kind object.ErrorKind
}

var errorCtorSpecs = []errorCtorSpec{
	{"Error", object.ErrorGeneric},
	{"TypeError", object.ErrorType},
	{"RangeError", object.ErrorRange},
	{"SyntaxError", object.ErrorSyntax},
	{"ReferenceError", object.ErrorReference},
	{"EvalError", object.ErrorEval},
	{"URIError", object.ErrorURI},
	{"AggregateError", object.ErrorAggregate},
}

// installErrorConstructors wires one builtin constructor function per
// errorCtorSpec, each rooted at the realm's already-allocated
// %XErrorPrototype% (realm.go) so a script-thrown `new TypeError(...)` and a
// VM-raised TypeError (errors.go's typeError) share one prototype and
// therefore one `instanceof` target.
func (r *Realm) installErrorConstructors() {
	h := r.Heap
	protoKey := h.PropertyKeyFor("prototype")
	ctorKey := h.PropertyKeyFor("constructor")
	nameKey := h.PropertyKeyFor("name")
	messageKey := h.PropertyKeyFor("message")

	for _, spec := range errorCtorSpecs {
		spec := spec
		proto := r.ErrorProtoFor(spec.kind)
		ctor := h.NewBuiltinFunction(r.FunctionProto, spec.name, 1, func(_ value.Value, args []value.Value) (value.Value, value.Value, bool) {
			msg := ""
			if len(args) > 0 && !args[0].IsUndefined() {
				msg = toStringValue(h, args[0])
			}
			return h.NewError(proto, spec.kind, msg, ""), value.Value{}, true
		})
		h.DefineOwnProperty(ctor, protoKey, nonEnumDataProp(proto))
		h.DefineOwnProperty(proto, ctorKey, nonEnumDataProp(ctor))
		h.DefineOwnProperty(proto, nameKey, nonEnumDataProp(mustSmallOrNative(h, spec.name)))
		h.DefineOwnProperty(proto, messageKey, nonEnumDataProp(mustSmallOrNative(h, "")))

		r.GlobalEnv.DeclareMutable(spec.name, false)
		r.GlobalEnv.InitializeBinding(spec.name, ctor)
	}
}

// mustSmallOrNative builds a string Value, interning through the heap when s
// does not fit the 6-byte small-string inline form.
func mustSmallOrNative(h *heap.Heap, s string) value.Value {
	if sv, ok := value.SmallString(s); ok {
		return sv
	}
	return h.InternString(s)
}
