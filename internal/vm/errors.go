// Throw-helper constructors: every place the VM itself raises an exception
// (as opposed to a script's own `throw`) goes through one of these, so the
// message wording stays consistent. Grounded on heap/methods.go's GetV,
// which raises the canonical "Cannot read properties of undefined" message
// spec.md §6's scenario 4 names; the rest of these mirror that phrasing for
// the other abstract-operation failures the VM can hit.
package vm

import (
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/value"
)

func (r *Realm) newError(kind object.ErrorKind, message string) value.Value {
	return r.Heap.NewError(r.ErrorProtoFor(kind), kind, message, "")
}

func (r *Realm) typeError(message string) value.Value {
	return r.newError(object.ErrorType, message)
}

func (r *Realm) rangeError(message string) value.Value {
	return r.newError(object.ErrorRange, message)
}

func (r *Realm) referenceError(message string) value.Value {
	return r.newError(object.ErrorReference, message)
}

func (r *Realm) syntaxError(message string) value.Value {
	return r.newError(object.ErrorSyntax, message)
}

// TypeError, SyntaxError, and ReferenceError expose the realm's canonical
// error constructors to other packages (internal/module's link/evaluate
// failures, pkg/esvm's boundary-error wrapping) that need to raise the same
// well-known error kinds a script's own `throw` would produce.
func (r *Realm) TypeError(message string) value.Value { return r.typeError(message) }

func (r *Realm) SyntaxError(message string) value.Value { return r.syntaxError(message) }

func (r *Realm) ReferenceError(message string) value.Value { return r.referenceError(message) }

func notCallable(r *Realm, v value.Value) value.Value {
	return r.typeError(toStringValue(r.Heap, v) + " is not a function")
}

func notConstructable(r *Realm) value.Value {
	return r.typeError("value is not a constructor")
}

func notIterable(r *Realm, v value.Value) value.Value {
	return r.typeError(v.TypeOf() + " is not iterable")
}

func undeclaredVariable(r *Realm, name string) value.Value {
	return r.referenceError(name + " is not defined")
}

func temporalDeadZone(r *Realm, name string) value.Value {
	return r.referenceError("Cannot access '" + name + "' before initialization")
}

// ErrorMessage reads an ErrorData's Message, for host-side reporting of an
// uncaught exception; any other value is rendered with DisplayString.
func ErrorMessage(v value.Value, r *Realm) string {
	if v.Kind() != value.KindError {
		return DisplayString(r.Heap, v)
	}
	return r.Heap.ErrorData(v).Message
}
