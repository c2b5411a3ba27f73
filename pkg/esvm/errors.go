// errors.go implements spec.md §7's two-kind error model at the public
// boundary: a ParseError/CompileError (Go errors, returned before any
// bytecode runs) versus a Throw (an actual JavaScript exception value,
// produced only once evaluate() has started running compiled code).
package esvm

import (
	"fmt"
	"strings"

	"github.com/Voskan/esvm/internal/parser"
	"github.com/Voskan/esvm/internal/value"
	"github.com/Voskan/esvm/internal/vm"
)

// ParseError reports one or more lexer/parser diagnostics collected while
// parsing a script or module; Name is the source's display name (for
// stack traces and diagnostics, not used for resolution).
type ParseError struct {
	Name        string
	Diagnostics []parser.Diagnostic
}

func (e *ParseError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("esvm: %s: %s", e.Name, strings.Join(msgs, "; "))
}

// CompileError reports one or more internal/compiler diagnostics.
type CompileError struct {
	Name   string
	Errors []error
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, d := range e.Errors {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("esvm: %s: %s", e.Name, strings.Join(msgs, "; "))
}

// ThrowError wraps a JavaScript exception value an evaluate call produced,
// letting embedders recover the original Value (e.g. to read a custom
// error's .message) rather than just a string.
type ThrowError struct {
	realm *vm.Realm
	Value value.Value
}

func (e *ThrowError) Error() string {
	return "esvm: uncaught exception: " + vm.DisplayString(e.realm.Heap, e.Value)
}
