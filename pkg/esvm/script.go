// script.go implements spec.md §6's `parse_script`/`evaluate(script)`
// pair for non-module top-level code.
package esvm

import (
	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/value"
	"github.com/Voskan/esvm/internal/vm"
)

// Script is a parsed-and-compiled, not-yet-run top-level program.
type Script struct {
	realm *Realm
	exec  *compiler.Executable
}

// ParseScript parses and compiles source as Script-goal code (no import/
// export statements). name is used only for diagnostics and stack traces.
func (r *Realm) ParseScript(source, name string) (*Script, error) {
	exec, err := r.compile(source, name, false)
	if err != nil {
		return nil, err
	}
	return &Script{realm: r, exec: exec}, nil
}

// Evaluate runs the script's top-level code against the realm's global
// environment, with `this` bound to the global object (sloppy-mode top-
// level semantics). A Go error is returned only for an uncaught JavaScript
// exception (*ThrowError); parse/compile failures already surfaced from
// ParseScript.
func (s *Script) Evaluate() (value.Value, error) {
	machine := vm.New(s.realm.vm)
	res, thrown, ok := machine.ExecuteProgram(s.exec, s.realm.vm.GlobalEnv, s.realm.vm.GlobalObject)
	if !ok {
		return value.Undefined, &ThrowError{realm: s.realm.vm, Value: thrown}
	}
	return res, nil
}
