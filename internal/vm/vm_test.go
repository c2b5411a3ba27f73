// vm_test.go exercises the VM's own run loop directly (parser+compiler
// feeding internal/vm.VM.ExecuteProgram), one level below pkg/esvm's
// public-facade tests, for spec.md §8 scenario 4: `null.x` must raise a
// catchable TypeError, not a Go panic.
package vm

import (
	"testing"

	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/object"
	"github.com/Voskan/esvm/internal/parser"
	"github.com/Voskan/esvm/internal/value"
	"go.uber.org/zap"
)

func mustCompile(t *testing.T, src string) *compiler.Executable {
	t.Helper()
	p := parser.New(src, false)
	root := p.ParseScript()
	if diags := p.Diagnostics(); len(diags) > 0 {
		t.Fatalf("parse %q: %v", src, diags)
	}
	exec, errs := compiler.CompileScript(p.Tree(), root, src)
	if len(errs) > 0 {
		t.Fatalf("compile %q: %v", src, errs)
	}
	return exec
}

func TestNullPropertyAccessThrowsTypeError(t *testing.T) {
	realm := NewRealm(zap.NewNop())
	exec := mustCompile(t, `null.x`)

	machine := New(realm)
	_, thrown, ok := machine.ExecuteProgram(exec, realm.GlobalEnv, realm.GlobalObject)
	if ok {
		t.Fatalf("expected an uncaught exception, got a normal completion")
	}
	if thrown.Kind() != value.KindError {
		t.Fatalf("thrown value kind = %v, want KindError", thrown.Kind())
	}
	data := realm.Heap.ErrorData(thrown)
	if data.Kind != object.ErrorType {
		t.Fatalf("thrown error kind = %v, want object.ErrorType", data.Kind)
	}
}

func TestScriptCompletionValueIsLastExpressionStatement(t *testing.T) {
	realm := NewRealm(zap.NewNop())
	exec := mustCompile(t, `1 + 2; 3 + 4`)

	machine := New(realm)
	res, _, ok := machine.ExecuteProgram(exec, realm.GlobalEnv, realm.GlobalObject)
	if !ok {
		t.Fatalf("script should not throw")
	}
	if res.Kind() != value.KindSmallInt || res.AsInt32() != 7 {
		t.Fatalf("completion value = %v, want small int 7", res)
	}
}

func TestCallThroughBoundBindingResolvesLexicalScope(t *testing.T) {
	realm := NewRealm(zap.NewNop())
	exec := mustCompile(t, `
		function add(a, b) { return a + b; }
		add(2, 3)
	`)

	machine := New(realm)
	res, thrown, ok := machine.ExecuteProgram(exec, realm.GlobalEnv, realm.GlobalObject)
	if !ok {
		t.Fatalf("unexpected throw: %v", thrown)
	}
	if res.Kind() != value.KindSmallInt || res.AsInt32() != 5 {
		t.Fatalf("completion value = %v, want small int 5", res)
	}
}
