// class_test.go exercises compileClassCommon's lowering for spec.md §8
// scenario 6 (`class C extends null { constructor(){ super(); } }`)
// without running the VM: internal/compiler cannot import internal/vm (vm
// imports compiler for *Executable), so this package's tests check the
// instruction stream and Executable flags the VM's OpClassDefineConstructor/
// OpClassDefineDefaultConstructor handlers rely on, leaving end-to-end
// execution to pkg/esvm's TestScenarioClassExtendsNull.
package compiler

import (
	"testing"

	"github.com/Voskan/esvm/internal/parser"
)

func mustCompileScript(t *testing.T, src string) *Executable {
	t.Helper()
	p := parser.New(src, false)
	root := p.ParseScript()
	if diags := p.Diagnostics(); len(diags) > 0 {
		t.Fatalf("parse %q: %v", src, diags)
	}
	exec, errs := CompileScript(p.Tree(), root, src)
	if len(errs) > 0 {
		t.Fatalf("compile %q: %v", src, errs)
	}
	return exec
}

func findOp(exec *Executable, op Op) (Instruction, bool) {
	for _, in := range exec.Instructions {
		if in.Op == op {
			return in, true
		}
	}
	return Instruction{}, false
}

// A derived class with an explicit constructor emits OpClassDefineConstructor
// with B=1 (has-heritage), and the nested constructor Executable is marked
// both IsClassConstructor and IsDerivedConstructor so the VM's OpSuperCall
// handler knows to look at FunctionData.SuperConstructor.
func TestClassExtendsNullEmitsDerivedConstructor(t *testing.T) {
	exec := mustCompileScript(t, `class C extends null { constructor(){ super(); } }`)

	in, ok := findOp(exec, OpClassDefineConstructor)
	if !ok {
		t.Fatalf("no OpClassDefineConstructor emitted; instructions: %+v", exec.Instructions)
	}
	if in.B != 1 {
		t.Fatalf("OpClassDefineConstructor.B = %d, want 1 (has heritage, even for `extends null`)", in.B)
	}

	nestedIdx := int(exec.Constants[in.A].AsInt32())
	if nestedIdx < 0 || nestedIdx >= len(exec.Nested) {
		t.Fatalf("OpClassDefineConstructor constant %d = %d out of range of Nested (len %d)", in.A, nestedIdx, len(exec.Nested))
	}
	ctor := exec.Nested[nestedIdx]
	if !ctor.IsClassConstructor {
		t.Fatalf("constructor Executable.IsClassConstructor = false, want true")
	}
	if !ctor.IsDerivedConstructor {
		t.Fatalf("constructor Executable.IsDerivedConstructor = false, want true for `extends null`")
	}

	if _, ok := findOp(ctor, OpSuperCall); !ok {
		t.Fatalf("constructor body has no OpSuperCall for explicit super() call")
	}
}

// A class with no explicit constructor and no superclass gets the VM's
// synthesized default-constructor opcode instead, with B=0 (no heritage).
func TestPlainClassWithoutConstructorEmitsDefaultConstructor(t *testing.T) {
	exec := mustCompileScript(t, `class Empty {}`)

	in, ok := findOp(exec, OpClassDefineDefaultConstructor)
	if !ok {
		t.Fatalf("no OpClassDefineDefaultConstructor emitted; instructions: %+v", exec.Instructions)
	}
	if in.B != 0 {
		t.Fatalf("OpClassDefineDefaultConstructor.B = %d, want 0 (no heritage)", in.B)
	}
}

// A derived class with instance fields but no explicit constructor still
// needs a synthesized constructor that forwards to super(...) before
// initializing fields, so the compiler routes it through
// buildSynthesizedConstructor into the same OpClassDefineConstructor path
// an explicit constructor would take, not the no-args default.
func TestDerivedClassWithFieldsSynthesizesConstructor(t *testing.T) {
	exec := mustCompileScript(t, `class Base {} class Derived extends Base { x = 1; }`)

	in, ok := findOp(exec, OpClassDefineConstructor)
	if !ok {
		t.Fatalf("expected a synthesized constructor via OpClassDefineConstructor for a derived class with fields")
	}
	ctor := exec.Nested[exec.Constants[in.A].AsInt32()]
	if !ctor.IsDerivedConstructor {
		t.Fatalf("synthesized constructor should still be marked IsDerivedConstructor")
	}
	if _, ok := findOp(ctor, OpSuperCallSpread); !ok {
		t.Fatalf("synthesized derived constructor must forward to super(...args) before field init")
	}
}
