package compilecache

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/value"
)

// renderedExecutable mirrors compiler.Executable but replaces every
// value.Value with a Go-comparable rendering (value.Value's kind/payload
// fields are unexported, so cmp.Diff can't walk it directly; see
// renderValue) and every nested *compiler.Executable with its own
// rendering, so cmp.Diff can report a path straight to whichever field
// an encode/decode round trip dropped or corrupted.
type renderedExecutable struct {
	Name                 string
	ParamCount           int
	LocalCount           int
	CacheSlotCount       int
	IsGenerator          bool
	IsAsync              bool
	IsArrow              bool
	IsDerivedConstructor bool
	IsClassConstructor   bool
	SourceText           string
	Instructions         []compiler.Instruction
	Constants            []string
	IdentifierNames      []string
	Nested               []renderedExecutable
}

// renderValue collapses a value.Value down to a string tag, since the
// constant pool this codec round-trips only ever holds the primitive kinds
// encodeValue/decodeValue handle (spec.md §4.5's constant pool, restricted
// here to what a compiled Executable actually emits via OpLoadConst).
func renderValue(h *heap.Heap, v value.Value) string {
	switch v.Kind() {
	case value.KindUndefined:
		return "undefined"
	case value.KindNull:
		return "null"
	case value.KindBoolean:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.KindSmallInt:
		return "int:" + strconv.Itoa(int(v.AsInt32()))
	case value.KindDouble:
		return "double:" + strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)
	case value.KindSmallString, value.KindHeapString:
		return "string:" + h.StringValue(v)
	default:
		return "unknown"
	}
}

func render(h *heap.Heap, exec *compiler.Executable) renderedExecutable {
	r := renderedExecutable{
		Name:                 exec.Name,
		ParamCount:           exec.ParamCount,
		LocalCount:           exec.LocalCount,
		CacheSlotCount:       exec.CacheSlotCount,
		IsGenerator:          exec.IsGenerator,
		IsAsync:              exec.IsAsync,
		IsArrow:              exec.IsArrow,
		IsDerivedConstructor: exec.IsDerivedConstructor,
		IsClassConstructor:   exec.IsClassConstructor,
		SourceText:           exec.SourceText,
		Instructions:         exec.Instructions,
		IdentifierNames:      exec.IdentifierNames,
	}
	for _, c := range exec.Constants {
		r.Constants = append(r.Constants, renderValue(h, c))
	}
	for _, n := range exec.Nested {
		r.Nested = append(r.Nested, render(h, n))
	}
	return r
}

// TestEncodeDecodeExecutableRoundTrips exercises the same encode/decode pair
// Store.Store/Store.Lookup drive against badger, minus the on-disk store, so
// a mismatch between internal/compiler.Executable's field list and codec.go's
// hand-written (de)serializer (spec.md §4.5's Executable, grounded on
// executable.go's field list per codec.go's header comment) fails here
// instead of silently corrupting a cached script the first time a host
// restarts with WithCompileCache configured.
func TestEncodeDecodeExecutableRoundTrips(t *testing.T) {
	h := heap.New()

	nested := &compiler.Executable{
		Name:            "inner",
		ParamCount:      1,
		LocalCount:      0,
		CacheSlotCount:  1,
		IsArrow:         true,
		SourceText:      "x => x + 1",
		Instructions:    []compiler.Instruction{{Op: compiler.OpGetEnv, A: 0, B: 0}, {Op: compiler.OpReturn}},
		Constants:       []value.Value{value.Int(1)},
		IdentifierNames: []string{"x"},
	}

	exec := &compiler.Executable{
		Name:           "outer",
		ParamCount:     0,
		LocalCount:     0,
		CacheSlotCount: 2,
		IsAsync:        false,
		SourceText:     "function outer() { const f = x => x + 1; return f(41); }",
		Instructions: []compiler.Instruction{
			{Op: compiler.OpLoadConst, A: 0, B: 0},
			{Op: compiler.OpNewFunction, A: 0, B: 0},
			{Op: compiler.OpSetEnv, A: 1, B: 0},
			{Op: compiler.OpGetEnv, A: 1, B: 0},
			{Op: compiler.OpLoadConst, A: 2, B: 0},
			{Op: compiler.OpCall, A: 1, B: 0},
			{Op: compiler.OpReturn},
		},
		Constants: []value.Value{
			value.Int(0),
			h.InternString("a string long enough to force heap interning"),
			value.Int(41),
		},
		IdentifierNames: []string{"f"},
		Nested:          []*compiler.Executable{nested},
	}

	var buf bytes.Buffer
	if err := encodeExecutable(&buf, exec, h); err != nil {
		t.Fatalf("encodeExecutable: %v", err)
	}

	decoded, err := decodeExecutable(bytes.NewReader(buf.Bytes()), h)
	if err != nil {
		t.Fatalf("decodeExecutable: %v", err)
	}

	want := render(h, exec)
	got := render(h, decoded)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round-tripped Executable mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeValueKinds(t *testing.T) {
	h := heap.New()
	cases := []value.Value{
		value.Undefined,
		value.Null,
		value.True,
		value.False,
		value.Int(-7),
		value.Double(3.5),
	}
	if sv, ok := value.SmallString("hi"); ok {
		cases = append(cases, sv)
	}
	cases = append(cases, h.InternString("a string too long to inline as a small string"))

	for _, want := range cases {
		var buf bytes.Buffer
		if err := encodeValue(&buf, want, h); err != nil {
			t.Fatalf("encodeValue(%v): %v", want, err)
		}
		got, err := decodeValue(bytes.NewReader(buf.Bytes()), h)
		if err != nil {
			t.Fatalf("decodeValue: %v", err)
		}
		if renderValue(h, want) != renderValue(h, got) {
			t.Fatalf("value round trip mismatch: want %s got %s", renderValue(h, want), renderValue(h, got))
		}
	}
}
