// Package bench provides reproducible micro-benchmarks for esvm. Run via:
//   go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//   1. Parse        – lexer+parser only, no compilation or execution
//   2. PropertyGet   – repeated property reads against a stable shape, the
//                      workload internal/propcache exists for
//   3. ShapeChurn    – repeated property reads across a small rotating set
//                      of shapes, forcing cache misses and reuse
//
// PropertyGet and ShapeChurn each parse, compile and evaluate their script
// end to end on every iteration.
//
// NOTE: Unit tests live alongside the packages they cover; this file is
// only for performance.
//
// © 2025 esvm authors. MIT License.
package bench

import (
	"testing"

	"github.com/Voskan/esvm/internal/parser"
	"github.com/Voskan/esvm/pkg/esvm"
)

const propertyGetSrc = `
let o = { p0: 1, p1: 2, p2: 3, p3: 4 };
let sum = 0;
for (let i = 0; i < 1000; i = i + 1) {
	sum = sum + o.p0 + o.p1 + o.p2 + o.p3;
}
sum;
`

const shapeChurnSrc = `
let sum = 0;
for (let i = 0; i < 1000; i = i + 1) {
	let o = { p0: i };
	if (i % 3 === 0) { o.p1 = i; }
	if (i % 5 === 0) { o.p2 = i; }
	sum = sum + o.p0;
}
sum;
`

func BenchmarkParse(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p := parser.New(propertyGetSrc, false)
		p.ParseScript()
		if errs := p.Diagnostics(); len(errs) > 0 {
			b.Fatalf("parse errors: %v", errs)
		}
	}
}

func benchmarkRun(b *testing.B, src string) {
	b.Helper()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		realm, err := esvm.New()
		if err != nil {
			b.Fatalf("new realm: %v", err)
		}
		script, err := realm.ParseScript(src, "bench.js")
		if err != nil {
			b.Fatalf("parse: %v", err)
		}
		if _, err := script.Evaluate(); err != nil {
			b.Fatalf("evaluate: %v", err)
		}
		realm.Close()
	}
}

func BenchmarkPropertyGet(b *testing.B) {
	benchmarkRun(b, propertyGetSrc)
}

func BenchmarkShapeChurn(b *testing.B) {
	benchmarkRun(b, shapeChurnSrc)
}
