// Command fixturegen generates deterministic synthetic JavaScript source
// fixtures for the parser/VM benchmarks in bench/. Property names are drawn
// from a small alphabet with a Zipf-skewed frequency so the generated object
// literals exercise shape-transition reuse and property-cache hit rates the
// same way a handwritten microbenchmark would, without hand-authoring one
// fixture per scenario.
//
// Usage:
//   go run ./tools/fixturegen -n 10000 -props 12 -seed 42 -out fixture.js
//
// Adapted from the teacher's tools/dataset_gen, which emitted uint64 key
// datasets under the same -n/-dist/-seed/-out flag shape for standalone
// cache benchmarking; fixturegen emits JS object-literal statements instead
// of bare integers, since the VM's benchmarks need a source program rather
// than a key stream.
//
// © 2025 esvm authors. MIT License.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n       = flag.Int("n", 10_000, "number of object-literal statements to generate")
		props   = flag.Int("props", 8, "size of the property-name alphabet")
		zipfS   = flag.Float64("zipfs", 1.3, "zipf s parameter (>1) skewing property reuse")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	if *props < 1 {
		fmt.Fprintln(os.Stderr, "props must be >= 1")
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seedVal))
	z := rand.NewZipf(rnd, *zipfS, 1.0, uint64(*props-1))

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	names := propertyAlphabet(*props)
	fmt.Fprintln(w, "let __sink = 0;")
	for i := 0; i < *n; i++ {
		k := int(z.Uint64())
		extra := names[int(z.Uint64())]
		fmt.Fprintf(w, "{ let o%d = { %s: %d }; o%d.%s = %d; __sink += o%d.%s; }\n",
			i, names[k], i, i, extra, i, i, names[k])
	}
	fmt.Fprintln(w, "__sink;")
}

// propertyAlphabet returns n distinct, deterministic property names
// (p0..pn-1) so repeated runs with the same -seed reproduce the same
// source text byte-for-byte.
func propertyAlphabet(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("p%d", i)
	}
	return names
}
