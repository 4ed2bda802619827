package vm_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/rustlox/internal/filetest"
	"github.com/mna/rustlox/lang/compiler"
	"github.com/mna/rustlox/lang/vm"
)

var updateGolden = flag.Bool("test.update-golden-tests", false, "update the golden .want files in testdata/golden")

// TestGolden runs every .lox file under testdata/golden against a fresh VM
// and diffs its stdout against the matching .want file, in the same
// source-file/golden-file pairing the teacher's filetest package was built
// for.
func TestGolden(t *testing.T) {
	const dir = "testdata/golden"
	for _, fi := range filetest.SourceFiles(t, dir, ".lox") {
		fi := fi
		t.Run(fi.Name(), func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join(dir, fi.Name()))
			if err != nil {
				t.Fatal(err)
			}

			fn, err := compiler.Compile(string(src))
			if err != nil {
				t.Fatalf("compile error: %v", err)
			}

			var out bytes.Buffer
			v := vm.New()
			v.Stdout = &out
			v.Stderr = &out
			if err := v.Interpret(fn); err != nil {
				t.Fatalf("runtime error: %v", err)
			}

			filetest.DiffOutput(t, fi, out.String(), dir, updateGolden)
		})
	}
}
