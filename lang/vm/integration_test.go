package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/rustlox/lang/compiler"
	"github.com/mna/rustlox/lang/vm"
	"github.com/stretchr/testify/require"
)

// run compiles and interprets src on a fresh VM, returning stdout and any
// runtime error.
func run(t *testing.T, src string) (string, error) {
	t.Helper()
	fn, err := compiler.Compile(src)
	require.NoError(t, err)

	var out bytes.Buffer
	v := vm.New()
	v.Stdout = &out
	v.Stderr = &bytes.Buffer{}
	return out.String(), v.Interpret(fn)
}

// TestScenarios exercises the literal I/O scenarios from the spec's
// TESTABLE PROPERTIES section, verbatim.
func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "arithmetic precedence",
			src:  `print 1 + 2 * 3;`,
			want: "7\n",
		},
		{
			name: "string concatenation",
			src:  `var a = "foo"; var b = "bar"; print a + b;`,
			want: "foobar\n",
		},
		{
			name: "closure shared mutable upvalue",
			src: `fun makeCounter() {
				var i = 0;
				fun count() {
					i = i + 1;
					print i;
				}
				return count;
			}
			var c = makeCounter();
			c();
			c();
			c();`,
			want: "1\n2\n3\n",
		},
		{
			name: "uninitialized var is nil",
			src:  `var x; print x;`,
			want: "nil\n",
		},
		{
			name: "function identity equality",
			src:  `fun f() { return f; } print f() == f;`,
			want: "true\n",
		},
		{
			name: "for loop",
			src:  `for (var i = 0; i < 3; i = i + 1) print i;`,
			want: "0\n1\n2\n",
		},
		{
			name: "nested block shadowing",
			src: `var a = 1;
			{
				var a = 2;
				{
					var a = 3;
					print a;
				}
				print a;
			}
			print a;`,
			want: "3\n2\n1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.src)
			require.NoError(t, err)
			require.Equal(t, tt.want, out)
		})
	}
}

func TestUndefinedGlobalRuntimeError(t *testing.T) {
	_, err := run(t, `print foo;`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Undefined variable 'foo'.")
	require.Contains(t, err.Error(), "[line 1] in script")
}

func TestEqualityAcrossCases(t *testing.T) {
	out, err := run(t, `print nil == nil; print 0 == false; print "a" == "a";`)
	require.NoError(t, err)
	require.Equal(t, "true\nfalse\ntrue\n", out)
}

func TestShortCircuitAnd(t *testing.T) {
	// the right operand of `and` must not run when the left is falsey: if it
	// did, it would print "evaluated" before the final result.
	out, err := run(t, `fun sideEffect() { print "evaluated"; return true; }
		print false and sideEffect();`)
	require.NoError(t, err)
	require.Equal(t, "false\n", out)
}

func TestShortCircuitOr(t *testing.T) {
	out, err := run(t, `fun sideEffect() { print "evaluated"; return true; }
		print true or sideEffect();`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}

func TestShadowingLocalDoesNotMutateGlobal(t *testing.T) {
	out, err := run(t, `var a = "global";
		fun f() {
			var a = "local";
			print a;
		}
		f();
		print a;`)
	require.NoError(t, err)
	require.Equal(t, "local\nglobal\n", out)
}

func TestClosureSharedBetweenTwoAccessors(t *testing.T) {
	out, err := run(t, `fun pair() {
			var v = 0;
			fun get() { return v; }
			fun set(x) { v = x; }
			fun report() { print get(); }
			set(42);
			report();
		}
		pair();`)
	require.NoError(t, err)
	require.Equal(t, "42\n", out)
}

func TestAddMismatchedOperandsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Operands must be"))
}

func TestCallArityMismatch(t *testing.T) {
	_, err := run(t, `fun f(a, b) { return a + b; } f(1);`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Expected 2 arguments but got 1.")
}

func TestStackOverflowWithoutFrameOverflow(t *testing.T) {
	// each recursive call leaves five locals live on the shared value stack
	// well before the 64-frame call limit is reached, so this must trip the
	// value-stack's own 256-slot cap, not the frame cap.
	_, err := run(t, `fun f(n) {
			var a = 1;
			var b = 2;
			var c = 3;
			var d = 4;
			var e = 5;
			if (n > 0) return f(n - 1);
			return 0;
		}
		print f(40);`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Stack overflow.")
}

func TestCallNonCallable(t *testing.T) {
	_, err := run(t, `var x = 1; x();`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Can only call functions and classes.")
}

func TestNativeClock(t *testing.T) {
	out, err := run(t, `print clock() > 0;`)
	require.NoError(t, err)
	require.Equal(t, "true\n", out)
}
