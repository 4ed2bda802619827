package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func compileErrors(t *testing.T, src string) []string {
	t.Helper()
	_, err := Compile(src)
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok, "expected *CompileError, got %T", err)
	return ce.Errors
}

func TestCompileValidProgram(t *testing.T) {
	fn, err := Compile(`print 1 + 2;`)
	require.NoError(t, err)
	require.NotNil(t, fn)
	require.Equal(t, 0, fn.Arity)
}

func TestCompileErrorMessageFormat(t *testing.T) {
	errs := compileErrors(t, `1 +;`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "Error at ';'")
}

func TestCannotReturnFromTopLevel(t *testing.T) {
	errs := compileErrors(t, `return 1;`)
	require.Contains(t, strings.Join(errs, "\n"), "Can't return from top-level code.")
}

func TestReadLocalInOwnInitializer(t *testing.T) {
	errs := compileErrors(t, `{ var a = a; }`)
	require.Contains(t, strings.Join(errs, "\n"), "Can't read local variable in its own initializer.")
}

func TestRedeclareInSameScope(t *testing.T) {
	errs := compileErrors(t, `{ var a = 1; var a = 2; }`)
	require.Contains(t, strings.Join(errs, "\n"), "Already a variable with this name in this scope.")
}

func TestRedeclareAcrossScopesIsFine(t *testing.T) {
	_, err := Compile(`var a = 1; { var a = 2; }`)
	require.NoError(t, err)
}

func TestInvalidAssignmentTarget(t *testing.T) {
	errs := compileErrors(t, `1 + 2 = 3;`)
	require.Contains(t, strings.Join(errs, "\n"), "Invalid assignment target.")
}

func TestTooManyLocals(t *testing.T) {
	var b strings.Builder
	b.WriteString("{\n")
	for i := 0; i < maxLocals+1; i++ {
		fmt.Fprintf(&b, "var v%d = %d;\n", i, i)
	}
	b.WriteString("}\n")

	errs := compileErrors(t, b.String())
	require.Contains(t, strings.Join(errs, "\n"), "Too many local variables in function.")
}

func TestTooManyArguments(t *testing.T) {
	var args strings.Builder
	for i := 0; i < maxArgs+1; i++ {
		if i > 0 {
			args.WriteString(", ")
		}
		args.WriteString("nil")
	}
	src := fmt.Sprintf("fun f() {} f(%s);", args.String())

	errs := compileErrors(t, src)
	require.Contains(t, strings.Join(errs, "\n"), "Can't have more than 255 arguments.")
}

func TestTooManyParameters(t *testing.T) {
	var params strings.Builder
	for i := 0; i < maxArgs+1; i++ {
		if i > 0 {
			params.WriteString(", ")
		}
		fmt.Fprintf(&params, "p%d", i)
	}
	src := fmt.Sprintf("fun f(%s) {}", params.String())

	errs := compileErrors(t, src)
	require.Contains(t, strings.Join(errs, "\n"), "Can't have more than 255 parameters.")
}

func TestTooManyConstants(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 257; i++ {
		fmt.Fprintf(&b, "print %d.5;\n", i)
	}

	errs := compileErrors(t, b.String())
	found := false
	for _, e := range errs {
		if strings.Contains(e, "Too many constants") {
			found = true
		}
	}
	require.True(t, found, "expected a too-many-constants error, got: %v", errs)
}

func TestMultipleErrorsCollected(t *testing.T) {
	errs := compileErrors(t, `
		fun f( {
		print ;
	`)
	require.GreaterOrEqual(t, len(errs), 2)
}

func TestClosureUpvalueCompiles(t *testing.T) {
	_, err := Compile(`
		fun outer() {
			var x = 1;
			fun inner() { return x; }
			return inner;
		}
	`)
	require.NoError(t, err)
}
