// Package maincmd implements the rustlox command-line entry point: a bare
// invocation starts a REPL that keeps one VM alive across lines, a single
// path argument compiles and runs that file once, anything else is a usage
// error.
package maincmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/rustlox/lang/compiler"
	"github.com/mna/rustlox/lang/vm"
)

// Exit codes, exactly as specified: 0 on success, 65 on compile failure, 70
// on runtime failure, 1 on internal/IO failure (including a malformed
// invocation).
const (
	ExitSuccess       mainer.ExitCode = 0
	ExitCompileError  mainer.ExitCode = 65
	ExitRuntimeError  mainer.ExitCode = 70
	ExitInternalError mainer.ExitCode = 1
)

// Cmd is the rustlox command. It holds no state of its own; all state lives
// in the vm.VM created for the invocation.
type Cmd struct{}

// Main dispatches on argument count, following the same mainer.Stdio /
// mainer.ExitCode shape as the rest of the pack's CLI entry points.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	switch len(args) {
	case 1:
		return c.repl(stdio)
	case 2:
		return c.runFile(args[1], stdio)
	default:
		fmt.Fprintln(stdio.Stderr, "Usage: rustlox [path]")
		return ExitInternalError
	}
}

func (c *Cmd) runFile(path string, stdio mainer.Stdio) mainer.ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitInternalError
	}

	v := newVM(stdio)
	return interpret(string(src), v, stdio.Stderr)
}

// repl reads lines from stdin and interprets each independently on the same
// VM instance, so globals and top-level state persist between lines. An
// error on one line does not end the session; only runFile's exit code
// reflects a single compile/run outcome.
func (c *Cmd) repl(stdio mainer.Stdio) mainer.ExitCode {
	v := newVM(stdio)

	in := bufio.NewScanner(stdio.Stdin)
	fmt.Fprint(stdio.Stdout, "> ")
	for in.Scan() {
		interpret(in.Text(), v, stdio.Stderr)
		fmt.Fprint(stdio.Stdout, "> ")
	}
	return ExitSuccess
}

func newVM(stdio mainer.Stdio) *vm.VM {
	v := vm.New()
	v.Stdout = stdio.Stdout
	v.Stderr = stdio.Stderr
	return v
}

func interpret(src string, v *vm.VM, stderr io.Writer) mainer.ExitCode {
	fn, err := compiler.Compile(src)
	if err != nil {
		if ce, ok := err.(*compiler.CompileError); ok {
			for _, line := range ce.Errors {
				fmt.Fprintln(stderr, line)
			}
		} else {
			fmt.Fprintln(stderr, err)
		}
		return ExitCompileError
	}

	if err := v.Interpret(fn); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRuntimeError
	}
	return ExitSuccess
}
