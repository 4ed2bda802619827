package vm

import (
	"strings"
)

// RuntimeError is returned by Interpret/run when a compiled program fails
// during execution: a type mismatch, an undefined global, an arity
// mismatch, a call of a non-callable, or stack/frame overflow. It carries
// the formatted message plus the stack trace captured at the point of
// failure, so callers (the REPL, the file runner) can print both without
// recomputing the trace from an already-unwound VM.
type RuntimeError struct {
	Message string
	Trace   []string // one "[line L] in <name>()" entry per frame, innermost first
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, line := range e.Trace {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	return b.String()
}

