package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"github.com/mna/rustlox/lang/intern"
)

// StackMax is the fixed capacity of the value stack; exceeding it is a
// runtime error.
const StackMax = 256

// TraceExecution is the compile-time-style toggle for the diagnostic
// instruction trace (see disasm.go). Flip it and rebuild to watch every
// instruction the dispatch loop executes, mirroring the guarded disassembler
// trace in the spec's component 9.
const TraceExecution = false

// VM is the stack-machine execution engine: a fixed-capacity value stack, a
// fixed-capacity call-frame array, a flat global table and the head of the
// open-upvalue list. One VM instance is one REPL/script's worth of runtime
// state; globals persist across Interpret calls on the same VM,
// which is what lets a REPL session build up state line by line.
type VM struct {
	// Stdout and Stderr receive `print` output and disassembly tracing,
	// respectively. Both default to os.Stdout/os.Stderr, mirroring the
	// teacher's Thread.Stdout/Stderr fields, so tests and the REPL can swap
	// in an in-memory writer.
	Stdout io.Writer
	Stderr io.Writer

	stack    []Value
	stackTop int

	frames     [FramesMax]frame
	frameCount int

	globals      *swiss.Map[intern.Handle, Value]
	openUpvalues *Upvalue
}

// New returns a VM with its standard natives (clock) installed.
func New() *VM {
	v := &VM{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		stack:   make([]Value, StackMax),
		globals: swiss.NewMap[intern.Handle, Value](32),
	}
	v.defineStandardNatives()
	return v
}

func (v *VM) intern(s string) intern.Handle { return intern.Global.Intern(s) }

func (v *VM) push(val Value) error {
	if v.stackTop == StackMax {
		return v.runtimeError("Stack overflow.")
	}
	v.stack[v.stackTop] = val
	v.stackTop++
	return nil
}

func (v *VM) pop() Value {
	v.stackTop--
	return v.stack[v.stackTop]
}

func (v *VM) peek(distance int) Value {
	return v.stack[v.stackTop-1-distance]
}

func (v *VM) resetStack() {
	v.stackTop = 0
	v.frameCount = 0
	v.openUpvalues = nil
}

// Interpret wraps the compiled top-level Function in a Closure, pushes it,
// and runs the dispatch loop to completion. Global state (the globals table)
// persists across calls on the same VM.
func (v *VM) Interpret(fn *Function) error {
	closure := &Closure{Fn: fn}
	if err := v.push(closure); err != nil {
		return err
	}
	if err := v.call(closure, 0); err != nil {
		return err
	}
	return v.run()
}

// call pushes a new frame for closure with argCount already-pushed
// arguments below the stack top (and the closure itself beneath those).
func (v *VM) call(closure *Closure, argCount int) error {
	if argCount != closure.Fn.Arity {
		return v.runtimeError("Expected %d arguments but got %d.", closure.Fn.Arity, argCount)
	}
	if v.frameCount == FramesMax {
		return v.runtimeError("Stack overflow.")
	}
	fr := &v.frames[v.frameCount]
	v.frameCount++
	fr.closure = closure
	fr.ip = 0
	fr.base = v.stackTop - argCount - 1
	return nil
}

func (v *VM) callValue(callee Value, argCount int) error {
	switch c := callee.(type) {
	case *Closure:
		return v.call(c, argCount)
	case *Native:
		args := v.stack[v.stackTop-argCount : v.stackTop]
		result, err := c.Fn(args)
		if err != nil {
			return v.runtimeError("%s", err)
		}
		v.stackTop -= argCount
		v.stack[v.stackTop-1] = result
		return nil
	default:
		return v.runtimeError("Can only call functions and classes.")
	}
}

// captureUpvalue returns the open Upvalue cell aliasing the stack slot at
// absolute index idx, reusing one already in the open list (ordered by
// descending StackIndex) or inserting a new one in order.
func (v *VM) captureUpvalue(idx int) *Upvalue {
	var prev *Upvalue
	cur := v.openUpvalues
	for cur != nil && cur.StackIndex > idx {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.StackIndex == idx {
		return cur
	}

	created := &Upvalue{Location: &v.stack[idx], StackIndex: idx}
	created.Next = cur
	if prev == nil {
		v.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue aliasing a stack slot at or above
// last, detaching each from the open list.
func (v *VM) closeUpvalues(last int) {
	for v.openUpvalues != nil && v.openUpvalues.StackIndex >= last {
		u := v.openUpvalues
		v.openUpvalues = u.Next
		u.close()
	}
}

func isFalsey(v Value) bool { return !v.Truthy() }

func valuesEqual(a, b Value) bool { return a == b }

// run is the single dispatch loop: it reads one opcode at a time from the
// current frame's chunk and switches on it. It returns when the outermost
// (script) frame returns, or on the first runtime error.
func (v *VM) run() error {
	fr := &v.frames[v.frameCount-1]

	for {
		if TraceExecution {
			DisassembleInstruction(v.Stderr, fr.chunk(), fr.ip)
		}

		op := OpCode(fr.readByte())
		switch op {
		case OpConstant:
			if err := v.push(fr.readConstant()); err != nil {
				return err
			}

		case OpNil:
			if err := v.push(NilValue); err != nil {
				return err
			}
		case OpTrue:
			if err := v.push(Bool(true)); err != nil {
				return err
			}
		case OpFalse:
			if err := v.push(Bool(false)); err != nil {
				return err
			}
		case OpPop:
			v.pop()

		case OpGetLocal:
			slot := fr.readByte()
			if err := v.push(v.stack[fr.base+int(slot)]); err != nil {
				return err
			}
		case OpSetLocal:
			slot := fr.readByte()
			v.stack[fr.base+int(slot)] = v.peek(0)

		case OpGetGlobal:
			name := fr.readConstant().(Str)
			val, ok := v.globals.Get(name.Handle)
			if !ok {
				return v.runtimeError("Undefined variable '%s'.", name)
			}
			if err := v.push(val); err != nil {
				return err
			}
		case OpDefineGlobal:
			name := fr.readConstant().(Str)
			v.globals.Put(name.Handle, v.peek(0))
			v.pop()
		case OpSetGlobal:
			name := fr.readConstant().(Str)
			if _, ok := v.globals.Get(name.Handle); !ok {
				return v.runtimeError("Undefined variable '%s'.", name)
			}
			v.globals.Put(name.Handle, v.peek(0))

		case OpGetUpvalue:
			slot := fr.readByte()
			if err := v.push(fr.closure.Upvalues[slot].Get()); err != nil {
				return err
			}
		case OpSetUpvalue:
			slot := fr.readByte()
			fr.closure.Upvalues[slot].Set(v.peek(0))

		case OpEqual:
			b := v.pop()
			a := v.pop()
			if err := v.push(Bool(valuesEqual(a, b))); err != nil {
				return err
			}
		case OpGreater:
			if err := v.binaryNumberOp(op); err != nil {
				return err
			}
		case OpLess:
			if err := v.binaryNumberOp(op); err != nil {
				return err
			}

		case OpAdd:
			b, a := v.peek(0), v.peek(1)
			switch {
			case isNumber(a) && isNumber(b):
				v.pop()
				v.pop()
				if err := v.push(a.(Number) + b.(Number)); err != nil {
					return err
				}
			case isStr(a) && isStr(b):
				v.pop()
				v.pop()
				if err := v.push(Concat(a.(Str), b.(Str))); err != nil {
					return err
				}
			default:
				return v.runtimeError("Operands must be two numbers or two strings.")
			}
		case OpSubtract, OpMultiply, OpDivide:
			if err := v.binaryNumberOp(op); err != nil {
				return err
			}

		case OpNot:
			if err := v.push(Bool(isFalsey(v.pop()))); err != nil {
				return err
			}
		case OpNegate:
			if !isNumber(v.peek(0)) {
				return v.runtimeError("Operand must be a number.")
			}
			if err := v.push(-v.pop().(Number)); err != nil {
				return err
			}

		case OpPrint:
			fmt.Fprintln(v.Stdout, v.pop().String())

		case OpJump:
			offset := fr.readShort()
			fr.ip += int(offset)
		case OpJumpIfFalse:
			offset := fr.readShort()
			if isFalsey(v.peek(0)) {
				fr.ip += int(offset)
			}
		case OpLoop:
			offset := fr.readShort()
			fr.ip -= int(offset)

		case OpCall:
			argCount := int(fr.readByte())
			if err := v.callValue(v.peek(argCount), argCount); err != nil {
				return err
			}
			fr = &v.frames[v.frameCount-1]

		case OpClosure:
			fn := fr.readConstant().(*Function)
			closure := &Closure{Fn: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := fr.readByte()
				index := int(fr.readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = v.captureUpvalue(fr.base + index)
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			if err := v.push(closure); err != nil {
				return err
			}

		case OpCloseUpvalue:
			v.closeUpvalues(v.stackTop - 1)
			v.pop()

		case OpReturn:
			result := v.pop()
			v.closeUpvalues(fr.base)
			v.frameCount--
			if v.frameCount == 0 {
				v.pop() // the top-level script closure
				return nil
			}
			v.stackTop = fr.base
			if err := v.push(result); err != nil {
				return err
			}
			fr = &v.frames[v.frameCount-1]

		default:
			panic(fmt.Sprintf("internal error: unknown opcode %d", op))
		}
	}
}

func isNumber(v Value) bool { _, ok := v.(Number); return ok }
func isStr(v Value) bool    { _, ok := v.(Str); return ok }

func (v *VM) binaryNumberOp(op OpCode) error {
	if !isNumber(v.peek(0)) || !isNumber(v.peek(1)) {
		return v.runtimeError("Operands must be numbers.")
	}
	b := v.pop().(Number)
	a := v.pop().(Number)
	switch op {
	case OpGreater:
		return v.push(Bool(a > b))
	case OpLess:
		return v.push(Bool(a < b))
	case OpSubtract:
		return v.push(a - b)
	case OpMultiply:
		return v.push(a * b)
	case OpDivide:
		return v.push(a / b)
	}
	return nil
}

// runtimeError formats message, captures a stack trace top to bottom over
// the active frames, resets the stack, and returns the resulting
// *RuntimeError.
func (v *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	trace := make([]string, 0, v.frameCount)
	for i := v.frameCount - 1; i >= 0; i-- {
		fr := &v.frames[i]
		name := intern.Global.As(fr.closure.Fn.Name)
		if name == "" {
			trace = append(trace, fmt.Sprintf("[line %d] in script", fr.line()))
		} else {
			trace = append(trace, fmt.Sprintf("[line %d] in %s()", fr.line(), name))
		}
	}

	v.resetStack()
	return &RuntimeError{Message: msg, Trace: trace}
}
