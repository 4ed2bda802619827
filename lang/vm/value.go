// Package vm implements the runtime value model, bytecode chunk format, and
// stack-machine dispatch loop that executes compiled rustlox programs.
package vm

import (
	"fmt"
	"strconv"

	"github.com/mna/rustlox/lang/intern"
)

// Value is the tagged union of the seven runtime value kinds: Bool, Number,
// Nil, Str (interned string), *Function, *Native and *Closure. Two Values
// are equal under Go's native == exactly when the spec requires: same
// dynamic type (case) and, within a case, Bool/Number/Nil by value, Str by
// handle identity, and *Function/*Native/*Closure by pointer identity. Cross-
// case comparisons are automatically false because the dynamic types differ.
type Value interface {
	// String returns the textual form Print writes.
	String() string
	// Type names the value's kind, used in runtime error messages.
	Type() string
	// Truthy reports whether the value is truthy: everything except Nil and
	// Bool(false).
	Truthy() bool
}

// Bool is the boolean value kind.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string   { return "bool" }
func (b Bool) Truthy() bool { return bool(b) }

// Number is the IEEE-754 double value kind.
type Number float64

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (Number) Type() string     { return "number" }
func (Number) Truthy() bool     { return true }

// Nil is the unit value kind. There is exactly one Nil value, NilValue.
type Nil struct{}

// NilValue is the single Nil value; compare against it with ==.
var NilValue = Nil{}

func (Nil) String() string { return "nil" }
func (Nil) Type() string   { return "nil" }
func (Nil) Truthy() bool   { return false }

// Str is an interned string handle. Two Strs compare equal with == exactly
// when they were interned from identical byte sequences.
type Str struct{ Handle intern.Handle }

func (s Str) String() string { return intern.Global.As(s.Handle) }
func (Str) Type() string     { return "string" }
func (Str) Truthy() bool     { return true }

// NewStr interns s and returns the resulting Str value.
func NewStr(s string) Str { return Str{Handle: intern.Global.Intern(s)} }

// Concat implements string `+` concatenation: interns the byte-concatenation
// of a and b.
func Concat(a, b Str) Str { return Str{Handle: intern.Global.Concat(a.Handle, b.Handle)} }

// Function is a function prototype: its arity, its compiled chunk, its
// (possibly empty) name, and the number of upvalue slots its closures need.
// Many Closures may share one Function by pointer.
type Function struct {
	Arity        int
	UpvalueCount int
	Name         intern.Handle
	Chunk        *Chunk
}

var _ Value = (*Function)(nil)

func (f *Function) String() string {
	name := intern.Global.As(f.Name)
	if name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", name)
}
func (*Function) Type() string { return "function" }
func (*Function) Truthy() bool { return true }

// NativeFn is the host-function ABI: it receives the call's arguments
// (read-only) and returns a single result or an error. Arity is not checked
// by the VM for natives.
type NativeFn func(args []Value) (Value, error)

// Native is an opaque host-provided function, compared by pointer identity.
type Native struct {
	Name string
	Fn   NativeFn
}

var _ Value = (*Native)(nil)

func (n *Native) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }
func (*Native) Type() string     { return "native function" }
func (*Native) Truthy() bool     { return true }

// Closure pairs a Function prototype with the vector of upvalue cells it
// captured at creation time. Closures, not bare Functions, are what the VM
// calls and what global/local variables hold.
type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
}

var _ Value = (*Closure)(nil)

func (c *Closure) String() string { return c.Fn.String() }
func (*Closure) Type() string     { return "function" }
func (*Closure) Truthy() bool     { return true }

// Upvalue is a capture cell. While Open, it aliases a live stack slot through
// Location; once Closed, Location points at the cell's own Value field so
// reads/writes after the frame returns observe the closed-over copy.
//
// Open cells additionally link into the VM's singly-linked open-upvalue
// list, ordered by descending StackIndex; Next is nil once Closed.
type Upvalue struct {
	Location   *Value
	closedSlot Value
	StackIndex int
	Next       *Upvalue
}

// IsOpen reports whether the cell still aliases a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.Location != &u.closedSlot }

// Get reads the cell's current value.
func (u *Upvalue) Get() Value { return *u.Location }

// Set writes through the cell, aliasing the stack slot if still open.
func (u *Upvalue) Set(v Value) { *u.Location = v }

// close detaches the cell from the open list and copies the aliased value
// into the cell itself, making it independent of the stack.
func (u *Upvalue) close() {
	u.closedSlot = *u.Location
	u.Location = &u.closedSlot
	u.Next = nil
}
