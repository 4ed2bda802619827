// Package compiler implements the single-pass Pratt-style compiler that
// lowers rustlox source text directly to bytecode: there is no intermediate
// AST. Scanning and parsing are interleaved with code generation, scope
// resolution and closure-capture analysis in one synchronous walk of the
// token stream.
package compiler

import (
	"fmt"
	"os"
	"strings"

	"github.com/mna/rustlox/lang/intern"
	"github.com/mna/rustlox/lang/scanner"
	"github.com/mna/rustlox/lang/token"
	"github.com/mna/rustlox/lang/vm"
)

// TraceCompile is the compile-time-style toggle for dumping the
// disassembled bytecode of every function as it finishes compiling,
// mirroring the spec's guarded disassembler component. Flip it and rebuild
// to watch what each declaration compiles to.
const TraceCompile = false

// CompileError is returned by Compile when one or more errors were reported
// during scanning or parsing. Errors are collected via panic/synchronize
// recovery (see parser.errorAt) rather than stopping at the first one, so a
// single Compile call can report every mistake found in the source.
type CompileError struct {
	Errors []string
}

func (e *CompileError) Error() string { return strings.Join(e.Errors, "\n") }

// Resource bounds from the spec's §5: 255 call arguments (the callee takes
// slot 0, for 256 slots in all), 256 locals and 256 upvalues per function, and a 16-bit jump
// displacement.
const (
	maxArgs      = 255
	maxLocals    = 256
	maxUpvalues  = 256
	maxJumpRange = 1 << 16
)

type functionKind int

const (
	kindFunction functionKind = iota
	kindScript
)

type local struct {
	name       token.Token
	depth      int // -1 means "uninitialized"
	isCaptured bool
}

type upvalueRef struct {
	index   uint8
	isLocal bool
}

// fnState is one instance of transient compiler state, one per function
// being compiled, chained to its lexically enclosing fnState exactly as
// described by the spec's Compiler state data model.
type fnState struct {
	enclosing *fnState

	fn   *vm.Function
	kind functionKind

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

func newFnState(enclosing *fnState, kind functionKind, name string) *fnState {
	fs := &fnState{
		enclosing: enclosing,
		kind:      kind,
		fn: &vm.Function{
			Name:  intern.Global.Intern(name),
			Chunk: vm.NewChunk(),
		},
	}
	// Slot 0 is reserved for the callee itself; its empty name can never
	// match a user identifier.
	fs.locals = append(fs.locals, local{depth: 0})
	return fs
}

// parser drives the token stream shared by every fnState in one Compile
// call: there is exactly one scanner and one lookahead pair across an
// entire compile, no matter how many nested functions it declares.
type parser struct {
	sc *scanner.Scanner

	previous token.Token
	current  token.Token

	errs      []string
	panicking bool
}

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.sc.Next()
		if p.current.Kind != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(p.previous, msg) }

// errorAt implements panic/synchronize recovery: the first error at a given
// position sets panicking, which suppresses cascading messages until the
// compiler resynchronizes at the next statement boundary.
func (p *parser) errorAt(tok token.Token, msg string) {
	if p.panicking {
		return
	}
	p.panicking = true

	var where string
	switch tok.Kind {
	case token.EOF:
		where = "at end"
	case token.ILLEGAL:
		where = ""
	default:
		where = fmt.Sprintf("at '%s'", tok.Lexeme)
	}

	var line string
	if where == "" {
		line = fmt.Sprintf("[line %d] Error: %s", tok.Line, msg)
	} else {
		line = fmt.Sprintf("[line %d] Error %s: %s", tok.Line, where, msg)
	}
	p.errs = append(p.errs, line)
}

// compiler is the whole-compile driver: the shared parser plus the current
// fnState (the compiler for the function currently being built).
type compiler struct {
	p  *parser
	fs *fnState
}

func (c *compiler) chunk() *vm.Chunk { return c.fs.fn.Chunk }

func (c *compiler) check(k token.Kind) bool { return c.p.current.Kind == k }

func (c *compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.p.advance()
	return true
}

func (c *compiler) consume(k token.Kind, msg string) {
	if c.p.current.Kind == k {
		c.p.advance()
		return
	}
	c.p.errorAtCurrent(msg)
}

// -- code generation helpers --

func (c *compiler) emitByte(b byte) {
	c.chunk().Write(b, c.p.previous.Line)
}

func (c *compiler) emitOp(op vm.OpCode) {
	c.chunk().WriteOp(op, c.p.previous.Line)
}

func (c *compiler) emitOpByte(op vm.OpCode, arg byte) {
	c.emitOp(op)
	c.emitByte(arg)
}

func (c *compiler) makeConstant(v vm.Value) byte {
	idx, err := c.chunk().AddConstant(v)
	if err != nil {
		c.p.error(err.Error())
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v vm.Value) {
	c.emitOpByte(vm.OpConstant, c.makeConstant(v))
}

// emitJump writes op plus a 2-byte placeholder and returns the placeholder's
// offset for a later patchJump.
func (c *compiler) emitJump(op vm.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

// patchJump back-patches the placeholder at offset to jump to the current
// end of the chunk.
func (c *compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump >= maxJumpRange {
		c.p.error("Too much code to jump over.")
		return
	}
	c.chunk().Code[offset] = byte((jump >> 8) & 0xff)
	c.chunk().Code[offset+1] = byte(jump & 0xff)
}

// emitLoop writes OP_LOOP with the backward displacement to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(vm.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset >= maxJumpRange {
		c.p.error("Loop body too large.")
		return
	}
	c.emitByte(byte((offset >> 8) & 0xff))
	c.emitByte(byte(offset & 0xff))
}

// endFunction finishes the current fnState: emits the implicit `return nil;`
// every function needs, optionally traces the compiled chunk, and pops back
// to the enclosing fnState, emitting the OP_CLOSURE + upvalue pairs that
// reference the function just finished.
func (c *compiler) endFunction() *vm.Function {
	c.emitOp(vm.OpNil)
	c.emitOp(vm.OpReturn)

	fn := c.fs.fn
	fn.UpvalueCount = len(c.fs.upvalues)

	if TraceCompile {
		vm.DisassembleChunk(os.Stderr, fn.Chunk, fn.String())
	}

	upvalues := c.fs.upvalues
	enclosing := c.fs.enclosing
	c.fs = enclosing
	if c.fs != nil {
		idx := c.makeConstant(fn)
		c.emitOpByte(vm.OpClosure, idx)
		for _, uv := range upvalues {
			if uv.isLocal {
				c.emitByte(1)
			} else {
				c.emitByte(0)
			}
			c.emitByte(uv.index)
		}
	}
	return fn
}

// -- scope management --

func (c *compiler) beginScope() { c.fs.scopeDepth++ }

func (c *compiler) endScope() {
	c.fs.scopeDepth--
	locals := c.fs.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.fs.scopeDepth {
		last := locals[len(locals)-1]
		if last.isCaptured {
			c.emitOp(vm.OpCloseUpvalue)
		} else {
			c.emitOp(vm.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.fs.locals = locals
}

// -- variable resolution --

// resolveLocal scans fs's locals from innermost to outermost, erroring if a
// match is still uninitialized (reading a local in its own initializer).
func resolveLocal(c *compiler, fs *fnState, name token.Token) int {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		l := &fs.locals[i]
		if l.name.Lexeme == name.Lexeme {
			if l.depth == -1 {
				c.p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue recursively looks the name up as a local of the enclosing
// fnState (marking it captured and recording a direct upvalue), else as an
// upvalue of the enclosing fnState (recording a relay upvalue), de-duping by
// (index, isLocal).
func resolveUpvalue(c *compiler, fs *fnState, name token.Token) int {
	if fs.enclosing == nil {
		return -1
	}

	if local := resolveLocal(c, fs.enclosing, name); local != -1 {
		fs.enclosing.locals[local].isCaptured = true
		return addUpvalue(c, fs, uint8(local), true)
	}

	if up := resolveUpvalue(c, fs.enclosing, name); up != -1 {
		return addUpvalue(c, fs, uint8(up), false)
	}

	return -1
}

func addUpvalue(c *compiler, fs *fnState, index uint8, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		c.p.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}

func (c *compiler) declareVariable() {
	if c.fs.scopeDepth == 0 {
		return
	}
	name := c.p.previous
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		l := &c.fs.locals[i]
		if l.depth != -1 && l.depth < c.fs.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.p.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) addLocal(name token.Token) {
	if len(c.fs.locals) >= maxLocals {
		c.p.error("Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, local{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

func (c *compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(vm.NewStr(name.Lexeme))
}

// parseVariable consumes an identifier, declares it (as a local if inside a
// scope), and returns the constant-pool index to use with DefineGlobal (0
// and unused when the variable turns out to be a local).
func (c *compiler) parseVariable(errMsg string) byte {
	c.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.p.previous)
}

func (c *compiler) defineVariable(global byte) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(vm.OpDefineGlobal, global)
}

// Compile scans and parses source in a single pass, emitting bytecode
// directly with no intermediate AST, and returns the top-level script
// Function. If any errors were reported during the compile, it returns a
// *CompileError collecting every one of them instead.
func Compile(source string) (*vm.Function, error) {
	sc := scanner.New(source)
	p := &parser{sc: sc}
	p.advance()

	fs := newFnState(nil, kindScript, "")
	c := &compiler{p: p, fs: fs}

	for !c.match(token.EOF) {
		c.declaration()
	}

	fn := c.endFunction()
	if len(p.errs) > 0 {
		return nil, &CompileError{Errors: p.errs}
	}
	return fn, nil
}
