package compiler

import (
	"strconv"

	"github.com/mna/rustlox/lang/token"
	"github.com/mna/rustlox/lang/vm"
)

// Precedence levels, low to high, exactly as enumerated by the spec.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type rule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is the fixed Pratt rule table keyed by token kind: (prefix, infix,
// precedence) exactly as the spec's compiler design describes.
var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.LPAREN:        {grouping, call, precCall},
		token.MINUS:         {unary, binary, precTerm},
		token.PLUS:          {nil, binary, precTerm},
		token.SLASH:         {nil, binary, precFactor},
		token.STAR:          {nil, binary, precFactor},
		token.BANG:          {unary, nil, precNone},
		token.BANG_EQUAL:    {nil, binary, precEquality},
		token.EQUAL_EQUAL:   {nil, binary, precEquality},
		token.GREATER:       {nil, binary, precComparison},
		token.GREATER_EQUAL: {nil, binary, precComparison},
		token.LESS:          {nil, binary, precComparison},
		token.LESS_EQUAL:    {nil, binary, precComparison},
		token.IDENT:         {variable, nil, precNone},
		token.STRING:        {str, nil, precNone},
		token.NUMBER:        {number, nil, precNone},
		token.AND:           {nil, and_, precAnd},
		token.OR:            {nil, or_, precOr},
		token.FALSE:         {literal, nil, precNone},
		token.NIL:           {literal, nil, precNone},
		token.TRUE:          {literal, nil, precNone},
	}
}

func getRule(k token.Kind) rule {
	if r, ok := rules[k]; ok {
		return r
	}
	return rule{precedence: precNone}
}

func (c *compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *compiler) parsePrecedence(prec precedence) {
	c.p.advance()
	prefix := getRule(c.p.previous.Kind).prefix
	if prefix == nil {
		c.p.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.p.current.Kind).precedence {
		c.p.advance()
		infix := getRule(c.p.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.p.error("Invalid assignment target.")
	}
}

func number(c *compiler, canAssign bool) {
	f, _ := strconv.ParseFloat(c.p.previous.Lexeme, 64)
	c.emitConstant(vm.Number(f))
}

func str(c *compiler, canAssign bool) {
	lex := c.p.previous.Lexeme
	// strip the surrounding quotes; the spec performs no escape processing.
	c.emitConstant(vm.NewStr(lex[1 : len(lex)-1]))
}

func literal(c *compiler, canAssign bool) {
	switch c.p.previous.Kind {
	case token.FALSE:
		c.emitOp(vm.OpFalse)
	case token.TRUE:
		c.emitOp(vm.OpTrue)
	case token.NIL:
		c.emitOp(vm.OpNil)
	}
}

func grouping(c *compiler, canAssign bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func unary(c *compiler, canAssign bool) {
	opKind := c.p.previous.Kind
	c.parsePrecedence(precUnary)
	switch opKind {
	case token.BANG:
		c.emitOp(vm.OpNot)
	case token.MINUS:
		c.emitOp(vm.OpNegate)
	}
}

func binary(c *compiler, canAssign bool) {
	opKind := c.p.previous.Kind
	r := getRule(opKind)
	c.parsePrecedence(r.precedence + 1)

	switch opKind {
	case token.BANG_EQUAL:
		c.emitOp(vm.OpEqual)
		c.emitOp(vm.OpNot)
	case token.EQUAL_EQUAL:
		c.emitOp(vm.OpEqual)
	case token.GREATER:
		c.emitOp(vm.OpGreater)
	case token.GREATER_EQUAL:
		c.emitOp(vm.OpLess)
		c.emitOp(vm.OpNot)
	case token.LESS:
		c.emitOp(vm.OpLess)
	case token.LESS_EQUAL:
		c.emitOp(vm.OpGreater)
		c.emitOp(vm.OpNot)
	case token.PLUS:
		c.emitOp(vm.OpAdd)
	case token.MINUS:
		c.emitOp(vm.OpSubtract)
	case token.STAR:
		c.emitOp(vm.OpMultiply)
	case token.SLASH:
		c.emitOp(vm.OpDivide)
	}
}

// and_ implements short-circuit `and`: if the left operand is falsey, its
// value is left on the stack and the right operand is skipped entirely.
func and_(c *compiler, canAssign bool) {
	endJump := c.emitJump(vm.OpJumpIfFalse)
	c.emitOp(vm.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

// or_ implements short-circuit `or`: if the left operand is truthy, its
// value is left on the stack and the right operand is skipped entirely.
func or_(c *compiler, canAssign bool) {
	elseJump := c.emitJump(vm.OpJumpIfFalse)
	endJump := c.emitJump(vm.OpJump)
	c.patchJump(elseJump)
	c.emitOp(vm.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func call(c *compiler, canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(vm.OpCall, argCount)
}

func (c *compiler) argumentList() byte {
	var count int
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if count == maxArgs {
				c.p.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(count)
}

func variable(c *compiler, canAssign bool) {
	c.namedVariable(c.p.previous, canAssign)
}

// namedVariable implements get_arg: resolve as local, then upvalue, then
// global, and emit the matching Get/Set opcode.
func (c *compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp vm.OpCode
	var arg int

	if slot := resolveLocal(c, c.fs, name); slot != -1 {
		arg = slot
		getOp, setOp = vm.OpGetLocal, vm.OpSetLocal
	} else if slot := resolveUpvalue(c, c.fs, name); slot != -1 {
		arg = slot
		getOp, setOp = vm.OpGetUpvalue, vm.OpSetUpvalue
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = vm.OpGetGlobal, vm.OpSetGlobal
	}

	if canAssign && c.match(token.EQUAL) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}
