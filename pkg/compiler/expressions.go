package compiler

import (
	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/lexer"
	"github.com/valp-lang/valp/pkg/value"
)

func (c *Compiler) number(canAssign bool) {
	c.emitConstant(value.Number(parseFloat(c.prev.Lexeme)))
}

func (c *Compiler) stringLit(canAssign bool) {
	raw := c.prev.Lexeme
	s := raw[1 : len(raw)-1] // strip surrounding quotes; no escapes
	c.emitConstant(value.FromObj(c.heap.Intern(s)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Kind {
	case lexer.FALSE:
		c.emitOp(chunk.OpFalse)
	case lexer.TRUE:
		c.emitOp(chunk.OpTrue)
	case lexer.NIL:
		c.emitOp(chunk.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.prev.Kind
	c.parsePrecedence(precUnary)
	switch op {
	case lexer.BANG:
		c.emitOp(chunk.OpNot)
	case lexer.MINUS:
		c.emitOp(chunk.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.prev.Kind
	rule := getRule(op)
	c.parsePrecedence(rule.precedence + 1)

	switch op {
	case lexer.BANG_EQUAL:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case lexer.EQUAL_EQUAL:
		c.emitOp(chunk.OpEqual)
	case lexer.GREATER:
		c.emitOp(chunk.OpGreater)
	case lexer.GREATER_EQUAL:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case lexer.LESS:
		c.emitOp(chunk.OpLess)
	case lexer.LESS_EQUAL:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case lexer.PLUS:
		c.emitOp(chunk.OpAdd)
	case lexer.MINUS:
		c.emitOp(chunk.OpSubtract)
	case lexer.STAR:
		c.emitOp(chunk.OpMultiply)
	case lexer.SLASH:
		c.emitOp(chunk.OpDivide)
	}
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)
	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(chunk.OpCall, argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(lexer.RPAREN) {
		for {
			c.expression()
			if argc == 255 {
				c.errorHere("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(lexer.COMMA) {
				break
			}
		}
	}
	c.consume(lexer.RPAREN, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.IDENT, "Expect property name after '.'.")
	name := c.identifierConstant(c.prev.Lexeme)

	switch {
	case canAssign && c.match(lexer.EQUAL):
		c.expression()
		c.emitOpByte(chunk.OpSetProperty, name)
	case canAssign && c.matchCompoundAssign():
		op := compoundOp(c.prev.Kind)
		// keep the instance under the loaded field for OP_SET_PROPERTY.
		c.emitOp(chunk.OpDup)
		c.emitOpByte(chunk.OpGetProperty, name)
		c.expression()
		c.emitOp(op)
		c.emitOpByte(chunk.OpSetProperty, name)
	case c.match(lexer.LPAREN):
		argc := c.argumentList()
		c.emitOp(chunk.OpInvoke)
		c.emitByte(name)
		c.emitByte(argc)
	default:
		c.emitOpByte(chunk.OpGetProperty, name)
	}
}

func (c *Compiler) matchCompoundAssign() bool {
	return c.match(lexer.PLUS_EQUAL) || c.match(lexer.MINUS_EQUAL) ||
		c.match(lexer.STAR_EQUAL) || c.match(lexer.SLASH_EQUAL)
}

// compoundOp maps +=/-=/*=//=  to ADD/SUBTRACT/MULTIPLY/DIVIDE. The
// same mapping applies to every assignment target kind: local,
// upvalue, global, and property.
func compoundOp(k lexer.Kind) chunk.Op {
	switch k {
	case lexer.PLUS_EQUAL:
		return chunk.OpAdd
	case lexer.MINUS_EQUAL:
		return chunk.OpSubtract
	case lexer.STAR_EQUAL:
		return chunk.OpMultiply
	case lexer.SLASH_EQUAL:
		return chunk.OpDivide
	default:
		return chunk.OpAdd
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

func (c *Compiler) self_(canAssign bool) {
	if c.cl == nil {
		c.errorHere("Can't use 'self' outside of a class.")
		return
	}
	c.namedVariable("self", false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.cl == nil {
		c.errorHere("Can't use 'super' outside of a class.")
	} else if !c.cl.hasSuper {
		c.errorHere("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.DOT, "Expect '.' after 'super'.")
	c.consume(lexer.IDENT, "Expect superclass method name.")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariable("self", false)
	if c.match(lexer.LPAREN) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitOp(chunk.OpSuperInvoke)
		c.emitByte(name)
		c.emitByte(argc)
	} else {
		c.namedVariable("super", false)
		c.emitOpByte(chunk.OpGetSuper, name)
	}
}

// namedVariable resolves name as a local, then an upvalue, then a
// global, and emits the matching get/set opcode, lowering a trailing
// '=' or compound-assignment operator when canAssign permits it.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.Op
	var arg byte
	var constant bool

	if idx, isConst, found, uninitialized := resolveLocal(c.cc, name); found {
		if uninitialized {
			c.errorHere("Can't read local variable in its own initializer.")
		}
		getOp, setOp, arg, constant = chunk.OpGetLocal, chunk.OpSetLocal, byte(idx), isConst
	} else if idx, isConst, found := c.resolveUpvalue(c.cc, name); found {
		getOp, setOp, arg, constant = chunk.OpGetUpvalue, chunk.OpSetUpvalue, byte(idx), isConst
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		constant = c.globalConstants[name]
	}

	switch {
	case canAssign && c.match(lexer.EQUAL):
		if constant {
			c.errorHere("Cannot assign to a constant.")
		}
		c.expression()
		c.emitOpByte(setOp, arg)
	case canAssign && c.matchCompoundAssign():
		if constant {
			c.errorHere("Cannot assign to a constant.")
		}
		op := compoundOp(c.prev.Kind)
		c.emitOpByte(getOp, arg)
		c.expression()
		c.emitOp(op)
		c.emitOpByte(setOp, arg)
	default:
		c.emitOpByte(getOp, arg)
	}
}
