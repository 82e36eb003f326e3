package compiler

import "github.com/valp-lang/valp/pkg/lexer"

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

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.Kind]parseRule

func init() {
	rules = map[lexer.Kind]parseRule{
		lexer.LPAREN:        {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		lexer.DOT:           {infix: (*Compiler).dot, precedence: precCall},
		lexer.MINUS:         {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		lexer.PLUS:          {infix: (*Compiler).binary, precedence: precTerm},
		lexer.SLASH:         {infix: (*Compiler).binary, precedence: precFactor},
		lexer.STAR:          {infix: (*Compiler).binary, precedence: precFactor},
		lexer.BANG:          {prefix: (*Compiler).unary},
		lexer.BANG_EQUAL:    {infix: (*Compiler).binary, precedence: precEquality},
		lexer.EQUAL_EQUAL:   {infix: (*Compiler).binary, precedence: precEquality},
		lexer.GREATER:       {infix: (*Compiler).binary, precedence: precComparison},
		lexer.GREATER_EQUAL: {infix: (*Compiler).binary, precedence: precComparison},
		lexer.LESS:          {infix: (*Compiler).binary, precedence: precComparison},
		lexer.LESS_EQUAL:    {infix: (*Compiler).binary, precedence: precComparison},
		lexer.IDENT:         {prefix: (*Compiler).variable},
		lexer.STRING:        {prefix: (*Compiler).stringLit},
		lexer.NUMBER:        {prefix: (*Compiler).number},
		lexer.AND:           {infix: (*Compiler).and_, precedence: precAnd},
		lexer.OR:            {infix: (*Compiler).or_, precedence: precOr},
		lexer.FALSE:         {prefix: (*Compiler).literal},
		lexer.TRUE:          {prefix: (*Compiler).literal},
		lexer.NIL:           {prefix: (*Compiler).literal},
		lexer.SELF:          {prefix: (*Compiler).self_},
		lexer.SUPER:         {prefix: (*Compiler).super_},
	}
}

func getRule(k lexer.Kind) parseRule { return rules[k] }

func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	rule := getRule(c.prev.Kind)
	if rule.prefix == nil {
		c.errorHere("Expect expression.")
		return
	}
	canAssign := p <= precAssignment
	rule.prefix(c, canAssign)

	for p <= getRule(c.cur.Kind).precedence {
		c.advance()
		infix := getRule(c.prev.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && (c.match(lexer.EQUAL) || c.match(lexer.PLUS_EQUAL) ||
		c.match(lexer.MINUS_EQUAL) || c.match(lexer.STAR_EQUAL) || c.match(lexer.SLASH_EQUAL)) {
		c.errorHere("Invalid assignment target.")
	}
}

func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}
