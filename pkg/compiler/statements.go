package compiler

import (
	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/lexer"
	"github.com/valp-lang/valp/pkg/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.CLASS):
		c.classDeclaration()
	case c.match(lexer.FUN):
		c.funDeclaration()
	case c.match(lexer.VAR):
		c.varDeclaration(false)
	case c.match(lexer.CONST):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panic {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(constant bool) {
	global := c.parseVariable("Expect variable name.", constant)
	name := c.prev.Lexeme

	if c.match(lexer.EQUAL) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable(global, constant, name)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.", false)
	name := c.prev.Lexeme
	c.markInitialized()
	c.function(typeFunction)
	c.defineVariable(global, false, name)
}

// function compiles a fun or def (method) body: its own frame, parameter
// locals, the block, then OP_CLOSURE with the captured-upvalue bytes
// trailing it.
func (c *Compiler) function(ft funcType) {
	enclosing := c.cc
	name := c.heap.Intern(c.prev.Lexeme)
	// name is reachable from nothing until fn lands in c.cc, where
	// markRoots's frame walk picks it up via fn.Name. Root it on the
	// shared stack for the one allocation (NewFunction) in between.
	c.roots.Push(value.FromObj(name))
	fn := c.heap.NewFunction(name)
	c.roots.Pop()
	c.cc = &frame{enclosing: enclosing, fn: fn, fnType: ft, scope: 0}

	selfName := ""
	if ft == typeMethod || ft == typeInitializer {
		selfName = "self"
	}
	c.cc.locals = append(c.cc.locals, local{name: selfName, depth: 0})

	c.beginScope()
	c.consume(lexer.LPAREN, "Expect '(' after function name.")
	if !c.check(lexer.RPAREN) {
		for {
			c.cc.fn.Arity++
			if c.cc.fn.Arity > 255 {
				c.errorHere("Can't have more than 255 parameters.")
			}
			constBit := c.parseVariable("Expect parameter name.", false)
			c.defineVariable(constBit, false, c.prevParamName())
			if !c.match(lexer.COMMA) {
				break
			}
		}
	}
	c.consume(lexer.RPAREN, "Expect ')' after parameters.")
	c.consume(lexer.LBRACE, "Expect '{' before function body.")
	c.block()

	innerUpvalues := c.cc.upvalues
	fn = c.endCompiler()

	idx := c.makeConstant(value.FromObj(fn))
	c.emitOpByte(chunk.OpClosure, idx)
	for _, uv := range innerUpvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *Compiler) prevParamName() string { return c.cc.locals[len(c.cc.locals)-1].name }

func (c *Compiler) classDeclaration() {
	c.consume(lexer.IDENT, "Expect class name.")
	nameTok := c.prev
	className := nameTok.Lexeme
	nameConst := c.identifierConstant(className)
	c.declareVariable(className, false)

	c.emitOpByte(chunk.OpClass, nameConst)
	c.defineVariable(nameConst, false, className)

	cl := &classFrame{enclosing: c.cl}
	c.cl = cl

	if c.match(lexer.LESS) {
		c.consume(lexer.IDENT, "Expect superclass name.")
		if c.prev.Lexeme == className {
			c.errorHere("A class can't inherit from itself.")
		}
		c.namedVariable(c.prev.Lexeme, false)

		c.beginScope()
		c.addLocal("super", false)
		c.markInitialized()

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cl.hasSuper = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.LBRACE, "Expect '{' before class body.")
	for !c.check(lexer.RBRACE) && !c.check(lexer.EOF) {
		c.method()
	}
	c.consume(lexer.RBRACE, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop) // the class value namedVariable pushed

	if cl.hasSuper {
		c.endScope()
	}
	c.cl = cl.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.DEF, "Expect method definition.")
	c.consume(lexer.IDENT, "Expect method name.")
	nameTok := c.prev
	nameConst := c.identifierConstant(nameTok.Lexeme)

	ft := typeMethod
	if nameTok.Lexeme == "init" {
		ft = typeInitializer
	}
	c.function(ft)
	c.emitOpByte(chunk.OpMethod, nameConst)
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.PRINT):
		c.printStatement()
	case c.match(lexer.IF):
		c.ifStatement()
	case c.match(lexer.RETURN):
		c.returnStatement()
	case c.match(lexer.WHILE):
		c.whileStatement()
	case c.match(lexer.FOR):
		c.forStatement()
	case c.match(lexer.SWITCH):
		c.switchStatement()
	case c.match(lexer.BREAK):
		c.breakStatement()
	case c.match(lexer.NEXT):
		c.nextStatement()
	case c.match(lexer.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.RBRACE) && !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.SEMICOLON, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) returnStatement() {
	if c.cc.fnType == typeScript {
		c.errorHere("Can't return from top-level code.")
	}
	if c.match(lexer.SEMICOLON) {
		c.emitReturn()
		return
	}
	if c.cc.fnType == typeInitializer {
		c.errorHere("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.SEMICOLON, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}

// expressionStatement also handles the statement-level ternary: a
// plain expression statement pops its value, but a `?` following the
// condition suppresses that POP and instead compiles the full
// conditional, with a single POP at the very end.
func (c *Compiler) expressionStatement() {
	c.expression()
	if c.match(lexer.QUESTION) {
		thenJump := c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
		c.expression()
		elseJump := c.emitJump(chunk.OpJump)
		c.patchJump(thenJump)
		c.emitOp(chunk.OpPop)
		c.consume(lexer.COLON, "Expect ':' in ternary expression.")
		c.expression()
		c.patchJump(elseJump)
	}
	c.consume(lexer.SEMICOLON, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushLoop() *loopRecord {
	l := &loopRecord{startIP: c.chunk().Len(), scopeDepth: c.cc.scope, enclosing: c.cc.loop}
	c.cc.loop = l
	return l
}

func (c *Compiler) popLoop() {
	l := c.cc.loop
	for _, j := range l.exitJumps {
		c.patchJump(j)
	}
	c.cc.loop = l.enclosing
}

func (c *Compiler) whileStatement() {
	loop := c.pushLoop()
	c.consume(lexer.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loop.startIP)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
	c.popLoop()
}

// forStatement desugars for(init;cond;incr) body so that `next`
// branches to the increment, not the condition: the loop's start-ip is
// redirected to the increment block after the body executes once.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.LPAREN, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.SEMICOLON):
	case c.match(lexer.VAR):
		c.varDeclaration(false)
	default:
		c.expressionStatement()
	}

	loop := c.pushLoop()
	exitJump := -1
	if !c.match(lexer.SEMICOLON) {
		c.expression()
		c.consume(lexer.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.check(lexer.RPAREN) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrStart := c.chunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loop.startIP)
		loop.startIP = incrStart
		c.patchJump(bodyJump)
	} else {
		c.consume(lexer.RPAREN, "Expect ')' after for clauses.")
	}

	c.statement()
	c.emitLoop(loop.startIP)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.popLoop()
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if c.cc.loop == nil {
		c.errorHere("Can't use 'break' outside of a loop.")
		c.consume(lexer.SEMICOLON, "Expect ';' after 'break'.")
		return
	}
	c.popLocalsForJump(c.cc.loop.scopeDepth)
	j := c.emitJump(chunk.OpJump)
	c.cc.loop.exitJumps = append(c.cc.loop.exitJumps, j)
	c.consume(lexer.SEMICOLON, "Expect ';' after 'break'.")
}

func (c *Compiler) nextStatement() {
	if c.cc.loop == nil {
		c.errorHere("Can't use 'next' outside of a loop.")
		c.consume(lexer.SEMICOLON, "Expect ';' after 'next'.")
		return
	}
	c.popLocalsForJump(c.cc.loop.scopeDepth)
	c.emitLoop(c.cc.loop.startIP)
	c.consume(lexer.SEMICOLON, "Expect ';' after 'next'.")
}

// popLocalsForJump pops (or closes) locals scoped deeper than depth
// without mutating the compiler's own locals bookkeeping: break/next
// jump out of or back to the top of the loop, they don't end the scope.
func (c *Compiler) popLocalsForJump(depth int) {
	for i := len(c.cc.locals) - 1; i >= 0 && c.cc.locals[i].depth > depth; i-- {
		if c.cc.locals[i].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
	}
}

// switchStatement compiles a fall-through-free switch: no default arm,
// and the duplicated subject is popped on every path including the
// final non-match.
func (c *Compiler) switchStatement() {
	c.consume(lexer.LPAREN, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(lexer.RPAREN, "Expect ')' after switch subject.")
	c.consume(lexer.LBRACE, "Expect '{' before switch body.")

	var endJumps []int
	for c.match(lexer.CASE) {
		c.emitOp(chunk.OpDup)
		c.expression()
		c.emitOp(chunk.OpEqual)
		c.consume(lexer.COLON, "Expect ':' after case value.")

		notMatch := c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop) // condition
		c.emitOp(chunk.OpPop) // subject, matched arm
		for !c.check(lexer.CASE) && !c.check(lexer.RBRACE) && !c.check(lexer.EOF) {
			c.statement()
		}
		endJumps = append(endJumps, c.emitJump(chunk.OpJump))

		c.patchJump(notMatch)
		c.emitOp(chunk.OpPop) // condition
	}
	c.emitOp(chunk.OpPop) // subject, no-match path
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.consume(lexer.RBRACE, "Expect '}' after switch body.")
}
