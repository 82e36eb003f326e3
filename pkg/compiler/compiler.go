// Package compiler implements the single-pass Pratt compiler: source
// text lowers directly to bytecode with no intermediate AST. Parsing
// and emission are interleaved; per-function state lives on a linked
// stack of frames so nested function declarations compile inside out.
package compiler

import (
	"strconv"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/lexer"
	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/value"
)

// Roots lets the compiler root transient values on the VM's value
// stack: a heap value held only in a Go local must be pushed before
// the next heap allocation so a collection triggered by that
// allocation sees it as live.
type Roots interface {
	Push(value.Value)
	Pop() value.Value
}

type funcType int

const (
	typeFunction funcType = iota
	typeMethod
	typeInitializer
	typeScript
)

type local struct {
	name       string
	depth      int // -1 while being defined, for self-reference detection
	isCaptured bool
	constant   bool
}

type upvalueRef struct {
	index    byte
	isLocal  bool
	constant bool
}

// loopRecord backs `next` (continue) and `break`, one record per
// enclosing loop. exitJumps accumulates break patch-points,
// back-patched once the loop body and its LOOP instruction are fully
// emitted.
type loopRecord struct {
	startIP    int
	exitJumps  []int
	scopeDepth int
	enclosing  *loopRecord
}

// frame is one function's compile-time state: the function being
// built, its locals/upvalues, scope depth, and enclosing frame. An
// explicit linked stack rather than Go call-stack recursion, so the
// whole chain can be walked and rooted during a collection.
type frame struct {
	enclosing *frame
	fn        *object.Function
	fnType    funcType
	locals    []local
	upvalues  []upvalueRef
	scope     int
	loop      *loopRecord
}

// classFrame is the parallel linked stack validating self/super usage;
// it carries no bytecode state of its own.
type classFrame struct {
	enclosing *classFrame
	hasSuper  bool
}

// Compiler holds all parser + emission state for one Compile call.
type Compiler struct {
	lx       *lexer.Lexer
	cur      lexer.Token
	prev     lexer.Token
	hadError bool
	panic    bool
	errs     Errors

	heap  *object.Heap
	roots Roots

	cc *frame
	cl *classFrame

	// globalConstants records top-level `const` bindings so assignment
	// to one is caught at compile time.
	globalConstants map[string]bool
}

// Compile lowers src directly to a top-level Function (the "script"),
// with no AST ever materialised.
func Compile(src string, heap *object.Heap, roots Roots) (*object.Function, error) {
	c := &Compiler{
		lx:              lexer.New(src),
		heap:            heap,
		roots:           roots,
		globalConstants: map[string]bool{},
	}
	c.cc = &frame{fn: heap.NewFunction(nil), fnType: typeScript, scope: 0}
	c.cc.locals = append(c.cc.locals, local{name: "", depth: 0})

	heap.SetCompilerMark(c.markRoots)
	defer heap.ClearCompilerMark()

	c.advance()
	for !c.match(lexer.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if c.hadError {
		return nil, c.errs
	}
	return fn, nil
}

func (c *Compiler) endCompiler() *object.Function {
	c.emitReturn()
	fn := c.cc.fn
	fn.UpvalueCnt = len(c.cc.upvalues)
	if c.cc.enclosing != nil {
		c.cc = c.cc.enclosing
	}
	return fn
}

// ---- token stream ---------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.lx.Next()
		if c.cur.Kind != lexer.ERROR {
			break
		}
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *Compiler) check(k lexer.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) match(k lexer.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k lexer.Kind, msg string) {
	if c.cur.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) errorHere(msg string)      { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok lexer.Token, msg string) {
	if c.panic {
		return
	}
	c.panic = true
	c.hadError = true
	lexeme := tok.Lexeme
	if tok.Kind == lexer.EOF {
		lexeme = ""
	}
	c.errs = append(c.errs, &CompileError{Line: tok.Line, Lexeme: lexeme, Message: msg})
}

// synchronize swallows tokens to the next statement boundary so one
// error doesn't cascade into spurious follow-on errors.
func (c *Compiler) synchronize() {
	c.panic = false
	for c.cur.Kind != lexer.EOF {
		if c.prev.Kind == lexer.SEMICOLON {
			return
		}
		switch c.cur.Kind {
		case lexer.CLASS, lexer.FUN, lexer.VAR, lexer.CONST, lexer.FOR,
			lexer.IF, lexer.WHILE, lexer.PRINT, lexer.RETURN, lexer.SWITCH:
			return
		}
		c.advance()
	}
}

// ---- bytecode emission ----------------------------------------------

func (c *Compiler) chunk() *chunk.Chunk { return &c.cc.fn.Chunk }

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.prev.Line)
}

func (c *Compiler) emitOp(op chunk.Op) {
	c.chunk().WriteOp(op, c.prev.Line)
}

func (c *Compiler) emitOpByte(op chunk.Op, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.errorHere("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

// emitJump writes op plus a placeholder 16-bit operand, returning the
// offset of the first placeholder byte for patchJump to fill in later.
func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xffff {
		c.errorHere("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitReturn() {
	if c.cc.fnType == typeInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// makeConstant roots v on the shared stack while appending it to the
// constant pool.
func (c *Compiler) makeConstant(v value.Value) byte {
	c.roots.Push(v)
	idx := c.chunk().AddConstant(v)
	c.roots.Pop()
	if idx > 255 {
		c.errorHere("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.FromObj(c.heap.Intern(name)))
}

// ---- scopes, locals, upvalues ----------------------------------------

func (c *Compiler) beginScope() { c.cc.scope++ }

func (c *Compiler) endScope() {
	c.cc.scope--
	for len(c.cc.locals) > 0 && c.cc.locals[len(c.cc.locals)-1].depth > c.cc.scope {
		last := c.cc.locals[len(c.cc.locals)-1]
		if last.isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.cc.locals = c.cc.locals[:len(c.cc.locals)-1]
	}
}

func (c *Compiler) addLocal(name string, constant bool) {
	if len(c.cc.locals) >= 256 {
		c.errorHere("Too many local variables in function.")
		return
	}
	c.cc.locals = append(c.cc.locals, local{name: name, depth: -1, constant: constant})
}

func (c *Compiler) markInitialized() {
	if c.cc.scope == 0 {
		return
	}
	c.cc.locals[len(c.cc.locals)-1].depth = c.cc.scope
}

// resolveLocal scans f's locals from the top; first match wins. depth
// == -1 means the local is still being initialised; uninitialized
// reports that case so the caller can surface the compile error.
func resolveLocal(f *frame, name string) (idx int, constant bool, found bool, uninitialized bool) {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			if f.locals[i].depth == -1 {
				return i, false, true, true
			}
			return i, f.locals[i].constant, true, false
		}
	}
	return -1, false, false, false
}

// resolveUpvalue recurses into the enclosing frame, marking a resolved
// local as captured, or chaining a transitive upvalue reference.
// Returns ok=false when the name isn't found in any enclosing frame
// (the caller falls back to global).
func (c *Compiler) resolveUpvalue(f *frame, name string) (int, bool, bool) {
	if f.enclosing == nil {
		return -1, false, false
	}
	if idx, constant, ok, uninitialized := resolveLocal(f.enclosing, name); ok && !uninitialized {
		f.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(f, byte(idx), true, constant), constant, true
	}
	if idx, constant, ok := c.resolveUpvalue(f.enclosing, name); ok {
		return c.addUpvalue(f, byte(idx), false, constant), constant, true
	}
	return -1, false, false
}

func (c *Compiler) addUpvalue(f *frame, index byte, isLocal bool, constant bool) int {
	for i, uv := range f.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(f.upvalues) >= 256 {
		c.errorHere("Too many closure variables in function.")
		return 0
	}
	f.upvalues = append(f.upvalues, upvalueRef{index: index, isLocal: isLocal, constant: constant})
	return len(f.upvalues) - 1
}

func (c *Compiler) declareVariable(name string, constant bool) {
	if c.cc.scope == 0 {
		return
	}
	for i := len(c.cc.locals) - 1; i >= 0; i-- {
		l := c.cc.locals[i]
		if l.depth != -1 && l.depth < c.cc.scope {
			break
		}
		if l.name == name {
			c.errorHere("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name, constant)
}

func (c *Compiler) parseVariable(errMsg string, constant bool) byte {
	c.consume(lexer.IDENT, errMsg)
	name := c.prev.Lexeme
	c.declareVariable(name, constant)
	if c.cc.scope > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global byte, constant bool, name string) {
	if c.cc.scope > 0 {
		c.markInitialized()
		return
	}
	if constant {
		c.globalConstants[name] = true
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

// markRoots walks the linked frame chain so the VM's GC can trace
// every function still under construction. A function only becomes
// reachable some other way once endCompiler hands it to makeConstant,
// which roots it on the VM stack in the meantime.
func (c *Compiler) markRoots(mark func(value.Obj)) {
	for f := c.cc; f != nil; f = f.enclosing {
		mark(f.fn)
	}
}

func parseFloat(lexeme string) float64 {
	n, _ := strconv.ParseFloat(lexeme, 64)
	return n
}
