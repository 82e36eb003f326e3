package compiler_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/compiler"
	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/value"
)

// fakeRoots satisfies compiler.Roots for tests that never run a VM.
type fakeRoots struct{}

func (fakeRoots) Push(value.Value) {}
func (fakeRoots) Pop() value.Value { return value.Nil }

func compile(t *testing.T, src string) *object.Function {
	t.Helper()
	fn, err := compiler.Compile(src, object.NewHeap(), fakeRoots{})
	require.NoError(t, err)
	return fn
}

func ops(fn *object.Function) []chunk.Op {
	var out []chunk.Op
	code := fn.Chunk.Code
	for i := 0; i < len(code); {
		op := chunk.Op(code[i])
		out = append(out, op)
		switch op {
		case chunk.OpConstant, chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal,
			chunk.OpGetProperty, chunk.OpSetProperty, chunk.OpGetSuper, chunk.OpClass, chunk.OpMethod,
			chunk.OpGetLocal, chunk.OpSetLocal, chunk.OpGetUpvalue, chunk.OpSetUpvalue, chunk.OpCall:
			i += 2
		case chunk.OpInvoke, chunk.OpSuperInvoke, chunk.OpJump, chunk.OpJumpIfFalse, chunk.OpLoop:
			i += 3
		case chunk.OpClosure:
			constIdx := code[i+1]
			n := 0
			if f, ok := fn.Chunk.Constants[constIdx].Obj.(*object.Function); ok {
				n = f.UpvalueCnt
			}
			i += 2 + 2*n
		default:
			i++
		}
	}
	return out
}

func TestCompileNumberLiteral(t *testing.T) {
	fn := compile(t, "42;")
	assert.Equal(t, []chunk.Op{chunk.OpConstant, chunk.OpPop, chunk.OpNil, chunk.OpReturn}, ops(fn))
	assert.Equal(t, value.Number(42), fn.Chunk.Constants[0])
}

func TestCompileStringLiteralInterns(t *testing.T) {
	fn := compile(t, `"hi" == "hi";`)
	// both literals must resolve to the same interned *object.String.
	var strs []*object.String
	for _, c := range fn.Chunk.Constants {
		if s, ok := c.Obj.(*object.String); ok {
			strs = append(strs, s)
		}
	}
	require.Len(t, strs, 2)
	assert.Same(t, strs[0], strs[1])
}

func TestCompileGlobalDeclarationAndAssignment(t *testing.T) {
	fn := compile(t, "var x = 1; x = 2;")
	got := ops(fn)
	assert.Contains(t, got, chunk.OpDefineGlobal)
	assert.Contains(t, got, chunk.OpSetGlobal)
}

func TestCompileConstReassignmentIsCompileError(t *testing.T) {
	_, err := compiler.Compile("const x = 1; x = 2;", object.NewHeap(), fakeRoots{})
	require.Error(t, err)
}

func TestCompileLocalVariable(t *testing.T) {
	fn := compile(t, "{ var x = 1; print x; }")
	assert.Contains(t, ops(fn), chunk.OpGetLocal)
	assert.NotContains(t, ops(fn), chunk.OpGetGlobal)
}

func TestCompileWhileLoopEmitsJumpAndLoop(t *testing.T) {
	fn := compile(t, "while (true) { print 1; }")
	got := ops(fn)
	assert.Contains(t, got, chunk.OpJumpIfFalse)
	assert.Contains(t, got, chunk.OpLoop)
}

func TestCompileTernary(t *testing.T) {
	fn := compile(t, "true ? 1 : 2;")
	got := ops(fn)
	assert.Contains(t, got, chunk.OpJumpIfFalse)
	assert.Contains(t, got, chunk.OpJump)
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	fn := compile(t, `
		fun makeCounter() {
			var count = 0;
			fun inc() { count = count + 1; return count; }
			return inc;
		}
	`)
	var inner *object.Function
	for _, c := range fn.Chunk.Constants {
		if outer, ok := c.Obj.(*object.Function); ok && outer.Name != nil && outer.Name.Go() == "makeCounter" {
			for _, oc := range outer.Chunk.Constants {
				if f, ok := oc.Obj.(*object.Function); ok {
					inner = f
				}
			}
		}
	}
	require.NotNil(t, inner)
	assert.Equal(t, 1, inner.UpvalueCnt)
	assert.Contains(t, ops(inner), chunk.OpGetUpvalue)
	assert.Contains(t, ops(inner), chunk.OpSetUpvalue)
}

func TestCompileClassWithSuperAndMethod(t *testing.T) {
	fn := compile(t, `
		class Animal { def speak() { print "..."; } }
		class Dog < Animal {
			def speak() { super.speak(); print "woof"; }
		}
	`)
	got := ops(fn)
	assert.Contains(t, got, chunk.OpClass)
	assert.Contains(t, got, chunk.OpInherit)
	assert.Contains(t, got, chunk.OpMethod)
}

func TestCompileBreakAndNext(t *testing.T) {
	fn := compile(t, `
		while (true) {
			if (true) break;
			next;
		}
	`)
	got := ops(fn)
	assert.Contains(t, got, chunk.OpJump)
	assert.Contains(t, got, chunk.OpLoop)
}

func TestCompileSwitchHasNoFallthrough(t *testing.T) {
	fn := compile(t, `
		var x = 1;
		switch (x) {
			case 1: print "one";
			case 2: print "two";
		}
	`)
	// every case body ends in its own jump to the switch exit: with two
	// cases there must be at least two OP_JUMP instructions (the last
	// case's included, matching a no-fallthrough, no-default design).
	count := 0
	for _, op := range ops(fn) {
		if op == chunk.OpJump {
			count++
		}
	}
	assert.GreaterOrEqual(t, count, 2)
}

func TestCompileCompoundAssignmentNormalizesToBinaryOp(t *testing.T) {
	fn := compile(t, "var x = 1; x /= 2; x *= 3;")
	got := ops(fn)
	assert.Contains(t, got, chunk.OpDivide)
	assert.Contains(t, got, chunk.OpMultiply)
}

// TestCompileArithmeticPrecedenceExactSequence pins down the entire
// emitted opcode sequence (not just membership) via a structural diff,
// so a precedence regression shows exactly where the stream diverges.
func TestCompileArithmeticPrecedenceExactSequence(t *testing.T) {
	fn := compile(t, "1 + 2 * 3;")
	want := []chunk.Op{
		chunk.OpConstant, chunk.OpConstant, chunk.OpConstant,
		chunk.OpMultiply, chunk.OpAdd, chunk.OpPop, chunk.OpNil, chunk.OpReturn,
	}
	if diff := cmp.Diff(want, ops(fn)); diff != "" {
		t.Errorf("opcode sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileSyntaxErrorReportsLineAndSynchronizes(t *testing.T) {
	_, err := compiler.Compile("var ;\nvar y = 1;", object.NewHeap(), fakeRoots{})
	require.Error(t, err)
	errs, ok := err.(compiler.Errors)
	require.True(t, ok)
	require.NotEmpty(t, errs)
	assert.Equal(t, 1, errs[0].Line)
}
