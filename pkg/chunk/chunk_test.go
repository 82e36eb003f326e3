package chunk_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/value"
)

// valueComparer lets cmp.Diff compare value.Value via value.Equal
// instead of descending into Obj's unexported fields.
var valueComparer = cmp.Comparer(func(a, b value.Value) bool {
	return value.Equal(a, b)
})

func TestWriteAndAddConstant(t *testing.T) {
	var c chunk.Chunk
	idx := c.AddConstant(value.Number(42))
	c.WriteOp(chunk.OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(chunk.OpReturn, 1)

	require.Equal(t, 3, c.Len())
	assert.Equal(t, []int{1, 1, 1}, c.Lines)
	assert.Equal(t, 42.0, c.Constants[idx].Num)
}

func TestDisassembleDoesNotPanic(t *testing.T) {
	var c chunk.Chunk
	idx := c.AddConstant(value.Number(7))
	c.WriteOp(chunk.OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(chunk.OpReturn, 2)

	var buf bytes.Buffer
	chunk.Disassemble(&buf, &c, "test")
	out := buf.String()
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "OP_RETURN")
	assert.Contains(t, out, "'7'")
}

func TestConstantPoolStructuralDiff(t *testing.T) {
	var c chunk.Chunk
	c.AddConstant(value.Number(1))
	c.AddConstant(value.Number(2))
	c.AddConstant(value.Bool(true))
	c.AddConstant(value.Nil)

	want := []value.Value{value.Number(1), value.Number(2), value.Bool(true), value.Nil}
	if diff := cmp.Diff(want, c.Constants, valueComparer); diff != "" {
		t.Errorf("constant pool mismatch (-want +got):\n%s", diff)
	}
}

func TestJumpInstructionOffset(t *testing.T) {
	var c chunk.Chunk
	c.WriteOp(chunk.OpJump, 1)
	c.Write(0, 1)
	c.Write(2, 1) // jump forward 2
	c.WriteOp(chunk.OpPop, 1)
	c.WriteOp(chunk.OpPop, 1)

	var buf bytes.Buffer
	chunk.Disassemble(&buf, &c, "jump")
	// offset(0) + 3 + 2 == 5
	assert.Contains(t, buf.String(), "-> 5")
}
