package chunk

import (
	"fmt"
	"io"

	"github.com/valp-lang/valp/pkg/value"
)

// upvalueCounter is implemented by pkg/object.Function; declared locally
// to avoid chunk depending on object (object already depends on chunk).
type upvalueCounter interface {
	UpvalueCount() int
}

// Disassemble writes a human-readable listing of c to w, one
// instruction per line with its offset and source line.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disassembleInstruction(w, c, offset)
	}
}

func disassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := Op(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpGetProperty, OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return constantInstruction(w, op.String(), c, offset)
	case OpNil, OpTrue, OpFalse, OpPop, OpDup, OpEqual, OpGreater, OpLess,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpNot, OpNegate, OpPrint,
		OpCloseUpvalue, OpReturn, OpInherit:
		return simpleInstruction(w, op.String(), offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(w, op.String(), c, offset)
	case OpInvoke, OpSuperInvoke:
		return invokeInstruction(w, op.String(), c, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(w, op.String(), 1, c, offset)
	case OpLoop:
		return jumpInstruction(w, op.String(), -1, c, offset)
	case OpClosure:
		return closureInstruction(w, c, offset)
	default:
		fmt.Fprintf(w, "Unknown opcode %d\n", op)
		return offset + 1
	}
}

func simpleInstruction(w io.Writer, name string, offset int) int {
	fmt.Fprintf(w, "%s\n", name)
	return offset + 1
}

func byteInstruction(w io.Writer, name string, c *Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", name, slot)
	return offset + 2
}

func constantInstruction(w io.Writer, name string, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", name, idx, formatConstant(c.Constants[idx]))
	return offset + 2
}

func invokeInstruction(w io.Writer, name string, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	argc := c.Code[offset+2]
	fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", name, argc, idx, formatConstant(c.Constants[idx]))
	return offset + 3
}

// jumpInstruction prints the jump's resolved target: three bytes for
// the instruction itself plus the signed 16-bit jump.
func jumpInstruction(w io.Writer, name string, sign int, c *Chunk, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	target := offset + 3 + sign*jump
	fmt.Fprintf(w, "%-16s %4d -> %d\n", name, offset, target)
	return offset + 3
}

func closureInstruction(w io.Writer, c *Chunk, offset int) int {
	idx := c.Code[offset+1]
	constant := c.Constants[idx]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", "OP_CLOSURE", idx, formatConstant(constant))
	offset += 2

	n := 0
	if fn, ok := constant.Obj.(upvalueCounter); ok {
		n = fn.UpvalueCount()
	}
	for i := 0; i < n; i++ {
		isLocal := c.Code[offset]
		index := c.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}

func formatConstant(v value.Value) string {
	return v.String()
}
