package object

import (
	"fmt"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/value"
)

// Function is immutable once compilation of its body finishes: arity,
// upvalue count, its own compiled Chunk, and an optional name (nil for
// the implicit top-level script function).
type Function struct {
	header
	Arity      int
	UpvalueCnt int
	Chunk      chunk.Chunk
	Name       *String
}

func NewFunction(name *String) *Function {
	return &Function{header: header{kind: value.ObjFunction}, Name: name}
}

func (f *Function) UpvalueCount() int { return f.UpvalueCnt }

func (f *Function) Equal(other value.Obj) bool {
	o, ok := other.(*Function)
	return ok && o == f
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Go())
}

// NativeFn is the host-callable shape. Failure is signalled out of
// band: it returns a Value plus ok=false, which the VM turns into a
// runtime error via the pending-native-error message.
type NativeFn func(argv []value.Value) (value.Value, bool)

type Native struct {
	header
	Name string
	Fn   NativeFn
}

func NewNative(name string, fn NativeFn) *Native {
	return &Native{header: header{kind: value.ObjNative}, Name: name, Fn: fn}
}

func (n *Native) Equal(other value.Obj) bool {
	o, ok := other.(*Native)
	return ok && o == n
}

func (n *Native) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }
