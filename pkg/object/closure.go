package object

import "github.com/valp-lang/valp/pkg/value"

// Closure pairs a Function with the upvalue references its enclosing
// frame created for it.
type Closure struct {
	header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{
		header:   header{kind: value.ObjClosure},
		Function: fn,
		Upvalues: make([]*Upvalue, fn.UpvalueCnt),
	}
}

func (c *Closure) Equal(other value.Obj) bool {
	o, ok := other.(*Closure)
	return ok && o == c
}

func (c *Closure) String() string { return c.Function.String() }
