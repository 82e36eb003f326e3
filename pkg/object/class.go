package object

import (
	"fmt"

	"github.com/valp-lang/valp/pkg/table"
	"github.com/valp-lang/valp/pkg/value"
)

// Class is a name plus a method table, String -> Closure. Methods are
// stored in the same open-addressed table the VM uses for globals and
// interning, rather than a bare Go map, so method lookup shares the
// tombstone/rebuild behaviour.
type Class struct {
	header
	Name    *String
	Methods table.Table
}

func NewClass(name *String) *Class {
	return &Class{header: header{kind: value.ObjClass}, Name: name}
}

func (c *Class) SetMethod(name *String, closure *Closure) {
	c.Methods.Set(name, value.FromObj(closure))
}

func (c *Class) GetMethod(name *String) (*Closure, bool) {
	v, ok := c.Methods.Get(name)
	if !ok {
		return nil, false
	}
	return v.Obj.(*Closure), true
}

// InheritFrom copies every method of super into c. Methods the
// subclass defines afterwards overwrite the copies.
func (c *Class) InheritFrom(super *Class) {
	super.Methods.Each(func(k table.Key, v value.Value) {
		c.Methods.Set(k, v)
	})
}

func (c *Class) Equal(other value.Obj) bool {
	o, ok := other.(*Class)
	return ok && o == c
}

func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name.Go()) }

// Instance is a class pointer plus a field table, String -> Value.
type Instance struct {
	header
	Class  *Class
	Fields table.Table
}

func NewInstance(class *Class) *Instance {
	return &Instance{header: header{kind: value.ObjInstance}, Class: class}
}

func (i *Instance) GetField(name *String) (value.Value, bool) {
	return i.Fields.Get(name)
}

func (i *Instance) SetField(name *String, v value.Value) {
	i.Fields.Set(name, v)
}

func (i *Instance) Equal(other value.Obj) bool {
	o, ok := other.(*Instance)
	return ok && o == i
}

func (i *Instance) String() string { return fmt.Sprintf("<%s instance>", i.Class.Name.Go()) }

// BoundMethod pairs a receiver Value with the Closure looked up on it.
// OP_INVOKE/OP_SUPER_INVOKE avoid allocating these in the common call
// path; plain OP_GET_PROPERTY on a method still needs them.
type BoundMethod struct {
	header
	Receiver value.Value
	Method   *Closure
}

func NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	return &BoundMethod{header: header{kind: value.ObjBoundMethod}, Receiver: receiver, Method: method}
}

func (b *BoundMethod) Equal(other value.Obj) bool {
	o, ok := other.(*BoundMethod)
	return ok && o == b
}

func (b *BoundMethod) String() string { return b.Method.String() }
