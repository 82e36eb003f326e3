package object

import "github.com/valp-lang/valp/pkg/value"

// Upvalue is a captured variable slot. While open, Location points
// into the VM's value stack (by slot index, since Go can't hold a raw
// pointer into a growable slice safely); once closed, Closed holds the
// copied value and Location is ignored.
type Upvalue struct {
	header
	Location int // stack slot index, meaningful only while open
	Closed   value.Value
	isClosed bool
	NextOpen *Upvalue // next entry in the VM's open-upvalue list
}

func NewUpvalue(slot int) *Upvalue {
	return &Upvalue{header: header{kind: value.ObjUpvalue}, Location: slot}
}

func (u *Upvalue) IsClosed() bool { return u.isClosed }

// Close copies v out of the stack into the upvalue's own storage.
func (u *Upvalue) Close(v value.Value) {
	u.Closed = v
	u.isClosed = true
}

func (u *Upvalue) Equal(other value.Obj) bool {
	o, ok := other.(*Upvalue)
	return ok && o == u
}

func (u *Upvalue) String() string { return "<upvalue>" }
