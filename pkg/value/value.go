// Package value defines the tagged-union Value representation shared by
// the compiler and the VM, plus the Obj interface implemented by every
// heap object kind in package object.
//
// A tagged union was chosen over NaN-boxing: Go has no portable
// quiet-NaN payload trick worth the unsafe cost, and the two encodings
// behave identically anyway.
package value

// Kind discriminates the four value shapes: nil, bool, number, or a
// reference to a heap object.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// ObjKind discriminates heap object payloads. Declared here (rather than
// in package object) so Value and Obj can both refer to it without a
// package cycle.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjArray
	ObjFunction
	ObjNative
	ObjUpvalue
	ObjClosure
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjArray:
		return "array"
	case ObjFunction:
		return "function"
	case ObjNative:
		return "native"
	case ObjUpvalue:
		return "upvalue"
	case ObjClosure:
		return "closure"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	default:
		return "unknown"
	}
}

// Obj is implemented by every heap object kind in package object. The
// Marked/Next pair is the GC's intrusive all-objects list and mark bit;
// Equal is reference identity for every kind except Array, which
// compares element-wise.
type Obj interface {
	Kind() ObjKind
	Marked() bool
	SetMarked(bool)
	Next() Obj
	SetNext(Obj)
	Equal(other Obj) bool
	String() string
}

// Value is nil, a bool, an IEEE-754 double, or a reference to a heap
// object, never more than one at a time.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Obj  Obj
}

var Nil = Value{Kind: KindNil}

func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func FromObj(o Obj) Value    { return Value{Kind: KindObj, Obj: o} }

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

func (v Value) IsObjKind(k ObjKind) bool {
	return v.Kind == KindObj && v.Obj.Kind() == k
}

// Falsey reports whether v is nil or false. Everything else, including
// 0 and "", is truthy.
func (v Value) Falsey() bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.Bool)
}

// Equal is IEEE double equality for numbers (so NaN != NaN) and
// reference identity for objects, except arrays which compare
// element-wise via Obj.Equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	case KindObj:
		return a.Obj.Equal(b.Obj)
	default:
		return false
	}
}

// String renders v the way the PRINT opcode and the disassembler's
// constant dump do.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObj:
		return v.Obj.String()
	default:
		return "<invalid value>"
	}
}
