package object

import (
	"strings"

	"github.com/valp-lang/valp/pkg/value"
)

// Array is a mutable, ordered sequence of Values with amortised-O(1)
// append. Go's builtin slice append already gives that cost, so Array
// is a thin wrapper that also carries the common object header.
type Array struct {
	header
	Elements []value.Value
}

func NewArray(elems []value.Value) *Array {
	return &Array{header: header{kind: value.ObjArray}, Elements: elems}
}

func (a *Array) Len() int { return len(a.Elements) }

func (a *Array) Get(i int) (value.Value, bool) {
	if i < 0 || i >= len(a.Elements) {
		return value.Nil, false
	}
	return a.Elements[i], true
}

func (a *Array) Set(i int, v value.Value) bool {
	if i < 0 || i >= len(a.Elements) {
		return false
	}
	a.Elements[i] = v
	return true
}

func (a *Array) Append(v value.Value) {
	a.Elements = append(a.Elements, v)
}

// Equal is element-wise; arrays are the one object kind that does not
// compare by reference identity.
func (a *Array) Equal(other value.Obj) bool {
	o, ok := other.(*Array)
	if !ok {
		return false
	}
	if o == a {
		return true
	}
	if len(o.Elements) != len(a.Elements) {
		return false
	}
	for i := range a.Elements {
		if !value.Equal(a.Elements[i], o.Elements[i]) {
			return false
		}
	}
	return true
}

func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
