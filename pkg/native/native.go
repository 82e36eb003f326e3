// Package native implements host functions callable from script code.
// A native receives its arguments as a slice and signals failure out
// of band: it reports the message through a Reporter and returns
// ok=false rather than encoding an error sentinel in the value itself.
package native

import (
	"time"

	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/value"
)

// Reporter is implemented by the VM: NativeError records the message
// as the VM's pending runtime error and returns the sentinel value a
// NativeFn should return alongside ok=false.
type Reporter interface {
	NativeError(format string, args ...any) value.Value
}

// Clock returns seconds since an arbitrary epoch, as a float.
func Clock() object.NativeFn {
	start := time.Now()
	return func(argv []value.Value) (value.Value, bool) {
		return value.Number(time.Since(start).Seconds()), true
	}
}

// Assert fails the running program with a runtime error if its first
// argument is falsey, using the second argument (if a string) as the
// message.
func Assert(r Reporter) object.NativeFn {
	return func(argv []value.Value) (value.Value, bool) {
		if len(argv) == 0 {
			return r.NativeError("assert() expects at least 1 argument."), false
		}
		if !argv[0].Falsey() {
			return value.Nil, true
		}
		msg := "assertion failed."
		if len(argv) > 1 && argv[1].IsObjKind(value.ObjString) {
			msg = argv[1].Obj.(*object.String).Go()
		}
		return r.NativeError("%s", msg), false
	}
}
