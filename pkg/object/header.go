// Package object implements the heap object kinds: String, Array,
// Function, Native, Upvalue, Closure, Class, Instance, and
// BoundMethod. Each embeds header, the common {kind, marked, next}
// record the GC traces and sweeps. Dispatch is an exhaustive switch on
// value.ObjKind; header only supplies the GC bookkeeping every kind
// shares.
package object

import "github.com/valp-lang/valp/pkg/value"

type header struct {
	kind   value.ObjKind
	marked bool
	next   value.Obj
}

func (h *header) Kind() value.ObjKind { return h.kind }
func (h *header) Marked() bool        { return h.marked }
func (h *header) SetMarked(m bool)    { h.marked = m }
func (h *header) Next() value.Obj     { return h.next }
func (h *header) SetNext(n value.Obj) { h.next = n }
