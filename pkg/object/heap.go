package object

import (
	"github.com/valp-lang/valp/pkg/table"
	"github.com/valp-lang/valp/pkg/value"
)

// roughly estimates the bytes an object contributes to the allocator's
// trigger counter; the GC only needs relative growth, not byte-exact
// accounting.
const baseObjectSize = 16

// Heap owns the all-objects intrusive list and the string-intern table.
// pkg/vm's VM holds one, but it lives here so pkg/compiler can also
// allocate strings (constant-pool interning) without importing pkg/vm.
type Heap struct {
	all            value.Obj
	strings        table.Table
	BytesAllocated int
	NextGC         int

	// Stress forces collect to run on every allocation; set by the VM
	// from a CLI/test flag.
	Stress bool

	collect      func()
	compilerMark func(mark func(value.Obj))
	collecting   bool
}

func NewHeap() *Heap {
	return &Heap{NextGC: 1 << 20}
}

// SetCollector wires the VM's mark-sweep cycle into the allocator:
// collect runs whenever BytesAllocated crosses NextGC. Left nil, Heap
// never collects (used by compiler-only unit tests that never run a
// VM).
func (h *Heap) SetCollector(fn func()) { h.collect = fn }

// SetCompilerMark lets an in-progress Compile register its linked
// Compiler-frame chain as a GC root for the duration of one Compile
// call; a collection triggered mid-compile must see every function
// still under construction.
func (h *Heap) SetCompilerMark(fn func(mark func(value.Obj))) { h.compilerMark = fn }

func (h *Heap) ClearCompilerMark() { h.compilerMark = nil }

// MarkCompilerRoots invokes the registered compiler-root callback, if
// any is currently active, reporting whether one was present.
func (h *Heap) MarkCompilerRoots(mark func(value.Obj)) bool {
	if h.compilerMark == nil {
		return false
	}
	h.compilerMark(mark)
	return true
}

func (h *Heap) track(o value.Obj) {
	o.SetNext(h.all)
	h.all = o
	h.BytesAllocated += baseObjectSize

	if h.collect == nil || h.collecting {
		return
	}
	if h.Stress || h.BytesAllocated > h.NextGC {
		// o is linked into the all-objects list but its caller hasn't had
		// a chance to root it yet: it is reachable from nothing. Pin it
		// for this one cycle so the sweep can't reclaim an object still
		// under construction. Sweep clears the mark bit on every
		// survivor, so o leaves this call unmarked again.
		o.SetMarked(true)
		h.collecting = true
		h.collect()
		h.collecting = false
	}
}

// All returns the head of the all-objects list for the GC sweep.
func (h *Heap) All() value.Obj { return h.all }

// SetAll lets the sweep rewrite the list head after unlinking garbage.
func (h *Heap) SetAll(o value.Obj) { h.all = o }

// Strings exposes the intern table so the GC can run RemoveWhite on it
// between trace and sweep.
func (h *Heap) Strings() *table.Table { return &h.strings }

// Intern canonicalises s: an existing String with equal bytes is
// returned verbatim; otherwise a new String is allocated, tracked, and
// interned. At most one String exists per byte sequence.
func (h *Heap) Intern(s string) *String {
	hash := HashString(s)
	if found := h.strings.FindString(hash, []byte(s)); found != nil {
		return found.(*String)
	}
	str := &String{header: header{kind: value.ObjString}, bytes: []byte(s), hash: hash}
	h.track(str)
	h.strings.Set(str, value.Bool(true))
	return str
}

func (h *Heap) NewArray(elems []value.Value) *Array {
	a := NewArray(elems)
	h.track(a)
	return a
}

func (h *Heap) NewFunction(name *String) *Function {
	f := NewFunction(name)
	h.track(f)
	return f
}

func (h *Heap) NewNative(name string, fn NativeFn) *Native {
	n := NewNative(name, fn)
	h.track(n)
	return n
}

func (h *Heap) NewUpvalue(slot int) *Upvalue {
	u := NewUpvalue(slot)
	h.track(u)
	return u
}

func (h *Heap) NewClosure(fn *Function) *Closure {
	c := NewClosure(fn)
	h.track(c)
	return c
}

func (h *Heap) NewClass(name *String) *Class {
	c := NewClass(name)
	h.track(c)
	return c
}

func (h *Heap) NewInstance(class *Class) *Instance {
	i := NewInstance(class)
	h.track(i)
	return i
}

func (h *Heap) NewBoundMethod(receiver value.Value, method *Closure) *BoundMethod {
	b := NewBoundMethod(receiver, method)
	h.track(b)
	return b
}

// Sweep walks the all-objects list, unlinking and discarding every
// object whose mark bit the trace phase left clear, and resets the
// mark bit on every survivor for the next cycle. It returns the number
// of objects freed so the collector can log cycle stats.
func (h *Heap) Sweep() int {
	var (
		survivors value.Obj
		freed     int
	)
	for o := h.all; o != nil; {
		next := o.Next()
		if o.Marked() {
			o.SetMarked(false)
			o.SetNext(survivors)
			survivors = o
		} else {
			freed++
			h.BytesAllocated -= baseObjectSize
		}
		o = next
	}
	h.all = survivors
	return freed
}
