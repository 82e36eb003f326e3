package vm

import (
	"go.uber.org/zap"

	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/table"
	"github.com/valp-lang/valp/pkg/value"
)

// collectGarbage runs one tri-colour mark-sweep cycle: mark every
// root, trace the gray worklist to black, purge now-unreachable
// strings from the intern table, then sweep the all-objects list. The
// intern purge must sit between trace and sweep so dead interned
// strings leave the table before their storage is reclaimed. Wired
// into the allocator via heap.SetCollector, so it fires from
// object.Heap.track whenever the allocation counter crosses NextGC, or
// on every allocation under stress.
func (vm *VM) collectGarbage() {
	vm.grayStack = vm.grayStack[:0]

	vm.markRoots()
	vm.heap.MarkCompilerRoots(vm.markObject)
	vm.traceReferences()
	vm.heap.Strings().RemoveWhite(func(k table.Key) bool {
		return k.(*object.String).Marked()
	})
	freed := vm.heap.Sweep()

	next := vm.heap.BytesAllocated * 2
	if next < 1<<20 {
		next = 1 << 20
	}
	vm.heap.NextGC = next

	vm.logger.Debug("gc cycle",
		zap.Int("freed", freed),
		zap.Int("bytes_allocated", vm.heap.BytesAllocated),
		zap.Int("next_gc", vm.heap.NextGC),
	)
}

// markRoots marks every value the VM itself holds live: the value
// stack up to stackTop, every call frame's closure, every open
// upvalue, the globals table, and the cached "init" string. The intern
// table is deliberately not a root; RemoveWhite prunes it instead.
func (vm *VM) markRoots() {
	for i := 0; i < vm.stackTop; i++ {
		vm.markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.markObject(uv)
	}
	vm.markTable(&vm.globals)
	vm.markObject(vm.initString)
}

func (vm *VM) markTable(t *table.Table) {
	t.Each(func(k table.Key, v value.Value) {
		if s, ok := k.(*object.String); ok {
			vm.markObject(s)
		}
		vm.markValue(v)
	})
}

func (vm *VM) markValue(v value.Value) {
	if v.IsObj() {
		vm.markObject(v.Obj)
	}
}

// markObject grays o: sets its mark bit and, if it wasn't already
// marked, appends it to the gray worklist for traceReferences to
// blacken later. A nil interface is a no-op; a typed nil pointer
// boxed in value.Obj is not caught here, so callers skip nil fields
// (Function.Name on the top-level script, a closure's not-yet-filled
// upvalue slots) themselves.
func (vm *VM) markObject(o value.Obj) {
	if o == nil || o.Marked() {
		return
	}
	o.SetMarked(true)
	vm.grayStack = append(vm.grayStack, o)
}

func (vm *VM) traceReferences() {
	for len(vm.grayStack) > 0 {
		n := len(vm.grayStack) - 1
		o := vm.grayStack[n]
		vm.grayStack = vm.grayStack[:n]
		vm.blackenObject(o)
	}
}

// blackenObject marks every Obj o itself references.
func (vm *VM) blackenObject(o value.Obj) {
	switch o.Kind() {
	case value.ObjUpvalue:
		uv := o.(*object.Upvalue)
		if uv.IsClosed() {
			vm.markValue(uv.Closed)
		}
	case value.ObjFunction:
		fn := o.(*object.Function)
		if fn.Name != nil {
			vm.markObject(fn.Name)
		}
		for _, c := range fn.Chunk.Constants {
			vm.markValue(c)
		}
	case value.ObjClosure:
		cl := o.(*object.Closure)
		vm.markObject(cl.Function)
		for _, uv := range cl.Upvalues {
			// OP_CLOSURE fills these one capture at a time, and each
			// capture can trigger a cycle before the rest are set.
			if uv != nil {
				vm.markObject(uv)
			}
		}
	case value.ObjNative:
		// natives hold no heap references.
	case value.ObjClass:
		c := o.(*object.Class)
		vm.markObject(c.Name)
		vm.markTable(&c.Methods)
	case value.ObjInstance:
		inst := o.(*object.Instance)
		vm.markObject(inst.Class)
		vm.markTable(&inst.Fields)
	case value.ObjBoundMethod:
		b := o.(*object.BoundMethod)
		vm.markValue(b.Receiver)
		vm.markObject(b.Method)
	case value.ObjArray:
		a := o.(*object.Array)
		for _, v := range a.Elements {
			vm.markValue(v)
		}
	case value.ObjString:
		// leaf object, no outgoing references.
	}
}
