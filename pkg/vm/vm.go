// Package vm implements the stack-based virtual machine: call frames
// sharing one value stack, a tight switch-dispatch loop over
// pkg/chunk's opcode set, the open-upvalue list, and (in gc.go) the
// tri-colour mark-sweep collector that traces it all.
package vm

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/valp-lang/valp/pkg/chunk"
	"github.com/valp-lang/valp/pkg/compiler"
	"github.com/valp-lang/valp/pkg/native"
	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/table"
	"github.com/valp-lang/valp/pkg/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// callFrame is one invocation record: the running closure, an
// instruction-pointer offset into its chunk, and the base index into
// the VM's shared value stack where this frame's locals begin.
type callFrame struct {
	closure   *object.Closure
	ip        int
	slotsBase int
}

// Result reports whether Interpret's source compiled and ran cleanly,
// failed to compile, or failed at runtime.
type Result int

const (
	ResultOK Result = iota
	ResultCompileError
	ResultRuntimeError
)

// VM owns the object heap, the intern/globals tables, the call-frame
// and value stacks, and the open-upvalue list, none of which are
// mutated from outside VM operations. Single-threaded, non-reentrant.
type VM struct {
	frames     [framesMax]callFrame
	frameCount int

	stack    [stackMax]value.Value
	stackTop int

	globals table.Table
	heap    *object.Heap

	openUpvalues *object.Upvalue
	initString   *object.String

	grayStack []value.Obj

	pendingNativeErr string

	logger *zap.Logger
	stdout io.Writer
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithLogger attaches a zap logger for GC-cycle events (one debug entry
// per collection). Never used for the PRINT opcode's own output, which
// always goes through WithStdout's writer.
func WithLogger(l *zap.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

// WithStdout redirects the PRINT opcode's output.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

// WithStress forces a collection cycle on every object allocation.
// Program output must be identical with and without it.
func WithStress(stress bool) Option {
	return func(vm *VM) { vm.heap.Stress = stress }
}

// New creates a VM with its lifecycle already begun: heap, intern
// table, globals, and the natives are ready; the caller need only call
// Interpret.
func New(opts ...Option) *VM {
	vm := &VM{heap: object.NewHeap(), logger: zap.NewNop()}
	vm.heap.SetCollector(vm.collectGarbage)
	vm.initString = vm.heap.Intern("init")
	vm.defineNative("clock", native.Clock())
	vm.defineNative("assert", native.Assert(vm))

	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Push and Pop also satisfy pkg/compiler.Roots: the compiler pushes
// transient heap values here so a GC triggered by its next allocation
// sees them as roots.
func (vm *VM) Push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) Pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

var _ compiler.Roots = (*VM)(nil)
var _ native.Reporter = (*VM)(nil)

// NativeError implements native.Reporter: it records msg as the
// pending native failure and returns the sentinel value a NativeFn
// must return alongside ok=false.
func (vm *VM) NativeError(format string, args ...any) value.Value {
	vm.pendingNativeErr = fmt.Sprintf(format, args...)
	return value.Nil
}

func (vm *VM) defineNative(name string, fn object.NativeFn) {
	// Push the name before allocating the native so a GC triggered by
	// that allocation sees it as a root; both stay pushed until globals
	// holds them.
	vm.Push(value.FromObj(vm.heap.Intern(name)))
	vm.Push(value.FromObj(vm.heap.NewNative(name, fn)))
	vm.globals.Set(vm.stack[0].Obj.(*object.String), vm.stack[1])
	vm.Pop()
	vm.Pop()
}

// Interpret compiles and runs source on this VM instance, blocking
// until the program terminates, errors out, or exhausts a stack.
func (vm *VM) Interpret(source string) (Result, error) {
	vm.resetStack()
	fn, err := compiler.Compile(source, vm.heap, vm)
	if err != nil {
		return ResultCompileError, err
	}

	vm.Push(value.FromObj(fn))
	closure := vm.heap.NewClosure(fn)
	vm.Pop()
	vm.Push(value.FromObj(closure))
	if err := vm.call(closure, 0); err != nil {
		return ResultRuntimeError, err
	}

	return vm.run()
}

func (vm *VM) runtimeError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	trace := make([]StackFrame, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		fn := f.closure.Function
		line := 0
		// ip is already advanced past the failing instruction.
		instr := f.ip - 1
		if instr >= 0 && instr < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[instr]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Go() + "()"
		}
		trace = append(trace, StackFrame{Name: name, Line: line})
	}

	vm.resetStack()
	return &RuntimeError{Message: msg, StackTrace: trace}
}

func (vm *VM) call(closure *object.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}

	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slotsBase = vm.stackTop - argc - 1
	return nil
}

func (vm *VM) callValue(callee value.Value, argc int) error {
	if callee.IsObj() {
		switch callee.Obj.Kind() {
		case value.ObjBoundMethod:
			bound := callee.Obj.(*object.BoundMethod)
			vm.stack[vm.stackTop-argc-1] = bound.Receiver
			return vm.call(bound.Method, argc)
		case value.ObjClass:
			class := callee.Obj.(*object.Class)
			vm.stack[vm.stackTop-argc-1] = value.FromObj(vm.heap.NewInstance(class))
			if init, ok := class.GetMethod(vm.initString); ok {
				return vm.call(init, argc)
			} else if argc != 0 {
				return vm.runtimeError("Expected 0 arguments but got %d.", argc)
			}
			return nil
		case value.ObjClosure:
			return vm.call(callee.Obj.(*object.Closure), argc)
		case value.ObjNative:
			n := callee.Obj.(*object.Native)
			result, ok := n.Fn(vm.stack[vm.stackTop-argc : vm.stackTop])
			if !ok {
				msg := vm.pendingNativeErr
				vm.pendingNativeErr = ""
				return vm.runtimeError("%s", msg)
			}
			vm.stackTop -= argc + 1
			vm.Push(result)
			return nil
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argc int) error {
	method, ok := class.GetMethod(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Go())
	}
	return vm.call(method, argc)
}

// invoke is OP_INVOKE's fused GET_PROPERTY+CALL: it avoids allocating
// an intermediate bound method for the common instance.method() call
// path, falling back to calling a field value if the property resolves
// to one instead of a method.
func (vm *VM) invoke(name *object.String, argc int) error {
	receiver := vm.peek(argc)
	if !receiver.IsObjKind(value.ObjInstance) {
		return vm.runtimeError("Only instances have methods.")
	}
	inst := receiver.Obj.(*object.Instance)

	if v, ok := inst.GetField(name); ok {
		vm.stack[vm.stackTop-argc-1] = v
		return vm.callValue(v, argc)
	}

	return vm.invokeFromClass(inst.Class, name, argc)
}

func (vm *VM) bindMethod(class *object.Class, name *object.String) error {
	method, ok := class.GetMethod(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Go())
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method)
	vm.Pop()
	vm.Push(value.FromObj(bound))
	return nil
}

// captureUpvalue walks the open-upvalue list, kept sorted by
// descending stack slot, reusing an existing entry at the same slot or
// inserting a new one in place. At most one open upvalue exists per
// slot.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Location > slot {
		prev = uv
		uv = uv.NextOpen
	}
	if uv != nil && uv.Location == slot {
		return uv
	}

	created := vm.heap.NewUpvalue(slot)
	created.NextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose location is at or
// above last: it copies the stack slot into the upvalue's own storage
// and unlinks it from the open list.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= last {
		uv := vm.openUpvalues
		uv.Close(vm.stack[uv.Location])
		vm.openUpvalues = uv.NextOpen
	}
}

func (vm *VM) defineMethod(name *object.String) {
	method := vm.peek(0).Obj.(*object.Closure)
	class := vm.peek(1).Obj.(*object.Class)
	class.SetMethod(name, method)
	vm.Pop()
}

func (vm *VM) concatenate() {
	b := vm.peek(0).Obj.(*object.String)
	a := vm.peek(1).Obj.(*object.String)
	result := vm.heap.Intern(string(a.Bytes()) + string(b.Bytes()))
	vm.Pop()
	vm.Pop()
	vm.Push(value.FromObj(result))
}

// run is the dispatch loop: a tight switch over one byte at a time,
// operating on the current frame until OP_RETURN unwinds the last one.
func (vm *VM) run() (Result, error) {
	frame := &vm.frames[vm.frameCount-1]
	code := frame.closure.Function.Chunk.Code

	readByte := func() byte {
		b := code[frame.ip]
		frame.ip++
		return b
	}
	readShort := func() int {
		hi, lo := code[frame.ip], code[frame.ip+1]
		frame.ip += 2
		return int(hi)<<8 | int(lo)
	}
	readConstant := func() value.Value {
		return frame.closure.Function.Chunk.Constants[readByte()]
	}
	readString := func() *object.String {
		return readConstant().Obj.(*object.String)
	}
	refreshFrame := func() {
		frame = &vm.frames[vm.frameCount-1]
		code = frame.closure.Function.Chunk.Code
	}
	numericBinary := func(op chunk.Op) error {
		if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
			return vm.runtimeError("Operands must be numbers.")
		}
		b := vm.Pop().Num
		a := vm.Pop().Num
		switch op {
		case chunk.OpGreater:
			vm.Push(value.Bool(a > b))
		case chunk.OpLess:
			vm.Push(value.Bool(a < b))
		case chunk.OpSubtract:
			vm.Push(value.Number(a - b))
		case chunk.OpMultiply:
			vm.Push(value.Number(a * b))
		case chunk.OpDivide:
			vm.Push(value.Number(a / b))
		}
		return nil
	}

	for {
		op := chunk.Op(readByte())
		switch op {
		case chunk.OpConstant:
			vm.Push(readConstant())
		case chunk.OpNil:
			vm.Push(value.Nil)
		case chunk.OpTrue:
			vm.Push(value.Bool(true))
		case chunk.OpFalse:
			vm.Push(value.Bool(false))
		case chunk.OpPop:
			vm.Pop()
		case chunk.OpDup:
			vm.Push(vm.peek(0))

		case chunk.OpGetLocal:
			vm.Push(vm.stack[frame.slotsBase+int(readByte())])
		case chunk.OpSetLocal:
			vm.stack[frame.slotsBase+int(readByte())] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return ResultRuntimeError, vm.runtimeError("Undefined variable '%s'.", name.Go())
			}
			vm.Push(v)
		case chunk.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.Pop()
		case chunk.OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return ResultRuntimeError, vm.runtimeError("Undefined variable '%s'.", name.Go())
			}

		case chunk.OpGetUpvalue:
			uv := frame.closure.Upvalues[readByte()]
			if uv.IsClosed() {
				vm.Push(uv.Closed)
			} else {
				vm.Push(vm.stack[uv.Location])
			}
		case chunk.OpSetUpvalue:
			uv := frame.closure.Upvalues[readByte()]
			if uv.IsClosed() {
				uv.Closed = vm.peek(0)
			} else {
				vm.stack[uv.Location] = vm.peek(0)
			}

		case chunk.OpGetProperty:
			if !vm.peek(0).IsObjKind(value.ObjInstance) {
				return ResultRuntimeError, vm.runtimeError("Only instances have properties.")
			}
			inst := vm.peek(0).Obj.(*object.Instance)
			name := readString()
			if v, ok := inst.GetField(name); ok {
				vm.Pop()
				vm.Push(v)
				break
			}
			if err := vm.bindMethod(inst.Class, name); err != nil {
				return ResultRuntimeError, err
			}
		case chunk.OpSetProperty:
			if !vm.peek(1).IsObjKind(value.ObjInstance) {
				return ResultRuntimeError, vm.runtimeError("Only instances have fields.")
			}
			inst := vm.peek(1).Obj.(*object.Instance)
			inst.SetField(readString(), vm.peek(0))
			v := vm.Pop()
			vm.Pop()
			vm.Push(v)
		case chunk.OpGetSuper:
			name := readString()
			super := vm.Pop().Obj.(*object.Class)
			if err := vm.bindMethod(super, name); err != nil {
				return ResultRuntimeError, err
			}

		case chunk.OpEqual:
			b, a := vm.Pop(), vm.Pop()
			vm.Push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpLess:
			if err := numericBinary(op); err != nil {
				return ResultRuntimeError, err
			}
		case chunk.OpAdd:
			switch {
			case vm.peek(0).IsObjKind(value.ObjString) && vm.peek(1).IsObjKind(value.ObjString):
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b, a := vm.Pop().Num, vm.Pop().Num
				vm.Push(value.Number(a + b))
			default:
				return ResultRuntimeError, vm.runtimeError("Operands must be two numbers or two strings.")
			}
		case chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide:
			if err := numericBinary(op); err != nil {
				return ResultRuntimeError, err
			}
		case chunk.OpNot:
			vm.Push(value.Bool(vm.Pop().Falsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return ResultRuntimeError, vm.runtimeError("Operand must be a number.")
			}
			vm.Push(value.Number(-vm.Pop().Num))
		case chunk.OpPrint:
			fmt.Fprintln(vm.stdoutWriter(), vm.Pop().String())

		case chunk.OpJump:
			offset := readShort()
			frame.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readShort()
			if vm.peek(0).Falsey() {
				frame.ip += offset
			}
		case chunk.OpLoop:
			offset := readShort()
			frame.ip -= offset

		case chunk.OpCall:
			argc := int(readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return ResultRuntimeError, err
			}
			refreshFrame()
		case chunk.OpInvoke:
			method := readString()
			argc := int(readByte())
			if err := vm.invoke(method, argc); err != nil {
				return ResultRuntimeError, err
			}
			refreshFrame()
		case chunk.OpSuperInvoke:
			method := readString()
			argc := int(readByte())
			super := vm.Pop().Obj.(*object.Class)
			if err := vm.invokeFromClass(super, method, argc); err != nil {
				return ResultRuntimeError, err
			}
			refreshFrame()

		case chunk.OpClosure:
			fn := readConstant().Obj.(*object.Function)
			closure := vm.heap.NewClosure(fn)
			vm.Push(value.FromObj(closure))
			for i := 0; i < fn.UpvalueCnt; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.Pop()

		case chunk.OpReturn:
			result := vm.Pop()
			vm.closeUpvalues(frame.slotsBase)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.Pop()
				return ResultOK, nil
			}
			vm.stackTop = frame.slotsBase
			vm.Push(result)
			refreshFrame()

		case chunk.OpClass:
			vm.Push(value.FromObj(vm.heap.NewClass(readString())))
		case chunk.OpInherit:
			if !vm.peek(1).IsObjKind(value.ObjClass) {
				return ResultRuntimeError, vm.runtimeError("Superclass must be a class.")
			}
			super := vm.peek(1).Obj.(*object.Class)
			sub := vm.peek(0).Obj.(*object.Class)
			sub.InheritFrom(super)
			vm.Pop()
		case chunk.OpMethod:
			vm.defineMethod(readString())

		default:
			return ResultRuntimeError, vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) stdoutWriter() io.Writer {
	if vm.stdout == nil {
		return os.Stdout
	}
	return vm.stdout
}
