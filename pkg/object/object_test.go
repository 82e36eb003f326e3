package object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/object"
	"github.com/valp-lang/valp/pkg/value"
)

func TestInterningCanonicalises(t *testing.T) {
	h := object.NewHeap()
	a := h.Intern("hello")
	b := h.Intern("hello")
	assert.Same(t, a, b)

	c := h.Intern("world")
	assert.NotSame(t, a, c)
}

func TestArrayEqualityElementWise(t *testing.T) {
	h := object.NewHeap()
	a1 := h.NewArray([]value.Value{value.Number(1), value.Number(2)})
	a2 := h.NewArray([]value.Value{value.Number(1), value.Number(2)})
	assert.True(t, a1.Equal(a2))

	a3 := h.NewArray([]value.Value{value.Number(1), value.Number(3)})
	assert.False(t, a1.Equal(a3))
}

func TestClassInheritCopiesMethods(t *testing.T) {
	h := object.NewHeap()
	super := h.NewClass(h.Intern("A"))
	methodName := h.Intern("speak")
	fn := h.NewFunction(methodName)
	closure := h.NewClosure(fn)
	super.SetMethod(methodName, closure)

	sub := h.NewClass(h.Intern("B"))
	sub.InheritFrom(super)

	got, ok := sub.GetMethod(methodName)
	require.True(t, ok)
	assert.Same(t, closure, got)
}

func TestInstanceFields(t *testing.T) {
	h := object.NewHeap()
	class := h.NewClass(h.Intern("Point"))
	inst := h.NewInstance(class)
	x := h.Intern("x")
	inst.SetField(x, value.Number(3))

	v, ok := inst.GetField(x)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.Num)
}

func TestUpvalueOpenClose(t *testing.T) {
	u := object.NewUpvalue(5)
	assert.False(t, u.IsClosed())
	u.Close(value.Number(9))
	assert.True(t, u.IsClosed())
	assert.Equal(t, 9.0, u.Closed.Num)
}

func TestHeapTracksAllObjects(t *testing.T) {
	h := object.NewHeap()
	h.Intern("a")
	h.Intern("b")
	count := 0
	for o := h.All(); o != nil; o = o.Next() {
		count++
	}
	assert.Equal(t, 2, count)
}
