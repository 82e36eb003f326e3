package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/valp-lang/valp/pkg/value"
)

func TestFalsey(t *testing.T) {
	assert.True(t, value.Nil.Falsey())
	assert.True(t, value.Bool(false).Falsey())
	assert.False(t, value.Bool(true).Falsey())
	assert.False(t, value.Number(0).Falsey())
	assert.False(t, value.FromObj(fakeString("")).Falsey())
}

func TestEqualNumbers(t *testing.T) {
	assert.True(t, value.Equal(value.Number(1), value.Number(1)))
	assert.False(t, value.Equal(value.Number(1), value.Number(2)))
	nan := value.Number(math.NaN())
	assert.False(t, value.Equal(nan, nan))
}

func TestEqualKindMismatch(t *testing.T) {
	assert.False(t, value.Equal(value.Nil, value.Bool(false)))
	assert.False(t, value.Equal(value.Number(0), value.Bool(false)))
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "nil", value.Nil.String())
	assert.Equal(t, "true", value.Bool(true).String())
	assert.Equal(t, "3", value.Number(3).String())
	assert.Equal(t, "3.5", value.Number(3.5).String())
}

type fakeObj struct {
	s string
}

func fakeString(s string) value.Obj { return &fakeObj{s: s} }

func (f *fakeObj) Kind() value.ObjKind    { return value.ObjString }
func (f *fakeObj) Marked() bool           { return false }
func (f *fakeObj) SetMarked(bool)         {}
func (f *fakeObj) Next() value.Obj        { return nil }
func (f *fakeObj) SetNext(value.Obj)      {}
func (f *fakeObj) Equal(o value.Obj) bool { return f == o }
func (f *fakeObj) String() string         { return f.s }
