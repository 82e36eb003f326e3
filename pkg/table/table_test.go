package table_test

import (
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valp-lang/valp/pkg/table"
	"github.com/valp-lang/valp/pkg/value"
)

type strKey string

func (s strKey) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
func (s strKey) Bytes() []byte { return []byte(s) }

func TestSetGetDelete(t *testing.T) {
	var tbl table.Table
	isNew := tbl.Set(strKey("a"), value.Number(1))
	assert.True(t, isNew)

	isNew = tbl.Set(strKey("a"), value.Number(2))
	assert.False(t, isNew)

	v, ok := tbl.Get(strKey("a"))
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Num)

	assert.True(t, tbl.Delete(strKey("a")))
	_, ok = tbl.Get(strKey("a"))
	assert.False(t, ok)
}

func TestDeleteKeepsRemainingKeysReachable(t *testing.T) {
	var tbl table.Table
	for i := 0; i < 20; i++ {
		tbl.Set(strKey(string(rune('a'+i))), value.Number(float64(i)))
	}
	for i := 0; i < 10; i++ {
		tbl.Delete(strKey(string(rune('a' + i))))
	}
	assert.Equal(t, 10, tbl.Len())
	for i := 10; i < 20; i++ {
		v, ok := tbl.Get(strKey(string(rune('a' + i))))
		require.True(t, ok)
		assert.Equal(t, float64(i), v.Num)
	}
}

func TestFindString(t *testing.T) {
	var tbl table.Table
	k := strKey("hello")
	tbl.Set(k, value.Bool(true))
	found := tbl.FindString(k.Hash(), []byte("hello"))
	require.NotNil(t, found)
	assert.Equal(t, k, found)

	assert.Nil(t, tbl.FindString(strKey("nope").Hash(), []byte("nope")))
}

func TestRemoveWhite(t *testing.T) {
	var tbl table.Table
	tbl.Set(strKey("keep"), value.Bool(true))
	tbl.Set(strKey("drop"), value.Bool(true))

	tbl.RemoveWhite(func(k table.Key) bool {
		return k.(strKey) == "keep"
	})

	_, ok := tbl.Get(strKey("keep"))
	assert.True(t, ok)
	_, ok = tbl.Get(strKey("drop"))
	assert.False(t, ok)
}

func TestEach(t *testing.T) {
	var tbl table.Table
	tbl.Set(strKey("a"), value.Number(1))
	tbl.Set(strKey("b"), value.Number(2))
	seen := map[string]float64{}
	tbl.Each(func(k table.Key, v value.Value) {
		seen[string(k.(strKey))] = v.Num
	})
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, seen)
}
