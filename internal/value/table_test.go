package value

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func internKey(s string) *String {
	return NewStringRaw(s, HashFNV1a(s))
}

func TestTableSetGet(t *testing.T) {
	tbl := NewTable()
	k := internKey("name")

	isNew := tbl.Set(k, Number(42))
	assert.True(t, isNew)

	got, ok := tbl.Get(k)
	require.True(t, ok)
	assert.Equal(t, 42.0, got.Number)

	isNew = tbl.Set(k, Number(7))
	assert.False(t, isNew, "overwriting an existing key is not a new key")
	got, _ = tbl.Get(k)
	assert.Equal(t, 7.0, got.Number)
}

func TestTableGetMissing(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get(internKey("missing"))
	assert.False(t, ok)
}

func TestTableDeleteLeavesTombstone(t *testing.T) {
	tbl := NewTable()
	k := internKey("k")
	tbl.Set(k, Bool(true))

	assert.True(t, tbl.Delete(k))
	_, ok := tbl.Get(k)
	assert.False(t, ok)

	assert.False(t, tbl.Delete(k), "deleting twice reports no key present")
}

func TestTableFindString(t *testing.T) {
	tbl := NewTable()
	k := internKey("hello")
	tbl.Set(k, Nil)

	found := tbl.FindString("hello", HashFNV1a("hello"))
	assert.Same(t, k, found)

	assert.Nil(t, tbl.FindString("nope", HashFNV1a("nope")))
}

func TestTableGrowPreservesEntries(t *testing.T) {
	tbl := NewTable()
	keys := make([]*String, 0, 64)
	for i := 0; i < 64; i++ {
		k := internKey(fmt.Sprintf("key-%d", i))
		keys = append(keys, k)
		tbl.Set(k, Number(float64(i)))
	}

	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.Number)
	}
	assert.Equal(t, 64, tbl.Len())
}

func TestTableCopyInto(t *testing.T) {
	src := NewTable()
	src.Set(internKey("a"), Number(1))
	src.Set(internKey("b"), Number(2))

	dst := NewTable()
	src.CopyInto(dst)

	v, ok := dst.Get(internKey("a"))
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Number)
	assert.Equal(t, 2, dst.Len())
}
