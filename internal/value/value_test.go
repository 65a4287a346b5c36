package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFalsy(t *testing.T) {
	assert.True(t, Nil.IsFalsy())
	assert.True(t, Bool(false).IsFalsy())
	assert.False(t, Bool(true).IsFalsy())
	assert.False(t, Number(0).IsFalsy())
	assert.False(t, Obj(NewStringRaw("", 0)).IsFalsy())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Number(2)))
	assert.True(t, Equal(Nil, Nil))
	assert.False(t, Equal(Nil, Bool(false)))
	assert.True(t, Equal(Bool(true), Bool(true)))

	s1 := NewStringRaw("hi", HashFNV1a("hi"))
	s2 := NewStringRaw("hi", HashFNV1a("hi"))
	assert.True(t, Equal(Obj(s1), Obj(s1)))
	assert.False(t, Equal(Obj(s1), Obj(s2)), "equal-by-value strings that aren't interned to the same pointer must not compare equal")
}

func TestPrintNumbers(t *testing.T) {
	assert.Equal(t, "3", Print(Number(3)))
	assert.Equal(t, "3.5", Print(Number(3.5)))
	assert.Equal(t, "-2", Print(Number(-2)))
	assert.Equal(t, "nil", Print(Nil))
	assert.Equal(t, "true", Print(Bool(true)))
	assert.Equal(t, "false", Print(Bool(false)))
}

func TestPrintCompoundObjects(t *testing.T) {
	arr := NewArray([]Value{Number(1), Number(2), Obj(NewStringRaw("x", HashFNV1a("x")))})
	assert.Equal(t, "[1, 2, x]", Print(Obj(arr)))

	r := NewRange(1, 5)
	assert.Equal(t, "1..5", Print(Obj(r)))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "number", TypeName(Number(1)))
	assert.Equal(t, "nil", TypeName(Nil))
	assert.Equal(t, "bool", TypeName(Bool(true)))
	assert.Equal(t, "string", TypeName(Obj(NewStringRaw("x", 0))))
	assert.Equal(t, "array", TypeName(Obj(NewArray(nil))))
}

func TestRangeNormalizesAscending(t *testing.T) {
	r := NewRange(5, 1)
	assert.Equal(t, 1.0, r.Start)
	assert.Equal(t, 5.0, r.End)
}
