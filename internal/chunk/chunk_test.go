package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxie/internal/value"
)

func TestWriteRecordsLineRuns(t *testing.T) {
	c := New()
	c.Write(byte(OpNil), 1)
	c.Write(byte(OpPop), 1)
	c.Write(byte(OpNil), 2)

	assert.Equal(t, 1, c.LineOf(0))
	assert.Equal(t, 1, c.LineOf(1))
	assert.Equal(t, 2, c.LineOf(2))
}

func TestEmitPoolOpPicksShortForm(t *testing.T) {
	c := New()
	c.EmitPoolOp(OpGetGlobal16, OpGetGlobal32, 3, 1)
	require.Len(t, c.Code, 2)
	assert.Equal(t, byte(OpGetGlobal16), c.Code[0])
	assert.Equal(t, byte(3), c.Code[1])
}

func TestEmitPoolOpPicksLongFormPastThreshold(t *testing.T) {
	c := New()
	idx := ConstIndexThreshold + 1
	c.EmitPoolOp(OpGetGlobal16, OpGetGlobal32, idx, 1)
	require.Len(t, c.Code, 4)
	assert.Equal(t, byte(OpGetGlobal32), c.Code[0])
	assert.Equal(t, idx, readU24(c.Code[1:]))
}

func TestJumpPatching(t *testing.T) {
	c := New()
	offset := c.EmitJump(OpJumpIfFalse, 1)
	c.Write(byte(OpNil), 1)
	c.Write(byte(OpPop), 1)
	c.PatchJump(offset)

	dist := int(c.Code[offset])<<8 | int(c.Code[offset+1])
	assert.Equal(t, 2, dist)
}

func TestLoopPatchingJumpsBackward(t *testing.T) {
	c := New()
	loopStart := len(c.Code)
	c.Write(byte(OpNil), 1)
	c.EmitLoop(loopStart, 1)

	loopOffset := 1
	dist := int(c.Code[loopOffset+1])<<8 | int(c.Code[loopOffset+2])
	assert.Equal(t, len(c.Code)-loopStart, dist)
}

func TestPatchBreaksRewritesOnlyWithinBody(t *testing.T) {
	c := New()
	c.Write(byte(OpNil), 1)
	outsideOffset := c.EmitJump(OpBreak, 1)
	bodyStart := len(c.Code)
	breakOffset := c.EmitJump(OpBreak, 1)
	c.Write(byte(OpPop), 1)

	c.PatchBreaks(bodyStart, 1)

	assert.Equal(t, byte(OpBreak), c.Code[outsideOffset-1], "OpBreak before bodyStart must be left alone")
	assert.Equal(t, byte(OpJump), c.Code[breakOffset-1], "OpBreak byte must be rewritten to OpJump")
	dist := int(c.Code[breakOffset])<<8 | int(c.Code[breakOffset+1])
	assert.Equal(t, len(c.Code)-breakOffset-2, dist)
}

func TestWriteConstantRoundTrips(t *testing.T) {
	c := New()
	idx := c.WriteConstant(value.Number(7), 1)
	assert.Equal(t, 7.0, c.Constants[idx].Number)
	assert.Equal(t, byte(OpConst16), c.Code[0])
	assert.Equal(t, byte(idx), c.Code[1])
}

func TestPatchBreaksSkipsClosureUpvalueTail(t *testing.T) {
	// A closure capturing upvalues emitted inside a loop/switch body,
	// immediately followed by the body's implicit OpBreak: PatchBreaks
	// must walk past the {is-local, 24-bit index} tail the compiler
	// writes after the closure's pool index rather than mistaking one of
	// those bytes for OpBreak (or mis-locating the real one).
	c := New()
	c.Write(byte(OpNil), 1)
	bodyStart := len(c.Code)

	fn := value.NewFunction()
	fn.UpvalueDescs = []value.UpvalueDescriptor{{Index: 0, IsLocal: true}}
	idx := c.AddConstant(value.Obj(fn))
	c.EmitPoolOp(OpClosure16, OpClosure32, idx, 1)
	c.Write(1, 1) // is-local
	c.WriteU24(0, 1)

	breakOffset := c.EmitJump(OpBreak, 1)
	c.Write(byte(OpPop), 1)

	c.PatchBreaks(bodyStart, 1)

	assert.Equal(t, byte(OpJump), c.Code[breakOffset-1], "OpBreak byte must be rewritten to OpJump")
	dist := int(c.Code[breakOffset])<<8 | int(c.Code[breakOffset+1])
	assert.Equal(t, len(c.Code)-breakOffset-2, dist)
}

func TestDisassembleDoesNotPanic(t *testing.T) {
	c := New()
	c.WriteConstant(value.Number(1), 1)
	c.Write(byte(OpReturn), 1)
	out := c.Disassemble("<script>")
	assert.Contains(t, out, "<script>")
	assert.Contains(t, out, "const-16")
}
