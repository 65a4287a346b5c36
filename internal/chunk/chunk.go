// Package chunk implements the compiled instruction stream loxie's
// compiler emits and the VM executes (spec §6.3): a flat byte array,
// its constant pool, and a run-length line table for error reporting.
package chunk

import (
	"fmt"
	"strings"

	"github.com/kristofer/loxie/internal/value"
)

// Op is a single bytecode opcode.
type Op byte

// Opcode groups follow spec §6.3 verbatim: literals, globals, locals,
// upvalues, comparisons, arithmetic, I/O, control flow, calls and
// closures, classes, collections. Every *-16 opcode has a *-32 sibling
// taking a 3-byte little-endian operand instead of a 1-byte one, for
// pools or scopes that grow past 256 entries.
const (
	OpConst16 Op = iota
	OpConst32
	OpTrue
	OpFalse
	OpNil
	OpDup
	OpPop

	OpDefGlobal16
	OpDefGlobal32
	OpDefConst16
	OpDefConst32
	OpGetGlobal16
	OpGetGlobal32
	OpSetGlobal16
	OpSetGlobal32

	OpGetLocal16
	OpGetLocal32
	OpSetLocal16
	OpSetLocal32

	OpGetUpvalue16
	OpGetUpvalue32
	OpSetUpvalue16
	OpSetUpvalue32
	OpCloseUpvalue

	OpEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpNot

	OpPrint

	OpJump
	OpJumpIfFalse
	OpLoop
	OpBreak

	OpCall
	OpClosure16
	OpClosure32
	OpReturn

	OpClass16
	OpClass32
	OpGetProperty16
	OpGetProperty32
	OpSetProperty16
	OpSetProperty32
	OpMethod16
	OpMethod32
	OpInvoke16
	OpInvoke32
	OpInherit
	OpGetSuper16
	OpGetSuper32
	OpSuperInvoke16
	OpSuperInvoke32

	OpArray
	OpPushToArray
	OpTable
	OpPushToTable
	OpGetSubscript
	OpSetSubscript
	OpRange
)

var opNames = map[Op]string{
	OpConst16: "const-16", OpConst32: "const-32",
	OpTrue: "true", OpFalse: "false", OpNil: "nil", OpDup: "dup", OpPop: "pop",
	OpDefGlobal16: "def-global-16", OpDefGlobal32: "def-global-32",
	OpDefConst16: "def-const-16", OpDefConst32: "def-const-32",
	OpGetGlobal16: "get-global-16", OpGetGlobal32: "get-global-32",
	OpSetGlobal16: "set-global-16", OpSetGlobal32: "set-global-32",
	OpGetLocal16: "get-local-16", OpGetLocal32: "get-local-32",
	OpSetLocal16: "set-local-16", OpSetLocal32: "set-local-32",
	OpGetUpvalue16: "get-upvalue-16", OpGetUpvalue32: "get-upvalue-32",
	OpSetUpvalue16: "set-upvalue-16", OpSetUpvalue32: "set-upvalue-32",
	OpCloseUpvalue: "close-upvalue",
	OpEqual:        "equal", OpGreater: "greater", OpGreaterEqual: "greater-equal",
	OpLess: "less", OpLessEqual: "less-equal",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpNegate: "negate", OpNot: "not",
	OpPrint: "print",
	OpJump:  "jump", OpJumpIfFalse: "jump-if-false", OpLoop: "loop", OpBreak: "break",
	OpCall: "call", OpClosure16: "closure-16", OpClosure32: "closure-32", OpReturn: "return",
	OpClass16: "class-16", OpClass32: "class-32",
	OpGetProperty16: "get-property-16", OpGetProperty32: "get-property-32",
	OpSetProperty16: "set-property-16", OpSetProperty32: "set-property-32",
	OpMethod16: "method-16", OpMethod32: "method-32",
	OpInvoke16: "invoke-16", OpInvoke32: "invoke-32",
	OpInherit: "inherit",
	OpGetSuper16: "get-super-16", OpGetSuper32: "get-super-32",
	OpSuperInvoke16: "super-invoke-16", OpSuperInvoke32: "super-invoke-32",
	OpArray: "array", OpPushToArray: "push-to-array",
	OpTable: "table", OpPushToTable: "push-to-table",
	OpGetSubscript: "get-subscript", OpSetSubscript: "set-subscript",
	OpRange:        "range",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", byte(op))
}

// ConstIndexThreshold is the highest constant-pool index still
// addressable by the 1-byte short-form opcodes (original_source's
// UINT8_MAX). WriteConstant/EmitPoolOp pick the 32-bit long form
// once an index exceeds it.
const ConstIndexThreshold = 255

// LineStart is one run of the line table: the code offset at which a
// new source line begins.
type LineStart struct {
	Offset int
	Line   int
}

// Chunk is a compiled sequence of bytecode: the flat instruction
// stream, its constant pool, and a run-length-encoded line table
// (original_source/src/chunk.c).
type Chunk struct {
	Code      []byte
	Constants []value.Value
	lines     []LineStart
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends a raw byte at the given source line, growing the code
// array by doubling (seed 8) and recording a new LineStart only when
// the line changes from the previous byte (spec §6.4,
// original_source/src/chunk.c:chunkWrite).
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	if n := len(c.lines); n > 0 && c.lines[n-1].Line == line {
		return
	}
	c.lines = append(c.lines, LineStart{Offset: len(c.Code) - 1, Line: line})
}

// WriteU24 appends the 3-byte little-endian encoding of idx, as used
// by every *-32 opcode's operand.
func (c *Chunk) WriteU24(idx int, line int) {
	c.Write(byte(idx&0xFF), line)
	c.Write(byte((idx>>8)&0xFF), line)
	c.Write(byte((idx>>16)&0xFF), line)
}

// AddConstant appends v to the constant pool and returns its index,
// without emitting any load instruction.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// WriteConstant adds v to the pool and emits the short or long const
// opcode (whichever fits) at line, returning the pool index
// (original_source/src/chunk.c:chunkWriteConst).
func (c *Chunk) WriteConstant(v value.Value, line int) int {
	idx := c.AddConstant(v)
	c.EmitPoolOp(OpConst16, OpConst32, idx, line)
	return idx
}

// EmitPoolOp writes whichever of short/long fits idx, followed by the
// operand bytes. Every dual-encoded opcode group (globals, locals,
// upvalues, classes, properties, methods, super) funnels through this.
func (c *Chunk) EmitPoolOp(short, long Op, idx int, line int) {
	if idx > ConstIndexThreshold {
		c.Write(byte(long), line)
		c.WriteU24(idx, line)
		return
	}
	c.Write(byte(short), line)
	c.Write(byte(idx), line)
}

// EmitJump writes a jump opcode followed by a 2-byte placeholder
// operand and returns the offset of the first placeholder byte, for a
// later PatchJump call (spec §4.3.5's forward-patch pattern).
func (c *Chunk) EmitJump(op Op, line int) int {
	c.Write(byte(op), line)
	c.Write(0xFF, line)
	c.Write(0xFF, line)
	return len(c.Code) - 2
}

// PatchJump backfills the 2-byte big-endian operand at offset so the
// jump lands on the current end of the code array.
func (c *Chunk) PatchJump(offset int) {
	dist := len(c.Code) - offset - 2
	c.Code[offset] = byte((dist >> 8) & 0xFF)
	c.Code[offset+1] = byte(dist & 0xFF)
}

// EmitLoop writes a `loop` opcode whose 2-byte big-endian operand is
// the backward distance to loopStart.
func (c *Chunk) EmitLoop(loopStart int, line int) {
	c.Write(byte(OpLoop), line)
	dist := len(c.Code) - loopStart + 2
	c.Write(byte((dist>>8)&0xFF), line)
	c.Write(byte(dist&0xFF), line)
}

// PatchBreaks rewrites every OpBreak opcode within [bodyStart,
// len(Code)) into an OpJump, each followed by a 2-byte offset to the
// current end of the code (loop exit). This is the "treat break as a
// deferred forward jump" trick spec §4.3.5 calls for: break compiles
// to a placeholder opcode byte during body compilation (since the
// final exit offset isn't known yet), and the loop compiler patches
// every occurrence once the body is done.
//
// The scan walks the stream instruction-by-instruction via
// operandWidth, never byte-by-byte, so an operand that happens to
// equal OpBreak's byte value is always skipped rather than
// misidentified as a break.
func (c *Chunk) PatchBreaks(bodyStart int, line int) {
	i := bodyStart
	for i < len(c.Code) {
		op := Op(c.Code[i])
		width := c.operandWidth(i)
		if op == OpBreak {
			c.Code[i] = byte(OpJump)
			offset := i + 1
			dist := len(c.Code) - offset - 2
			c.Code[offset] = byte((dist >> 8) & 0xFF)
			c.Code[offset+1] = byte(dist & 0xFF)
		}
		i += 1 + width
	}
}

// operandWidth returns how many operand bytes follow the opcode at
// offset, so scans that must skip whole instructions (PatchBreaks, the
// disassembler) never misinterpret an operand byte as an opcode. Most
// opcodes have a fixed width (OpArray's is its 3-byte element count);
// OpClosure16/32's trailing upvalue descriptors are variable-length,
// so closures read their pool index and look up the function's
// upvalue count in the constant pool instead of returning a constant.
func (c *Chunk) operandWidth(offset int) int {
	op := Op(c.Code[offset])
	switch op {
	case OpClosure16:
		idx := int(c.Code[offset+1])
		return 1 + closureUpvalueBytes(c.Constants[idx])
	case OpClosure32:
		idx := readU24(c.Code[offset+1:])
		return 3 + closureUpvalueBytes(c.Constants[idx])
	case OpArray:
		return 3
	case OpConst32, OpDefGlobal32, OpDefConst32, OpGetGlobal32, OpSetGlobal32,
		OpGetLocal32, OpSetLocal32, OpGetUpvalue32, OpSetUpvalue32,
		OpClass32, OpGetProperty32, OpSetProperty32,
		OpMethod32, OpGetSuper32:
		return 3
	case OpInvoke32, OpSuperInvoke32:
		return 4 // pool index (3) + arg count (1)
	case OpConst16, OpDefGlobal16, OpDefConst16, OpGetGlobal16, OpSetGlobal16,
		OpGetLocal16, OpSetLocal16, OpGetUpvalue16, OpSetUpvalue16,
		OpClass16, OpGetProperty16, OpSetProperty16,
		OpMethod16, OpGetSuper16, OpCall:
		return 1
	case OpInvoke16, OpSuperInvoke16:
		return 2 // pool index (1) + arg count (1)
	case OpJump, OpJumpIfFalse, OpLoop, OpBreak:
		return 2
	default:
		return 0
	}
}

// closureUpvalueBytes is the trailing {is-local byte, 24-bit index}
// tail size the compiler emits after a closure opcode's pool index,
// one entry per upvalue the function captures (statements.go's
// function).
func closureUpvalueBytes(fnConst value.Value) int {
	fn := fnConst.Obj.(*value.Function)
	return len(fn.UpvalueDescs) * 4
}

// LineOf returns the source line that emitted the byte at offset, via
// binary search over the RLE table (original_source's chunkGetLine).
func (c *Chunk) LineOf(offset int) int {
	if len(c.lines) == 0 {
		return 0
	}
	lo, hi := 0, len(c.lines)-1
	for {
		mid := (lo + hi) / 2
		ls := c.lines[mid]
		if offset < ls.Offset {
			hi = mid - 1
			continue
		}
		if mid == len(c.lines)-1 || offset < c.lines[mid+1].Offset {
			return ls.Line
		}
		lo = mid + 1
	}
}

// Disassemble renders every instruction in the chunk as text, for the
// debug-only CLI surface (spec C9); name labels the chunk (function
// name, or "<script>").
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = c.disassembleInstruction(&b, offset)
	}
	return b.String()
}

func (c *Chunk) disassembleInstruction(b *strings.Builder, offset int) int {
	fmt.Fprintf(b, "%04d ", offset)
	line := c.LineOf(offset)
	if offset > 0 && line == c.LineOf(offset-1) {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(b, "%4d ", line)
	}

	op := Op(c.Code[offset])
	width := c.operandWidth(offset)

	switch {
	case op == OpConst16 || op == OpDefGlobal16 || op == OpDefConst16 ||
		op == OpGetGlobal16 || op == OpSetGlobal16 || op == OpClass16 ||
		op == OpGetProperty16 || op == OpSetProperty16 || op == OpMethod16 ||
		op == OpGetSuper16:
		idx := int(c.Code[offset+1])
		fmt.Fprintf(b, "%-18s %4d '%s'\n", op, idx, c.constString(idx))
	case op == OpConst32 || op == OpDefGlobal32 || op == OpDefConst32 ||
		op == OpGetGlobal32 || op == OpSetGlobal32 || op == OpClass32 ||
		op == OpGetProperty32 || op == OpSetProperty32 || op == OpMethod32 ||
		op == OpGetSuper32:
		idx := readU24(c.Code[offset+1:])
		fmt.Fprintf(b, "%-18s %4d '%s'\n", op, idx, c.constString(idx))
	case op == OpGetLocal16 || op == OpSetLocal16 || op == OpGetUpvalue16 || op == OpSetUpvalue16 || op == OpCall:
		fmt.Fprintf(b, "%-18s %4d\n", op, c.Code[offset+1])
	case op == OpGetLocal32 || op == OpSetLocal32 || op == OpGetUpvalue32 || op == OpSetUpvalue32:
		fmt.Fprintf(b, "%-18s %4d\n", op, readU24(c.Code[offset+1:]))
	case op == OpJump || op == OpJumpIfFalse || op == OpBreak:
		dist := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		fmt.Fprintf(b, "%-18s %4d -> %d\n", op, offset, offset+3+dist)
	case op == OpLoop:
		dist := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		fmt.Fprintf(b, "%-18s %4d -> %d\n", op, offset, offset+3-dist)
	case op == OpClosure16:
		idx := int(c.Code[offset+1])
		fmt.Fprintf(b, "%-18s %4d '%s'\n", op, idx, c.constString(idx))
		c.disassembleUpvalues(b, c.Constants[idx], offset+2)
	case op == OpClosure32:
		idx := readU24(c.Code[offset+1:])
		fmt.Fprintf(b, "%-18s %4d '%s'\n", op, idx, c.constString(idx))
		c.disassembleUpvalues(b, c.Constants[idx], offset+4)
	case op == OpInvoke16 || op == OpSuperInvoke16:
		idx := int(c.Code[offset+1])
		argc := c.Code[offset+2]
		fmt.Fprintf(b, "%-18s (%d args) %4d '%s'\n", op, argc, idx, c.constString(idx))
	case op == OpInvoke32 || op == OpSuperInvoke32:
		idx := readU24(c.Code[offset+1:])
		argc := c.Code[offset+4]
		fmt.Fprintf(b, "%-18s (%d args) %4d '%s'\n", op, argc, idx, c.constString(idx))
	case op == OpArray:
		fmt.Fprintf(b, "%-18s %4d\n", op, readU24(c.Code[offset+1:]))
	default:
		fmt.Fprintf(b, "%s\n", op)
	}

	return offset + 1 + width
}

// disassembleUpvalues prints one line per {is-local, index} pair
// trailing a closure opcode, mirroring clox's disassembler.
func (c *Chunk) disassembleUpvalues(b *strings.Builder, fnConst value.Value, tailStart int) {
	fn := fnConst.Obj.(*value.Function)
	pos := tailStart
	for _, uv := range fn.UpvalueDescs {
		kind := "upvalue"
		if uv.IsLocal {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", pos, kind, uv.Index)
		pos += 4
	}
}

func (c *Chunk) constString(idx int) string {
	if idx < 0 || idx >= len(c.Constants) {
		return "?"
	}
	return value.Print(c.Constants[idx])
}

func readU24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}
