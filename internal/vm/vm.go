// Package vm implements loxie's register-less stack machine (spec
// §4.4): a dispatch loop over call frames, a Globals table shared with
// the compiler, and a GC-managed heap.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/gc"
	"github.com/kristofer/loxie/internal/value"
)

// FramesMax bounds call depth (spec §4.4.1).
const FramesMax = 64

// StackMax is the initial operand stack capacity; the compiler's
// per-function high-water mark (spec §4.3.5) can request more via
// EnsureStack.
const StackMax = 1024

// frame is one active call: its closure, instruction pointer, and the
// base stack slot at which its locals begin (spec §4.4.1).
type frame struct {
	closure *value.Closure
	ip      int
	base    int
}

// Options configures a VM at construction, following this codebase's
// constructor-with-options-struct idiom (see DESIGN.md) rather than
// pulling in a configuration-file library nothing in the example pack
// provides.
type Options struct {
	// Stdout receives `print` output; defaults to os.Stdout when nil.
	Stdout io.Writer
	// GCLog, when set, receives one line of collector diagnostics per
	// collection (see gc.Collector.Log).
	GCLog func(format string, args ...any)
}

// VM executes compiled closures against a shared Globals table and GC
// heap (spec §4.4.1).
type VM struct {
	frames     [FramesMax]frame
	frameCount int

	stack    []value.Value
	stackTop int

	Globals *Globals
	GC      *gc.Collector

	openUpvalues *value.Upvalue // descending-address list, spec §4.4.4

	stdout io.Writer
}

// New constructs a VM with its own GC collector and global table.
// Natives should be registered on the returned VM's Globals before the
// first Interpret call.
func New(opts Options) *VM {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	v := &VM{
		stack:   make([]value.Value, StackMax),
		Globals: NewGlobals(),
		GC:      gc.New(),
		stdout:  stdout,
	}
	if opts.GCLog != nil {
		v.GC.Log = opts.GCLog
	}
	v.GC.AddRoot(v)
	return v
}

// EnsureStack grows the operand stack to at least n slots, called once
// by the embedder after compiling a script with the compiler's
// computed high-water mark (spec §4.3.5).
func (v *VM) EnsureStack(n int) {
	if n > len(v.stack) {
		grown := make([]value.Value, n)
		copy(grown, v.stack)
		v.stack = grown
	}
}

func (v *VM) push(val value.Value) {
	v.stack[v.stackTop] = val
	v.stackTop++
}

func (v *VM) pop() value.Value {
	v.stackTop--
	return v.stack[v.stackTop]
}

func (v *VM) peek(dist int) value.Value {
	return v.stack[v.stackTop-1-dist]
}

// MarkRoots implements gc.RootProvider: every live stack slot, every
// active frame's closure, every open upvalue, and the globals table
// (spec §4.6.1).
func (v *VM) MarkRoots(c *gc.Collector) {
	for i := 0; i < v.stackTop; i++ {
		c.MarkValue(v.stack[i])
	}
	for i := 0; i < v.frameCount; i++ {
		c.MarkObject(v.frames[i].closure)
	}
	for uv := v.openUpvalues; uv != nil; uv = uv.Next {
		c.MarkObject(uv)
	}
	v.Globals.Names.EachEntry(func(key *value.String, _ value.Value) {
		c.MarkObject(key)
	})
	for _, gv := range v.Globals.Values {
		c.MarkValue(gv)
	}
}

// Interpret compiles nothing itself (see the compiler package); it
// runs a closure already wrapping a freshly compiled top-level
// Function, per spec §6.1's "wrap in a closure, push, call with 0
// args, run to completion".
func (v *VM) Interpret(script *value.Closure) error {
	v.push(value.Obj(script))
	if err := v.call(script, 0); err != nil {
		return err
	}
	return v.run()
}

func (v *VM) currentFrame() *frame { return &v.frames[v.frameCount-1] }

func (v *VM) currentChunk() *chunk.Chunk {
	fr := v.currentFrame()
	return fr.closure.Function.Chunk.(*chunk.Chunk)
}

func (v *VM) readByte() byte {
	fr := v.currentFrame()
	b := v.currentChunk().Code[fr.ip]
	fr.ip++
	return b
}

func (v *VM) readU24() int {
	fr := v.currentFrame()
	code := v.currentChunk().Code
	n := int(code[fr.ip]) | int(code[fr.ip+1])<<8 | int(code[fr.ip+2])<<16
	fr.ip += 3
	return n
}

func (v *VM) readJumpOffset() int {
	fr := v.currentFrame()
	code := v.currentChunk().Code
	n := int(code[fr.ip])<<8 | int(code[fr.ip+1])
	fr.ip += 2
	return n
}

// readPoolIndex reads the 1-byte or 3-byte index following short/long
// opcode pairs, given the opcode just consumed.
func (v *VM) readPoolIndex(op chunk.Op, short chunk.Op) int {
	if op == short {
		return int(v.readByte())
	}
	return v.readU24()
}

func (v *VM) constant(idx int) value.Value {
	return v.currentChunk().Constants[idx]
}

func (v *VM) readString(idx int) *value.String {
	return v.constant(idx).String()
}

func isFalsy(val value.Value) bool { return val.IsFalsy() }

// run is the main dispatch loop (spec §4.4.2): one giant switch over
// the opcode stream of the currently active frame.
func (v *VM) run() error {
	for {
		op := chunk.Op(v.readByte())

		switch op {
		case chunk.OpConst16, chunk.OpConst32:
			idx := v.readPoolIndex(op, chunk.OpConst16)
			v.push(v.constant(idx))

		case chunk.OpTrue:
			v.push(value.Bool(true))
		case chunk.OpFalse:
			v.push(value.Bool(false))
		case chunk.OpNil:
			v.push(value.Nil)
		case chunk.OpDup:
			v.push(v.peek(0))
		case chunk.OpPop:
			v.pop()

		case chunk.OpDefGlobal16, chunk.OpDefGlobal32:
			idx := v.readPoolIndex(op, chunk.OpDefGlobal16)
			v.Globals.Define(idx, v.pop(), false)
		case chunk.OpDefConst16, chunk.OpDefConst32:
			idx := v.readPoolIndex(op, chunk.OpDefConst16)
			v.Globals.Define(idx, v.pop(), true)
		case chunk.OpGetGlobal16, chunk.OpGetGlobal32:
			idx := v.readPoolIndex(op, chunk.OpGetGlobal16)
			val, ok := v.Globals.Get(idx)
			if !ok {
				return v.runtimeError(errUndefinedGlobalSlot)
			}
			v.push(val)
		case chunk.OpSetGlobal16, chunk.OpSetGlobal32:
			idx := v.readPoolIndex(op, chunk.OpSetGlobal16)
			if err := v.Globals.Set(idx, v.peek(0)); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpGetLocal16, chunk.OpGetLocal32:
			slot := v.readPoolIndex(op, chunk.OpGetLocal16)
			v.push(v.stack[v.currentFrame().base+slot])
		case chunk.OpSetLocal16, chunk.OpSetLocal32:
			slot := v.readPoolIndex(op, chunk.OpSetLocal16)
			v.stack[v.currentFrame().base+slot] = v.peek(0)

		case chunk.OpGetUpvalue16, chunk.OpGetUpvalue32:
			slot := v.readPoolIndex(op, chunk.OpGetUpvalue16)
			v.push(v.currentFrame().closure.Upvalues[slot].Get())
		case chunk.OpSetUpvalue16, chunk.OpSetUpvalue32:
			slot := v.readPoolIndex(op, chunk.OpSetUpvalue16)
			v.currentFrame().closure.Upvalues[slot].Set(v.peek(0))
		case chunk.OpCloseUpvalue:
			v.closeUpvalues(v.stackTop - 1)
			v.pop()

		case chunk.OpEqual:
			b, a := v.pop(), v.pop()
			v.push(value.Bool(value.Equal(a, b)))
		case chunk.OpGreater, chunk.OpGreaterEqual, chunk.OpLess, chunk.OpLessEqual:
			if err := v.binaryCompare(op); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpAdd:
			if err := v.add(); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpSub, chunk.OpMul, chunk.OpDiv, chunk.OpMod:
			if err := v.binaryArith(op); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpNegate:
			if !v.peek(0).IsNumber() {
				return v.runtimeError(errOperandMustBeNumber)
			}
			n := v.pop().Number
			v.push(value.Number(-n))
		case chunk.OpNot:
			v.push(value.Bool(isFalsy(v.pop())))

		case chunk.OpPrint:
			fmt.Fprintln(v.stdout, value.Print(v.pop()))

		case chunk.OpJump:
			dist := v.readJumpOffset()
			v.currentFrame().ip += dist
		case chunk.OpJumpIfFalse:
			dist := v.readJumpOffset()
			if isFalsy(v.peek(0)) {
				v.currentFrame().ip += dist
			}
		case chunk.OpLoop:
			dist := v.readJumpOffset()
			v.currentFrame().ip -= dist
		case chunk.OpBreak:
			// Every `break` byte is rewritten to `jump` by the
			// compiler's PatchBreaks pass before the VM ever sees it;
			// reaching this case means a break escaped an enclosing
			// loop's patch scan, which is a compiler bug.
			return v.runtimeError(errors.New("unpatched break outside loop"))

		case chunk.OpCall:
			argc := int(v.readByte())
			if err := v.callValue(v.peek(argc), argc); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpClosure16, chunk.OpClosure32:
			idx := v.readPoolIndex(op, chunk.OpClosure16)
			if err := v.makeClosure(idx); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpReturn:
			result := v.pop()
			base := v.currentFrame().base
			v.closeUpvalues(base)
			v.frameCount--
			if v.frameCount == 0 {
				v.pop()
				return nil
			}
			v.stackTop = base
			v.push(result)

		case chunk.OpClass16, chunk.OpClass32:
			idx := v.readPoolIndex(op, chunk.OpClass16)
			name := v.readString(idx)
			v.push(value.Obj(v.GC.AllocateClass(name)))
		case chunk.OpGetProperty16, chunk.OpGetProperty32:
			idx := v.readPoolIndex(op, chunk.OpGetProperty16)
			if err := v.getProperty(v.readString(idx)); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpSetProperty16, chunk.OpSetProperty32:
			idx := v.readPoolIndex(op, chunk.OpSetProperty16)
			if err := v.setProperty(v.readString(idx)); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpMethod16, chunk.OpMethod32:
			idx := v.readPoolIndex(op, chunk.OpMethod16)
			v.defineMethod(v.readString(idx))
		case chunk.OpInvoke16, chunk.OpInvoke32:
			idx := v.readPoolIndex(op, chunk.OpInvoke16)
			argc := int(v.readByte())
			if err := v.invoke(v.readString(idx), argc); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpInherit:
			if err := v.inherit(); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpGetSuper16, chunk.OpGetSuper32:
			idx := v.readPoolIndex(op, chunk.OpGetSuper16)
			if err := v.getSuper(v.readString(idx)); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpSuperInvoke16, chunk.OpSuperInvoke32:
			idx := v.readPoolIndex(op, chunk.OpSuperInvoke16)
			argc := int(v.readByte())
			if err := v.superInvoke(v.readString(idx), argc); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpArray:
			n := v.readU24()
			elems := make([]value.Value, n)
			copy(elems, v.stack[v.stackTop-n:v.stackTop])
			v.stackTop -= n
			v.push(value.Obj(v.GC.AllocateArray(elems)))
		case chunk.OpPushToArray:
			elem := v.pop()
			arr := v.peek(0).Obj.(*value.Array)
			arr.Elements = append(arr.Elements, elem)
		case chunk.OpTable:
			v.push(value.Obj(v.GC.AllocateTable()))
		case chunk.OpPushToTable:
			val := v.pop()
			key := v.pop()
			if !key.IsObject() || key.String() == nil {
				return v.runtimeError(errNonStringTableKey)
			}
			tbl := v.peek(0).Obj.(*value.Table)
			tbl.Set(key.String(), val)
		case chunk.OpGetSubscript:
			if err := v.getSubscript(); err != nil {
				return v.runtimeError(err)
			}
		case chunk.OpSetSubscript:
			if err := v.setSubscript(); err != nil {
				return v.runtimeError(err)
			}

		case chunk.OpRange:
			if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
				return v.runtimeError(errOperandsMustBeNumber)
			}
			end := v.pop().Number
			start := v.pop().Number
			v.push(value.Obj(v.GC.AllocateRange(start, end)))

		default:
			return v.runtimeError(fmt.Errorf("unknown opcode %d", op))
		}
	}
}

func (v *VM) binaryCompare(op chunk.Op) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return errOperandsMustBeNumber
	}
	b := v.pop().Number
	a := v.pop().Number
	var result bool
	switch op {
	case chunk.OpGreater:
		result = a > b
	case chunk.OpGreaterEqual:
		result = a >= b
	case chunk.OpLess:
		result = a < b
	case chunk.OpLessEqual:
		result = a <= b
	}
	v.push(value.Bool(result))
	return nil
}

func (v *VM) binaryArith(op chunk.Op) error {
	if !v.peek(0).IsNumber() || !v.peek(1).IsNumber() {
		return errOperandsMustBeNumber
	}
	b := v.pop().Number
	a := v.pop().Number
	var result float64
	switch op {
	case chunk.OpSub:
		result = a - b
	case chunk.OpMul:
		result = a * b
	case chunk.OpDiv:
		result = a / b
	case chunk.OpMod:
		result = math.Mod(a, b)
	}
	v.push(value.Number(result))
	return nil
}

// add implements spec §4.4.5: string+string concatenates (producing a
// freshly interned string), number+number adds, anything else errors.
func (v *VM) add() error {
	bv, av := v.peek(0), v.peek(1)
	if as, bs := av.String(), bv.String(); as != nil && bs != nil {
		v.pop()
		v.pop()
		v.push(value.Obj(v.GC.AllocateString(as.Chars + bs.Chars)))
		return nil
	}
	if av.IsNumber() && bv.IsNumber() {
		v.pop()
		v.pop()
		v.push(value.Number(av.Number + bv.Number))
		return nil
	}
	return errors.New("operands must be two numbers or two strings")
}
