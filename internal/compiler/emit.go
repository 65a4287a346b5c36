package compiler

import (
	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/value"
)

func (c *Compiler) emitByte(b byte) {
	c.chk().Write(b, c.previous.Line)
}

func (c *Compiler) emitOp(op chunk.Op) {
	c.emitByte(byte(op))
}

func (c *Compiler) emitOps(a, b chunk.Op) {
	c.emitOp(a)
	c.emitOp(b)
}

// emitReturn emits the implicit return: a constructor returns its
// receiver (slot 0), every other function returns nil.
func (c *Compiler) emitReturn() {
	if c.fn.kind == FuncConstructor {
		c.emitPoolOp(chunk.OpGetLocal16, chunk.OpGetLocal32, 0)
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// emitConstant adds v to the pool and emits const-16/32, tracking the
// one-slot stack growth.
func (c *Compiler) emitConstant(v value.Value) {
	c.chk().WriteConstant(v, c.previous.Line)
	c.growStack(1)
}

// emitPoolOp emits whichever of short/long fits idx; callers must
// separately call growStack/shrinkStack for the opcode's own stack
// effect since the pool-index group covers many different opcodes
// with different effects (load vs. store, etc).
func (c *Compiler) emitPoolOp(short, long chunk.Op, idx int) {
	c.chk().EmitPoolOp(short, long, idx, c.previous.Line)
}

// growStack/shrinkStack maintain the running compile-time stack
// height estimate (spec §4.3.5): conservative over-estimation is
// fine, under-estimation is a bug, so every opcode emitter must call
// one of these for its net effect.
func (c *Compiler) growStack(n int) {
	c.fn.curStack += n
	if c.fn.curStack > c.fn.maxStack {
		c.fn.maxStack = c.fn.curStack
	}
}

func (c *Compiler) shrinkStack(n int) {
	c.fn.curStack -= n
}

// identifierConstant interns name and adds it to the current
// function's constant pool, returning its index.
func (c *Compiler) identifierConstant(name string) int {
	return c.chk().AddConstant(value.Obj(c.gc.AllocateString(name)))
}
