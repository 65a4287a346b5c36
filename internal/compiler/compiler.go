// Package compiler implements loxie's single-pass Pratt-style
// compiler (spec §4.3): it scans source directly into bytecode with
// no intermediate AST, resolving locals/upvalues/globals as it goes
// and patching forward jumps once their targets are known.
package compiler

import (
	"fmt"
	"os"

	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/gc"
	"github.com/kristofer/loxie/internal/scanner"
	"github.com/kristofer/loxie/internal/token"
	"github.com/kristofer/loxie/internal/value"
	"github.com/kristofer/loxie/internal/vm"
)

// FuncKind distinguishes the top-level script, plain functions,
// methods and constructors. Every kind reserves call-frame slot 0, but
// only methods and constructors name it `this`; only the script
// rejects `return`, and only a constructor rejects returning a value
// and implicitly returns its receiver instead of nil.
type FuncKind int

const (
	FuncScript FuncKind = iota
	FuncFunction
	FuncMethod
	FuncConstructor
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

// classState tracks the lexically enclosing class while compiling its
// methods, so `this` and `super` resolve correctly.
type classState struct {
	enclosing *classState
	name      string
	hasSuper  bool
}

// funcState is one nested compiler context; child links to enclosing
// via Pratt-table §4.3's "stack of nested Compiler contexts... maintained
// by link".
type funcState struct {
	enclosing *funcState
	fn        *value.Function
	chunk     *chunk.Chunk
	kind      FuncKind

	locals    []local
	upvalues  []value.UpvalueDescriptor
	scopeDepth int

	// maxStack is the compile-time running high-water mark of spec
	// §4.3.5, used by the VM to pre-size its operand stack.
	curStack int
	maxStack int
}

// loopState tracks the innermost loop being compiled, for break's
// deferred-patch scan and continue's backward jump target.
type loopState struct {
	enclosing     *loopState
	start         int // continue target
	scopeDepth    int
	bodyStart     int // where PatchBreaks begins scanning
}

// Compiler drives the whole single-pass compile of one source unit.
// It shares a Globals table and GC with the VM instance it is
// compiling for (spec §4.3.2 step 3 resolves globals against the same
// table the VM reads at run time).
type Compiler struct {
	scanner *scanner.Scanner
	globals *vm.Globals
	gc      *gc.Collector

	previous token.Token
	current  token.Token

	hadError bool
	panicked bool

	fn    *funcState
	class *classState
	loop  *loopState

	// lastMaxStack records the top-level script's high-water mark
	// after Compile pops its funcState back to nil.
	lastMaxStack int

	// stderr receives diagnostics; defaults to os.Stderr, following
	// this codebase's Options-struct-at-construction idiom rather than
	// a config file (see DESIGN.md).
	stderr *os.File
}

// New creates a compiler sharing globals and gc with a VM.
func New(globals *vm.Globals, collector *gc.Collector) *Compiler {
	c := &Compiler{globals: globals, gc: collector, stderr: os.Stderr}
	collector.AddRoot(c)
	return c
}

// MarkRoots implements gc.RootProvider (spec §6.6): every live
// Function in the enclosing chain, plus its name, must survive a
// collection triggered mid-compile.
func (c *Compiler) MarkRoots(gcc *gc.Collector) {
	for fs := c.fn; fs != nil; fs = fs.enclosing {
		gcc.MarkObject(fs.fn)
	}
}

// Compile compiles source into a top-level script Function, or
// returns an error if any compile-time diagnostic was raised. The
// returned Function's Chunk is a *chunk.Chunk and its Arity is 0.
func (c *Compiler) Compile(source string) (*value.Function, error) {
	c.scanner = scanner.New(source)
	c.hadError = false
	c.panicked = false

	c.pushFunc(FuncScript, "")
	c.advance()

	for !c.match(token.EOF) {
		c.declaration()
	}

	c.lastMaxStack = c.fn.maxStack
	fn := c.popFunc()
	if c.hadError {
		return nil, errCompile
	}
	return fn, nil
}

// MaxStackHeight returns the most recently compiled script's computed
// operand-stack high-water mark (spec §4.3.5), for the embedder to
// pass to vm.VM.EnsureStack.
func (c *Compiler) MaxStackHeight() int { return c.lastMaxStack }

func (c *Compiler) pushFunc(kind FuncKind, name string) {
	fn := c.gc.AllocateFunction()
	fn.Chunk = chunk.New()
	if name != "" {
		fn.Name = c.gc.AllocateString(name)
	}

	fs := &funcState{enclosing: c.fn, fn: fn, chunk: fn.Chunk.(*chunk.Chunk), kind: kind}

	// Slot 0 is reserved: the receiver in methods/constructors, unused
	// (but still present) in script/plain-function frames (spec
	// §4.3.4).
	slotName := ""
	if kind == FuncMethod || kind == FuncConstructor {
		slotName = "this"
	}
	fs.locals = append(fs.locals, local{name: slotName, depth: 0})

	c.fn = fs
}

func (c *Compiler) popFunc() *value.Function {
	c.emitReturn()
	fn := c.fn.fn
	fn.UpvalueDescs = c.fn.upvalues
	c.fn = c.fn.enclosing
	return fn
}

func (c *Compiler) chk() *chunk.Chunk { return c.fn.chunk }

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.NextToken()
		if c.current.Kind != token.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *Compiler) check(k token.Kind) bool { return c.current.Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) {
	if c.current.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAt(tok token.Token, msg string) {
	if c.panicked {
		return
	}
	c.panicked = true
	c.hadError = true
	where := ""
	switch tok.Kind {
	case token.EOF:
		where = " at end"
	case token.Error:
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(c.stderr, "[line %d] Error%s: %s\n", tok.Line, where, msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

// synchronize discards tokens until a likely statement boundary, so
// one bad statement doesn't cascade into spurious errors for the rest
// of the file (spec §4.3.6).
func (c *Compiler) synchronize() {
	c.panicked = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.Semicolon {
			return
		}
		switch c.current.Kind {
		case token.Class, token.Func, token.Let, token.Const,
			token.For, token.If, token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}
