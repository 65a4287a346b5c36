package compiler

import (
	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/token"
	"github.com/kristofer/loxie/internal/value"
)

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

// endScope pops every local declared in the scope just exited,
// closing it as an upvalue first if it was ever captured (spec
// §4.4.4).
func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	for len(c.fn.locals) > 0 && c.fn.locals[len(c.fn.locals)-1].depth > c.fn.scopeDepth {
		last := c.fn.locals[len(c.fn.locals)-1]
		if last.isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.shrinkStack(1)
		c.fn.locals = c.fn.locals[:len(c.fn.locals)-1]
	}
}

// declareLocal adds name as a new local in the current scope,
// rejecting a duplicate name already declared at the same depth
// (spec §4.3.2).
func (c *Compiler) declareLocal(name string) {
	for i := len(c.fn.locals) - 1; i >= 0; i-- {
		l := c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if l.name == name {
			c.error("a variable with this name is already declared in this scope")
		}
	}
	c.fn.locals = append(c.fn.locals, local{name: name, depth: -1})
}

// markInitialized sets the most recently declared local's depth to
// the current scope, making it resolvable by later reads. A no-op at
// the top level, where there is no local to mark (globals are defined
// by defineVariable).
func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[len(c.fn.locals)-1].depth = c.fn.scopeDepth
}

// resolveLocal searches fs.locals newest-to-oldest for name (spec
// §4.3.2 step 1).
func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return -1, false
}

// resolveUpvalue recursively resolves name against fs's enclosing
// chain, adding an upvalue descriptor at every level it threads
// through (spec §4.3.2 step 2).
func (c *Compiler) resolveUpvalue(fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return -1, false
	}
	if idx, ok := resolveLocal(fs.enclosing, name); ok {
		if fs.enclosing.locals[idx].depth == -1 {
			c.error("cannot read local variable in its own initializer")
		}
		fs.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(fs, idx, true), true
	}
	if idx, ok := c.resolveUpvalue(fs.enclosing, name); ok {
		return c.addUpvalue(fs, idx, false), true
	}
	return -1, false
}

func (c *Compiler) addUpvalue(fs *funcState, index int, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fs.upvalues = append(fs.upvalues, value.UpvalueDescriptor{Index: index, IsLocal: isLocal})
	return len(fs.upvalues) - 1
}

// declareVariable registers the identifier just consumed (c.previous)
// as a local if inside a scope; globals are resolved to a slot by
// parseVariable/namedVariable instead, since they're indexed by name
// rather than declaration order.
func (c *Compiler) declareVariable() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.declareLocal(c.previous.Lexeme)
}

// parseVariable consumes an identifier, declares it, and (for
// globals) returns the global slot index defineVariable will need;
// for locals the return value is unused.
func (c *Compiler) parseVariable(msg string) int {
	c.consume(token.Identifier, msg)
	c.declareVariable()
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.globals.Resolve(c.gc.AllocateString(c.previous.Lexeme))
}

// defineVariable emits the global definition opcode (skipped for
// locals, which only need their slot marked initialized since their
// value is already sitting on the stack where it belongs).
func (c *Compiler) defineVariable(globalIdx int, isConst bool) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	short, long := chunk.OpDefGlobal16, chunk.OpDefGlobal32
	if isConst {
		short, long = chunk.OpDefConst16, chunk.OpDefConst32
	}
	c.emitPoolOp(short, long, globalIdx)
	c.shrinkStack(1)
}
