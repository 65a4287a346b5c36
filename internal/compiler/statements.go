package compiler

import (
	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/token"
	"github.com/kristofer/loxie/internal/value"
)

// declaration is the top-level production Compile loops over: a
// class/function/variable declaration, or any other statement.
// Panic-mode recovery (spec §4.3.6) runs after each one.
func (c *Compiler) declaration() {
	switch {
	case c.match(token.Class):
		c.classDeclaration()
	case c.match(token.Func):
		c.funcDeclaration()
	case c.match(token.Let):
		c.varDeclaration(false)
	case c.match(token.Const):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicked {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.Switch):
		c.switchStatement()
	case c.match(token.Break):
		c.breakStatement()
	case c.match(token.Continue):
		c.continueStatement()
	case c.match(token.Return):
		c.returnStatement()
	case c.match(token.LBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBrace, "expect '}' after block")
}

func (c *Compiler) varDeclaration(isConst bool) {
	globalIdx := c.parseVariable("expect variable name")

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
		c.growStack(1)
	}
	c.consume(token.Semicolon, "expect ';' after variable declaration")
	c.defineVariable(globalIdx, isConst)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "expect ';' after expression")
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "expect ';' after value")
	c.emitOp(chunk.OpPrint)
	c.shrinkStack(1)
}

func (c *Compiler) returnStatement() {
	if c.fn.kind == FuncScript {
		c.error("cannot return from top-level code")
	}
	if c.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	if c.fn.kind == FuncConstructor {
		c.error("cannot return a value from a constructor")
	}
	c.expression()
	c.consume(token.Semicolon, "expect ';' after return value")
	c.emitOp(chunk.OpReturn)
	c.shrinkStack(1)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LParen, "expect '(' after 'if'")
	c.expression()
	c.consume(token.RParen, "expect ')' after condition")

	thenJump := c.chk().EmitJump(chunk.OpJumpIfFalse, c.previous.Line)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
	c.statement()

	elseJump := c.chk().EmitJump(chunk.OpJump, c.previous.Line)
	c.chk().PatchJump(thenJump)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)

	if c.match(token.Else) {
		c.statement()
	}
	c.chk().PatchJump(elseJump)
}

// whileStatement follows spec §4.3.3's algorithm exactly: remember
// the loop start, forward jump-if-false, pop, body, backward loop,
// patch the forward jump, pop.
func (c *Compiler) whileStatement() {
	loopStart := len(c.chk().Code)
	c.loop = &loopState{enclosing: c.loop, start: loopStart, scopeDepth: c.fn.scopeDepth}

	c.consume(token.LParen, "expect '(' after 'while'")
	c.expression()
	c.consume(token.RParen, "expect ')' after condition")

	exitJump := c.chk().EmitJump(chunk.OpJumpIfFalse, c.previous.Line)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)

	c.loop.bodyStart = len(c.chk().Code)
	c.statement()

	c.chk().EmitLoop(loopStart, c.previous.Line)
	c.chk().PatchJump(exitJump)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)

	c.chk().PatchBreaks(c.loop.bodyStart, c.previous.Line)
	c.loop = c.loop.enclosing
}

// forStatement follows spec §4.3.3's algorithm: new scope, optional
// init, remember start, optional cond + exit jump, and (when there is
// an increment clause) the classic "jump over increment, loop back to
// condition from the increment, redirect start to the increment"
// trick so a plain backward `loop` at the bottom of the body always
// does the right thing whether or not there's an increment.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LParen, "expect '(' after 'for'")

	switch {
	case c.match(token.Semicolon):
	case c.match(token.Let):
		c.varDeclaration(false)
	case c.match(token.Const):
		c.varDeclaration(true)
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chk().Code)

	exitJump := -1
	if !c.check(token.Semicolon) {
		c.expression()
		exitJump = c.chk().EmitJump(chunk.OpJumpIfFalse, c.previous.Line)
		c.emitOp(chunk.OpPop)
		c.shrinkStack(1)
	}
	c.consume(token.Semicolon, "expect ';' after loop condition")

	if !c.check(token.RParen) {
		bodyJump := c.chk().EmitJump(chunk.OpJump, c.previous.Line)
		incrementStart := len(c.chk().Code)
		c.expression()
		c.emitOp(chunk.OpPop)
		c.shrinkStack(1)
		c.consume(token.RParen, "expect ')' after for clauses")

		c.chk().EmitLoop(loopStart, c.previous.Line)
		loopStart = incrementStart
		c.chk().PatchJump(bodyJump)
	} else {
		c.consume(token.RParen, "expect ')' after for clauses")
	}

	c.loop = &loopState{enclosing: c.loop, start: loopStart, scopeDepth: c.fn.scopeDepth}
	c.loop.bodyStart = len(c.chk().Code)
	c.statement()
	c.chk().EmitLoop(c.loop.start, c.previous.Line)

	if exitJump != -1 {
		c.chk().PatchJump(exitJump)
		c.emitOp(chunk.OpPop)
		c.shrinkStack(1)
	}

	c.chk().PatchBreaks(c.loop.bodyStart, c.previous.Line)
	c.loop = c.loop.enclosing
	c.endScope()
}

// switchStatement treats the whole construct as a pseudo-loop so
// `break` (implicit at the end of every case, per REDESIGN FLAG #2:
// no fallthrough) can reuse the same deferred-patch mechanism as a
// loop's break. The subject is duplicated for each equality test and
// popped once, by the instruction at the shared exit point every
// case's implicit break lands on.
func (c *Compiler) switchStatement() {
	c.consume(token.LParen, "expect '(' after 'switch'")
	c.expression()
	c.consume(token.RParen, "expect ')' after switch subject")
	c.consume(token.LBrace, "expect '{' before switch body")

	bodyStart := len(c.chk().Code)
	c.loop = &loopState{enclosing: c.loop, start: bodyStart, scopeDepth: c.fn.scopeDepth, bodyStart: bodyStart}

	caseCount := 0
	nextCaseJump := -1

	for !c.check(token.RBrace) && !c.check(token.EOF) {
		switch {
		case c.match(token.Case):
			if caseCount >= 256 {
				c.error("switch statement can have at most 256 cases")
			}
			caseCount++
			if nextCaseJump != -1 {
				c.chk().PatchJump(nextCaseJump)
				c.emitOp(chunk.OpPop)
				c.shrinkStack(1)
			}

			c.emitOp(chunk.OpDup)
			c.growStack(1)
			c.expression()
			c.consume(token.Colon, "expect ':' after case value")
			c.emitOp(chunk.OpEqual)
			c.shrinkStack(1)
			nextCaseJump = c.chk().EmitJump(chunk.OpJumpIfFalse, c.previous.Line)
			c.emitOp(chunk.OpPop)
			c.shrinkStack(1)

			for !c.check(token.Case) && !c.check(token.Default) && !c.check(token.RBrace) && !c.check(token.EOF) {
				c.declaration()
			}
			c.chk().EmitJump(chunk.OpBreak, c.previous.Line)

		case c.match(token.Default):
			if nextCaseJump != -1 {
				c.chk().PatchJump(nextCaseJump)
				c.emitOp(chunk.OpPop)
				c.shrinkStack(1)
				nextCaseJump = -1
			}
			c.consume(token.Colon, "expect ':' after 'default'")
			for !c.check(token.Case) && !c.check(token.Default) && !c.check(token.RBrace) && !c.check(token.EOF) {
				c.declaration()
			}
			c.chk().EmitJump(chunk.OpBreak, c.previous.Line)

		default:
			c.errorAtCurrent("expect 'case' or 'default' inside switch body")
			c.advance()
		}
	}
	if nextCaseJump != -1 {
		c.chk().PatchJump(nextCaseJump)
		c.emitOp(chunk.OpPop)
		c.shrinkStack(1)
	}

	c.consume(token.RBrace, "expect '}' after switch body")

	// Patch breaks to land exactly where the subject pop below will
	// be written, so every case's implicit break both exits the
	// switch and discards the subject in the same jump.
	c.chk().PatchBreaks(bodyStart, c.previous.Line)
	c.loop = c.loop.enclosing
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
}

func (c *Compiler) breakStatement() {
	if c.loop == nil {
		c.error("'break' can only be used inside a loop or switch")
		c.consume(token.Semicolon, "expect ';' after 'break'")
		return
	}
	c.popLocalsAbove(c.loop.scopeDepth)
	c.chk().EmitJump(chunk.OpBreak, c.previous.Line)
	c.consume(token.Semicolon, "expect ';' after 'break'")
}

func (c *Compiler) continueStatement() {
	if c.loop == nil {
		c.error("'continue' can only be used inside a loop")
		c.consume(token.Semicolon, "expect ';' after 'continue'")
		return
	}
	c.popLocalsAbove(c.loop.scopeDepth)
	c.chk().EmitLoop(c.loop.start, c.previous.Line)
	c.consume(token.Semicolon, "expect ';' after 'continue'")
}

// popLocalsAbove emits a pop (or close-upvalue) for every currently
// declared local deeper than depth, without removing them from
// fn.locals — the enclosing block is still being compiled and may
// declare more locals after this break/continue statement.
func (c *Compiler) popLocalsAbove(depth int) {
	for i := len(c.fn.locals) - 1; i >= 0 && c.fn.locals[i].depth > depth; i-- {
		if c.fn.locals[i].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.shrinkStack(1)
	}
}

func (c *Compiler) funcDeclaration() {
	globalIdx := c.parseVariable("expect function name")
	name := c.previous.Lexeme
	c.markInitialized()
	c.function(FuncFunction, name)
	c.defineVariable(globalIdx, false)
}

// function compiles one function body in a fresh nested compiler
// context (spec §4.3.4): params become locals, the body is a block,
// and an implicit `nil; return` closes it if control falls off the
// end. The enclosing chunk then gets a `closure` instruction over the
// finished function constant, one upvalue descriptor pair at a time.
func (c *Compiler) function(kind FuncKind, name string) {
	c.pushFunc(kind, name)
	c.beginScope()

	c.consume(token.LParen, "expect '(' after function name")
	if !c.check(token.RParen) {
		for {
			if c.fn.fn.Arity == 255 {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			c.fn.fn.Arity++
			paramIdx := c.parseVariable("expect parameter name")
			c.defineVariable(paramIdx, false)
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "expect ')' after parameters")
	c.consume(token.LBrace, "expect '{' before function body")
	c.block()

	fn := c.popFunc()

	idx := c.chk().AddConstant(value.Obj(fn))
	c.emitPoolOp(chunk.OpClosure16, chunk.OpClosure32, idx)
	c.growStack(1)
	for _, uv := range fn.UpvalueDescs {
		localByte := byte(0)
		if uv.IsLocal {
			localByte = 1
		}
		c.emitByte(localByte)
		c.chk().WriteU24(uv.Index, c.previous.Line)
	}
}

// classDeclaration compiles a class declaration (spec §4.3.4):
// `class Name { ... }` or `class Name < Super { ... }` for
// single-inheritance. Methods are compiled as functions and installed
// with `method name-index`; a method named exactly like the class is
// additionally recorded as the constructor.
func (c *Compiler) classDeclaration() {
	globalIdx := c.parseVariable("expect class name")
	className := c.previous.Lexeme
	nameIdx := c.identifierConstant(className)

	c.emitPoolOp(chunk.OpClass16, chunk.OpClass32, nameIdx)
	c.growStack(1)
	c.defineVariable(globalIdx, false)

	cs := &classState{enclosing: c.class, name: className}
	c.class = cs

	if c.match(token.Less) {
		c.consume(token.Identifier, "expect superclass name")
		if c.previous.Lexeme == className {
			c.error("a class cannot inherit from itself")
		}
		c.variable(false) // push superclass; this copy becomes the "super" local

		c.beginScope()
		c.declareLocal("super")
		c.markInitialized()

		// inherit consumes its own superclass+subclass pair and leaves
		// the (now-mutated) subclass sitting on top, so load a second
		// copy of the superclass from the local just declared rather
		// than letting inherit eat the one backing it; the class read
		// below for the method loop is skipped in this branch since
		// inherit's result already serves that purpose.
		c.namedVariable("super", false)
		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		c.shrinkStack(1)
		cs.hasSuper = true
	} else {
		c.namedVariable(className, false)
	}

	c.consume(token.LBrace, "expect '{' before class body")
	for !c.check(token.RBrace) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBrace, "expect '}' after class body")
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)

	if cs.hasSuper {
		c.endScope()
	}
	c.class = cs.enclosing
}

// method compiles `name(params) { body }` inside a class body and
// installs it with `method name-index`.
func (c *Compiler) method() {
	c.consume(token.Identifier, "expect method name")
	name := c.previous.Lexeme
	nameIdx := c.identifierConstant(name)

	kind := FuncMethod
	if c.class != nil && name == c.class.name {
		kind = FuncConstructor
	}
	c.function(kind, name)
	c.emitPoolOp(chunk.OpMethod16, chunk.OpMethod32, nameIdx)
	c.shrinkStack(1)
}
