package compiler

import (
	"strconv"

	"github.com/kristofer/loxie/internal/chunk"
	"github.com/kristofer/loxie/internal/token"
	"github.com/kristofer/loxie/internal/value"
)

// expression compiles one expression at the lowest (assignment)
// precedence (spec §4.3.1).
func (c *Compiler) expression() {
	c.parsePrecedence(precAssignment)
}

// parsePrecedence is the precedence-climb driver verbatim from spec
// §4.3.1: advance, run the prefix rule for the token just consumed,
// then keep consuming infix operators whose precedence is at least
// the one requested.
func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	prefixRule := getRule(c.previous.Kind).prefix
	if prefixRule == nil {
		c.error("expect expression")
		return
	}

	canAssign := p <= precAssignment
	prefixRule(c, canAssign)

	for p <= getRule(c.current.Kind).precedence {
		c.advance()
		infixRule := getRule(c.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) number(canAssign bool) {
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(value.Number(n))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	lex := c.previous.Lexeme
	c.emitConstant(value.Obj(c.gc.AllocateString(lex[1 : len(lex)-1])))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.previous.Kind {
	case token.True:
		c.emitOp(chunk.OpTrue)
	case token.False:
		c.emitOp(chunk.OpFalse)
	case token.Nil:
		c.emitOp(chunk.OpNil)
	}
	c.growStack(1)
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(token.RParen, "expect ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	opKind := c.previous.Kind
	c.parsePrecedence(precUnary)
	switch opKind {
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	case token.Bang:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opKind := c.previous.Kind
	rule := getRule(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSub)
	case token.Star:
		c.emitOp(chunk.OpMul)
	case token.Slash:
		c.emitOp(chunk.OpDiv)
	case token.Percent:
		c.emitOp(chunk.OpMod)
	case token.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case token.BangEqual:
		c.emitOps(chunk.OpEqual, chunk.OpNot)
	case token.Greater:
		c.emitOp(chunk.OpGreater)
	case token.GreaterEqual:
		c.emitOp(chunk.OpGreaterEqual)
	case token.Less:
		c.emitOp(chunk.OpLess)
	case token.LessEqual:
		c.emitOp(chunk.OpLessEqual)
	}
	c.shrinkStack(1) // two operands consumed, one result produced
}

// rangeLiteral compiles `a..b`: the left operand is already on the
// stack when this infix callback runs; it parses the right operand
// itself before emitting `range`.
func (c *Compiler) rangeLiteral(canAssign bool) {
	c.parsePrecedence(precRange + 1)
	c.emitOp(chunk.OpRange)
	c.shrinkStack(1)
}

func (c *Compiler) and(canAssign bool) {
	line := c.previous.Line
	endJump := c.chk().EmitJump(chunk.OpJumpIfFalse, line)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
	c.parsePrecedence(precAnd)
	c.chk().PatchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	line := c.previous.Line
	elseJump := c.chk().EmitJump(chunk.OpJumpIfFalse, line)
	endJump := c.chk().EmitJump(chunk.OpJump, line)
	c.chk().PatchJump(elseJump)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
	c.parsePrecedence(precOr)
	c.chk().PatchJump(endJump)
}

// conditional compiles `cond ? then : else`, right-associative: the
// condition is already on the stack from the preceding parse.
func (c *Compiler) conditional(canAssign bool) {
	line := c.previous.Line
	thenJump := c.chk().EmitJump(chunk.OpJumpIfFalse, line)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
	c.parsePrecedence(precAssignment)

	elseJump := c.chk().EmitJump(chunk.OpJump, line)
	c.chk().PatchJump(thenJump)
	c.emitOp(chunk.OpPop)
	c.shrinkStack(1)
	c.consume(token.Colon, "expect ':' in conditional expression")
	c.parsePrecedence(precConditional)
	c.chk().PatchJump(elseJump)
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

// namedVariable resolves name as local, upvalue, or global (spec
// §4.3.2) and compiles either a read or, when canAssign and an `=`
// follows, a write.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	var shortGet, longGet, shortSet, longSet chunk.Op
	var idx int

	if local, ok := resolveLocal(c.fn, name); ok {
		if c.fn.locals[local].depth == -1 {
			c.error("cannot read local variable in its own initializer")
		}
		idx = local
		shortGet, longGet = chunk.OpGetLocal16, chunk.OpGetLocal32
		shortSet, longSet = chunk.OpSetLocal16, chunk.OpSetLocal32
	} else if uv, ok := c.resolveUpvalue(c.fn, name); ok {
		idx = uv
		shortGet, longGet = chunk.OpGetUpvalue16, chunk.OpGetUpvalue32
		shortSet, longSet = chunk.OpSetUpvalue16, chunk.OpSetUpvalue32
	} else {
		idx = c.globals.Resolve(c.gc.AllocateString(name))
		shortGet, longGet = chunk.OpGetGlobal16, chunk.OpGetGlobal32
		shortSet, longSet = chunk.OpSetGlobal16, chunk.OpSetGlobal32
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitPoolOp(shortSet, longSet, idx)
		return
	}
	c.emitPoolOp(shortGet, longGet, idx)
	c.growStack(1)
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("'this' can only be used inside a method")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("'super' can only be used inside a method")
		return
	} else if !c.class.hasSuper {
		c.error("'super' can only be used in a class with a superclass")
	}

	c.consume(token.Dot, "expect '.' after 'super'")
	c.consume(token.Identifier, "expect superclass method name")
	nameIdx := c.identifierConstant(c.previous.Lexeme)

	c.namedVariable("this", false)
	if c.match(token.LParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitPoolOp(chunk.OpSuperInvoke16, chunk.OpSuperInvoke32, nameIdx)
		c.emitByte(byte(argc))
		c.shrinkStack(argc + 1)
		return
	}
	c.namedVariable("super", false)
	c.emitPoolOp(chunk.OpGetSuper16, chunk.OpGetSuper32, nameIdx)
	c.shrinkStack(1)
}

// call compiles the `(args)` infix: the callee is already on the
// stack from whatever prefix/infix produced it.
func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOp(chunk.OpCall)
	c.emitByte(byte(argc))
	c.shrinkStack(argc)
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("can't have more than 255 arguments")
			}
			argc++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RParen, "expect ')' after arguments")
	return argc
}

// dot compiles `.name`, dispatching to a field write, a fused
// method-call invocation, or a plain property read (spec §4.3.4's
// invoke fusion).
func (c *Compiler) dot(canAssign bool) {
	c.consume(token.Identifier, "expect property name after '.'")
	nameIdx := c.identifierConstant(c.previous.Lexeme)

	switch {
	case canAssign && c.match(token.Equal):
		c.expression()
		c.emitPoolOp(chunk.OpSetProperty16, chunk.OpSetProperty32, nameIdx)
		c.shrinkStack(1)
	case c.match(token.LParen):
		argc := c.argumentList()
		c.emitPoolOp(chunk.OpInvoke16, chunk.OpInvoke32, nameIdx)
		c.emitByte(byte(argc))
		c.shrinkStack(argc)
	default:
		c.emitPoolOp(chunk.OpGetProperty16, chunk.OpGetProperty32, nameIdx)
	}
}

// subscript compiles `[index]`, either as a read or, when followed by
// `=`, a write (spec §4.4.6).
func (c *Compiler) subscript(canAssign bool) {
	c.expression()
	c.consume(token.RBracket, "expect ']' after index")
	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitOp(chunk.OpSetSubscript)
		c.shrinkStack(2)
		return
	}
	c.emitOp(chunk.OpGetSubscript)
	c.shrinkStack(1)
}

// arrayLiteral compiles `[e, e, ...]` as an empty array followed by
// one push-to-array per element, mirroring tableLiteral's incremental
// construction.
func (c *Compiler) arrayLiteral(canAssign bool) {
	line := c.previous.Line
	c.emitOp(chunk.OpArray)
	c.chk().WriteU24(0, line)
	c.growStack(1)

	if !c.check(token.RBracket) {
		for {
			c.expression()
			c.emitOp(chunk.OpPushToArray)
			c.shrinkStack(1)
			if !c.match(token.Comma) {
				break
			}
			if c.check(token.RBracket) {
				break
			}
		}
	}
	c.consume(token.RBracket, "expect ']' after array elements")
}

// tableLiteral compiles `{ key: value, ... }`; keys are bare
// identifiers or string literals, both interned as string constants
// (computed keys are not part of this grammar).
func (c *Compiler) tableLiteral(canAssign bool) {
	c.emitOp(chunk.OpTable)
	c.growStack(1)

	if !c.check(token.RBrace) {
		for {
			var key string
			switch {
			case c.check(token.Identifier):
				c.advance()
				key = c.previous.Lexeme
			case c.check(token.String):
				c.advance()
				lex := c.previous.Lexeme
				key = lex[1 : len(lex)-1]
			default:
				c.errorAtCurrent("expect table key")
				c.advance()
			}
			c.emitConstant(value.Obj(c.gc.AllocateString(key)))
			c.consume(token.Colon, "expect ':' after table key")
			c.expression()
			c.emitOp(chunk.OpPushToTable)
			c.shrinkStack(2)
			if !c.match(token.Comma) {
				break
			}
			if c.check(token.RBrace) {
				break
			}
		}
	}
	c.consume(token.RBrace, "expect '}' after table literal")
}
