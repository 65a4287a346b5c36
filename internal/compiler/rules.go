package compiler

import "github.com/kristofer/loxie/internal/token"

// precedence levels in ascending binding power (spec §4.3.1).
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precConditional // ?:
	precOr
	precAnd
	precEquality
	precComparison
	precRange // ..
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

// parseFn is a method-expression shape: (*Compiler).foo has exactly
// this type, so the rule table can store unbound method values
// directly and invoke them as fn(c, canAssign).
type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is built lazily (package init) since its function values are
// Compiler methods and Go doesn't allow referencing them before the
// type is fully defined at the top level any earlier than this.
var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
		token.LParen:       {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: precCall},
		token.LBracket:     {prefix: (*Compiler).arrayLiteral, infix: (*Compiler).subscript, precedence: precCall},
		token.LBrace:       {prefix: (*Compiler).tableLiteral},
		token.Dot:          {infix: (*Compiler).dot, precedence: precCall},
		token.DotDot:       {infix: (*Compiler).rangeLiteral, precedence: precRange},
		token.Minus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: precTerm},
		token.Plus:         {infix: (*Compiler).binary, precedence: precTerm},
		token.Slash:        {infix: (*Compiler).binary, precedence: precFactor},
		token.Star:         {infix: (*Compiler).binary, precedence: precFactor},
		token.Percent:      {infix: (*Compiler).binary, precedence: precFactor},
		token.Bang:         {prefix: (*Compiler).unary},
		token.BangEqual:    {infix: (*Compiler).binary, precedence: precEquality},
		token.Equal:        {},
		token.EqualEqual:   {infix: (*Compiler).binary, precedence: precEquality},
		token.Greater:      {infix: (*Compiler).binary, precedence: precComparison},
		token.GreaterEqual: {infix: (*Compiler).binary, precedence: precComparison},
		token.Less:         {infix: (*Compiler).binary, precedence: precComparison},
		token.LessEqual:    {infix: (*Compiler).binary, precedence: precComparison},
		token.Identifier:   {prefix: (*Compiler).variable},
		token.String:       {prefix: (*Compiler).stringLiteral},
		token.Number:       {prefix: (*Compiler).number},
		token.And:          {infix: (*Compiler).and, precedence: precAnd},
		token.Or:           {infix: (*Compiler).or, precedence: precOr},
		token.True:         {prefix: (*Compiler).literal},
		token.False:        {prefix: (*Compiler).literal},
		token.Nil:          {prefix: (*Compiler).literal},
		token.This:         {prefix: (*Compiler).this},
		token.Super:        {prefix: (*Compiler).super},
		token.Question:     {infix: (*Compiler).conditional, precedence: precConditional},
		token.Colon:        {}, // only meaningful inside `?:`/tables/switch, never an infix op itself
		token.Dollar:       {},
		token.Semicolon:    {},
	}
}

func getRule(k token.Kind) parseRule {
	if r, ok := rules[k]; ok {
		return r
	}
	return parseRule{}
}
