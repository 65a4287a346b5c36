// Package scanner implements the lexical analyzer for loxie.
//
// The scanner is stateless with respect to the rest of the system: it
// holds only a pointer into the source buffer, the start of the lexeme
// currently being scanned, and the current line. It has no knowledge of
// tokens it has already produced, and keeps emitting token.EOF forever
// once the input is exhausted.
package scanner

import (
	"github.com/kristofer/loxie/internal/token"
)

// Scanner turns source bytes into a stream of token.Token values, one
// NextToken call at a time.
type Scanner struct {
	src     string
	start   int
	current int
	line    int
}

// New creates a scanner over source.
func New(source string) *Scanner {
	return &Scanner{src: source, line: 1}
}

// NextToken returns the next token in the source. Past the end of the
// input, it returns token.EOF repeatedly.
func (s *Scanner) NextToken() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LParen)
	case ')':
		return s.make(token.RParen)
	case '[':
		return s.make(token.LBracket)
	case ']':
		return s.make(token.RBracket)
	case '{':
		return s.make(token.LBrace)
	case '}':
		return s.make(token.RBrace)
	case '$':
		return s.make(token.Dollar)
	case '#':
		return s.make(token.Hash)
	case ',':
		return s.make(token.Comma)
	case '.':
		if s.matchChar('.') {
			return s.make(token.DotDot)
		}
		return s.make(token.Dot)
	case ';':
		return s.make(token.Semicolon)
	case ':':
		return s.make(token.Colon)
	case '?':
		return s.make(token.Question)
	case '+':
		return s.make(token.Plus)
	case '-':
		return s.make(token.Minus)
	case '*':
		return s.make(token.Star)
	case '/':
		return s.make(token.Slash)
	case '%':
		return s.make(token.Percent)
	case '!':
		if s.matchChar('=') {
			return s.make(token.BangEqual)
		}
		return s.make(token.Bang)
	case '=':
		if s.matchChar('=') {
			return s.make(token.EqualEqual)
		}
		return s.make(token.Equal)
	case '<':
		if s.matchChar('=') {
			return s.make(token.LessEqual)
		}
		return s.make(token.Less)
	case '>':
		if s.matchChar('=') {
			return s.make(token.GreaterEqual)
		}
		return s.make(token.Greater)
	case '"':
		return s.string()
	}

	return s.errorToken("unexpected character")
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.src) }

func (s *Scanner) advance() byte {
	c := s.src[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.src[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.src) {
		return 0
	}
	return s.src[s.current+1]
}

func (s *Scanner) matchChar(expected byte) bool {
	if s.atEnd() || s.src[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) make(kind token.Kind) token.Token {
	return token.Token{Kind: kind, Lexeme: s.src[s.start:s.current], Line: s.line}
}

func (s *Scanner) errorToken(msg string) token.Token {
	return token.Token{Kind: token.Error, Lexeme: msg, Line: s.line}
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				for s.peek() != '\n' && !s.atEnd() {
					s.advance()
				}
			} else if s.peekNext() == '*' {
				s.skipBlockComment()
			} else {
				return
			}
		default:
			return
		}
	}
}

// skipBlockComment consumes a non-nesting /* ... */ comment. An
// unterminated block comment simply runs to end of input; the scanner
// reports unexpected-character or EOF errors to the caller as usual
// afterward, the same way the reference scanner treats it.
func (s *Scanner) skipBlockComment() {
	s.advance() // '/'
	s.advance() // '*'
	for !s.atEnd() {
		if s.peek() == '*' && s.peekNext() == '/' {
			s.advance()
			s.advance()
			return
		}
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
}

func (s *Scanner) string() token.Token {
	for s.peek() != '"' && !s.atEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
	if s.atEnd() {
		return s.errorToken("unterminated string")
	}
	s.advance() // closing quote
	return s.make(token.String)
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.make(token.Number)
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	lexeme := s.src[s.start:s.current]
	if kind, ok := identifierKind(lexeme); ok {
		return token.Token{Kind: kind, Lexeme: lexeme, Line: s.line}
	}
	return token.Token{Kind: token.Identifier, Lexeme: lexeme, Line: s.line}
}

// identifierKind performs the O(keyword length) first-character dispatch
// followed by a suffix comparison that spec.md §4.1 requires: it never
// falls back to a generic map scan keyed by the whole identifier.
func identifierKind(lexeme string) (token.Kind, bool) {
	if len(lexeme) == 0 {
		return token.Identifier, false
	}
	candidates := keywordsByFirstByte[lexeme[0]]
	for _, kw := range candidates {
		if kw.lexeme == lexeme {
			return kw.kind, true
		}
	}
	return token.Identifier, false
}

type keyword struct {
	lexeme string
	kind   token.Kind
}

var keywordsByFirstByte = buildKeywordIndex()

func buildKeywordIndex() map[byte][]keyword {
	idx := make(map[byte][]keyword)
	for lexeme, kind := range token.Keywords {
		b := lexeme[0]
		idx[b] = append(idx[b], keyword{lexeme: lexeme, kind: kind})
	}
	return idx
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
