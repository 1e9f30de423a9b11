// Package lexer splits C-like shader source (GLSL, HLSL, ISF bodies) into a
// lossless token stream: concatenating every token's Text reproduces the input.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes shader source. It never fails; unknown bytes become Other tokens.
type Lexer struct {
	source    string
	pos       int
	line      int
	column    int
	start     int
	startLine int
	startCol  int
	lineStart bool
	tokens    []Token
}

// New creates a lexer for source.
func New(source string) *Lexer {
	est := len(source) / 4
	if est < 16 {
		est = 16
	}
	return &Lexer{
		source:    source,
		line:      1,
		column:    1,
		lineStart: true,
		tokens:    make([]Token, 0, est),
	}
}

// Tokenize is shorthand for New(source).Tokens().
func Tokenize(source string) []Token {
	return New(source).Tokens()
}

// Tokens returns every token of the source, trivia included.
func (l *Lexer) Tokens() []Token {
	for !l.isAtEnd() {
		l.start, l.startLine, l.startCol = l.pos, l.line, l.column
		l.scan()
	}
	return l.tokens
}

var twoCharOps = []string{
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "->", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "::",
}

func (l *Lexer) scan() {
	r := l.peek()
	switch {
	case r == '\n' || unicode.IsSpace(r):
		for !l.isAtEnd() && unicode.IsSpace(l.peek()) {
			l.advance()
		}
		l.add(Whitespace)
		return
	case r == '#' && l.lineStart:
		l.directive()
	case r == '/' && l.peekNext() == '/':
		for !l.isAtEnd() && l.peek() != '\n' {
			l.advance()
		}
		l.add(Comment)
	case r == '/' && l.peekNext() == '*':
		l.advance()
		l.advance()
		for !l.isAtEnd() && !(l.peek() == '*' && l.peekNext() == '/') {
			l.advance()
		}
		if !l.isAtEnd() {
			l.advance()
			l.advance()
		}
		l.add(Comment)
	case r == '"':
		l.advance()
		for !l.isAtEnd() && l.peek() != '"' && l.peek() != '\n' {
			if l.peek() == '\\' {
				l.advance()
			}
			l.advance()
		}
		if l.peek() == '"' {
			l.advance()
		}
		l.add(String)
	case isDigit(r) || (r == '.' && isDigit(l.peekNext())):
		l.number()
	case isIdentStart(r):
		for !l.isAtEnd() && isIdentPart(l.peek()) {
			l.advance()
		}
		l.add(Ident)
	case strings.ContainsRune("(){}[],.;:?+-*/%<>=!&|^~@", r):
		rest := l.source[l.pos:]
		for _, op := range twoCharOps {
			if strings.HasPrefix(rest, op) {
				l.advance()
				l.advance()
				l.add(Punct)
				l.lineStart = false
				return
			}
		}
		l.advance()
		l.add(Punct)
	default:
		l.advance()
		l.add(Other)
	}
	l.lineStart = false
}

// directive consumes a '#' line, honoring backslash continuations.
func (l *Lexer) directive() {
	for !l.isAtEnd() {
		if l.peek() == '\\' && l.peekNext() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		if l.peek() == '\n' {
			break
		}
		l.advance()
	}
	l.add(Directive)
}

func (l *Lexer) number() {
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for isDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' && !isIdentStart(l.peekNext()) {
			l.advance()
			for isDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			next := l.peekNext()
			if isDigit(next) || next == '+' || next == '-' {
				l.advance()
				if l.peek() == '+' || l.peek() == '-' {
					l.advance()
				}
				for isDigit(l.peek()) {
					l.advance()
				}
			}
		}
	}
	// suffixes: f, F, u, U, h, l, L, lf
	for strings.ContainsRune("fFuUhlL", l.peek()) {
		l.advance()
	}
	l.add(Number)
}

func (l *Lexer) add(kind Kind) {
	text := l.source[l.start:l.pos]
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Text:   text,
		Line:   l.startLine,
		Column: l.startCol,
		Offset: l.start,
	})
	if kind == Whitespace && strings.Contains(text, "\n") {
		l.lineStart = true
	}
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	if l.pos+size >= len(l.source) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) }

// Join concatenates token texts.
func Join(toks []Token) string {
	var sb strings.Builder
	for _, t := range toks {
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// Significant returns toks without whitespace and comments.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if !t.Trivia() {
			out = append(out, t)
		}
	}
	return out
}
