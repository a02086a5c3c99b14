package compiler

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"do":     DO,
	"if":     IF,
	"elif":   ELIF,
	"else":   ELSE,
	"done":   DONE,
	"while":  WHILE,
	"for":    FOR,
	"func":   FUNC,
	"return": RETURN,
	"extern": EXTERN,
}

// builtins is the set of names reserved for native callables.
var builtins = map[string]bool{
	"read":   true,
	"write":  true,
	"length": true,
	"map":    true,
	"filter": true,
	"fold":   true,
}

var punctuation = map[rune]TokenType{
	'(': LPAREN,
	')': RPAREN,
	'[': LBRACKET,
	']': RBRACKET,
	'|': PIPE,
	',': COMMA,
	'{': LBRACE,
	'}': RBRACE,
	';': SEMICOLON,
}

// Lexer produces tokens on demand from a rune stream. It keeps one rune
// of lookahead and tracks the line/column of the next rune.
type Lexer struct {
	src  io.RuneReader
	ch   rune // next rune, valid when !eof
	eof  bool
	err  error
	line int
	col  int
}

// NewLexer returns a Lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	rr, ok := r.(io.RuneReader)
	if !ok {
		rr = bufio.NewReader(r)
	}
	l := &Lexer{src: rr, line: 1, col: 1}
	l.fill()
	return l
}

// fill loads the next rune into l.ch.
func (l *Lexer) fill() {
	r, _, err := l.src.ReadRune()
	if err != nil {
		l.eof = true
		if !errors.Is(err, io.EOF) {
			l.err = err
		}
		return
	}
	l.ch = r
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.eof {
		return 0
	}
	return l.ch
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.eof {
		return 0
	}
	r := l.ch
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.fill()
	return r
}

func (l *Lexer) pos() Pos { return Pos{Line: l.line, Col: l.col} }

// skipSpaceAndComments discards whitespace and '#' comments. A comment
// runs to end of line and takes the newline with it.
func (l *Lexer) skipSpaceAndComments() {
	for !l.eof {
		switch r := l.peek(); {
		case unicode.IsSpace(r):
			l.advance()
		case r == '#':
			for !l.eof && l.peek() != '\n' {
				l.advance()
			}
			l.advance()
		default:
			return
		}
	}
}

// Next returns the next token. At physical end of input it returns an
// EOF token and keeps doing so on further calls.
func (l *Lexer) Next() (Token, error) {
	l.skipSpaceAndComments()
	if l.err != nil {
		return Token{}, errorf(LexicalError, l.pos(), "read error: %v", l.err)
	}
	start := l.pos()
	if l.eof {
		return Token{Type: EOF, Pos: start}, nil
	}

	r := l.peek()
	switch {
	case isLetter(r):
		return l.scanWord(start), nil
	case isDigit(r):
		return l.scanNumber(start)
	}
	return l.scanSymbol(start)
}

// Identifiers and numbers are ASCII only; any other rune is a symbol.
func isLetter(r rune) bool { return r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' }
func isDigit(r rune) bool { return '0' <= r && r <= '9' }

// scanWord collects an identifier and classifies it as keyword, builtin,
// word operator or plain identifier, in that order.
func (l *Lexer) scanWord(start Pos) Token {
	var sb strings.Builder
	for !l.eof {
		r := l.peek()
		if !isLetter(r) && !isDigit(r) {
			break
		}
		sb.WriteRune(l.advance())
	}
	word := sb.String()
	if kw, ok := keywords[word]; ok {
		return Token{Type: kw, Lexeme: word, Pos: start}
	}
	if builtins[word] {
		return Token{Type: BUILTIN, Lexeme: word, Pos: start}
	}
	if op, ok := operators[word]; ok {
		return Token{Type: OPERATOR, Lexeme: word, Op: op, Pos: start}
	}
	return Token{Type: IDENTIFIER, Lexeme: word, Pos: start}
}

// scanNumber collects digits with at most one decimal point. A second
// '.' ends the literal.
func (l *Lexer) scanNumber(start Pos) (Token, error) {
	var sb strings.Builder
	seenDot := false
	for !l.eof {
		r := l.peek()
		if r == '.' {
			if seenDot {
				break
			}
			seenDot = true
		} else if !isDigit(r) {
			break
		}
		sb.WriteRune(l.advance())
	}
	text := sb.String()
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, errorf(LexicalError, start, "malformed number %q", text)
	}
	return Token{Type: NUMBER, Lexeme: text, Value: v, Pos: start}, nil
}

// scanSymbol applies maximal munch over the operator table, then falls
// back to single punctuation characters.
func (l *Lexer) scanSymbol(start Pos) (Token, error) {
	first := l.advance()
	text := string(first)
	if !l.eof {
		if op, ok := operators[text+string(l.peek())]; ok {
			l.advance()
			return Token{Type: OPERATOR, Lexeme: op.Spelling, Op: op, Pos: start}, nil
		}
	}
	if op, ok := operators[text]; ok {
		return Token{Type: OPERATOR, Lexeme: text, Op: op, Pos: start}, nil
	}
	if tt, ok := punctuation[first]; ok {
		return Token{Type: tt, Lexeme: text, Pos: start}, nil
	}
	return Token{}, errorf(LexicalError, start, "unexpected character %q", first)
}

// Lex tokenizes src completely. The returned slice ends with an EOF token.
func Lex(src string) ([]Token, error) {
	l := NewLexer(strings.NewReader(src))
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
