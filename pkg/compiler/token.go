package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / parameter name
	NUMBER     // real literal, at most one '.'

	// Classified words
	BUILTIN  // read, write, length, map, filter, fold
	OPERATOR // symbolic or word operator, see operators.go

	// Keywords
	DO     // "do"
	IF     // "if"
	ELIF   // "elif" (reserved, rejected by the parser)
	ELSE   // "else"
	DONE   // "done"
	WHILE  // "while"
	FOR    // "for"
	FUNC   // "func"
	RETURN // "return"
	EXTERN // "extern"

	// Punctuation
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	PIPE      // |
	COMMA     // ,
	LBRACE    // {
	RBRACE    // }
	SEMICOLON // ;
)

var tokenNames = [...]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	NUMBER:     "NUMBER",
	BUILTIN:    "BUILTIN",
	OPERATOR:   "OPERATOR",
	DO:         "do",
	IF:         "if",
	ELIF:       "elif",
	ELSE:       "else",
	DONE:       "done",
	WHILE:      "while",
	FOR:        "for",
	FUNC:       "func",
	RETURN:     "return",
	EXTERN:     "extern",
	LPAREN:     "(",
	RPAREN:     ")",
	LBRACKET:   "[",
	RBRACKET:   "]",
	PIPE:       "|",
	COMMA:      ",",
	LBRACE:     "{",
	RBRACE:     "}",
	SEMICOLON:  ";",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Pos is a 1-based line/column source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string
	Value  float64  // NUMBER only
	Op     Operator // OPERATOR only
	Pos    Pos
}

func (t Token) String() string {
	switch t.Type {
	case NUMBER:
		return fmt.Sprintf("%s(%s)@%s", t.Type, t.Lexeme, t.Pos)
	case OPERATOR:
		return fmt.Sprintf("%s(%s %s)@%s", t.Type, t.Op.Category, t.Lexeme, t.Pos)
	case IDENTIFIER, BUILTIN:
		return fmt.Sprintf("%s(%q)@%s", t.Type, t.Lexeme, t.Pos)
	}
	return fmt.Sprintf("%s@%s", t.Type, t.Pos)
}

// describe renders a token for "expected X, got Y" messages.
func (t Token) describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case IDENTIFIER, NUMBER, BUILTIN, OPERATOR:
		return fmt.Sprintf("%q", t.Lexeme)
	}
	return fmt.Sprintf("'%s'", t.Type)
}
