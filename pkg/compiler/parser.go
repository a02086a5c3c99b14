package compiler

import (
	"io"
	"strings"
)

// Parser pulls tokens from a Lexer one at a time and builds an AST. It is
// predictive: every decision is made from the current token alone and no
// token is ever pushed back.
//
// Grammar:
//
//	program    = { statement [";"] } EOF
//	statement  = if | while | for | return | funcdef | extern | expression
//	funcdef    = "func" IDENT params "{" block "}"       (top level only)
//	extern     = "extern" IDENT params                    (top level only)
//	params     = "(" [ IDENT { "," IDENT } ] ")"
//	if         = "if" expression block [ "else" block ] "done"
//	while      = "while" expression block "done"
//	for        = "for" IDENT "=" expression "," expression [ "," expression ] block "done"
//	return     = "return" expression
//	expression = unary binary(0)
//	unary      = "not" unary | rvalue
//	rvalue     = IDENT [ "(" args ")" ] | NUMBER | "(" expression ")"
//	           | "[" rvalue { "," rvalue } "]" | "|" rvalue { "," rvalue } "|"
//	           | "do" "(" BUILTIN { "," expression } ")"
//	           | "func" params "{" block "}"
type Parser struct {
	lex    *Lexer
	tok    Token
	primed bool
	depth  int // open blocks around the current statement
}

// NewParser returns a parser reading source text from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lex: NewLexer(r)}
}

// Parse parses a complete program held in a string.
func Parse(src string) (*Program, error) {
	return NewParser(strings.NewReader(src)).ParseProgram()
}

// errorAt builds a syntax diagnostic at tok. Failing on the EOF token
// marks the diagnostic incomplete.
func (p *Parser) errorAt(tok Token, format string, args ...any) *Diagnostic {
	d := errorf(SyntaxError, tok.Pos, format, args...)
	d.Incomplete = tok.Type == EOF
	return d
}

// advance moves to the next token.
func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// expect consumes the current token if it has type tt.
func (p *Parser) expect(tt TokenType, where string) (Token, error) {
	tok := p.tok
	if tok.Type != tt {
		return tok, p.errorAt(tok, "expected '%s' %s, got %s", tt, where, tok.describe())
	}
	return tok, p.advance()
}

func (p *Parser) isOp(spelling string) bool {
	return p.tok.Type == OPERATOR && p.tok.Lexeme == spelling
}

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() (*Program, error) {
	if !p.primed {
		p.primed = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	prog := &Program{Stmts: []Node{}}
	for {
		if p.tok.Type == SEMICOLON {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.Type == EOF {
			return prog, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
}

func (p *Parser) statement() (Node, error) {
	switch p.tok.Type {
	case IF:
		return p.ifStmt()
	case WHILE:
		return p.whileStmt()
	case FOR:
		return p.forStmt()
	case RETURN:
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &Return{Value: value, Pos: pos}, nil
	case ELIF:
		return nil, p.errorAt(p.tok, "elif is not supported")
	case FUNC:
		kw := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Type == IDENTIFIER {
			return p.funcDef(kw)
		}
		lit, err := p.funcRest(kw)
		if err != nil {
			return nil, err
		}
		return p.binary(0, lit)
	case EXTERN:
		return p.extern()
	}
	return p.expression()
}

// block parses statements until one of closers is the current token.
// The closer is left unconsumed.
func (p *Parser) block(owner Token, closers ...TokenType) ([]Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	stmts := []Node{}
	for {
		for _, c := range closers {
			if p.tok.Type == c {
				return stmts, nil
			}
		}
		switch p.tok.Type {
		case SEMICOLON:
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		case EOF:
			names := make([]string, len(closers))
			for i, c := range closers {
				names[i] = "'" + c.String() + "'"
			}
			return nil, p.errorAt(p.tok, "unterminated '%s' opened at %s: expected %s",
				owner.Type, owner.Pos, strings.Join(names, " or "))
		case ELIF:
			return nil, p.errorAt(p.tok, "elif is not supported")
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) ifStmt() (Node, error) {
	kw := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block(kw, ELSE, DONE)
	if err != nil {
		return nil, err
	}
	n := &If{Cond: cond, Then: then, Pos: kw.Pos}
	if p.tok.Type == ELSE {
		elseTok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if n.Else, err = p.block(elseTok, DONE); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(DONE, "to close 'if'"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) whileStmt() (Node, error) {
	kw := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block(kw, DONE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(DONE, "to close 'while'"); err != nil {
		return nil, err
	}
	return &While{Cond: cond, Body: body, Pos: kw.Pos}, nil
}

func (p *Parser) forStmt() (Node, error) {
	kw := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER, "after 'for'")
	if err != nil {
		return nil, err
	}
	if !p.isOp("=") {
		return nil, p.errorAt(p.tok, "expected '=' after loop variable, got %s", p.tok.describe())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n := &For{Var: name.Lexeme, Pos: kw.Pos}
	if n.Start, err = p.expression(); err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA, "after loop start value"); err != nil {
		return nil, err
	}
	if n.End, err = p.expression(); err != nil {
		return nil, err
	}
	if p.tok.Type == COMMA {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if n.Step, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if n.Body, err = p.block(kw, DONE); err != nil {
		return nil, err
	}
	if _, err := p.expect(DONE, "to close 'for'"); err != nil {
		return nil, err
	}
	return n, nil
}

// expression parses a unary operand and then any binary operators.
func (p *Parser) expression() (Node, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	return p.binary(0, lhs)
}

// binaryOp returns the current token's operator if it is binary.
func (p *Parser) binaryOp() (Operator, bool) {
	if p.tok.Type != OPERATOR || !p.tok.Op.IsBinary() {
		return Operator{}, false
	}
	return p.tok.Op, true
}

// binary is the precedence-climbing loop. Operators binding at least as
// tight as minPrec are folded into lhs left to right. A following
// operator that binds strictly tighter is first absorbed into rhs.
func (p *Parser) binary(minPrec int, lhs Node) (Node, error) {
	for {
		op, ok := p.binaryOp()
		if !ok || op.Precedence < minPrec {
			return lhs, nil
		}
		pos := p.tok.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.unary()
		if err != nil {
			return nil, err
		}
		if next, ok := p.binaryOp(); ok && op.Precedence < next.Precedence {
			if rhs, err = p.binary(op.Precedence+1, rhs); err != nil {
				return nil, err
			}
		}
		lhs = &BinaryOp{Op: op.Spelling, Lhs: lhs, Rhs: rhs, Pos: pos}
	}
}

func (p *Parser) unary() (Node, error) {
	if p.tok.Type == OPERATOR && p.tok.Op.Category == Unary {
		tok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: tok.Lexeme, Operand: operand, Pos: tok.Pos}, nil
	}
	return p.rvalue()
}

func (p *Parser) rvalue() (Node, error) {
	tok := p.tok
	switch tok.Type {
	case IDENTIFIER:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Type != LPAREN {
			return &Variable{Name: tok.Lexeme, Pos: tok.Pos}, nil
		}
		args, err := p.argList()
		if err != nil {
			return nil, err
		}
		return &Call{Callee: tok.Lexeme, Args: args, Pos: tok.Pos}, nil
	case NUMBER:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Number{Value: tok.Value, Pos: tok.Pos}, nil
	case LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "to close '('"); err != nil {
			return nil, err
		}
		return inner, nil
	case LBRACKET, PIPE:
		return p.collection()
	case DO:
		return p.builtinCall()
	case FUNC:
		return p.funcLit()
	}
	return nil, p.errorAt(tok, "expected expression, got %s", tok.describe())
}

// argList parses "(" [ expression { "," expression } ] ")".
func (p *Parser) argList() ([]Node, error) {
	if err := p.advance(); err != nil { // (
		return nil, err
	}
	args := []Node{}
	if p.tok.Type == RPAREN {
		return args, p.advance()
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.tok.Type {
		case COMMA:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case RPAREN:
			return args, p.advance()
		default:
			return nil, p.errorAt(p.tok, "expected ',' or ')' in argument list, got %s", p.tok.describe())
		}
	}
}

func (p *Parser) collection() (Node, error) {
	open := p.tok
	closer := RBRACKET
	if open.Type == PIPE {
		closer = PIPE
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Type == closer {
		return nil, p.errorAt(p.tok, "collection literal needs at least one element")
	}
	n := &Collection{Sequence: open.Type == PIPE, Pos: open.Pos}
	for {
		elem, err := p.rvalue()
		if err != nil {
			return nil, err
		}
		n.Elements = append(n.Elements, elem)
		switch p.tok.Type {
		case COMMA:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case closer:
			return n, p.advance()
		default:
			return nil, p.errorAt(p.tok, "expected ',' or '%s' in collection literal, got %s", closer, p.tok.describe())
		}
	}
}

// builtinCall parses do(name, args...).
func (p *Parser) builtinCall() (Node, error) {
	kw := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "after 'do'"); err != nil {
		return nil, err
	}
	name := p.tok
	if name.Type != BUILTIN {
		return nil, p.errorAt(name, "expected builtin name after 'do(', got %s", name.describe())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n := &Call{Callee: name.Lexeme, Builtin: true, Args: []Node{}, Pos: kw.Pos}
	for {
		switch p.tok.Type {
		case COMMA:
			if err := p.advance(); err != nil {
				return nil, err
			}
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
		case RPAREN:
			return n, p.advance()
		default:
			return nil, p.errorAt(p.tok, "expected ',' or ')' in 'do' call, got %s", p.tok.describe())
		}
	}
}

func (p *Parser) funcLit() (Node, error) {
	kw := p.tok
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.funcRest(kw)
}

// funcRest parses a literal's parameters and body; "func" is consumed.
func (p *Parser) funcRest(kw Token) (*FuncLit, error) {
	params, err := p.params("after 'func'")
	if err != nil {
		return nil, err
	}
	body, err := p.funcBody()
	if err != nil {
		return nil, err
	}
	return &FuncLit{Params: params, Body: body, Pos: kw.Pos}, nil
}

// funcDef parses a named definition; "func" is consumed and the current
// token is the name.
func (p *Parser) funcDef(kw Token) (Node, error) {
	name := p.tok
	if p.depth > 0 {
		return nil, p.errorAt(kw, "function %q must be defined at top level", name.Lexeme)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	params, err := p.params("after function name")
	if err != nil {
		return nil, err
	}
	body, err := p.funcBody()
	if err != nil {
		return nil, err
	}
	return &FuncDef{Name: name.Lexeme, Params: params, Body: body, Pos: kw.Pos}, nil
}

func (p *Parser) extern() (Node, error) {
	kw := p.tok
	if p.depth > 0 {
		return nil, p.errorAt(kw, "extern must be declared at top level")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER, "after 'extern'")
	if err != nil {
		return nil, err
	}
	params, err := p.params("after extern name")
	if err != nil {
		return nil, err
	}
	return &Extern{Name: name.Lexeme, Params: params, Pos: kw.Pos}, nil
}

// params parses "(" [ IDENT { "," IDENT } ] ")".
func (p *Parser) params(where string) ([]string, error) {
	if _, err := p.expect(LPAREN, where); err != nil {
		return nil, err
	}
	names := []string{}
	if p.tok.Type != RPAREN {
		for {
			param, err := p.expect(IDENTIFIER, "in parameter list")
			if err != nil {
				return nil, err
			}
			names = append(names, param.Lexeme)
			if p.tok.Type != COMMA {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(RPAREN, "to close parameter list"); err != nil {
		return nil, err
	}
	return names, nil
}

// funcBody parses "{" block "}".
func (p *Parser) funcBody() ([]Node, error) {
	open, err := p.expect(LBRACE, "before function body")
	if err != nil {
		return nil, err
	}
	body, err := p.block(open, RBRACE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RBRACE, "to close function body"); err != nil {
		return nil, err
	}
	return body, nil
}
