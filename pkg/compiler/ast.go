package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is implemented by every AST node. The set of nodes is closed:
// the unexported marker keeps other packages from adding cases, so a type
// switch over the types below is exhaustive.
type Node interface {
	node()
	Position() Pos
	String() string
}

// Number is a real literal.
//
//	x = 2.5
//	    ^^^  Number{Value: 2.5}
type Number struct {
	Value float64
	Pos   Pos
}

// Variable is a read of (or, on the left of '=', a write to) a name.
type Variable struct {
	Name string
	Pos  Pos
}

// UnaryOp applies a prefix operator. Only "not" exists.
type UnaryOp struct {
	Op      string
	Operand Node
	Pos     Pos
}

// BinaryOp represents Lhs Op Rhs, including assignment.
//
//	x = a + 1
//	^ ^ ^^^^^
//	| | Rhs: BinaryOp{Op: "+", ...}
//	| Op
//	Lhs
type BinaryOp struct {
	Op  string
	Lhs Node
	Rhs Node
	Pos Pos // position of the operator
}

// Call invokes a named function, a function-valued variable, or with
// Builtin set, a native builtin via do(name, args...).
type Call struct {
	Callee  string
	Builtin bool
	Args    []Node
	Pos     Pos
}

// Collection is a literal [a, b] or, with Sequence set, |a, b|.
type Collection struct {
	Sequence bool
	Elements []Node
	Pos      Pos
}

// If is a statement-shaped conditional. Else is nil when absent.
type If struct {
	Cond Node
	Then []Node
	Else []Node
	Pos  Pos
}

type While struct {
	Cond Node
	Body []Node
	Pos  Pos
}

// For is "for Var = Start, End [, Step] Body done". End is a condition
// tested after each pass over Body. Step is nil when omitted.
type For struct {
	Var   string
	Start Node
	End   Node
	Step  Node
	Body  []Node
	Pos   Pos
}

// FuncLit is an anonymous function "func(a, b) { ... }".
type FuncLit struct {
	Params []string
	Body   []Node
	Pos    Pos
}

// FuncDef is a named top-level definition "func name(a, b) { ... }".
type FuncDef struct {
	Name   string
	Params []string
	Body   []Node
	Pos    Pos
}

// Extern declares a host function "extern name(a, b)" with no body.
type Extern struct {
	Name   string
	Params []string
	Pos    Pos
}

type Return struct {
	Value Node
	Pos   Pos
}

// Program is the ordered sequence of top-level statements of one unit.
type Program struct {
	Stmts []Node
}

func (*Number) node()     {}
func (*Variable) node()   {}
func (*UnaryOp) node()    {}
func (*BinaryOp) node()   {}
func (*Call) node()       {}
func (*Collection) node() {}
func (*If) node()         {}
func (*While) node()      {}
func (*For) node()        {}
func (*FuncLit) node()    {}
func (*FuncDef) node()    {}
func (*Extern) node()     {}
func (*Return) node()     {}

func (n *Number) Position() Pos     { return n.Pos }
func (n *Variable) Position() Pos   { return n.Pos }
func (n *UnaryOp) Position() Pos    { return n.Pos }
func (n *BinaryOp) Position() Pos   { return n.Pos }
func (n *Call) Position() Pos       { return n.Pos }
func (n *Collection) Position() Pos { return n.Pos }
func (n *If) Position() Pos         { return n.Pos }
func (n *While) Position() Pos      { return n.Pos }
func (n *For) Position() Pos        { return n.Pos }
func (n *FuncLit) Position() Pos    { return n.Pos }
func (n *FuncDef) Position() Pos    { return n.Pos }
func (n *Extern) Position() Pos     { return n.Pos }
func (n *Return) Position() Pos     { return n.Pos }

// The String forms below are compact S-expressions meant for tests and
// dumps. They ignore positions, so two trees print the same exactly when
// they have the same shape and literal values.

func (n *Number) String() string   { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *Variable) String() string { return n.Name }
func (n *UnaryOp) String() string  { return fmt.Sprintf("(%s %s)", n.Op, n.Operand) }
func (n *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Op, n.Lhs, n.Rhs)
}

func (n *Call) String() string {
	head := "call " + n.Callee
	if n.Builtin {
		head = "do " + n.Callee
	}
	return "(" + head + nodeList(n.Args, " ") + ")"
}

func (n *Collection) String() string {
	head := "coll"
	if n.Sequence {
		head = "seq"
	}
	return "(" + head + nodeList(n.Elements, " ") + ")"
}

func (n *If) String() string {
	s := fmt.Sprintf("(if %s (then%s)", n.Cond, nodeList(n.Then, " "))
	if n.Else != nil {
		s += " (else" + nodeList(n.Else, " ") + ")"
	}
	return s + ")"
}

func (n *While) String() string {
	return fmt.Sprintf("(while %s%s)", n.Cond, nodeList(n.Body, " "))
}

func (n *For) String() string {
	step := "_"
	if n.Step != nil {
		step = n.Step.String()
	}
	return fmt.Sprintf("(for %s %s %s %s%s)", n.Var, n.Start, n.End, step, nodeList(n.Body, " "))
}

func (n *FuncLit) String() string {
	return fmt.Sprintf("(func (%s)%s)", strings.Join(n.Params, " "), nodeList(n.Body, " "))
}

func (n *FuncDef) String() string {
	return fmt.Sprintf("(def %s (%s)%s)", n.Name, strings.Join(n.Params, " "), nodeList(n.Body, " "))
}

func (n *Extern) String() string {
	return fmt.Sprintf("(extern %s (%s))", n.Name, strings.Join(n.Params, " "))
}

func (n *Return) String() string { return fmt.Sprintf("(return %s)", n.Value) }

func (p *Program) String() string {
	return "(program" + nodeList(p.Stmts, " ") + ")"
}

// nodeList renders nodes each preceded by sep.
func nodeList(nodes []Node, sep string) string {
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(sep)
		sb.WriteString(n.String())
	}
	return sb.String()
}
