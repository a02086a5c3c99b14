package compiler

import (
	"strconv"
	"strings"
)

// Print renders prog as source text that parses back to the same tree.
// Binary operations are fully parenthesized.
func Print(prog *Program) string {
	var pr printer
	pr.stmts(prog.Stmts)
	return pr.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (pr *printer) stmts(nodes []Node) {
	for i, n := range nodes {
		pr.sb.WriteString(strings.Repeat("  ", pr.indent))
		pr.stmt(n)
		// A statement opening with '(' would otherwise continue a call on
		// the previous line.
		if i+1 < len(nodes) && strings.HasPrefix(pr.stmtText(nodes[i+1]), "(") {
			pr.sb.WriteString(";")
		}
		pr.sb.WriteString("\n")
	}
}

func (pr *printer) body(nodes []Node) {
	pr.indent++
	pr.stmts(nodes)
	pr.indent--
}

func (pr *printer) line(s string) {
	pr.sb.WriteString(strings.Repeat("  ", pr.indent))
	pr.sb.WriteString(s)
}

func (pr *printer) stmt(n Node) {
	switch n := n.(type) {
	case *If:
		pr.sb.WriteString("if " + pr.expr(n.Cond) + "\n")
		pr.body(n.Then)
		if n.Else != nil {
			pr.line("else\n")
			pr.body(n.Else)
		}
		pr.line("done")
	case *While:
		pr.sb.WriteString("while " + pr.expr(n.Cond) + "\n")
		pr.body(n.Body)
		pr.line("done")
	case *For:
		head := "for " + n.Var + " = " + pr.expr(n.Start) + ", " + pr.expr(n.End)
		if n.Step != nil {
			head += ", " + pr.expr(n.Step)
		}
		pr.sb.WriteString(head + "\n")
		pr.body(n.Body)
		pr.line("done")
	case *Return:
		pr.sb.WriteString("return " + pr.expr(n.Value))
	case *FuncDef:
		pr.sb.WriteString("func " + n.Name + "(" + strings.Join(n.Params, ", ") + ") {\n")
		pr.body(n.Body)
		pr.line("}")
	case *Extern:
		pr.sb.WriteString("extern " + n.Name + "(" + strings.Join(n.Params, ", ") + ")")
	case *BinaryOp:
		if n.Op != "=" {
			pr.sb.WriteString(pr.expr(n))
			return
		}
		pr.sb.WriteString(pr.expr(n.Lhs) + " = " + pr.expr(n.Rhs))
	default:
		pr.sb.WriteString(pr.expr(n))
	}
}

// stmtText renders n as a statement at the current indentation.
func (pr *printer) stmtText(n Node) string {
	inner := printer{indent: pr.indent}
	inner.stmt(n)
	return inner.sb.String()
}

func (pr *printer) expr(n Node) string {
	switch n := n.(type) {
	case *Number:
		return strconv.FormatFloat(n.Value, 'f', -1, 64)
	case *Variable:
		return n.Name
	case *UnaryOp:
		return n.Op + " " + pr.expr(n.Operand)
	case *BinaryOp:
		return "(" + pr.expr(n.Lhs) + " " + n.Op + " " + pr.expr(n.Rhs) + ")"
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = pr.expr(a)
		}
		if n.Builtin {
			return "do(" + strings.Join(append([]string{n.Callee}, args...), ", ") + ")"
		}
		return n.Callee + "(" + strings.Join(args, ", ") + ")"
	case *Collection:
		elems := make([]string, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = pr.expr(e)
			// Elements are rvalues; a bare "not" would not parse back.
			if _, ok := e.(*UnaryOp); ok {
				elems[i] = "(" + elems[i] + ")"
			}
		}
		if n.Sequence {
			return "|" + strings.Join(elems, ", ") + "|"
		}
		return "[" + strings.Join(elems, ", ") + "]"
	case *FuncLit:
		var inner printer
		inner.indent = pr.indent + 1
		inner.stmts(n.Body)
		return "func(" + strings.Join(n.Params, ", ") + ") {\n" + inner.sb.String() +
			strings.Repeat("  ", pr.indent) + "}"
	case *If, *While, *For, *Return, *FuncDef, *Extern:
		return pr.stmtText(n)
	}
	return n.String()
}
