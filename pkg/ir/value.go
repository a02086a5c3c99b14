package ir

import (
	"fmt"
	"strconv"
)

// Value is anything an instruction can take as an operand.
type Value interface {
	Type() Type
	Ref() string
}

// Const is an immediate Real or Bool.
type Const struct {
	Ty  Type
	Val float64
}

func (c *Const) Type() Type { return c.Ty }
func (c *Const) Ref() string {
	if c.Ty.Kind == KindBool {
		return strconv.FormatBool(c.Val != 0)
	}
	return strconv.FormatFloat(c.Val, 'g', -1, 64)
}

// Param is a function parameter.
type Param struct {
	Name  string
	Index int
	Ty    Type
	fn    *Function
}

func (p *Param) Type() Type  { return p.Ty }
func (p *Param) Ref() string { return "%" + p.Name }

// Slot is a mutable storage location. Global slots belong to the module
// and outlive any single function; the rest are per-activation locals.
type Slot struct {
	Name   string
	Ty     Type
	Global bool
	Index  int
	fn     *Function
}

func (s *Slot) Ref() string {
	if s.Global {
		return "@" + s.Name
	}
	return fmt.Sprintf("%%%s.%d", s.Name, s.Index)
}

// Op is an instruction opcode.
type Op int

const (
	OpConstColl    Op = iota // collection constant from Data
	OpMakeColl               // collection built from real Args
	OpLoad                   // read Slot
	OpStore                  // write Args[0] into Slot
	OpAdd                    // real arithmetic
	OpSub
	OpMul
	OpDiv
	OpCmp // real comparison by Pred, yields bool
	OpAnd // bool logic
	OpOr
	OpXor
	OpNot
	OpToBool       // real -> bool (x != 0)
	OpToReal       // bool -> real (0 or 1)
	OpCall         // direct call of Callee
	OpCallIndirect // call of the func value in Args[0]
	OpBr           // jump to Targets[0]
	OpCondBr       // Args[0] ? Targets[0] : Targets[1]
	OpRet          // return Args[0], or nothing for void
)

var opNames = [...]string{
	OpConstColl:    "constcoll",
	OpMakeColl:     "makecoll",
	OpLoad:         "load",
	OpStore:        "store",
	OpAdd:          "fadd",
	OpSub:          "fsub",
	OpMul:          "fmul",
	OpDiv:          "fdiv",
	OpCmp:          "fcmp",
	OpAnd:          "and",
	OpOr:           "or",
	OpXor:          "xor",
	OpNot:          "not",
	OpToBool:       "tobool",
	OpToReal:       "toreal",
	OpCall:         "call",
	OpCallIndirect: "call.indirect",
	OpBr:           "br",
	OpCondBr:       "condbr",
	OpRet:          "ret",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Pred is a comparison predicate for OpCmp.
type Pred int

const (
	PredEQ Pred = iota
	PredNE
	PredLT
	PredGT
	PredLE
	PredGE
)

var predNames = [...]string{"eq", "ne", "lt", "gt", "le", "ge"}

func (p Pred) String() string { return predNames[p] }

// Eval applies the predicate to two reals.
func (p Pred) Eval(a, b float64) bool {
	switch p {
	case PredEQ:
		return a == b
	case PredNE:
		return a != b
	case PredLT:
		return a < b
	case PredGT:
		return a > b
	case PredLE:
		return a <= b
	case PredGE:
		return a >= b
	}
	return false
}

// Instr is one instruction. Which fields are meaningful depends on Op.
type Instr struct {
	Op      Op
	ID      int // result register, -1 when the instruction yields nothing
	Ty      Type
	Args    []Value
	Slot    *Slot
	Pred    Pred
	Callee  *Function
	Targets []*Block
	Data    []float64
	block   *Block
}

func (i *Instr) Type() Type  { return i.Ty }
func (i *Instr) Ref() string { return fmt.Sprintf("%%%d", i.ID) }

// Block returns the block holding the instruction.
func (i *Instr) Block() *Block { return i.block }

// IsTerminator reports whether the instruction ends a block.
func (i *Instr) IsTerminator() bool {
	return i.Op == OpBr || i.Op == OpCondBr || i.Op == OpRet
}

// pure instructions can be dropped when their result is unused.
func (i *Instr) pure() bool {
	switch i.Op {
	case OpStore, OpCall, OpCallIndirect, OpBr, OpCondBr, OpRet:
		return false
	}
	return true
}
