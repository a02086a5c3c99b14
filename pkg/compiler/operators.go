package compiler

// OpCategory groups operators by how the parser and lowering treat them.
type OpCategory int

const (
	Assign OpCategory = iota
	Logic
	Arithmetic
	Compare
	Unary
)

func (c OpCategory) String() string {
	switch c {
	case Assign:
		return "assign"
	case Logic:
		return "logic"
	case Arithmetic:
		return "arith"
	case Compare:
		return "compare"
	case Unary:
		return "unary"
	}
	return "?"
}

// Operator is one entry of the operator table. Precedence is only
// meaningful for binary operators: higher binds tighter.
type Operator struct {
	Spelling   string
	Category   OpCategory
	Precedence int
}

// IsBinary reports whether the operator may appear between two operands.
func (o Operator) IsBinary() bool { return o.Category != Unary && o.Spelling != "" }

var operators = map[string]Operator{
	"=":   {"=", Assign, 2},
	"or":  {"or", Logic, 5},
	"xor": {"xor", Logic, 5},
	"and": {"and", Logic, 6},
	"==":  {"==", Compare, 9},
	"!=":  {"!=", Compare, 9},
	"<":   {"<", Compare, 10},
	">":   {">", Compare, 10},
	"<=":  {"<=", Compare, 10},
	">=":  {">=", Compare, 10},
	"+":   {"+", Arithmetic, 20},
	"-":   {"-", Arithmetic, 20},
	"*":   {"*", Arithmetic, 40},
	"/":   {"/", Arithmetic, 40},
	"not": {"not", Unary, 0},
}

// LookupOperator returns the table entry for spelling.
func LookupOperator(spelling string) (Operator, bool) {
	op, ok := operators[spelling]
	return op, ok
}
