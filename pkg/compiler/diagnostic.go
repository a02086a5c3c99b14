package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a Diagnostic.
type ErrorKind int

const (
	LexicalError ErrorKind = iota
	SyntaxError
	NameError
	TypeError
	ArityError
	BackendError
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	case NameError:
		return "name error"
	case TypeError:
		return "type error"
	case ArityError:
		return "arity error"
	case BackendError:
		return "backend error"
	}
	return "error"
}

// Diagnostic is a user-facing parse or lowering failure tied to a source
// position. Incomplete is set when the failure was caused by running out
// of input, which lets an interactive caller ask for more lines.
type Diagnostic struct {
	Kind       ErrorKind
	Pos        Pos
	Msg        string
	Incomplete bool
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: error: %s", d.Pos, d.Msg)
}

// Format renders the diagnostic prefixed with a source name.
func (d *Diagnostic) Format(file string) string {
	if file == "" {
		return d.Error()
	}
	return file + ":" + d.Error()
}

func errorf(kind ErrorKind, pos Pos, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsIncomplete reports whether err is a diagnostic raised at end of input.
func IsIncomplete(err error) bool {
	var d *Diagnostic
	return errors.As(err, &d) && d.Incomplete
}
