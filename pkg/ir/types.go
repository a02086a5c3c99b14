// Package ir is the backend the lowering engine emits into: a module of
// functions made of basic blocks, a builder that appends instructions at
// an insertion point, a verifier, a small optimizer and a text dump.
//
// Values are typed. Real is the language's only scalar; Bool only exists
// between a comparison and its conversion back to Real; Collection is an
// immutable slice of reals; Func/N is a first-class function taking N
// reals and returning a real.
package ir

import "fmt"

// Kind is the coarse category of a Type.
type Kind int

const (
	KindVoid Kind = iota
	KindReal
	KindBool
	KindCollection
	KindFunc
)

// Type describes a value. Arity is only used by KindFunc.
type Type struct {
	Kind  Kind
	Arity int
}

var (
	Void       = Type{Kind: KindVoid}
	Real       = Type{Kind: KindReal}
	Bool       = Type{Kind: KindBool}
	Collection = Type{Kind: KindCollection}
)

// Func returns the type of a function value taking arity reals.
func Func(arity int) Type { return Type{Kind: KindFunc, Arity: arity} }

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindCollection:
		return "collection"
	case KindFunc:
		return fmt.Sprintf("func/%d", t.Arity)
	}
	return fmt.Sprintf("Type(%d)", int(t.Kind))
}

// Error is a backend failure: a bad declaration or a verifier finding.
type Error struct {
	Func  string
	Block string
	Msg   string
}

func (e *Error) Error() string {
	switch {
	case e.Block != "":
		return fmt.Sprintf("@%s/%s: %s", e.Func, e.Block, e.Msg)
	case e.Func != "":
		return fmt.Sprintf("@%s: %s", e.Func, e.Msg)
	}
	return e.Msg
}
