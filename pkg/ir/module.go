package ir

import (
	"fmt"
	"strings"
)

// Block is a basic block: a straight run of instructions ending in a
// terminator.
type Block struct {
	Name   string
	Instrs []*Instr
	fn     *Function
}

// Parent returns the function owning the block.
func (b *Block) Parent() *Function { return b.fn }

// Terminator returns the block's final instruction if it is a terminator.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	if last := b.Instrs[len(b.Instrs)-1]; last.IsTerminator() {
		return last
	}
	return nil
}

// Succs returns the blocks control may flow to after b.
func (b *Block) Succs() []*Block {
	if t := b.Terminator(); t != nil {
		return t.Targets
	}
	return nil
}

// Function is either a native (body supplied by the executor) or a
// function with blocks. Blocks[0] is the entry block.
type Function struct {
	Name   string
	Params []*Param
	Ret    Type
	Blocks []*Block
	Slots  []*Slot
	Native bool

	nextID     int
	blockNames map[string]int
}

// Type is the function's type as a first-class value.
func (f *Function) Type() Type  { return Func(len(f.Params)) }
func (f *Function) Ref() string { return "@" + f.Name }

// ParamTypes returns the declared parameter types in order.
func (f *Function) ParamTypes() []Type {
	types := make([]Type, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Ty
	}
	return types
}

// NumValues is the number of result registers a frame of f needs.
func (f *Function) NumValues() int { return f.nextID }

// HasBody reports whether blocks have been added to f.
func (f *Function) HasBody() bool { return len(f.Blocks) > 0 }

// AddBlock appends a new block. Names are made unique within f.
func (f *Function) AddBlock(name string) *Block {
	if f.blockNames == nil {
		f.blockNames = make(map[string]int)
	}
	unique := name
	if n := f.blockNames[name]; n > 0 {
		unique = fmt.Sprintf("%s.%d", name, n)
	}
	f.blockNames[name]++
	b := &Block{Name: unique, fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) addSlot(name string, ty Type) *Slot {
	s := &Slot{Name: name, Ty: ty, Index: len(f.Slots), fn: f}
	f.Slots = append(f.Slots, s)
	return s
}

func sameSignature(f *Function, params []Type, ret Type) bool {
	if f.Ret != ret || len(f.Params) != len(params) {
		return false
	}
	for i, p := range f.Params {
		if p.Ty != params[i] {
			return false
		}
	}
	return true
}

// Module is the function table plus the session globals.
type Module struct {
	Name    string
	Globals []*Slot

	funcs map[string]*Function
	order []*Function
}

func NewModule(name string) *Module {
	return &Module{Name: name, funcs: make(map[string]*Function)}
}

// DeclareFunction returns the function called name, creating it if
// needed. Redeclaring with a different signature, or redeclaring a
// function that already has a body, is an error.
func (m *Module) DeclareFunction(name string, params []Type, ret Type) (*Function, error) {
	if f, ok := m.funcs[name]; ok {
		if !sameSignature(f, params, ret) {
			return nil, &Error{Func: name, Msg: "redefinition with mismatched signature"}
		}
		if f.HasBody() || f.Native {
			return nil, &Error{Func: name, Msg: "redefinition of function"}
		}
		return f, nil
	}
	f := &Function{Name: name, Ret: ret}
	for i, ty := range params {
		f.Params = append(f.Params, &Param{Name: fmt.Sprintf("a%d", i), Index: i, Ty: ty, fn: f})
	}
	m.funcs[name] = f
	m.order = append(m.order, f)
	return f, nil
}

// DeclareNative declares a function whose body the executor provides.
func (m *Module) DeclareNative(name string, params []Type, ret Type) (*Function, error) {
	f, err := m.DeclareFunction(name, params, ret)
	if err != nil {
		return nil, err
	}
	f.Native = true
	return f, nil
}

// Function looks up a declared function by name.
func (m *Module) Function(name string) *Function { return m.funcs[name] }

// Functions returns every declared function in declaration order.
func (m *Module) Functions() []*Function { return append([]*Function(nil), m.order...) }

// RemoveFunction drops name from the table.
func (m *Module) RemoveFunction(name string) {
	if _, ok := m.funcs[name]; !ok {
		return
	}
	delete(m.funcs, name)
	for i, f := range m.order {
		if f.Name == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// NewGlobal allocates a module-level slot.
func (m *Module) NewGlobal(name string, ty Type) *Slot {
	s := &Slot{Name: name, Ty: ty, Global: true, Index: len(m.Globals)}
	m.Globals = append(m.Globals, s)
	return s
}

// TruncateGlobals forgets every global allocated after the first n.
func (m *Module) TruncateGlobals(n int) {
	if n < len(m.Globals) {
		m.Globals = m.Globals[:n]
	}
}

func (m *Module) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; module %s\n", m.Name)
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "%s = global %s\n", g.Ref(), g.Ty)
	}
	for _, f := range m.order {
		sb.WriteString("\n")
		sb.WriteString(Dump(f))
	}
	return sb.String()
}
