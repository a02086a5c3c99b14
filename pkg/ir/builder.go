package ir

import "fmt"

// Builder appends instructions at an insertion point, the way an LLVM
// IRBuilder does. Misuse (emitting without a block, or after the block's
// terminator) is a programming error and panics; type errors in user
// programs must be caught by the caller before emitting.
type Builder struct {
	block *Block
}

func NewBuilder() *Builder { return &Builder{} }

// SetInsertPoint makes b the block that receives new instructions.
func (b *Builder) SetInsertPoint(blk *Block) { b.block = blk }

// InsertBlock returns the current block, or nil.
func (b *Builder) InsertBlock() *Block { return b.block }

// Function returns the function of the current block, or nil.
func (b *Builder) Function() *Function {
	if b.block == nil {
		return nil
	}
	return b.block.fn
}

// Terminated reports whether the current block already ends in a
// terminator.
func (b *Builder) Terminated() bool {
	return b.block != nil && b.block.Terminator() != nil
}

// CreateBlock appends a new block to the current function without moving
// the insertion point.
func (b *Builder) CreateBlock(name string) *Block {
	fn := b.Function()
	if fn == nil {
		panic("ir: CreateBlock without an insertion point")
	}
	return fn.AddBlock(name)
}

func (b *Builder) emit(i *Instr) *Instr {
	if b.block == nil {
		panic("ir: emit without an insertion point")
	}
	if b.block.Terminator() != nil {
		panic(fmt.Sprintf("ir: emit %s into terminated block %s", i.Op, b.block.Name))
	}
	i.ID = -1
	if i.Ty.Kind != KindVoid {
		i.ID = b.block.fn.nextID
		b.block.fn.nextID++
	}
	i.block = b.block
	b.block.Instrs = append(b.block.Instrs, i)
	return i
}

// Const returns a real immediate. Nothing is emitted.
func (b *Builder) Const(v float64) *Const { return &Const{Ty: Real, Val: v} }

// ConstBool returns a bool immediate.
func (b *Builder) ConstBool(v bool) *Const {
	c := &Const{Ty: Bool}
	if v {
		c.Val = 1
	}
	return c
}

// ConstCollection materializes an immutable collection constant.
func (b *Builder) ConstCollection(data []float64) *Instr {
	return b.emit(&Instr{Op: OpConstColl, Ty: Collection, Data: append([]float64(nil), data...)})
}

// MakeCollection builds a collection from real values at run time.
func (b *Builder) MakeCollection(elems []Value) *Instr {
	return b.emit(&Instr{Op: OpMakeColl, Ty: Collection, Args: elems})
}

// Alloca allocates a local slot in the current function.
func (b *Builder) Alloca(name string, ty Type) *Slot {
	fn := b.Function()
	if fn == nil {
		panic("ir: Alloca without an insertion point")
	}
	return fn.addSlot(name, ty)
}

func (b *Builder) Load(s *Slot) *Instr {
	return b.emit(&Instr{Op: OpLoad, Ty: s.Ty, Slot: s})
}

func (b *Builder) Store(s *Slot, v Value) {
	b.emit(&Instr{Op: OpStore, Ty: Void, Slot: s, Args: []Value{v}})
}

// Arith emits OpAdd, OpSub, OpMul or OpDiv.
func (b *Builder) Arith(op Op, l, r Value) *Instr {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
	default:
		panic(fmt.Sprintf("ir: %s is not arithmetic", op))
	}
	return b.emit(&Instr{Op: op, Ty: Real, Args: []Value{l, r}})
}

func (b *Builder) Compare(p Pred, l, r Value) *Instr {
	return b.emit(&Instr{Op: OpCmp, Ty: Bool, Pred: p, Args: []Value{l, r}})
}

// Logic emits OpAnd, OpOr or OpXor over bools.
func (b *Builder) Logic(op Op, l, r Value) *Instr {
	switch op {
	case OpAnd, OpOr, OpXor:
	default:
		panic(fmt.Sprintf("ir: %s is not logical", op))
	}
	return b.emit(&Instr{Op: op, Ty: Bool, Args: []Value{l, r}})
}

func (b *Builder) Not(v Value) *Instr {
	return b.emit(&Instr{Op: OpNot, Ty: Bool, Args: []Value{v}})
}

// ToBool converts a real to bool by comparing it with zero.
func (b *Builder) ToBool(v Value) *Instr {
	return b.emit(&Instr{Op: OpToBool, Ty: Bool, Args: []Value{v}})
}

// ToReal converts a bool to 0.0 or 1.0.
func (b *Builder) ToReal(v Value) *Instr {
	return b.emit(&Instr{Op: OpToReal, Ty: Real, Args: []Value{v}})
}

// Call emits a direct call. The result has the callee's return type.
func (b *Builder) Call(fn *Function, args []Value) *Instr {
	return b.emit(&Instr{Op: OpCall, Ty: fn.Ret, Callee: fn, Args: args})
}

// CallIndirect calls a func value. User function values return real.
func (b *Builder) CallIndirect(callee Value, args []Value) *Instr {
	return b.emit(&Instr{Op: OpCallIndirect, Ty: Real, Args: append([]Value{callee}, args...)})
}

func (b *Builder) Br(target *Block) {
	b.emit(&Instr{Op: OpBr, Ty: Void, Targets: []*Block{target}})
}

func (b *Builder) CondBr(cond Value, then, els *Block) {
	b.emit(&Instr{Op: OpCondBr, Ty: Void, Args: []Value{cond}, Targets: []*Block{then, els}})
}

// Ret returns v, or nothing when v is nil.
func (b *Builder) Ret(v Value) {
	i := &Instr{Op: OpRet, Ty: Void}
	if v != nil {
		i.Args = []Value{v}
	}
	b.emit(i)
}
