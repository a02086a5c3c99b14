package ir

import "fmt"

// Verify checks the structural invariants of fn: every block ends in
// exactly one terminator, branch targets belong to fn, operands are
// defined in fn and have the types their instruction expects, and calls
// match their callee's signature. Dominance is not checked; the lowering
// engine keeps SSA values block-local and communicates through slots.
func Verify(fn *Function) error {
	if fn.Native {
		return nil
	}
	if !fn.HasBody() {
		return &Error{Func: fn.Name, Msg: "function has no body"}
	}
	owned := make(map[*Instr]bool)
	blocks := make(map[*Block]bool)
	for _, b := range fn.Blocks {
		blocks[b] = true
		for _, in := range b.Instrs {
			owned[in] = true
		}
	}
	v := verifier{fn: fn, owned: owned, blocks: blocks}
	for _, b := range fn.Blocks {
		if err := v.block(b); err != nil {
			return err
		}
	}
	return nil
}

type verifier struct {
	fn     *Function
	owned  map[*Instr]bool
	blocks map[*Block]bool
}

func (v *verifier) fail(b *Block, format string, args ...any) error {
	return &Error{Func: v.fn.Name, Block: b.Name, Msg: fmt.Sprintf(format, args...)}
}

func (v *verifier) block(b *Block) error {
	if b.fn != v.fn {
		return v.fail(b, "block belongs to another function")
	}
	if len(b.Instrs) == 0 {
		return v.fail(b, "empty block")
	}
	for idx, in := range b.Instrs {
		last := idx == len(b.Instrs)-1
		if in.IsTerminator() != last {
			if last {
				return v.fail(b, "block does not end in a terminator")
			}
			return v.fail(b, "%s before end of block", in.Op)
		}
		if in.block != b {
			return v.fail(b, "%s is linked to another block", in.Op)
		}
		if err := v.instr(b, in); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) operand(b *Block, in *Instr, val Value, want Type) error {
	switch x := val.(type) {
	case *Instr:
		if !v.owned[x] {
			return v.fail(b, "%s uses %s which is not defined in this function", in.Op, x.Ref())
		}
	case *Param:
		if x.fn != v.fn {
			return v.fail(b, "%s uses a parameter of another function", in.Op)
		}
	case nil:
		return v.fail(b, "%s has a nil operand", in.Op)
	}
	if val.Type() != want {
		return v.fail(b, "%s expects %s operand, got %s", in.Op, want, val.Type())
	}
	return nil
}

func (v *verifier) operands(b *Block, in *Instr, want Type, n int) error {
	if len(in.Args) != n {
		return v.fail(b, "%s expects %d operands, got %d", in.Op, n, len(in.Args))
	}
	for _, a := range in.Args {
		if err := v.operand(b, in, a, want); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) target(b *Block, t *Block) error {
	if t == nil || !v.blocks[t] {
		return v.fail(b, "branch to a block outside the function")
	}
	return nil
}

func (v *verifier) instr(b *Block, in *Instr) error {
	switch in.Op {
	case OpConstColl:
		return nil
	case OpMakeColl:
		return v.operands(b, in, Real, len(in.Args))
	case OpLoad, OpStore:
		s := in.Slot
		if s == nil {
			return v.fail(b, "%s without a slot", in.Op)
		}
		if !s.Global && s.fn != v.fn {
			return v.fail(b, "%s of a slot owned by another function", in.Op)
		}
		if in.Op == OpStore {
			return v.operands(b, in, s.Ty, 1)
		}
		return nil
	case OpAdd, OpSub, OpMul, OpDiv, OpCmp:
		return v.operands(b, in, Real, 2)
	case OpAnd, OpOr, OpXor:
		return v.operands(b, in, Bool, 2)
	case OpNot, OpToReal:
		return v.operands(b, in, Bool, 1)
	case OpToBool:
		return v.operands(b, in, Real, 1)
	case OpCall:
		if in.Callee == nil {
			return v.fail(b, "call without a callee")
		}
		if len(in.Args) != len(in.Callee.Params) {
			return v.fail(b, "call to @%s with %d arguments, want %d", in.Callee.Name, len(in.Args), len(in.Callee.Params))
		}
		for i, a := range in.Args {
			if err := v.operand(b, in, a, in.Callee.Params[i].Ty); err != nil {
				return err
			}
		}
		return nil
	case OpCallIndirect:
		if len(in.Args) == 0 {
			return v.fail(b, "indirect call without a callee")
		}
		if err := v.operand(b, in, in.Args[0], Func(len(in.Args)-1)); err != nil {
			return err
		}
		for _, a := range in.Args[1:] {
			if err := v.operand(b, in, a, Real); err != nil {
				return err
			}
		}
		return nil
	case OpBr:
		if len(in.Targets) != 1 {
			return v.fail(b, "br needs one target")
		}
		return v.target(b, in.Targets[0])
	case OpCondBr:
		if len(in.Targets) != 2 {
			return v.fail(b, "condbr needs two targets")
		}
		if err := v.operands(b, in, Bool, 1); err != nil {
			return err
		}
		if err := v.target(b, in.Targets[0]); err != nil {
			return err
		}
		return v.target(b, in.Targets[1])
	case OpRet:
		if v.fn.Ret.Kind == KindVoid {
			if len(in.Args) != 0 {
				return v.fail(b, "void function returns a value")
			}
			return nil
		}
		return v.operands(b, in, v.fn.Ret, 1)
	}
	return v.fail(b, "unknown opcode %s", in.Op)
}
