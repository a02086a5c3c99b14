package vm

import (
	"context"
	"errors"
	"fmt"

	"dolang/pkg/ir"
)

// frame is one activation: result registers, local slots and arguments.
type frame struct {
	regs  []Value
	slots []Value
	args  []Value
}

func (m *Machine) operand(fr *frame, v ir.Value) Value {
	switch x := v.(type) {
	case *ir.Const:
		return Value{Num: x.Val}
	case *ir.Instr:
		return fr.regs[x.ID]
	case *ir.Param:
		return fr.args[x.Index]
	case *ir.Function:
		return Value{Fn: x}
	}
	panic(fmt.Sprintf("vm: unknown operand %T", v))
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// checkEvery is how many block transitions run between context checks.
const checkEvery = 256

// run executes fn until it returns.
func (m *Machine) run(ctx context.Context, fn *ir.Function, args []Value, depth int) (Value, error) {
	if depth > m.MaxDepth {
		return Value{}, &RuntimeError{Func: fn.Name, Err: ErrStackOverflow}
	}
	if fn.Native {
		return m.invoke(ctx, fn, args, depth)
	}
	fr := &frame{
		regs:  make([]Value, fn.NumValues()),
		slots: make([]Value, len(fn.Slots)),
		args:  args,
	}
	blk := fn.Blocks[0]
	steps := 0
	for {
		var next *ir.Block
		for _, in := range blk.Instrs {
			arg := func(i int) Value { return m.operand(fr, in.Args[i]) }
			var out Value
			switch in.Op {
			case ir.OpConstColl:
				out = Value{Coll: in.Data}
			case ir.OpMakeColl:
				elems := make([]float64, len(in.Args))
				for i := range in.Args {
					elems[i] = arg(i).Num
				}
				out = Value{Coll: elems}
			case ir.OpLoad:
				if in.Slot.Global {
					out = m.globals[in.Slot.Index]
				} else {
					out = fr.slots[in.Slot.Index]
				}
			case ir.OpStore:
				if in.Slot.Global {
					m.globals[in.Slot.Index] = arg(0)
				} else {
					fr.slots[in.Slot.Index] = arg(0)
				}
			case ir.OpAdd:
				out.Num = arg(0).Num + arg(1).Num
			case ir.OpSub:
				out.Num = arg(0).Num - arg(1).Num
			case ir.OpMul:
				out.Num = arg(0).Num * arg(1).Num
			case ir.OpDiv:
				out.Num = arg(0).Num / arg(1).Num
			case ir.OpCmp:
				out.Num = b2f(in.Pred.Eval(arg(0).Num, arg(1).Num))
			case ir.OpAnd:
				out.Num = b2f(arg(0).Num != 0 && arg(1).Num != 0)
			case ir.OpOr:
				out.Num = b2f(arg(0).Num != 0 || arg(1).Num != 0)
			case ir.OpXor:
				out.Num = b2f((arg(0).Num != 0) != (arg(1).Num != 0))
			case ir.OpNot:
				out.Num = b2f(arg(0).Num == 0)
			case ir.OpToBool:
				out.Num = b2f(arg(0).Num != 0)
			case ir.OpToReal:
				out.Num = arg(0).Num
			case ir.OpCall, ir.OpCallIndirect:
				callee := in.Callee
				first := 0
				if in.Op == ir.OpCallIndirect {
					callee = arg(0).Fn
					first = 1
					if callee == nil {
						return Value{}, &RuntimeError{Func: fn.Name, Err: errors.New("call of an uninitialized function value")}
					}
				}
				callArgs := make([]Value, len(in.Args)-first)
				for i := range callArgs {
					callArgs[i] = arg(first + i)
				}
				res, err := m.invoke(ctx, callee, callArgs, depth+1)
				if err != nil {
					return Value{}, err
				}
				out = res
			case ir.OpBr:
				next = in.Targets[0]
			case ir.OpCondBr:
				if arg(0).Num != 0 {
					next = in.Targets[0]
				} else {
					next = in.Targets[1]
				}
			case ir.OpRet:
				if len(in.Args) == 0 {
					return Value{}, nil
				}
				return arg(0), nil
			default:
				return Value{}, &RuntimeError{Func: fn.Name, Err: fmt.Errorf("unknown opcode %s", in.Op)}
			}
			if in.ID >= 0 {
				fr.regs[in.ID] = out
			}
		}
		if next == nil {
			return Value{}, &RuntimeError{Func: fn.Name, Err: fmt.Errorf("fell off the end of block %s", blk.Name)}
		}
		steps++
		if steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Value{}, &RuntimeError{Func: fn.Name, Err: err}
			}
		}
		blk = next
	}
}
