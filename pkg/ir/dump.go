package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Dump renders fn as a text listing:
//
//	define real @func.0(real %x) {
//	  slot %x.0 real
//	entry:
//	  store %x.0, %x
//	  %0 = load %x.0
//	  %1 = fmul %0, 2
//	  ret %1
//	}
func Dump(fn *Function) string {
	var sb strings.Builder
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Ty.String() + " " + p.Ref()
	}
	sig := fmt.Sprintf("%s @%s(%s)", fn.Ret, fn.Name, strings.Join(params, ", "))
	if fn.Native {
		return "declare " + sig + "\n"
	}
	sb.WriteString("define " + sig + " {\n")
	for _, s := range fn.Slots {
		fmt.Fprintf(&sb, "  slot %s %s\n", s.Ref(), s.Ty)
	}
	for _, b := range fn.Blocks {
		sb.WriteString(b.Name + ":\n")
		for _, in := range b.Instrs {
			sb.WriteString("  " + formatInstr(in) + "\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func refs(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Ref()
	}
	return strings.Join(parts, ", ")
}

func formatInstr(in *Instr) string {
	var body string
	switch in.Op {
	case OpConstColl:
		nums := make([]string, len(in.Data))
		for i, d := range in.Data {
			nums[i] = strconv.FormatFloat(d, 'g', -1, 64)
		}
		body = fmt.Sprintf("constcoll [%s]", strings.Join(nums, ", "))
	case OpLoad:
		body = "load " + in.Slot.Ref()
	case OpStore:
		body = fmt.Sprintf("store %s, %s", in.Slot.Ref(), refs(in.Args))
	case OpCmp:
		body = fmt.Sprintf("fcmp %s %s", in.Pred, refs(in.Args))
	case OpCall:
		body = fmt.Sprintf("call @%s(%s)", in.Callee.Name, refs(in.Args))
	case OpCallIndirect:
		body = fmt.Sprintf("call.indirect %s(%s)", in.Args[0].Ref(), refs(in.Args[1:]))
	case OpBr:
		body = "br " + in.Targets[0].Name
	case OpCondBr:
		body = fmt.Sprintf("condbr %s, %s, %s", in.Args[0].Ref(), in.Targets[0].Name, in.Targets[1].Name)
	default:
		body = in.Op.String()
		if len(in.Args) > 0 {
			body += " " + refs(in.Args)
		}
	}
	if in.ID >= 0 {
		return in.Ref() + " = " + body
	}
	return body
}
