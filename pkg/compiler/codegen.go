package compiler

import (
	"errors"
	"fmt"

	"dolang/pkg/ir"
)

var arithOps = map[string]ir.Op{
	"+": ir.OpAdd,
	"-": ir.OpSub,
	"*": ir.OpMul,
	"/": ir.OpDiv,
}

var comparePreds = map[string]ir.Pred{
	"==": ir.PredEQ,
	"!=": ir.PredNE,
	"<":  ir.PredLT,
	">":  ir.PredGT,
	"<=": ir.PredLE,
	">=": ir.PredGE,
}

var logicOps = map[string]ir.Op{
	"and": ir.OpAnd,
	"or":  ir.OpOr,
	"xor": ir.OpXor,
}

// CodeGen lowers programs into an ir.Module. It owns everything lowering
// needs: the scope stack, the builder and the counters used to name
// units and function literals. One CodeGen serves a whole session so that
// globals and function names persist from one unit to the next.
type CodeGen struct {
	mod    *ir.Module
	b      *ir.Builder
	scopes *Scopes

	nextUnit int
	nextFunc int

	// literalDepth > 0 while lowering a function literal body.
	literalDepth int
	// created collects the functions added by the unit being lowered.
	created []*ir.Function

	externs func(name string, arity int) bool
}

// Unit is the result of lowering one program: its entry function plus
// every function it created, entry included.
type Unit struct {
	Entry *ir.Function
	Funcs []*ir.Function

	// state before the unit, for Rollback
	mark    int
	globals int
}

func NewCodeGen(mod *ir.Module) *CodeGen {
	return &CodeGen{mod: mod, b: ir.NewBuilder(), scopes: NewScopes()}
}

// Module returns the module being lowered into.
func (cg *CodeGen) Module() *ir.Module { return cg.mod }

// Scopes exposes the scope stack for inspection.
func (cg *CodeGen) Scopes() *Scopes { return cg.scopes }

// SetExterns installs the check "extern name(...)" declarations are
// validated against. Without one every extern is rejected.
func (cg *CodeGen) SetExterns(known func(name string, arity int) bool) { cg.externs = known }

// Rollback undoes a unit that lowered successfully but will not run. It
// is only valid for the most recently lowered unit.
func (cg *CodeGen) Rollback(u *Unit) {
	for _, f := range u.Funcs {
		cg.mod.RemoveFunction(f.Name)
	}
	cg.mod.TruncateGlobals(u.globals)
	cg.scopes.rollback(u.mark)
}

func backendError(pos Pos, err error) *Diagnostic {
	return errorf(BackendError, pos, "%v", err)
}

// LowerProgram lowers prog into a new entry function. Lowering is all or
// nothing: on failure the functions and globals the unit introduced are
// removed again and earlier units are left as they were.
func (cg *CodeGen) LowerProgram(prog *Program) (unit *Unit, err error) {
	name := fmt.Sprintf("unit.%d", cg.nextUnit)
	cg.nextUnit++

	mark := cg.scopes.mark()
	globals := len(cg.mod.Globals)
	cg.created = nil
	defer func() {
		if err != nil {
			for _, f := range cg.created {
				cg.mod.RemoveFunction(f.Name)
			}
			cg.mod.TruncateGlobals(globals)
			cg.scopes.rollback(mark)
			cg.literalDepth = 0
		}
		cg.created = nil
		cg.b.SetInsertPoint(nil)
	}()

	fn, derr := cg.mod.DeclareFunction(name, nil, ir.Real)
	if derr != nil {
		return nil, backendError(Pos{Line: 1, Col: 1}, derr)
	}
	cg.created = append(cg.created, fn)
	cg.b.SetInsertPoint(fn.AddBlock("entry"))

	for _, stmt := range prog.Stmts {
		if _, err := cg.lower(stmt); err != nil {
			return nil, err
		}
	}
	if !cg.b.Terminated() {
		cg.b.Ret(cg.b.Const(0))
	}
	if verr := ir.Verify(fn); verr != nil {
		return nil, backendError(Pos{Line: 1, Col: 1}, verr)
	}
	return &Unit{
		Entry:   fn,
		Funcs:   append([]*ir.Function(nil), cg.created...),
		mark:    mark,
		globals: globals,
	}, nil
}

func (cg *CodeGen) lower(n Node) (ir.Value, error) {
	switch n := n.(type) {
	case *Number:
		return cg.b.Const(n.Value), nil
	case *Variable:
		return cg.lowerVariable(n)
	case *UnaryOp:
		return cg.lowerUnary(n)
	case *BinaryOp:
		if n.Op == "=" {
			return cg.lowerAssign(n)
		}
		return cg.lowerBinary(n)
	case *Call:
		return cg.lowerCall(n)
	case *Collection:
		return cg.lowerCollection(n)
	case *If:
		return cg.lowerIf(n)
	case *While:
		return cg.lowerWhile(n)
	case *For:
		return cg.lowerFor(n)
	case *FuncLit:
		return cg.lowerFuncLit(n)
	case *FuncDef:
		return cg.lowerFuncDef(n)
	case *Extern:
		return cg.lowerExtern(n)
	case *Return:
		return cg.lowerReturn(n)
	}
	return nil, errorf(TypeError, n.Position(), "unimplemented: %T", n)
}

// lowerVariable loads a visible slot. A name with no slot that names a
// module function yields that function as a value.
func (cg *CodeGen) lowerVariable(n *Variable) (ir.Value, error) {
	if slot, ok := cg.scopes.Lookup(n.Name); ok {
		return cg.b.Load(slot), nil
	}
	if fn := cg.mod.Function(n.Name); fn != nil {
		return cg.funcValue(fn), nil
	}
	return nil, errorf(NameError, n.Pos, "unknown variable %q", n.Name)
}

// funcValue passes fn through a temporary slot as a first-class value.
func (cg *CodeGen) funcValue(fn *ir.Function) ir.Value {
	tmp := cg.b.Alloca("functmp", fn.Type())
	cg.b.Store(tmp, fn)
	return cg.b.Load(tmp)
}

// lowerBody lowers stmts inside a freshly pushed frame.
func (cg *CodeGen) lowerBody(stmts []Node) error {
	cg.scopes.Push(cg.b.Function())
	defer cg.scopes.Pop()
	for _, s := range stmts {
		if _, err := cg.lower(s); err != nil {
			return err
		}
	}
	return nil
}

// real lowers n and insists on a real result.
func (cg *CodeGen) real(n Node, what string) (ir.Value, error) {
	v, err := cg.lower(n)
	if err != nil {
		return nil, err
	}
	if v.Type() != ir.Real {
		return nil, errorf(TypeError, n.Position(), "%s must be real, got %s", what, v.Type())
	}
	return v, nil
}

// condition lowers n and converts it to a bool (n != 0).
func (cg *CodeGen) condition(n Node) (ir.Value, error) {
	v, err := cg.real(n, "condition")
	if err != nil {
		return nil, err
	}
	return cg.b.ToBool(v), nil
}

func (cg *CodeGen) lowerUnary(n *UnaryOp) (ir.Value, error) {
	v, err := cg.real(n.Operand, "operand of '"+n.Op+"'")
	if err != nil {
		return nil, err
	}
	return cg.b.ToReal(cg.b.Not(cg.b.ToBool(v))), nil
}

func (cg *CodeGen) lowerBinary(n *BinaryOp) (ir.Value, error) {
	l, err := cg.lower(n.Lhs)
	if err != nil {
		return nil, err
	}
	r, err := cg.lower(n.Rhs)
	if err != nil {
		return nil, err
	}
	if l.Type() != ir.Real || r.Type() != ir.Real {
		return nil, errorf(TypeError, n.Pos, "operator '%s' needs real operands, got %s and %s", n.Op, l.Type(), r.Type())
	}
	if op, ok := arithOps[n.Op]; ok {
		return cg.b.Arith(op, l, r), nil
	}
	if pred, ok := comparePreds[n.Op]; ok {
		return cg.b.ToReal(cg.b.Compare(pred, l, r)), nil
	}
	if op, ok := logicOps[n.Op]; ok {
		return cg.b.ToReal(cg.b.Logic(op, cg.b.ToBool(l), cg.b.ToBool(r))), nil
	}
	return nil, errorf(SyntaxError, n.Pos, "unknown binary operator '%s'", n.Op)
}

// newSlot allocates storage for name in the innermost frame: a module
// global at top level, a local of the current function otherwise.
func (cg *CodeGen) newSlot(name string, ty ir.Type) *ir.Slot {
	if cg.scopes.Innermost().Global() {
		return cg.mod.NewGlobal(name, ty)
	}
	return cg.b.Alloca(name, ty)
}

// lowerAssign stores into the visible slot for the target, or creates one
// sized for the value. Inside a function literal a global is shadowed
// rather than written, so callbacks never mutate shared state.
func (cg *CodeGen) lowerAssign(n *BinaryOp) (ir.Value, error) {
	target, ok := n.Lhs.(*Variable)
	if !ok {
		return nil, errorf(TypeError, n.Lhs.Position(), "left-hand side of '=' must be a variable")
	}
	val, err := cg.lower(n.Rhs)
	if err != nil {
		return nil, err
	}
	ty := val.Type()
	if ty.Kind == ir.KindVoid {
		return nil, errorf(TypeError, n.Rhs.Position(), "cannot assign an expression without a value to %q", target.Name)
	}
	if slot, ok := cg.scopes.Lookup(target.Name); ok && !(slot.Global && cg.literalDepth > 0) {
		if slot.Ty != ty {
			return nil, errorf(TypeError, n.Pos, "cannot assign %s to %q, which holds %s", ty, target.Name, slot.Ty)
		}
		cg.b.Store(slot, val)
		return val, nil
	}
	if cg.mod.Function(target.Name) != nil {
		return nil, errorf(NameError, target.Pos, "%q is a function", target.Name)
	}
	slot := cg.newSlot(target.Name, ty)
	if err := cg.scopes.Declare(target.Name, slot); err != nil {
		return nil, errorf(NameError, target.Pos, "%v", err)
	}
	cg.b.Store(slot, val)
	return val, nil
}

func (cg *CodeGen) lowerCall(n *Call) (ir.Value, error) {
	if n.Builtin {
		fn := cg.mod.Function(n.Callee)
		if fn == nil || !fn.Native {
			return nil, errorf(NameError, n.Pos, "unknown builtin %q", n.Callee)
		}
		args, err := cg.lowerArgs(n, fn.ParamTypes())
		if err != nil {
			return nil, err
		}
		return cg.b.Call(fn, args), nil
	}

	if slot, ok := cg.scopes.Lookup(n.Callee); ok {
		if slot.Ty.Kind != ir.KindFunc {
			return nil, errorf(TypeError, n.Pos, "%q is not a function, it holds %s", n.Callee, slot.Ty)
		}
		params := make([]ir.Type, slot.Ty.Arity)
		for i := range params {
			params[i] = ir.Real
		}
		args, err := cg.lowerArgs(n, params)
		if err != nil {
			return nil, err
		}
		return cg.b.CallIndirect(cg.b.Load(slot), args), nil
	}

	fn := cg.mod.Function(n.Callee)
	if fn == nil {
		return nil, errorf(NameError, n.Pos, "unknown function %q", n.Callee)
	}
	args, err := cg.lowerArgs(n, fn.ParamTypes())
	if err != nil {
		return nil, err
	}
	return cg.b.Call(fn, args), nil
}

// lowerArgs lowers the call's arguments and checks them against params.
func (cg *CodeGen) lowerArgs(n *Call, params []ir.Type) ([]ir.Value, error) {
	args := make([]ir.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := cg.lower(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if len(args) != len(params) {
		return nil, errorf(ArityError, n.Pos, "%s expects %d arguments, got %d", n.Callee, len(params), len(args))
	}
	for i, v := range args {
		if v.Type() != params[i] {
			return nil, errorf(TypeError, n.Args[i].Position(), "argument %d of %s: expected %s, got %s",
				i+1, n.Callee, params[i], v.Type())
		}
	}
	return args, nil
}

func (cg *CodeGen) lowerCollection(n *Collection) (ir.Value, error) {
	vals := make([]ir.Value, len(n.Elements))
	data := make([]float64, len(n.Elements))
	constant := true
	for i, e := range n.Elements {
		if _, nested := e.(*Collection); nested {
			return nil, errorf(TypeError, e.Position(), "unimplemented: nested collection literal")
		}
		v, err := cg.real(e, "collection element")
		if err != nil {
			return nil, err
		}
		vals[i] = v
		if c, ok := v.(*ir.Const); ok {
			data[i] = c.Val
		} else {
			constant = false
		}
	}
	if constant {
		return cg.b.ConstCollection(data), nil
	}
	return cg.b.MakeCollection(vals), nil
}

func (cg *CodeGen) lowerIf(n *If) (ir.Value, error) {
	cond, err := cg.condition(n.Cond)
	if err != nil {
		return nil, err
	}
	then := cg.b.CreateBlock("then")
	var els *ir.Block
	if n.Else != nil {
		els = cg.b.CreateBlock("else")
	}
	merge := cg.b.CreateBlock("ifcont")
	if els != nil {
		cg.b.CondBr(cond, then, els)
	} else {
		cg.b.CondBr(cond, then, merge)
	}

	cg.b.SetInsertPoint(then)
	if err := cg.lowerBody(n.Then); err != nil {
		return nil, err
	}
	if !cg.b.Terminated() {
		cg.b.Br(merge)
	}

	if els != nil {
		cg.b.SetInsertPoint(els)
		if err := cg.lowerBody(n.Else); err != nil {
			return nil, err
		}
		if !cg.b.Terminated() {
			cg.b.Br(merge)
		}
	}

	cg.b.SetInsertPoint(merge)
	return cg.b.Const(0), nil
}

func (cg *CodeGen) lowerWhile(n *While) (ir.Value, error) {
	head := cg.b.CreateBlock("loopstart")
	body := cg.b.CreateBlock("loop")
	after := cg.b.CreateBlock("afterloop")
	cg.b.Br(head)
	cg.b.SetInsertPoint(head)

	cg.scopes.Push(cg.b.Function())
	defer cg.scopes.Pop()

	cond, err := cg.condition(n.Cond)
	if err != nil {
		return nil, err
	}
	cg.b.CondBr(cond, body, after)

	cg.b.SetInsertPoint(body)
	for _, s := range n.Body {
		if _, err := cg.lower(s); err != nil {
			return nil, err
		}
	}
	if !cg.b.Terminated() {
		cg.b.Br(head)
	}
	cg.b.SetInsertPoint(after)
	return cg.b.Const(0), nil
}

// lowerFor emits a bottom-tested loop. The body always runs once; the end
// condition sees the variable before the step is added.
//
//	store i, start
//	br forbody
//	forbody:  ...; c = end; i = i + step; condbr c, forbody, forafter
//	forafter:
func (cg *CodeGen) lowerFor(n *For) (ir.Value, error) {
	start, err := cg.real(n.Start, "loop start")
	if err != nil {
		return nil, err
	}
	slot := cg.b.Alloca(n.Var, ir.Real)
	cg.b.Store(slot, start)

	cg.scopes.Push(cg.b.Function())
	defer cg.scopes.Pop()
	if err := cg.scopes.Declare(n.Var, slot); err != nil {
		return nil, errorf(NameError, n.Pos, "%v", err)
	}

	body := cg.b.CreateBlock("forbody")
	after := cg.b.CreateBlock("forafter")
	cg.b.Br(body)

	cg.b.SetInsertPoint(body)
	for _, s := range n.Body {
		if _, err := cg.lower(s); err != nil {
			return nil, err
		}
	}
	var step ir.Value = cg.b.Const(1)
	if n.Step != nil {
		if step, err = cg.real(n.Step, "loop step"); err != nil {
			return nil, err
		}
	}
	c, err := cg.condition(n.End)
	if err != nil {
		return nil, err
	}
	next := cg.b.Arith(ir.OpAdd, cg.b.Load(slot), step)
	cg.b.Store(slot, next)
	cg.b.CondBr(c, body, after)

	cg.b.SetInsertPoint(after)
	return cg.b.Const(0), nil
}

// lowerFuncLit emits the literal as a new function and yields it as a
// first-class value, passed through a temporary slot.
func (cg *CodeGen) lowerFuncLit(n *FuncLit) (ir.Value, error) {
	name := fmt.Sprintf("func.%d", cg.nextFunc)
	cg.nextFunc++
	fn, err := cg.mod.DeclareFunction(name, reals(len(n.Params)), ir.Real)
	if err != nil {
		return nil, backendError(n.Pos, err)
	}
	cg.created = append(cg.created, fn)
	for i, p := range n.Params {
		fn.Params[i].Name = p
	}

	if err := cg.lowerFuncBody(fn, n.Params, n.Body, n.Pos); err != nil {
		return nil, err
	}
	return cg.funcValue(fn), nil
}

// lowerFuncDef declares a named function before lowering its body, so
// the body may call itself.
func (cg *CodeGen) lowerFuncDef(n *FuncDef) (ir.Value, error) {
	if _, ok := cg.scopes.Lookup(n.Name); ok {
		return nil, errorf(NameError, n.Pos, "%q is already a variable", n.Name)
	}
	if cg.mod.Function(n.Name) != nil {
		return nil, errorf(NameError, n.Pos, "function %q is already defined", n.Name)
	}
	fn, err := cg.mod.DeclareFunction(n.Name, reals(len(n.Params)), ir.Real)
	if err != nil {
		return nil, backendError(n.Pos, err)
	}
	cg.created = append(cg.created, fn)
	for i, p := range n.Params {
		fn.Params[i].Name = p
	}
	if err := cg.lowerFuncBody(fn, n.Params, n.Body, n.Pos); err != nil {
		return nil, err
	}
	return cg.b.Const(0), nil
}

// lowerExtern declares a host function as a native. Declaring the same
// extern again is allowed.
func (cg *CodeGen) lowerExtern(n *Extern) (ir.Value, error) {
	arity := len(n.Params)
	if cg.externs == nil || !cg.externs(n.Name, arity) {
		return nil, errorf(NameError, n.Pos, "unknown extern %q with %d parameters", n.Name, arity)
	}
	if _, ok := cg.scopes.Lookup(n.Name); ok {
		return nil, errorf(NameError, n.Pos, "%q is already a variable", n.Name)
	}
	if fn := cg.mod.Function(n.Name); fn != nil {
		if fn.Native && len(fn.Params) == arity {
			return cg.b.Const(0), nil
		}
		return nil, errorf(NameError, n.Pos, "function %q is already defined", n.Name)
	}
	fn, err := cg.mod.DeclareNative(n.Name, reals(arity), ir.Real)
	if err != nil {
		return nil, backendError(n.Pos, err)
	}
	cg.created = append(cg.created, fn)
	for i, p := range n.Params {
		fn.Params[i].Name = p
	}
	return cg.b.Const(0), nil
}

func reals(n int) []ir.Type {
	ts := make([]ir.Type, n)
	for i := range ts {
		ts[i] = ir.Real
	}
	return ts
}

func (cg *CodeGen) lowerFuncBody(fn *ir.Function, params []string, body []Node, pos Pos) error {
	saved := cg.b.InsertBlock()
	cg.literalDepth++
	defer func() {
		cg.literalDepth--
		cg.b.SetInsertPoint(saved)
	}()

	cg.b.SetInsertPoint(fn.AddBlock("entry"))
	cg.scopes.Push(fn)
	defer cg.scopes.Pop()

	for i, p := range params {
		slot := cg.b.Alloca(p, ir.Real)
		if err := cg.scopes.Declare(p, slot); err != nil {
			if errors.Is(err, errDuplicate) {
				return errorf(NameError, pos, "duplicate parameter %q", p)
			}
			return errorf(NameError, pos, "%v", err)
		}
		cg.b.Store(slot, fn.Params[i])
	}
	for _, s := range body {
		if _, err := cg.lower(s); err != nil {
			return err
		}
	}
	if !cg.b.Terminated() {
		cg.b.Ret(cg.b.Const(0))
	}
	if err := ir.Verify(fn); err != nil {
		return backendError(pos, err)
	}
	return nil
}

func (cg *CodeGen) lowerReturn(n *Return) (ir.Value, error) {
	want := cg.b.Function().Ret
	v, err := cg.lower(n.Value)
	if err != nil {
		return nil, err
	}
	if v.Type() != want {
		return nil, errorf(TypeError, n.Value.Position(), "return value must be %s, got %s", want, v.Type())
	}
	cg.b.Ret(v)
	// Anything after a return is unreachable but still needs a block.
	cg.b.SetInsertPoint(cg.b.CreateBlock("afterret"))
	return v, nil
}
