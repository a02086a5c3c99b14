package vm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dolang/pkg/ir"
)

func entry(t *testing.T, m *ir.Module, name string) (*ir.Function, *ir.Builder) {
	t.Helper()
	fn, err := m.DeclareFunction(name, nil, ir.Real)
	if err != nil {
		t.Fatal(err)
	}
	b := ir.NewBuilder()
	b.SetInsertPoint(fn.AddBlock("entry"))
	return fn, b
}

func run(t *testing.T, mach *Machine, fn *ir.Function) (float64, error) {
	t.Helper()
	ep, err := mach.EntryPoint(fn)
	if err != nil {
		t.Fatalf("EntryPoint: %v", err)
	}
	return ep(context.Background())
}

func TestArithmeticAndLogic(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Builder) ir.Value
		want  float64
	}{
		{"Add", func(b *ir.Builder) ir.Value { return b.Arith(ir.OpAdd, b.Const(2), b.Const(3)) }, 5},
		{"Sub", func(b *ir.Builder) ir.Value { return b.Arith(ir.OpSub, b.Const(2), b.Const(3)) }, -1},
		{"Div", func(b *ir.Builder) ir.Value { return b.Arith(ir.OpDiv, b.Const(7), b.Const(2)) }, 3.5},
		{"Compare", func(b *ir.Builder) ir.Value {
			return b.ToReal(b.Compare(ir.PredLE, b.Const(2), b.Const(2)))
		}, 1},
		{"Xor", func(b *ir.Builder) ir.Value {
			return b.ToReal(b.Logic(ir.OpXor, b.ToBool(b.Const(5)), b.ToBool(b.Const(0))))
		}, 1},
		{"And", func(b *ir.Builder) ir.Value {
			return b.ToReal(b.Logic(ir.OpAnd, b.ToBool(b.Const(5)), b.ToBool(b.Const(0))))
		}, 0},
		{"Not", func(b *ir.Builder) ir.Value { return b.ToReal(b.Not(b.ToBool(b.Const(0)))) }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ir.NewModule("test")
			fn, b := entry(t, m, "f")
			b.Ret(tt.build(b))
			got, err := run(t, New(m), fn)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestLoop sums 1..10 with a slot-carried counter.
func TestLoop(t *testing.T) {
	m := ir.NewModule("test")
	fn, b := entry(t, m, "f")
	i := b.Alloca("i", ir.Real)
	sum := b.Alloca("sum", ir.Real)
	b.Store(i, b.Const(1))
	b.Store(sum, b.Const(0))
	cond := b.CreateBlock("cond")
	body := b.CreateBlock("body")
	after := b.CreateBlock("after")
	b.Br(cond)

	b.SetInsertPoint(cond)
	b.CondBr(b.Compare(ir.PredLE, b.Load(i), b.Const(10)), body, after)

	b.SetInsertPoint(body)
	b.Store(sum, b.Arith(ir.OpAdd, b.Load(sum), b.Load(i)))
	b.Store(i, b.Arith(ir.OpAdd, b.Load(i), b.Const(1)))
	b.Br(cond)

	b.SetInsertPoint(after)
	b.Ret(b.Load(sum))

	got, err := run(t, New(m), fn)
	if err != nil {
		t.Fatal(err)
	}
	if got != 55 {
		t.Errorf("expected 55, got %v", got)
	}
}

func TestGlobalsPersistAcrossUnits(t *testing.T) {
	m := ir.NewModule("test")
	mach := New(m)

	u0, b := entry(t, m, "unit.0")
	g := m.NewGlobal("g", ir.Real)
	b.Store(g, b.Const(41))
	b.Ret(b.Const(0))
	if _, err := run(t, mach, u0); err != nil {
		t.Fatal(err)
	}

	u1, b := entry(t, m, "unit.1")
	b.Ret(b.Arith(ir.OpAdd, b.Load(g), b.Const(1)))
	got, err := run(t, mach, u1)
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
	if v, ok := mach.Global("g"); !ok || v.Num != 41 {
		t.Errorf("expected global g = 41, got %v %v", v, ok)
	}
	if _, ok := mach.Global("missing"); ok {
		t.Errorf("expected missing global to be absent")
	}
}

func TestFunctionValuesAndNatives(t *testing.T) {
	m := ir.NewModule("test")
	mach := New(m)

	sum, _ := m.DeclareNative("sum", []ir.Type{ir.Collection}, ir.Real)
	mach.Bind("sum", func(_ context.Context, args []Value) (Value, error) {
		total := 0.0
		for _, v := range args[0].Coll {
			total += v
		}
		return Real(total), nil
	})

	double, _ := m.DeclareFunction("double", []ir.Type{ir.Real}, ir.Real)
	db := ir.NewBuilder()
	db.SetInsertPoint(double.AddBlock("entry"))
	db.Ret(db.Arith(ir.OpMul, double.Params[0], db.Const(2)))

	fn, b := entry(t, m, "f")
	slot := b.Alloca("fp", double.Type())
	b.Store(slot, double)
	x := b.CallIndirect(b.Load(slot), []ir.Value{b.Const(4)})
	coll := b.MakeCollection([]ir.Value{x, b.Const(1)})
	b.Ret(b.Call(sum, []ir.Value{coll}))

	got, err := run(t, mach, fn)
	if err != nil {
		t.Fatal(err)
	}
	if got != 9 {
		t.Errorf("expected 9, got %v", got)
	}

	v, err := mach.Call(context.Background(), double, []Value{Real(21)})
	if err != nil || v.Num != 42 {
		t.Errorf("expected Call to return 42, got %v %v", v, err)
	}
	if _, err := mach.Call(context.Background(), double, nil); err == nil {
		t.Errorf("expected arity error from Call")
	}
}

func TestNativeErrorsAreWrapped(t *testing.T) {
	m := ir.NewModule("test")
	mach := New(m)
	boom, _ := m.DeclareNative("boom", nil, ir.Real)
	mach.Bind("boom", func(context.Context, []Value) (Value, error) {
		return Value{}, errors.New("bad input")
	})
	fn, b := entry(t, m, "f")
	b.Ret(b.Call(boom, nil))

	_, err := run(t, mach, fn)
	var re *RuntimeError
	if !errors.As(err, &re) || re.Func != "boom" {
		t.Fatalf("expected RuntimeError from boom, got %v", err)
	}
	if err.Error() != "runtime error in @boom: bad input" {
		t.Errorf("unexpected message %q", err.Error())
	}

	unbound, _ := m.DeclareNative("unbound", nil, ir.Real)
	fn2, b2 := entry(t, m, "g")
	b2.Ret(b2.Call(unbound, nil))
	if _, err := run(t, mach, fn2); err == nil || !strings.Contains(err.Error(), "not bound") {
		t.Errorf("expected unbound native error, got %v", err)
	}
}

// TestStackOverflow builds a native that calls back into the function
// that called it, without end.
func TestStackOverflow(t *testing.T) {
	m := ir.NewModule("test")
	mach := New(m)
	mach.MaxDepth = 50

	again, _ := m.DeclareNative("again", nil, ir.Real)
	fn, b := entry(t, m, "f")
	b.Ret(b.Call(again, nil))
	mach.Bind("again", func(ctx context.Context, _ []Value) (Value, error) {
		return mach.Call(ctx, fn, nil)
	})

	_, err := run(t, mach, fn)
	if !errors.Is(err, ErrStackOverflow) {
		t.Errorf("expected ErrStackOverflow, got %v", err)
	}
}

func TestCancellation(t *testing.T) {
	m := ir.NewModule("test")
	fn, b := entry(t, m, "spin")
	loop := b.CreateBlock("loop")
	b.Br(loop)
	b.SetInsertPoint(loop)
	b.Br(loop)

	ep, err := New(m).EntryPoint(fn)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ep(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEntryPointChecks(t *testing.T) {
	m := ir.NewModule("test")
	mach := New(m)
	withParam, _ := m.DeclareFunction("p", []ir.Type{ir.Real}, ir.Real)
	if _, err := mach.EntryPoint(withParam); err == nil {
		t.Errorf("expected entry point with parameters to be rejected")
	}
	bad, b := entry(t, m, "bad")
	b.Arith(ir.OpAdd, b.Const(1), b.Const(1))
	if _, err := mach.EntryPoint(bad); err == nil {
		t.Errorf("expected unverifiable entry point to be rejected")
	}
}
