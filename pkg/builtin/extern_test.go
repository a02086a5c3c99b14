package builtin

import (
	"context"
	"math"
	"strings"
	"testing"

	"dolang/pkg/ir"
	"dolang/pkg/vm"
)

func TestHasExtern(t *testing.T) {
	tests := []struct {
		name  string
		arity int
		want  bool
	}{
		{"sqrt", 1, true},
		{"pow", 2, true},
		{"printd", 1, true},
		{"sqrt", 2, false},
		{"write", 1, false},
		{"nope", 0, false},
	}
	for _, tt := range tests {
		if got := HasExtern(tt.name, tt.arity); got != tt.want {
			t.Errorf("HasExtern(%q, %d): expected %v, got %v", tt.name, tt.arity, tt.want, got)
		}
	}
}

func TestExternsSorted(t *testing.T) {
	names := Externs()
	if len(names) != len(hosts) {
		t.Fatalf("expected %d externs, got %d", len(hosts), len(names))
	}
	if names[0] != "atan/1" || names[1] != "atan2/2" {
		t.Errorf("expected sorted names starting with atan/1, atan2/2, got %v", names[:2])
	}
}

// declare mirrors what an extern declaration does to the module.
func (h *harness) declare(t *testing.T, name string, arity int) *ir.Function {
	t.Helper()
	types := make([]ir.Type, arity)
	for i := range types {
		types[i] = ir.Real
	}
	fn, err := h.mod.DeclareNative(name, types, ir.Real)
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestHostFunctions(t *testing.T) {
	h := newHarness(t, "")
	tests := []struct {
		name string
		args []float64
		want float64
	}{
		{"sqrt", []float64{16}, 4},
		{"fabs", []float64{-2.5}, 2.5},
		{"floor", []float64{1.7}, 1},
		{"ceil", []float64{1.2}, 2},
		{"pow", []float64{2, 10}, 1024},
		{"atan2", []float64{0, 1}, 0},
		{"exp", []float64{0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := h.declare(t, tt.name, len(tt.args))
			args := make([]vm.Value, len(tt.args))
			for i, a := range tt.args {
				args[i] = vm.Real(a)
			}
			v, err := h.mach.Call(context.Background(), fn, args)
			if err != nil {
				t.Fatal(err)
			}
			if v.Num != tt.want {
				t.Errorf("expected %v, got %v", tt.want, v.Num)
			}
		})
	}
}

func TestPrintd(t *testing.T) {
	h := newHarness(t, "")
	fn := h.declare(t, "printd", 1)
	for _, c := range []float64{72, 105.9} {
		v, err := h.mach.Call(context.Background(), fn, []vm.Value{vm.Real(c)})
		if err != nil {
			t.Fatal(err)
		}
		if v.Num != math.Trunc(c) {
			t.Errorf("expected %v, got %v", math.Trunc(c), v.Num)
		}
	}
	if got := h.out.String(); got != "H\ni\n" {
		t.Errorf("expected %q, got %q", "H\ni\n", got)
	}
}

func TestHostAsCallback(t *testing.T) {
	h := newHarness(t, "")
	sqrt := h.declare(t, "sqrt", 1)
	v, err := h.call(t, "map", vm.FuncValue(sqrt), vm.Coll([]float64{1, 4, 9}))
	if err != nil {
		t.Fatal(err)
	}
	if got := FormatCollection(v.Coll); got != "[ 1, 2, 3 ]" {
		t.Errorf("expected %q, got %q", "[ 1, 2, 3 ]", got)
	}
}

func TestUndeclaredHostIsNotInModule(t *testing.T) {
	h := newHarness(t, "")
	for _, name := range Externs() {
		name = name[:strings.IndexByte(name, '/')]
		if h.mod.Function(name) != nil {
			t.Errorf("expected %s to stay undeclared until extern names it", name)
		}
	}
}
