// Package builtin provides the native functions every program can reach
// through do(name, ...): read, write, length, map, filter and fold. It
// also hosts the math and output functions a program may declare with
// extern.
package builtin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"dolang/pkg/ir"
	"dolang/pkg/vm"
)

// Builtin describes one native: its name and fixed signature.
type Builtin struct {
	Name   string
	Params []ir.Type
	Ret    ir.Type
	impl   func(rt *Runtime, ctx context.Context, args []vm.Value) (vm.Value, error)
}

var table = []Builtin{
	{Name: "read", Params: nil, Ret: ir.Collection, impl: (*Runtime).read},
	{Name: "write", Params: []ir.Type{ir.Collection}, Ret: ir.Void, impl: (*Runtime).write},
	{Name: "length", Params: []ir.Type{ir.Collection}, Ret: ir.Real, impl: (*Runtime).length},
	{Name: "map", Params: []ir.Type{ir.Func(1), ir.Collection}, Ret: ir.Collection, impl: (*Runtime).mapColl},
	{Name: "filter", Params: []ir.Type{ir.Func(1), ir.Collection}, Ret: ir.Collection, impl: (*Runtime).filter},
	{Name: "fold", Params: []ir.Type{ir.Func(2), ir.Collection}, Ret: ir.Real, impl: (*Runtime).fold},
}

// Table returns the builtin signatures in registration order.
func Table() []Builtin { return append([]Builtin(nil), table...) }

// Runtime holds what the builtins need at run time: where numbers are
// read from, where collections are written, the worker pool and the
// machine used to invoke callbacks.
type Runtime struct {
	// Input is called once per read and returns the stream to drain.
	Input func() (io.Reader, error)
	Out   io.Writer

	pool *Pool
	m    *vm.Machine
	mu   sync.Mutex // serializes writes to Out
}

// NewRuntime returns a runtime reading stdin and writing stdout.
func NewRuntime(pool *Pool) *Runtime {
	return &Runtime{
		Input: func() (io.Reader, error) { return os.Stdin, nil },
		Out:   os.Stdout,
		pool:  pool,
	}
}

// Pool returns the worker pool backing map and filter.
func (rt *Runtime) Pool() *Pool { return rt.pool }

// Register declares every builtin in mod and binds its body in m. Host
// functions are bound too but left for extern to declare.
func (rt *Runtime) Register(mod *ir.Module, m *vm.Machine) error {
	rt.m = m
	for _, b := range table {
		if _, err := mod.DeclareNative(b.Name, b.Params, b.Ret); err != nil {
			return fmt.Errorf("register %s: %w", b.Name, err)
		}
		impl := b.impl
		m.Bind(b.Name, func(ctx context.Context, args []vm.Value) (vm.Value, error) {
			return impl(rt, ctx, args)
		})
	}
	rt.bindHosts(m)
	return nil
}

// read drains the input and returns every whitespace separated number.
func (rt *Runtime) read(ctx context.Context, _ []vm.Value) (vm.Value, error) {
	r, err := rt.Input()
	if err != nil {
		return vm.Value{}, err
	}
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	nums := []float64{}
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return vm.Value{}, err
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return vm.Value{}, fmt.Errorf("invalid number %q", sc.Text())
		}
		nums = append(nums, v)
	}
	if err := sc.Err(); err != nil {
		return vm.Value{}, err
	}
	return vm.Coll(nums), nil
}

// FormatCollection renders c as "[ a, b, c ]" using six significant
// digits per element.
func FormatCollection(c []float64) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[ " + strings.Join(parts, ", ") + " ]"
}

func (rt *Runtime) write(_ context.Context, args []vm.Value) (vm.Value, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, err := fmt.Fprintln(rt.Out, FormatCollection(args[0].Coll))
	return vm.Value{}, err
}

func (rt *Runtime) length(_ context.Context, args []vm.Value) (vm.Value, error) {
	return vm.Real(float64(len(args[0].Coll))), nil
}

func callback(v vm.Value) (*ir.Function, error) {
	if v.Fn == nil {
		return nil, errors.New("callback is not a function")
	}
	return v.Fn, nil
}

// mapColl applies f to every element in parallel. Results keep the input
// order.
func (rt *Runtime) mapColl(ctx context.Context, args []vm.Value) (vm.Value, error) {
	f, err := callback(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	src := args[1].Coll
	out := make([]float64, len(src))
	err = rt.pool.Scatter(ctx, len(src), func(ctx context.Context, i int) error {
		v, err := rt.m.Call(ctx, f, []vm.Value{vm.Real(src[i])})
		if err != nil {
			return err
		}
		out[i] = v.Num
		return nil
	})
	if err != nil {
		return vm.Value{}, err
	}
	return vm.Coll(out), nil
}

// filter keeps the elements whose predicate result is non-zero, in their
// original order.
func (rt *Runtime) filter(ctx context.Context, args []vm.Value) (vm.Value, error) {
	f, err := callback(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	src := args[1].Coll
	keep := make([]bool, len(src))
	err = rt.pool.Scatter(ctx, len(src), func(ctx context.Context, i int) error {
		v, err := rt.m.Call(ctx, f, []vm.Value{vm.Real(src[i])})
		if err != nil {
			return err
		}
		keep[i] = math.Abs(v.Num) > 0
		return nil
	})
	if err != nil {
		return vm.Value{}, err
	}
	out := []float64{}
	for i, k := range keep {
		if k {
			out = append(out, src[i])
		}
	}
	return vm.Coll(out), nil
}

// fold is a sequential left fold seeded with 0.
func (rt *Runtime) fold(ctx context.Context, args []vm.Value) (vm.Value, error) {
	f, err := callback(args[0])
	if err != nil {
		return vm.Value{}, err
	}
	acc := 0.0
	for _, x := range args[1].Coll {
		v, err := rt.m.Call(ctx, f, []vm.Value{vm.Real(acc), vm.Real(x)})
		if err != nil {
			return vm.Value{}, err
		}
		acc = v.Num
	}
	return vm.Real(acc), nil
}
