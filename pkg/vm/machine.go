// Package vm executes functions of an ir.Module. It walks blocks the way
// a CPU walks instructions: fetch the block's instructions in order,
// execute, and follow the terminator to the next block.
package vm

import (
	"context"
	"errors"
	"fmt"

	"dolang/pkg/ir"
)

// DefaultMaxDepth bounds nested calls, including calls made by natives
// back into user functions.
const DefaultMaxDepth = 10000

// ErrStackOverflow is wrapped by the RuntimeError raised when calls nest
// deeper than the machine allows.
var ErrStackOverflow = errors.New("call stack overflow")

// Value is a runtime value. Which field is live follows from the IR type
// of whatever produced it: Num for real and bool, Coll for collections
// and Fn for function values.
type Value struct {
	Num  float64
	Coll []float64
	Fn   *ir.Function
}

func Real(v float64) Value           { return Value{Num: v} }
func Coll(elems []float64) Value     { return Value{Coll: elems} }
func FuncValue(f *ir.Function) Value { return Value{Fn: f} }

// Native implements a function declared with ir.Module.DeclareNative.
// Collections arrive as slices, which carry both pointer and length.
type Native func(ctx context.Context, args []Value) (Value, error)

// RuntimeError is a failure while executing Func.
type RuntimeError struct {
	Func string
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in @%s: %v", e.Func, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

type depthKey struct{}

// Machine runs code from one module. Globals live for as long as the
// machine. Call may be used from several goroutines at once provided none
// of them stores to globals, which the lowering engine guarantees for
// function literals.
type Machine struct {
	MaxDepth int

	mod     *ir.Module
	natives map[string]Native
	globals []Value
}

func New(mod *ir.Module) *Machine {
	return &Machine{MaxDepth: DefaultMaxDepth, mod: mod, natives: make(map[string]Native)}
}

// Bind supplies the body of the native function called name.
func (m *Machine) Bind(name string, fn Native) { m.natives[name] = fn }

// Global returns the current value of the module global called name.
func (m *Machine) Global(name string) (Value, bool) {
	for i := len(m.mod.Globals) - 1; i >= 0; i-- {
		if g := m.mod.Globals[i]; g.Name == name {
			if g.Index < len(m.globals) {
				return m.globals[g.Index], true
			}
			return Value{}, true
		}
	}
	return Value{}, false
}

// syncGlobals sizes global storage to the module. It must not run while
// code is executing.
func (m *Machine) syncGlobals() {
	if n := len(m.mod.Globals); n > len(m.globals) {
		m.globals = append(m.globals, make([]Value, n-len(m.globals))...)
	} else {
		m.globals = m.globals[:n]
	}
}

// EntryPoint verifies fn and returns a callable that runs it. fn must take
// no parameters; a void function yields 0.
func (m *Machine) EntryPoint(fn *ir.Function) (func(ctx context.Context) (float64, error), error) {
	if len(fn.Params) != 0 {
		return nil, &ir.Error{Func: fn.Name, Msg: "entry point takes parameters"}
	}
	if fn.Ret != ir.Real && fn.Ret != ir.Void {
		return nil, &ir.Error{Func: fn.Name, Msg: fmt.Sprintf("entry point returns %s", fn.Ret)}
	}
	if err := ir.Verify(fn); err != nil {
		return nil, err
	}
	return func(ctx context.Context) (float64, error) {
		m.syncGlobals()
		v, err := m.run(ctx, fn, nil, 0)
		return v.Num, err
	}, nil
}

// Call runs fn with args. Natives use it to invoke callbacks.
func (m *Machine) Call(ctx context.Context, fn *ir.Function, args []Value) (Value, error) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if fn == nil {
		return Value{}, &RuntimeError{Func: "?", Err: errors.New("call of an uninitialized function value")}
	}
	if len(args) != len(fn.Params) {
		return Value{}, &RuntimeError{Func: fn.Name, Err: fmt.Errorf("called with %d arguments, want %d", len(args), len(fn.Params))}
	}
	return m.invoke(ctx, fn, args, depth+1)
}

func (m *Machine) invoke(ctx context.Context, fn *ir.Function, args []Value, depth int) (Value, error) {
	if !fn.Native {
		return m.run(ctx, fn, args, depth)
	}
	nat, ok := m.natives[fn.Name]
	if !ok {
		return Value{}, &RuntimeError{Func: fn.Name, Err: errors.New("native function is not bound")}
	}
	v, err := nat(context.WithValue(ctx, depthKey{}, depth), args)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			return Value{}, err
		}
		return Value{}, &RuntimeError{Func: fn.Name, Err: err}
	}
	return v, nil
}
