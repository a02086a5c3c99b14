package builtin

import (
	"context"
	"fmt"
	"math"
	"sort"

	"dolang/pkg/vm"
)

// host is a function a program may declare with "extern name(...)". Every
// parameter and the result are reals.
type host struct {
	arity int
	impl  func(rt *Runtime, args []float64) (float64, error)
}

func unary(f func(float64) float64) host {
	return host{arity: 1, impl: func(_ *Runtime, a []float64) (float64, error) { return f(a[0]), nil }}
}

func binary(f func(float64, float64) float64) host {
	return host{arity: 2, impl: func(_ *Runtime, a []float64) (float64, error) { return f(a[0], a[1]), nil }}
}

var hosts = map[string]host{
	"sin":    unary(math.Sin),
	"cos":    unary(math.Cos),
	"tan":    unary(math.Tan),
	"atan":   unary(math.Atan),
	"sqrt":   unary(math.Sqrt),
	"exp":    unary(math.Exp),
	"log":    unary(math.Log),
	"fabs":   unary(math.Abs),
	"floor":  unary(math.Floor),
	"ceil":   unary(math.Ceil),
	"pow":    binary(math.Pow),
	"atan2":  binary(math.Atan2),
	"printd": {arity: 1, impl: (*Runtime).printd},
}

// HasExtern reports whether name is a host function taking arity reals.
func HasExtern(name string, arity int) bool {
	h, ok := hosts[name]
	return ok && h.arity == arity
}

// Externs returns the host function names as "name/arity", sorted.
func Externs() []string {
	names := make([]string, 0, len(hosts))
	for name, h := range hosts {
		names = append(names, fmt.Sprintf("%s/%d", name, h.arity))
	}
	sort.Strings(names)
	return names
}

// printd writes its argument as a single byte followed by a newline and
// returns that byte.
func (rt *Runtime) printd(args []float64) (float64, error) {
	c := byte(int64(args[0]))
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, err := rt.Out.Write([]byte{c, '\n'}); err != nil {
		return 0, err
	}
	return float64(c), nil
}

// bindHosts binds every host function in m. They are declared in a
// module only when a program names them with extern.
func (rt *Runtime) bindHosts(m *vm.Machine) {
	for name, h := range hosts {
		m.Bind(name, func(_ context.Context, args []vm.Value) (vm.Value, error) {
			nums := make([]float64, len(args))
			for i, a := range args {
				nums[i] = a.Num
			}
			v, err := h.impl(rt, nums)
			if err != nil {
				return vm.Value{}, err
			}
			return vm.Real(v), nil
		})
	}
}
