// Package engine sequences the pipeline: parse a unit, lower it, verify,
// optimize, dump, and execute it. It runs whole files in batch mode and
// statement chunks in an interactive REPL.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"dolang/pkg/builtin"
	"dolang/pkg/compiler"
	"dolang/pkg/config"
	"dolang/pkg/ir"
	"dolang/pkg/vm"
)

// IO carries the three standard streams.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process streams.
func StdIO() IO { return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr} }

// Engine owns one session: a module, the machine executing it, the
// builtin runtime with its worker pool, and the lowering context.
type Engine struct {
	cfg      config.Config
	io       IO
	log      zerolog.Logger
	mod      *ir.Module
	machine  *vm.Machine
	rt       *builtin.Runtime
	cg       *compiler.CodeGen
	errorTag string
}

// Options tweak engine construction.
type Options struct {
	// Color enables colored diagnostics and logs.
	Color bool
	// Logger replaces the default console logger when non-nil.
	Logger *zerolog.Logger
}

// New builds an engine and starts its worker pool.
func New(cfg config.Config, stdio IO, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var log zerolog.Logger
	if opts.Logger != nil {
		log = *opts.Logger
	} else {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		w := zerolog.ConsoleWriter{
			Out:             stdio.Err,
			NoColor:         !opts.Color,
			FormatTimestamp: func(any) string { return "" },
		}
		log = zerolog.New(w).Level(level)
	}

	mod := ir.NewModule("do")
	machine := vm.New(mod)
	machine.MaxDepth = cfg.MaxCallDepth

	pool := builtin.NewPool(cfg.Workers)
	log.Debug().Int("workers", pool.Size()).Msg("worker pool started")
	rt := builtin.NewRuntime(pool)
	rt.Out = stdio.Out
	rt.Input = func() (io.Reader, error) { return stdio.In, nil }
	if err := rt.Register(mod, machine); err != nil {
		pool.Close()
		return nil, err
	}

	cg := compiler.NewCodeGen(mod)
	cg.SetExterns(builtin.HasExtern)

	tag := "error:"
	if opts.Color {
		c := color.New(color.FgRed, color.Bold)
		c.EnableColor()
		tag = c.Sprint("error:")
	}
	return &Engine{
		cfg:      cfg,
		io:       stdio,
		log:      log,
		mod:      mod,
		machine:  machine,
		rt:       rt,
		cg:       cg,
		errorTag: tag,
	}, nil
}

// Close drains the worker pool.
func (e *Engine) Close() error { return e.rt.Pool().Close() }

// Module returns the session module.
func (e *Engine) Module() *ir.Module { return e.mod }

// Machine returns the session machine.
func (e *Engine) Machine() *vm.Machine { return e.machine }

// Report writes err to the error stream as a one-line diagnostic.
func (e *Engine) Report(name string, err error) {
	var d *compiler.Diagnostic
	if errors.As(err, &d) {
		prefix := d.Pos.String()
		if name != "" {
			prefix = name + ":" + prefix
		}
		fmt.Fprintf(e.io.Err, "%s: %s %s\n", prefix, e.errorTag, d.Msg)
		return
	}
	if name != "" {
		fmt.Fprintf(e.io.Err, "%s: %s %v\n", name, e.errorTag, err)
		return
	}
	fmt.Fprintf(e.io.Err, "%s %v\n", e.errorTag, err)
}

// RunFile runs the program stored at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		e.Report("", err)
		return err
	}
	defer f.Close()
	return e.RunReader(ctx, path, f)
}

// RunReader parses everything from r as one program and runs it. Any
// failure is reported under name and returned.
func (e *Engine) RunReader(ctx context.Context, name string, r io.Reader) error {
	prog, err := compiler.NewParser(r).ParseProgram()
	if err != nil {
		e.Report(name, err)
		return err
	}
	if _, err := e.Execute(ctx, prog); err != nil {
		e.Report(name, err)
		return err
	}
	return nil
}

// Execute lowers prog as one unit, optionally optimizes and dumps it,
// then runs it and returns the unit's value. A unit that fails to lower
// is never executed.
func (e *Engine) Execute(ctx context.Context, prog *compiler.Program) (float64, error) {
	unit, err := e.cg.LowerProgram(prog)
	if err != nil {
		e.log.Debug().Err(err).Msg("unit rolled back")
		return 0, err
	}
	if e.cfg.Optimize {
		for _, fn := range unit.Funcs {
			st := ir.Optimize(fn)
			e.log.Debug().Str("function", fn.Name).Int("blocks", len(fn.Blocks)).
				Int("folded", st.Folded).Int("merged", st.Merged).Msg("optimized")
		}
	}
	if e.cfg.Dump {
		for _, fn := range unit.Funcs {
			fmt.Fprint(e.io.Err, ir.Dump(fn))
		}
	}
	entry, err := e.machine.EntryPoint(unit.Entry)
	if err != nil {
		e.cg.Rollback(unit)
		return 0, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	result, err := entry(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}
	e.log.Info().Float64("result", result).Dur("elapsed", elapsed).Msg("evaluates to")
	return result, nil
}
