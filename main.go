package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	"dolang/pkg/config"
	"dolang/pkg/engine"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// isTerminal reports whether s is a file attached to a terminal.
func isTerminal(s any) bool {
	f, ok := s.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// run is the whole command line: it returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dolang", flag.ContinueOnError)
	fs.SetOutput(stderr)
	optimize := fs.Bool("optimize", true, "run the IR optimizer on every unit")
	dump := fs.Bool("dump", false, "print the IR of every unit to stderr before running it")
	workers := fs.Int("workers", 0, "worker pool size for map and filter (default: config or CPU count)")
	cfgPath := fs.String("config", "", "YAML config file (default: "+config.DefaultFile+" if present)")
	verbose := fs.Bool("v", false, "debug logging")
	timeout := fs.Duration("timeout", 0, "abort a unit that runs longer than this")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dolang [flags] [file]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "optimize":
			cfg.Optimize = *optimize
		case "dump":
			cfg.Dump = *dump
		case "workers":
			cfg.Workers = *workers
		case "timeout":
			cfg.Timeout = *timeout
		}
	})
	if *verbose {
		cfg.LogLevel = "debug"
	}

	eng, err := engine.New(cfg, engine.IO{In: stdin, Out: stdout, Err: stderr},
		engine.Options{Color: isTerminal(stderr)})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	switch {
	case fs.NArg() == 1:
		err = eng.RunFile(ctx, fs.Arg(0))
	case isTerminal(stdin):
		// Ctrl-C is handled by the line editor while prompting.
		stop()
		err = eng.REPL(context.Background())
	default:
		err = eng.RunReader(ctx, "<stdin>", stdin)
	}
	if err != nil {
		return 1
	}
	if *verbose {
		fmt.Fprintf(stderr, "done in %s\n", time.Since(start).Round(time.Microsecond))
	}
	return 0
}
