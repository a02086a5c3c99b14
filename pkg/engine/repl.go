package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"dolang/pkg/compiler"
)

// replName labels diagnostics raised by interactive input.
const replName = "<repl>"

// readPrompt is shown when a program calls read interactively.
const readPrompt = "read] "

// prompter is the slice of liner.State the REPL loop needs.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// REPL reads statements from the terminal until end of input. Each
// complete chunk is lowered and executed as its own unit; errors are
// reported and the session goes on.
func (e *Engine) REPL(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if path := e.cfg.HistoryFile; path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			f, err := os.Create(path)
			if err != nil {
				e.log.Debug().Err(err).Str("path", path).Msg("history not saved")
				return
			}
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}()
	}
	return e.repl(ctx, ln)
}

func (e *Engine) repl(ctx context.Context, p prompter) error {
	var mu sync.Mutex
	e.rt.Input = func() (io.Reader, error) {
		mu.Lock()
		defer mu.Unlock()
		line, err := p.Prompt(readPrompt)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return strings.NewReader(line), nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, prog, err := e.readChunk(p)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Fprintln(e.io.Out)
			return nil
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case err != nil:
			p.AppendHistory(oneLine(src))
			e.Report(replName, err)
			continue
		}
		if len(prog.Stmts) == 0 {
			continue
		}
		p.AppendHistory(oneLine(src))
		if _, err := e.Execute(ctx, prog); err != nil {
			e.Report(replName, err)
		}
	}
}

// readChunk prompts until the buffered lines parse or fail for a reason
// other than running out of input.
func (e *Engine) readChunk(p prompter) (string, *compiler.Program, error) {
	var b strings.Builder
	for {
		prompt := e.cfg.Prompt
		if b.Len() > 0 {
			prompt = e.cfg.ContinuationPrompt
		}
		line, err := p.Prompt(prompt)
		if err != nil {
			return b.String(), nil, err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		prog, err := compiler.Parse(src)
		if compiler.IsIncomplete(err) {
			continue
		}
		return src, prog, err
	}
}

func oneLine(src string) string { return strings.ReplaceAll(src, "\n", " ") }
