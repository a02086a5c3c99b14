package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"dolang/pkg/config"
)

type session struct {
	eng         *Engine
	out, errOut *bytes.Buffer
}

func newSession(t *testing.T, input string, modify func(c *config.Config)) *session {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	cfg.HistoryFile = ""
	if modify != nil {
		modify(&cfg)
	}
	s := &session{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	nop := zerolog.Nop()
	eng, err := New(cfg, IO{In: strings.NewReader(input), Out: s.out, Err: s.errOut}, Options{Logger: &nop})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	s.eng = eng
	return s
}

func (s *session) run(t *testing.T, src string) error {
	t.Helper()
	return s.eng.RunReader(context.Background(), "t.do", strings.NewReader(src))
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		input string
		out   string
	}{
		{"Write", "x = [1, 2, 3]\ndo(write, x)", "", "[ 1, 2, 3 ]\n"},
		{"Empty Collection", "do(write, do(filter, func(x) { return x > 9 }, [1, 2]))", "", "[  ]\n"},
		{"Map", "sq = func(x) { return x * x }\ndo(write, do(map, sq, [1, 2, 3, 4]))", "", "[ 1, 4, 9, 16 ]\n"},
		{"Filter", "do(write, do(filter, func(x) { return x > 2 }, [5, 1, 3, 2, 4]))", "", "[ 5, 3, 4 ]\n"},
		{"Fold", "s = do(fold, func(a, b) { return a + b }, [1, 2, 3, 4])\ndo(write, |s|)", "", "[ 10 ]\n"},
		{"Read", "xs = do(read)\ndo(write, |do(length, xs)|)\ndo(write, xs)", "4 5.5\n6", "[ 3 ]\n[ 4, 5.5, 6 ]\n"},
		{"For Loop", "s = 0\nfor i = 1, i < 4 s = s + i done\ndo(write, |s|)", "", "[ 10 ]\n"},
		{"For Step", "s = 0\nfor i = 10, i > 0, 0 - 3 s = s + 1 done\ndo(write, |s|)", "", "[ 5 ]\n"},
		{"For Tests After Body", "for i = 1, i < 3 do(write, |i|) done", "", "[ 1 ]\n[ 2 ]\n[ 3 ]\n"},
		{"For Body Runs Once", "for i = 10, i < 3 do(write, |i|) done", "", "[ 10 ]\n"},
		{"While", "n = 3\nwhile n do(write, |n|); n = n - 1 done", "", "[ 3 ]\n[ 2 ]\n[ 1 ]\n"},
		{"If Else", "x = 2\nif x > 5 do(write, [1]) else do(write, [0]) done", "", "[ 0 ]\n"},
		{"Function Values", "id = func(v) { return v }\nadd = func(a, b) { return a + b }\ndo(write, |add(2, 3), id(7)|)", "", "[ 5, 7 ]\n"},
		{"Loop Variable Shadows", "i = 100\nfor i = 0, i < 3 done\ndo(write, |i|)", "", "[ 100 ]\n"},
		{"Callback Keeps Globals", "g = 1\nf = func(x) { g = x; return g }\ny = f(5)\ndo(write, |g, y|)", "", "[ 1, 5 ]\n"},
		{"Named Recursion", "func fib(n) { if n < 2 return n done return fib(n - 1) + fib(n - 2) }\ndo(write, |fib(10)|)", "", "[ 55 ]\n"},
		{"Extern Math", "extern sqrt(x)\nextern pow(x, y)\ndo(write, |sqrt(16), pow(2, 3)|)", "", "[ 4, 8 ]\n"},
		{"Extern As Callback", "extern sqrt(x)\ndo(write, do(map, sqrt, [1, 4, 9]))", "", "[ 1, 2, 3 ]\n"},
		{"Printd", "extern printd(c)\nprintd(72); printd(105)", "", "H\ni\n"},
		{"Named Function As Value", "func inc(v) { return v + 1 }\ndo(write, do(map, inc, [1, 2]))", "", "[ 2, 3 ]\n"},
		{"Logic", "do(write, |(1 and 0), (1 or 0), (1 xor 1), (not 0), (2 == 2), (2 != 2)|)", "", "[ 0, 1, 0, 1, 1, 0 ]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, tt.input, nil)
			if err := s.run(t, tt.src); err != nil {
				t.Fatalf("run failed: %v\n%s", err, s.errOut.String())
			}
			if got := s.out.String(); got != tt.out {
				t.Errorf("expected output %q, got %q", tt.out, got)
			}
		})
	}
}

func TestExecuteResult(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Workers = 1
	logger := zerolog.New(&logs)
	eng, err := New(cfg, IO{In: strings.NewReader(""), Out: io.Discard, Err: io.Discard}, Options{Logger: &logger})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.RunReader(context.Background(), "t.do", strings.NewReader("x = 4\nreturn x * 2 + 2")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), `"result":10`) || !strings.Contains(logs.String(), "evaluates to") {
		t.Errorf("expected the unit value to be logged, got %s", logs.String())
	}
	if v, ok := eng.Machine().Global("x"); !ok || v.Num != 4 {
		t.Errorf("expected global x = 4, got %v %v", v, ok)
	}
}

func TestReportedErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		input  string
		stderr string
	}{
		{"Type Error", "a = 1\n  b = a + [2]", "", "t.do:2:9: error: operator '+' needs real operands, got real and collection\n"},
		{"Name Error", "y = x", "", "t.do:1:5: error: unknown variable \"x\"\n"},
		{"Syntax Error", "x = 1 +", "", "t.do:1:8: error: expected expression, got end of input\n"},
		{"Runtime Error", "do(write, do(read))", "1 two", "t.do: error: runtime error in @read: invalid number \"two\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, tt.input, nil)
			if err := s.run(t, tt.src); err == nil {
				t.Fatal("expected an error")
			}
			if got := s.errOut.String(); got != tt.stderr {
				t.Errorf("expected stderr %q, got %q", tt.stderr, got)
			}
		})
	}
}

func TestFailedUnitLeavesSessionIntact(t *testing.T) {
	s := newSession(t, "", nil)
	if err := s.run(t, "a = [1, 2]"); err != nil {
		t.Fatal(err)
	}
	if err := s.run(t, "b = 3\nc = a + b"); err == nil {
		t.Fatal("expected the second unit to fail")
	}
	if err := s.run(t, "b = [7]\ndo(write, a)\ndo(write, b)"); err != nil {
		t.Fatalf("expected b to be free again, got %v", err)
	}
	if got := s.out.String(); got != "[ 1, 2 ]\n[ 7 ]\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestNamedFunctionsPersist(t *testing.T) {
	s := newSession(t, "", nil)
	if err := s.run(t, "func sq(x) { return x * x }"); err != nil {
		t.Fatal(err)
	}
	if err := s.run(t, "func bad(x) { return x }\ny = bad([1])"); err == nil {
		t.Fatal("expected the second unit to fail")
	}
	if err := s.run(t, "func bad(x, y) { return x + y }\ndo(write, |sq(3), bad(1, 2)|)"); err != nil {
		t.Fatalf("expected bad to be free again, got %v", err)
	}
	if err := s.run(t, "func sq(x) { return x }"); err == nil {
		t.Error("expected redefinition to fail")
	}
	if got := s.out.String(); got != "[ 9, 3 ]\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestDumpAndUnoptimized(t *testing.T) {
	s := newSession(t, "", func(c *config.Config) {
		c.Dump = true
		c.Optimize = false
	})
	if err := s.run(t, "x = 1 + 2\ndo(write, |x|)"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s.errOut.String(), "define real @unit.0()") {
		t.Errorf("expected the unit to be dumped, got:\n%s", s.errOut.String())
	}
	if !strings.Contains(s.errOut.String(), "fadd 1, 2") {
		t.Errorf("expected unoptimized arithmetic in the dump, got:\n%s", s.errOut.String())
	}
	if s.out.String() != "[ 3 ]\n" {
		t.Errorf("unexpected output %q", s.out.String())
	}
}

func TestTimeout(t *testing.T) {
	s := newSession(t, "", func(c *config.Config) { c.Timeout = 20 * time.Millisecond })
	err := s.run(t, "while 1 done")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0
	if _, err := New(cfg, StdIO(), Options{}); err == nil {
		t.Errorf("expected invalid config to be rejected")
	}
}

// scripted feeds the REPL one entry per prompt: a line or an error.
type scripted struct {
	entries []any
	prompts []string
	history []string
}

func (s *scripted) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.entries) == 0 {
		return "", io.EOF
	}
	e := s.entries[0]
	s.entries = s.entries[1:]
	if err, ok := e.(error); ok {
		return "", err
	}
	return e.(string), nil
}

func (s *scripted) AppendHistory(item string) { s.history = append(s.history, item) }

func TestREPL(t *testing.T) {
	s := newSession(t, "", nil)
	p := &scripted{entries: []any{
		"double = func(a) {",
		"return a * 2 }",
		"do(write, |double(4)|)",
		"",
		liner.ErrPromptAborted,
		"y = [1] + 1",
		"do(write, do(read))",
		"3 4",
		"y = 5",
	}}
	if err := s.eng.repl(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	wantPrompts := []string{"do] ", "...] ", "do] ", "do] ", "do] ", "do] ", "do] ", "read] ", "do] ", "do] "}
	if strings.Join(p.prompts, "|") != strings.Join(wantPrompts, "|") {
		t.Errorf("expected prompts %q, got %q", wantPrompts, p.prompts)
	}
	wantHistory := []string{
		"double = func(a) { return a * 2 }",
		"do(write, |double(4)|)",
		"y = [1] + 1",
		"do(write, do(read))",
		"y = 5",
	}
	if strings.Join(p.history, "|") != strings.Join(wantHistory, "|") {
		t.Errorf("expected history %q, got %q", wantHistory, p.history)
	}
	if got := s.out.String(); got != "[ 8 ]\n[ 3, 4 ]\n\n" {
		t.Errorf("unexpected output %q", got)
	}
	if got := s.errOut.String(); got != "<repl>:1:9: error: operator '+' needs real operands, got collection and real\n" {
		t.Errorf("unexpected stderr %q", got)
	}
	if v, ok := s.eng.Machine().Global("y"); !ok || v.Num != 5 {
		t.Errorf("expected y to be declared by a later unit, got %v %v", v, ok)
	}
}

func TestREPLSyntaxErrorRecovers(t *testing.T) {
	s := newSession(t, "", nil)
	p := &scripted{entries: []any{"x = )", "do(write, [1])"}}
	if err := s.eng.repl(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s.errOut.String(), "<repl>:1:5: error:") {
		t.Errorf("expected a positioned syntax error, got %q", s.errOut.String())
	}
	if s.out.String() != "[ 1 ]\n\n" {
		t.Errorf("unexpected output %q", s.out.String())
	}
}
