package main

import (
	"fmt"
	"os"
	"strings"

	"dolang/pkg/builtin"
	"dolang/pkg/compiler"
	"dolang/pkg/ir"
)

const sample = `sq = func(x) { return x * x }
xs = [1, 2, 3, 4]
total = do(fold, func(a, b) { return a + b }, do(map, sq, xs))
if total > 10
  do(write, |total|)
done
`

func main() {
	src := sample
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	// Parse and lower
	mod := ir.NewModule("stages")
	for _, b := range builtin.Table() {
		if _, err := mod.DeclareNative(b.Name, b.Params, b.Ret); err != nil {
			fmt.Fprintln(os.Stderr, "declare error:", err)
			os.Exit(1)
		}
	}
	cg := compiler.NewCodeGen(mod)
	cg.SetExterns(builtin.HasExtern)
	prog, unit, err := cg.Compile(strings.NewReader(src))
	if prog == nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("AST")
	for _, s := range prog.Stmts {
		fmt.Println(" ", s)
	}
	fmt.Println()

	fmt.Println("Printed")
	fmt.Print(compiler.Print(prog))
	fmt.Println()

	if err != nil {
		fmt.Fprintln(os.Stderr, "lowering error:", err)
		os.Exit(1)
	}

	fmt.Print(cg.Scopes())
	fmt.Println()

	fmt.Println("IR")
	for _, fn := range unit.Funcs {
		fmt.Print(ir.Dump(fn))
	}
	fmt.Println()

	fmt.Println("Optimized IR")
	for _, fn := range unit.Funcs {
		st := ir.Optimize(fn)
		fmt.Print(ir.Dump(fn))
		fmt.Printf("; folded=%d branches=%d removed=%d merged=%d dead=%d\n",
			st.Folded, st.Branches, st.Removed, st.Merged, st.Dead)
	}
}
