package compiler

import "io"

// Compile parses a whole program from r and lowers it as one unit.
func (cg *CodeGen) Compile(r io.Reader) (*Program, *Unit, error) {
	prog, err := NewParser(r).ParseProgram()
	if err != nil {
		return nil, nil, err
	}
	unit, err := cg.LowerProgram(prog)
	if err != nil {
		return prog, nil, err
	}
	return prog, unit, nil
}
