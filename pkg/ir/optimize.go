package ir

// Stats counts what Optimize changed.
type Stats struct {
	Folded   int // instructions replaced by constants
	Branches int // conditional branches made unconditional
	Removed  int // unreachable blocks deleted
	Merged   int // blocks merged into their only predecessor
	Dead     int // unused pure instructions deleted
}

func (s Stats) changed() bool {
	return s.Folded+s.Branches+s.Removed+s.Merged+s.Dead > 0
}

func (s *Stats) add(o Stats) {
	s.Folded += o.Folded
	s.Branches += o.Branches
	s.Removed += o.Removed
	s.Merged += o.Merged
	s.Dead += o.Dead
}

// Optimize runs the local passes over fn until none of them changes
// anything.
func Optimize(fn *Function) Stats {
	var total Stats
	if fn.Native || !fn.HasBody() {
		return total
	}
	for {
		var round Stats
		round.Folded = foldConstants(fn)
		round.Branches = foldBranches(fn)
		round.Removed = removeUnreachable(fn)
		round.Merged = mergeBlocks(fn)
		round.Dead = removeDead(fn)
		if !round.changed() {
			return total
		}
		total.add(round)
	}
}

func constArgs(in *Instr) ([]float64, bool) {
	vals := make([]float64, len(in.Args))
	for i, a := range in.Args {
		c, ok := a.(*Const)
		if !ok {
			return nil, false
		}
		vals[i] = c.Val
	}
	return vals, true
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// fold computes in's result when all of its operands are constants.
func fold(in *Instr) (*Const, bool) {
	switch in.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpCmp, OpAnd, OpOr, OpXor, OpNot, OpToBool, OpToReal:
	default:
		return nil, false
	}
	v, ok := constArgs(in)
	if !ok {
		return nil, false
	}
	switch in.Op {
	case OpAdd:
		return &Const{Ty: Real, Val: v[0] + v[1]}, true
	case OpSub:
		return &Const{Ty: Real, Val: v[0] - v[1]}, true
	case OpMul:
		return &Const{Ty: Real, Val: v[0] * v[1]}, true
	case OpDiv:
		return &Const{Ty: Real, Val: v[0] / v[1]}, true
	case OpCmp:
		return &Const{Ty: Bool, Val: b2f(in.Pred.Eval(v[0], v[1]))}, true
	case OpAnd:
		return &Const{Ty: Bool, Val: b2f(v[0] != 0 && v[1] != 0)}, true
	case OpOr:
		return &Const{Ty: Bool, Val: b2f(v[0] != 0 || v[1] != 0)}, true
	case OpXor:
		return &Const{Ty: Bool, Val: b2f((v[0] != 0) != (v[1] != 0))}, true
	case OpNot:
		return &Const{Ty: Bool, Val: b2f(v[0] == 0)}, true
	case OpToBool:
		return &Const{Ty: Bool, Val: b2f(v[0] != 0)}, true
	default: // OpToReal
		return &Const{Ty: Real, Val: v[0]}, true
	}
}

// replaceUses rewrites every operand equal to old into repl.
func replaceUses(fn *Function, old *Instr, repl Value) {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			for i, a := range in.Args {
				if a == Value(old) {
					in.Args[i] = repl
				}
			}
		}
	}
}

func foldConstants(fn *Function) int {
	n := 0
	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for _, in := range b.Instrs {
			if c, ok := fold(in); ok {
				replaceUses(fn, in, c)
				n++
				continue
			}
			kept = append(kept, in)
		}
		b.Instrs = kept
	}
	return n
}

func foldBranches(fn *Function) int {
	n := 0
	for _, b := range fn.Blocks {
		t := b.Terminator()
		if t == nil || t.Op != OpCondBr {
			continue
		}
		c, ok := t.Args[0].(*Const)
		if !ok {
			continue
		}
		target := t.Targets[1]
		if c.Val != 0 {
			target = t.Targets[0]
		}
		t.Op = OpBr
		t.Args = nil
		t.Targets = []*Block{target}
		n++
	}
	return n
}

// removeUnreachable keeps only blocks reachable from the entry block,
// found with a worklist walk over successor edges.
func removeUnreachable(fn *Function) int {
	reachable := map[*Block]bool{fn.Blocks[0]: true}
	worklist := []*Block{fn.Blocks[0]}
	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]
		for _, s := range curr.Succs() {
			if !reachable[s] {
				reachable[s] = true
				worklist = append(worklist, s)
			}
		}
	}
	kept := fn.Blocks[:0]
	for _, b := range fn.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	removed := len(fn.Blocks) - len(kept)
	fn.Blocks = kept
	return removed
}

func predecessors(fn *Function) map[*Block][]*Block {
	preds := make(map[*Block][]*Block)
	for _, b := range fn.Blocks {
		for _, s := range b.Succs() {
			preds[s] = append(preds[s], b)
		}
	}
	return preds
}

// mergeBlocks folds a block into its predecessor when the predecessor
// jumps unconditionally to it and nothing else reaches it.
func mergeBlocks(fn *Function) int {
	n := 0
	for {
		preds := predecessors(fn)
		merged := false
		for _, b := range fn.Blocks {
			t := b.Terminator()
			if t == nil || t.Op != OpBr {
				continue
			}
			succ := t.Targets[0]
			if succ == b || succ == fn.Blocks[0] || len(preds[succ]) != 1 {
				continue
			}
			b.Instrs = b.Instrs[:len(b.Instrs)-1]
			for _, in := range succ.Instrs {
				in.block = b
			}
			b.Instrs = append(b.Instrs, succ.Instrs...)
			for i, other := range fn.Blocks {
				if other == succ {
					fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
					break
				}
			}
			n++
			merged = true
			break
		}
		if !merged {
			return n
		}
	}
}

func removeDead(fn *Function) int {
	n := 0
	for {
		used := make(map[*Instr]bool)
		for _, b := range fn.Blocks {
			for _, in := range b.Instrs {
				for _, a := range in.Args {
					if x, ok := a.(*Instr); ok {
						used[x] = true
					}
				}
			}
		}
		removed := 0
		for _, b := range fn.Blocks {
			kept := b.Instrs[:0]
			for _, in := range b.Instrs {
				if in.pure() && !used[in] {
					removed++
					continue
				}
				kept = append(kept, in)
			}
			b.Instrs = kept
		}
		if removed == 0 {
			return n
		}
		n += removed
	}
}
