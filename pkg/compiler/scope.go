package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dolang/pkg/ir"
)

var errDuplicate = errors.New("duplicate declaration")

// Frame is one level of the scope stack. The bottom frame is the session
// global frame and has no owning function; every other frame belongs to
// the IR function whose body pushed it.
type Frame struct {
	fn    *ir.Function
	vars  map[string]*ir.Slot
	order []string
}

// Global reports whether f is the session global frame.
func (f *Frame) Global() bool { return f.fn == nil }

// Scopes maps variable names to storage slots.
//
// Lookup searches innermost to outermost but only through frames the
// current function may see: its own frames and the global frame. A
// function literal therefore never reaches the locals of the code that
// defined it.
type Scopes struct {
	frames []*Frame
}

func NewScopes() *Scopes {
	return &Scopes{frames: []*Frame{{vars: make(map[string]*ir.Slot)}}}
}

// Push opens a frame owned by fn.
func (s *Scopes) Push(fn *ir.Function) {
	if fn == nil {
		panic("Push called without an owning function")
	}
	s.frames = append(s.frames, &Frame{fn: fn, vars: make(map[string]*ir.Slot)})
}

// Pop closes the innermost frame. The global frame is never popped.
func (s *Scopes) Pop() {
	if len(s.frames) == 1 {
		panic("Pop called on the global frame")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Depth is the number of open frames, including the global frame.
func (s *Scopes) Depth() int { return len(s.frames) }

// Innermost returns the frame new declarations go into.
func (s *Scopes) Innermost() *Frame { return s.frames[len(s.frames)-1] }

// Declare binds name in the innermost frame.
func (s *Scopes) Declare(name string, slot *ir.Slot) error {
	f := s.Innermost()
	if _, ok := f.vars[name]; ok {
		return fmt.Errorf("%w of %q", errDuplicate, name)
	}
	f.vars[name] = slot
	f.order = append(f.order, name)
	return nil
}

// Lookup returns the innermost visible slot bound to name.
func (s *Scopes) Lookup(name string) (*ir.Slot, bool) {
	cur := s.Innermost().fn
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if !f.Global() && f.fn != cur {
			continue
		}
		if slot, ok := f.vars[name]; ok {
			return slot, true
		}
	}
	return nil, false
}

// mark records how many globals are bound, for rollback.
func (s *Scopes) mark() int { return len(s.frames[0].order) }

// rollback unbinds the globals declared after mark and closes any frame
// left open above the global frame.
func (s *Scopes) rollback(mark int) {
	g := s.frames[0]
	for _, name := range g.order[mark:] {
		delete(g.vars, name)
	}
	g.order = g.order[:mark]
	s.frames = s.frames[:1]
}

// String returns a deterministically ordered dump of the stack.
func (s *Scopes) String() string {
	var sb strings.Builder
	for i, f := range s.frames {
		if f.Global() {
			sb.WriteString("Globals:\n")
		} else {
			fmt.Fprintf(&sb, "Frame %d (@%s):\n", i, f.fn.Name)
		}
		if len(f.vars) == 0 {
			sb.WriteString("  (empty)\n")
			continue
		}
		names := make([]string, 0, len(f.vars))
		for name := range f.vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			slot := f.vars[name]
			fmt.Fprintf(&sb, "  %-16s %s %s\n", name, slot.Ref(), slot.Ty)
		}
	}
	return sb.String()
}
