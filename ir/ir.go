// Package ir adapts github.com/llir/llvm's module representation to the
// shapes the rest of ctxanders expects: loading a module from disk,
// separating functions with bodies from external declarations, and
// locating the program's entry point.
package ir

import (
	"fmt"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"
)

// Program wraps a parsed module plus the two partitions constraint
// generation and call resolution need repeatedly: defined functions
// (Bodies) and declaration-only functions (External).
type Program struct {
	Module *ir.Module
	Bodies []*ir.Func
	External []*ir.Func
}

// Load parses the LLVM IR (textual .ll) file at path and partitions its
// functions into Bodies/External.
func Load(path string) (*Program, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("ir: parsing %s: %w", path, err)
	}
	return FromModule(m), nil
}

// FromModule partitions an already-parsed module.
func FromModule(m *ir.Module) *Program {
	p := &Program{Module: m}
	for _, fn := range m.Funcs {
		if len(fn.Blocks) == 0 {
			p.External = append(p.External, fn)
		} else {
			p.Bodies = append(p.Bodies, fn)
		}
	}
	return p
}

// EntryPoint returns the function named name (conventionally "main"),
// and whether one was found with a body (a declaration-only "main" is
// not a usable entry point).
func (p *Program) EntryPoint(name string) (*ir.Func, bool) {
	for _, fn := range p.Bodies {
		if fn.Name() == name {
			return fn, true
		}
	}
	return nil, false
}
