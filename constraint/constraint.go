// Package constraint implements constraint generation : for one
// function body at a time, it emits the minimal set of Load/Store/Copy/
// AddressOf constraints that soundly over-approximate pointer flow, and
// assembles them into a per-function constraint graph (Cg) together with
// call-site bookkeeping (CallInfo).
package constraint

import (
	"fmt"

	"github.com/andersctx/ctxanders/idmap"
)

// Kind tags the four constraint forms the design defines. Constraint is one
// flat struct rather than four interface-satisfying types: the design
// explicitly calls for "a tagged variant with four cases; no vtable
// required", so dispatch in the solver is a type switch on Kind, not a
// dynamic method call.
type Kind uint8

const (
	// AddressOf: pts(dest) ⊇ {src + offs}; src must be an object id.
	AddressOf Kind = iota
	// Copy: pts(dest) ⊇ {x+offs | x ∈ pts(src)\{Int,Null}}. offs==0 is a
	// plain inclusion edge; offs!=0 is a GEP (field-sensitive copy).
	Copy
	// Load: pts(dest) ⊇ ∪{pts(y) | y ∈ pts(src)}.
	Load
	// Store: ∀y ∈ pts(dest). pts(y) ⊇ pts(src).
	Store
)

func (k Kind) String() string {
	switch k {
	case AddressOf:
		return "addr-of"
	case Copy:
		return "copy"
	case Load:
		return "load"
	case Store:
		return "store"
	default:
		return "?"
	}
}

// Constraint is the (kind, src, dest, offs) tuple of the design. Every valid
// constraint references existing ids, and a constraint may never name
// NullValue as its Dest (the solver assumes nothing is ever written into
// null — enforced at construction time in cg.go, not here, so that the
// panic carries call-site context).
type Constraint struct {
	Kind Kind
	Src idmap.ID
	Dest idmap.ID
	Offs uint32 // field-slot offset; only meaningful for Copy (GEP) and AddressOf
}

func (c Constraint) String() string {
	switch c.Kind {
	case AddressOf:
		return fmt.Sprintf("n%d = &n%d+%d", c.Dest, c.Src, c.Offs)
	case Copy:
		if c.Offs == 0 {
			return fmt.Sprintf("n%d = n%d", c.Dest, c.Src)
		}
		return fmt.Sprintf("n%d = gep n%d+%d", c.Dest, c.Src, c.Offs)
	case Load:
		return fmt.Sprintf("n%d = *n%d", c.Dest, c.Src)
	case Store:
		return fmt.Sprintf("*n%d = n%d", c.Dest, c.Src)
	default:
		return "?"
	}
}

// Key identifies a constraint up to representative-renaming, used by the
// solver's step-4 "deduplicate by (kind, rep(src), rep(dest), offs)" rule.
type Key struct {
	Kind Kind
	Src idmap.ID
	Dest idmap.ID
	Offs uint32
}

// KeyOf returns c's dedup key, resolving Src/Dest to their current
// representative via rep.
func KeyOf(c Constraint, rep func(idmap.ID) idmap.ID) Key {
	return Key{Kind: c.Kind, Src: rep(c.Src), Dest: rep(c.Dest), Offs: c.Offs}
}
