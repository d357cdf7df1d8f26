// Package graph builds the solver's working representation (the design's
// AndersGraph / §4.4's inclusion-based fixed point): one Node per id,
// carrying its current points-to set, its Copy/GEP successor edges, and
// the pending Load/Store constraints and indirect-call entries still
// waiting on that node's points-to set to grow. It is deliberately
// decoupled from constraint.Cg — Cg is "the IR's view" (per-function,
// SSA-shaped); Graph is "the solver's view" (one flat id space, edges
// only, no notion of "function" left).
package graph

import (
	"github.com/andersctx/ctxanders/bitset"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/idmap"
)

// GEPEdge is a field-sensitive Copy successor: dest gains shift(pts(src)),
// clipped so each shifted member stays inside the allocation of the
// source member it came from (the design step 5, implemented via
// bitset.UnionShifted).
type GEPEdge struct {
	Dest idmap.ID
	Offs uint32
}

// Node is one id's worth of solver state.
type Node struct {
	Pts bitset.Set
	Delta bitset.Set // newly-added members since this node was last processed

	CopySucc map[idmap.ID]bool
	GEPSucc []GEPEdge

	// Loads are the Load constraints whose Src is this node, Stores the
	// Store constraints whose Dest is this node: every time Pts grows, each of pts(this)'s members gets a Copy edge
	// from/to the constraint's other endpoint (the design steps 3/4).
	Loads []constraint.Constraint
	Stores []constraint.Constraint

	// Indirect holds pending indirect-call entries keyed to this node as
	// the function-pointer id: every function object that enters Pts is a
	// newly-discovered callee.
	Indirect []constraint.IndirectCall

	// seenKeys dedups pending Load/Store additions by (kind,rep,rep,offs)
	// so the same constraint isn't re-queued twice after representative
	// changes collapse two originally-distinct constraints onto the same
	// key (the design step 4's "deduplicate by key").
	seenKeys map[constraint.Key]bool
}

func newNode() *Node {
	return &Node{Pts: bitset.New(), Delta: bitset.New(), CopySucc: make(map[idmap.ID]bool), seenKeys: make(map[constraint.Key]bool)}
}

// Graph is the whole-program solver graph: one Node per representative
// id and a reference to the owning idmap.Map for rep/merge queries. It
// holds no worklist state; the solver keeps its own worklist.
type Graph struct {
	Values *idmap.Map
	Nodes map[idmap.ID]*Node

	// FuncObjects mirrors constraint.Cg.FuncObjects for every function
	// folded into the program so far, letting the solver recognize a
	// newly-discovered points-to member as a callable function (the graph's
	// online indirect-call handling).
	FuncObjects map[idmap.ID]any

	// IntToPtrConsts mirrors constraint.Cg.IntToPtrConsts: every id whose
	// value node came from a constant IntToPtr expression, consulted by
	// alias.Alias to honor "either pointer is a constant IntToPtr" without
	// needing IR values at query time.
	IntToPtrConsts map[idmap.ID]bool
}

// New returns an empty Graph bound to values.
func New(values *idmap.Map) *Graph {
	return &Graph{Values: values, Nodes: make(map[idmap.ID]*Node), FuncObjects: make(map[idmap.ID]any), IntToPtrConsts: make(map[idmap.ID]bool)}
}

// node returns (creating if needed) the Node for id's current
// representative.
func (g *Graph) node(id idmap.ID) *Node {
	rep := g.Values.GetRep(id)
	n, ok := g.Nodes[rep]
	if !ok {
		n = newNode()
		g.Nodes[rep] = n
	}
	return n
}

// AddConstraint routes c into the graph: AddressOf seeds src directly
// into dest's Pts/Delta; Copy/GEP become successor edges; a Load attaches
// to its Src node's pending list and a Store to its Dest node's, since
// each only fires once that pointer node's Pts is non-empty (the design
// step 1's "Apply initial AddressOf
// constraints" + step 2's "build successor edges").
func (g *Graph) AddConstraint(c constraint.Constraint) {
	switch c.Kind {
	case constraint.AddressOf:
		dest := g.node(c.Dest)
		obj := g.Values.GetRep(c.Src) + idmap.ID(c.Offs)
		if dest.Pts.Add(uint32(obj)) {
			dest.Delta.Add(uint32(obj))
		}
	case constraint.Copy:
		src := g.node(c.Src)
		destRep := g.Values.GetRep(c.Dest)
		if c.Offs == 0 {
			src.CopySucc[destRep] = true
		} else {
			src.GEPSucc = append(src.GEPSucc, GEPEdge{Dest: destRep, Offs: c.Offs})
		}
	case constraint.Load:
		src := g.node(c.Src)
		key := constraint.KeyOf(c, g.Values.GetRep)
		if !src.seenKeys[key] {
			src.seenKeys[key] = true
			src.Loads = append(src.Loads, c)
		}
	case constraint.Store:
		dest := g.node(c.Dest)
		key := constraint.KeyOf(c, g.Values.GetRep)
		if !dest.seenKeys[key] {
			dest.seenKeys[key] = true
			dest.Stores = append(dest.Stores, c)
		}
	}
}

// AddIndirect registers a pending indirect callsite against its
// function-pointer node, so solving discovers new targets online as that node's Pts grows.
func (g *Graph) AddIndirect(ic constraint.IndirectCall) {
	n := g.node(ic.FuncPtr)
	n.Indirect = append(n.Indirect, ic)
}

// Merge unions the node states of a and b and returns the merged Node,
// stored under whichever id idmap.Map.Merge keeps as representative
// (union by rank, so that is not necessarily a). It
// is the solver's online/LCD/HCD cycle-collapse primitive (the design's
// "merge every node in the candidate SCC into one").
func (g *Graph) Merge(a, b idmap.ID) *Node {
	ra, rb := g.Values.GetRep(a), g.Values.GetRep(b)
	if ra == rb {
		return g.Nodes[ra]
	}
	na := g.Nodes[ra]
	nb := g.Nodes[rb]
	rep := g.Values.Merge(ra, rb)
	if na == nil {
		na = newNode()
	}
	if nb == nil {
		nb = newNode()
	}
	merged := &Node{
		Pts: na.Pts,
		Delta: na.Delta,
		CopySucc: na.CopySucc,
		seenKeys: na.seenKeys,
	}
	merged.Pts.UnionInPlace(nb.Pts)
	merged.Delta.UnionInPlace(nb.Delta)
	for k := range nb.CopySucc {
		merged.CopySucc[k] = true
	}
	merged.GEPSucc = append(na.GEPSucc, nb.GEPSucc...)
	merged.Loads = append(na.Loads, nb.Loads...)
	merged.Stores = append(na.Stores, nb.Stores...)
	merged.Indirect = append(na.Indirect, nb.Indirect...)
	for k := range nb.seenKeys {
		merged.seenKeys[k] = true
	}

	delete(g.Nodes, ra)
	delete(g.Nodes, rb)
	g.Nodes[rep] = merged

	// Relocate any function-object identity pinned to whichever of ra/rb
	// lost representative status, so FuncAt keeps resolving it by the new
	// representative (see FuncAt's GetRep-then-lookup).
	if fn, ok := g.FuncObjects[ra]; ok && ra != rep {
		delete(g.FuncObjects, ra)
		g.FuncObjects[rep] = fn
	}
	if fn, ok := g.FuncObjects[rb]; ok && rb != rep {
		delete(g.FuncObjects, rb)
		g.FuncObjects[rep] = fn
	}

	if g.IntToPtrConsts[ra] && ra != rep {
		delete(g.IntToPtrConsts, ra)
		g.IntToPtrConsts[rep] = true
	}
	if g.IntToPtrConsts[rb] && rb != rep {
		delete(g.IntToPtrConsts, rb)
		g.IntToPtrConsts[rep] = true
	}

	return merged
}

// Node exposes the (read-only, for callers outside this package) Node
// for id's representative, creating it lazily.
func (g *Graph) Node(id idmap.ID) *Node {
	return g.node(id)
}

// MapIn loads every constraint and indirect call of cg into the graph —
// the bridge from constraint-generation's Cg/CallInfo world into the
// solver's flat Graph ("Data flow: ... -> solved AndersGraph").
func (g *Graph) MapIn(cg *constraint.Cg) {
	for _, c := range cg.Constraints {
		g.AddConstraint(c)
	}
	for _, ic := range cg.PendingIndirect {
		g.AddIndirect(ic)
	}
	for obj, fn := range cg.FuncObjects {
		g.FuncObjects[obj] = fn
	}
	for id := range cg.IntToPtrConsts {
		g.IntToPtrConsts[id] = true
	}
}

// FuncAt reports the function whose object is obj's representative, if
// any.
func (g *Graph) FuncAt(obj idmap.ID) (any, bool) {
	fn, ok := g.FuncObjects[g.Values.GetRep(obj)]
	return fn, ok
}

// IsIntToPtrConst reports whether id's value node was created from a
// constant IntToPtr expression.
func (g *Graph) IsIntToPtrConst(id idmap.ID) bool {
	return g.IntToPtrConsts[g.Values.GetRep(id)]
}
