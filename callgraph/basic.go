// Package callgraph builds the static call graph (BasicFcnCFG), identifies
// its strongly connected components, and tracks the context-sensitive
// call-site CFG fragments (CsFcnCFG) that constraint.Cg nodes attach to
// (CsCFG / BasicFcnCFG / CsFcnCFG row, ~8% of budget).
package callgraph

import (
	"github.com/llir/llvm/ir"
)

// BasicFcnCFG is the whole program's static, direct-call-only call graph:
// an edge caller->callee exists whenever caller's body contains a direct
// call/invoke to callee. Indirect callsites contribute no static edge
// (indirect calls are either resolved against an oracle, up
// front, or deferred to the solver).
type BasicFcnCFG struct {
	funcs []*ir.Func
	index map[*ir.Func]int
	succs [][]int // adjacency by BasicFcnCFG-local index
	sccOf []int // filled by computeSCCs
	sccList [][]*ir.Func
}

// NewBasicFcnCFG builds the static call graph for every function in mod
// that has a body (declarations contribute no edges of their own, though
// they may be callees).
func NewBasicFcnCFG(mod *ir.Module) *BasicFcnCFG {
	g := &BasicFcnCFG{index: make(map[*ir.Func]int)}
	addFunc := func(fn *ir.Func) int {
		if i, ok := g.index[fn]; ok {
			return i
		}
		i := len(g.funcs)
		g.funcs = append(g.funcs, fn)
		g.index[fn] = i
		g.succs = append(g.succs, nil)
		return i
	}
	for _, fn := range mod.Funcs {
		addFunc(fn)
	}
	for _, fn := range mod.Funcs {
		ci := g.index[fn]
		for _, block := range fn.Blocks {
			for _, instr := range block.Insts {
				callee := staticCallee(instr)
				if callee == nil {
					continue
				}
				cj := addFunc(callee)
				g.succs[ci] = append(g.succs[ci], cj)
			}
			if callee := staticCallee(block.Term); callee != nil {
				cj := addFunc(callee)
				g.succs[ci] = append(g.succs[ci], cj)
			}
		}
	}
	g.computeSCCs()
	return g
}

// staticCallee returns the directly-called function of instr, or nil if
// instr is not a call/invoke, or is a call through a non-function value
// (an indirect call).
func staticCallee(instr any) *ir.Func {
	switch i := instr.(type) {
	case *ir.InstCall:
		if fn, ok := i.Callee.(*ir.Func); ok {
			return fn
		}
	case *ir.TermInvoke:
		if fn, ok := i.Callee.(*ir.Func); ok {
			return fn
		}
	}
	return nil
}

// Index returns fn's BasicFcnCFG-local index, adding it if unseen.
func (g *BasicFcnCFG) Index(fn *ir.Func) int {
	if i, ok := g.index[fn]; ok {
		return i
	}
	i := len(g.funcs)
	g.funcs = append(g.funcs, fn)
	g.index[fn] = i
	g.succs = append(g.succs, nil)
	g.sccOf = append(g.sccOf, -1)
	return i
}

// SCCOf returns the strongly-connected-component id containing fn.
func (g *BasicFcnCFG) SCCOf(fn *ir.Func) int {
	i, ok := g.index[fn]
	if !ok {
		return -1
	}
	return g.sccOf[i]
}

// SameSCC reports whether a and b belong to the same SCC (a
// direct call within the current SCC is "cyclic"; outside it, "acyclic").
func (g *BasicFcnCFG) SameSCC(a, b *ir.Func) bool {
	sa, sb := g.SCCOf(a), g.SCCOf(b)
	return sa >= 0 && sa == sb
}

// SCCMembers returns every function in the same SCC as fn, including fn.
func (g *BasicFcnCFG) SCCMembers(fn *ir.Func) []*ir.Func {
	id := g.SCCOf(fn)
	if id < 0 {
		return []*ir.Func{fn}
	}
	return g.sccList[id]
}

// SCCPostorder returns every SCC in callee-before-caller order: processing
// SCCs in this order guarantees that, by the time a caller's SCC is
// merged, every callee outside its own SCC has already been merged and is
// available from the cache (grounded in
// Cg.cpp's mergeScc traversal).
func (g *BasicFcnCFG) SCCPostorder() [][]*ir.Func {
	return g.sccList
}

// ---- Tarjan's SCC algorithm over the static call graph ----

func (g *BasicFcnCFG) computeSCCs() {
	n := len(g.funcs)
	g.sccOf = make([]int, n)
	for i := range g.sccOf {
		g.sccOf[i] = -1
	}

	indices := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range indices {
		indices[i] = -1
	}
	var stack []int
	nextIndex := 0

	var sccs [][]int
	var strongconnect func(v int)
	strongconnect = func(v int) {
		indices[v] = nextIndex
		low[v] = nextIndex
		nextIndex++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succs[v] {
			if indices[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if indices[w] < low[v] {
					low[v] = indices[w]
				}
			}
		}

		if low[v] == indices[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] == -1 {
			strongconnect(v)
		}
	}

	// Tarjan emits SCCs in reverse topological order (roots finish last)
	// for the recursion above — i.e. every edge out of an SCC leads into
	// an SCC that finished earlier, which is already callee-before-caller order
	// for a caller->callee adjacency (an SCC finishes once all its
	// successors, i.e. its callees, are fully explored).
	g.sccList = make([][]*ir.Func, len(sccs))
	for id, comp := range sccs {
		members := make([]*ir.Func, len(comp))
		for i, v := range comp {
			members[i] = g.funcs[v]
			g.sccOf[v] = id
		}
		g.sccList[id] = members
	}
}
