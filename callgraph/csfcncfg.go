package callgraph

import "github.com/llir/llvm/ir"

// CsNode is one node of the context-sensitive call-site CFG: a single
// per-context instantiation of a function. Edges are predecessor-only
// (the design step 7: "Add a CFG predecessor edge from caller to callee
// CFG node"), since all the solver and diagnostics ever need is "who
// calls this context".
type CsNode struct {
	Fn *ir.Func
	Preds []int
}

// CsFcnCFG is the whole program's context-sensitive call-site CFG: a
// flat, append-only table of CsNodes shared by every constraint.Cg (each
// Cg remembers which node indices are "its own" — see constraint.Cg's
// CFGNodes field — but the table itself is one global arena, consistent
// with "cheap to clone" design note for append-only structures).
type CsFcnCFG struct {
	nodes []CsNode
}

// NewCsFcnCFG returns an empty table.
func NewCsFcnCFG() *CsFcnCFG { return &CsFcnCFG{} }

// NewNode allocates a fresh node for fn and returns its index.
func (g *CsFcnCFG) NewNode(fn *ir.Func) int {
	g.nodes = append(g.nodes, CsNode{Fn: fn})
	return len(g.nodes) - 1
}

// AddPred records a predecessor edge pred -> node.
func (g *CsFcnCFG) AddPred(node, pred int) {
	g.nodes[node].Preds = append(g.nodes[node].Preds, pred)
}

// Node returns the node at index i.
func (g *CsFcnCFG) Node(i int) CsNode { return g.nodes[i] }

// IsPredecessor reports whether pred is already a (direct) predecessor of
// node.
func (g *CsFcnCFG) IsPredecessor(node, pred int) bool {
	for _, p := range g.nodes[node].Preds {
		if p == pred {
			return true
		}
	}
	return false
}

// FindPredecessorInSCC reports the index of a predecessor of node whose
// function belongs to the same SCC (per basic) as target, if any — used
// by the solver's online indirect-call handling to decide
// whether a freshly-discovered callee's body is already reachable from
// the current context and can be reused instead of mapped in afresh.
func (g *CsFcnCFG) FindPredecessorInSCC(basic *BasicFcnCFG, node int, target *ir.Func) (int, bool) {
	for _, p := range g.nodes[node].Preds {
		if basic.SameSCC(g.nodes[p].Fn, target) {
			return p, true
		}
	}
	return 0, false
}

// CsCFG bundles the static (BasicFcnCFG) and context-sensitive
// (CsFcnCFG) halves of the call graph, as row groups them.
type CsCFG struct {
	Basic *BasicFcnCFG
	Ctx *CsFcnCFG
}

// NewCsCFG builds the static call graph for mod and an empty
// context-sensitive table ready to be populated during call resolution.
func NewCsCFG(mod *ir.Module) *CsCFG {
	return &CsCFG{Basic: NewBasicFcnCFG(mod), Ctx: NewCsFcnCFG()}
}
