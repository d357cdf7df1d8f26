package constraint

import (
	"github.com/llir/llvm/ir"

	"github.com/andersctx/ctxanders/callgraph"
	"github.com/andersctx/ctxanders/context"
	"github.com/andersctx/ctxanders/idmap"
)

// PendingDirectCall is a direct call recorded during constraint
// generation whose callee lies outside the current Cg's merged SCC
// ("Direct call to a callee outside the current SCC →
// acyclic call"), still awaiting resolution.
type PendingDirectCall struct {
	Site CallInfo
	Callee *ir.Func
	CFGNode int
}

// DeadCodeAssumption records a block skipped by speculative dead-code
// pruning ("Speculative dead-code pruning"), so clients can
// later verify the speculation.
type DeadCodeAssumption struct {
	Block *ir.Block
}

// PtstoAssumption records that an indirect callsite's function pointer
// was assumed, from a dynamic profile, to point only at the listed
// targets (classification rule for "Indirect call with an
// indirect-targets oracle").
type PtstoAssumption struct {
	Site any // the call instruction
	Targets []*ir.Func
}

// Cg is the per-function constraint graph ("Per-function
// constraint graph" data model entry). It owns its ValueMap portion
// (local ids), the constraints generated for Fn's body, the CallInfo of
// every call site, the pending (unresolved) direct and indirect calls,
// the CsFcnCFG node set this Cg has claimed, and the live calling-context
// bookkeeping.
type Cg struct {
	Fn *ir.Func // nil for the synthetic call-graph root
	Values *idmap.Map

	Constraints []Constraint

	// FuncIface is "callInfo_": the signature-slot CallInfo
	// (param ids, return id, vararg sink) of every function currently
	// merged into this Cg — initially just Fn, growing via MergeScc.
	FuncIface map[*ir.Func]CallInfo
	Members []*ir.Func

	PendingDirect []PendingDirectCall
	PendingIndirect []IndirectCall

	CFGNodes []int // indices into the shared callgraph.CsFcnCFG
	SelfCFGNode int // this Cg's own context-CFG node; owns any indirect callsite it records

	// FuncCFGNode maps every function merged into this Cg to the context
	// node it was originally generated under, so a cyclic call (callee
	// already present in FuncIface) can still find a CFG node to wire a
	// predecessor edge onto after SCC merging folds several functions'
	// CFGNodes lists together.
	FuncCFGNode map[*ir.Func]int

	// FuncObjects maps a function's object id (the id an AddressOf taken
	// of that function points at) back to the function itself, so the
	// solver's online indirect-call handling can turn a
	// newly-discovered points-to member into a callee to resolve.
	FuncObjects map[idmap.ID]*ir.Func

	// IntToPtrConsts marks every id whose value node was created from a
	// constant IntToPtr expression (constNode's *constant.ExprIntToPtr
	// case), so alias.Alias can honor "either pointer is a constant
	// IntToPtr" without needing to look at IR values at query time.
	IntToPtrConsts map[idmap.ID]bool

	CurStacks []context.Stack
	InvalidStacks []context.Stack

	DeadCode []DeadCodeAssumption
	PtstoAssumps []PtstoAssumption

	// objNodes memoizes the object allocated for a given IR value
	// (Alloca, Global, Call-to-allocator, ...), analogous to the
	// classic localobj/globalobj maps.
	objNodes map[ir.Value]idmap.ID
}

// New creates a fresh Cg for fn, rooted at a new ValueMap, with fn
// registered as the sole member of FuncIface (callers fill in Args/Ret/
// Vararg once the function's parameter nodes are created — see gen.go's
// GenerateFunc).
func New(fn *ir.Func) *Cg {
	return &Cg{
		Fn: fn,
		Values: idmap.New(),
		FuncIface: make(map[*ir.Func]CallInfo),
		objNodes: make(map[ir.Value]idmap.ID),
		FuncCFGNode: make(map[*ir.Func]int),
		FuncObjects: make(map[idmap.ID]*ir.Func),
		IntToPtrConsts: make(map[idmap.ID]bool),
	}
}

// Add appends c to the constraint list. Per the design, a constraint must
// never name NullValue as Dest — the solver assumes nothing is ever
// written into null — so that case panics immediately rather than
// silently producing an unsound graph.
func (cg *Cg) Add(c Constraint) {
	if c.Dest == idmap.NullValue {
		panic("constraint: NullValue used as constraint destination")
	}
	cg.Constraints = append(cg.Constraints, c)
}

// ObjectNode returns the object memoized for v, and whether one exists.
func (cg *Cg) ObjectNode(v ir.Value) (idmap.ID, bool) {
	id, ok := cg.objNodes[v]
	return id, ok
}

// SetObjectNode memoizes obj as the object allocated for v.
func (cg *Cg) SetObjectNode(v ir.Value, obj idmap.ID) {
	cg.objNodes[v] = obj
}

// IsKnownCallee reports whether fn's signature slots are already present
// in this Cg ("Direct call whose callee is in the current
// Cg's callInfo_ map → cyclic call").
func (cg *Cg) IsKnownCallee(fn *ir.Func) (CallInfo, bool) {
	ci, ok := cg.FuncIface[fn]
	return ci, ok
}

// AddPendingDirect records an unresolved acyclic direct call.
func (cg *Cg) AddPendingDirect(call PendingDirectCall) {
	cg.PendingDirect = append(cg.PendingDirect, call)
}

// AddPendingIndirect records an unresolved indirect call.
func (cg *Cg) AddPendingIndirect(call IndirectCall) {
	cg.PendingIndirect = append(cg.PendingIndirect, call)
}

// NewCFGNode allocates a context-sensitive call-site CFG node for fn in
// the shared table, registers it as one of this Cg's own nodes, and
// returns its index.
func (cg *Cg) NewCFGNode(table *callgraph.CsFcnCFG, fn *ir.Func) int {
	idx := table.NewNode(fn)
	cg.CFGNodes = append(cg.CFGNodes, idx)
	return idx
}
