// Package solver implements the iterative inclusion-based fixed point
// : a priority worklist propagating points-to deltas through
// Copy/GEP edges and re-firing Load/Store constraints as their operand
// sets grow, with online Lazy Cycle Detection (LCD), an offline Hybrid
// Cycle Detection (HCD) pre-pass, and online indirect-call discovery
// feeding newly-resolved callees back into the live graph.
package solver

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/andersctx/ctxanders/bitset"
	"github.com/andersctx/ctxanders/config"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
)

// NewCalleeResolver is the callback the solver uses to resolve a
// newly-discovered indirect-call target : given the callsite
// and the concrete function just observed in the function-pointer's
// points-to set, it folds that function's call (and anything it
// transitively reaches) into the shared global Cg and returns the
// constraints/indirect-calls newly added, which the solver then feeds
// into the Graph directly.
type NewCalleeResolver interface {
	ResolveNewTarget(ic constraint.IndirectCall, target any) (newConstraints []constraint.Constraint, newIndirect []constraint.IndirectCall)
}

// Solver drives one Graph to a fixed point.
type Solver struct {
	Graph *graph.Graph
	Cfg *config.Config
	Resolver NewCalleeResolver

	worklist []idmap.ID
	queued map[idmap.ID]bool
	candidates mapset.Set[idmap.ID] // LCD candidate set
	resolvedFns map[any]map[idmap.ID]bool
}

// New returns a Solver for g.
func New(g *graph.Graph, cfg *config.Config, resolver NewCalleeResolver) *Solver {
	if cfg == nil {
		cfg = config.New()
	}
	return &Solver{
		Graph: g,
		Cfg: cfg,
		Resolver: resolver,
		queued: make(map[idmap.ID]bool),
		candidates: mapset.NewThreadUnsafeSet[idmap.ID](),
		resolvedFns: make(map[any]map[idmap.ID]bool),
	}
}

// Solve runs the fixed-point computation to completion: an offline HCD
// pre-pass (if enabled), then the main worklist loop until nothing has a
// non-empty delta left to propagate.
func (s *Solver) Solve() {
	if s.Cfg.HCDEnabled() {
		s.offlineHCD()
	}

	s.seedWorklist()
	for len(s.worklist) > 0 {
		id := s.pop()
		s.processNode(id)
		if s.candidates.Cardinality() >= s.Cfg.LCDThreshold {
			s.runLCD()
		}
	}
}

// seedWorklist enqueues every node that already has a non-empty Delta
// (from the initial AddressOf constraints).
func (s *Solver) seedWorklist() {
	for id, n := range s.Graph.Nodes {
		if !n.Delta.IsEmpty() {
			s.push(id)
		}
	}
}

// push enqueues id if it isn't already queued, keyed by its current
// representative ("priority worklist": a stable, low-id-first
// pop order approximates a topological seed without a separate numbering
// pass — see pop).
func (s *Solver) push(id idmap.ID) {
	rep := s.Graph.Values.GetRep(id)
	if s.queued[rep] {
		return
	}
	s.queued[rep] = true
	s.worklist = append(s.worklist, rep)
}

// pop removes and returns the lowest-id node, "stamping" it (clearing
// its queued flag) only at this point — "stamped on pop"
// rule, so a node already sitting in the worklist is never duplicated,
// but a node that grows again after being processed can be queued afresh.
func (s *Solver) pop() idmap.ID {
	sort.Slice(s.worklist, func(i, j int) bool { return s.worklist[i] < s.worklist[j] })
	id := s.worklist[0]
	s.worklist = s.worklist[1:]
	delete(s.queued, id)
	return id
}

// processNode implements per-node iteration steps: consume
// this node's Delta (the members added since it was last processed),
// fire every pending Load/Store against each new member, shift-union GEP
// successors, plain-union Copy successors, and check pending indirect
// calls for newly-resolvable targets.
func (s *Solver) processNode(id idmap.ID) {
	n := s.Graph.Node(id)
	if n.Delta.IsEmpty() {
		return
	}
	delta := n.Delta
	n.Delta = bitset.New()

	delta.ForEach(func(o uint32) bool {
		obj := idmap.ID(o)
		for _, c := range n.Loads {
			s.fireLoad(c, obj)
		}
		for _, c := range n.Stores {
			s.fireStore(c, obj)
		}
		s.maybeResolveIndirect(n, obj)
		return true
	})

	for dest := range n.CopySucc {
		if s.queued[dest] {
			s.markCandidate(id)
			s.markCandidate(dest)
		}
		s.unionInto(dest, delta, 0)
	}
	for _, e := range n.GEPSucc {
		s.unionInto(e.Dest, delta, e.Offs)
	}
}

// fireLoad handles one Load constraint re-firing because obj just
// entered pts(src): dest gains pts(obj) ("pts(dest) ⊇
// ∪{pts(y)|y∈pts(src)}"), realized as a dynamic Copy edge from obj to
// dest so future growth of pts(obj) keeps flowing without re-scanning.
func (s *Solver) fireLoad(c constraint.Constraint, obj idmap.ID) {
	objNode := s.Graph.Node(obj)
	destRep := s.Graph.Values.GetRep(c.Dest)
	if objNode.CopySucc[destRep] {
		return
	}
	objNode.CopySucc[destRep] = true
	s.unionInto(destRep, objNode.Pts, 0)
}

// fireStore handles one Store constraint re-firing because obj just
// entered pts(dest): pts(obj) gains pts(src) ("∀y∈pts(dest).
// pts(y) ⊇ pts(src)"), realized the same way as fireLoad but in the
// opposite direction.
func (s *Solver) fireStore(c constraint.Constraint, obj idmap.ID) {
	srcNode := s.Graph.Node(c.Src)
	objRep := s.Graph.Values.GetRep(obj)
	if srcNode.CopySucc[objRep] {
		return
	}
	srcNode.CopySucc[objRep] = true
	s.unionInto(objRep, srcNode.Pts, 0)
}

// unionInto merges src (optionally shifted by offs; offs==0 is a plain
// union) into dest's Pts, pushing dest back onto the worklist if it grew.
func (s *Solver) unionInto(dest idmap.ID, src bitset.Set, offs uint32) {
	n := s.Graph.Node(dest)
	var grew bool
	if offs == 0 {
		grew = n.Pts.UnionInPlace(src)
		if grew {
			n.Delta.UnionInPlace(src)
		}
	} else {
		grew = n.Pts.UnionShifted(src, offs, s.inAllocationBounds)
		if grew {
			n.Delta.UnionShifted(src, offs, s.inAllocationBounds)
		}
	}
	if grew {
		s.push(dest)
	}
}

// inAllocationBounds implements bitset.UnionShifted's inRange callback:
// a GEP'd id must stay within the allocation the original object
// belongs to (the design step 5's soundness condition for field-sensitive
// shifts).
func (s *Solver) inAllocationBounds(orig, shifted uint32) bool {
	start, size := s.Graph.Values.AllocationOf(idmap.ID(orig))
	return idmap.ID(shifted) < start+idmap.ID(size)
}

// maybeResolveIndirect checks whether obj (a newly-discovered points-to
// member of an indirect callsite's function-pointer node) names a known
// function, and if so resolves the call exactly once per (callsite,
// target) pair.
func (s *Solver) maybeResolveIndirect(n *graph.Node, obj idmap.ID) {
	if len(n.Indirect) == 0 || s.Resolver == nil {
		return
	}
	fn, ok := s.Graph.FuncAt(obj)
	if !ok {
		return
	}
	for _, ic := range n.Indirect {
		seen := s.resolvedFns[ic.Info.Instr]
		if seen == nil {
			seen = make(map[idmap.ID]bool)
			s.resolvedFns[ic.Info.Instr] = seen
		}
		rep := s.Graph.Values.GetRep(obj)
		if seen[rep] {
			continue
		}
		seen[rep] = true
		newC, newI := s.Resolver.ResolveNewTarget(ic, fn)
		for _, c := range newC {
			s.Graph.AddConstraint(c)
		}
		for _, nic := range newI {
			s.Graph.AddIndirect(nic)
		}
		s.reseedGrown()
	}
}

// reseedGrown re-queues every node whose Delta is non-empty, after
// ResolveNewTarget injected fresh AddressOf/Copy constraints that may
// have seeded new nodes directly (AddConstraint alone doesn't push).
func (s *Solver) reseedGrown() {
	for id, n := range s.Graph.Nodes {
		if !n.Delta.IsEmpty() {
			s.push(id)
		}
	}
}

// offlineHCD implements the Hybrid Cycle Detection pre-pass (the design,
// default off): it runs Tarjan's SCC algorithm over the
// static Copy-edge graph alone (GEP edges are excluded — collapsing
// across a field-sensitive shift would be unsound) and merges every
// multi-node SCC before the main loop starts. Any cycle in the pure-Copy
// subgraph would eventually be found (and merged) by LCD anyway; doing
// it once, offline, up front is strictly cheaper when it is safe to do
// so (no points-to-dependent edges feed into it).
func (s *Solver) offlineHCD() {
	ids := make([]idmap.ID, 0, len(s.Graph.Nodes))
	for id := range s.Graph.Nodes {
		ids = append(ids, id)
	}
	sccs := tarjanSCC(ids, func(id idmap.ID) []idmap.ID {
		n := s.Graph.Node(id)
		succs := make([]idmap.ID, 0, len(n.CopySucc))
		for d := range n.CopySucc {
			succs = append(succs, d)
		}
		return succs
	})
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		rep := scc[0]
		for _, other := range scc[1:] {
			s.Graph.Merge(rep, other)
		}
	}
}

// runLCD implements online Lazy Cycle Detection : once the
// candidate-node count crosses Config.LCDThreshold, run a restricted
// Tarjan SCC pass over just the candidate nodes and their Copy edges
// (again excluding GEP edges, for the same soundness reason as HCD),
// merging every multi-node SCC found and clearing the candidate set.
func (s *Solver) runLCD() {
	ids := s.candidates.ToSlice()
	sccs := tarjanSCC(ids, func(id idmap.ID) []idmap.ID {
		n := s.Graph.Node(id)
		var succs []idmap.ID
		for d := range n.CopySucc {
			if s.candidates.Contains(s.Graph.Values.GetRep(d)) {
				succs = append(succs, d)
			}
		}
		return succs
	})
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		rep := scc[0]
		for _, other := range scc[1:] {
			s.Graph.Merge(rep, other)
		}
		s.push(rep)
	}
	s.candidates.Clear()
}

// markCandidate flags id as an LCD candidate — called whenever a Copy
// edge is traversed into a node that is itself still queued, the cheap
// proxy this solver uses for "might be on a cycle" (online
// heuristic).
func (s *Solver) markCandidate(id idmap.ID) {
	s.candidates.Add(s.Graph.Values.GetRep(id))
}
