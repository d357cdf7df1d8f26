// Package alias is the thin query surface the design asks the analysis to
// expose once a Graph has reached its fixed point: points-to set lookup,
// representative resolution, value-to-id mapping, alias queries, and the
// count of calling-context stacks discarded as invalid.
package alias

import (
	"github.com/andersctx/ctxanders/bitset"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
)

// Result is AliasKind the query below, "NoAlias | MayAlias"
// (this analysis is never precise enough to report MustAlias, matching
// note that Andersen-style analyses only ever rule aliasing
// out, never in).
type Result int

const (
	NoAlias Result = iota
	MayAlias
)

// Query answers operations against a solved Graph.
type Query struct {
	Graph *graph.Graph
}

// New returns a Query bound to g. g must already be solved (see
// solver.Solve) — PointsTo/Alias read Pts directly, with no further
// propagation.
func New(g *graph.Graph) *Query {
	return &Query{Graph: g}
}

// PointsTo returns id's points-to set (points_to).
func (q *Query) PointsTo(id idmap.ID) bitset.Set {
	return q.Graph.Node(id).Pts
}

// RepOf returns id's current union-find representative (the design's
// rep_of).
func (q *Query) RepOf(id idmap.ID) idmap.ID {
	return q.Graph.Values.GetRep(id)
}

// ValueToIDs flattens v (a value whose base id is base and whose scalar
// field count is n) into its consecutive id range (the design's
// value_to_ids), honoring the flattened-aggregate layout constraint
// generation assigns.
func ValueToIDs(base idmap.ID, n uint32) []idmap.ID {
	ids := make([]idmap.ID, n)
	for i := uint32(0); i < n; i++ {
		ids[i] = base + idmap.ID(i)
	}
	return ids
}

// Alias answers alias(loc1, loc2): MayAlias unless the two
// locations' points-to sets are provably disjoint. An unsolved or empty
// points-to set on either side still reports NoAlias — "empty
// points-to is never assumed to alias anything" rule, since an empty
// set here means "never observed to point anywhere", not "points
// everywhere". A location whose value node came from a constant IntToPtr
// expression also reports NoAlias unconditionally: such a node's
// points-to set is an artifact of the unsound integer trace, not a real
// observed pointer value.
func (q *Query) Alias(loc1, loc2 idmap.ID) Result {
	if q.Graph.IsIntToPtrConst(loc1) || q.Graph.IsIntToPtrConst(loc2) {
		return NoAlias
	}
	p1 := q.PointsTo(loc1)
	p2 := q.PointsTo(loc2)
	if p1.IsEmpty() || p2.IsEmpty() {
		return NoAlias
	}
	if p1.Intersects(p2) {
		return MayAlias
	}
	return NoAlias
}

// InvalidStacksReporter is implemented by whatever accumulated a
// program's invalid calling-context stacks during resolution (the design's
// invalid_stacks()); kept as an interface here so alias doesn't need to
// import package constraint or resolve just for this one query.
type InvalidStacksReporter interface {
	PrunedCount() int
}

// PrunedCount forwards to mgr (invalid_stacks() count form —
// the individual stacks themselves live on each constraint.Cg's
// InvalidStacks field for anyone who needs the full detail).
func PrunedCount(mgr InvalidStacksReporter) int {
	if mgr == nil {
		return 0
	}
	return mgr.PrunedCount()
}
