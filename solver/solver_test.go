package solver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/config"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/solver"
)

func TestSolvePropagatesThroughCopyEdge(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})
	g.AddConstraint(constraint.Constraint{Kind: constraint.Copy, Src: a, Dest: b})

	sv := solver.New(g, config.New(), nil)
	sv.Solve()

	assert.True(t, g.Node(b).Pts.Has(uint32(obj)))
}

func TestSolveFiresLoadAndStore(t *testing.T) {
	vals := idmap.New()
	objA := vals.CreateAlloc("objA", 1)
	objP := vals.CreateAlloc("objP", 1)
	p := vals.GetDef("p", "p")
	q := vals.GetDef("q", "q")
	v := vals.GetDef("v", "v")
	dest := vals.GetDef("dest", "dest")

	g := graph.New(vals)
	// p -> objP, objP -> objA (so *p aliases objA), v -> objA via store, dest <- *p via load
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objP, Dest: p})
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objA, Dest: q})
	g.AddConstraint(constraint.Constraint{Kind: constraint.Store, Src: q, Dest: p}) // *p = q => pts(objP) gains pts(q)
	g.AddConstraint(constraint.Constraint{Kind: constraint.Load, Src: p, Dest: dest}) // dest = *p
	_ = v

	sv := solver.New(g, config.New(), nil)
	sv.Solve()

	assert.True(t, g.Node(objP).Pts.Has(uint32(objA)), "store should write q's points-to into objP")
	assert.True(t, g.Node(dest).Pts.Has(uint32(objA)), "load should read objP's points-to into dest")
}

func TestSolveHonorsGEPAllocationBounds(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 2) // two fields: obj, obj+1
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})
	// shift by 1 stays within the 2-field allocation
	g.AddConstraint(constraint.Constraint{Kind: constraint.Copy, Src: a, Dest: b, Offs: 1})

	sv := solver.New(g, config.New(), nil)
	sv.Solve()

	assert.True(t, g.Node(b).Pts.Has(uint32(obj)+1))
}

func TestSolveRejectsGEPShiftPastAllocationEnd(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1) // single-field allocation
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})
	// shifting a single-field object by 1 would cross into whatever comes next
	g.AddConstraint(constraint.Constraint{Kind: constraint.Copy, Src: a, Dest: b, Offs: 1})

	sv := solver.New(g, config.New(), nil)
	sv.Solve()

	assert.False(t, g.Node(b).Pts.Has(uint32(obj)+1))
}

func TestCompareAgainstReportsMismatch(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	a := vals.GetDef("a", "a")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})

	sv := solver.New(g, config.New(), nil)
	sv.Solve()

	clean := sv.CompareAgainst(map[idmap.ID][]idmap.ID{a: {obj}})
	assert.True(t, clean.Clean())

	mismatch := sv.CompareAgainst(map[idmap.ID][]idmap.ID{a: {obj, idmap.ID(9999)}})
	assert.False(t, mismatch.Clean())
	assert.Len(t, mismatch.Entries, 1)
	assert.Contains(t, mismatch.Entries[0].Missing, uint32(9999))
}
