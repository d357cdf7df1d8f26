package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
)

func TestAddConstraintAddressOfSeedsPtsAndDelta(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	dest := vals.GetDef("d", "d")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: dest})

	n := g.Node(dest)
	assert.True(t, n.Pts.Has(uint32(obj)))
	assert.True(t, n.Delta.Has(uint32(obj)))
}

func TestAddConstraintCopyBuildsSuccessorEdge(t *testing.T) {
	vals := idmap.New()
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.Copy, Src: a, Dest: b})

	n := g.Node(a)
	assert.True(t, n.CopySucc[b])
}

func TestAddConstraintGEPBuildsShiftedEdge(t *testing.T) {
	vals := idmap.New()
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.Copy, Src: a, Dest: b, Offs: 2})

	n := g.Node(a)
	assert.Len(t, n.GEPSucc, 1)
	assert.Equal(t, graph.GEPEdge{Dest: b, Offs: 2}, n.GEPSucc[0])
}

func TestAddConstraintLoadStoreDedupByKey(t *testing.T) {
	vals := idmap.New()
	src := vals.GetDef("s", "s")
	dest := vals.GetDef("d", "d")

	g := graph.New(vals)
	c := constraint.Constraint{Kind: constraint.Load, Src: src, Dest: dest}
	g.AddConstraint(c)
	g.AddConstraint(c)

	assert.Len(t, g.Node(src).Loads, 1)
}

func TestMergeUnionsPtsAndRelocatesFuncObjects(t *testing.T) {
	vals := idmap.New()
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")
	objA := vals.CreateAlloc("objA", 1)
	objB := vals.CreateAlloc("objB", 1)

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objA, Dest: a})
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objB, Dest: b})
	g.FuncObjects[vals.GetRep(b)] = "fn-b"

	merged := g.Merge(a, b)
	assert.True(t, merged.Pts.Has(uint32(objA)))
	assert.True(t, merged.Pts.Has(uint32(objB)))

	fn, ok := g.FuncAt(b)
	assert.True(t, ok)
	assert.Equal(t, "fn-b", fn)
}

func TestMapInLoadsConstraintsAndIndirectCalls(t *testing.T) {
	cg := constraint.New(nil)
	src := cg.Values.GetDef("s", "s")
	dest := cg.Values.GetDef("d", "d")
	cg.Add(constraint.Constraint{Kind: constraint.Copy, Src: src, Dest: dest})
	fp := cg.Values.GetDef("fp", "fp")
	cg.AddPendingIndirect(constraint.IndirectCall{FuncPtr: fp, Info: constraint.CallInfo{}})

	g := graph.New(cg.Values)
	g.MapIn(cg)

	assert.True(t, g.Node(src).CopySucc[cg.Values.GetRep(dest)])
	assert.Len(t, g.Node(fp).Indirect, 1)
}
