package alias_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/alias"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
)

func TestPointsToAndRepOf(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	a := vals.GetDef("a", "a")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})

	q := alias.New(g)
	assert.True(t, q.PointsTo(a).Has(uint32(obj)))
	assert.Equal(t, vals.GetRep(a), q.RepOf(a))
}

func TestValueToIDsFlattensConsecutiveRange(t *testing.T) {
	ids := alias.ValueToIDs(idmap.ID(10), 3)
	assert.Equal(t, []idmap.ID{10, 11, 12}, ids)
}

func TestAliasDisjointSetsReportNoAlias(t *testing.T) {
	vals := idmap.New()
	objA := vals.CreateAlloc("objA", 1)
	objB := vals.CreateAlloc("objB", 1)
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objA, Dest: a})
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: objB, Dest: b})

	q := alias.New(g)
	assert.Equal(t, alias.NoAlias, q.Alias(a, b))
}

func TestAliasOverlappingSetsReportMayAlias(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: b})

	q := alias.New(g)
	assert.Equal(t, alias.MayAlias, q.Alias(a, b))
}

func TestAliasEmptySetNeverAliases(t *testing.T) {
	vals := idmap.New()
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	q := alias.New(g)
	assert.Equal(t, alias.NoAlias, q.Alias(a, b))
}

func TestAliasConstantIntToPtrNeverAliasesEvenWhenSetsOverlap(t *testing.T) {
	vals := idmap.New()
	obj := vals.CreateAlloc("obj", 1)
	a := vals.GetDef("a", "a")
	b := vals.GetDef("b", "b")

	g := graph.New(vals)
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: a})
	g.AddConstraint(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: b})
	g.IntToPtrConsts[b] = true

	q := alias.New(g)
	assert.Equal(t, alias.NoAlias, q.Alias(a, b))
	assert.Equal(t, alias.NoAlias, q.Alias(b, a))
}

type fakeReporter struct{ n int }

func (f fakeReporter) PrunedCount() int { return f.n }

func TestPrunedCountForwardsOrZerosOnNil(t *testing.T) {
	assert.Equal(t, 0, alias.PrunedCount(nil))
	assert.Equal(t, 7, alias.PrunedCount(fakeReporter{n: 7}))
}
