package constraint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/idmap"
)

func TestMapInMergesGlobalsByIdentityAndLocalsFresh(t *testing.T) {
	dst := constraint.New(nil)
	src := constraint.New(nil)

	key := constraint.NamedSingletonKey("stdio")
	dstGlobal := dst.Values.GetDef(key, "stdio")
	dst.Values.GetDef("dst-local", "dstTmp")
	srcGlobal := src.Values.GetDef(key, "stdio")
	srcLocal := src.Values.GetDef("local", "tmp")

	src.Add(constraint.Constraint{Kind: constraint.Copy, Src: srcLocal, Dest: srcGlobal})

	tr := constraint.MapIn(dst, src)

	assert.Equal(t, dstGlobal, tr.Map(srcGlobal), "global identity must merge onto the existing id")
	assert.NotEqual(t, srcLocal, tr.Map(srcLocal), "a local id must be renumbered fresh in dst")

	assert.Len(t, dst.Constraints, 1)
	got := dst.Constraints[0]
	assert.Equal(t, tr.Map(srcLocal), got.Src)
	assert.Equal(t, dstGlobal, got.Dest)
}

func TestMapInWithNoFuncIfaceLeavesMembersEmpty(t *testing.T) {
	dst := constraint.New(nil)
	src := constraint.New(nil)

	tr := constraint.MapIn(dst, src)
	assert.NotNil(t, tr)
	assert.Empty(t, dst.Members)
}

func TestCgAddPanicsOnNullDest(t *testing.T) {
	cg := constraint.New(nil)
	assert.Panics(t, func() {
		cg.Add(constraint.Constraint{Kind: constraint.Copy, Src: idmap.UniversalValue, Dest: idmap.NullValue})
	})
}

func TestCloneProducesIndependentValueMap(t *testing.T) {
	cg := constraint.New(nil)
	local := cg.Values.GetDef("v", "v")
	cg.Add(constraint.Constraint{Kind: constraint.AddressOf, Src: idmap.UniversalValue, Dest: local})

	clone, tr := constraint.Clone(cg)
	assert.NotSame(t, cg.Values, clone.Values)
	assert.Len(t, clone.Constraints, 1)
	assert.Equal(t, tr.Map(local), clone.Constraints[0].Dest)

	// Mutating the clone must not affect the original.
	other := clone.Values.GetDef("w", "w")
	clone.Add(constraint.Constraint{Kind: constraint.Copy, Src: other, Dest: other})
	assert.Len(t, cg.Constraints, 1)
	assert.Len(t, clone.Constraints, 2)
}

func TestMergeSccIsMapIn(t *testing.T) {
	cg := constraint.New(nil)
	rhs := constraint.New(nil)
	rv := rhs.Values.GetDef("x", "x")
	rhs.Add(constraint.Constraint{Kind: constraint.AddressOf, Src: idmap.UniversalValue, Dest: rv})

	tr := constraint.MergeScc(cg, rhs)
	assert.Len(t, cg.Constraints, 1)
	assert.Equal(t, tr.Map(rv), cg.Constraints[0].Dest)
}
