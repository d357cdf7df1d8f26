package idmap_test

import (
	"testing"

	"github.com/andersctx/ctxanders/idmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelsArePreallocated(t *testing.T) {
	m := idmap.New()
	assert.Equal(t, idmap.KindSentinel, m.Kind(idmap.NullValue))
	assert.Equal(t, idmap.KindSentinel, m.Kind(idmap.UniversalValue))
	assert.Equal(t, idmap.KindSentinel, m.Kind(idmap.IntValue))
	assert.Equal(t, idmap.KindSentinel, m.Kind(idmap.AggregateValue))
}

func TestGetDefIsLazyAndStable(t *testing.T) {
	m := idmap.New()
	type key struct{ n int }
	k := &key{1}
	id1 := m.GetDef(k, "v")
	id2 := m.GetDef(k, "v")
	assert.Equal(t, id1, id2)
}

func TestUnionFindMerge(t *testing.T) {
	m := idmap.New()
	a := m.GetDef("a", "a")
	b := m.GetDef("b", "b")
	c := m.GetDef("c", "c")

	rep := m.Merge(a, b)
	assert.Equal(t, rep, m.GetRep(a))
	assert.Equal(t, rep, m.GetRep(b))
	assert.NotEqual(t, rep, m.GetRep(c))

	rep2 := m.Merge(rep, c)
	assert.Equal(t, rep2, m.GetRep(a))
	assert.Equal(t, rep2, m.GetRep(b))
	assert.Equal(t, rep2, m.GetRep(c))
}

func TestCreateAllocContiguous(t *testing.T) {
	m := idmap.New()
	obj := m.CreateAlloc("s", 3)
	assert.Equal(t, idmap.KindObject, m.Kind(obj))
	assert.Equal(t, idmap.KindObject, m.Kind(obj+1))
	assert.Equal(t, idmap.KindObject, m.Kind(obj+2))
}

func TestLowerAllocsPacksObjectsContiguously(t *testing.T) {
	m := idmap.New()
	_ = m.GetDef("v1", "v1")
	o1 := m.CreateAlloc("o1", 2)
	_ = m.GetDef("v2", "v2")
	o2 := m.CreateAlloc("o2", 3)

	tr := m.LowerAllocs()

	lo, hi := m.ObjectBounds()
	require.Equal(t, int(hi-lo), 5)

	no1 := tr.Map(o1)
	no2 := tr.Map(o2)
	assert.True(t, no1 >= lo && no1 < hi)
	assert.True(t, no2 >= lo && no2 < hi)

	start1, size1 := m.AllocationOf(no1)
	assert.Equal(t, no1, start1)
	assert.Equal(t, uint32(2), size1)

	start2, size2 := m.AllocationOf(no2 + 1)
	assert.Equal(t, no2, start2)
	assert.Equal(t, uint32(3), size2)
}

func TestLowerAllocsPreservesUnionFind(t *testing.T) {
	m := idmap.New()
	a := m.GetDef("a", "a")
	b := m.GetDef("b", "b")
	m.CreateAlloc("o", 2)
	rep := m.Merge(a, b)

	tr := m.LowerAllocs()
	assert.Equal(t, tr.Map(rep), m.GetRep(tr.Map(a)))
	assert.Equal(t, tr.Map(rep), m.GetRep(tr.Map(b)))
}

func TestImportMergesGlobalsByIdentity(t *testing.T) {
	dst := idmap.New()
	fnKey := "main.F"
	dst.GetDef(fnKey, "F")
	dst.GetDef("dstLocal", "dstLocal")

	src := idmap.New()
	src.GetDef(fnKey, "F")
	localKey := struct{}{}
	src.GetDef(&localKey, "local")

	tr := dst.Import(src, func(key any) bool {
		s, ok := key.(string)
		return ok && s == fnKey
	})

	// The global function id must resolve to the very same id dst already had.
	srcFnID, _ := src.LookupDef(fnKey)
	dstFnID, _ := dst.LookupDef(fnKey)
	assert.Equal(t, dstFnID, tr.Map(srcFnID))

	// The local must have received a brand new id, distinct from the source's.
	srcLocalID, _ := src.LookupDef(&localKey)
	assert.NotEqual(t, srcLocalID, tr.Map(srcLocalID))
}

func TestImportPreservesObjectContiguity(t *testing.T) {
	dst := idmap.New()
	src := idmap.New()
	obj := src.CreateAlloc("s", 4)

	tr := dst.Import(src, nil)
	nobj := tr.Map(obj)
	for i := idmap.ID(0); i < 4; i++ {
		assert.Equal(t, idmap.KindObject, dst.Kind(nobj+i))
	}
}

func TestSentinelsMapToThemselvesAcrossImport(t *testing.T) {
	dst := idmap.New()
	src := idmap.New()
	tr := dst.Import(src, nil)
	assert.Equal(t, idmap.NullValue, tr.Map(idmap.NullValue))
	assert.Equal(t, idmap.UniversalValue, tr.Map(idmap.UniversalValue))
	assert.Equal(t, idmap.IntValue, tr.Map(idmap.IntValue))
	assert.Equal(t, idmap.AggregateValue, tr.Map(idmap.AggregateValue))
}
