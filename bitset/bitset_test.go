package bitset_test

import (
	"testing"

	"github.com/andersctx/ctxanders/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnionInPlace(t *testing.T) {
	a := bitset.New()
	a.Add(1)
	a.Add(5)

	b := bitset.New()
	b.Add(5)
	b.Add(9)

	grew := a.UnionInPlace(b)
	require.True(t, grew)
	assert.ElementsMatch(t, []uint32{1, 5, 9}, a.ToSlice())

	grew = a.UnionInPlace(b)
	assert.False(t, grew, "re-union of an already-included set must not grow")
}

func TestUnionShiftedRespectsBounds(t *testing.T) {
	// object "o" occupies ids [100,103); shifting by 1 keeps 100,101 in
	// range but drops 102 (would land on 103, the object's end).
	objStart, objSize := uint32(100), uint32(3)
	inRange := func(_, shifted uint32) bool {
		return shifted >= objStart && shifted < objStart+objSize
	}

	src := bitset.New()
	src.Add(100)
	src.Add(101)
	src.Add(102)

	dst := bitset.New()
	dst.UnionShifted(src, 1, inRange)

	assert.ElementsMatch(t, []uint32{101, 102}, dst.ToSlice())
}

func TestUnionShiftedZeroOffsetIsPlainUnion(t *testing.T) {
	src := bitset.New()
	src.Add(7)
	src.Add(8)

	dst := bitset.New()
	dst.UnionShifted(src, 0, nil)

	assert.ElementsMatch(t, []uint32{7, 8}, dst.ToSlice())
}

func TestEqualsAndClone(t *testing.T) {
	a := bitset.New()
	a.Add(3)
	a.Add(4)

	b := a.Clone()
	assert.True(t, a.Equals(b))

	b.Add(5)
	assert.False(t, a.Equals(b))
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, b.Len())
}

func TestIntersects(t *testing.T) {
	a := bitset.New()
	a.Add(1)
	b := bitset.New()
	b.Add(2)
	assert.False(t, a.Intersects(b))
	b.Add(1)
	assert.True(t, a.Intersects(b))
}
