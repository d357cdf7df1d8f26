package cgcache_test

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/cgcache"
	"github.com/andersctx/ctxanders/constraint"
)

func TestGetBaseGeneratesOnceAndMemoizes(t *testing.T) {
	c := cgcache.New()
	fn := &ir.Func{}
	calls := 0
	gen := func(f *ir.Func) *constraint.Cg {
		calls++
		return constraint.New(f)
	}

	first := c.GetBase(fn, gen)
	second := c.GetBase(fn, gen)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestGetFullMissThenPutThenHit(t *testing.T) {
	c := cgcache.New()
	fn := &ir.Func{}

	_, ok := c.GetFull(fn)
	assert.False(t, ok)

	cg := constraint.New(fn)
	c.PutFull(fn, cg)

	got, ok := c.GetFull(fn)
	assert.True(t, ok)
	assert.Same(t, cg, got)
}

func TestCacheKeysAreIndependentPerFunction(t *testing.T) {
	c := cgcache.New()
	fnA, fnB := &ir.Func{}, &ir.Func{}

	cgA := c.GetBase(fnA, func(f *ir.Func) *constraint.Cg { return constraint.New(f) })
	cgB := c.GetBase(fnB, func(f *ir.Func) *constraint.Cg { return constraint.New(f) })

	assert.NotSame(t, cgA, cgB)
}
