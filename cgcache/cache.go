// Package cgcache memoizes per-function constraint graphs (the design's
// base_cache/full_cache), grounded in the classic use of an LRU-style
// memo table for repeated SSA analyses, here implemented directly with
// github.com/hashicorp/golang-lru/v2.
package cgcache

import (
	"github.com/llir/llvm/ir"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/andersctx/ctxanders/constraint"
)

// defaultCapacity bounds memory use on very large modules; base/full
// caches are rebuilt on demand (a miss just re-runs generation/resolution),
// so eviction only costs recomputation, never correctness.
const defaultCapacity = 4096

// Cache holds two independent memo tables:
//
// - Base: the freshly-generated Cg for one function, pre call-resolution
// (the design step 1's "base_cache" — populated once by constraint
// generation, read many times as different callers clone it).
// - Full: the fully call-resolved Cg for one function with no context
// oracle in play (the design step 5's "memoize into full_cache" —
// only valid when there's no CallContextLoader, since with one every
// clone may resolve differently per calling context).
type Cache struct {
	Base *lru.Cache[*ir.Func, *constraint.Cg]
	Full *lru.Cache[*ir.Func, *constraint.Cg]
}

// New returns an empty cache pair.
func New() *Cache {
	base, err := lru.New[*ir.Func, *constraint.Cg](defaultCapacity)
	if err != nil {
		panic(err) // only fails for a non-positive capacity, a programmer error
	}
	full, err := lru.New[*ir.Func, *constraint.Cg](defaultCapacity)
	if err != nil {
		panic(err)
	}
	return &Cache{Base: base, Full: full}
}

// GetBase returns the memoized base Cg for fn, generating it with gen and
// storing the result on first use.
func (c *Cache) GetBase(fn *ir.Func, gen func(*ir.Func) *constraint.Cg) *constraint.Cg {
	if cg, ok := c.Base.Get(fn); ok {
		return cg
	}
	cg := gen(fn)
	c.Base.Add(fn, cg)
	return cg
}

// GetFull returns the memoized fully-resolved Cg for fn, if one exists.
func (c *Cache) GetFull(fn *ir.Func) (*constraint.Cg, bool) {
	return c.Full.Get(fn)
}

// PutFull memoizes cg as fn's fully-resolved Cg.
func (c *Cache) PutFull(fn *ir.Func, cg *constraint.Cg) {
	c.Full.Add(fn, cg)
}
