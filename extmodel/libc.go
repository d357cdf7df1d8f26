// Package extmodel is the default oracle.ExtInfo: a small, conservative
// model of the libc functions Cg.cpp special-cases (malloc/calloc/realloc
// as allocators, strdup/memcpy-family as argument-aliasing models, free and
// friends as no-ops), plus the named-global bindings the design calls for
// (stdio/argv/envp). Every other declaration-only function classifies as
// Unknown, by design's "unknown external function: defaults to ignored
// call, logged as a warning" rule.
package extmodel

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/andersctx/ctxanders/oracle"
)

// Libc is the default oracle.ExtInfo. The zero value is ready to use.
type Libc struct{}

var _ oracle.ExtInfo = Libc{}

// allocators lists functions whose result is a fresh heap object, along with
// the type inferred for that object. Real Andersen-style analyses infer an
// allocation's pointee type from how the result is used (see Cg.cpp's
// "inferred_type" comment); lacking that inference here, every allocator
// synthesizes an opaque byte object, which is conservative for GEP/field
// offsets since unknown-layout objects never get a field collapsed past
// the object's single slot.
var allocators = map[string]bool{
	"malloc": true,
	"calloc": true,
	"realloc": true,
	"valloc": true,
}

// copyArgToResult lists functions that return one of their own arguments
// unchanged (Call rule, Cg.cpp's non-allocating external
// models): the model is CopyArgToResult(argIdx).
var copyArgToResult = map[string]int{
	"strdup": 0,
	"strndup": 0,
}

// copyArgPairs lists functions that alias two of their arguments together
// (memcpy's dest absorbing src's contents, per oracle.Injector's
// CopyArgToArg doc).
var copyArgPairs = map[string][2]int{
	"memcpy": {0, 1},
	"memmove": {0, 1},
	"strcpy": {0, 1},
	"strcat": {0, 1},
	"strncpy": {0, 1},
}

// noops lists functions with no pointer-flow effect worth modeling: they
// are Modeled (so they don't warn as Unknown) but inject nothing.
var noops = map[string]bool{
	"free": true,
	"memset": true,
	"bzero": true,
	"strlen": true,
	"fflush": true,
	"puts": true,
	"printf": true,
	"fprintf": true,
}

// Classify implements oracle.ExtInfo.
func (Libc) Classify(fn *ir.Func) oracle.Classification {
	name := fn.Name()
	if allocators[name] {
		return oracle.Classification{Kind: oracle.Allocator, AllocType: types.I8}
	}
	if _, ok := copyArgToResult[name]; ok {
		return oracle.Classification{Kind: oracle.Modeled}
	}
	if _, ok := copyArgPairs[name]; ok {
		return oracle.Classification{Kind: oracle.Modeled}
	}
	if noops[name] {
		return oracle.Classification{Kind: oracle.Modeled}
	}
	return oracle.Classification{Kind: oracle.Unknown}
}

// InsertCallConstraints implements oracle.ExtInfo.
func (Libc) InsertCallConstraints(site oracle.CallSite, inject oracle.Injector) {
	name := site.Callee.Name()
	if argIdx, ok := copyArgToResult[name]; ok {
		inject.CopyArgToResult(argIdx)
		return
	}
	if pair, ok := copyArgPairs[name]; ok {
		inject.CopyArgToArg(pair[0], pair[1])
		return
	}
	// noops: inject nothing.
}

// AddGlobalConstraints implements oracle.ExtInfo, binding the well-known
// stdio/argv/envp names the design calls out.
func (Libc) AddGlobalConstraints(m *ir.Module, inject oracle.GlobalInjector) {
	for _, name := range []string{"stdout", "stderr", "stdin"} {
		inject.BindNamedObject(name, "stdio")
	}
	inject.BindNamedObject("environ", "envp")
}
