package resolve_test

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/assert"

	"github.com/andersctx/ctxanders/callgraph"
	"github.com/andersctx/ctxanders/cgcache"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/resolve"
)

// newTestCFG returns a CsCFG with no functions pre-registered; SCCMembers
// on an unregistered function falls back to "just itself", which is
// exactly what a direct, non-recursive call needs.
func newTestCFG() *callgraph.CsCFG {
	mod := ir.NewModule()
	return callgraph.NewCsCFG(mod)
}

func TestResolveAcyclicFoldsCalleeAndConnectsReturn(t *testing.T) {
	calleeFn := &ir.Func{}
	callerFn := &ir.Func{}

	cfg := newTestCFG()

	generate := func(fn *ir.Func) *constraint.Cg {
		cg := constraint.New(fn)
		retID := cg.Values.GetDef("ret", "ret")
		obj := cg.Values.CreateAlloc("heap", 1)
		cg.Add(constraint.Constraint{Kind: constraint.AddressOf, Src: obj, Dest: retID})
		cg.FuncIface[fn] = constraint.CallInfo{Ret: retID}
		cg.SelfCFGNode = cg.NewCFGNode(cfg.Ctx, fn)
		cg.FuncCFGNode[fn] = cg.SelfCFGNode
		return cg
	}

	cache := cgcache.New()
	r := resolve.New(cfg, cache, nil, nil, nil, generate)

	callerCg := constraint.New(callerFn)
	callerCg.SelfCFGNode = callerCg.NewCFGNode(cfg.Ctx, callerFn)
	callResult := callerCg.Values.GetDef("callresult", "callresult")

	callerCg.AddPendingDirect(constraint.PendingDirectCall{
		Site: constraint.CallInfo{Ret: callResult},
		Callee: calleeFn,
		CFGNode: callerCg.SelfCFGNode,
	})

	r.ResolveCalls(callerCg, nil)

	ci, ok := callerCg.IsKnownCallee(calleeFn)
	assert.True(t, ok)

	foundCopy := false
	for _, c := range callerCg.Constraints {
		if c.Kind == constraint.Copy && c.Dest == callResult && c.Src == ci.Ret {
			foundCopy = true
		}
	}
	assert.True(t, foundCopy, "expected a Copy from the callee's translated return id into the call result")

	// The callee's own AddressOf constraint must have been folded in too.
	foundAddr := false
	for _, c := range callerCg.Constraints {
		if c.Kind == constraint.AddressOf && c.Dest == ci.Ret {
			foundAddr = true
		}
	}
	assert.True(t, foundAddr)
}

func TestResolveCyclicConnectsWithoutCloning(t *testing.T) {
	fn := &ir.Func{}
	cfg := newTestCFG()

	cg := constraint.New(fn)
	cg.SelfCFGNode = cg.NewCFGNode(cfg.Ctx, fn)
	cg.FuncCFGNode[fn] = cg.SelfCFGNode
	retID := cg.Values.GetDef("ret", "ret")
	argID := cg.Values.GetDef("arg", "arg")
	cg.FuncIface[fn] = constraint.CallInfo{Ret: retID, Args: []idmap.ID{argID}}

	callResult := cg.Values.GetDef("callresult", "callresult")
	callArg := cg.Values.GetDef("callarg", "callarg")

	cache := cgcache.New()
	generate := func(*ir.Func) *constraint.Cg { t.Fatal("cyclic call must not regenerate the callee"); return nil }
	r := resolve.New(cfg, cache, nil, nil, nil, generate)

	cg.AddPendingDirect(constraint.PendingDirectCall{
		Site: constraint.CallInfo{Ret: callResult, Args: []idmap.ID{callArg}},
		Callee: fn,
		CFGNode: cg.SelfCFGNode,
	})

	r.ResolveCalls(cg, nil)

	foundArgCopy, foundRetCopy := false, false
	for _, c := range cg.Constraints {
		if c.Kind == constraint.Copy && c.Src == callArg && c.Dest == argID {
			foundArgCopy = true
		}
		if c.Kind == constraint.Copy && c.Src == retID && c.Dest == callResult {
			foundRetCopy = true
		}
	}
	assert.True(t, foundArgCopy)
	assert.True(t, foundRetCopy)
}

func TestResolveIndirectWithNoOracleDefersToSolver(t *testing.T) {
	cfg := newTestCFG()
	cache := cgcache.New()
	r := resolve.New(cfg, cache, nil, nil, nil, func(f *ir.Func) *constraint.Cg { return constraint.New(f) })

	cg := constraint.New(nil)
	fp := cg.Values.GetDef("fp", "fp")
	cg.AddPendingIndirect(constraint.IndirectCall{FuncPtr: fp, Info: constraint.CallInfo{}})

	r.ResolveCalls(cg, nil)

	assert.Len(t, cg.PendingIndirect, 1, "an indirect call with no targets oracle must stay pending for the solver")
}
