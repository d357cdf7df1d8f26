// Package resolve implements call resolution : folding a
// function's (or a static SCC's) per-function Cg into the calling
// program's accumulated global Cg, one call site at a time, cloning the
// callee per calling context and connecting argument/return flow. It is
// a standalone package — rather than methods on constraint.Cg — because
// it needs both the constraint package (for Cg/MapIn/Clone) and the
// cgcache package (for base_cache/full_cache), and cgcache itself needs
// to name constraint.Cg: putting resolution logic in constraint would
// create an import cycle.
package resolve

import (
	"github.com/llir/llvm/ir"

	"github.com/andersctx/ctxanders/callgraph"
	"github.com/andersctx/ctxanders/cgcache"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/context"
	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/oracle"
)

// Resolver carries every read-only collaborator call resolution needs:
// the shared call-graph tables, the calling-context oracle and manager,
// the indirect-call oracle, and the generation entry point for cache
// misses. Warning-tier logging for the conditions resolution can surface
// (unmodeled external calls, unsound IntToPtr traces, uninitialized
// globals) lives on constraint.Generator, the layer that actually
// observes them.
type Resolver struct {
	CFG *callgraph.CsCFG
	Cache *cgcache.Cache
	CtxMgr *context.Manager
	Loader oracle.CallContextLoader
	Indir oracle.IndirInfo
	Generate func(*ir.Func) *constraint.Cg
}

// New returns a Resolver. loader/indir may be nil, meaning "no oracle
// data" (default, unconstrained resolution).
func New(cfg *callgraph.CsCFG, cache *cgcache.Cache, ctxMgr *context.Manager, loader oracle.CallContextLoader, indir oracle.IndirInfo, generate func(*ir.Func) *constraint.Cg) *Resolver {
	return &Resolver{CFG: cfg, Cache: cache, CtxMgr: ctxMgr, Loader: loader, Indir: indir, Generate: generate}
}

// ResolveProgram folds main (and everything it transitively calls) into
// one global Cg, by synthesizing a single pending direct call from
// rootCg to main and driving it to a fixed point ("global
// Cg obtained by folding from main", mirroring a genRootCalls pass).
// rootCg must already carry every global's constraints
// (see constraint.Generator.GenerateRoot).
func (r *Resolver) ResolveProgram(rootCg *constraint.Cg, mainFn *ir.Func) *constraint.Cg {
	rootCg.AddPendingDirect(constraint.PendingDirectCall{
		Site: constraint.CallInfo{Callee: mainFn},
		Callee: mainFn,
		CFGNode: rootCg.SelfCFGNode,
	})
	r.ResolveCalls(rootCg, nil)
	bindMainArgs(rootCg, mainFn)
	return rootCg
}

// bindMainArgs copies the argv/envp named singletons into main's 2nd and
// 3rd formal parameters (ground behavior: addGlobalConstraints copies
// argv into main_args[1] and envp into main_args[2] once main's call
// interface exists). A main with fewer than three parameters binds
// whichever of argv/envp it actually declares.
func bindMainArgs(rootCg *constraint.Cg, mainFn *ir.Func) {
	ci, ok := rootCg.IsKnownCallee(mainFn)
	if !ok {
		return
	}
	if argv, ok := rootCg.Values.LookupDef(constraint.NamedSingletonKey("argv")); ok && len(ci.Args) > 1 {
		copyID(rootCg, ci.Args[1], argv)
	}
	if envp, ok := rootCg.Values.LookupDef(constraint.NamedSingletonKey("envp")); ok && len(ci.Args) > 2 {
		copyID(rootCg, ci.Args[2], envp)
	}
}

// ResolveCalls drains cg's pending direct call queue to a fixed point,
// resolving each against stack (cg's own calling-context path), then
// classifies cg's pending indirect calls exactly once per round: with no
// indirect-targets oracle (the common case), an indirect call stays
// genuinely pending — it is left for the solver's online handling rather than re-queued into this same loop, which would spin
// forever re-discovering the same unresolved callsite. An oracle-backed
// indirect call that *does* resolve to concrete targets turns into fresh
// PendingDirect entries, so the loop runs another round to drain those.
func (r *Resolver) ResolveCalls(cg *constraint.Cg, stack context.Stack) {
	for {
		direct := cg.PendingDirect
		cg.PendingDirect = nil
		for _, pd := range direct {
			r.resolveDirect(cg, pd, stack)
		}
		if len(cg.PendingDirect) > 0 {
			continue
		}

		indirect := cg.PendingIndirect
		cg.PendingIndirect = nil
		progressed := false
		for _, pi := range indirect {
			before := len(cg.PendingDirect)
			r.resolveIndirect(cg, pi, stack)
			if len(cg.PendingDirect) > before {
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
}

// resolveDirect classifies and resolves one direct call (the design's
// classification table): cyclic if the callee is already a member of
// cg's own FuncIface (same merged SCC), acyclic otherwise.
func (r *Resolver) resolveDirect(cg *constraint.Cg, pd constraint.PendingDirectCall, stack context.Stack) {
	if ci, ok := cg.IsKnownCallee(pd.Callee); ok {
		r.connectCyclic(cg, pd, ci)
		return
	}
	r.resolveAcyclic(cg, pd, stack)
}

// connectCyclic wires a call whose callee lives in the same merged SCC as
// the caller ("cyclic call ... args/ret are already in the
// same Cg; just connect them and add the CFG edge").
func (r *Resolver) connectCyclic(cg *constraint.Cg, pd constraint.PendingDirectCall, callee constraint.CallInfo) {
	connectArgs(cg, pd.Site, callee)
	if node, ok := cg.FuncCFGNode[pd.Callee]; ok {
		if !r.CFG.Ctx.IsPredecessor(node, pd.CFGNode) {
			r.CFG.Ctx.AddPred(node, pd.CFGNode)
		}
	}
}

// resolveAcyclic implements the design steps 1-7 for a direct call whose
// callee lies outside the caller's current SCC:
//
// 1. Compute candidate calling-context stacks (extend cg's current
// stacks by this call site) and partition them against the context
// oracle.
// 2. Skip the call entirely if the oracle is active and no candidate
// survived (every context for this path is invalid).
// 3. Obtain the callee's base Cg (generating it on a cache miss).
// 4. Clone the base Cg — one clone serves every surviving candidate
// context, since the clone's own structure doesn't depend on which
// context reached it.
// 5. Recursively resolve the clone's own pending calls under the
// extended stack, then map the clone into the caller.
// 6. Memoize the clone as the callee's full Cg when there is no context
// oracle in play (a context-insensitive full resolution is reusable
// by every future caller).
// 7. Connect the call's arguments/return/varargs and add a CFG
// predecessor edge.
func (r *Resolver) resolveAcyclic(cg *constraint.Cg, pd constraint.PendingDirectCall, stack context.Stack) {
	candidates := context.CandidateStacks([]context.Stack{stack}, pd.Site.Instr)
	valid, invalid := context.Partition(r.Loader, candidates)
	if r.CtxMgr != nil {
		r.CtxMgr.RecordPruned(len(invalid))
	}
	if context.ShouldSkip(r.Loader, valid) {
		return
	}
	nextStack := stack
	if len(valid) > 0 {
		nextStack = valid[0]
	}

	dynActive := r.Loader != nil && r.Loader.HasDynData()

	if full, ok := r.Cache.GetFull(pd.Callee); ok && !dynActive {
		tr := constraint.MapIn(cg, full)
		ci := cg.FuncIface[pd.Callee]
		connectArgs(cg, pd.Site, ci)
		r.addPredEdge(cg, pd, tr)
		return
	}

	base := r.mergedBase(pd.Callee)
	clone, _ := constraint.Clone(base)
	r.ResolveCalls(clone, nextStack)

	tr := constraint.MapIn(cg, clone)
	if !dynActive {
		r.Cache.PutFull(pd.Callee, clone)
	}
	ci := cg.FuncIface[pd.Callee]
	connectArgs(cg, pd.Site, ci)
	r.addPredEdge(cg, pd, tr)
}

func (r *Resolver) addPredEdge(cg *constraint.Cg, pd constraint.PendingDirectCall, tr idmap.Translation) {
	if node, ok := cg.FuncCFGNode[pd.Callee]; ok {
		if !r.CFG.Ctx.IsPredecessor(node, pd.CFGNode) {
			r.CFG.Ctx.AddPred(node, pd.CFGNode)
		}
	}
}

// OnlineResolver adapts a Resolver into the solver package's
// NewCalleeResolver callback : it folds one newly-discovered
// indirect-call target into the shared global Cg via the exact same
// resolveDirect path static calls use, then hands the solver only the
// constraints/indirect-calls that were actually added, so the solver
// never needs to know about Cg/CallInfo at all.
type OnlineResolver struct {
	R *Resolver
	GlobalCg *constraint.Cg
}

// ResolveNewTarget implements solver.NewCalleeResolver.
func (o *OnlineResolver) ResolveNewTarget(ic constraint.IndirectCall, target any) ([]constraint.Constraint, []constraint.IndirectCall) {
	fn, ok := target.(*ir.Func)
	if !ok {
		return nil, nil
	}
	beforeC := len(o.GlobalCg.Constraints)
	beforeI := len(o.GlobalCg.PendingIndirect)

	pd := constraint.PendingDirectCall{Site: ic.Info, Callee: fn, CFGNode: ic.CFGNode}
	o.GlobalCg.AddPendingDirect(pd)
	o.R.ResolveCalls(o.GlobalCg, nil)

	newC := append([]constraint.Constraint(nil), o.GlobalCg.Constraints[beforeC:]...)
	newI := append([]constraint.IndirectCall(nil), o.GlobalCg.PendingIndirect[beforeI:]...)
	o.GlobalCg.PendingIndirect = o.GlobalCg.PendingIndirect[:beforeI]
	return newC, newI
}

// mergedBase returns the base Cg fn should be cloned from, merging fn's
// entire static SCC together first (mergeScc): every member
// of a recursive cycle must share one Cg before resolution, or a
// self-/mutually-recursive call could never find its callee in
// FuncIface and would loop through resolveAcyclic forever. The merged
// Cg is cached under every member's key, so resolving a call to any
// sibling reuses the same merge.
func (r *Resolver) mergedBase(fn *ir.Func) *constraint.Cg {
	if cg, ok := r.Cache.Base.Get(fn); ok {
		return cg
	}
	members := r.CFG.Basic.SCCMembers(fn)
	var merged *constraint.Cg
	for _, m := range members {
		mcg := r.Generate(m)
		if merged == nil {
			merged = mcg
			continue
		}
		constraint.MergeScc(merged, mcg)
	}
	for _, m := range members {
		r.Cache.Base.Add(m, merged)
	}
	return merged
}

// resolveIndirect implements indirect-call classification:
// with an indirect-targets oracle, the callsite is treated as a set of
// synthetic direct calls to every listed target; with no oracle, the
// call is deferred entirely to the solver's online handling,
// which discovers targets as points-to information grows.
func (r *Resolver) resolveIndirect(cg *constraint.Cg, pi constraint.IndirectCall, stack context.Stack) {
	if r.Indir == nil || !r.Indir.HasInfo() {
		cg.AddPendingIndirect(pi)
		return
	}
	targets := r.Indir.Targets(pi.Info.Instr)
	if len(targets) == 0 {
		cg.AddPendingIndirect(pi)
		return
	}
	for _, t := range targets {
		pd := constraint.PendingDirectCall{Site: pi.Info, Callee: t, CFGNode: pi.CFGNode}
		cg.AddPendingDirect(pd)
	}
}

// connectArgs wires a callsite's actual argument/return ids to the
// callee's formal CallInfo (the design step 7): args connect positionally
// up to the callee's fixed arity, any surplus (a variadic call) connects
// into the callee's vararg sink if it has one, and the return value
// copies back into the call's result id.
func connectArgs(cg *constraint.Cg, site constraint.CallInfo, callee constraint.CallInfo) {
	n := len(callee.Args)
	if n > len(site.Args) {
		n = len(site.Args)
	}
	for i := 0; i < n; i++ {
		copyID(cg, callee.Args[i], site.Args[i])
	}
	if callee.Vararg != idmap.NoID {
		for i := n; i < len(site.Args); i++ {
			copyID(cg, callee.Vararg, site.Args[i])
		}
	}
	if callee.Ret != idmap.NoID && site.Ret != idmap.NoID {
		copyID(cg, site.Ret, callee.Ret)
	}
}

// copyID emits a Copy constraint from src to dst directly on cg, without
// going through Cg.Add's generation-time helpers (those live in package
// constraint and are unexported; resolve only ever needs this one shape).
func copyID(cg *constraint.Cg, dst, src idmap.ID) {
	cg.Add(constraint.Constraint{Kind: constraint.Copy, Src: src, Dest: dst})
}
