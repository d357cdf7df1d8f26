package constraint

import "github.com/andersctx/ctxanders/idmap"

// CallInfo is the interface to one call site : the argument ids
// (caller- or callee-side, depending on which Cg owns this record), the
// return id, an optional vararg-sink id, and the call instruction handle
// used for identity/debugging.
type CallInfo struct {
	Args []idmap.ID
	Ret idmap.ID // NoID if the callee returns nothing pointer-like
	Vararg idmap.ID // NoID if the callee has no variadic sink
	Instr any // *ir.InstCall / *ir.InstInvoke / similar IR handle
	Callee any // *ir.Func for a direct call; nil for indirect
}

// IndirectCall is one pending indirect callsite: the id of the function-
// pointer value, the CallInfo for the site, and the owning CsFcnCFG node
// (so the call graph gains a predecessor edge once resolved).
type IndirectCall struct {
	FuncPtr idmap.ID
	Info CallInfo
	CFGNode int // index into the owning Cg's CsFcnCFG node list
}

// translateCallInfo rewrites ci's ids through tr, used when mapping a
// callee's Cg into a caller's.
func translateCallInfo(ci CallInfo, tr idmap.Translation) CallInfo {
	args := make([]idmap.ID, len(ci.Args))
	for i, a := range ci.Args {
		args[i] = tr.Map(a)
	}
	out := ci
	out.Args = args
	if ci.Ret != idmap.NoID {
		out.Ret = tr.Map(ci.Ret)
	}
	if ci.Vararg != idmap.NoID {
		out.Vararg = tr.Map(ci.Vararg)
	}
	return out
}
