package constraint

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/oracle"
	"github.com/andersctx/ctxanders/structinfo"
)

// genCall implements Call rule: build the callsite's CallInfo,
// then either synthesize an allocator object, inject an external model's
// constraints, record an acyclic/cyclic-pending direct call for the
// resolve stage to classify, or record a pending indirect call.
func (g *Generator) genCall(cg *Cg, v *ir.InstCall) {
	var dst idmap.ID
	if !isVoid(v.Type()) {
		dst = cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
	}

	var args []idmap.ID
	for _, a := range v.Args {
		sz := g.Struct.SizeOf(a.Type())
		base := g.valueNode(cg, a)
		for i := uint32(0); i < sz; i++ {
			args = append(args, base+idmap.ID(i))
		}
	}
	ci := CallInfo{Args: args, Ret: dst, Instr: v}

	if fn, ok := v.Callee.(*ir.Func); ok {
		ci.Callee = fn
		if len(fn.Blocks) == 0 {
			g.genExternalCall(cg, fn, v, ci, dst)
			return
		}
		cg.AddPendingDirect(PendingDirectCall{Site: ci, Callee: fn, CFGNode: cg.SelfCFGNode})
		return
	}

	fp := g.valueNode(cg, v.Callee)
	cg.AddPendingIndirect(IndirectCall{FuncPtr: fp, Info: ci, CFGNode: cg.SelfCFGNode})
}

// genExternalCall resolves a call to a body-less declaration via ExtInfo
// (the design/§6/§7): Allocator synthesizes a fresh heap object, Modeled
// delegates to the model's InsertCallConstraints, Unknown is a no-op.
func (g *Generator) genExternalCall(cg *Cg, fn *ir.Func, v *ir.InstCall, ci CallInfo, dst idmap.ID) {
	if g.Ext == nil {
		return
	}
	class := g.Ext.Classify(fn)
	switch class.Kind {
	case oracle.Allocator:
		if dst == idmap.NoID {
			return
		}
		fields := g.Struct.Flatten(class.AllocType)
		obj := cg.Values.CreateAlloc(debugName(v)+".heap", uint32(len(fields)))
		cg.SetObjectNode(v, obj)
		cg.addressOf(dst, obj)
	case oracle.Modeled:
		inj := &injector{cg: cg, ci: ci, st: g.Struct}
		g.Ext.InsertCallConstraints(oracle.CallSite{Callee: fn, Instr: v}, inj)
	case oracle.Unknown:
		// No model: logged and treated as a no-op.
		g.Log.Warnf("external call %s: no classification from ExtInfo, treating as a no-op", fn.Ident())
	}
}

// injector implements oracle.Injector against one callsite's already-
// resolved CallInfo, so ExtInfo models never need to know about
// constraint.Cg or idmap.ID directly.
type injector struct {
	cg *Cg
	ci CallInfo
	st *structinfo.Info
}

func (j *injector) CopyArgToResult(argIdx int) {
	if j.ci.Ret == idmap.NoID || argIdx >= len(j.ci.Args) {
		return
	}
	j.cg.copyN(j.ci.Ret, j.ci.Args[argIdx], 1)
}

func (j *injector) CopyArgToArg(dstArgIdx, srcArgIdx int) {
	if dstArgIdx >= len(j.ci.Args) || srcArgIdx >= len(j.ci.Args) {
		return
	}
	j.cg.copyN(j.ci.Args[dstArgIdx], j.ci.Args[srcArgIdx], 1)
}

func (j *injector) Allocate(typ types.Type) {
	if j.ci.Ret == idmap.NoID {
		return
	}
	fields := j.st.Flatten(typ)
	obj := j.cg.Values.CreateAlloc("ext.alloc", uint32(len(fields)))
	j.cg.addressOf(j.ci.Ret, obj)
}

func (j *injector) StoreUniversalIntoArg(argIdx int) {
	if argIdx >= len(j.ci.Args) {
		return
	}
	j.cg.storeN(j.ci.Args[argIdx], idmap.UniversalValue, 0, 1)
}
