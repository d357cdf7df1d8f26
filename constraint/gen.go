// This file implements constraint generation: translating one function
// body's IR into Load/Store/Copy/AddressOf constraints. The node-creation
// and constraint-emission helpers `copyN`/`loadN`/`storeN`/`addressOf`/
// `gep`, and the per-instruction switch in `genInstr`, follow the
// classic pointer-analysis generation pass, generalized from
// ssa.Value/ssa.Instruction to llir/llvm's ir.Value/ir.Instruction and
// extended with an IntToPtr trace and a global-initializer walk.
package constraint

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/andersctx/ctxanders/callgraph"
	"github.com/andersctx/ctxanders/ctxerr"
	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/logz"
	"github.com/andersctx/ctxanders/oracle"
	"github.com/andersctx/ctxanders/structinfo"
)

// Generator holds the oracles and shared tables constraint generation
// needs but that don't belong to any one Cg: the struct/size oracle, the
// external-function oracle, the dead-code oracle, and the shared
// context-sensitive CFG table every Cg claims a node from.
type Generator struct {
	Struct *structinfo.Info
	Ext oracle.ExtInfo
	Used oracle.UsedInfo
	NoSpec bool // Config.NoSpec: disables all dead-code speculation
	CFG *callgraph.CsFcnCFG
	Log *logz.Logger
}

// NewGenerator returns a Generator ready to process an entire module. log
// may be nil, in which case the Warning-tier sites below (unmodeled
// external calls, IntToPtr traces that bottom out unsound, globals
// falling back to UniversalValue) log to a no-op logger rather than
// panicking on a nil receiver.
func NewGenerator(st *structinfo.Info, ext oracle.ExtInfo, used oracle.UsedInfo, noSpec bool, cfg *callgraph.CsFcnCFG, log *logz.Logger) *Generator {
	if used == nil {
		used = oracle.NoSpeculation{}
	}
	if log == nil {
		log = logz.Nop()
	}
	return &Generator{Struct: st, Ext: ext, Used: used, NoSpec: noSpec, CFG: cfg, Log: log}
}

// GenerateFunc builds a fresh Cg for fn and emits constraints for its
// entire body. fn must have a body (fn.Blocks != nil);
// declarations are handled entirely by the caller through ExtInfo
// classification, not here.
func (g *Generator) GenerateFunc(fn *ir.Func) *Cg {
	cg := New(fn)
	cg.SelfCFGNode = cg.NewCFGNode(g.CFG, fn)
	cg.FuncCFGNode[fn] = cg.SelfCFGNode

	sizeOf := func(t types.Type) uint32 { return g.Struct.SizeOf(t) }

	// Parameter and return nodes. LLVM IR functions have scalar (possibly
	// aggregate-typed) params directly, unlike ssa.Function's already-
	// decomposed parameter list, but the flattening rule is identical:
	// one id per scalar leaf field.
	var argIDs []idmap.ID
	for _, p := range fn.Params {
		sz := sizeOf(p.Typ)
		base := cg.Values.GetDefBlock(p, p.Ident(), sz)
		for i := uint32(0); i < sz; i++ {
			argIDs = append(argIDs, base+idmap.ID(i))
		}
	}
	var retID idmap.ID
	if !isVoid(fn.Sig.RetType) {
		retID = cg.Values.CreatePhonyID(fn.Ident() + ".ret")
	}
	var varargID idmap.ID
	if fn.Sig.Variadic {
		varargID = cg.Values.CreatePhonyID(fn.Ident() + ".vararg")
	}
	cg.FuncIface[fn] = CallInfo{Args: argIDs, Ret: retID, Vararg: varargID, Callee: fn}
	cg.Members = append(cg.Members, fn)

	// Pre-create value nodes for every instruction result so that
	// forward references (PHI edges into not-yet-visited blocks) resolve,
	// mirroring the classic two-pass genFunc.
	for _, b := range fn.Blocks {
		for _, instr := range b.Insts {
			if v, ok := instr.(value.Value); ok {
				t := v.Type()
				if !isVoid(t) {
					cg.Values.GetDefBlock(v, debugName(v), sizeOf(t))
				}
			}
		}
	}

	for _, b := range fn.Blocks {
		if g.speculativelyDead(cg, b) {
			cg.DeadCode = append(cg.DeadCode, DeadCodeAssumption{Block: b})
			continue
		}
		for _, instr := range b.Insts {
			g.genInstr(cg, instr, retID, varargID)
		}
		g.genTerm(cg, b.Term, retID)
	}

	return cg
}

// speculativelyDead reports whether block should be skipped under
// "Speculative dead-code pruning": only when speculation is
// enabled (NoSpec is false) and the dynamic profile actually has data
// about this block.
func (g *Generator) speculativelyDead(cg *Cg, b *ir.Block) bool {
	if g.NoSpec || g.Used == nil || !g.Used.HasData() {
		return false
	}
	return !g.Used.IsUsed(b)
}

func isVoid(t types.Type) bool {
	_, ok := t.(*types.VoidType)
	return ok
}

func debugName(v value.Value) string {
	if id, ok := v.(interface{ Ident() string }); ok {
		return id.Ident()
	}
	return fmt.Sprintf("%v", v)
}

// ---------------- node/constraint helpers (ported from classic copy/
// load/store/addressOf/offsetAddr) ----------------

func (cg *Cg) copyN(dst, src idmap.ID, n uint32) {
	if src == dst || n == 0 {
		return
	}
	for i := uint32(0); i < n; i++ {
		cg.Add(Constraint{Kind: Copy, Src: src + idmap.ID(i), Dest: dst + idmap.ID(i)})
	}
}

func (cg *Cg) addressOf(dst, obj idmap.ID) {
	cg.Add(Constraint{Kind: AddressOf, Src: obj, Dest: dst})
}

func (cg *Cg) loadN(dst, src idmap.ID, offset, n uint32) {
	for i := uint32(0); i < n; i++ {
		cg.Add(Constraint{Kind: Load, Src: src, Dest: dst + idmap.ID(i), Offs: offset + i})
	}
}

func (cg *Cg) storeN(dst, src idmap.ID, offset, n uint32) {
	for i := uint32(0); i < n; i++ {
		cg.Add(Constraint{Kind: Store, Src: src + idmap.ID(i), Dest: dst, Offs: offset + i})
	}
}

func (cg *Cg) gep(dst, src idmap.ID, offset uint32) {
	if offset == 0 {
		cg.copyN(dst, src, 1)
		return
	}
	cg.Add(Constraint{Kind: Copy, Src: src, Dest: dst, Offs: offset})
}

// valueNode returns the (base) id for v, creating it if this is the first
// reference (covers constants and globals that GenerateFunc's pre-pass does
// not create, since that pass only covers instruction results).
func (g *Generator) valueNode(cg *Cg, v value.Value) idmap.ID {
	switch vv := v.(type) {
	case *ir.Global:
		return g.globalNode(cg, vv)
	case *ir.Func:
		return g.funcNode(cg, vv)
	case constant.Constant:
		return g.constNode(cg, vv)
	default:
		sz := g.Struct.SizeOf(v.Type())
		return cg.Values.GetDefBlock(v, debugName(v), sz)
	}
}

func (g *Generator) globalNode(cg *Cg, gv *ir.Global) idmap.ID {
	key := GlobalVarKey(gv)
	if id, ok := cg.Values.LookupDef(key); ok {
		return id
	}
	id := cg.Values.GetDef(key, gv.Ident())
	// The global's object is created once, by GenerateRoot's genGlobal, in
	// the root Cg; a per-function Cg only holds the value node, which
	// MapIn unifies with the root's through GlobalVarKey.
	if obj, ok := cg.ObjectNode(gv); ok {
		cg.addressOf(id, obj)
	}
	return id
}

func (g *Generator) funcNode(cg *Cg, fn *ir.Func) idmap.ID {
	key := FuncKey(fn)
	if id, ok := cg.Values.LookupDef(key); ok {
		return id
	}
	id := cg.Values.GetDef(key, fn.Ident())
	obj := cg.Values.CreateAlloc(fn.Ident()+".obj", 1)
	cg.addressOf(id, obj)
	cg.FuncObjects[obj] = fn
	return id
}

func (g *Generator) constNode(cg *Cg, c constant.Constant) idmap.ID {
	switch cc := c.(type) {
	case *constant.Null:
		return idmap.NullValue
	case *constant.ExprPtrToInt:
		// Constant-expression PtrToInt sources are traced through.
		return g.valueNode(cg, cc.From)
	case *constant.ExprIntToPtr:
		sz := g.Struct.SizeOf(c.Type())
		id := cg.Values.GetDefBlock(c, fmt.Sprintf("%v", c), sz)
		cg.IntToPtrConsts[id] = true
		return id
	default:
		sz := g.Struct.SizeOf(c.Type())
		id := cg.Values.GetDefBlock(c, fmt.Sprintf("%v", c), sz)
		if obj, ok := cg.ObjectNode(c); ok {
			cg.addressOf(id, obj)
		}
		return id
	}
}

// valueOffsetNode returns the node for subfield #index of aggregate value
// v (ExtractValue/Field access), by adding index's flattened
// offset to v's base node.
func (g *Generator) valueOffsetNode(cg *Cg, v value.Value, indices []uint64) idmap.ID {
	base := g.valueNode(cg, v)
	off := g.Struct.GetGEPOffs(v.Type(), toInt64s(indices))
	return base + idmap.ID(off)
}

func toInt64s(u []uint64) []int64 {
	out := make([]int64, len(u)+1)
	out[0] = 0
	for i, x := range u {
		out[i+1] = int64(x)
	}
	return out
}

// ---------------- per-instruction generation ----------------

func (g *Generator) genInstr(cg *Cg, instr ir.Instruction, retID, varargID idmap.ID) {
	switch v := instr.(type) {
	case *ir.InstAlloca:
		g.genAlloca(cg, v)

	case *ir.InstLoad:
		g.genLoad(cg, v)

	case *ir.InstStore:
		g.genStore(cg, v)

	case *ir.InstGetElementPtr:
		g.genGEP(cg, v)

	case *ir.InstBitCast:
		g.genBitCast(cg, v)

	case *ir.InstPHI:
		g.genPHI(cg, v)

	case *ir.InstSelect:
		g.genSelect(cg, v)

	case *ir.InstIntToPtr:
		g.genIntToPtr(cg, v)

	case *ir.InstPtrToInt:
		// No-op for points-to purposes: the integer result is treated as
		// IntValue implicitly (nothing copies into it), matching the
		// asymmetric treatment of Int/Null.

	case *ir.InstExtractValue:
		dst := cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
		src := g.valueOffsetNode(cg, v.X, v.Indices)
		cg.copyN(dst, src, g.Struct.SizeOf(v.Type()))

	case *ir.InstInsertValue:
		// dst = insertvalue agg, elem, indices: dst aliases agg
		// everywhere except at indices, where it aliases elem. We
		// over-approximate (flow-insensitively) by
		// copying both agg wholesale and elem into its slot.
		dst := cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
		aggBase := g.valueNode(cg, v.X)
		cg.copyN(dst, aggBase, g.Struct.SizeOf(v.Type()))
		elemOff := g.Struct.GetGEPOffs(v.X.Type(), toInt64s(v.Indices))
		elemSrc := g.valueNode(cg, v.Elem)
		cg.copyN(dst+idmap.ID(elemOff), elemSrc, g.Struct.SizeOf(v.Elem.Type()))

	case *ir.InstVAArg:
		// Explicitly unsupported ("not yet supported; emitting
		// this is a fatal error").
		ctxerr.Raise("unsupported VAArg instruction", v)

	case *ir.InstCall:
		g.genCall(cg, v)

	default:
		// No constraint for arithmetic, comparisons, and other
		// non-pointer-producing instructions: cases not listed here
		// produce no constraint.
	}
}

func (g *Generator) genTerm(cg *Cg, term ir.Terminator, retID idmap.ID) {
	switch t := term.(type) {
	case *ir.TermRet:
		if t.X != nil && retID != idmap.NoID {
			sz := g.Struct.SizeOf(t.X.Type())
			src := g.valueNode(cg, t.X)
			cg.copyN(retID, src, sz)
		}
	case *ir.TermInvoke:
		// Explicitly rejected as input ("Invoke: explicitly
		// unsupported — input containing invokes is rejected").
		ctxerr.Raise("invoke instructions are rejected as input", t)
	default:
		// TermBr/TermCondBr/TermSwitch/TermUnreachable: no-op.
	}
}

func (g *Generator) genAlloca(cg *Cg, v *ir.InstAlloca) {
	dst := cg.Values.GetDefBlock(v, debugName(v), 1)
	fields := g.Struct.Flatten(v.ElemType)
	obj := cg.Values.CreateAlloc(debugName(v)+".obj", uint32(len(fields)))
	cg.SetObjectNode(v, obj)
	cg.addressOf(dst, obj)
}

func (g *Generator) genLoad(cg *Cg, v *ir.InstLoad) {
	if isVoid(v.Type()) {
		return
	}
	dst := cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
	if !isPointerLike(v.Type()) {
		// Integer loads of a pointer-of-integer type synthesize a load
		// into IntValue, consuming the address so that pointer bits stored
		// to memory as integers flow back out through IntValue; the loaded
		// register itself gets no points-to. Other non-pointer loads emit
		// nothing.
		if _, ok := v.Type().(*types.IntType); ok {
			cg.loadN(idmap.IntValue, g.valueNode(cg, v.Src), 0, 1)
		}
		return
	}
	addr := g.valueNode(cg, v.Src)
	if obj, ok := objectOf(cg, g, v.Src); ok {
		cg.copyN(dst, obj, g.Struct.SizeOf(v.Type()))
		return
	}
	cg.loadN(dst, addr, 0, g.Struct.SizeOf(v.Type()))
}

func (g *Generator) genStore(cg *Cg, v *ir.InstStore) {
	var srcID idmap.ID
	if isPointerLike(v.Src.Type()) {
		srcID = g.valueNode(cg, v.Src)
	} else if isIntToPtrConst(v.Src) {
		srcID = g.valueNode(cg, v.Src)
	} else {
		// Integer-into-pointer stores use IntValue as the source.
		srcID = idmap.IntValue
	}
	addr := g.valueNode(cg, v.Dst)
	sz := g.Struct.SizeOf(v.Src.Type())
	if obj, ok := objectOf(cg, g, v.Dst); ok {
		cg.copyN(obj, srcID, sz)
		return
	}
	cg.storeN(addr, srcID, 0, sz)
}

func isIntToPtrConst(v value.Value) bool {
	_, ok := v.(*constant.ExprIntToPtr)
	return ok
}

func isPointerLike(t types.Type) bool {
	switch t.(type) {
	case *types.PointerType:
		return true
	default:
		return false
	}
}

// objectOf resolves ptr to a known object node, mirroring the classic
// objectNode optimisation: when a pointer's sole referent is statically
// known (Alloca, Global, GEP-of-known-object, ...), loads/stores through
// it become plain Copy constraints instead of dynamic Load/Store.
func objectOf(cg *Cg, g *Generator, ptr value.Value) (idmap.ID, bool) {
	switch p := ptr.(type) {
	case *ir.InstAlloca:
		return cg.ObjectNode(p)
	case *ir.Global:
		return cg.ObjectNode(p)
	case *ir.InstGetElementPtr:
		if obj, ok := objectOf(cg, g, p.Src); ok {
			off := g.Struct.GetGEPOffs(elemTypeOf(p.Src.Type()), toInt64sSigned(p.Indices))
			return obj + idmap.ID(off), true
		}
	}
	return idmap.NoID, false
}

func toInt64sSigned(indices []value.Value) []int64 {
	out := make([]int64, 0, len(indices))
	for _, idx := range indices {
		if ci, ok := idx.(*constant.Int); ok {
			out = append(out, ci.X.Int64())
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func (g *Generator) genGEP(cg *Cg, v *ir.InstGetElementPtr) {
	dst := cg.Values.GetDefBlock(v, debugName(v), 1)
	if obj, ok := objectOf(cg, g, v); ok {
		cg.addressOf(dst, obj)
		return
	}
	src := g.valueNode(cg, v.Src)
	off := g.Struct.GetGEPOffs(elemTypeOf(v.Src.Type()), toInt64sSigned(v.Indices))
	cg.gep(dst, src, off)
}

func (g *Generator) genBitCast(cg *Cg, v *ir.InstBitCast) {
	if !isPointerLike(v.Type()) {
		return
	}
	dst := cg.Values.GetDefBlock(v, debugName(v), 1)

	// Special case : cast from ptr(struct) to ptr(array(T))
	// emits one Copy per top-level field offset of the source struct.
	srcElem := elemTypeOf(v.From.Type())
	dstElem := elemTypeOf(v.Type())
	if st, ok := srcElem.(*types.StructType); ok {
		if _, isArr := dstElem.(*types.ArrayType); isArr {
			src := g.valueNode(cg, v.From)
			offs := g.Struct.Offsets(st)
			for _, off := range offs {
				cg.gep(dst, src, off)
			}
			return
		}
	}
	src := g.valueNode(cg, v.From)
	cg.copyN(dst, src, 1)
}

func elemTypeOf(t types.Type) types.Type {
	if pt, ok := t.(*types.PointerType); ok {
		return pt.ElemType
	}
	return t
}

func (g *Generator) genPHI(cg *Cg, v *ir.InstPHI) {
	if isVoid(v.Type()) {
		return
	}
	dst := cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
	sz := g.Struct.SizeOf(v.Type())
	for _, inc := range v.Incs {
		src := g.valueNode(cg, inc.X)
		cg.copyN(dst, src, sz)
	}
}

func (g *Generator) genSelect(cg *Cg, v *ir.InstSelect) {
	if isVoid(v.Type()) {
		return
	}
	dst := cg.Values.GetDefBlock(v, debugName(v), g.Struct.SizeOf(v.Type()))
	sz := g.Struct.SizeOf(v.Type())
	cg.copyN(dst, g.valueNode(cg, v.X), sz)
	cg.copyN(dst, g.valueNode(cg, v.Y), sz)
}

// genIntToPtr implements IntToPtr rule, tracing the integer
// through unary/binary arithmetic, PtrToInt, loads of globals, and
// same-block store-forwarded addresses (ported from Cg.cpp's traceInt).
func (g *Generator) genIntToPtr(cg *Cg, v *ir.InstIntToPtr) {
	dst := cg.Values.GetDefBlock(v, debugName(v), 1)
	sources, allPointerOnly := g.traceIntToPtr(v.From, map[value.Value]bool{})
	for _, src := range sources {
		cg.copyN(dst, g.valueNode(cg, src), 1)
	}
	if !allPointerOnly {
		// The trace did not terminate in pointer-only sources: also Copy
		// IntValue -> dst, reproducing the source's
		// deliberately-unsound-in-places IntToPtr handling rather than
		// trying to "fix" it.
		g.Log.Warnf("IntToPtr %s: integer trace did not resolve to pointer-only sources, falling back to IntValue", debugName(v))
		cg.copyN(dst, idmap.IntValue, 1)
	}
}

// traceIntToPtr mirrors Cg.cpp's traceInt: it returns every traced source
// value that is itself a pointer (so the caller can Copy from each), and
// whether every traced path bottomed out at a pointer-valued source
// (true) or at least one path bottomed out at a non-pointer / opaque
// value (false, meaning IntValue must also flow in).
func (g *Generator) traceIntToPtr(v value.Value, seen map[value.Value]bool) (sources []value.Value, allPointerOnly bool) {
	if seen[v] {
		return nil, true
	}
	seen[v] = true

	switch vv := v.(type) {
	case *ir.Param:
		return nil, false
	case *constant.Int:
		return nil, false
	case *constant.ExprPtrToInt:
		return []value.Value{vv.From}, isPointerLike(vv.From.Type())
	case *ir.InstPtrToInt:
		return []value.Value{vv.From}, isPointerLike(vv.From.Type())
	case *ir.InstLoad:
		if gv, ok := vv.Src.(*ir.Global); ok {
			return g.traceGlobalInit(gv)
		}
		if src, ok := forwardedStore(vv); ok {
			return g.traceIntToPtr(src, seen)
		}
		return nil, false
	case *ir.InstICmp, *ir.InstFCmp, *ir.InstCall, *ir.InstVAArg,
		*ir.InstExtractElement, *ir.InstFPToUI, *ir.InstFPToSI:
		return nil, false
	default:
		// Unary/binary arithmetic and anything else not explicitly
		// classified: trace through every operand, unioning results.
		ops := operandsOf(v)
		if len(ops) == 0 {
			return nil, false
		}
		all := true
		for _, op := range ops {
			s, ok := g.traceIntToPtr(op, seen)
			sources = append(sources, s...)
			all = all && ok
		}
		return sources, all
	}
}

// traceGlobalInit recurses the trace into a global's initializer: a Load of a global recurses into the global's
// initializer.
func (g *Generator) traceGlobalInit(gv *ir.Global) ([]value.Value, bool) {
	if gv.Init == nil {
		return nil, false
	}
	if isPointerLike(gv.Init.Type()) {
		return []value.Value{gv.Init}, true
	}
	return nil, false
}

// forwardedStore scans backward, within li's own basic block, for the
// most recent Store to li's source address, stopping at li itself: it scans backward in the same basic block for the most recent Store to
// that address").
func forwardedStore(li *ir.InstLoad) (value.Value, bool) {
	block := parentBlockOf(li)
	if block == nil {
		return nil, false
	}
	var found value.Value
	for _, instr := range block.Insts {
		if instr == ir.Instruction(li) {
			break
		}
		if st, ok := instr.(*ir.InstStore); ok && st.Dst == li.Src {
			found = st.Src
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

func parentBlockOf(instr *ir.InstLoad) *ir.Block {
	if p, ok := any(instr).(interface{ Parent() *ir.Block }); ok {
		return p.Parent()
	}
	return nil
}

func operandsOf(v value.Value) []value.Value {
	if op, ok := v.(interface{ Operands() []*value.Value }); ok {
		ptrs := op.Operands()
		out := make([]value.Value, len(ptrs))
		for i, p := range ptrs {
			out[i] = *p
		}
		return out
	}
	return nil
}
