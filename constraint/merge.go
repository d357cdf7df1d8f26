package constraint

import "github.com/andersctx/ctxanders/idmap"

// GlobalKey reports whether key names a global identity (a *ir.Func,
// *ir.Global, or a well-known named constant such as argv/envp/stdio)
// that must be merged by identity across ValueMaps rather than
// duplicated ("global IDs ... must be merged by identity;
// local IDs become fresh"). gen.go registers such keys using the exact
// same key shape this predicate inspects.
func GlobalKey(key any) bool {
	switch key.(type) {
	case globalFuncKey, globalVarKey, namedSingletonKey:
		return true
	default:
		return false
	}
}

// MapIn imports src's entire ValueMap and constraint set into dst,
// translating every id through the returned table. This is the shared
// machinery behind both the acyclic-call "map-in" step (the design step 5)
// and SCC merging (mergeScc): both need "import another Cg's
// ValueMap, constraints, CallInfos, indirect calls, and CFG membership,
// merging invalid-stack sets", differing only in what happens to the
// call that triggered the merge (handled by the caller).
func MapIn(dst, src *Cg) idmap.Translation {
	tr := dst.Values.Import(src.Values, GlobalKey)

	for _, c := range src.Constraints {
		dst.Add(Constraint{Kind: c.Kind, Src: tr.Map(c.Src), Dest: tr.Map(c.Dest), Offs: c.Offs})
	}

	for fn, ci := range src.FuncIface {
		if _, already := dst.FuncIface[fn]; !already {
			dst.FuncIface[fn] = translateCallInfo(ci, tr)
			dst.Members = append(dst.Members, fn)
		}
	}
	for fn, node := range src.FuncCFGNode {
		if _, already := dst.FuncCFGNode[fn]; !already {
			dst.FuncCFGNode[fn] = node
		}
	}
	for obj, fn := range src.FuncObjects {
		dst.FuncObjects[tr.Map(obj)] = fn
	}
	for id := range src.IntToPtrConsts {
		dst.IntToPtrConsts[tr.Map(id)] = true
	}

	for _, pd := range src.PendingDirect {
		dst.PendingDirect = append(dst.PendingDirect, PendingDirectCall{
			Site: translateCallInfo(pd.Site, tr),
			Callee: pd.Callee,
			CFGNode: pd.CFGNode,
		})
	}
	for _, pi := range src.PendingIndirect {
		dst.PendingIndirect = append(dst.PendingIndirect, IndirectCall{
			FuncPtr: tr.Map(pi.FuncPtr),
			Info: translateCallInfo(pi.Info, tr),
			CFGNode: pi.CFGNode,
		})
	}

	dst.CFGNodes = append(dst.CFGNodes, src.CFGNodes...)
	dst.DeadCode = append(dst.DeadCode, src.DeadCode...)
	dst.PtstoAssumps = append(dst.PtstoAssumps, src.PtstoAssumps...)
	dst.InvalidStacks = append(dst.InvalidStacks, src.InvalidStacks...)

	return tr
}

// MergeScc merges rhs into cg in place, for two Cgs discovered to belong
// to the same static-call-graph SCC (mergeScc). It assumes
// rhs and cg are disjoint in FuncIface (the caller only merges each SCC
// member once). After the structural merge, any pending direct call in
// either Cg whose callee now has a FuncIface entry in the merged Cg is
// converted into a direct cyclic reference: the caller (resolve package)
// reads FuncIface to find these during its own pass, so MergeScc itself
// only needs to perform the import — promotion to "cyclic" falls out
// naturally because IsKnownCallee will now report true for any SCC-mate.
func MergeScc(cg, rhs *Cg) idmap.Translation {
	return MapIn(cg, rhs)
}

// Clone returns a fresh Cg with the same structure as cg (constraints,
// FuncIface, pending calls, CFG membership) but an independent ValueMap:
// every local id is renumbered, while ids registered under a GlobalKey
// are preserved by identity (they simply allocate fresh-but-marked
// entries in the clone, ready to be reconciled against a caller's Cg by
// a later MapIn). This is the design step 2's "clone the callee's base Cg
// once per candidate calling context".
func Clone(cg *Cg) (*Cg, idmap.Translation) {
	dst := New(cg.Fn)
	tr := MapIn(dst, cg)
	return dst, tr
}

// Key types used to mark "global identity" entries in a ValueMap's defs
// table. gen.go constructs these when registering a function, a global
// variable, or a named singleton (argv/envp/stdio/universal-ish constants)
// so that MapIn/Import can recognize and merge them by identity.
type globalFuncKey struct{ fn any }
type globalVarKey struct{ gv any }
type namedSingletonKey struct{ name string }

// FuncKey returns the stable identity key for a function value node.
func FuncKey(fn any) any { return globalFuncKey{fn: fn} }

// GlobalVarKey returns the stable identity key for a global variable's
// value node.
func GlobalVarKey(gv any) any { return globalVarKey{gv: gv} }

// NamedSingletonKey returns the stable identity key for one of the
// well-known named objects (argv, envp, stdio, universal, panic, ...).
func NamedSingletonKey(name string) any { return namedSingletonKey{name: name} }
