package constraint

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/oracle"
)

// GenerateRoot builds the synthetic module-scope Cg (Fn == nil) that owns
// every global variable's object and initializer constraints, plus the
// named singletons the design calls out (the universal object's
// self-reference, and the well-known stdio/argv/envp objects). Every
// per-function Cg references globals through the exact same GlobalKey
// identity (see valueNode/globalNode in gen.go), so later import/merge
// steps reconcile them onto this root Cg's ids.
func (g *Generator) GenerateRoot(mod *ir.Module) *Cg {
	cg := New(nil)
	cg.SelfCFGNode = cg.NewCFGNode(g.CFG, nil)

	g.genNamedSingletons(cg)

	for _, gv := range mod.Globals {
		g.genGlobal(cg, gv)
	}

	if g.Ext != nil {
		g.Ext.AddGlobalConstraints(mod, &globalInjector{cg: cg})
	}

	return cg
}

// genNamedSingletons wires "named singletons": the universal
// object is its own address (anything reachable through it stays
// reachable — a conservative top element), and well-known external
// memory (argv/envp/stdio) gets one canonical object each so every
// function that touches stdin/stdout/stderr/environ aliases the same
// location.
func (g *Generator) genNamedSingletons(cg *Cg) {
	cg.addressOf(idmap.UniversalValue, idmap.UniversalValue)
	cg.Add(Constraint{Kind: Store, Src: idmap.UniversalValue, Dest: idmap.UniversalValue})

	for _, name := range []string{"stdio", "argv", "envp"} {
		key := NamedSingletonKey(name)
		id := cg.Values.GetDef(key, name)
		obj := cg.Values.CreateAlloc(name+".obj", 1)
		cg.SetObjectNode(key, obj)
		cg.addressOf(id, obj)
		cg.addressOf(obj, idmap.UniversalValue)
	}
}

// genGlobal emits the AddressOf linking gv's value node to its storage
// object, then walks gv's initializer (if any) recursively.
func (g *Generator) genGlobal(cg *Cg, gv *ir.Global) {
	if _, ok := cg.ObjectNode(gv); ok {
		return
	}
	elemType := gv.ContentType
	fields := g.Struct.Flatten(elemType)
	obj := cg.Values.CreateAlloc(gv.Ident()+".obj", uint32(len(fields)))
	cg.SetObjectNode(gv, obj)
	id := cg.Values.GetDef(GlobalVarKey(gv), gv.Ident())
	cg.addressOf(id, obj)

	if gv.Init != nil {
		g.genInitializer(cg, obj, 0, gv.Init)
		return
	}
	// A declared-but-undefined (external-linkage) global has no known
	// initializer; the conservative fallback is a store of UniversalValue
	// into it, so anything that loads this global still soundly observes
	// "could point anywhere" rather than nothing at all.
	g.Log.Warnf("global %s: no initializer, falling back to UniversalValue", gv.Ident())
	cg.Add(Constraint{Kind: Store, Src: idmap.UniversalValue, Dest: obj})
}

// genInitializer recursively walks a global's constant initializer: ConstantPointerNull/undef
// contribute no points-to; a ConstantStruct recurses field-by-field at
// the struct's own offsets; a ConstantArray/ConstantDataArray recurses
// every element at offset zero (array elements are modeled
// field-insensitively, like GEP-of-array); any other constant pointer
// emits a synthetic "global init" store into the target offset.
func (g *Generator) genInitializer(cg *Cg, obj idmap.ID, offset uint32, c constant.Constant) {
	switch cc := c.(type) {
	case *constant.ZeroInitializer, *constant.Null, *constant.Undef:
		return

	case *constant.Struct:
		st, ok := cc.Typ.(*types.StructType)
		if !ok {
			return
		}
		offs := g.Struct.Offsets(st)
		for i, field := range cc.Fields {
			if i >= len(offs) {
				break
			}
			g.genInitializer(cg, obj, offset+offs[i], field)
		}

	case *constant.Array:
		for _, elem := range cc.Elems {
			g.genInitializer(cg, obj, offset, elem)
		}

	case *constant.CharArray:
		// A constant string/byte blob: no pointers inside.
		return

	default:
		if !isPointerLike(c.Type()) {
			return
		}
		src := g.valueNode(cg, c)
		cg.storeN(obj+idmap.ID(offset), src, 0, 1)
	}
}

// globalInjector is the module-scope counterpart of injector (gencall.go),
// implementing oracle.GlobalInjector so ExtInfo models can bind
// well-known names (e.g. "stdout") onto the canonical singleton objects
// genNamedSingletons created.
type globalInjector struct {
	cg *Cg
}

func (gi *globalInjector) BindNamedObject(name, canonicalName string) {
	canonKey := NamedSingletonKey(canonicalName)
	id, ok := gi.cg.Values.LookupDef(canonKey)
	if !ok {
		return
	}
	nameKey := NamedSingletonKey(name)
	nid := gi.cg.Values.GetDef(nameKey, name)
	gi.cg.copyN(nid, id, 1)
}

var _ oracle.GlobalInjector = (*globalInjector)(nil)
