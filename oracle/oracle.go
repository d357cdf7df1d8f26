// Package oracle declares the read-only external collaborators the core
// consumes: ExtInfo (external-function models), UsedInfo (dead-code
// speculation), IndirInfo (indirect-call targets from a dynamic profile)
// and CallContextLoader (calling-context-stack validation against a trace).
// Per the design these are specified only via the interface they expose —
// this package carries no implementation beyond trivial "no data" defaults
// useful for tests and for running the core without any profile input.
package oracle

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// AllocKind classifies how ExtInfo treats a call to an external
// declaration.
type AllocKind int

const (
	// Unknown means the external function has no model: a warning is
	// logged and the call is treated as a no-op.
	Unknown AllocKind = iota
	// Modeled means ExtInfo injects bespoke constraints via
	// InsertCallConstraints.
	Modeled
	// Allocator means the call returns a fresh heap object of AllocType.
	Allocator
)

// Classification is ExtInfo's answer for one external function.
type Classification struct {
	Kind AllocKind
	AllocType types.Type // only meaningful when Kind == Allocator
}

// CallSite is the minimal shape ExtInfo's InsertCallConstraints needs to
// inject constraints for one call to an external function: the callee
// declaration and the call instruction itself (for argument/result
// access). The concrete constraint-graph type is intentionally not
// referenced here to avoid an import cycle; constraints are emitted
// through the Injector the caller passes to InsertCallConstraints.
type CallSite struct {
	Callee *ir.Func
	Instr *ir.InstCall
}

// ExtInfo classifies external (declaration-only) functions and injects
// whatever constraints their model requires, by design/§6.
type ExtInfo interface {
	// Classify reports how fn (a declaration with no body) should be
	// treated.
	Classify(fn *ir.Func) Classification

	// InsertCallConstraints lets the model contribute constraints for one
	// callsite of a Modeled function. inject is supplied by the caller
	// (constraint.Cg) and abstracts over "add a copy/load/store/addressOf
	// constraint between these two already-resolved ids"; ExtInfo never
	// needs to know about ids directly, only about argument/result
	// positions, which inject translates.
	InsertCallConstraints(site CallSite, inject Injector)

	// AddGlobalConstraints lets the model contribute constraints at
	// module scope (e.g. the well-known stdio/argv/envp objects).
	AddGlobalConstraints(m *ir.Module, inject GlobalInjector)
}

// Injector is the narrow callback ExtInfo models use to wire constraints
// for one callsite without depending on the constraint package's types.
type Injector interface {
	// CopyArgToResult copies argument index argIdx's points-to set into
	// the call's result (e.g. modeling `char *strdup(const char *s)` as
	// an allocator would instead use Allocate; this is for functions
	// like `char *strcpy(char *dst, const char *src)` that return one of
	// their own arguments).
	CopyArgToResult(argIdx int)
	// CopyArgToArg models functions that alias two arguments together
	// (e.g. memcpy's dest and the logical contents copied from src).
	CopyArgToArg(dstArgIdx, srcArgIdx int)
	// Allocate synthesizes a fresh object of typ and binds it to the
	// call's result: one object spanning typ's flattened field count,
	// linked to the result by a single AddressOf — never one AddressOf
	// per field.
	Allocate(typ types.Type)
	// StoreUniversalIntoArg models "this function may write anything,
	// through this argument, into global/unknown memory" — the
	// conservative fallback for under-modeled functions with pointer
	// outputs.
	StoreUniversalIntoArg(argIdx int)
}

// GlobalInjector is the module-scope counterpart of Injector.
type GlobalInjector interface {
	// BindNamedObject binds the global named name (e.g. "stdout",
	// "environ") to the canonical singleton object identified by
	// canonicalName (e.g. "stdio", "envp"), by design's well-known
	// globals rule.
	BindNamedObject(name, canonicalName string)
}

// UsedInfo answers whether a function or basic block is ever reached,
// according to an optional dynamic profile. A nil UsedInfo (or one
// reporting HasData()==false) means "no speculation": nothing is pruned.
type UsedInfo interface {
	HasData() bool
	IsUsed(key any) bool // key is *ir.Func or *ir.Block
}

// NoSpeculation is the trivial UsedInfo that never prunes anything.
type NoSpeculation struct{}

func (NoSpeculation) HasData() bool { return false }
func (NoSpeculation) IsUsed(any) bool { return true }

// IndirInfo answers the possible targets of an indirect callsite,
// according to an optional dynamic profile.
type IndirInfo interface {
	HasInfo() bool
	Targets(callsite any) []*ir.Func
}

// NoIndirInfo is the trivial IndirInfo with no data: every indirect call
// is deferred to the solver.
type NoIndirInfo struct{}

func (NoIndirInfo) HasInfo() bool { return false }
func (NoIndirInfo) Targets(any) []*ir.Func { return nil }

// CallContextLoader validates calling-context stacks against an optional
// dynamic trace (the design, §6). A nil loader (or one reporting
// HasDynData()==false) means every stack is accepted.
type CallContextLoader interface {
	HasDynData() bool
	IsValid(stack []any) bool
}

// NoContextData is the trivial loader: every stack is valid.
type NoContextData struct{}

func (NoContextData) HasDynData() bool { return false }
func (NoContextData) IsValid([]any) bool { return true }
