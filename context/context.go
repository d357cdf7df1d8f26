// Package context maintains valid calling-context stacks and prunes
// invalid ones against an optional dynamic trace ("Context
// Management"). It is deliberately decoupled from constraint.Cg: a Cg
// merely owns a []Stack (curStacks_) and a []Stack of observed invalid
// stacks; this package supplies the pure functions that grow, validate and
// prune those slices.
package context

import (
	"fmt"

	"github.com/andersctx/ctxanders/oracle"
)

// CallSiteID names one static call site for context-stack purposes. Any
// comparable, stable identity works; constraint.Cg uses the callsite's IR
// instruction pointer.
type CallSiteID = any

// Stack is an ordered sequence of call-site ids describing the call path
// that produced a cloned callee Cg (a "context stack").
// Stacks are value-type sequences kept in flat, append-only backing
// arrays: cheap to clone because invalid stacks are dropped at clone time
// rather than mutated in place.
type Stack []CallSiteID

// Extend returns a new stack with site appended, unless site already
// equals the stack's top (the design step 1: "append ... unless it equals
// the stack's top" — this collapses a direct self-recursive tail so
// stacks stay bounded even across unbounded recursion depth).
func (s Stack) Extend(site CallSiteID) Stack {
	if len(s) > 0 && s[len(s)-1] == site {
		return s
	}
	out := make(Stack, len(s)+1)
	copy(out, s)
	out[len(s)] = site
	return out
}

// Equal reports whether two stacks name the same call-site sequence.
func (s Stack) Equal(other Stack) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// CandidateStacks computes, for a call site, the set of candidate stacks
// reachable by appending site to every stack in cur (the design step 1,
// first half).
func CandidateStacks(cur []Stack, site CallSiteID) []Stack {
	out := make([]Stack, len(cur))
	for i, s := range cur {
		out[i] = s.Extend(site)
	}
	return out
}

// Partition splits candidates into valid and invalid stacks according to
// loader. When loader has no dynamic data, every candidate is valid
// (the design step 1, second half: "check each candidate stack against the
// context oracle").
func Partition(loader oracle.CallContextLoader, candidates []Stack) (valid, invalid []Stack) {
	if loader == nil || !loader.HasDynData() {
		return candidates, nil
	}
	for _, s := range candidates {
		anys := make([]any, len(s))
		for i, id := range s {
			anys[i] = id
		}
		if loader.IsValid(anys) {
			valid = append(valid, s)
		} else {
			invalid = append(invalid, s)
		}
	}
	return valid, invalid
}

// ShouldSkip reports whether a call site should be skipped entirely: the
// oracle is active, and no valid stack remains (the design step 2).
func ShouldSkip(loader oracle.CallContextLoader, valid []Stack) bool {
	return loader != nil && loader.HasDynData() && len(valid) == 0
}

// Manager aggregates bookkeeping that doesn't belong to any one Cg: a
// running count of pruned call sites (the design "Pruned (counted, not
// reported)"). The replay-against-trace check is the separate function
// CheckDynamicTrace.
type Manager struct {
	pruned int
}

// NewManager returns an empty Manager.
func NewManager() *Manager { return &Manager{} }

// RecordPruned increments the pruned-call-site counter by n.
func (m *Manager) RecordPruned(n int) { m.pruned += n }

// PrunedCount reports how many call sites have been pruned so far.
func (m *Manager) PrunedCount() int { return m.pruned }

// CheckDynamicTrace replays a loaded dynamic call-stack trace (as a set of
// valid stacks, one entry per observed path) and reports every stack in
// usedStacks that the solver relied on (i.e. appears in curStacks_ of some
// resolved Cg) but which never actually appears in trace. This is
// grounded on CsSolve.cpp's
// do_check_dyn report.
func CheckDynamicTrace(usedStacks []Stack, trace []Stack) (unobserved []Stack) {
	seen := make(map[string]bool, len(trace))
	for _, t := range trace {
		seen[stackKey(t)] = true
	}
	for _, s := range usedStacks {
		if !seen[stackKey(s)] {
			unobserved = append(unobserved, s)
		}
	}
	return unobserved
}

func stackKey(s Stack) string {
	// Stacks are typically short (call-site depth, not program size), so
	// a %v-style composite key is cheap; correctness only requires that
	// distinct stacks produce distinct keys, which %v over comparable
	// call-site ids guarantees.
	b := make([]byte, 0, len(s)*8)
	for _, id := range s {
		b = append(b, []byte(toKeyPart(id))...)
		b = append(b, 0)
	}
	return string(b)
}

func toKeyPart(id CallSiteID) string {
	type stringer interface{ String() string }
	if s, ok := id.(stringer); ok {
		return s.String()
	}
	return fmt.Sprint(id)
}
