// Package ctxerr implements the three-tier error classification the design
// requires: Fatal (abort via panic/recover at the cmd boundary), Warning
// (logged, analysis continues) and Pruned (counted, not reported as an
// error at all — see context.Manager.PrunedCount).
package ctxerr

import "fmt"

// Fatal is panicked for "Fatal (abort)" class: an Invoke
// instruction in input, a VAArg instruction, an unknown constant-
// expression kind, a constraint pointing at an invalid id, an HCD/LCD
// merge producing inconsistent state, or a solver that (structurally
// unexpectedly) fails to reach a fixed point.
type Fatal struct {
	Reason string
	Value any // the offending IR value/instruction, for diagnostics
}

func (f *Fatal) Error() string {
	if f.Value != nil {
		return fmt.Sprintf("ctxanders: fatal: %s (%v)", f.Reason, f.Value)
	}
	return fmt.Sprintf("ctxanders: fatal: %s", f.Reason)
}

// Raise panics with a *Fatal. Call sites that should abort use this
// instead of a bare panic so cmd/ctxanders's recover() can distinguish an
// analysis-level fatal error from a genuine programming bug.
func Raise(reason string, value any) {
	panic(&Fatal{Reason: reason, Value: value})
}

// Recover turns a recovered *Fatal into an error, and re-panics anything
// else (a real bug should not be swallowed as if it were a modeled fatal
// condition).
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if f, ok := r.(*Fatal); ok {
		return f
	}
	panic(r)
}
