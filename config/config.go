// Package config carries the flags the analysis core honors.
// CLI flag parsing itself is out of scope ; cmd/ctxanders wires
// github.com/urfave/cli/v2 flags into this struct, but the core only ever
// sees the struct.
package config

import "github.com/andersctx/ctxanders/oracle"

// Config bundles every option named in the design, plus the oracle
// implementations the core consults. New's defaults (with no options)
// are speculation on when profile data exists, HCD off (DisableHCD, see
// below), an LCD threshold of 600, no-op dead-code and indirect-target
// oracles, and no debug dumping. The zero value differs: HCD enabled,
// a threshold of 0, and nil oracles.
type Config struct {
	// NoSpec disables all dynamic-profile speculation (dead-code pruning
	// and context-stack pruning alike).
	NoSpec bool
	// NoOpt disables the HCD pre-pass (there is no HVN pass).
	NoOpt bool

	// DisableHCD independently gates HCD even when NoOpt is false. The
	// original implementation shipped with HCD de facto disabled; we default this true so out-of-the-box behaviour matches, but
	// allow opting in explicitly once HCD has been validated against a
	// given program.
	DisableHCD bool

	// DebugIDs switches on the post-solve id dump in cmd/ctxanders.
	// DebugFcnNames and DebugGlobalName are carried here, but nothing in
	// this module reads them.
	DebugIDs bool
	DebugFcnNames bool
	DebugGlobalName string

	// DoSpecDiff and DoCheckDyn name report-only verification passes
	// (solver.Solver.CompareAgainst, context.CheckDynamicTrace), but nothing in
	// this module reads these flags: those functions run only when a
	// caller invokes them directly.
	DoSpecDiff bool
	DoCheckDyn bool

	// LCDThreshold is the candidate-node count the design says triggers an
	// LCD Tarjan pass (default ≈600).
	LCDThreshold int

	ExtInfo oracle.ExtInfo
	UsedInfo oracle.UsedInfo
	IndirInfo oracle.IndirInfo
	CallContextLoader oracle.CallContextLoader
}

// Option mutates a Config; New applies options over sensible defaults.
type Option func(*Config)

// New builds a Config from the given options.
func New(opts ...Option) *Config {
	c := &Config{
		DisableHCD: true,
		LCDThreshold: 600,
		UsedInfo: oracle.NoSpeculation{},
		IndirInfo: oracle.NoIndirInfo{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithNoSpec(v bool) Option { return func(c *Config) { c.NoSpec = v } }
func WithNoOpt(v bool) Option { return func(c *Config) { c.NoOpt = v } }
func WithHCD(enabled bool) Option { return func(c *Config) { c.DisableHCD = !enabled } }
func WithDebugIDs(v bool) Option { return func(c *Config) { c.DebugIDs = v } }
func WithDebugFcnNames(v bool) Option { return func(c *Config) { c.DebugFcnNames = v } }
func WithDebugGlobalName(name string) Option {
	return func(c *Config) { c.DebugGlobalName = name }
}
func WithSpecDiff(v bool) Option { return func(c *Config) { c.DoSpecDiff = v } }
func WithCheckDyn(v bool) Option { return func(c *Config) { c.DoCheckDyn = v } }
func WithLCDThreshold(n int) Option {
	return func(c *Config) { c.LCDThreshold = n }
}
func WithExtInfo(e oracle.ExtInfo) Option { return func(c *Config) { c.ExtInfo = e } }
func WithUsedInfo(u oracle.UsedInfo) Option {
	return func(c *Config) { c.UsedInfo = u }
}
func WithIndirInfo(i oracle.IndirInfo) Option {
	return func(c *Config) { c.IndirInfo = i }
}
func WithCallContextLoader(l oracle.CallContextLoader) Option {
	return func(c *Config) { c.CallContextLoader = l }
}

// HCDEnabled reports whether HCD's online merges should run at all.
func (c *Config) HCDEnabled() bool {
	return !c.NoOpt && !c.DisableHCD
}

// Speculating reports whether dead-code / context pruning speculation is
// active at all.
func (c *Config) Speculating() bool {
	return !c.NoSpec
}
