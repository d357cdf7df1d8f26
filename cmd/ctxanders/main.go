// Command ctxanders runs the context-sensitive inclusion-based points-to
// analysis end to end: parse an LLVM IR module, generate constraints
// function by function, fold everything reachable from main into one
// global constraint graph, solve it to a fixed point, and report.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andersctx/ctxanders/alias"
	"github.com/andersctx/ctxanders/callgraph"
	"github.com/andersctx/ctxanders/cgcache"
	"github.com/andersctx/ctxanders/config"
	"github.com/andersctx/ctxanders/constraint"
	"github.com/andersctx/ctxanders/context"
	"github.com/andersctx/ctxanders/ctxerr"
	"github.com/andersctx/ctxanders/extmodel"
	"github.com/andersctx/ctxanders/graph"
	"github.com/andersctx/ctxanders/idmap"
	"github.com/andersctx/ctxanders/ir"
	"github.com/andersctx/ctxanders/logz"
	"github.com/andersctx/ctxanders/resolve"
	"github.com/andersctx/ctxanders/solver"
	"github.com/andersctx/ctxanders/structinfo"
)

func main() {
	app := &cli.App{
		Name: "ctxanders",
		Usage: "context-sensitive inclusion-based points-to analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "entry", Value: "main", Usage: "entry point function name"},
			&cli.BoolFlag{Name: "no-spec", Usage: "disable dynamic-profile speculation"},
			&cli.BoolFlag{Name: "no-opt", Usage: "disable the HCD pre-pass"},
			&cli.BoolFlag{Name: "hcd", Usage: "enable HCD explicitly (off by default)"},
			&cli.IntFlag{Name: "lcd-threshold", Value: 600},
			&cli.BoolFlag{Name: "debug-ids"},
			&cli.BoolFlag{Name: "debug", Usage: "verbose logging"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("usage: ctxanders [flags] <module.ll>", 2)
	}
	path := c.Args().Get(0)

	log := logz.New(c.Bool("debug"))
	defer log.Sync()

	defer func() {
		if r := recover(); r != nil {
			log.Warnf("fatal: %v", ctxerr.Recover(r))
			os.Exit(1)
		}
	}()

	prog, err := ir.Load(path)
	if err != nil {
		return err
	}
	entryFn, ok := prog.EntryPoint(c.String("entry"))
	if !ok {
		return cli.Exit(fmt.Sprintf("ctxanders: no defined function named %q", c.String("entry")), 2)
	}

	cfg := config.New(
		config.WithNoSpec(c.Bool("no-spec")),
		config.WithNoOpt(c.Bool("no-opt")),
		config.WithHCD(c.Bool("hcd")),
		config.WithLCDThreshold(c.Int("lcd-threshold")),
		config.WithDebugIDs(c.Bool("debug-ids")),
		config.WithExtInfo(extmodel.Libc{}),
	)

	csCFG := callgraph.NewCsCFG(prog.Module)
	st := structinfo.New()
	gen := constraint.NewGenerator(st, cfg.ExtInfo, cfg.UsedInfo, cfg.NoSpec, csCFG.Ctx, log)

	cache := cgcache.New()
	ctxMgr := context.NewManager()
	resolver := resolve.New(csCFG, cache, ctxMgr, cfg.CallContextLoader, cfg.IndirInfo, gen.GenerateFunc)

	rootCg := gen.GenerateRoot(prog.Module)
	resolver.ResolveProgram(rootCg, entryFn)

	g := graph.New(rootCg.Values)
	g.MapIn(rootCg)

	online := &resolve.OnlineResolver{R: resolver, GlobalCg: rootCg}
	sv := solver.New(g, cfg, online)
	sv.Solve()

	q := alias.New(g)
	if retID := rootCg.FuncIface[entryFn].Ret; retID != idmap.NoID {
		log.Debugf("entry point return value points-to: %s", q.PointsTo(retID).String())
	}

	log.Infof("solved: %d nodes, %d pruned calling contexts", len(g.Nodes), alias.PrunedCount(aliasReporter{ctxMgr}))
	if cfg.DebugIDs {
		dumpIDs(rootCg, g)
	}
	return nil
}

// aliasReporter adapts context.Manager to alias.InvalidStacksReporter so
// main doesn't need alias to import context just for this one call.
type aliasReporter struct{ mgr *context.Manager }

func (a aliasReporter) PrunedCount() int { return a.mgr.PrunedCount() }

func dumpIDs(cg *constraint.Cg, g *graph.Graph) {
	for id, n := range g.Nodes {
		fmt.Printf("n%d (%s): pts=%s\n", id, cg.Values.Name(id), n.Pts.String())
	}
}
