package main

import (
	"fmt"
	"io"
	"os"

	"github.com/coder/quartz"

	"github.com/lox/uboat/internal/chart"
	"github.com/lox/uboat/internal/fileutil"
	"github.com/lox/uboat/internal/runid"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
)

// SimulateCmd runs one batch and reports it against the theoretical table
type SimulateCmd struct {
	Runs    int     `short:"n" default:"10000" help:"Number of searches to simulate"`
	MaxRuns int     `default:"1000000" help:"Reject --runs above this ceiling"`
	Policy  string  `default:"duplicates" help:"Sampling policy: duplicates or unique"`
	Draws   int     `default:"5" help:"Draws per search (1-6)"`
	Seed    int64   `default:"0" help:"RNG seed (0 for random)"`
	Workers int     `default:"0" help:"Worker goroutines (0 for one per CPU)"`
	Exact   bool    `help:"Compare against the exact table instead of the reference table"`
	Raw     bool    `help:"Keep per-search hit counts in the JSON output"`
	Output  string  `short:"o" default:"simulation_results.json" help:"JSON report path (empty to skip)"`
	Chart   string  `help:"Write an HTML chart page to this path"`
	Alpha   float64 `default:"0.01" help:"Significance level for the goodness-of-fit verdict"`
	Quiet   bool    `short:"q" help:"Hide the progress bar"`

	out io.Writer `kong:"-"`
}

// simulationOutput is the JSON file layout
type simulationOutput struct {
	RunID string `json:"run_id"`
	Seed  int64  `json:"seed"`
	simulator.Report
}

func (c *SimulateCmd) Run(g *Globals) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	logger := setupLogger(os.Stderr, g.Debug)

	policy, err := sampler.ParsePolicy(c.Policy)
	if err != nil {
		return err
	}

	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	config := simulator.Config{
		Policy:     policy,
		Draws:      c.Draws,
		Workers:    c.Workers,
		Seed:       c.Seed,
		MaxTrials:  c.MaxRuns,
		KeepRaw:    c.Raw,
		ExactTable: c.Exact,
		Logger:     logger,
	}
	if !c.Quiet {
		config.Progress = newDotProgress(os.Stderr).Report
	}

	sim, err := simulator.New(config)
	if err != nil {
		return err
	}
	seed := sim.Config().Seed
	id, err := runid.NewGenerator(quartz.NewReal(), nil).New()
	if err != nil {
		return err
	}
	logger.Debug("Running simulations", "run_id", id, "runs", c.Runs, "policy", policy, "draws", c.Draws, "seed", seed)

	report, err := sim.CompareBatch(ctx, c.Runs)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	printReport(out, report, c.Alpha)

	if c.Output != "" {
		saved := report
		if !c.Raw {
			saved = report.Strip()
		}
		if err := fileutil.WriteJSONAtomic(c.Output, simulationOutput{RunID: id, Seed: seed, Report: saved}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Results saved to %s (seed %d)\n", c.Output, seed)
	}

	if c.Chart != "" {
		err := fileutil.WriteAtomic(c.Chart, 0o644, func(w io.Writer) error {
			return chart.Render(w, report)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Chart saved to %s\n", c.Chart)
	}

	return nil
}
