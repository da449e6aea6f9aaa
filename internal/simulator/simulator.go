package simulator

import (
	"context"
	"fmt"
	"io"
	rand "math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/uboat/internal/compare"
	"github.com/lox/uboat/internal/randutil"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/statistics"
	"github.com/lox/uboat/internal/theory"
)

// DefaultMaxTrials is the largest batch accepted unless configured otherwise.
const DefaultMaxTrials = 1_000_000

// chunkSize is the number of trials drawn from one random stream. Chunks are
// seeded by their index so a seed replays identically at any worker count.
const chunkSize = 4096

// ErrInvalidArgument is returned for out of range batch sizes and unsupported
// policy/draw combinations.
var ErrInvalidArgument = sampler.ErrInvalidArgument

// Config holds configuration for running simulations
type Config struct {
	Policy sampler.Policy
	Draws  int
	// Workers is the number of goroutines a batch is split across. Zero uses
	// one per CPU.
	Workers int
	// Seed makes batches reproducible. Batch i of a simulator uses Seed+i.
	// Zero draws a seed from the operating system.
	Seed      int64
	MaxTrials int
	// KeepRaw retains the per-trial hit counts in the summary.
	KeepRaw bool
	// ExactTable compares against the derived table instead of the published
	// reference values, and allows draw counts without a reference table.
	ExactTable bool
	Logger     *log.Logger
	// Progress, when set, is called from worker goroutines as trials finish.
	// It must be safe for concurrent use.
	Progress func(done, total int)
}

// Simulator runs batches of sonar searches for one policy and draw count.
type Simulator struct {
	config  Config
	sampler *sampler.Sampler
	table   theory.Distribution
	domain  sampler.Domain
	batches atomic.Int64

	mu  sync.Mutex
	rng *rand.Rand // single trials only
}

// New validates the configuration and creates a simulator.
func New(config Config) (*Simulator, error) {
	if config.Draws == 0 {
		config.Draws = sampler.DefaultDraws
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MaxTrials <= 0 {
		config.MaxTrials = DefaultMaxTrials
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	if config.Seed == 0 {
		seed, err := randutil.Seed()
		if err != nil {
			return nil, err
		}
		config.Seed = seed
	}

	smp, err := sampler.New(config.Policy, config.Draws)
	if err != nil {
		return nil, err
	}
	table, err := lookupTable(config.Policy, config.Draws, config.ExactTable)
	if err != nil {
		return nil, err
	}

	return &Simulator{
		config:  config,
		sampler: smp,
		table:   table,
		domain:  sampler.CellDomain(),
		rng:     randutil.New(config.Seed - 1),
	}, nil
}

func lookupTable(policy sampler.Policy, draws int, exact bool) (theory.Distribution, error) {
	if exact {
		return theory.Exact(policy, draws)
	}
	return theory.Reference(policy, draws)
}

// Config returns the effective configuration, with defaults applied.
func (s *Simulator) Config() Config {
	return s.config
}

// Theoretical returns the reference table for a policy and draw count.
func Theoretical(policy sampler.Policy, draws int) (theory.Distribution, error) {
	return theory.Reference(policy, draws)
}

// RunSingleTrial performs one search, for callers that display the draws.
func (s *Simulator) RunSingleTrial() (sampler.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampler.Run(randutil.NewDie(s.rng))
}

// RunBatch runs n independent searches across the configured workers and
// summarises them. Cancelling ctx abandons the batch with no partial result.
func (s *Simulator) RunBatch(ctx context.Context, n int) (statistics.Summary, error) {
	if n < 1 || n > s.config.MaxTrials {
		return statistics.Summary{}, fmt.Errorf("%w: trials must be between 1 and %d, got %d", ErrInvalidArgument, s.config.MaxTrials, n)
	}

	batch := s.batches.Add(1) - 1
	batchSeed := s.config.Seed + batch
	chunks := (n + chunkSize - 1) / chunkSize
	workers := min(s.config.Workers, chunks)

	logger := s.config.Logger.With("batch", batch, "policy", s.config.Policy, "draws", s.config.Draws)
	logger.Debug("Starting batch", "trials", n, "chunks", chunks, "workers", workers, "seed", batchSeed)
	start := time.Now()

	partials := make([]*statistics.Statistics, chunks)
	var next, done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				c := int(next.Add(1) - 1)
				if c >= chunks {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}

				trials := min(chunkSize, n-c*chunkSize)
				die := randutil.NewDie(randutil.Stream(batchSeed, c))
				stats := statistics.New(s.config.KeepRaw)
				for i := range trials {
					out, err := s.sampler.Run(die)
					if err != nil {
						return fmt.Errorf("chunk %d trial %d: %w", c, i, err)
					}
					stats.Add(out)
				}
				partials[c] = stats
				s.report(int(done.Add(int64(trials))), n)
			}
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("Batch failed", "error", err)
		return statistics.Summary{}, err
	}

	// Merge in chunk order so raw values come out in a fixed order.
	total := statistics.New(s.config.KeepRaw)
	for _, p := range partials {
		total.Merge(p)
	}

	summary, err := total.Summary(s.domain)
	if err != nil {
		return statistics.Summary{}, fmt.Errorf("statistics validation failed: %w", err)
	}

	logger.Debug("Batch complete", "trials", n, "mean", summary.Mean, "duration", time.Since(start))
	return summary, nil
}

func (s *Simulator) report(done, total int) {
	if s.config.Progress != nil {
		s.config.Progress(done, total)
	}
}

// Table returns the table batches are compared against.
func (s *Simulator) Table() theory.Distribution {
	out := make(theory.Distribution, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out
}

// CompareBatch runs a batch and lines it up against the simulator's table.
func (s *Simulator) CompareBatch(ctx context.Context, n int) (Report, error) {
	summary, err := s.RunBatch(ctx, n)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Policy:     s.config.Policy,
		Draws:      s.config.Draws,
		Statistics: summary,
		Comparison: compare.Compare(summary, s.table, s.domain),
	}, nil
}

// RunBatch is a convenience function for a one-off batch with default workers
// and a fresh seed.
func RunBatch(ctx context.Context, n int, policy sampler.Policy, draws int) (statistics.Summary, error) {
	sim, err := New(Config{Policy: policy, Draws: draws})
	if err != nil {
		return statistics.Summary{}, err
	}
	return sim.RunBatch(ctx, n)
}

// CompareBatch is the convenience form of (*Simulator).CompareBatch.
func CompareBatch(ctx context.Context, n int, policy sampler.Policy, draws int) (Report, error) {
	sim, err := New(Config{Policy: policy, Draws: draws})
	if err != nil {
		return Report{}, err
	}
	return sim.CompareBatch(ctx, n)
}

// RunSingleTrial is the convenience form of (*Simulator).RunSingleTrial.
func RunSingleTrial(policy sampler.Policy, draws int) (sampler.Outcome, error) {
	sim, err := New(Config{Policy: policy, Draws: draws, Workers: 1})
	if err != nil {
		return sampler.Outcome{}, err
	}
	return sim.RunSingleTrial()
}
