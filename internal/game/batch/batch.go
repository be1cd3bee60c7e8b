// Package batch runs many independent walks and aggregates how often they
// reach a target within the turn budget.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/walksim/internal/game/dice"
	"github.com/cory-johannsen/walksim/internal/game/walk"
)

// Runner executes a single walk. *walk.Simulator satisfies it.
type Runner interface {
	Run(cfg walk.Config) (walk.Trajectory, error)
}

// Options tunes how a batch executes. The zero value is usable.
type Options struct {
	// Workers bounds the number of trials run in parallel. Values <= 0 use GOMAXPROCS.
	Workers int
	// KeepTrajectories retains each trial's full trajectory in the result.
	KeepTrajectories bool
}

// Trial summarizes one walk of a batch.
type Trial struct {
	Index int
	// Seed is the seed the trial actually ran with; replaying it reproduces the walk.
	Seed          int64
	Success       bool
	FirstHitTurn  int
	FinalPosition int
	MaxPosition   int
	Resets        int
	Trajectory    *walk.Trajectory
}

// Result is the aggregate outcome of a batch.
//
// Invariant: 0 <= SuccessCount <= TrialCount and
// SuccessRate == SuccessCount / TrialCount.
type Result struct {
	ID           string
	Strategy     SeedStrategy
	BaseSeed     int64
	Target       int
	TurnBudget   int
	TrialCount   int
	SuccessCount int
	SuccessRate  float64
	// MeanFinalPosition is averaged over all trials.
	MeanFinalPosition float64
	// MeanFirstHitTurn is averaged over successful trials only; 0 when none succeeded.
	MeanFirstHitTurn float64
	TotalResets      int
	// Trials is indexed by trial number, independent of completion order.
	Trials []Trial
}

// Aggregator runs batches of walks.
type Aggregator struct {
	runner  Runner
	logger  *zap.Logger
	opts    Options
	entropy func() (int64, error)
}

// NewAggregator creates an Aggregator that runs trials with runner.
//
// Precondition: runner must be non-nil. A nil logger disables logging.
func NewAggregator(runner Runner, logger *zap.Logger, opts Options) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		runner:  runner,
		logger:  logger,
		opts:    opts,
		entropy: dice.NewEntropySeed,
	}
}

// RunBatch runs trialCount independent walks of cfg seeded per strategy.
// cfg.Seed is the base seed. A trial succeeds when its trajectory ever
// reaches cfg.Target, whether or not the walk stopped there.
//
// Postcondition: on error no trial results are returned; configuration errors
// wrap walk.ErrInvalidConfig and are reported before any trial runs.
func (a *Aggregator) RunBatch(ctx context.Context, cfg walk.Config, trialCount int, strategy SeedStrategy) (Result, error) {
	if err := validate(cfg, trialCount, strategy); err != nil {
		return Result{}, err
	}

	seeds, err := a.seeds(cfg.Seed, trialCount, strategy)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	id := uuid.NewString()
	logger := a.logger.With(zap.String("batch_id", id))
	logger.Info("batch started",
		zap.Int("trials", trialCount),
		zap.Stringer("strategy", strategy),
		zap.Int64("base_seed", cfg.Seed),
		zap.Int("target", *cfg.Target),
		zap.Int("turn_budget", cfg.TurnBudget),
	)

	trials := make([]Trial, trialCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i := range trialCount {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tcfg := cfg
			tcfg.Seed = seeds[i]
			traj, err := a.runner.Run(tcfg)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			trials[i] = newTrial(i, tcfg.Seed, *cfg.Target, traj, a.opts.KeepTrajectories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("batch failed", zap.Error(err))
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		logger.Error("batch cancelled", zap.Error(err))
		return Result{}, err
	}

	res := aggregate(trials)
	res.ID = id
	res.Strategy = strategy
	res.BaseSeed = cfg.Seed
	res.Target = *cfg.Target
	res.TurnBudget = cfg.TurnBudget

	logger.Info("batch complete",
		zap.Int("successes", res.SuccessCount),
		zap.Float64("success_rate", res.SuccessRate),
		zap.Float64("mean_final_position", res.MeanFinalPosition),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func validate(cfg walk.Config, trialCount int, strategy SeedStrategy) error {
	if trialCount <= 0 {
		return fmt.Errorf("%w: trial count must be > 0, got %d", walk.ErrInvalidConfig, trialCount)
	}
	if cfg.Target == nil {
		return fmt.Errorf("%w: batch requires a target position", walk.ErrInvalidConfig)
	}
	if strategy < SeedFixed || strategy > SeedUnseeded {
		return fmt.Errorf("%w: unknown seed strategy %d", walk.ErrInvalidConfig, int(strategy))
	}
	return cfg.Validate()
}

func (a *Aggregator) seeds(base int64, n int, strategy SeedStrategy) ([]int64, error) {
	seeds := make([]int64, n)
	for i := range seeds {
		switch strategy {
		case SeedFixed:
			seeds[i] = base
		case SeedDerived:
			seeds[i] = dice.DeriveSeed(base, i)
		case SeedUnseeded:
			s, err := a.entropy()
			if err != nil {
				return nil, fmt.Errorf("seeding trial %d: %w", i, err)
			}
			seeds[i] = s
		}
	}
	return seeds, nil
}

func (a *Aggregator) workers() int {
	if a.opts.Workers > 0 {
		return a.opts.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func newTrial(index int, seed int64, target int, traj walk.Trajectory, keep bool) Trial {
	hit, ok := traj.FirstReach(target)
	t := Trial{
		Index:         index,
		Seed:          seed,
		Success:       ok,
		FirstHitTurn:  hit,
		FinalPosition: traj.Final(),
		MaxPosition:   traj.Max(),
		Resets:        traj.Resets(),
	}
	if keep {
		t.Trajectory = &traj
	}
	return t
}

func aggregate(trials []Trial) Result {
	res := Result{TrialCount: len(trials), Trials: trials}
	var finalSum, hitSum int
	for _, t := range trials {
		finalSum += t.FinalPosition
		res.TotalResets += t.Resets
		if t.Success {
			res.SuccessCount++
			hitSum += t.FirstHitTurn
		}
	}
	res.SuccessRate = float64(res.SuccessCount) / float64(res.TrialCount)
	res.MeanFinalPosition = float64(finalSum) / float64(res.TrialCount)
	if res.SuccessCount > 0 {
		res.MeanFirstHitTurn = float64(hitSum) / float64(res.SuccessCount)
	}
	return res
}
