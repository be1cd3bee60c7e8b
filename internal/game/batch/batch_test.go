package batch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/walksim/internal/game/batch"
	"github.com/cory-johannsen/walksim/internal/game/step"
	"github.com/cory-johannsen/walksim/internal/game/walk"
)

func intPtr(v int) *int { return &v }

// climbConfig is the dungeon climb: reach step 60 within 100 turns.
func climbConfig(seed int64) walk.Config {
	return walk.Config{
		Start:            0,
		Floor:            0,
		TurnBudget:       100,
		Target:           intPtr(60),
		ResetProbability: step.DefaultResetProbability,
		Seed:             seed,
	}
}

// countingRunner wraps a Simulator and counts invocations.
type countingRunner struct {
	sim   *walk.Simulator
	calls atomic.Int64
}

func (c *countingRunner) Run(cfg walk.Config) (walk.Trajectory, error) {
	c.calls.Add(1)
	return c.sim.Run(cfg)
}

// failingRunner fails every walk.
type failingRunner struct{}

func (failingRunner) Run(walk.Config) (walk.Trajectory, error) {
	return walk.Trajectory{}, errors.New("boom")
}

func newAggregator(opts batch.Options) *batch.Aggregator {
	return batch.NewAggregator(walk.NewSimulator(nil), nil, opts)
}

// TestRunBatch_DerivedIsReproducible runs the 1000 trial climb twice from the same base seed.
func TestRunBatch_DerivedIsReproducible(t *testing.T) {
	agg := newAggregator(batch.Options{})
	ctx := context.Background()

	first, err := agg.RunBatch(ctx, climbConfig(2024), 1000, batch.SeedDerived)
	require.NoError(t, err)
	second, err := agg.RunBatch(ctx, climbConfig(2024), 1000, batch.SeedDerived)
	require.NoError(t, err)

	assert.Equal(t, first.SuccessRate, second.SuccessRate)
	assert.Equal(t, first.Trials, second.Trials)
	assert.NotEqual(t, first.ID, second.ID)
}

// TestRunBatch_PinnedClimb pins the success count of the reference climb.
func TestRunBatch_PinnedClimb(t *testing.T) {
	res, err := newAggregator(batch.Options{}).RunBatch(context.Background(), climbConfig(2024), 1000, batch.SeedDerived)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.TrialCount)
	assert.Equal(t, 815, res.SuccessCount)
	assert.InDelta(t, 0.815, res.SuccessRate, 1e-12)
}

// TestRunBatch_WorkerCountDoesNotMatter verifies parallelism never changes results.
func TestRunBatch_WorkerCountDoesNotMatter(t *testing.T) {
	ctx := context.Background()
	serial, err := newAggregator(batch.Options{Workers: 1}).RunBatch(ctx, climbConfig(9), 200, batch.SeedDerived)
	require.NoError(t, err)
	parallel, err := newAggregator(batch.Options{Workers: 8}).RunBatch(ctx, climbConfig(9), 200, batch.SeedDerived)
	require.NoError(t, err)

	assert.Equal(t, serial.SuccessCount, parallel.SuccessCount)
	assert.Equal(t, serial.Trials, parallel.Trials)
}

// TestRunBatch_SuccessMatchesTrajectories recomputes success by scanning the
// returned trajectories.
func TestRunBatch_SuccessMatchesTrajectories(t *testing.T) {
	agg := newAggregator(batch.Options{KeepTrajectories: true})
	rapid.Check(t, func(rt *rapid.T) {
		cfg := climbConfig(rapid.Int64().Draw(rt, "seed"))
		cfg.TurnBudget = rapid.IntRange(1, 150).Draw(rt, "budget")
		cfg.Target = intPtr(rapid.IntRange(1, 80).Draw(rt, "target"))
		cfg.StopAtTarget = rapid.Bool().Draw(rt, "stop")
		n := rapid.IntRange(1, 40).Draw(rt, "trials")

		res, err := agg.RunBatch(context.Background(), cfg, n, batch.SeedDerived)
		require.NoError(rt, err)

		want := 0
		for i, trial := range res.Trials {
			require.Equal(rt, i, trial.Index)
			require.NotNil(rt, trial.Trajectory)
			reached := false
			for _, turn := range trial.Trajectory.Turns {
				if turn.Position >= *cfg.Target {
					reached = true
					break
				}
			}
			assert.Equal(rt, reached, trial.Success)
			if reached {
				want++
			}
		}
		assert.Equal(rt, want, res.SuccessCount)
		assert.GreaterOrEqual(rt, res.SuccessCount, 0)
		assert.LessOrEqual(rt, res.SuccessCount, res.TrialCount)
		assert.Equal(rt, float64(res.SuccessCount)/float64(res.TrialCount), res.SuccessRate)
	})
}

// TestRunBatch_FixedRepeatsOneWalk verifies every fixed-seed trial is identical.
func TestRunBatch_FixedRepeatsOneWalk(t *testing.T) {
	res, err := newAggregator(batch.Options{KeepTrajectories: true}).RunBatch(context.Background(), climbConfig(77), 25, batch.SeedFixed)
	require.NoError(t, err)
	for _, trial := range res.Trials {
		assert.Equal(t, int64(77), trial.Seed)
		assert.Equal(t, res.Trials[0].Trajectory.Turns, trial.Trajectory.Turns)
	}
	assert.Contains(t, []int{0, 25}, res.SuccessCount)
}

// TestRunBatch_UnseededTrialsReplay verifies the recorded seed of an unseeded
// trial reproduces its walk.
func TestRunBatch_UnseededTrialsReplay(t *testing.T) {
	sim := walk.NewSimulator(nil)
	res, err := batch.NewAggregator(sim, nil, batch.Options{KeepTrajectories: true}).
		RunBatch(context.Background(), climbConfig(0), 10, batch.SeedUnseeded)
	require.NoError(t, err)

	for _, trial := range res.Trials {
		cfg := climbConfig(trial.Seed)
		replay, err := sim.Run(cfg)
		require.NoError(t, err)
		assert.Equal(t, trial.Trajectory.Turns, replay.Turns)
	}
}

func TestRunBatch_UnseededEntropyFailure(t *testing.T) {
	runner := &countingRunner{sim: walk.NewSimulator(nil)}
	agg := batch.NewAggregator(runner, nil, batch.Options{})
	agg.SetEntropy(func() (int64, error) { return 0, errors.New("no entropy") })

	_, err := agg.RunBatch(context.Background(), climbConfig(0), 5, batch.SeedUnseeded)
	require.Error(t, err)
	assert.Equal(t, int64(0), runner.calls.Load())
}

// TestRunBatch_ZeroTrials verifies a zero trial count is rejected before any walk runs.
func TestRunBatch_ZeroTrials(t *testing.T) {
	runner := &countingRunner{sim: walk.NewSimulator(nil)}
	agg := batch.NewAggregator(runner, nil, batch.Options{})

	res, err := agg.RunBatch(context.Background(), climbConfig(1), 0, batch.SeedDerived)
	require.Error(t, err)
	assert.True(t, errors.Is(err, walk.ErrInvalidConfig))
	assert.Equal(t, int64(0), runner.calls.Load())
	assert.Empty(t, res.Trials)
}

func TestRunBatch_InvalidConfig(t *testing.T) {
	runner := &countingRunner{sim: walk.NewSimulator(nil)}
	agg := batch.NewAggregator(runner, nil, batch.Options{})
	ctx := context.Background()

	noTarget := climbConfig(1)
	noTarget.Target = nil
	_, err := agg.RunBatch(ctx, noTarget, 10, batch.SeedDerived)
	assert.ErrorIs(t, err, walk.ErrInvalidConfig)

	badWalk := climbConfig(1)
	badWalk.TurnBudget = 0
	_, err = agg.RunBatch(ctx, badWalk, 10, batch.SeedDerived)
	assert.ErrorIs(t, err, walk.ErrInvalidConfig)

	_, err = agg.RunBatch(ctx, climbConfig(1), -1, batch.SeedDerived)
	assert.ErrorIs(t, err, walk.ErrInvalidConfig)

	_, err = agg.RunBatch(ctx, climbConfig(1), 10, batch.SeedStrategy(42))
	assert.ErrorIs(t, err, walk.ErrInvalidConfig)

	assert.Equal(t, int64(0), runner.calls.Load())
}

func TestRunBatch_RunnerErrorFailsBatch(t *testing.T) {
	agg := batch.NewAggregator(failingRunner{}, nil, batch.Options{Workers: 2})
	res, err := agg.RunBatch(context.Background(), climbConfig(1), 10, batch.SeedDerived)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, res.Trials)
}

func TestRunBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAggregator(batch.Options{}).RunBatch(ctx, climbConfig(1), 100, batch.SeedDerived)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRunBatch_SummaryStatistics verifies aggregate fields against the trials.
func TestRunBatch_SummaryStatistics(t *testing.T) {
	res, err := newAggregator(batch.Options{}).RunBatch(context.Background(), climbConfig(5), 300, batch.SeedDerived)
	require.NoError(t, err)

	var finals, hits, resets int
	for _, trial := range res.Trials {
		finals += trial.FinalPosition
		resets += trial.Resets
		if trial.Success {
			hits += trial.FirstHitTurn
			assert.LessOrEqual(t, trial.FirstHitTurn, res.TurnBudget)
		}
		assert.Nil(t, trial.Trajectory)
	}
	assert.InDelta(t, float64(finals)/300, res.MeanFinalPosition, 1e-9)
	assert.Equal(t, resets, res.TotalResets)
	if res.SuccessCount > 0 {
		assert.InDelta(t, float64(hits)/float64(res.SuccessCount), res.MeanFirstHitTurn, 1e-9)
	}
	assert.Equal(t, 60, res.Target)
	assert.Equal(t, batch.SeedDerived, res.Strategy)
}

// TestRunBatch_LogsCorrelatedByID verifies start and completion logs carry the batch ID.
func TestRunBatch_LogsCorrelatedByID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	agg := batch.NewAggregator(walk.NewSimulator(nil), zap.New(core), batch.Options{})

	res, err := agg.RunBatch(context.Background(), climbConfig(3), 5, batch.SeedDerived)
	require.NoError(t, err)

	for _, msg := range []string{"batch started", "batch complete"} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, res.ID, entries[0].ContextMap()["batch_id"])
	}
}

func TestSeedStrategy_StringAndParse(t *testing.T) {
	for _, s := range []batch.SeedStrategy{batch.SeedFixed, batch.SeedDerived, batch.SeedUnseeded} {
		got, err := batch.ParseSeedStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := batch.ParseSeedStrategy(" Derived ")
	require.NoError(t, err)
	assert.Equal(t, batch.SeedDerived, got)

	_, err = batch.ParseSeedStrategy("random")
	assert.Error(t, err)
	assert.Equal(t, "unknown", batch.SeedStrategy(9).String())
}
