// Package walk drives the step rules turn by turn and records the full
// trajectory of a single random walk.
package walk

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/walksim/internal/game/dice"
	"github.com/cory-johannsen/walksim/internal/game/step"
)

// ErrInvalidConfig is returned when a walk or batch configuration is
// structurally invalid. It is never retried.
var ErrInvalidConfig = errors.New("invalid config")

// Config describes one walk.
type Config struct {
	// Start is the initial position.
	Start int
	// Floor is the lowest reachable position.
	Floor int
	// Ceiling optionally clamps the position from above.
	Ceiling *int
	// TurnBudget is the maximum number of turns to execute.
	TurnBudget int
	// Target is the position that counts as success, if any.
	Target *int
	// StopAtTarget ends the walk on the first turn that reaches Target.
	StopAtTarget bool
	// ResetProbability is the per-turn chance of the rare floor reset.
	ResetProbability float64
	// Seed fixes the draw sequence when the simulator owns the source.
	Seed int64
}

// Rules returns the step rules implied by c.
func (c Config) Rules() step.Rules {
	return step.Rules{ResetProbability: c.ResetProbability}
}

// detached returns a copy of c that shares no pointers with it.
func (c Config) detached() Config {
	if c.Ceiling != nil {
		v := *c.Ceiling
		c.Ceiling = &v
	}
	if c.Target != nil {
		v := *c.Target
		c.Target = &v
	}
	return c
}

// Validate checks every structural invariant of c.
//
// Postcondition: Returns nil, or an error wrapping ErrInvalidConfig that lists all violations.
func (c Config) Validate() error {
	var errs []string
	if c.TurnBudget <= 0 {
		errs = append(errs, fmt.Sprintf("turn budget must be > 0, got %d", c.TurnBudget))
	}
	if c.Floor > c.Start {
		errs = append(errs, fmt.Sprintf("floor %d must not exceed start %d", c.Floor, c.Start))
	}
	if c.Ceiling != nil {
		if *c.Ceiling < c.Start {
			errs = append(errs, fmt.Sprintf("ceiling %d must not be below start %d", *c.Ceiling, c.Start))
		}
		if *c.Ceiling < c.Floor {
			errs = append(errs, fmt.Sprintf("ceiling %d must not be below floor %d", *c.Ceiling, c.Floor))
		}
	}
	if c.StopAtTarget && c.Target == nil {
		errs = append(errs, "stop at target requires a target")
	}
	if err := c.Rules().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Simulator runs walks and logs every turn at debug level.
type Simulator struct {
	logger *zap.Logger
}

// NewSimulator creates a Simulator. A nil logger disables logging.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger}
}

// Run executes the walk described by cfg with a fresh source seeded from cfg.Seed.
//
// Postcondition: identical cfg values yield identical Trajectories.
func (s *Simulator) Run(cfg Config) (Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return Trajectory{}, err
	}
	return s.run(cfg, dice.NewSeededSource(cfg.Seed))
}

// RunWithSource executes the walk described by cfg drawing from src, which the
// caller owns. cfg.Seed is ignored.
//
// Precondition: src must be non-nil and not shared with a concurrent walk.
func (s *Simulator) RunWithSource(cfg Config, src dice.Source) (Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return Trajectory{}, err
	}
	return s.run(cfg, src)
}

func (s *Simulator) run(cfg Config, src dice.Source) (Trajectory, error) {
	rules := cfg.Rules()
	st := state{position: cfg.Start}
	cfg = cfg.detached()
	traj := Trajectory{
		Config: cfg,
		Turns:  make([]Turn, 0, cfg.TurnBudget),
	}

	for st.turn < cfg.TurnBudget {
		out, err := rules.Next(src)
		if err != nil {
			return Trajectory{}, fmt.Errorf("turn %d: %w", st.turn+1, err)
		}
		st.apply(cfg, out)
		traj.Turns = append(traj.Turns, Turn{Index: st.turn, Position: st.position, Outcome: out})

		if ce := s.logger.Check(zap.DebugLevel, "walk turn"); ce != nil {
			ce.Write(
				zap.Int("turn", st.turn),
				zap.Int("position", st.position),
				zap.Stringer("kind", out.Kind()),
				zap.Int("delta", out.Delta),
				zap.Ints("draws", out.Draws),
			)
		}

		if cfg.StopAtTarget && st.position >= *cfg.Target {
			break
		}
	}
	return traj, nil
}

// state is the mutable position of one run.
//
// Invariant: position >= floor after every apply.
type state struct {
	position int
	turn     int
}

func (st *state) apply(cfg Config, out step.Outcome) {
	st.turn++
	if out.Reset {
		st.position = cfg.Floor
		return
	}
	st.position = max(cfg.Floor, st.position+out.Delta)
	if cfg.Ceiling != nil {
		st.position = min(*cfg.Ceiling, st.position)
	}
}
