// Package step encodes the per-turn climbing rules as a pure function from
// random draws to a requested position change.
package step

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/walksim/internal/game/dice"
)

// DefaultResetProbability is the 1-in-1000 rare-event chance used by the
// original dungeon climb. Callers must opt into it explicitly.
const DefaultResetProbability = 0.001

// Outcome is the result of one turn of the step rules.
//
// Invariant: Reset implies len(Draws) == 0 and Delta == 0. Otherwise
// len(Draws) == 2 iff Draws[0] == dice.Faces, else len(Draws) == 1.
type Outcome struct {
	// Delta is the requested position change. Meaningless when Reset is true.
	Delta int
	// Draws holds the primary die result and, after a maximum face, the reroll.
	Draws []int
	// Reset reports that the rare event fired and the walk returns to its floor.
	Reset bool
}

// Kind classifies an Outcome for logging and statistics.
type Kind int

const (
	KindDown Kind = iota
	KindUp
	KindReroll
	KindReset
)

// String returns a human-readable kind label.
func (k Kind) String() string {
	switch k {
	case KindDown:
		return "down"
	case KindUp:
		return "up"
	case KindReroll:
		return "reroll"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Kind reports which row of the rule table produced o.
func (o Outcome) Kind() Kind {
	switch {
	case o.Reset:
		return KindReset
	case len(o.Draws) == 2:
		return KindReroll
	case o.Delta < 0:
		return KindDown
	default:
		return KindUp
	}
}

// Rules holds the tunable parameters of the step rules.
type Rules struct {
	// ResetProbability is the per-turn chance in [0, 1] that the rare event fires.
	ResetProbability float64
}

// Validate checks that ResetProbability is a probability.
func (r Rules) Validate() error {
	if r.ResetProbability < 0 || r.ResetProbability > 1 || math.IsNaN(r.ResetProbability) {
		return fmt.Errorf("reset probability must be in [0, 1], got %v", r.ResetProbability)
	}
	return nil
}

// Next draws one turn from src.
//
// The rare-event check is always drawn first, so the die stream does not
// depend on ResetProbability. Then the primary roll maps 1-2 to -1, 3-5 to +1,
// and a 6 to a reroll whose value is the delta.
//
// Precondition: src must be non-nil.
// Postcondition: the returned Outcome satisfies the Outcome invariant.
func (r Rules) Next(src dice.Source) (Outcome, error) {
	if src.NextUniform() < r.ResetProbability {
		return Outcome{Reset: true, Draws: []int{}}, nil
	}

	primary, err := dice.Roll(src, dice.Faces)
	if err != nil {
		return Outcome{}, fmt.Errorf("primary roll: %w", err)
	}
	switch {
	case primary <= 2:
		return Outcome{Delta: -1, Draws: []int{primary}}, nil
	case primary < dice.Faces:
		return Outcome{Delta: 1, Draws: []int{primary}}, nil
	}

	secondary, err := dice.Roll(src, dice.Faces)
	if err != nil {
		return Outcome{}, fmt.Errorf("secondary roll: %w", err)
	}
	return Outcome{Delta: secondary, Draws: []int{primary, secondary}}, nil
}
