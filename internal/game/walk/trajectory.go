package walk

import "github.com/cory-johannsen/walksim/internal/game/step"

// Turn records the position after one turn and the outcome that produced it.
type Turn struct {
	// Index is the 1-based turn number.
	Index    int
	Position int
	Outcome  step.Outcome
}

// Trajectory is the complete record of one walk.
//
// Invariant: len(Turns) <= Config.TurnBudget, and equals it unless the walk
// stopped at its target.
type Trajectory struct {
	Config Config
	Turns  []Turn
}

// Len returns the number of turns executed.
func (t Trajectory) Len() int { return len(t.Turns) }

// Final returns the position after the last turn, or the start position when
// no turn ran.
func (t Trajectory) Final() int {
	if len(t.Turns) == 0 {
		return t.Config.Start
	}
	return t.Turns[len(t.Turns)-1].Position
}

// Max returns the highest position recorded, or the start position when no
// turn ran.
func (t Trajectory) Max() int {
	if len(t.Turns) == 0 {
		return t.Config.Start
	}
	m := t.Turns[0].Position
	for _, turn := range t.Turns[1:] {
		m = max(m, turn.Position)
	}
	return m
}

// FirstReach returns the index of the first turn whose position is at or
// above target.
func (t Trajectory) FirstReach(target int) (int, bool) {
	for _, turn := range t.Turns {
		if turn.Position >= target {
			return turn.Index, true
		}
	}
	return 0, false
}

// Reached reports whether any turn reached target.
func (t Trajectory) Reached(target int) bool {
	_, ok := t.FirstReach(target)
	return ok
}

// Resets returns the number of rare-event resets in the walk.
func (t Trajectory) Resets() int {
	n := 0
	for _, turn := range t.Turns {
		if turn.Outcome.Reset {
			n++
		}
	}
	return n
}

// Positions returns the recorded positions in turn order.
func (t Trajectory) Positions() []int {
	out := make([]int, len(t.Turns))
	for i, turn := range t.Turns {
		out[i] = turn.Position
	}
	return out
}
