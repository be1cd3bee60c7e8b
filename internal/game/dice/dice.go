// Package dice provides the deterministic randomness abstraction that drives
// the walk simulator.
package dice

import "errors"

// ErrInvalidRange is returned when a bounded draw is requested over an empty
// range.
var ErrInvalidRange = errors.New("dice: invalid range")

// Faces is the number of faces on the die used by the step rules.
const Faces = 6

// Source is the randomness provider consumed by the step rules.
//
// Implementations need not be safe for concurrent use; each walk owns one.
type Source interface {
	// NextUniform returns the next float in [0, 1).
	NextUniform() float64
	// NextInt returns an integer uniformly distributed over [low, highExclusive).
	//
	// Postcondition: returns an error wrapping ErrInvalidRange when highExclusive <= low.
	NextInt(low, highExclusive int) (int, error)
}

// Roll returns a single die result in [1, sides] drawn from src.
//
// Precondition: src must be non-nil.
// Postcondition: returns an error wrapping ErrInvalidRange when sides < 1.
func Roll(src Source, sides int) (int, error) {
	return src.NextInt(1, sides+1)
}
