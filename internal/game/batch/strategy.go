package batch

import (
	"fmt"
	"strings"
)

// SeedStrategy selects how each trial of a batch is seeded.
type SeedStrategy int

const (
	// SeedFixed reuses the base seed for every trial. All trials are identical;
	// useful only for regression tests.
	SeedFixed SeedStrategy = iota
	// SeedDerived derives trial i's seed from the base seed and i, so the whole
	// batch is reproducible from one value.
	SeedDerived
	// SeedUnseeded draws every trial seed from process entropy.
	SeedUnseeded
)

// String returns the configuration name of the strategy.
func (s SeedStrategy) String() string {
	switch s {
	case SeedFixed:
		return "fixed"
	case SeedDerived:
		return "derived"
	case SeedUnseeded:
		return "unseeded"
	default:
		return "unknown"
	}
}

// ParseSeedStrategy maps a configuration name to a SeedStrategy.
//
// Postcondition: Returns a valid strategy or a non-nil error.
func ParseSeedStrategy(name string) (SeedStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fixed":
		return SeedFixed, nil
	case "derived":
		return SeedDerived, nil
	case "unseeded":
		return SeedUnseeded, nil
	default:
		return 0, fmt.Errorf("seed strategy must be one of [fixed, derived, unseeded], got %q", name)
	}
}
