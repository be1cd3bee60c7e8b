package dice

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// DeriveSeed returns the seed for child stream index of base. Adjacent
// indices yield unrelated seeds, and the mapping is stable across processes.
func DeriveSeed(base int64, index int) int64 {
	return int64(mix64(uint64(base) + uint64(index+1)*golden))
}

// NewEntropySeed returns a seed read from crypto/rand, for runs that are not
// meant to be reproducible up front.
func NewEntropySeed() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("dice: reading entropy seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
