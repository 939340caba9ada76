package services

import (
	"crypto/rand"
	"fmt"
)

// EntropySource supplies the draw seed at finalize time. The seed must be
// unpredictable before finalize; the draw itself is a deterministic function
// of the seed, so a recorded seed plus the stored selection is auditable.
type EntropySource interface {
	Seed() ([32]byte, error)
}

// CryptoEntropy reads seeds from the operating system CSPRNG.
type CryptoEntropy struct{}

func (CryptoEntropy) Seed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("failed to read entropy: %w", err)
	}
	return seed, nil
}

// FixedEntropy always returns the same seed, making draws reproducible in
// tests.
type FixedEntropy [32]byte

func (f FixedEntropy) Seed() ([32]byte, error) {
	return [32]byte(f), nil
}
