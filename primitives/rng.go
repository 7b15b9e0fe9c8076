package primitives

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length", ErrInvalidInput)
	}
	out := make([]byte, n)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("primitives: rng: %w", err)
	}
	return out, nil
}

// RandomSeed32 returns a fresh 32-byte seed, suitable for
// KEMKeypairFromSeed or DSAKeypairFromSeed.
func RandomSeed32() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("primitives: rng: %w", err)
	}
	return seed, nil
}
