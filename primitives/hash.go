package primitives

import "golang.org/x/crypto/sha3"

// Sha3_512 returns the 64-byte SHA3-512 digest of data. Used for
// fingerprints (Anchor), Atlas key derivation, and chunk manifest hashes.
func Sha3_512(data []byte) [64]byte {
	return sha3.Sum512(data)
}
