// Package primitives provides a uniform, stateless facade over the
// post-quantum cryptographic algorithms DNA Messenger's core is built on:
// KEM-1024 key encapsulation, DSA-87 signatures, AES-256-GCM AEAD, AES Key
// Wrap, SHA3-512 hashing, HKDF and PBKDF2 key derivation, and a secure RNG.
//
// None of these functions hold state across calls and none of them panic on
// untrusted input — every fallible operation returns a sentinel error from
// this package (ErrDecryptionFailed, ErrSignatureInvalid, ErrDecapsFailed,
// ...) so callers can branch on failure mode without string matching.
//
// Example:
//
//	kemPub, kemPriv, err := primitives.KEMKeypairFromSeed(seed)
//	ct, ss, err := primitives.KEMEncaps(kemPub)
//	ss2, err := primitives.KEMDecaps(kemPriv, ct)
//
// Secret-bearing byte slices returned by this package (shared secrets, DEKs,
// private key seeds) should be passed to Zero once consumed.
package primitives
