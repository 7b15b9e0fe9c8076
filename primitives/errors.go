package primitives

import "errors"

var (
	// ErrDecryptionFailed is returned when an AEAD open fails its tag check.
	ErrDecryptionFailed = errors.New("primitives: decryption failed")
	// ErrSignatureInvalid is returned when a DSA-87 signature fails to verify.
	ErrSignatureInvalid = errors.New("primitives: signature invalid")
	// ErrDecapsFailed is returned when KEM decapsulation fails.
	ErrDecapsFailed = errors.New("primitives: decapsulation failed")
	// ErrKeyUnwrapFailed is returned when AES key unwrap integrity check fails.
	ErrKeyUnwrapFailed = errors.New("primitives: key unwrap failed")
	// ErrInvalidKeySize is returned when a key, nonce, or seed has the wrong length.
	ErrInvalidKeySize = errors.New("primitives: invalid key size")
	// ErrInvalidInput is returned for malformed arguments that aren't a size mismatch.
	ErrInvalidInput = errors.New("primitives: invalid input")
)
