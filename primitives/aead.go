package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AEADKeySize and AEADNonceSize are the AES-256-GCM key and nonce widths.
const (
	AEADKeySize   = 32
	AEADNonceSize = 12
	AEADTagSize   = 16
)

// AEADSeal encrypts plaintext under key/nonce, authenticating aad, and
// returns ciphertext with the 16-byte tag appended (the Go stdlib GCM
// convention, matched by the Seal wire format which splits them back out).
func AEADSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: aead key", ErrInvalidKeySize)
	}
	if len(nonce) != AEADNonceSize {
		return nil, fmt.Errorf("%w: aead nonce", ErrInvalidKeySize)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// AEADOpen authenticates and decrypts ciphertext (with its trailing tag)
// under key/nonce/aad. Returns ErrDecryptionFailed on any tag mismatch,
// in constant time with respect to where the mismatch occurred (GCM's Open
// does this internally).
func AEADOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: aead key", ErrInvalidKeySize)
	}
	if len(nonce) != AEADNonceSize {
		return nil, fmt.Errorf("%w: aead nonce", ErrInvalidKeySize)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("primitives: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("primitives: gcm mode: %w", err)
	}
	return gcm, nil
}
