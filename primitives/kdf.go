package primitives

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the iteration count for password-wrapping private
// keys at rest, per spec §4.2.
const PBKDF2Iterations = 210_000

// MnemonicIterations is the iteration count for deriving the Anchor master
// seed from a mnemonic, per spec §4.2.
const MnemonicIterations = 2048

// HKDF derives outLen bytes from secret using HKDF-SHA256 with the given
// salt and info.
func HKDF(secret, salt, info []byte, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("primitives: hkdf: %w", err)
	}
	return out, nil
}

// PBKDF2SHA256 derives a 32-byte KEK from a password and salt using
// PBKDF2-HMAC-SHA256 with PBKDF2Iterations rounds.
func PBKDF2SHA256(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, AEADKeySize, sha256.New)
}

// MnemonicSeed derives a 64-byte master seed from a BIP39-style mnemonic
// and optional passphrase using PBKDF2-HMAC-SHA512, following the
// "mnemonic" + passphrase salt convention the spec specifies in §4.2.
func MnemonicSeed(mnemonic, passphrase string) [64]byte {
	salt := "mnemonic" + passphrase
	key := pbkdf2.Key([]byte(mnemonic), []byte(salt), MnemonicIterations, 64, sha512.New)
	var out [64]byte
	copy(out[:], key)
	return out
}
