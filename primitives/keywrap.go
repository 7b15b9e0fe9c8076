package primitives

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"
)

// aesKeyWrapIV is the RFC 3394 default integrity-check value.
var aesKeyWrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// KeyWrapSize is the wrapped output size for a 32-byte DEK: 32 bytes of
// ciphertext plus the 8-byte IV, matching the spec's 40-byte wrapped_dek.
const KeyWrapSize = 40

// No library in the retrieval pack implements AES Key Wrap (RFC 3394); it
// is a narrow, fully-specified construction over crypto/aes, so it is
// implemented directly here rather than pulled in from an unrelated
// dependency (see DESIGN.md).

// AESKeyWrap wraps a 32-byte DEK under a 32-byte KEK per RFC 3394,
// producing a 40-byte output.
func AESKeyWrap(kek, dek []byte) ([]byte, error) {
	if len(kek) != AEADKeySize {
		return nil, fmt.Errorf("%w: kek", ErrInvalidKeySize)
	}
	if len(dek) != AEADKeySize {
		return nil, fmt.Errorf("%w: dek", ErrInvalidKeySize)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("primitives: aes cipher: %w", err)
	}

	n := len(dek) / 8 // number of 64-bit blocks; 4 for a 32-byte DEK
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], dek[i*8:i*8+8])
	}

	a := aesKeyWrapIV

	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			var buf [16]byte
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Encrypt(buf[:], buf[:])

			copy(a[:], buf[:8])
			t := uint64(n*j + i)
			xorBE64(&a, t)
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, KeyWrapSize)
	copy(out[:8], a[:])
	for i := 0; i < n; i++ {
		copy(out[8+i*8:8+i*8+8], r[i][:])
	}
	return out, nil
}

// AESKeyUnwrap reverses AESKeyWrap, returning ErrKeyUnwrapFailed if the
// integrity check value does not match (either a corrupted wrap or the
// wrong KEK).
func AESKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != AEADKeySize {
		return nil, fmt.Errorf("%w: kek", ErrInvalidKeySize)
	}
	if len(wrapped) != KeyWrapSize {
		return nil, fmt.Errorf("%w: wrapped key", ErrInvalidKeySize)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("primitives: aes cipher: %w", err)
	}

	n := (len(wrapped) - 8) / 8

	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([][8]byte, n)
	for i := 0; i < n; i++ {
		copy(r[i][:], wrapped[8+i*8:8+i*8+8])
	}

	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			xorBE64(&a, t)

			var buf [16]byte
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Decrypt(buf[:], buf[:])

			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	if a != aesKeyWrapIV {
		return nil, ErrKeyUnwrapFailed
	}

	out := make([]byte, n*8)
	for i := 0; i < n; i++ {
		copy(out[i*8:i*8+8], r[i][:])
	}
	return out, nil
}

func xorBE64(a *[8]byte, t uint64) {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], t)
	for i := range a {
		a[i] ^= tb[i]
	}
}
