package primitives

import (
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/sirupsen/logrus"
)

// kemScheme is the single KEM-1024 (ML-KEM-1024) instance the facade drives.
// circl's generic kem.Scheme interface is used rather than the concrete
// mlkem1024 package API directly so that a future algorithm swap only
// touches this one assignment.
var kemScheme = mlkem1024.Scheme()

// KEM wire sizes, per spec §4.1. These are asserted against the scheme at
// package init so a mismatched circl version fails loudly instead of
// silently truncating keys on the wire.
const (
	KEMPublicKeySize    = 1568
	KEMPrivateKeySize   = 3168
	KEMCiphertextSize   = 1568
	KEMSharedSecretSize = 32
	// kemSeedExpansionSize is the length circl's DeriveKeyPair expects;
	// the spec's 32-byte caller seed is expanded to this via SHA3-512
	// (see KEMKeypairFromSeed).
	kemSeedExpansionSize = 64
)

func init() {
	if kemScheme.PublicKeySize() != KEMPublicKeySize ||
		kemScheme.PrivateKeySize() != KEMPrivateKeySize ||
		kemScheme.CiphertextSize() != KEMCiphertextSize ||
		kemScheme.SharedKeySize() != KEMSharedSecretSize {
		panic("primitives: ML-KEM-1024 scheme sizes do not match KEM-1024 wire contract")
	}
}

// KEMKeypairFromSeed deterministically derives a KEM-1024 key pair from a
// 32-byte seed. The seed is expanded to circl's required derivation width
// via SHA3-512 before DeriveKeyPair, so the same 32-byte seed always yields
// the same key pair across implementations that follow this spec.
func KEMKeypairFromSeed(seed [32]byte) (pub []byte, priv []byte, err error) {
	logger := logrus.WithFields(logrus.Fields{"function": "KEMKeypairFromSeed", "package": "primitives"})

	expanded := Sha3_512(seed[:])
	wide := make([]byte, kemSeedExpansionSize)
	copy(wide, expanded[:])
	defer Zero(wide)

	pk, sk := kemScheme.DeriveKeyPair(wide)

	pubBytes, err := pk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		logger.WithError(err).Error("failed to marshal derived KEM public key")
		return nil, nil, fmt.Errorf("primitives: marshal kem public key: %w", err)
	}
	privBytes, err := sk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		logger.WithError(err).Error("failed to marshal derived KEM private key")
		return nil, nil, fmt.Errorf("primitives: marshal kem private key: %w", err)
	}

	logger.Debug("derived KEM-1024 key pair from seed")
	return pubBytes, privBytes, nil
}

// KEMKeygen generates a fresh random KEM-1024 key pair.
func KEMKeygen() (pub []byte, priv []byte, err error) {
	pk, sk, err := kemScheme.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: kem keygen: %w", err)
	}
	pubBytes, err := pk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal kem public key: %w", err)
	}
	privBytes, err := sk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal kem private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

// KEMEncaps encapsulates a fresh shared secret for the given KEM-1024
// public key, returning the 1568-byte ciphertext and the 32-byte shared
// secret.
func KEMEncaps(pub []byte) (ciphertext []byte, sharedSecret []byte, err error) {
	if len(pub) != KEMPublicKeySize {
		return nil, nil, fmt.Errorf("%w: kem public key", ErrInvalidKeySize)
	}
	pk, err := kemScheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: unmarshal kem public key: %w", err)
	}
	ct, ss, err := kemScheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: kem encapsulate: %w", err)
	}
	return ct, ss, nil
}

// KEMDecaps recovers the shared secret from a KEM-1024 ciphertext using the
// holder's private key. A wrongly sized key or ciphertext returns
// ErrInvalidKeySize; every other failure returns ErrDecapsFailed so callers
// never learn the internal reason (which could leak a timing or error
// oracle against the ciphertext).
func KEMDecaps(priv []byte, ciphertext []byte) (sharedSecret []byte, err error) {
	if len(priv) != KEMPrivateKeySize {
		return nil, fmt.Errorf("%w: kem private key", ErrInvalidKeySize)
	}
	if len(ciphertext) != KEMCiphertextSize {
		return nil, fmt.Errorf("%w: kem ciphertext", ErrInvalidKeySize)
	}
	sk, err := kemScheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, ErrDecapsFailed
	}
	ss, err := kemScheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, ErrDecapsFailed
	}
	return ss, nil
}
