package primitives

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// dsaScheme is the single DSA-87 (ML-DSA-87) instance the facade drives.
var dsaScheme = mldsa87.Scheme()

// DSA wire sizes, per spec §4.1.
const (
	DSAPublicKeySize  = 2592
	DSAPrivateKeySize = 4896
	DSAMaxSignature   = 4627
	// DSASeedSize is both circl's native derivation seed width and the
	// spec's caller-supplied seed width, so no expansion step is needed
	// (unlike KEMKeypairFromSeed).
	DSASeedSize = 32
)

func init() {
	if dsaScheme.PublicKeySize() != DSAPublicKeySize ||
		dsaScheme.PrivateKeySize() != DSAPrivateKeySize ||
		dsaScheme.SignatureSize() != DSAMaxSignature {
		panic("primitives: ML-DSA-87 scheme sizes do not match DSA-87 wire contract")
	}
}

// DSAKeypairFromSeed deterministically derives a DSA-87 signing key pair
// from a 32-byte seed.
func DSAKeypairFromSeed(seed [32]byte) (pub []byte, priv []byte, err error) {
	if len(seed) != DSASeedSize {
		return nil, nil, fmt.Errorf("%w: dsa seed", ErrInvalidKeySize)
	}
	pk, sk := dsaScheme.DeriveKey(seed[:])
	pubBytes, err := pk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal dsa public key: %w", err)
	}
	privBytes, err := sk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal dsa private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

// DSAKeygen generates a fresh random DSA-87 signing key pair.
func DSAKeygen() (pub []byte, priv []byte, err error) {
	pk, sk, err := dsaScheme.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: dsa keygen: %w", err)
	}
	pubBytes, err := pk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal dsa public key: %w", err)
	}
	privBytes, err := sk.(interface{ MarshalBinary() ([]byte, error) }).MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("primitives: marshal dsa private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

// DSASign produces a detached DSA-87 signature over msg. The returned
// signature is at most DSAMaxSignature bytes but callers must not assume a
// fixed length — length-prefix it on the wire (the Seal and IKP formats
// both do).
func DSASign(priv []byte, msg []byte) ([]byte, error) {
	if len(priv) != DSAPrivateKeySize {
		return nil, fmt.Errorf("%w: dsa private key", ErrInvalidKeySize)
	}
	sk, err := dsaScheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("primitives: unmarshal dsa private key: %w", err)
	}
	sig := dsaScheme.Sign(sk, msg, nil)
	return sig, nil
}

// DSAVerify checks a detached DSA-87 signature. It returns
// ErrSignatureInvalid for a signature that does not verify, and a
// different error for a malformed or wrongly sized public key.
func DSAVerify(pub []byte, msg []byte, sig []byte) error {
	if len(pub) != DSAPublicKeySize {
		return fmt.Errorf("%w: dsa public key", ErrInvalidKeySize)
	}
	pk, err := dsaScheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return fmt.Errorf("primitives: unmarshal dsa public key: %w", err)
	}
	if !dsaScheme.Verify(pk, msg, sig, nil) {
		return ErrSignatureInvalid
	}
	return nil
}
