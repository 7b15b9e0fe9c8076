package identity

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/primitives"
)

// Identity bundles a party's signed Record with the private keys that back
// it. Private keys never leave the process unencrypted except through
// SaveEncrypted/LoadEncrypted.
type Identity struct {
	Record Record

	DSAPrivateKey []byte
	KEMPrivateKey []byte
}

// Zero wipes the private key material. Call this once an Identity is no
// longer needed.
func (id *Identity) Zero() {
	primitives.Zero(id.DSAPrivateKey)
	primitives.Zero(id.KEMPrivateKey)
}

// GenerateFromMnemonic derives a full Identity from a BIP39-style mnemonic
// and optional passphrase, per spec §4.2: a 64-byte master is derived via
// PBKDF2-HMAC-SHA512 over the mnemonic, then split into a signing seed and
// an encryption seed for deterministic DSA-87 and KEM-1024 key derivation.
// The returned record is unsigned and carries no name or profile fields
// — callers fill those in and sign it via SignRecord.
func GenerateFromMnemonic(mnemonic, passphrase string) (*Identity, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "GenerateFromMnemonic", "package": "identity"})

	if len(mnemonic) == 0 {
		logger.Error("empty mnemonic rejected")
		return nil, ErrMnemonicInvalid
	}

	master := primitives.MnemonicSeed(mnemonic, passphrase)
	defer primitives.Zero(master[:])

	var signingSeed, encryptionSeed [32]byte
	copy(signingSeed[:], master[:32])
	copy(encryptionSeed[:], master[32:])
	defer primitives.Zero32(&signingSeed)
	defer primitives.Zero32(&encryptionSeed)

	dsaPub, dsaPriv, err := primitives.DSAKeypairFromSeed(signingSeed)
	if err != nil {
		return nil, fmt.Errorf("identity: derive dsa keypair: %w", err)
	}
	kemPub, kemPriv, err := primitives.KEMKeypairFromSeed(encryptionSeed)
	if err != nil {
		return nil, fmt.Errorf("identity: derive kem keypair: %w", err)
	}

	fp := ComputeFingerprint(dsaPub)

	id := &Identity{
		Record: Record{
			Fingerprint:  fmt.Sprintf("%x", fp[:]),
			DSAPublicKey: dsaPub,
			KEMPublicKey: kemPub,
		},
		DSAPrivateKey: dsaPriv,
		KEMPrivateKey: kemPriv,
	}

	logger.WithFields(logrus.Fields{"fingerprint": id.Record.Fingerprint}).Info("identity derived from mnemonic")
	return id, nil
}

// SignRecord canonically serializes record without its signature field,
// signs the result with priv, and attaches the signature in place.
func SignRecord(priv []byte, record *Record) error {
	body, err := record.canonicalBytes()
	if err != nil {
		return fmt.Errorf("identity: canonicalize record: %w", err)
	}
	sig, err := primitives.DSASign(priv, body)
	if err != nil {
		return fmt.Errorf("identity: sign record: %w", err)
	}
	record.Signature = sig
	return nil
}

// VerifyRecord re-serializes record canonically, verifies the signature
// under its own dsa_public_key, and checks fingerprint == SHA3-512(dsa_public_key).
func VerifyRecord(record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	fp := ComputeFingerprint(record.DSAPublicKey)
	if record.Fingerprint != fmt.Sprintf("%x", fp[:]) {
		return ErrFingerprintMismatch
	}

	body, err := record.canonicalBytes()
	if err != nil {
		return fmt.Errorf("identity: canonicalize record: %w", err)
	}
	if err := primitives.DSAVerify(record.DSAPublicKey, body, record.Signature); err != nil {
		return ErrRecordSignatureInvalid
	}
	return nil
}
