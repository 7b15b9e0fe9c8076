package identity

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/primitives"
)

// magicEncrypted and magicPlain tag the on-disk format, per spec §4.2:
// "magic 'DNAK' || salt || nonce || ciphertext || tag" for the
// password-protected form, plus an explicit plaintext variant for the
// "store in a clearly marked unencrypted form" user choice.
var (
	magicEncrypted = [4]byte{'D', 'N', 'A', 'K'}
	magicPlain     = [4]byte{'D', 'N', 'A', 'U'}
)

const saltSize = 32

// storedPayload is the plaintext structure wrapped (encrypted or not) on
// disk. It carries everything GenerateFromMnemonic produces.
type storedPayload struct {
	Record        Record `json:"record"`
	DSAPrivateKey []byte `json:"dsa_private_key"`
	KEMPrivateKey []byte `json:"kem_private_key"`
}

// SaveEncrypted persists id to path. If password is non-empty, private
// keys are wrapped with AES-256-GCM under a PBKDF2-SHA256 KEK derived from
// a fresh salt, per spec §4.2. If password is empty, the file is written
// in a plainly-marked unencrypted form — an explicit, non-default choice.
func SaveEncrypted(id *Identity, path string, password string) error {
	logger := logrus.WithFields(logrus.Fields{"function": "SaveEncrypted", "package": "identity"})

	payload := storedPayload{
		Record:        id.Record,
		DSAPrivateKey: id.DSAPrivateKey,
		KEMPrivateKey: id.KEMPrivateKey,
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("identity: marshal stored payload: %w", err)
	}

	if password == "" {
		logger.Warn("saving identity unencrypted: no password supplied")
		out := append(append([]byte{}, magicPlain[:]...), plaintext...)
		return os.WriteFile(path, out, 0o600)
	}

	salt, err := primitives.RandomBytes(saltSize)
	if err != nil {
		return fmt.Errorf("identity: generate salt: %w", err)
	}
	nonce, err := primitives.RandomBytes(primitives.AEADNonceSize)
	if err != nil {
		return fmt.Errorf("identity: generate nonce: %w", err)
	}

	kek := primitives.PBKDF2SHA256([]byte(password), salt)
	defer primitives.Zero(kek)

	ciphertext, err := primitives.AEADSeal(kek, nonce, nil, plaintext)
	if err != nil {
		return fmt.Errorf("identity: seal stored payload: %w", err)
	}

	out := make([]byte, 0, 4+saltSize+primitives.AEADNonceSize+len(ciphertext))
	out = append(out, magicEncrypted[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("identity: write identity file: %w", err)
	}
	logger.WithFields(logrus.Fields{"path": path}).Info("identity saved")
	return nil
}

// LoadEncrypted is the inverse of SaveEncrypted. password must match what
// SaveEncrypted used (empty for an unencrypted file); a wrong password on
// an encrypted file returns ErrPasswordIncorrect, distinguished from a
// corrupt file via ErrRecordCorrupt.
func LoadEncrypted(path string, password string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read identity file: %w", err)
	}
	if len(raw) < 4 {
		return nil, ErrRecordCorrupt
	}

	magic := [4]byte(raw[:4])
	body := raw[4:]

	var plaintext []byte
	switch magic {
	case magicPlain:
		plaintext = body
	case magicEncrypted:
		if len(body) < saltSize+primitives.AEADNonceSize {
			return nil, ErrRecordCorrupt
		}
		salt := body[:saltSize]
		nonce := body[saltSize : saltSize+primitives.AEADNonceSize]
		ciphertext := body[saltSize+primitives.AEADNonceSize:]

		kek := primitives.PBKDF2SHA256([]byte(password), salt)
		defer primitives.Zero(kek)

		pt, err := primitives.AEADOpen(kek, nonce, nil, ciphertext)
		if err != nil {
			return nil, ErrPasswordIncorrect
		}
		plaintext = pt
	default:
		return nil, ErrRecordCorrupt
	}

	var payload storedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordCorrupt, err)
	}

	return &Identity{
		Record:        payload.Record,
		DSAPrivateKey: payload.DSAPrivateKey,
		KEMPrivateKey: payload.KEMPrivateKey,
	}, nil
}
