package nexus

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/primitives"
)

// GSKCodec generates, seals, and recovers Group Session Keys for one
// party's own KEM key pair, per spec §4.7. A single GSKCodec is local to
// an identity — GSK blobs it produces can only be opened by the same KEM
// private key that produced them.
type GSKCodec struct {
	kemPub  []byte
	kemPriv []byte
	store   GSKStore
}

// NewGSKCodec creates a GSKCodec bound to a party's own KEM key pair and
// local store.
func NewGSKCodec(kemPub, kemPriv []byte, store GSKStore) *GSKCodec {
	return &GSKCodec{kemPub: kemPub, kemPriv: kemPriv, store: store}
}

// GenerateGSK picks the next version for groupUUID (1 + max existing
// version, or 1 if none) and a fresh random 32-byte key.
func (c *GSKCodec) GenerateGSK(groupUUID string) (version uint32, key [32]byte, err error) {
	versions, err := c.store.Versions(groupUUID)
	if err != nil {
		return 0, key, fmt.Errorf("nexus: list versions: %w", err)
	}
	next := uint32(1)
	for _, v := range versions {
		if v >= next {
			next = v + 1
		}
	}

	raw, err := primitives.RandomBytes(32)
	if err != nil {
		return 0, key, fmt.Errorf("nexus: generate gsk: %w", err)
	}
	copy(key[:], raw)
	return next, key, nil
}

// gskAAD builds the aad = uuid || version_be_u32 used both for the local
// GSK seal and for each IKP member's wrapped entry.
func gskAAD(groupUUID string, version uint32) []byte {
	aad := make([]byte, len(groupUUID)+4)
	copy(aad, groupUUID)
	binary.BigEndian.PutUint32(aad[len(groupUUID):], version)
	return aad
}

// StoreGSK seals key under a fresh KEM encapsulation against the codec's
// own public key and persists the 1628-byte blob
// (kem_ct || nonce || tag || ciphertext), per spec §4.7.
func (c *GSKCodec) StoreGSK(groupUUID string, version uint32, key [32]byte, now time.Time) error {
	logger := logrus.WithFields(logrus.Fields{"function": "StoreGSK", "package": "nexus", "group": groupUUID, "version": version})

	ct, ss, err := primitives.KEMEncaps(c.kemPub)
	if err != nil {
		return fmt.Errorf("nexus: encapsulate for self: %w", err)
	}
	defer primitives.Zero(ss)

	nonce, err := primitives.RandomBytes(primitives.AEADNonceSize)
	if err != nil {
		return fmt.Errorf("nexus: generate nonce: %w", err)
	}

	sealed, err := primitives.AEADSeal(ss, nonce, gskAAD(groupUUID, version), key[:])
	if err != nil {
		return fmt.Errorf("nexus: seal gsk: %w", err)
	}
	ciphertext := sealed[:len(sealed)-primitives.AEADTagSize]
	tag := sealed[len(sealed)-primitives.AEADTagSize:]

	blob := make([]byte, 0, len(ct)+len(nonce)+len(tag)+len(ciphertext))
	blob = append(blob, ct...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	if err := c.store.Put(groupUUID, version, GSKStoreEntry{Blob: blob, CreatedAt: now.Unix()}); err != nil {
		return fmt.Errorf("nexus: persist gsk: %w", err)
	}
	logger.Debug("gsk stored")
	return nil
}

// LoadGSK recovers the GSK for (groupUUID, version) using the codec's own
// KEM private key.
func (c *GSKCodec) LoadGSK(groupUUID string, version uint32) (GSKEntry, error) {
	stored, err := c.store.Get(groupUUID, version)
	if err != nil {
		return GSKEntry{}, err
	}

	if len(stored.Blob) != primitives.KEMCiphertextSize+primitives.AEADNonceSize+primitives.AEADTagSize+32 {
		return GSKEntry{}, fmt.Errorf("%w: unexpected blob length", ErrMalformedIKP)
	}
	offset := 0
	ct := stored.Blob[offset : offset+primitives.KEMCiphertextSize]
	offset += primitives.KEMCiphertextSize
	nonce := stored.Blob[offset : offset+primitives.AEADNonceSize]
	offset += primitives.AEADNonceSize
	tag := stored.Blob[offset : offset+primitives.AEADTagSize]
	offset += primitives.AEADTagSize
	ciphertext := stored.Blob[offset:]

	ss, err := primitives.KEMDecaps(c.kemPriv, ct)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: decapsulate stored gsk: %w", err)
	}
	defer primitives.Zero(ss)

	sealedWithTag := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := primitives.AEADOpen(ss, nonce, gskAAD(groupUUID, version), sealedWithTag)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: open stored gsk: %w", err)
	}

	var entry GSKEntry
	entry.Version = version
	copy(entry.Key[:], plaintext)
	entry.CreatedAt = stored.CreatedAt
	entry.ExpiresAt = stored.CreatedAt + int64(gskValidity.Seconds())
	return entry, nil
}

// LoadActiveGSK selects the highest version whose expires_at is still in
// the future relative to now, per spec §4.7.
func (c *GSKCodec) LoadActiveGSK(groupUUID string, now time.Time) (GSKEntry, error) {
	versions, err := c.store.Versions(groupUUID)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: list versions: %w", err)
	}
	for i := len(versions) - 1; i >= 0; i-- {
		entry, err := c.LoadGSK(groupUUID, versions[i])
		if err != nil {
			continue
		}
		if entry.Active(now) {
			return entry, nil
		}
	}
	return GSKEntry{}, ErrNoActiveGSK
}
