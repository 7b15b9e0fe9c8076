package nexus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/primitives"
)

var ikpMagic = [4]byte{'N', 'X', 'I', 'P'}

const (
	ikpWrappedEntrySize = primitives.AEADNonceSize + primitives.AEADTagSize + 32 // 60
	ikpMemberEntrySize  = 64 + primitives.KEMCiphertextSize + ikpWrappedEntrySize // 1692
	ikpHeaderSize       = 4 + 4 + 2 + 8
)

// ikpMember is one decoded member entry from an Initial Key Packet, per
// spec §6.3.
type ikpMember struct {
	fingerprint  [64]byte
	kemCiphertext []byte
	wrappedEntry  []byte // nonce[12] || tag[16] || ciphertext[32]
}

// IKP is a parsed Initial Key Packet: the signed blob an owner publishes
// to distribute a GSK to every current group member, per spec §4.7/§6.3.
type IKP struct {
	Version         uint32
	MemberCount     uint16
	CreatedAt       int64
	Members         []ikpMember
	OwnerFingerprint [64]byte
	OwnerSignature   []byte

	signedBytes []byte // header || entries || owner_fingerprint, for re-verification
}

// MemberKeyResolver fetches a member's KEM public key (typically via the
// keyserver), by fingerprint.
type MemberKeyResolver func(fingerprint string) ([]byte, error)

// BuildIKP assembles and signs an Initial Key Packet for groupUUID at
// version, wrapping gsk for every member whose KEM public key resolves.
// A member whose key cannot be resolved is skipped and logged rather than
// aborting the whole rotation, per spec §4.7's documented trade-off.
func BuildIKP(groupUUID string, version uint32, gsk [32]byte, members []string, resolve MemberKeyResolver, ownerFP [64]byte, ownerPriv []byte, now time.Time) ([]byte, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "BuildIKP", "package": "nexus", "group": groupUUID, "version": version})

	sorted := append([]string{}, members...)
	sort.Strings(sorted)

	aad := gskAAD(groupUUID, version)

	var entries []byte
	memberCount := 0
	for _, fpHex := range sorted {
		pub, err := resolve(fpHex)
		if err != nil {
			logger.WithFields(logrus.Fields{"member": fpHex, "error": err.Error()}).Warn("member key unavailable, skipping from ikp")
			continue
		}

		ct, kek, err := primitives.KEMEncaps(pub)
		if err != nil {
			logger.WithFields(logrus.Fields{"member": fpHex, "error": err.Error()}).Warn("encapsulation failed, skipping member from ikp")
			continue
		}
		nonce, err := primitives.RandomBytes(primitives.AEADNonceSize)
		if err != nil {
			return nil, fmt.Errorf("nexus: generate nonce: %w", err)
		}
		sealed, err := primitives.AEADSeal(kek, nonce, aad, gsk[:])
		primitives.Zero(kek)
		if err != nil {
			return nil, fmt.Errorf("nexus: seal member entry: %w", err)
		}
		ciphertext := sealed[:len(sealed)-primitives.AEADTagSize]
		tag := sealed[len(sealed)-primitives.AEADTagSize:]

		fpBytes, err := decodeFingerprintHex(fpHex)
		if err != nil {
			return nil, fmt.Errorf("nexus: decode member fingerprint: %w", err)
		}

		entries = append(entries, fpBytes[:]...)
		entries = append(entries, ct...)
		entries = append(entries, nonce...)
		entries = append(entries, tag...)
		entries = append(entries, ciphertext...)
		memberCount++
	}

	header := make([]byte, ikpHeaderSize)
	copy(header[0:4], ikpMagic[:])
	binary.BigEndian.PutUint32(header[4:8], version)
	binary.BigEndian.PutUint16(header[8:10], uint16(memberCount))
	binary.BigEndian.PutUint64(header[10:18], uint64(now.Unix()))

	signedBytes := make([]byte, 0, len(header)+len(entries)+64)
	signedBytes = append(signedBytes, header...)
	signedBytes = append(signedBytes, entries...)
	signedBytes = append(signedBytes, ownerFP[:]...)

	sig, err := primitives.DSASign(ownerPriv, signedBytes)
	if err != nil {
		return nil, fmt.Errorf("nexus: sign ikp: %w", err)
	}

	out := make([]byte, 0, len(signedBytes)+2+len(sig))
	out = append(out, signedBytes...)
	sigLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sigLen, uint16(len(sig)))
	out = append(out, sigLen...)
	out = append(out, sig...)

	logger.WithFields(logrus.Fields{"members_included": memberCount, "members_requested": len(members)}).Info("ikp built")
	return out, nil
}

func decodeFingerprintHex(fpHex string) ([64]byte, error) {
	var out [64]byte
	if len(fpHex) != 128 {
		return out, fmt.Errorf("%w: fingerprint length", ErrMalformedIKP)
	}
	decoded, err := hex.DecodeString(fpHex)
	if err != nil {
		return out, fmt.Errorf("%w: fingerprint hex", ErrMalformedIKP)
	}
	copy(out[:], decoded)
	return out, nil
}

// VerifyIKP parses data and checks the owner fingerprint derivation and
// signature, per spec §4.7.
func VerifyIKP(data []byte, ownerDSAPub []byte) (*IKP, error) {
	if len(data) < ikpHeaderSize {
		return nil, fmt.Errorf("%w: short ikp", ErrMalformedIKP)
	}
	if [4]byte(data[0:4]) != ikpMagic {
		return nil, fmt.Errorf("%w: magic", ErrMalformedIKP)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	memberCount := binary.BigEndian.Uint16(data[8:10])
	createdAt := int64(binary.BigEndian.Uint64(data[10:18]))

	offset := ikpHeaderSize
	members := make([]ikpMember, memberCount)
	for i := 0; i < int(memberCount); i++ {
		if offset+ikpMemberEntrySize > len(data) {
			return nil, fmt.Errorf("%w: truncated member entries", ErrMalformedIKP)
		}
		var m ikpMember
		copy(m.fingerprint[:], data[offset:offset+64])
		offset += 64
		m.kemCiphertext = data[offset : offset+primitives.KEMCiphertextSize]
		offset += primitives.KEMCiphertextSize
		m.wrappedEntry = data[offset : offset+ikpWrappedEntrySize]
		offset += ikpWrappedEntrySize
		members[i] = m
	}

	if offset+64 > len(data) {
		return nil, fmt.Errorf("%w: missing owner fingerprint", ErrMalformedIKP)
	}
	var ownerFP [64]byte
	copy(ownerFP[:], data[offset:offset+64])
	offset += 64

	signedBytes := data[:offset]

	if offset+2 > len(data) {
		return nil, fmt.Errorf("%w: missing signature length", ErrMalformedIKP)
	}
	sigLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if offset+sigLen != len(data) {
		return nil, fmt.Errorf("%w: signature length mismatch", ErrMalformedIKP)
	}
	signature := data[offset : offset+sigLen]

	computedFP := primitives.Sha3_512(ownerDSAPub)
	if computedFP != ownerFP {
		return nil, ErrIKPSignatureInvalid
	}
	if err := primitives.DSAVerify(ownerDSAPub, signedBytes, signature); err != nil {
		return nil, ErrIKPSignatureInvalid
	}

	return &IKP{
		Version:          version,
		MemberCount:      memberCount,
		CreatedAt:        createdAt,
		Members:          members,
		OwnerFingerprint: ownerFP,
		OwnerSignature:   signature,
		signedBytes:      signedBytes,
	}, nil
}

// ExtractGSK locates selfFP's entry in an already-verified IKP and
// recovers the GSK using selfKEMPriv.
func (ikp *IKP) ExtractGSK(groupUUID string, selfFP [64]byte, selfKEMPriv []byte) ([32]byte, error) {
	var gsk [32]byte
	for _, m := range ikp.Members {
		if m.fingerprint != selfFP {
			continue
		}
		kek, err := primitives.KEMDecaps(selfKEMPriv, m.kemCiphertext)
		if err != nil {
			return gsk, fmt.Errorf("nexus: decapsulate ikp entry: %w", err)
		}
		defer primitives.Zero(kek)

		nonce := m.wrappedEntry[0:primitives.AEADNonceSize]
		tag := m.wrappedEntry[primitives.AEADNonceSize : primitives.AEADNonceSize+primitives.AEADTagSize]
		ciphertext := m.wrappedEntry[primitives.AEADNonceSize+primitives.AEADTagSize:]

		sealedWithTag := append(append([]byte{}, ciphertext...), tag...)
		plaintext, err := primitives.AEADOpen(kek, nonce, gskAAD(groupUUID, ikp.Version), sealedWithTag)
		if err != nil {
			return gsk, ErrIKPUnwrapFailed
		}
		copy(gsk[:], plaintext)
		return gsk, nil
	}
	return gsk, ErrIKPMemberNotFound
}
