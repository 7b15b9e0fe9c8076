package seal

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/primitives"
)

// DefaultMaxEnvelopeSize is the default envelope size cap from spec §4.6:
// envelopes whose declared sizes exceed this are rejected before any
// allocation.
const DefaultMaxEnvelopeSize = 16 * 1024 * 1024

// Codec seals and opens envelopes. The zero value is not usable; use
// NewCodec. A Codec holds no secret state and is safe for concurrent use.
type Codec struct {
	maxEnvelopeSize int
}

// NewCodec creates a Codec with the default envelope size cap.
func NewCodec() *Codec {
	return &Codec{maxEnvelopeSize: DefaultMaxEnvelopeSize}
}

// NewCodecWithLimit creates a Codec with a caller-supplied envelope size
// cap, overriding DefaultMaxEnvelopeSize.
func NewCodecWithLimit(maxEnvelopeSize int) *Codec {
	return &Codec{maxEnvelopeSize: maxEnvelopeSize}
}

// Opened is the result of a successful Open or OpenGroup.
type Opened struct {
	SenderFingerprint [64]byte
	Timestamp         uint64
	Plaintext         []byte
}

// buildPayload assembles and signs the step 2-4 payload shared by Seal and
// SealGroup: sender_fp || timestamp_be || plaintext, plus a detached
// signature over plaintext alone.
func buildPayload(plaintext []byte, senderFP [64]byte, timestamp uint64, senderPriv []byte) (payload []byte, signature []byte, err error) {
	payload = make([]byte, 64+8+len(plaintext))
	copy(payload[0:64], senderFP[:])
	binary.BigEndian.PutUint64(payload[64:72], timestamp)
	copy(payload[72:], plaintext)

	signature, err = primitives.DSASign(senderPriv, plaintext)
	if err != nil {
		return nil, nil, fmt.Errorf("seal: sign plaintext: %w", err)
	}
	return payload, signature, nil
}

func assembleEnvelope(h header, entries []recipientEntry, nonce, ciphertextWithTag, signature []byte) []byte {
	ciphertext := ciphertextWithTag[:len(ciphertextWithTag)-primitives.AEADTagSize]
	tag := ciphertextWithTag[len(ciphertextWithTag)-primitives.AEADTagSize:]

	out := make([]byte, 0, expectedEnvelopeSize(h)+2)
	out = append(out, h.encode()...)
	out = append(out, encodeEntries(entries)...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	out = append(out, signature...)
	return out
}

// Seal encrypts plaintext for one or more KEM-1024 recipient public keys,
// per spec §4.6. senderFP must equal SHA3-512(sender's DSA public key).
func (c *Codec) Seal(plaintext []byte, recipientKEMPublicKeys [][]byte, senderPriv []byte, senderFP [64]byte, timestamp uint64) ([]byte, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Seal", "package": "seal", "recipients": len(recipientKEMPublicKeys)})

	if len(recipientKEMPublicKeys) == 0 || len(recipientKEMPublicKeys) > maxRecipients {
		return nil, ErrInvalidRecipientCount
	}

	dek, err := primitives.RandomBytes(primitives.AEADKeySize)
	if err != nil {
		return nil, fmt.Errorf("seal: generate dek: %w", err)
	}
	defer primitives.Zero(dek)
	nonce, err := primitives.RandomBytes(primitives.AEADNonceSize)
	if err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	payload, signature, err := buildPayload(plaintext, senderFP, timestamp, senderPriv)
	if err != nil {
		return nil, err
	}

	h := header{
		rcptCount:     uint8(len(recipientKEMPublicKeys)),
		msgType:       msgTypeSeal,
		encryptedSize: uint32(len(payload)),
		signatureSize: uint32(len(signature)),
	}
	headerBytes := h.encode()

	entries := make([]recipientEntry, len(recipientKEMPublicKeys))
	for i, pub := range recipientKEMPublicKeys {
		ct, ss, err := primitives.KEMEncaps(pub)
		if err != nil {
			return nil, fmt.Errorf("seal: encapsulate for recipient %d: %w", i, err)
		}
		wrapped, err := primitives.AESKeyWrap(ss, dek)
		primitives.Zero(ss)
		if err != nil {
			return nil, fmt.Errorf("seal: wrap dek for recipient %d: %w", i, err)
		}
		entries[i] = recipientEntry{kemCiphertext: ct, wrappedDEK: wrapped}
	}

	sealed, err := primitives.AEADSeal(dek, nonce, headerBytes, payload)
	if err != nil {
		return nil, fmt.Errorf("seal: aead seal: %w", err)
	}

	logger.Debug("envelope sealed")
	return assembleEnvelope(h, entries, nonce, sealed, signature), nil
}

// SealGroup is the Nexus variant (msg_type=1): a single recipient entry
// with a zeroed kem_ciphertext and the DEK wrapped directly under the
// group's 32-byte GSK instead of a fresh KEM encapsulation.
func (c *Codec) SealGroup(plaintext []byte, gsk [32]byte, senderPriv []byte, senderFP [64]byte, timestamp uint64) ([]byte, error) {
	dek, err := primitives.RandomBytes(primitives.AEADKeySize)
	if err != nil {
		return nil, fmt.Errorf("seal: generate dek: %w", err)
	}
	defer primitives.Zero(dek)
	nonce, err := primitives.RandomBytes(primitives.AEADNonceSize)
	if err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	payload, signature, err := buildPayload(plaintext, senderFP, timestamp, senderPriv)
	if err != nil {
		return nil, err
	}

	h := header{
		rcptCount:     1,
		msgType:       msgTypeNexus,
		encryptedSize: uint32(len(payload)),
		signatureSize: uint32(len(signature)),
	}
	headerBytes := h.encode()

	wrapped, err := primitives.AESKeyWrap(gsk[:], dek)
	if err != nil {
		return nil, fmt.Errorf("seal: wrap dek under gsk: %w", err)
	}
	entries := []recipientEntry{{kemCiphertext: make([]byte, primitives.KEMCiphertextSize), wrappedDEK: wrapped}}

	sealed, err := primitives.AEADSeal(dek, nonce, headerBytes, payload)
	if err != nil {
		return nil, fmt.Errorf("seal: aead seal: %w", err)
	}

	return assembleEnvelope(h, entries, nonce, sealed, signature), nil
}

// Open parses and decrypts a point-to-point Seal envelope, trying each
// recipient entry against myKEMPriv until one decapsulates and unwraps
// successfully (duplicates are ignored: first success wins).
func (c *Codec) Open(envelope []byte, myKEMPriv []byte, senderDSAPub []byte) (*Opened, error) {
	h, entries, nonce, ciphertext, tag, signature, err := c.parse(envelope)
	if err != nil {
		return nil, err
	}
	if h.msgType != msgTypeSeal {
		return nil, fmt.Errorf("%w: expected seal msg_type", ErrMalformedHeader)
	}

	var dek []byte
	for _, e := range entries {
		ss, err := primitives.KEMDecaps(myKEMPriv, e.kemCiphertext)
		if err != nil {
			continue
		}
		unwrapped, err := primitives.AESKeyUnwrap(ss, e.wrappedDEK)
		primitives.Zero(ss)
		if err != nil {
			continue
		}
		dek = unwrapped
		break
	}
	if dek == nil {
		return nil, ErrNoRecipientsMatched
	}
	defer primitives.Zero(dek)

	return c.finishOpen(h, nonce, ciphertext, tag, signature, dek, senderDSAPub)
}

// OpenGroup parses and decrypts a Nexus-variant envelope using the group's
// GSK of the version the caller has already resolved.
func (c *Codec) OpenGroup(envelope []byte, gsk [32]byte, senderDSAPub []byte) (*Opened, error) {
	h, entries, nonce, ciphertext, tag, signature, err := c.parse(envelope)
	if err != nil {
		return nil, err
	}
	if h.msgType != msgTypeNexus {
		return nil, fmt.Errorf("%w: expected nexus msg_type", ErrMalformedHeader)
	}
	if len(entries) != 1 {
		return nil, fmt.Errorf("%w: nexus envelope must have one entry", ErrMalformedHeader)
	}

	dek, err := primitives.AESKeyUnwrap(gsk[:], entries[0].wrappedDEK)
	if err != nil {
		return nil, ErrNoRecipientsMatched
	}
	defer primitives.Zero(dek)

	return c.finishOpen(h, nonce, ciphertext, tag, signature, dek, senderDSAPub)
}

func (c *Codec) finishOpen(h header, nonce, ciphertext, tag, signature, dek, senderDSAPub []byte) (*Opened, error) {
	sealedWithTag := append(append([]byte{}, ciphertext...), tag...)
	payload, err := primitives.AEADOpen(dek, nonce, h.encode(), sealedWithTag)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(payload) < 72 {
		return nil, fmt.Errorf("%w: payload too short", ErrMalformedHeader)
	}

	var senderFP [64]byte
	copy(senderFP[:], payload[0:64])
	timestamp := binary.BigEndian.Uint64(payload[64:72])
	plaintext := payload[72:]

	computedFP := primitives.Sha3_512(senderDSAPub)
	if computedFP != senderFP {
		return nil, ErrIdentityMismatch
	}

	if err := primitives.DSAVerify(senderDSAPub, plaintext, signature); err != nil {
		return nil, ErrSignatureInvalid
	}

	return &Opened{SenderFingerprint: senderFP, Timestamp: timestamp, Plaintext: plaintext}, nil
}

// parse validates the header and every declared size against the
// envelope's actual length before slicing any field out, per the "reject
// on mismatch — no partial parse" requirement in spec §4.6.
func (c *Codec) parse(envelope []byte) (h header, entries []recipientEntry, nonce, ciphertext, tag, signature []byte, err error) {
	if len(envelope) < headerSize {
		return header{}, nil, nil, nil, nil, nil, fmt.Errorf("%w: short envelope", ErrMalformedHeader)
	}

	h, err = decodeHeader(envelope)
	if err != nil {
		return header{}, nil, nil, nil, nil, nil, err
	}

	maxSize := c.maxEnvelopeSize
	if maxSize <= 0 {
		maxSize = DefaultMaxEnvelopeSize
	}
	declared := expectedEnvelopeSize(h)
	if declared > maxSize {
		return header{}, nil, nil, nil, nil, nil, ErrEnvelopeTooLarge
	}
	if declared != len(envelope) {
		return header{}, nil, nil, nil, nil, nil, fmt.Errorf("%w: declared size mismatch", ErrMalformedHeader)
	}

	offset := headerSize
	entriesBytes := envelope[offset : offset+entrySize*int(h.rcptCount)]
	offset += entrySize * int(h.rcptCount)
	entries, err = decodeEntries(entriesBytes, int(h.rcptCount))
	if err != nil {
		return header{}, nil, nil, nil, nil, nil, err
	}

	nonce = envelope[offset : offset+primitives.AEADNonceSize]
	offset += primitives.AEADNonceSize

	ciphertext = envelope[offset : offset+int(h.encryptedSize)]
	offset += int(h.encryptedSize)

	tag = envelope[offset : offset+primitives.AEADTagSize]
	offset += primitives.AEADTagSize

	signature = envelope[offset : offset+int(h.signatureSize)]

	return h, entries, nonce, ciphertext, tag, signature, nil
}
