package seal

import (
	"encoding/binary"
	"fmt"

	"github.com/nocdem/dna-messenger/primitives"
)

// Wire format, per spec §6.1 (bit-exact):
//
//	header            [20 B]
//	  magic[8]        = "PQSIGENC"
//	  version         = 0x08
//	  enc_type        = 0x02                ; KEM-1024
//	  rcpt_count      = N (1..255)
//	  msg_type        = 0x00 seal | 0x01 nexus
//	  encrypted_size  : u32 le
//	  signature_size  : u32 le
//	recipient_entries [1608 B x N]
//	  kem_ciphertext[1568] || wrapped_dek[40]
//	nonce             [12 B]
//	ciphertext        [encrypted_size B]
//	tag               [16 B]
//	signature         [signature_size B]
const (
	headerSize = 20
	entrySize  = primitives.KEMCiphertextSize + primitives.KeyWrapSize // 1608

	version  = 0x08
	encType  = 0x02
	msgTypeSeal  byte = 0x00
	msgTypeNexus byte = 0x01

	maxRecipients = 255
)

var wireMagic = [8]byte{'P', 'Q', 'S', 'I', 'G', 'E', 'N', 'C'}

type header struct {
	rcptCount     uint8
	msgType       byte
	encryptedSize uint32
	signatureSize uint32
}

func (h header) encode() []byte {
	out := make([]byte, headerSize)
	copy(out[0:8], wireMagic[:])
	out[8] = version
	out[9] = encType
	out[10] = h.rcptCount
	out[11] = h.msgType
	binary.LittleEndian.PutUint32(out[12:16], h.encryptedSize)
	binary.LittleEndian.PutUint32(out[16:20], h.signatureSize)
	return out
}

func decodeHeader(data []byte) (header, error) {
	if len(data) < headerSize {
		return header{}, fmt.Errorf("%w: short header", ErrMalformedHeader)
	}
	if [8]byte(data[0:8]) != wireMagic {
		return header{}, fmt.Errorf("%w: magic", ErrMalformedHeader)
	}
	if data[8] != version {
		return header{}, fmt.Errorf("%w: %d", ErrUnknownVersion, data[8])
	}
	if data[9] != encType {
		return header{}, fmt.Errorf("%w: enc_type", ErrMalformedHeader)
	}
	h := header{
		rcptCount:     data[10],
		msgType:       data[11],
		encryptedSize: binary.LittleEndian.Uint32(data[12:16]),
		signatureSize: binary.LittleEndian.Uint32(data[16:20]),
	}
	if h.rcptCount == 0 {
		return header{}, ErrInvalidRecipientCount
	}
	return h, nil
}

type recipientEntry struct {
	kemCiphertext []byte
	wrappedDEK    []byte
}

func encodeEntries(entries []recipientEntry) []byte {
	out := make([]byte, 0, entrySize*len(entries))
	for _, e := range entries {
		out = append(out, e.kemCiphertext...)
		out = append(out, e.wrappedDEK...)
	}
	return out
}

func decodeEntries(data []byte, count int) ([]recipientEntry, error) {
	if len(data) != entrySize*count {
		return nil, fmt.Errorf("%w: recipient entries length", ErrMalformedHeader)
	}
	entries := make([]recipientEntry, count)
	for i := 0; i < count; i++ {
		start := i * entrySize
		entries[i] = recipientEntry{
			kemCiphertext: data[start : start+primitives.KEMCiphertextSize],
			wrappedDEK:    data[start+primitives.KEMCiphertextSize : start+entrySize],
		}
	}
	return entries, nil
}

// expectedEnvelopeSize computes the exact total envelope length given the
// header's declared sizes, so decode can reject any length mismatch before
// allocating or touching key material.
func expectedEnvelopeSize(h header) int {
	return headerSize + entrySize*int(h.rcptCount) + primitives.AEADNonceSize +
		int(h.encryptedSize) + primitives.AEADTagSize + int(h.signatureSize)
}
