package spillway

import (
	"encoding/binary"
	"fmt"
)

var messageMagic = [4]byte{'D', 'N', 'A', ' '}

const messageVersion = 2

const messageFixedSize = 4 + 1 + 8 + 8 + 8 + 2 + 2 + 4 // magic..ciphertext_len

// message is one Spillway v2 offline-message record, per spec §6.2.
type message struct {
	seq        uint64
	timestamp  uint64
	expiry     uint64
	sender     string // fingerprint hex
	recipient  string // fingerprint hex
	ciphertext []byte // Seal envelope
}

func (m message) encode() []byte {
	out := make([]byte, messageFixedSize, messageFixedSize+len(m.sender)+len(m.recipient)+len(m.ciphertext))
	copy(out[0:4], messageMagic[:])
	out[4] = messageVersion
	binary.BigEndian.PutUint64(out[5:13], m.seq)
	binary.BigEndian.PutUint64(out[13:21], m.timestamp)
	binary.BigEndian.PutUint64(out[21:29], m.expiry)
	binary.BigEndian.PutUint16(out[29:31], uint16(len(m.sender)))
	binary.BigEndian.PutUint16(out[31:33], uint16(len(m.recipient)))
	binary.BigEndian.PutUint32(out[33:37], uint32(len(m.ciphertext)))
	out = append(out, m.sender...)
	out = append(out, m.recipient...)
	out = append(out, m.ciphertext...)
	return out
}

func decodeMessage(data []byte) (message, error) {
	var m message
	if len(data) < messageFixedSize {
		return m, fmt.Errorf("%w: short message", ErrMalformedMessage)
	}
	if [4]byte(data[0:4]) != messageMagic {
		return m, fmt.Errorf("%w: magic", ErrMalformedMessage)
	}
	if data[4] != messageVersion {
		return m, fmt.Errorf("%w: version", ErrMalformedMessage)
	}
	m.seq = binary.BigEndian.Uint64(data[5:13])
	m.timestamp = binary.BigEndian.Uint64(data[13:21])
	m.expiry = binary.BigEndian.Uint64(data[21:29])
	senderLen := int(binary.BigEndian.Uint16(data[29:31]))
	recipientLen := int(binary.BigEndian.Uint16(data[31:33]))
	ciphertextLen := int(binary.BigEndian.Uint32(data[33:37]))

	want := messageFixedSize + senderLen + recipientLen + ciphertextLen
	if len(data) != want {
		return m, fmt.Errorf("%w: declared length mismatch", ErrMalformedMessage)
	}

	offset := messageFixedSize
	m.sender = string(data[offset : offset+senderLen])
	offset += senderLen
	m.recipient = string(data[offset : offset+recipientLen])
	offset += recipientLen
	m.ciphertext = data[offset : offset+ciphertextLen]
	return m, nil
}

// encodeOutbox serializes an ordered array of messages as u32be count ||
// for each: u32be msg_len || msg_bytes, per spec §6.2.
func encodeOutbox(messages []message) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(messages)))
	for _, m := range messages {
		encoded := m.encode()
		lenPrefix := make([]byte, 4)
		binary.BigEndian.PutUint32(lenPrefix, uint32(len(encoded)))
		out = append(out, lenPrefix...)
		out = append(out, encoded...)
	}
	return out
}

func decodeOutbox(data []byte) ([]message, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short outbox", ErrMalformedOutbox)
	}
	count := binary.BigEndian.Uint32(data[0:4])
	offset := 4
	messages := make([]message, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated length prefix", ErrMalformedOutbox)
		}
		msgLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if offset+msgLen > len(data) {
			return nil, fmt.Errorf("%w: truncated message", ErrMalformedOutbox)
		}
		m, err := decodeMessage(data[offset : offset+msgLen])
		if err != nil {
			return nil, err
		}
		offset += msgLen
		messages = append(messages, m)
	}
	return messages, nil
}

func encodeWatermark(seq uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, seq)
	return out
}

func decodeWatermark(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: watermark length", ErrMalformedMessage)
	}
	return binary.BigEndian.Uint64(data), nil
}
