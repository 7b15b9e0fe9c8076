package atlas

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nocdem/dna-messenger/primitives"
)

// Role identifies one of the Atlas base-string templates from spec §4.3.
// Role separation exists so that knowing a key for one purpose never
// collides with, or can be confused for, a key for another purpose.
type Role int

const (
	RolePresence Role = iota
	RoleOutbox
	RoleWatermark
	RoleProfile
	RoleNameLookup
	RoleContactRequestInbox
	RoleContactList
	RoleGroupGSK
	RoleGroupMessages
)

// TTL returns the DHT TTL associated with a role, per the table in §4.3.
func TTL(role Role) time.Duration {
	switch role {
	case RolePresence, RoleOutbox, RoleContactRequestInbox, RoleContactList:
		return 7 * 24 * time.Hour
	case RoleWatermark, RoleGroupGSK:
		return 30 * 24 * time.Hour
	case RoleProfile, RoleNameLookup:
		return 365 * 24 * time.Hour
	case RoleGroupMessages:
		return 7 * 24 * time.Hour
	default:
		panic(fmt.Sprintf("atlas: unknown role %d", role))
	}
}

// Key derives the 64-byte DHT key for a role that is parameterized by one
// or two lowercase-hex fingerprints (presence, outbox, watermark, profile,
// contact-request inbox, contact list). For RoleOutbox and RoleWatermark,
// fpA is the primary party and fpB the counterparty per the base-string
// order in §4.3 (outbox is a→b, watermark is "a from b").
func Key(role Role, fpA string, fpB string) [64]byte {
	var base string
	switch role {
	case RolePresence:
		base = fpA
	case RoleOutbox:
		base = fmt.Sprintf("%s:outbox:%s", fpA, fpB)
	case RoleWatermark:
		base = fmt.Sprintf("%s:watermark:%s", fpA, fpB)
	case RoleProfile:
		base = fmt.Sprintf("%s:profile", fpA)
	case RoleContactRequestInbox:
		base = fmt.Sprintf("%s:requests", fpA)
	case RoleContactList:
		base = fmt.Sprintf("%s:contactlist", fpA)
	default:
		panic(fmt.Sprintf("atlas: role %d does not take fingerprint parameters", role))
	}
	return primitives.Sha3_512([]byte(base))
}

// NameKey derives the DHT key for a name-lookup alias record (spec §4.3,
// RoleNameLookup). Names are lowercased before hashing, per the table note
// that all base strings use lowercase names.
func NameKey(name string) [64]byte {
	base := strings.ToLower(name) + ":lookup"
	return primitives.Sha3_512([]byte(base))
}

// GroupGSKKey derives the DHT key under which a group's current IKP is
// published (spec §4.3, RoleGroupGSK).
func GroupGSKKey(groupUUID string) [64]byte {
	base := "dna:group:" + groupUUID + ":gsk"
	return primitives.Sha3_512([]byte(base))
}

// GroupMessagesKey derives the DHT key for a group's shared message outbox
// (spec §4.3 / §4.9, RoleGroupMessages).
func GroupMessagesKey(groupUUID string) [64]byte {
	base := "dna:group:" + groupUUID + ":msg"
	return primitives.Sha3_512([]byte(base))
}

// ChunkKey derives the DHT key for chunk i of a logical value L, per the
// chunked layer in spec §4.4: atlas_key("chunk", L, i) = SHA3-512(L ||
// ":chunk:" || i).
func ChunkKey(logicalKey []byte, index int) [64]byte {
	base := make([]byte, 0, len(logicalKey)+16)
	base = append(base, logicalKey...)
	base = append(base, ":chunk:"...)
	base = append(base, strconv.Itoa(index)...)
	return primitives.Sha3_512(base)
}

// Hex lowercases and hex-encodes a 64-byte fingerprint for use as an Atlas
// base-string parameter.
func Hex(fingerprint [64]byte) string {
	return fmt.Sprintf("%x", fingerprint[:])
}
