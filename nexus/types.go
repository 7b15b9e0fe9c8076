package nexus

import (
	"time"

	"github.com/google/uuid"
)

// gskValidity is the 7-day lifetime of a GSK entry from creation, per
// spec §3.
const gskValidity = 7 * 24 * time.Hour

// Group is the Nexus group record, per spec §3. Membership changes are
// owner-authoritative: only the owner may rotate the GSK.
type Group struct {
	UUID             string
	Name             string
	OwnerFingerprint string
	Members          []string // fingerprints, hex
	CreatedAt        int64
}

// GSKEntry is a decoded Group Session Key, per spec §3.
type GSKEntry struct {
	Version   uint32
	Key       [32]byte
	CreatedAt int64
	ExpiresAt int64
}

// Active reports whether the entry has not yet expired at now.
func (e GSKEntry) Active(now time.Time) bool {
	return now.Unix() < e.ExpiresAt
}

// NewGroup creates a Group with a fresh random UUID and the owner as its
// sole initial member.
func NewGroup(name, ownerFingerprint string, now time.Time) Group {
	return Group{
		UUID:             uuid.NewString(),
		Name:             name,
		OwnerFingerprint: ownerFingerprint,
		Members:          []string{ownerFingerprint},
		CreatedAt:        now.Unix(),
	}
}
