package identity

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/nocdem/dna-messenger/primitives"
)

// maxAvatarBase64Size is the ≤20 KiB bound on the avatar field, spec §3.
const maxAvatarBase64Size = 20 * 1024

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Record is the Anchor identity record (spec §3): a party's long-lived,
// self-signed public profile. Private keys never live on this type — they
// are held by an Identity alongside the record they sign.
type Record struct {
	Fingerprint string `json:"fingerprint"`
	DSAPublicKey []byte `json:"dsa_public_key"`
	KEMPublicKey []byte `json:"kem_public_key"`

	Name            string `json:"name"`
	NameRegisteredAt int64  `json:"name_registered_at"`
	NameExpiresAt    int64  `json:"name_expires_at"`
	NameVersion      int    `json:"name_version"`

	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Avatar      string `json:"avatar"`
	Location    string `json:"location"`
	Website     string `json:"website"`

	WalletAddresses map[string]string `json:"wallet_addresses"`
	SocialHandles   map[string]string `json:"social_handles"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
	Timestamp int64 `json:"timestamp"`
	Version   int   `json:"version"`

	Signature []byte `json:"signature"`
}

// ComputeFingerprint returns SHA3-512(dsa_public_key), the canonical
// fingerprint derivation from spec §3.
func ComputeFingerprint(dsaPublicKey []byte) [64]byte {
	return primitives.Sha3_512(dsaPublicKey)
}

// Validate checks the record's structural invariants from spec §3 that do
// not require cryptographic verification: name shape, timestamp ordering,
// and avatar size. It does not check the signature or fingerprint — use
// VerifyRecord for that.
func (r *Record) Validate() error {
	if r.Name != "" {
		if l := len(r.Name); l < 3 || l > 36 {
			return fmt.Errorf("%w: name length %d", ErrInvalidName, l)
		}
		if !namePattern.MatchString(r.Name) {
			return fmt.Errorf("%w: name charset", ErrInvalidName)
		}
		if r.NameExpiresAt != r.NameRegisteredAt+int64(nameValiditySeconds) {
			return fmt.Errorf("%w: name_expires_at mismatch", ErrInvalidName)
		}
	}
	if r.UpdatedAt < r.CreatedAt {
		return ErrInvalidTimestamps
	}
	if len(r.Avatar) > maxAvatarBase64Size {
		return fmt.Errorf("%w: avatar exceeds 20 KiB", ErrInvalidInput)
	}
	return nil
}

const nameValiditySeconds = 365 * 24 * 60 * 60

// canonicalBytes serializes the record without its signature field as
// key-sorted, whitespace-free JSON, per the "must be byte-exact across
// implementations" requirement in spec §4.2. Byte slices are hex-encoded so
// the encoding is unambiguous regardless of JSON string escaping rules.
//
// encoding/json already renders map[string]interface{} keys in sorted
// order, so building the canonical form as a map (rather than relying on
// struct field declaration order) is what makes this deterministic.
func (r *Record) canonicalBytes() ([]byte, error) {
	fields := map[string]interface{}{
		"fingerprint":        r.Fingerprint,
		"dsa_public_key":     hexString(r.DSAPublicKey),
		"kem_public_key":     hexString(r.KEMPublicKey),
		"name":               r.Name,
		"name_registered_at": r.NameRegisteredAt,
		"name_expires_at":    r.NameExpiresAt,
		"name_version":       r.NameVersion,
		"display_name":       r.DisplayName,
		"bio":                r.Bio,
		"avatar":             r.Avatar,
		"location":           r.Location,
		"website":            r.Website,
		"wallet_addresses":   orEmptyMap(r.WalletAddresses),
		"social_handles":     orEmptyMap(r.SocialHandles),
		"created_at":         r.CreatedAt,
		"updated_at":         r.UpdatedAt,
		"timestamp":          r.Timestamp,
		"version":            r.Version,
	}
	return json.Marshal(fields)
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func hexString(b []byte) string {
	return fmt.Sprintf("%x", b)
}
