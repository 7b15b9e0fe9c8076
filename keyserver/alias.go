package keyserver

import (
	"encoding/json"
	"fmt"

	"github.com/nocdem/dna-messenger/primitives"
)

// aliasRecord is the "name → fp, signed" alias published at
// atlas_key(name_lookup, name), per spec §4.5. It carries the signer's own
// DSA public key so a name lookup can verify the binding and the
// fingerprint derivation without a second round trip.
type aliasRecord struct {
	Name         string `json:"name"`
	Fingerprint  string `json:"fingerprint"`
	DSAPublicKey []byte `json:"dsa_public_key"`
	Timestamp    int64  `json:"timestamp"`
	Signature    []byte `json:"signature"`
}

func (a *aliasRecord) canonicalBytes() ([]byte, error) {
	fields := map[string]interface{}{
		"name":           a.Name,
		"fingerprint":    a.Fingerprint,
		"dsa_public_key": fmt.Sprintf("%x", a.DSAPublicKey),
		"timestamp":      a.Timestamp,
	}
	return json.Marshal(fields)
}

func signAlias(priv []byte, a *aliasRecord) error {
	body, err := a.canonicalBytes()
	if err != nil {
		return fmt.Errorf("keyserver: canonicalize alias: %w", err)
	}
	sig, err := primitives.DSASign(priv, body)
	if err != nil {
		return fmt.Errorf("keyserver: sign alias: %w", err)
	}
	a.Signature = sig
	return nil
}

func verifyAlias(a *aliasRecord) error {
	fp := primitives.Sha3_512(a.DSAPublicKey)
	if a.Fingerprint != fmt.Sprintf("%x", fp[:]) {
		return ErrIdentityVerificationFailed
	}
	body, err := a.canonicalBytes()
	if err != nil {
		return fmt.Errorf("keyserver: canonicalize alias: %w", err)
	}
	if err := primitives.DSAVerify(a.DSAPublicKey, body, a.Signature); err != nil {
		return ErrIdentityVerificationFailed
	}
	return nil
}

func marshalAlias(a *aliasRecord) ([]byte, error) {
	return json.Marshal(a)
}

func unmarshalAlias(data []byte) (*aliasRecord, error) {
	var a aliasRecord
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("keyserver: unmarshal alias: %w", err)
	}
	return &a, nil
}
