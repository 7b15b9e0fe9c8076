package contactrequest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nocdem/dna-messenger/primitives"
)

// maxGreetingLength bounds the greeting text a proposer may attach,
// mirroring the bounded-length-field discipline used elsewhere in the
// wire formats this system defines.
const maxGreetingLength = 1016

// Request is one contact-request record, per spec §4.10.
type Request struct {
	ProposerFingerprint string `json:"proposer_fp"`
	TargetFingerprint   string `json:"target_fp"`
	Greeting            string `json:"greeting"`
	Timestamp           int64  `json:"timestamp"`
	Signature           []byte `json:"signature"`
}

func (r Request) canonicalBytes() ([]byte, error) {
	m := map[string]interface{}{
		"proposer_fp": r.ProposerFingerprint,
		"target_fp":   r.TargetFingerprint,
		"greeting":    r.Greeting,
		"timestamp":   r.Timestamp,
	}
	return json.Marshal(m)
}

func signRequest(priv []byte, r *Request) error {
	canonical, err := r.canonicalBytes()
	if err != nil {
		return fmt.Errorf("contactrequest: canonicalize: %w", err)
	}
	sig, err := primitives.DSASign(priv, canonical)
	if err != nil {
		return fmt.Errorf("contactrequest: sign: %w", err)
	}
	r.Signature = sig
	return nil
}

func verifyRequest(r Request, proposerDSAPub []byte) error {
	canonical, err := r.canonicalBytes()
	if err != nil {
		return fmt.Errorf("contactrequest: canonicalize: %w", err)
	}
	if err := primitives.DSAVerify(proposerDSAPub, canonical, r.Signature); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func marshalRequest(r Request) ([]byte, error) {
	return json.Marshal(r)
}

func unmarshalRequest(data []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return r, nil
}

// proposerValueID derives the value_id a proposer's requests (and
// reciprocal approvals) are published under, keyed by their own
// fingerprint so concurrent requests from different proposers coexist
// under the target's inbox key and a re-send by the same proposer
// replaces their prior one, per spec §4.10.
func proposerValueID(proposerFP string) uint64 {
	h := primitives.Sha3_512([]byte(proposerFP))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(h[i])
	}
	return v
}

func fingerprintHex(fp [64]byte) string {
	return hex.EncodeToString(fp[:])
}
