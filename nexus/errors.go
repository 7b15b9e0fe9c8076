package nexus

import "errors"

var (
	// ErrNotGroupOwner is returned when a rotation is attempted by a
	// party other than the group's owner. BuildIKP does not check
	// ownership.
	ErrNotGroupOwner = errors.New("nexus: not group owner")
	// ErrMemberKeyUnavailable marks a single member skipped during IKP
	// build because their KEM public key could not be resolved; it does
	// not abort the rotation (see spec §4.7 trade-off).
	ErrMemberKeyUnavailable = errors.New("nexus: member key unavailable")
	// ErrIKPSignatureInvalid is returned when an IKP's owner signature
	// fails to verify.
	ErrIKPSignatureInvalid = errors.New("nexus: ikp signature invalid")
	// ErrIKPUnwrapFailed is returned when a member's wrapped GSK entry
	// fails to AEAD-open.
	ErrIKPUnwrapFailed = errors.New("nexus: ikp unwrap failed")
	// ErrIKPMemberNotFound is returned when extract cannot locate the
	// caller's own fingerprint entry in an IKP.
	ErrIKPMemberNotFound = errors.New("nexus: ikp member not found")
	// ErrGSKNotFoundForVersion is returned when no stored GSK entry exists
	// for the requested (group, version).
	ErrGSKNotFoundForVersion = errors.New("nexus: gsk not found for version")
	// ErrMalformedIKP is returned when an IKP fails to parse structurally.
	ErrMalformedIKP = errors.New("nexus: malformed ikp")
	// ErrNoActiveGSK is returned when no stored GSK for a group has not
	// yet expired.
	ErrNoActiveGSK = errors.New("nexus: no active gsk")
)
