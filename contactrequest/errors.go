package contactrequest

import "errors"

var (
	// ErrGreetingTooLong is returned when a greeting exceeds
	// maxGreetingLength bytes.
	ErrGreetingTooLong = errors.New("contactrequest: greeting too long")
	// ErrSignatureInvalid is returned when a request's signature does
	// not verify against the proposer's published identity.
	ErrSignatureInvalid = errors.New("contactrequest: signature invalid")
	// ErrProposerBlocked names the case of a target that has blocked the
	// proposer. No operation of Client returns it: requests from a
	// blocked proposer are dropped without an error.
	ErrProposerBlocked = errors.New("contactrequest: proposer is blocked")
	// ErrRequestNotFound names an approve/deny for a proposer with no
	// pending request. No operation of Client returns it: Approve and
	// Deny do not check for a pending request.
	ErrRequestNotFound = errors.New("contactrequest: request not found")
	// ErrMalformedRequest is returned when a stored request fails to
	// parse.
	ErrMalformedRequest = errors.New("contactrequest: malformed request")
)
