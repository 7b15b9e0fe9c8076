// Package contactrequest implements the first-contact handshake: a
// proposer publishes a signed request into the target's request inbox,
// the target lists and verifies pending requests, and approving one adds
// the proposer to the approver's local contact list and publishes a
// reciprocal request back. The proposer's own contact list changes only
// when the proposer approves that reciprocal request.
//
// Messages from a sender the recipient has not approved through this flow
// are quarantined by the spillway package rather than delivered.
package contactrequest
