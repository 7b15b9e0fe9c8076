package spillway

import "errors"

var (
	// ErrMalformedMessage is returned when a Spillway v2 wire message
	// fails to parse.
	ErrMalformedMessage = errors.New("spillway: malformed message")
	// ErrMalformedOutbox is returned when an outbox array framing fails
	// to parse.
	ErrMalformedOutbox = errors.New("spillway: malformed outbox")
	// ErrMessageExpired names an entry whose expiry has already passed
	// at ingest time. Outbox and GroupOutbox do not return it: Poll skips
	// expired entries and Send prunes them.
	ErrMessageExpired = errors.New("spillway: message expired")
	// ErrNotQuarantined is returned when a caller tries to promote a
	// sender that has no quarantined entries.
	ErrNotQuarantined = errors.New("spillway: sender not quarantined")
)
