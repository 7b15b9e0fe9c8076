package keyserver

import "errors"

var (
	// ErrIdentityNotFound is returned when no profile record exists for a
	// fingerprint, neither on the DHT nor in the stale cache.
	ErrIdentityNotFound = errors.New("keyserver: identity not found")
	// ErrNameNotFound is returned when no alias record exists for a name.
	ErrNameNotFound = errors.New("keyserver: name not found")
	// ErrIdentityVerificationFailed is returned when a fetched record's
	// signature or fingerprint check fails.
	ErrIdentityVerificationFailed = errors.New("keyserver: identity verification failed")
	// ErrStaleCacheOnly marks a successful lookup that fell back to a cache
	// entry older than its 7-day TTL because the DHT was unreachable. It
	// wraps, rather than replaces, a usable result — callers check
	// errors.Is against it on an otherwise-successful Lookup.
	ErrStaleCacheOnly = errors.New("keyserver: stale cache only")
)
