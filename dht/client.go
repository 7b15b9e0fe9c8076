package dht

import (
	"context"
	"time"
)

// DefaultGetDeadline and DefaultPutDeadline are the per-operation deadlines
// spec §5 requires every DHT call to respect, absent a caller-supplied
// context deadline.
const (
	DefaultGetDeadline = 10 * time.Second
	DefaultPutDeadline = 30 * time.Second
)

// Subscription represents a live DHT listen registration. Cancel is
// idempotent: cancelling an already-cancelled subscription is a no-op.
type Subscription interface {
	Cancel()
}

// Listener is invoked by the substrate whenever a new value appears under a
// subscribed key. It must not block for long; long-running work triggered
// by a delivery should be handed off to a worker.
type Listener func(value []byte)

// Client is the contract the core requires from the DHT substrate: put
// (plain, signed-replaceable, and permanent), get (first value or all
// values under a key), and listen subscriptions. Implementations must be
// safe for concurrent use from multiple goroutines and must never block
// indefinitely — every method takes a context and must respect its
// deadline.
//
// A single Client instance is shared across every component that needs DHT
// access (keyserver, spillway, nexus, contactrequest); it is the adapter's
// job to serialize any subscription bookkeeping it needs internally.
type Client interface {
	// Put stores value under key with the given TTL. Plain puts have no
	// replacement semantics — a second Put under the same key is just
	// another value alongside the first, retrievable via GetAll.
	Put(ctx context.Context, key [64]byte, value []byte, ttl time.Duration) error

	// PutSigned stores value under (key, valueID), signed by the
	// substrate's long-lived node key. A second PutSigned with the same
	// valueID replaces the first — this is how Spillway's outbox and
	// Nexus's IKP achieve idempotent replacement (both always publish
	// under valueID 1).
	PutSigned(ctx context.Context, key [64]byte, value []byte, valueID uint64, ttl time.Duration) error

	// PutPermanent stores value under key with no expiry.
	PutPermanent(ctx context.Context, key [64]byte, value []byte) error

	// Get returns the first value found under key, or ErrNotFound.
	Get(ctx context.Context, key [64]byte) ([]byte, error)

	// GetAll returns every value found under key (possibly from multiple
	// signed value IDs or multiple plain puts), or an empty slice if none.
	GetAll(ctx context.Context, key [64]byte) ([][]byte, error)

	// Listen subscribes to new values appearing under key. The returned
	// Subscription must be cancelled by the caller when no longer needed.
	Listen(ctx context.Context, key [64]byte, cb Listener) (Subscription, error)

	// CancelAll cancels every live subscription registered under key in one
	// call, the bulk counterpart to Subscription.Cancel for a caller that
	// never kept track of individual handles (spec §4.4's cancel_all()).
	CancelAll(ctx context.Context, key [64]byte) error
}
