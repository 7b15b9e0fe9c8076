// Package keyserver publishes and resolves Anchor identity records on the
// DHT: publish_identity, lookup (by fingerprint or registered name), and
// reverse_lookup, backed by a 7-day TTL local cache with a 30-day stale
// fallback when the DHT is unreachable.
package keyserver
