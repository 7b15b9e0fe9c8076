// Package dht defines the adapter contract DNA Messenger's core uses to
// talk to the DHT substrate, plus a chunked-value layer built on top of it.
//
// The substrate itself (the actual distributed hash table implementation,
// its transport, and its node discovery) is out of scope for this core —
// per spec §1, it is an external collaborator treated as an opaque
// content-addressed key/value store with signed puts, TTLs, and listen
// subscriptions. This package only defines what the core requires from it
// ([Client]) and layers chunking on top so values over 64 KiB — outboxes,
// IKPs, profile records with large avatars — can still be stored as a
// single logical value.
//
// Example:
//
//	client := dht.NewMemoryClient() // or a real substrate binding
//	err := client.Put(ctx, key, value, 7*24*time.Hour)
//
//	manifestKey := someAtlasKey
//	err = dht.ChunkedPut(ctx, client, manifestKey, largeValue, ttl)
//	value, err := dht.ChunkedGet(ctx, client, manifestKey)
package dht
