// Package atlas implements the key-derivation catalog that maps a role and
// one or two party fingerprints to a 64-byte DHT key. It is a pure,
// stateless function — no secrets involved — so that any party who knows
// the fingerprints involved can independently compute where on the DHT a
// given piece of state lives.
//
// Example:
//
//	key := atlas.Key(atlas.RoleOutbox, senderFP, recipientFP)
//	ttl := atlas.TTL(atlas.RoleOutbox)
package atlas
