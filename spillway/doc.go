// Package spillway implements the sender-outbox offline-delivery layer:
// per-pair sequence allocation, watermark-driven pruning, and the
// receive-side merge/dedupe/deliver loop, atop a signed DHT.
//
// A message from sender s to recipient r is never addressed directly at
// r; instead s appends it to an outbox array published under an Atlas key
// derived from (s, r), and r periodically (or via a listen subscription)
// fetches and merges that array, advancing a per-pair watermark it
// publishes back so s can prune delivered entries on the next send.
//
//	outbox := spillway.NewOutbox(dhtClient, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore())
//	if err := outbox.Send(ctx, selfFP, peerFP, sealedEnvelope, time.Now(), 0); err != nil {
//		...
//	}
//	delivered, err := outbox.Poll(ctx, selfFP, peerFP, time.Now(), isContact, open)
package spillway
