package spillway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
)

// DefaultTTL is the default offline-message lifetime (spec §4.8.1).
const DefaultTTL = 7 * 24 * time.Hour

// OpenFunc decrypts a Seal (or Nexus) envelope. transient reports whether
// a non-nil err should be treated as "possibly transient" (unknown sender
// key, incomplete chunk) rather than definitive (signature invalid,
// fingerprint mismatch, AEAD failure) — see spec §4.8.2 step 2c.
type OpenFunc func(envelope []byte) (plaintext []byte, transient bool, err error)

// Delivered is one message the receive path has decrypted and is ready to
// hand to local storage / the event sink.
type Delivered struct {
	Sender    string
	Seq       uint64
	Timestamp uint64
	Plaintext []byte
}

// Outbox implements the Spillway send and receive paths for per-pair
// offline delivery, per spec §4.8.
type Outbox struct {
	dht        dht.Client
	state      State
	quarantine QuarantineStore

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewOutbox creates an Outbox backed by a DHT client and local state.
func NewOutbox(d dht.Client, state State, quarantine QuarantineStore) *Outbox {
	return &Outbox{dht: d, state: state, quarantine: quarantine, locks: make(map[string]*sync.Mutex)}
}

func (o *Outbox) lockFor(key string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	lock, ok := o.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[key] = lock
	}
	return lock
}

// Send allocates the next sequence number for (selfFP -> peerFP), prunes
// the outbox against the peer's last published watermark, appends the
// sealed envelope, and republishes the whole array under value_id=1, per
// spec §4.8.1. ttl, if non-zero, overrides DefaultTTL and must not exceed
// it.
func (o *Outbox) Send(ctx context.Context, selfFP, peerFP string, envelope []byte, now time.Time, ttl time.Duration) error {
	logger := logrus.WithFields(logrus.Fields{"function": "Send", "package": "spillway", "peer": peerFP})

	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl > DefaultTTL {
		return fmt.Errorf("spillway: ttl %s exceeds maximum %s", ttl, DefaultTTL)
	}

	lock := o.lockFor(pairKey(selfFP, peerFP))
	lock.Lock()
	defer lock.Unlock()

	seq, err := o.state.NextSendSeq(selfFP, peerFP)
	if err != nil {
		return fmt.Errorf("spillway: allocate seq: %w", err)
	}

	expiry := uint64(now.Add(ttl).Unix())
	m := message{
		seq:        seq,
		timestamp:  uint64(now.Unix()),
		expiry:     expiry,
		sender:     selfFP,
		recipient:  peerFP,
		ciphertext: envelope,
	}

	outboxKey := atlas.Key(atlas.RoleOutbox, selfFP, peerFP)
	existing, err := o.fetchOutbox(ctx, outboxKey)
	if err != nil {
		return fmt.Errorf("spillway: fetch outbox: %w", err)
	}

	watermarkKey := atlas.Key(atlas.RoleWatermark, peerFP, selfFP)
	wm, err := o.fetchWatermark(ctx, watermarkKey)
	if err != nil {
		return fmt.Errorf("spillway: fetch watermark: %w", err)
	}

	nowUnix := uint64(now.Unix())
	pruned := make([]message, 0, len(existing)+1)
	for _, em := range existing {
		if em.seq <= wm || em.expiry <= nowUnix {
			continue
		}
		pruned = append(pruned, em)
	}
	pruned = append(pruned, m)
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].seq < pruned[j].seq })

	serialized := encodeOutbox(pruned)
	if err := dht.ChunkedPutSigned(ctx, o.dht, outboxKey, serialized, 1, atlas.TTL(atlas.RoleOutbox)); err != nil {
		return fmt.Errorf("spillway: publish outbox: %w", err)
	}

	logger.WithFields(logrus.Fields{"seq": seq, "outbox_size": len(pruned)}).Debug("message sent")
	return nil
}

// AdvanceRecvSeq advances recv_seq(peerFP -> selfFP) to at least seq. It
// lets a caller that delivered messages outside the normal Poll path
// (for example, promoting quarantined entries on contact approval) keep
// Poll from re-quarantining or re-delivering the same entries once the
// sender becomes a contact and the next ordinary Poll runs.
func (o *Outbox) AdvanceRecvSeq(selfFP, peerFP string, seq uint64) error {
	return o.state.SetRecvSeq(selfFP, peerFP, seq)
}

func (o *Outbox) fetchOutbox(ctx context.Context, key [64]byte) ([]message, error) {
	raw, err := dht.ChunkedGet(ctx, o.dht, key)
	if err != nil {
		if errors.Is(err, dht.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeOutbox(raw)
}

func (o *Outbox) fetchWatermark(ctx context.Context, key [64]byte) (uint64, error) {
	raw, err := o.dht.Get(ctx, key)
	if err != nil {
		if errors.Is(err, dht.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return decodeWatermark(raw)
}

// Poll fetches peerFP's outbox addressed to selfFP, opens every
// unseen, unexpired entry via open, advances recv_seq past delivered and
// definitively-failed entries, and republishes the watermark, per spec
// §4.8.2. Entries from a sender that is not (yet) an approved contact are
// quarantined instead of opened, per spec §4.8.4.
func (o *Outbox) Poll(ctx context.Context, selfFP, peerFP string, now time.Time, isContact bool, open OpenFunc) ([]Delivered, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Poll", "package": "spillway", "peer": peerFP})

	outboxKey := atlas.Key(atlas.RoleOutbox, peerFP, selfFP)
	messages, err := o.fetchOutbox(ctx, outboxKey)
	if err != nil {
		return nil, fmt.Errorf("spillway: fetch outbox: %w", err)
	}

	recvSeq, err := o.state.RecvSeq(selfFP, peerFP)
	if err != nil {
		return nil, fmt.Errorf("spillway: read recv_seq: %w", err)
	}

	nowUnix := uint64(now.Unix())
	var delivered []Delivered
	advanced := recvSeq

	for _, m := range messages {
		if m.seq <= recvSeq || m.expiry <= nowUnix || m.recipient != selfFP {
			continue
		}

		if !isContact {
			if err := o.quarantine.Put(peerFP, QuarantinedMessage{Sender: peerFP, Seq: m.seq, Timestamp: m.timestamp, Ciphertext: m.ciphertext}); err != nil {
				logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("failed to quarantine message")
			}
			continue
		}

		plaintext, transient, openErr := open(m.ciphertext)
		if openErr == nil {
			delivered = append(delivered, Delivered{Sender: peerFP, Seq: m.seq, Timestamp: m.timestamp, Plaintext: plaintext})
			if m.seq > advanced {
				advanced = m.seq
			}
			continue
		}

		if transient {
			logger.WithFields(logrus.Fields{"seq": m.seq, "error": openErr.Error()}).Warn("transient open failure, not advancing recv_seq")
			continue
		}

		logger.WithFields(logrus.Fields{"seq": m.seq, "error": openErr.Error()}).Warn("definitive open failure, advancing past entry")
		if m.seq > advanced {
			advanced = m.seq
		}
	}

	if advanced > recvSeq {
		if err := o.state.SetRecvSeq(selfFP, peerFP, advanced); err != nil {
			return delivered, fmt.Errorf("spillway: advance recv_seq: %w", err)
		}
	}

	finalSeq, err := o.state.RecvSeq(selfFP, peerFP)
	if err != nil {
		return delivered, fmt.Errorf("spillway: read recv_seq: %w", err)
	}
	watermarkKey := atlas.Key(atlas.RoleWatermark, selfFP, peerFP)
	if err := o.dht.Put(ctx, watermarkKey, encodeWatermark(finalSeq), atlas.TTL(atlas.RoleWatermark)); err != nil {
		return delivered, fmt.Errorf("spillway: publish watermark: %w", err)
	}

	return delivered, nil
}
