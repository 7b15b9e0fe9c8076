package spillway

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/primitives"
)

// senderValueID derives the value_id a sender publishes their
// contribution to a group outbox under, so get_all can collect every
// sender's array independently, per spec §4.9.
func senderValueID(senderFP string) uint64 {
	h := primitives.Sha3_512([]byte(senderFP))
	return binary.BigEndian.Uint64(h[:8])
}

// GroupOutbox implements the group variant of the Spillway send/receive
// paths: messages are appended to a shared outbox at
// atlas_key(group_messages, uuid), each sender under their own value_id,
// with per-(group, sender) sequence and recv_seq bookkeeping identical in
// shape to the pairwise case, per spec §4.9.
type GroupOutbox struct {
	dht        dht.Client
	state      State
	quarantine QuarantineStore

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewGroupOutbox creates a GroupOutbox backed by a DHT client and local
// state. The group/sender pair is modelled as a State "self"/"peer" pair
// with "group:"+groupUUID as self and senderFP as peer, so the same State
// implementation used for pairwise delivery can be reused.
func NewGroupOutbox(d dht.Client, state State, quarantine QuarantineStore) *GroupOutbox {
	return &GroupOutbox{dht: d, state: state, quarantine: quarantine, locks: make(map[string]*sync.Mutex)}
}

func groupStateKey(groupUUID string) string { return "group:" + groupUUID }

func (g *GroupOutbox) lockFor(key string) *sync.Mutex {
	g.locksMu.Lock()
	defer g.locksMu.Unlock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[key] = lock
	}
	return lock
}

// Send appends a sealed group envelope to the caller's own contribution
// to groupUUID's shared outbox, allocating the next per-(group, self)
// sequence number.
func (g *GroupOutbox) Send(ctx context.Context, groupUUID, selfFP string, envelope []byte, now time.Time, ttl time.Duration) error {
	logger := logrus.WithFields(logrus.Fields{"function": "Send", "package": "spillway", "group": groupUUID})

	if ttl == 0 {
		ttl = DefaultTTL
	}
	if ttl > DefaultTTL {
		return fmt.Errorf("spillway: ttl %s exceeds maximum %s", ttl, DefaultTTL)
	}

	stateSelf := groupStateKey(groupUUID)
	lock := g.lockFor(pairKey(stateSelf, selfFP))
	lock.Lock()
	defer lock.Unlock()

	seq, err := g.state.NextSendSeq(stateSelf, selfFP)
	if err != nil {
		return fmt.Errorf("spillway: allocate group seq: %w", err)
	}

	groupKey := atlas.GroupMessagesKey(groupUUID)
	valueID := senderValueID(selfFP)

	// The group outbox holds one array per sender, each under its own
	// value_id (see senderValueID). GetAll returns every sender's array,
	// not just one arbitrary entry, so only the caller's own prior array
	// is kept here — other senders' arrays must never be folded into it.
	raws, err := dht.ChunkedGetAll(ctx, g.dht, groupKey)
	if err != nil {
		return fmt.Errorf("spillway: fetch group outbox: %w", err)
	}

	var existing []message
	for _, raw := range raws {
		decoded, err := decodeOutbox(raw)
		if err != nil {
			return fmt.Errorf("spillway: decode group outbox entry: %w", err)
		}
		if len(decoded) > 0 && decoded[0].sender == selfFP {
			existing = decoded
			break
		}
	}

	nowUnix := uint64(now.Unix())
	expiry := uint64(now.Add(ttl).Unix())
	m := message{
		seq:        seq,
		timestamp:  nowUnix,
		expiry:     expiry,
		sender:     selfFP,
		recipient:  groupUUID,
		ciphertext: envelope,
	}

	pruned := make([]message, 0, len(existing)+1)
	for _, em := range existing {
		if em.expiry <= nowUnix {
			continue
		}
		pruned = append(pruned, em)
	}
	pruned = append(pruned, m)
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].seq < pruned[j].seq })

	serialized := encodeOutbox(pruned)
	if err := dht.ChunkedPutSigned(ctx, g.dht, groupKey, serialized, valueID, atlas.TTL(atlas.RoleGroupMessages)); err != nil {
		return fmt.Errorf("spillway: publish group outbox: %w", err)
	}

	logger.WithFields(logrus.Fields{"seq": seq}).Debug("group message sent")
	return nil
}

// Poll fetches every sender's contribution to groupUUID's shared outbox
// and delivers unseen entries per sender, per spec §4.9. isContact
// reports, per sender fingerprint, whether that sender is an approved
// contact (non-contact senders are quarantined exactly as in the
// pairwise case).
func (g *GroupOutbox) Poll(ctx context.Context, groupUUID, selfFP string, now time.Time, isContact func(senderFP string) bool, open OpenFunc) ([]Delivered, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Poll", "package": "spillway", "group": groupUUID})

	groupKey := atlas.GroupMessagesKey(groupUUID)
	raws, err := dht.ChunkedGetAll(ctx, g.dht, groupKey)
	if err != nil {
		return nil, fmt.Errorf("spillway: fetch group outbox: %w", err)
	}
	if len(raws) == 0 {
		return nil, nil
	}

	var messages []message
	for _, raw := range raws {
		decoded, err := decodeOutbox(raw)
		if err != nil {
			return nil, fmt.Errorf("spillway: decode group outbox entry: %w", err)
		}
		messages = append(messages, decoded...)
	}

	stateSelf := groupStateKey(groupUUID)
	nowUnix := uint64(now.Unix())
	var delivered []Delivered

	bySender := make(map[string][]message)
	for _, m := range messages {
		bySender[m.sender] = append(bySender[m.sender], m)
	}

	for sender, senderMessages := range bySender {
		recvSeq, err := g.state.RecvSeq(stateSelf, sender)
		if err != nil {
			return delivered, fmt.Errorf("spillway: read group recv_seq: %w", err)
		}
		advanced := recvSeq

		for _, m := range senderMessages {
			if m.seq <= recvSeq || m.expiry <= nowUnix {
				continue
			}

			if !isContact(sender) {
				if err := g.quarantine.Put(sender, QuarantinedMessage{Sender: sender, Seq: m.seq, Timestamp: m.timestamp, Ciphertext: m.ciphertext}); err != nil {
					logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("failed to quarantine group message")
				}
				continue
			}

			plaintext, transient, openErr := open(m.ciphertext)
			if openErr == nil {
				delivered = append(delivered, Delivered{Sender: sender, Seq: m.seq, Timestamp: m.timestamp, Plaintext: plaintext})
				if m.seq > advanced {
					advanced = m.seq
				}
				continue
			}
			if transient {
				logger.WithFields(logrus.Fields{"sender": sender, "seq": m.seq, "error": openErr.Error()}).Warn("transient open failure")
				continue
			}
			logger.WithFields(logrus.Fields{"sender": sender, "seq": m.seq, "error": openErr.Error()}).Warn("definitive open failure, advancing")
			if m.seq > advanced {
				advanced = m.seq
			}
		}

		if advanced > recvSeq {
			if err := g.state.SetRecvSeq(stateSelf, sender, advanced); err != nil {
				return delivered, fmt.Errorf("spillway: advance group recv_seq: %w", err)
			}
		}
	}

	return delivered, nil
}
