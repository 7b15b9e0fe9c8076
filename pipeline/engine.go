package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/contactrequest"
	"github.com/nocdem/dna-messenger/keyserver"
	"github.com/nocdem/dna-messenger/nexus"
	"github.com/nocdem/dna-messenger/seal"
	"github.com/nocdem/dna-messenger/spillway"
)

// Config bundles every collaborator an Engine needs, per the
// `PrimitivesProvider`/`DhtClient`/`PeerTransport`/`IdentityStore`
// trait-parameterization called for in spec §9: production wiring picks
// concrete implementations and hands them to New.
type Config struct {
	SelfFingerprint string
	DSAPrivateKey   []byte
	KEMPrivateKey   []byte

	Seal        *seal.Codec
	Outbox      *spillway.Outbox
	GroupOutbox *spillway.GroupOutbox
	Nexus       *nexus.Engine
	GSK         *nexus.GSKCodec
	Contacts    *contactrequest.Client
	Keyserver   *keyserver.Client

	// Quarantine is the pairwise QuarantineStore backing Outbox; Engine
	// reads it directly during ApproveContact/PromoteContact to deliver
	// messages held while the sender was unapproved, per spec §4.8.4 and
	// §4.10. Nil disables promotion (ApproveContact then only approves).
	Quarantine spillway.QuarantineStore

	// Transport is the optional live-delivery fast path; nil disables
	// it and every send goes straight to spillway.
	Transport PeerTransport
	Sink      EventSink

	Options Options
}

// Engine is the bounded-worker-pool orchestrator tying Seal, Spillway,
// Nexus, and the contact-request flow together for one identity, per
// spec §5 and §9.
type Engine struct {
	cfg         Config
	selfFPBytes [64]byte

	queue    chan func(context.Context)
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New validates cfg and constructs an Engine. Call Start to launch the
// worker pool before submitting work.
func New(cfg Config) (*Engine, error) {
	if cfg.Seal == nil || cfg.Outbox == nil || cfg.Contacts == nil || cfg.Keyserver == nil || cfg.Sink == nil {
		return nil, errors.New("pipeline: Seal, Outbox, Contacts, Keyserver, and Sink are required")
	}
	cfg.Options = cfg.Options.withDefaults()

	fpBytes, err := decodeFingerprint(cfg.SelfFingerprint)
	if err != nil {
		return nil, fmt.Errorf("pipeline: decode self fingerprint: %w", err)
	}

	return &Engine{
		cfg:         cfg,
		selfFPBytes: fpBytes,
		queue:       make(chan func(context.Context), cfg.Options.OutboundQueueCapacity),
		stopCh:      make(chan struct{}),
	}, nil
}

func decodeFingerprint(fpHex string) ([64]byte, error) {
	var out [64]byte
	decoded, err := hex.DecodeString(fpHex)
	if err != nil || len(decoded) != 64 {
		return out, fmt.Errorf("invalid fingerprint %q", fpHex)
	}
	copy(out[:], decoded)
	return out, nil
}

// Start launches the fixed worker pool, per spec §5's "task executor with
// a fixed pool of worker tasks".
func (e *Engine) Start() {
	for i := 0; i < e.cfg.Options.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case task := <-e.queue:
			task(context.Background())
		}
	}
}

// Stop signals the worker pool to exit and waits for the workers to
// return; tasks still in the queue may not run. After Stop, SendMessage
// returns ErrEngineStopped. It is idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) emit(evt Event) {
	e.cfg.Sink.Dispatch(evt)
}

// SendMessage seals plaintext for recipientFP and submits it to the
// worker pool: the task attempts live delivery via the configured
// PeerTransport, falling back to spillway on failure, per spec §6.6.
// SendMessage returns immediately with a request ID; the result is
// delivered via an EventSendFailed event on failure (success is silent,
// per spec §7's propagation policy).
func (e *Engine) SendMessage(recipientFP string, plaintext []byte, now time.Time) (string, error) {
	if !e.cfg.Contacts.IsContact(recipientFP) {
		return "", ErrNotAContact
	}

	select {
	case <-e.stopCh:
		return "", ErrEngineStopped
	default:
	}

	requestID := uuid.NewString()
	task := func(ctx context.Context) {
		e.sendPairwise(ctx, requestID, recipientFP, plaintext, now)
	}

	select {
	case e.queue <- task:
		return requestID, nil
	default:
		return "", ErrQueueFull
	}
}

func (e *Engine) sendPairwise(ctx context.Context, requestID, recipientFP string, plaintext []byte, now time.Time) {
	logger := logrus.WithFields(logrus.Fields{"function": "sendPairwise", "package": "pipeline", "request_id": requestID, "peer": recipientFP})

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Options.PutDeadline)
	defer cancel()

	record, err := e.cfg.Keyserver.Lookup(ctx, recipientFP)
	if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
		e.emit(Event{Kind: EventSendFailed, RequestID: requestID, Peer: recipientFP, Err: fmt.Errorf("resolve recipient key: %w", err)})
		return
	}

	envelope, err := e.cfg.Seal.Seal(plaintext, [][]byte{record.KEMPublicKey}, e.cfg.DSAPrivateKey, e.selfFPBytes, uint64(now.Unix()))
	if err != nil {
		e.emit(Event{Kind: EventSendFailed, RequestID: requestID, Peer: recipientFP, Err: fmt.Errorf("seal: %w", err)})
		return
	}

	if e.cfg.Transport != nil {
		delivered, ttErr := e.cfg.Transport.TrySend(ctx, recipientFP, envelope)
		if ttErr == nil && delivered {
			logger.Debug("delivered via peer transport")
			return
		}
		logger.WithFields(logrus.Fields{"error": ttErr}).Debug("peer transport failed, falling back to spillway")
	}

	if err := e.cfg.Outbox.Send(ctx, e.cfg.SelfFingerprint, recipientFP, envelope, now, 0); err != nil {
		e.emit(Event{Kind: EventSendFailed, RequestID: requestID, Peer: recipientFP, Err: fmt.Errorf("spillway send: %w", err)})
	}
}

// ApproveContact approves proposerFP's pending contact request and then
// promotes any of its messages held in quarantine, delivering them via
// the EventSink, per spec §4.10's "all such messages are retrievable
// after promotion via contact-request approval".
func (e *Engine) ApproveContact(ctx context.Context, proposerFP string, now time.Time) error {
	if err := e.cfg.Contacts.Approve(ctx, e.cfg.SelfFingerprint, e.cfg.DSAPrivateKey, proposerFP, now); err != nil {
		return fmt.Errorf("pipeline: approve contact: %w", err)
	}
	if err := e.PromoteContact(ctx, proposerFP, now); err != nil && !errors.Is(err, spillway.ErrNotQuarantined) {
		return err
	}
	return nil
}

// PromoteContact opens and delivers every message quarantined under
// senderFP, then clears its quarantine bucket. It returns
// spillway.ErrNotQuarantined if senderFP has nothing held.
func (e *Engine) PromoteContact(ctx context.Context, senderFP string, now time.Time) error {
	if e.cfg.Quarantine == nil {
		return nil
	}

	held, err := e.cfg.Quarantine.List(senderFP)
	if err != nil {
		return fmt.Errorf("pipeline: list quarantined messages: %w", err)
	}
	if len(held) == 0 {
		return spillway.ErrNotQuarantined
	}

	logger := logrus.WithFields(logrus.Fields{"function": "PromoteContact", "package": "pipeline", "sender": senderFP})

	record, err := e.cfg.Keyserver.Lookup(ctx, senderFP)
	if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
		return fmt.Errorf("pipeline: resolve promoted sender key: %w", err)
	}

	var maxSeq uint64
	for _, qm := range held {
		if qm.Seq > maxSeq {
			maxSeq = qm.Seq
		}
		opened, err := e.cfg.Seal.Open(qm.Ciphertext, e.cfg.KEMPrivateKey, record.DSAPublicKey)
		if err != nil {
			logger.WithFields(logrus.Fields{"seq": qm.Seq, "error": err.Error()}).Warn("could not open quarantined message during promotion")
			continue
		}
		e.emit(Event{Kind: EventMessageDelivered, Peer: senderFP, Seq: qm.Seq, Timestamp: qm.Timestamp, Plaintext: opened.Plaintext})
	}

	if err := e.cfg.Quarantine.Clear(senderFP); err != nil {
		return fmt.Errorf("pipeline: clear quarantine: %w", err)
	}
	// Settle recv_seq past every promoted entry so a later ordinary Poll
	// (now that senderFP is a contact) doesn't re-open and re-deliver them.
	if err := e.cfg.Outbox.AdvanceRecvSeq(e.cfg.SelfFingerprint, senderFP, maxSeq); err != nil {
		return fmt.Errorf("pipeline: advance recv_seq after promotion: %w", err)
	}
	return nil
}

// PollContact fetches and opens peerFP's pending pairwise messages,
// dispatching EventMessageDelivered for each, per spec §4.8.2. Whether
// peerFP is a contact is read from the configured contactrequest.Client;
// non-contact senders are quarantined by the Outbox rather than
// delivered, per spec §4.8.4.
func (e *Engine) PollContact(ctx context.Context, peerFP string, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Options.GetDeadline)
	defer cancel()

	record, err := e.cfg.Keyserver.Lookup(ctx, peerFP)
	if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
		return fmt.Errorf("pipeline: resolve sender key: %w", err)
	}
	senderDSAPub := record.DSAPublicKey

	isContact := e.cfg.Contacts.IsContact(peerFP)
	open := func(envelope []byte) ([]byte, bool, error) {
		opened, err := e.cfg.Seal.Open(envelope, e.cfg.KEMPrivateKey, senderDSAPub)
		if err != nil {
			return nil, false, err
		}
		return opened.Plaintext, false, nil
	}

	delivered, err := e.cfg.Outbox.Poll(ctx, e.cfg.SelfFingerprint, peerFP, now, isContact, open)
	if err != nil {
		return fmt.Errorf("pipeline: poll contact: %w", err)
	}

	for _, m := range delivered {
		e.emit(Event{Kind: EventMessageDelivered, Peer: peerFP, Seq: m.Seq, Timestamp: m.Timestamp, Plaintext: m.Plaintext})
	}
	return nil
}

// PollGroup fetches and opens groupUUID's shared outbox, dispatching
// EventGroupMessageDelivered for each delivered entry, per spec §4.9. If
// the active local GSK fails to open a message, PollGroup fetches the
// current IKP once and retries before treating the failure as
// definitive.
func (e *Engine) PollGroup(ctx context.Context, groupUUID string, ownerDSAPub []byte, isContact func(string) bool, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Options.GetDeadline)
	defer cancel()

	dsaPubCache := make(map[string][]byte)
	resolveSender := func(senderFP string) ([]byte, error) {
		if pub, ok := dsaPubCache[senderFP]; ok {
			return pub, nil
		}
		record, err := e.cfg.Keyserver.Lookup(ctx, senderFP)
		if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
			return nil, err
		}
		dsaPubCache[senderFP] = record.DSAPublicKey
		return record.DSAPublicKey, nil
	}

	refetchedOnce := false
	open := func(envelope []byte) ([]byte, bool, error) {
		gsk, err := e.cfg.GSK.LoadActiveGSK(groupUUID, now)
		if err != nil {
			return nil, true, err
		}

		opened, openErr := e.tryOpenGroup(envelope, gsk.Key)
		if openErr == nil {
			return opened, false, nil
		}

		if !refetchedOnce && e.cfg.Nexus != nil {
			refetchedOnce = true
			if _, fetchErr := e.cfg.Nexus.FetchAndExtract(ctx, groupUUID, ownerDSAPub, now); fetchErr == nil {
				if gsk2, err2 := e.cfg.GSK.LoadActiveGSK(groupUUID, now); err2 == nil {
					if opened2, openErr2 := e.tryOpenGroup(envelope, gsk2.Key); openErr2 == nil {
						return opened2, false, nil
					}
				}
			}
		}
		return nil, false, openErr
	}

	groupOpen := func(envelope []byte) ([]byte, bool, error) {
		plaintext, transient, err := open(envelope)
		if err != nil {
			return nil, transient, err
		}
		return plaintext, transient, nil
	}

	delivered, err := e.cfg.GroupOutbox.Poll(ctx, groupUUID, e.cfg.SelfFingerprint, now, isContact, groupOpen)
	if err != nil {
		return fmt.Errorf("pipeline: poll group: %w", err)
	}

	for _, m := range delivered {
		if _, err := resolveSender(m.Sender); err != nil {
			logrus.WithFields(logrus.Fields{"function": "PollGroup", "package": "pipeline", "sender": m.Sender, "error": err.Error()}).Warn("could not resolve sender identity for delivered group message")
		}
		e.emit(Event{Kind: EventGroupMessageDelivered, Group: groupUUID, Peer: m.Sender, Seq: m.Seq, Timestamp: m.Timestamp, Plaintext: m.Plaintext})
	}
	return nil
}

func (e *Engine) tryOpenGroup(envelope []byte, gsk [32]byte) ([]byte, error) {
	opened, err := e.cfg.Seal.OpenGroup(envelope, gsk, nil)
	if err != nil {
		return nil, err
	}
	return opened.Plaintext, nil
}
