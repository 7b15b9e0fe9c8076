package messenger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/nocdem/dna-messenger/contactrequest"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/identity"
	"github.com/nocdem/dna-messenger/keyserver"
	"github.com/nocdem/dna-messenger/nexus"
	"github.com/nocdem/dna-messenger/pipeline"
	"github.com/nocdem/dna-messenger/seal"
	"github.com/nocdem/dna-messenger/spillway"
)

// Options configures a new Engine. DHT and Sink are required; Transport
// is the optional live-delivery fast path of spec §6.6.
type Options struct {
	DHT       dht.Client
	Transport pipeline.PeerTransport
	Sink      pipeline.EventSink
	Pipeline  pipeline.Options
}

// Engine is one identity's access point to every layer: identity and key
// material, the contact list, group membership, and the pipeline that
// drives sends and polls.
type Engine struct {
	Identity  *identity.Identity
	Keyserver *keyserver.Client
	Contacts  *contactrequest.Client
	Nexus     *nexus.Engine
	GSK       *nexus.GSKCodec

	pipeline *pipeline.Engine
}

// New derives an identity from mnemonic, publishes it to the keyserver
// over opts.DHT, and builds the Engine that drives it.
func New(mnemonic, passphrase string, opts Options) (*Engine, error) {
	if opts.DHT == nil || opts.Sink == nil {
		return nil, errors.New("messenger: DHT and Sink are required")
	}

	id, err := identity.GenerateFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("messenger: derive identity: %w", err)
	}
	now := time.Now()
	id.Record.CreatedAt = now.Unix()
	id.Record.UpdatedAt = now.Unix()
	id.Record.Timestamp = now.Unix()
	if err := identity.SignRecord(id.DSAPrivateKey, &id.Record); err != nil {
		return nil, fmt.Errorf("messenger: sign identity record: %w", err)
	}

	ks := keyserver.New(opts.DHT)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ks.PublishIdentity(ctx, id.Record, id.DSAPrivateKey); err != nil {
		return nil, fmt.Errorf("messenger: publish identity: %w", err)
	}

	contacts := contactrequest.New(opts.DHT, ks, contactrequest.NewMemoryStore())

	selfFPBytes, err := decodeFingerprint(id.Record.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("messenger: decode own fingerprint: %w", err)
	}

	resolveMemberKey := func(fp string) ([]byte, error) {
		record, err := ks.Lookup(context.Background(), fp)
		if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
			return nil, fmt.Errorf("resolve member key for %s: %w", fp, err)
		}
		return record.KEMPublicKey, nil
	}

	gskCodec := nexus.NewGSKCodec(id.Record.KEMPublicKey, id.KEMPrivateKey, nexus.NewMemoryGSKStore())
	nexusEngine := nexus.NewEngine(gskCodec, opts.DHT, resolveMemberKey, selfFPBytes)

	quarantine := spillway.NewMemoryQuarantineStore()
	outbox := spillway.NewOutbox(opts.DHT, spillway.NewMemoryState(), quarantine)
	groupOutbox := spillway.NewGroupOutbox(opts.DHT, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore())

	pipelineEngine, err := pipeline.New(pipeline.Config{
		SelfFingerprint: id.Record.Fingerprint,
		DSAPrivateKey:   id.DSAPrivateKey,
		KEMPrivateKey:   id.KEMPrivateKey,
		Seal:            seal.NewCodec(),
		Outbox:          outbox,
		GroupOutbox:     groupOutbox,
		Nexus:           nexusEngine,
		GSK:             gskCodec,
		Contacts:        contacts,
		Keyserver:       ks,
		Quarantine:      quarantine,
		Transport:       opts.Transport,
		Sink:            opts.Sink,
		Options:         opts.Pipeline,
	})
	if err != nil {
		return nil, fmt.Errorf("messenger: build pipeline: %w", err)
	}
	pipelineEngine.Start()

	return &Engine{
		Identity:  id,
		Keyserver: ks,
		Contacts:  contacts,
		Nexus:     nexusEngine,
		GSK:       gskCodec,
		pipeline:  pipelineEngine,
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

// Fingerprint returns this engine's own identity fingerprint, hex
// encoded.
func (e *Engine) Fingerprint() string {
	return e.Identity.Record.Fingerprint
}

// SendMessage seals and queues a pairwise message to recipientFP,
// returning a request ID immediately; failures surface via the
// configured EventSink as EventSendFailed.
func (e *Engine) SendMessage(recipientFP string, plaintext []byte) (string, error) {
	return e.pipeline.SendMessage(recipientFP, plaintext, time.Now())
}

// PollContact fetches and delivers peerFP's pending pairwise messages.
func (e *Engine) PollContact(ctx context.Context, peerFP string) error {
	return e.pipeline.PollContact(ctx, peerFP, time.Now())
}

// ApproveContact approves proposerFP's pending contact request and
// promotes (opens and delivers, via the configured EventSink) any of its
// messages held in quarantine, per spec §4.10.
func (e *Engine) ApproveContact(ctx context.Context, proposerFP string) error {
	return e.pipeline.ApproveContact(ctx, proposerFP, time.Now())
}

// CreateGroup creates a new Nexus group owned by this engine and
// performs the initial GSK rotation, publishing the IKP so its sole
// initial member (the owner) can extract it.
func (e *Engine) CreateGroup(ctx context.Context, name string) (nexus.Group, error) {
	group := nexus.NewGroup(name, e.Fingerprint(), time.Now())
	if _, err := e.Nexus.Rotate(ctx, group, e.Identity.DSAPrivateKey, time.Now()); err != nil {
		return nexus.Group{}, fmt.Errorf("messenger: create group: %w", err)
	}
	return group, nil
}

// RotateGroup re-derives and republishes group's GSK; only the group
// owner may call this successfully, per spec §3.
func (e *Engine) RotateGroup(ctx context.Context, group nexus.Group) (nexus.GSKEntry, error) {
	return e.Nexus.Rotate(ctx, group, e.Identity.DSAPrivateKey, time.Now())
}

// PollGroup fetches and delivers group's pending messages. ownerDSAPub
// is the group owner's DSA public key, used to verify IKPs fetched
// during GSK-refresh.
func (e *Engine) PollGroup(ctx context.Context, groupUUID string, ownerDSAPub []byte) error {
	return e.pipeline.PollGroup(ctx, groupUUID, ownerDSAPub, e.Contacts.IsContact, time.Now())
}

// Stop stops the pipeline worker pool and waits for its workers to exit;
// queued sends may not run. Call once, on shutdown.
func (e *Engine) Stop() {
	e.pipeline.Stop()
}
