package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/contactrequest"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/identity"
	"github.com/nocdem/dna-messenger/keyserver"
	"github.com/nocdem/dna-messenger/seal"
	"github.com/nocdem/dna-messenger/spillway"
)

func atlasOutboxKeyFor(selfFP, peerFP string) [64]byte {
	return atlas.Key(atlas.RoleOutbox, selfFP, peerFP)
}

func freshIdentity(t *testing.T, mnemonic string) *identity.Identity {
	t.Helper()
	id, err := identity.GenerateFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	now := time.Now().Unix()
	id.Record.CreatedAt = now
	id.Record.UpdatedAt = now
	id.Record.Timestamp = now
	require.NoError(t, identity.SignRecord(id.DSAPrivateKey, &id.Record))
	return id
}

type collectingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectingSink) Dispatch(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *collectingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type testRig struct {
	engine *Engine
	sink   *collectingSink
	id     *identity.Identity
}

func buildRig(t *testing.T, d dht.Client, mnemonic string, peerContacts ...string) testRig {
	t.Helper()
	id := freshIdentity(t, mnemonic)

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(context.Background(), id.Record, id.DSAPrivateKey))

	store := contactrequest.NewMemoryStore()
	for _, fp := range peerContacts {
		require.NoError(t, store.AddContact(fp))
	}
	contacts := contactrequest.New(d, ks, store)

	codec := seal.NewCodec()
	outbox := spillway.NewOutbox(d, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore())

	sink := &collectingSink{}
	eng, err := New(Config{
		SelfFingerprint: id.Record.Fingerprint,
		DSAPrivateKey:   id.DSAPrivateKey,
		KEMPrivateKey:   id.KEMPrivateKey,
		Seal:            codec,
		Outbox:          outbox,
		Contacts:        contacts,
		Keyserver:       ks,
		Sink:            sink,
		Options:         Options{Workers: 2, OutboundQueueCapacity: 4, GetDeadline: time.Second, PutDeadline: time.Second},
	})
	require.NoError(t, err)
	eng.Start()
	t.Cleanup(eng.Stop)

	return testRig{engine: eng, sink: sink, id: id}
}

func TestSendMessageRejectsNonContact(t *testing.T) {
	d := dht.NewMemoryClient()
	rig := buildRig(t, d, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")

	_, err := rig.engine.SendMessage("not-a-contact-fp", []byte("hi"), time.Now())
	assert.ErrorIs(t, err, ErrNotAContact)
}

func TestSendMessageQueueFullReturnsErrQueueFull(t *testing.T) {
	d := dht.NewMemoryClient()
	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(context.Background(), alice.Record, alice.DSAPrivateKey))

	store := contactrequest.NewMemoryStore()
	require.NoError(t, store.AddContact(alice.Record.Fingerprint))
	contacts := contactrequest.New(d, ks, store)

	sink := &collectingSink{}
	eng, err := New(Config{
		SelfFingerprint: alice.Record.Fingerprint,
		DSAPrivateKey:   alice.DSAPrivateKey,
		KEMPrivateKey:   alice.KEMPrivateKey,
		Seal:            seal.NewCodec(),
		Outbox:          spillway.NewOutbox(d, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore()),
		Contacts:        contacts,
		Keyserver:       ks,
		Sink:            sink,
		Options:         Options{Workers: 0, OutboundQueueCapacity: 1, GetDeadline: time.Second, PutDeadline: time.Second},
	})
	require.NoError(t, err)
	// No Start(): nothing drains the queue, so the second send overflows it.

	_, err = eng.SendMessage(alice.Record.Fingerprint, []byte("one"), time.Now())
	require.NoError(t, err)
	_, err = eng.SendMessage(alice.Record.Fingerprint, []byte("two"), time.Now())
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestSendMessageThenPollDeliversPlaintext(t *testing.T) {
	d := dht.NewMemoryClient()
	bob := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	aliceMnemonic := "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoom"
	alice := freshIdentity(t, aliceMnemonic)

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(context.Background(), bob.Record, bob.DSAPrivateKey))
	require.NoError(t, ks.PublishIdentity(context.Background(), alice.Record, alice.DSAPrivateKey))

	bobStore := contactrequest.NewMemoryStore()
	require.NoError(t, bobStore.AddContact(alice.Record.Fingerprint))
	bobContacts := contactrequest.New(d, ks, bobStore)

	bobOutbox := spillway.NewOutbox(d, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore())
	bobSink := &collectingSink{}
	bobEngine, err := New(Config{
		SelfFingerprint: bob.Record.Fingerprint,
		DSAPrivateKey:   bob.DSAPrivateKey,
		KEMPrivateKey:   bob.KEMPrivateKey,
		Seal:            seal.NewCodec(),
		Outbox:          bobOutbox,
		Contacts:        bobContacts,
		Keyserver:       ks,
		Sink:            bobSink,
		Options:         Options{Workers: 1, OutboundQueueCapacity: 4, GetDeadline: time.Second, PutDeadline: time.Second},
	})
	require.NoError(t, err)
	bobEngine.Start()
	t.Cleanup(bobEngine.Stop)

	_, err = bobEngine.SendMessage(alice.Record.Fingerprint, []byte("hello alice"), time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		raw, _ := d.Get(context.Background(), atlasOutboxKeyFor(bob.Record.Fingerprint, alice.Record.Fingerprint))
		return raw != nil
	}, time.Second, 10*time.Millisecond)

	aliceStore := contactrequest.NewMemoryStore()
	require.NoError(t, aliceStore.AddContact(bob.Record.Fingerprint))
	aliceContacts := contactrequest.New(d, ks, aliceStore)
	aliceOutbox := spillway.NewOutbox(d, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore())
	aliceSink := &collectingSink{}
	aliceEngine, err := New(Config{
		SelfFingerprint: alice.Record.Fingerprint,
		DSAPrivateKey:   alice.DSAPrivateKey,
		KEMPrivateKey:   alice.KEMPrivateKey,
		Seal:            seal.NewCodec(),
		Outbox:          aliceOutbox,
		Contacts:        aliceContacts,
		Keyserver:       ks,
		Sink:            aliceSink,
		Options:         Options{Workers: 1, OutboundQueueCapacity: 4, GetDeadline: time.Second, PutDeadline: time.Second},
	})
	require.NoError(t, err)

	require.NoError(t, aliceEngine.PollContact(context.Background(), bob.Record.Fingerprint, time.Now()))

	events := aliceSink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageDelivered, events[0].Kind)
	assert.Equal(t, []byte("hello alice"), events[0].Plaintext)
}

func TestSendMessagePeerTransportSuccessSkipsSpillway(t *testing.T) {
	d := dht.NewMemoryClient()
	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bob := freshIdentity(t, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoom")

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(context.Background(), alice.Record, alice.DSAPrivateKey))
	require.NoError(t, ks.PublishIdentity(context.Background(), bob.Record, bob.DSAPrivateKey))

	store := contactrequest.NewMemoryStore()
	require.NoError(t, store.AddContact(bob.Record.Fingerprint))
	contacts := contactrequest.New(d, ks, store)

	transport := &fakeTransport{accept: true}
	sink := &collectingSink{}
	eng, err := New(Config{
		SelfFingerprint: alice.Record.Fingerprint,
		DSAPrivateKey:   alice.DSAPrivateKey,
		KEMPrivateKey:   alice.KEMPrivateKey,
		Seal:            seal.NewCodec(),
		Outbox:          spillway.NewOutbox(d, spillway.NewMemoryState(), spillway.NewMemoryQuarantineStore()),
		Contacts:        contacts,
		Keyserver:       ks,
		Transport:       transport,
		Sink:            sink,
		Options:         Options{Workers: 1, OutboundQueueCapacity: 4, GetDeadline: time.Second, PutDeadline: time.Second},
	})
	require.NoError(t, err)
	eng.Start()
	t.Cleanup(eng.Stop)

	_, err = eng.SendMessage(bob.Record.Fingerprint, []byte("fast path"), time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return transport.calls() == 1 }, time.Second, 10*time.Millisecond)

	raw, getErr := d.Get(context.Background(), atlasOutboxKeyFor(alice.Record.Fingerprint, bob.Record.Fingerprint))
	assert.ErrorIs(t, getErr, dht.ErrNotFound)
	assert.Nil(t, raw)
}

type fakeTransport struct {
	mu      sync.Mutex
	accept  bool
	attempt int
}

func (f *fakeTransport) TrySend(ctx context.Context, recipientFP string, envelope []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
	return f.accept, nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt
}
