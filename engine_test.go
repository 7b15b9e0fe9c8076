package messenger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/pipeline"
)

type eventCollector struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (c *eventCollector) Dispatch(e pipeline.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) snapshot() []pipeline.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pipeline.Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	_, err := New("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", Options{})
	assert.Error(t, err)
}

func TestEngineSendAndPollRoundTrip(t *testing.T) {
	d := dht.NewMemoryClient()

	aliceSink := &eventCollector{}
	alice, err := New("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", Options{DHT: d, Sink: aliceSink})
	require.NoError(t, err)
	t.Cleanup(alice.Stop)

	bobSink := &eventCollector{}
	bob, err := New("zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoom", "", Options{DHT: d, Sink: bobSink})
	require.NoError(t, err)
	t.Cleanup(bob.Stop)

	require.NoError(t, alice.Contacts.SendRequest(context.Background(), alice.Fingerprint(), alice.Identity.DSAPrivateKey, bob.Fingerprint(), "hi", time.Now()))
	require.NoError(t, bob.Contacts.Approve(context.Background(), bob.Fingerprint(), bob.Identity.DSAPrivateKey, alice.Fingerprint(), time.Now()))

	requests, err := alice.Contacts.ListRequests(context.Background(), alice.Fingerprint())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.NoError(t, alice.ApproveContact(context.Background(), bob.Fingerprint()))

	_, err = alice.SendMessage(bob.Fingerprint(), []byte("hello bob"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		require.NoError(t, bob.PollContact(context.Background(), alice.Fingerprint()))
		return len(bobSink.snapshot()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	events := bobSink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, pipeline.EventMessageDelivered, events[0].Kind)
	assert.Equal(t, []byte("hello bob"), events[0].Plaintext)
}

func TestEngineApproveContactPromotesQuarantinedMessage(t *testing.T) {
	d := dht.NewMemoryClient()

	carolSink := &eventCollector{}
	carol, err := New("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", Options{DHT: d, Sink: carolSink})
	require.NoError(t, err)
	t.Cleanup(carol.Stop)

	daveSink := &eventCollector{}
	dave, err := New("zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoom", "", Options{DHT: d, Sink: daveSink})
	require.NoError(t, err)
	t.Cleanup(dave.Stop)

	// dave proposes to carol; carol approves, which adds dave to her own
	// contact list and sends a reciprocal request back to dave — but dave
	// has not yet approved that reciprocal request, so carol is not (yet)
	// a contact on dave's side.
	require.NoError(t, dave.Contacts.SendRequest(context.Background(), dave.Fingerprint(), dave.Identity.DSAPrivateKey, carol.Fingerprint(), "hi", time.Now()))
	require.NoError(t, carol.Contacts.Approve(context.Background(), carol.Fingerprint(), carol.Identity.DSAPrivateKey, dave.Fingerprint(), time.Now()))

	_, err = carol.SendMessage(dave.Fingerprint(), []byte("hi dave"))
	require.NoError(t, err)

	// dave polls before approving carol: the message must be quarantined,
	// not delivered.
	require.Eventually(t, func() bool {
		require.NoError(t, dave.PollContact(context.Background(), carol.Fingerprint()))
		return true
	}, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, daveSink.snapshot())

	requests, err := dave.Contacts.ListRequests(context.Background(), dave.Fingerprint())
	require.NoError(t, err)
	require.Len(t, requests, 1)

	require.NoError(t, dave.ApproveContact(context.Background(), carol.Fingerprint()))

	events := daveSink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, pipeline.EventMessageDelivered, events[0].Kind)
	assert.Equal(t, []byte("hi dave"), events[0].Plaintext)

	// a subsequent ordinary poll must not re-deliver the promoted message.
	require.NoError(t, dave.PollContact(context.Background(), carol.Fingerprint()))
	assert.Len(t, daveSink.snapshot(), 1)
}

func TestEngineCreateGroup(t *testing.T) {
	d := dht.NewMemoryClient()

	ownerSink := &eventCollector{}
	owner, err := New("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "", Options{DHT: d, Sink: ownerSink})
	require.NoError(t, err)
	t.Cleanup(owner.Stop)

	group, err := owner.CreateGroup(context.Background(), "friends")
	require.NoError(t, err)
	assert.Equal(t, owner.Fingerprint(), group.OwnerFingerprint)
	assert.NotEmpty(t, group.UUID)
}
