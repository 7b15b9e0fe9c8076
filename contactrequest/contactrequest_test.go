package contactrequest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/identity"
	"github.com/nocdem/dna-messenger/keyserver"
)

func atlasKeyForTest(fp string) [64]byte {
	return atlas.Key(atlas.RoleContactRequestInbox, fp, "")
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

func newTestClient(t *testing.T, d dht.Client) *Client {
	t.Helper()
	ks := keyserver.New(d)
	return New(d, ks, NewMemoryStore())
}

func TestSendAndListRequest(t *testing.T) {
	ctx := context.Background()
	d := dht.NewMemoryClient()

	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bob := freshIdentity(t, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote")

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(ctx, alice.Record, alice.DSAPrivateKey))

	client := New(d, ks, NewMemoryStore())
	now := time.Now()
	require.NoError(t, client.SendRequest(ctx, alice.Record.Fingerprint, alice.DSAPrivateKey, bob.Record.Fingerprint, "hi bob", now))

	requests, err := client.ListRequests(ctx, bob.Record.Fingerprint)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "hi bob", requests[0].Greeting)
	assert.Equal(t, alice.Record.Fingerprint, requests[0].ProposerFingerprint)
}

func TestListRequestsDropsTamperedSignature(t *testing.T) {
	ctx := context.Background()
	d := dht.NewMemoryClient()

	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bob := freshIdentity(t, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote")

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(ctx, alice.Record, alice.DSAPrivateKey))

	client := New(d, ks, NewMemoryStore())
	now := time.Now()
	req := Request{ProposerFingerprint: alice.Record.Fingerprint, TargetFingerprint: bob.Record.Fingerprint, Greeting: "hi", Timestamp: now.Unix()}
	require.NoError(t, signRequest(alice.DSAPrivateKey, &req))
	req.Greeting = "tampered"

	encoded, err := marshalRequest(req)
	require.NoError(t, err)
	inboxKey := atlasKeyForTest(bob.Record.Fingerprint)
	require.NoError(t, d.PutSigned(ctx, inboxKey, encoded, proposerValueID(alice.Record.Fingerprint), time.Hour))

	requests, err := client.ListRequests(ctx, bob.Record.Fingerprint)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestApprovePublishesReciprocalRequest(t *testing.T) {
	ctx := context.Background()
	d := dht.NewMemoryClient()

	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bob := freshIdentity(t, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote")

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(ctx, alice.Record, alice.DSAPrivateKey))
	require.NoError(t, ks.PublishIdentity(ctx, bob.Record, bob.DSAPrivateKey))

	bobClient := New(d, ks, NewMemoryStore())
	now := time.Now()
	require.NoError(t, bobClient.SendRequest(ctx, alice.Record.Fingerprint, alice.DSAPrivateKey, bob.Record.Fingerprint, "hi", now))

	require.NoError(t, bobClient.Approve(ctx, bob.Record.Fingerprint, bob.DSAPrivateKey, alice.Record.Fingerprint, now))
	assert.True(t, bobClient.store.IsContact(alice.Record.Fingerprint))

	aliceClient := New(d, ks, NewMemoryStore())
	reciprocal, err := aliceClient.ListRequests(ctx, alice.Record.Fingerprint)
	require.NoError(t, err)
	require.Len(t, reciprocal, 1)
	assert.Equal(t, bob.Record.Fingerprint, reciprocal[0].ProposerFingerprint)
}

func TestDenyWithBlockDropsFutureRequestsUnverified(t *testing.T) {
	ctx := context.Background()
	d := dht.NewMemoryClient()

	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bob := freshIdentity(t, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote")

	ks := keyserver.New(d)
	require.NoError(t, ks.PublishIdentity(ctx, alice.Record, alice.DSAPrivateKey))

	client := New(d, ks, NewMemoryStore())
	now := time.Now()
	require.NoError(t, client.SendRequest(ctx, alice.Record.Fingerprint, alice.DSAPrivateKey, bob.Record.Fingerprint, "hi", now))

	require.NoError(t, client.Deny(alice.Record.Fingerprint, true))
	assert.True(t, client.store.IsBlocked(alice.Record.Fingerprint))

	requests, err := client.ListRequests(ctx, bob.Record.Fingerprint)
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestSendRequestRejectsOversizedGreeting(t *testing.T) {
	ctx := context.Background()
	d := dht.NewMemoryClient()
	client := newTestClient(t, d)

	alice := freshIdentity(t, "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	oversized := make([]byte, maxGreetingLength+1)
	err := client.SendRequest(ctx, alice.Record.Fingerprint, alice.DSAPrivateKey, "target", string(oversized), time.Now())
	assert.ErrorIs(t, err, ErrGreetingTooLong)
}
