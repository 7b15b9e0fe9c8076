package contactrequest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/keyserver"
)

// Client implements the contact-request operations of spec §4.10 for one
// identity.
type Client struct {
	dht       dht.Client
	keyserver *keyserver.Client
	store     Store
}

// New creates a Client backed by a DHT client, keyserver client (used to
// resolve a proposer's DSA public key for signature verification), and
// local Store.
func New(d dht.Client, ks *keyserver.Client, store Store) *Client {
	return &Client{dht: d, keyserver: ks, store: store}
}

// SendRequest assembles, signs, and publishes a contact request from
// proposerFP to targetFP into the target's request inbox, per spec §4.10.
func (c *Client) SendRequest(ctx context.Context, proposerFP string, proposerPriv []byte, targetFP, greeting string, now time.Time) error {
	if len(greeting) > maxGreetingLength {
		return fmt.Errorf("%w: %d bytes", ErrGreetingTooLong, len(greeting))
	}

	req := Request{
		ProposerFingerprint: proposerFP,
		TargetFingerprint:   targetFP,
		Greeting:            greeting,
		Timestamp:           now.Unix(),
	}
	if err := signRequest(proposerPriv, &req); err != nil {
		return err
	}

	encoded, err := marshalRequest(req)
	if err != nil {
		return fmt.Errorf("contactrequest: marshal: %w", err)
	}

	inboxKey := atlas.Key(atlas.RoleContactRequestInbox, targetFP, "")
	valueID := proposerValueID(proposerFP)
	if err := c.dht.PutSigned(ctx, inboxKey, encoded, valueID, atlas.TTL(atlas.RoleContactRequestInbox)); err != nil {
		return fmt.Errorf("contactrequest: publish request: %w", err)
	}
	return nil
}

// ListRequests fetches every pending request in selfFP's inbox, verifies
// each signature against the proposer's keyserver-published identity, and
// drops invalid or blocked-proposer entries, per spec §4.10.
func (c *Client) ListRequests(ctx context.Context, selfFP string) ([]Request, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "ListRequests", "package": "contactrequest"})

	inboxKey := atlas.Key(atlas.RoleContactRequestInbox, selfFP, "")
	raw, err := c.dht.GetAll(ctx, inboxKey)
	if err != nil {
		return nil, fmt.Errorf("contactrequest: fetch inbox: %w", err)
	}

	var valid []Request
	for _, entry := range raw {
		req, err := unmarshalRequest(entry)
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("dropping malformed request")
			continue
		}
		if req.TargetFingerprint != selfFP {
			continue
		}
		if c.store.IsBlocked(req.ProposerFingerprint) {
			continue
		}

		proposer, err := c.keyserver.Lookup(ctx, req.ProposerFingerprint)
		if err != nil && !errors.Is(err, keyserver.ErrStaleCacheOnly) {
			logger.WithFields(logrus.Fields{"proposer": req.ProposerFingerprint, "error": err.Error()}).Warn("could not resolve proposer identity, dropping request")
			continue
		}
		if err := verifyRequest(req, proposer.DSAPublicKey); err != nil {
			logger.WithFields(logrus.Fields{"proposer": req.ProposerFingerprint}).Warn("request signature invalid, dropping")
			continue
		}

		valid = append(valid, req)
	}
	return valid, nil
}

// Approve adds proposerFP to selfFP's contact list and publishes a
// reciprocal signed request back to the proposer, so both sides observe
// an accepted state in their inbox, per spec §4.10.
func (c *Client) Approve(ctx context.Context, selfFP string, selfPriv []byte, proposerFP string, now time.Time) error {
	if err := c.store.AddContact(proposerFP); err != nil {
		return fmt.Errorf("contactrequest: add contact: %w", err)
	}
	return c.SendRequest(ctx, selfFP, selfPriv, proposerFP, "", now)
}

// IsContact reports whether fp is an approved contact.
func (c *Client) IsContact(fp string) bool {
	return c.store.IsContact(fp)
}

// Deny declines proposerFP without adding it as a contact. If block is
// true, proposerFP is added to the persistent local block list, so future
// requests from it are dropped without verification. If block is false,
// Deny changes no state: the pending request stays in the inbox.
func (c *Client) Deny(proposerFP string, block bool) error {
	if block {
		return c.store.Block(proposerFP)
	}
	return nil
}
