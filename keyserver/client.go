package keyserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
	"github.com/nocdem/dna-messenger/identity"
)

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{128}$`)

// Client publishes and resolves Anchor identity records, per spec §4.5. A
// single Client should be shared across an engine instance: its cache and
// singleflight group are only useful if lookups for the same fingerprint
// converge on one in-flight request.
type Client struct {
	dht   dht.Client
	cache *cache
	group singleflight.Group
	now   func() time.Time
}

// New creates a keyserver Client over the given DHT adapter.
func New(d dht.Client) *Client {
	return &Client{dht: d, cache: newCache(time.Now), now: time.Now}
}

// PublishIdentity puts the signed identity record at the profile Atlas key
// with value_id=1 and a 365-day TTL (chunked if large), and, if the record
// has a registered name, also publishes a signed alias record at the
// name-lookup Atlas key.
func (c *Client) PublishIdentity(ctx context.Context, record identity.Record, priv []byte) error {
	logger := logrus.WithFields(logrus.Fields{"function": "PublishIdentity", "package": "keyserver", "fingerprint": record.Fingerprint})

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("keyserver: marshal identity record: %w", err)
	}

	key := atlas.Key(atlas.RoleProfile, record.Fingerprint, "")
	if err := dht.ChunkedPutSigned(ctx, c.dht, key, body, 1, atlas.TTL(atlas.RoleProfile)); err != nil {
		logger.WithError(err).Error("failed to publish profile")
		return fmt.Errorf("keyserver: publish profile: %w", err)
	}

	if record.Name != "" {
		alias := aliasRecord{
			Name:         record.Name,
			Fingerprint:  record.Fingerprint,
			DSAPublicKey: record.DSAPublicKey,
			Timestamp:    c.now().Unix(),
		}
		if err := signAlias(priv, &alias); err != nil {
			return fmt.Errorf("keyserver: sign alias: %w", err)
		}
		aliasBody, err := marshalAlias(&alias)
		if err != nil {
			return err
		}
		nameKey := atlas.NameKey(record.Name)
		if err := c.dht.PutSigned(ctx, nameKey, aliasBody, 1, atlas.TTL(atlas.RoleNameLookup)); err != nil {
			logger.WithError(err).Error("failed to publish name alias")
			return fmt.Errorf("keyserver: publish alias: %w", err)
		}
	}

	c.cache.put(record.Fingerprint, record)
	logger.Info("identity published")
	return nil
}

// Lookup resolves fp_or_name to a verified identity record. If input looks
// like a 128-hex fingerprint it fetches the profile directly; otherwise it
// resolves via the name-lookup alias first. On a DHT failure with a usable
// cache entry within the 30-day stale ceiling, it returns the cached
// record wrapped in ErrStaleCacheOnly rather than failing outright.
func (c *Client) Lookup(ctx context.Context, fpOrName string) (*identity.Record, error) {
	if fingerprintPattern.MatchString(fpOrName) {
		return c.lookupByFingerprint(ctx, fpOrName)
	}
	return c.lookupByName(ctx, fpOrName)
}

func (c *Client) lookupByName(ctx context.Context, name string) (*identity.Record, error) {
	nameKey := atlas.NameKey(name)
	raw, err, _ := c.group.Do("name:"+name, func() (interface{}, error) {
		return c.dht.Get(ctx, nameKey)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNameNotFound, err)
	}

	alias, err := unmarshalAlias(raw.([]byte))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNameNotFound, err)
	}
	if err := verifyAlias(alias); err != nil {
		return nil, err
	}

	return c.lookupByFingerprint(ctx, alias.Fingerprint)
}

func (c *Client) lookupByFingerprint(ctx context.Context, fp string) (*identity.Record, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "lookupByFingerprint", "package": "keyserver", "fingerprint": fp})

	if entry, ok := c.cache.get(fp); ok && entry.fresh(c.now()) {
		record := entry.record
		return &record, nil
	}

	v, err, _ := c.group.Do("fp:"+fp, func() (interface{}, error) {
		key := atlas.Key(atlas.RoleProfile, fp, "")
		body, err := dht.ChunkedGet(ctx, c.dht, key)
		if err != nil {
			return nil, err
		}
		var record identity.Record
		if jsonErr := json.Unmarshal(body, &record); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrIdentityVerificationFailed, jsonErr)
		}
		if verifyErr := identity.VerifyRecord(&record); verifyErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrIdentityVerificationFailed, verifyErr)
		}
		return record, nil
	})

	if err != nil {
		if entry, ok := c.cache.get(fp); ok && entry.withinStaleCeiling(c.now()) {
			logger.WithError(err).Warn("dht lookup failed, serving stale cache entry")
			record := entry.record
			return &record, ErrStaleCacheOnly
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityNotFound, err)
	}

	record := v.(identity.Record)
	c.cache.put(fp, record)
	return &record, nil
}

// ReverseLookup fetches the profile at fp and returns its registered name,
// if present and not expired.
func (c *Client) ReverseLookup(ctx context.Context, fp string) (string, error) {
	record, err := c.lookupByFingerprint(ctx, fp)
	if err != nil && !errors.Is(err, ErrStaleCacheOnly) {
		return "", err
	}
	if record.Name == "" {
		return "", nil
	}
	if c.now().Unix() > record.NameExpiresAt {
		return "", nil
	}
	return record.Name, nil
}
