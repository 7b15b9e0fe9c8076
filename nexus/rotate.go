package nexus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/dht"
)

// Engine ties GSK generation/storage, IKP construction, and DHT
// publication together for one identity. Rotation is owner-serialized per
// group: Engine holds a lock per group_uuid so two concurrent rotations by
// the same owner still produce distinct, strictly ordered versions, per
// spec §4.7.
type Engine struct {
	codec     *GSKCodec
	dhtClient dht.Client
	resolve   MemberKeyResolver
	selfFP    [64]byte

	locksMu    sync.Mutex
	groupLocks map[string]*sync.Mutex
}

// NewEngine creates a rotation Engine for one identity. resolve is used to
// fetch each member's KEM public key (typically via the keyserver) during
// IKP build.
func NewEngine(codec *GSKCodec, dhtClient dht.Client, resolve MemberKeyResolver, selfFP [64]byte) *Engine {
	return &Engine{
		codec:      codec,
		dhtClient:  dhtClient,
		resolve:    resolve,
		selfFP:     selfFP,
		groupLocks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockFor(groupUUID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.groupLocks[groupUUID]
	if !ok {
		lock = &sync.Mutex{}
		e.groupLocks[groupUUID] = lock
	}
	return lock
}

// Rotate generates the next GSK version for group, stores it locally,
// builds and signs an IKP for the group's current membership, and
// publishes it at the group-GSK Atlas key with value_id=1 and 30-day TTL,
// per spec §4.7. Only the group owner may rotate.
func (e *Engine) Rotate(ctx context.Context, group Group, ownerPriv []byte, now time.Time) (GSKEntry, error) {
	logger := logrus.WithFields(logrus.Fields{"function": "Rotate", "package": "nexus", "group": group.UUID})

	selfFPHex := fmt.Sprintf("%x", e.selfFP[:])
	if group.OwnerFingerprint != selfFPHex {
		return GSKEntry{}, ErrNotGroupOwner
	}

	lock := e.lockFor(group.UUID)
	lock.Lock()
	defer lock.Unlock()

	version, key, err := e.codec.GenerateGSK(group.UUID)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: generate gsk: %w", err)
	}
	if err := e.codec.StoreGSK(group.UUID, version, key, now); err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: store gsk: %w", err)
	}

	ikpBytes, err := BuildIKP(group.UUID, version, key, group.Members, e.resolve, e.selfFP, ownerPriv, now)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: build ikp: %w", err)
	}

	gskKey := atlas.GroupGSKKey(group.UUID)
	if err := dht.ChunkedPutSigned(ctx, e.dhtClient, gskKey, ikpBytes, 1, atlas.TTL(atlas.RoleGroupGSK)); err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: publish ikp: %w", err)
	}

	logger.WithFields(logrus.Fields{"version": version}).Info("gsk rotated")
	return GSKEntry{
		Version:   version,
		Key:       key,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Unix() + int64(gskValidity.Seconds()),
	}, nil
}

// FetchAndExtract pulls the current IKP from the group's Atlas key,
// verifies it under the owner's DSA public key, extracts the GSK for the
// caller's own fingerprint, and persists it locally, per the "pull
// current IKP ... extracts the GSK, stores it, then retries" step in spec
// §4.9.
func (e *Engine) FetchAndExtract(ctx context.Context, groupUUID string, ownerDSAPub []byte, now time.Time) (GSKEntry, error) {
	gskKey := atlas.GroupGSKKey(groupUUID)
	raw, err := dht.ChunkedGet(ctx, e.dhtClient, gskKey)
	if err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: fetch ikp: %w", err)
	}

	ikp, err := VerifyIKP(raw, ownerDSAPub)
	if err != nil {
		return GSKEntry{}, err
	}

	key, err := ikp.ExtractGSK(groupUUID, e.selfFP, e.codec.kemPriv)
	if err != nil {
		return GSKEntry{}, err
	}

	if err := e.codec.StoreGSK(groupUUID, ikp.Version, key, now); err != nil {
		return GSKEntry{}, fmt.Errorf("nexus: persist extracted gsk: %w", err)
	}

	return GSKEntry{
		Version:   ikp.Version,
		Key:       key,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Unix() + int64(gskValidity.Seconds()),
	}, nil
}
