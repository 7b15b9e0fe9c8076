package dht

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nocdem/dna-messenger/atlas"
	"github.com/nocdem/dna-messenger/primitives"
)

// MaxInlineSize is the largest logical value stored directly, without
// chunking, per spec §4.4.
const MaxInlineSize = 64 * 1024

// chunkPayloadSize is the per-chunk payload width. It is kept comfortably
// under MaxInlineSize so a chunk itself is never itself a candidate for
// chunking.
const chunkPayloadSize = 60 * 1024

// maxChunkFetchConcurrency bounds how many chunks ChunkedGet fetches in
// parallel. The spec requires parallel chunk fetch but does not bound it;
// an unbounded fan-out driven by a hostile manifest's total_chunks field
// would let one lookup spawn an unbounded number of goroutines, so a
// semaphore caps it (see SPEC_FULL.md §C.4).
const maxChunkFetchConcurrency = 16

const (
	modeInline byte = 0x00
	modeChunked byte = 0x01
)

var manifestMagic = [4]byte{'C', 'H', 'N', 'K'}

const manifestVersion = 1

// manifest is the (total_chunks, total_size, hash) triple from spec §4.4,
// serialized as: magic[4] || version u8 || total_chunks u32be ||
// total_size u64be || hash[64].
type manifest struct {
	totalChunks uint32
	totalSize   uint64
	hash        [64]byte
}

func (m manifest) encode() []byte {
	out := make([]byte, 4+1+4+8+64)
	copy(out[0:4], manifestMagic[:])
	out[4] = manifestVersion
	binary.BigEndian.PutUint32(out[5:9], m.totalChunks)
	binary.BigEndian.PutUint64(out[9:17], m.totalSize)
	copy(out[17:81], m.hash[:])
	return out
}

func decodeManifest(data []byte) (manifest, error) {
	if len(data) != 81 {
		return manifest{}, fmt.Errorf("%w: manifest length", ErrInvalidValue)
	}
	if [4]byte(data[0:4]) != manifestMagic {
		return manifest{}, fmt.Errorf("%w: manifest magic", ErrInvalidValue)
	}
	if data[4] != manifestVersion {
		return manifest{}, fmt.Errorf("%w: manifest version", ErrInvalidValue)
	}
	var m manifest
	m.totalChunks = binary.BigEndian.Uint32(data[5:9])
	m.totalSize = binary.BigEndian.Uint64(data[9:17])
	copy(m.hash[:], data[17:81])
	return m, nil
}

// ChunkedPut stores value under key, splitting it across chunk entries and
// publishing a manifest if it exceeds MaxInlineSize, per spec §4.4. The
// manifest (or the inline value) is written with a plain Put.
func ChunkedPut(ctx context.Context, client Client, key [64]byte, value []byte, ttl time.Duration) error {
	return chunkedPut(ctx, client, key, value, ttl, func(ctx context.Context, k [64]byte, v []byte, ttl time.Duration) error {
		return client.Put(ctx, k, v, ttl)
	})
}

// ChunkedPutSigned is ChunkedPut but publishes the manifest (or inline
// value) via PutSigned under valueID, matching Spillway and Nexus's
// signed-replacement publication model.
func ChunkedPutSigned(ctx context.Context, client Client, key [64]byte, value []byte, valueID uint64, ttl time.Duration) error {
	return chunkedPut(ctx, client, key, value, ttl, func(ctx context.Context, k [64]byte, v []byte, ttl time.Duration) error {
		return client.PutSigned(ctx, k, v, valueID, ttl)
	})
}

func chunkedPut(ctx context.Context, client Client, key [64]byte, value []byte, ttl time.Duration,
	putManifest func(ctx context.Context, key [64]byte, value []byte, ttl time.Duration) error,
) error {
	if len(value) <= MaxInlineSize {
		wrapped := append([]byte{modeInline}, value...)
		return putManifest(ctx, key, wrapped, ttl)
	}

	totalChunks := (len(value) + chunkPayloadSize - 1) / chunkPayloadSize
	for i := 0; i < totalChunks; i++ {
		start := i * chunkPayloadSize
		end := start + chunkPayloadSize
		if end > len(value) {
			end = len(value)
		}
		chunkKey := atlas.ChunkKey(key[:], i)
		if err := client.Put(ctx, chunkKey, value[start:end], ttl); err != nil {
			return fmt.Errorf("dht: put chunk %d: %w", i, err)
		}
	}

	hash := primitives.Sha3_512(value)
	m := manifest{totalChunks: uint32(totalChunks), totalSize: uint64(len(value)), hash: hash}
	wrapped := append([]byte{modeChunked}, m.encode()...)
	return putManifest(ctx, key, wrapped, ttl)
}

// ChunkedGet reads the value at key, following the manifest and fetching
// chunks in parallel (bounded by maxChunkFetchConcurrency) if it was
// chunked, and verifying the reassembled hash before returning.
func ChunkedGet(ctx context.Context, client Client, key [64]byte) ([]byte, error) {
	raw, err := client.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeChunkedEntry(ctx, client, key, raw)
}

// ChunkedGetAll reads every value found under key — one per distinct
// signed value_id, plus any plain puts — following each one's manifest
// independently if it was chunked. It is the multi-publisher counterpart
// to ChunkedGet: use it wherever several senders legitimately coexist
// under one key (as in a group outbox), rather than Get, which returns
// only one arbitrary entry.
func ChunkedGetAll(ctx context.Context, client Client, key [64]byte) ([][]byte, error) {
	raws, err := client.GetAll(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(raws))
	for _, raw := range raws {
		decoded, err := decodeChunkedEntry(ctx, client, key, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

func decodeChunkedEntry(ctx context.Context, client Client, key [64]byte, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrInvalidValue)
	}

	mode, body := raw[0], raw[1:]
	switch mode {
	case modeInline:
		return body, nil
	case modeChunked:
		return fetchChunked(ctx, client, key, body)
	default:
		return nil, fmt.Errorf("%w: unknown chunk mode", ErrInvalidValue)
	}
}

func fetchChunked(ctx context.Context, client Client, key [64]byte, manifestBody []byte) ([]byte, error) {
	m, err := decodeManifest(manifestBody)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, m.totalChunks)
	sem := semaphore.NewWeighted(maxChunkFetchConcurrency)
	errCh := make(chan error, m.totalChunks)

	for i := uint32(0); i < m.totalChunks; i++ {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("dht: acquire chunk fetch slot: %w", err)
		}
		go func() {
			defer sem.Release(1)
			chunkKey := atlas.ChunkKey(key[:], int(i))
			data, err := client.Get(ctx, chunkKey)
			if err != nil {
				errCh <- fmt.Errorf("dht: get chunk %d: %w", i, err)
				return
			}
			chunks[i] = data
			errCh <- nil
		}()
	}

	for i := uint32(0); i < m.totalChunks; i++ {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, m.totalSize)
	for _, c := range chunks {
		out = append(out, c...)
	}
	if uint64(len(out)) != m.totalSize {
		return nil, fmt.Errorf("%w: reassembled size mismatch", ErrInvalidValue)
	}
	if primitives.Sha3_512(out) != m.hash {
		return nil, ErrChunkHashMismatch
	}
	return out, nil
}
