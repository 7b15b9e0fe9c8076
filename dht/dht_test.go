package dht

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocdem/dna-messenger/atlas"
)

func TestMemoryClientPutGet(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 1

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Put(ctx, key, []byte("hello"), time.Hour))
	v, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestMemoryClientPutSignedReplaces(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 2

	require.NoError(t, c.PutSigned(ctx, key, []byte("v1"), 1, time.Hour))
	require.NoError(t, c.PutSigned(ctx, key, []byte("v2"), 1, time.Hour))

	all, err := c.GetAll(ctx, key)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []byte("v2"), all[0])
}

func TestMemoryClientExpiry(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 3

	require.NoError(t, c.Put(ctx, key, []byte("ephemeral"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClientListenNotifies(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 4

	received := make(chan []byte, 1)
	sub, err := c.Listen(ctx, key, func(value []byte) {
		received <- value
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, c.Put(ctx, key, []byte("pushed"), time.Hour))

	select {
	case v := <-received:
		assert.Equal(t, []byte("pushed"), v)
	case <-time.After(time.Second):
		t.Fatal("listener was not notified")
	}
}

func TestMemoryClientListenCancelIdempotent(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte

	sub, err := c.Listen(ctx, key, func([]byte) {})
	require.NoError(t, err)
	sub.Cancel()
	sub.Cancel() // must not panic
}

func TestChunkedPutGetInline(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 5

	value := []byte("small value, well under the inline threshold")
	require.NoError(t, ChunkedPut(ctx, c, key, value, time.Hour))

	got, err := ChunkedGet(ctx, c, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestChunkedPutGetLarge(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 6

	value := make([]byte, MaxInlineSize*3+777)
	for i := range value {
		value[i] = byte(i % 251)
	}
	require.NoError(t, ChunkedPut(ctx, c, key, value, time.Hour))

	got, err := ChunkedGet(ctx, c, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestChunkedGetDetectsTamperedChunk(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 7

	value := make([]byte, MaxInlineSize*2)
	require.NoError(t, ChunkedPut(ctx, c, key, value, time.Hour))

	// Corrupt the first chunk directly.
	chunkKey := atlas.ChunkKey(key[:], 0)
	require.NoError(t, c.Put(ctx, chunkKey, []byte("corrupted"), time.Hour))

	_, err := ChunkedGet(ctx, c, key)
	assert.Error(t, err)
}

func TestChunkedPutSignedReplacesManifest(t *testing.T) {
	c := NewMemoryClient()
	ctx := context.Background()
	var key [64]byte
	key[0] = 8

	v1 := make([]byte, MaxInlineSize*2)
	v2 := make([]byte, MaxInlineSize)
	for i := range v2 {
		v2[i] = 0xAB
	}

	require.NoError(t, ChunkedPutSigned(ctx, c, key, v1, 1, time.Hour))
	require.NoError(t, ChunkedPutSigned(ctx, c, key, v2, 1, time.Hour))

	got, err := ChunkedGet(ctx, c, key)
	require.NoError(t, err)
	assert.Equal(t, v2, got)
}
