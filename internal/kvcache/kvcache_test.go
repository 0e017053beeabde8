package kvcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1"), 0))
	got, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Set(ctx, "k", []byte("v2"), 0))
	got, _, _ = kv.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, found, _ = kv.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemory_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	src := []byte("original")
	require.NoError(t, kv.Set(ctx, "k", src, 0))
	src[0] = 'X'

	got, _, _ := kv.Get(ctx, "k")
	assert.Equal(t, []byte("original"), got, "stored value must not alias the caller's slice")
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, kv.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, kv.Set(ctx, "forever", []byte("y"), 0))

	time.Sleep(25 * time.Millisecond)

	_, found, _ := kv.Get(ctx, "short")
	assert.False(t, found)
	_, found, _ = kv.Get(ctx, "forever")
	assert.True(t, found, "zero ttl never expires")
}

func TestMemory_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	require.NoError(t, kv.Set(ctx, "a", []byte("x"), 5*time.Millisecond))
	require.NoError(t, kv.Set(ctx, "b", []byte("y"), 5*time.Millisecond))
	require.NoError(t, kv.Set(ctx, "c", []byte("z"), 0))

	time.Sleep(15 * time.Millisecond)

	purged, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	_, found, _ := kv.Get(ctx, "c")
	assert.True(t, found)
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer kv.Close()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "k", []byte("v1"), time.Hour))
	got, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, kv.Set(ctx, "k", []byte("v2"), time.Hour))
	got, _, _ = kv.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), got, "set on an existing key overwrites")

	require.NoError(t, kv.Delete(ctx, "k"))
	_, found, _ = kv.Get(ctx, "k")
	assert.False(t, found)
}

func TestSQLite_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	kv, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, kv.Set(ctx, "forever", []byte("y"), 0))

	time.Sleep(25 * time.Millisecond)

	_, found, err := kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found, "expired entries read as missing")

	purged, err := kv.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, found, _ = kv.Get(ctx, "forever")
	assert.True(t, found)
}
