package objstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govatlas/catalog-cli/internal/model"
)

func TestSnapshotKey(t *testing.T) {
	at := time.Date(2026, 3, 5, 9, 42, 17, 0, time.UTC)
	got := SnapshotKey("us-fed-grants-gov", at)
	assert.Equal(t, "us-fed-grants-gov/2026/03/05/09/1772703737.json", got)
}

func TestSnapshotKey_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 3, 5, 21, 0, 0, 0, loc)
	assert.Equal(t, SnapshotKey("x", at.UTC()), SnapshotKey("x", at))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/json", ContentTypeFor(model.TransportJSON))
	assert.Equal(t, "application/xml", ContentTypeFor(model.TransportRSS))
	assert.Equal(t, "text/html", ContentTypeFor(model.TransportHTML))
}

func TestFS_PutWritesNestedKey(t *testing.T) {
	dir := t.TempDir()
	store := NewFS(dir)

	key := SnapshotKey("ca-on-grants", time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	require.NoError(t, store.Put(context.Background(), key, "application/json", []byte(`{"ok":true}`)))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestFS_PutOverwrites(t *testing.T) {
	dir := t.TempDir()
	store := NewFS(dir)

	require.NoError(t, store.Put(context.Background(), "a/b.json", "application/json", []byte("one")))
	require.NoError(t, store.Put(context.Background(), "a/b.json", "application/json", []byte("two")))

	data, err := os.ReadFile(filepath.Join(dir, "a", "b.json"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
