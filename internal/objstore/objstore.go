// Package objstore archives raw fetch payloads to an object store so
// failed parses can be replayed later.
package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/model"
)

// ObjectStore writes immutable blobs under hierarchical keys.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// SnapshotKey builds the archive key for a source payload fetched at
// the given time. Keys shard by UTC hour so listings stay cheap.
func SnapshotKey(sourceID string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d/%d.json",
		sourceID, at.Year(), int(at.Month()), at.Day(), at.Hour(), at.Unix())
}

// ContentTypeFor maps a source transport kind to the snapshot content
// type.
func ContentTypeFor(kind model.TransportKind) string {
	switch kind {
	case model.TransportJSON:
		return "application/json"
	case model.TransportRSS:
		return "application/xml"
	default:
		return "text/html"
	}
}

// FS is an ObjectStore rooted at a local directory, used for
// development and tests.
type FS struct {
	root string
}

// NewFS creates a filesystem-backed store rooted at dir.
func NewFS(dir string) *FS {
	return &FS{root: dir}
}

func (f *FS) Put(_ context.Context, key, _ string, body []byte) error {
	path := filepath.Join(f.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "objstore: mkdir for %s", key)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrapf(err, "objstore: write %s", key)
	}
	return nil
}
