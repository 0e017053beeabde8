package kvcache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite implements KV on a local SQLite file so the cache survives
// across runs.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL
// mode, and creates the cache table if needed.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "kvcache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "kvcache: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "kvcache: migrate")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key)

	var value []byte
	var expiresAt sql.NullInt64
	err := row.Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "kvcache: get %s", key)
	}
	if expiresAt.Valid && expiresAt.Int64 <= time.Now().UnixMilli() {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: time.Now().Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrapf(err, "kvcache: set %s", key)
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return eris.Wrapf(err, "kvcache: delete %s", key)
}

func (s *SQLite) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "kvcache: purge expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "kvcache: rows affected")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
