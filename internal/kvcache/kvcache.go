// Package kvcache provides a small expiring key-value cache used for
// lookup data that is expensive to rebuild, such as industry code
// synonym tables.
package kvcache

import (
	"context"
	"sync"
	"time"
)

// KV is an expiring byte-value cache keyed by string.
type KV interface {
	// Get returns the value for key, or found=false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key. A zero ttl means the entry never
	// expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// PurgeExpired removes expired entries and reports how many were
	// deleted.
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

// Memory is an in-process KV used in tests and when no cache path is
// configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(time.Now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	purged := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			delete(m.entries, k)
			purged++
		}
	}
	return purged, nil
}

func (m *Memory) Close() error { return nil }
