// Package checkpoint persists the sync cursor between integration runs.
// Without a checkpoint the integration bootstraps its cursor from the remote
// most-recent query, so a store is an optimization, not a requirement.
package checkpoint

import (
	"context"
	"sync"
	"time"
)

// Store loads and saves the most-recent-synced timestamp.
type Store interface {
	// Load returns the saved cursor. ok is false when no cursor exists yet.
	Load(ctx context.Context) (cursor time.Time, ok bool, err error)
	// Save overwrites the cursor.
	Save(ctx context.Context, cursor time.Time) error
	// Ping checks backing-store connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// Memory is an in-process Store for tests and checkpoint-less runs.
type Memory struct {
	mu     sync.Mutex
	cursor time.Time
	set    bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the saved cursor, if any.
func (m *Memory) Load(ctx context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, m.set, nil
}

// Save overwrites the cursor.
func (m *Memory) Save(ctx context.Context, cursor time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = cursor
	m.set = true
	return nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
