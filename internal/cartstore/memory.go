// Package cartstore provides cart.SnapshotStore implementations: a
// process-local memory store, a gzip-compressed file store, and a
// PostgreSQL-backed store (see the repository package).
package cartstore

import (
	"context"
	"sync"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

var _ cart.SnapshotStore = (*Memory)(nil)

// Memory is an in-process SnapshotStore. It is the default for development
// and the backing store for tests; carts do not survive a restart.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemory creates an empty in-memory snapshot store.
func NewMemory() *Memory {
	return &Memory{snaps: make(map[string][]byte)}
}

// Save stores the encoded snapshot for the session.
func (m *Memory) Save(_ context.Context, sessionID string, snap cart.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[sessionID] = snap.Encode()
	return nil
}

// Load returns the last saved snapshot for the session. A snapshot that no
// longer decodes is dropped and reported as absent.
func (m *Memory) Load(_ context.Context, sessionID string) (cart.Snapshot, bool, error) {
	m.mu.RLock()
	data, ok := m.snaps[sessionID]
	m.mu.RUnlock()
	if !ok {
		return cart.Snapshot{}, false, nil
	}

	snap, err := cart.DecodeSnapshot(data)
	if err != nil {
		return cart.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Delete removes the session's snapshot, if any.
func (m *Memory) Delete(_ context.Context, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
}
