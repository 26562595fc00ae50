// Package session owns the per-session cart stores and checkout wizards.
//
// A session is the server-side equivalent of one browser's shopping session:
// an opaque ID, one cart store hydrated from the snapshot store on first
// touch, and at most one checkout wizard. Two clients presenting the same
// session ID share the live store in this process; writes from elsewhere to
// the same persisted slot are last-write-wins, which is acceptable for a
// single-user cart.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
)

// WizardFactory builds a checkout wizard bound to a session's cart store.
type WizardFactory func(sessionID string, c *cart.Store) *checkout.Wizard

// Manager issues session IDs and owns the live session registry.
type Manager struct {
	snapshots cart.SnapshotStore
	newWizard WizardFactory
	idleTTL   time.Duration
	lg        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	sf       singleflight.Group
}

// NewManager creates a session manager. Sessions idle longer than idleTTL are
// evicted from memory by the sweeper; their carts stay in the snapshot store
// and rehydrate on next touch.
func NewManager(snapshots cart.SnapshotStore, newWizard WizardFactory, idleTTL time.Duration, lg *zap.Logger) *Manager {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Manager{
		snapshots: snapshots,
		newWizard: newWizard,
		idleTTL:   idleTTL,
		lg:        lg,
		sessions:  make(map[string]*Session),
	}
}

// NewID returns a fresh opaque session ID.
func (m *Manager) NewID() string {
	return uuid.New().String()
}

// Get returns the live session for the given ID, creating and hydrating it
// on first touch. Concurrent first touches of the same ID collapse into one
// hydration.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.touch()
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	v, _, _ := m.sf.Do(id, func() (any, error) {
		store := cart.NewStore(id, m.snapshots, m.lg)
		store.Hydrate(ctx)

		s := &Session{
			ID:   id,
			Cart: store,
			m:    m,
		}
		s.touch()

		m.mu.Lock()
		// A sweep may race the hydration; the registered session wins.
		if existing, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return existing, nil
		}
		m.sessions[id] = s
		m.mu.Unlock()
		return s, nil
	})
	return v.(*Session)
}

// StartSweeper launches a background goroutine that evicts idle sessions
// every interval. It stops when ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.sweep(now)
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen()) >= m.idleTTL {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.lg.Debug("evicted idle sessions", zap.Int("count", evicted))
	}
}

// Session is one live session: a cart store and its checkout wizard.
type Session struct {
	ID   string
	Cart *cart.Store
	m    *Manager

	mu     sync.Mutex
	wizard *checkout.Wizard
	seen   time.Time
}

// Wizard returns the session's checkout wizard, creating one lazily.
func (s *Session) Wizard() *checkout.Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		s.wizard = s.m.newWizard(s.ID, s.Cart)
	}
	return s.wizard
}

// ResetWizard discards the current wizard and starts a fresh one in Review.
// Used to begin a new checkout after a confirmed order.
func (s *Session) ResetWizard() *checkout.Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wizard = s.m.newWizard(s.ID, s.Cart)
	return s.wizard
}

func (s *Session) touch() {
	s.mu.Lock()
	s.seen = time.Now()
	s.mu.Unlock()
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}
