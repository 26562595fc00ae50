package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidQuantity is returned when an add requests a non-positive
// quantity. Adds are rejected rather than clamped to 1: a non-positive add is
// stale UI state, and clamping would silently buy the customer an item.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// SnapshotStore persists cart snapshots between sessions. Load must degrade
// to (empty, false, nil) when the stored value is corrupt or unparseable;
// a broken snapshot never blocks startup.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID string, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, bool, error)
}

// Subscriber is notified with a fresh snapshot after every mutation.
type Subscriber func(Snapshot)

// Store is the single source of truth for one session's shopping cart.
//
// All mutations are synchronous: when a call returns, reads reflect it and
// the write-through persistence save has been issued. Mutations are atomic
// under an internal mutex; concurrent requests for the same session cannot
// interleave. Persistence write failures are logged and swallowed -- losing a
// snapshot write costs at most a reload's worth of cart state, and there is
// nothing a shopper could do about it anyway.
type Store struct {
	id        string
	snapshots SnapshotStore
	lg        *zap.Logger

	mu   sync.Mutex
	c    *cart
	subs []Subscriber
}

// NewStore creates an empty Store for the given session, persisting through
// snapshots. A nil logger disables logging.
func NewStore(sessionID string, snapshots SnapshotStore, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{
		id:        sessionID,
		snapshots: snapshots,
		lg:        lg,
		c:         newCart(),
	}
}

// ID returns the session ID this store belongs to.
func (s *Store) ID() string { return s.id }

// Hydrate replaces the cart contents with the last persisted snapshot, if
// any. Corrupt or unreadable snapshots degrade to an empty cart; Hydrate
// never fails the session.
func (s *Store) Hydrate(ctx context.Context) {
	snap, ok, err := s.snapshots.Load(ctx, s.id)
	if err != nil {
		s.lg.Warn("cart snapshot load failed, starting empty",
			zap.String("session_id", s.id), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := newCart()
	for _, li := range snap.Items {
		if _, err := c.upsert(li.Product, li.Selection, li.Quantity); err != nil {
			s.lg.Warn("cart snapshot rejected, starting empty",
				zap.String("session_id", s.id), zap.Error(err))
			return
		}
	}
	s.c = c
}

// Subscribe registers fn to be called with a snapshot after every mutation.
// Notifications run synchronously on the mutating goroutine, outside the
// store lock.
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// AddItem adds quantity units of the product with the given customization
// selection. An existing line with the same composite identity accumulates
// quantity; otherwise a new line is appended. Non-positive quantities are
// rejected with ErrInvalidQuantity.
func (s *Store) AddItem(ctx context.Context, p ProductSnapshot, sel Selection, quantity int) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, ErrInvalidQuantity
	}
	if err := validateSelection(sel); err != nil {
		return LineItem{}, err
	}

	s.mu.Lock()
	li, err := s.c.upsert(p, sel, quantity)
	if err != nil {
		s.mu.Unlock()
		return LineItem{}, err
	}
	snap, subs := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap, subs)
	return li.clone(), nil
}

// UpdateQuantity sets the quantity of an existing line item. A quantity of
// zero or below removes the line; this is the removal path the decrement
// button uses. An unknown key is a no-op, keeping the operation idempotent
// against stale UI state from rapid double-clicks.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity int) error {
	s.mu.Lock()
	pos, ok := s.c.index[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, err := s.c.setQuantity(pos, quantity); err != nil {
		s.mu.Unlock()
		return err
	}
	snap, subs := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap, subs)
	return nil
}

// RemoveItem removes the line item with the given key if present; no-op
// otherwise.
func (s *Store) RemoveItem(ctx context.Context, key string) {
	s.mu.Lock()
	pos, ok := s.c.index[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.c.removeAt(pos)
	snap, subs := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap, subs)
}

// Clear empties the cart and persists the empty state. Called after checkout
// confirmation and on explicit user action.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.c.clear()
	snap, subs := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify(snap, subs)
}

// Items returns the line items in insertion order. The returned slice and its
// selections are copies; mutating them does not affect the store.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// TotalItems returns the sum of quantities across all line items.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.totalItems
}

// TotalAmount returns the sum of line totals across all line items.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.totalAmount
}

// Snapshot returns a serializable copy of the current cart state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Items: s.itemsLocked()}
}

func (s *Store) itemsLocked() []LineItem {
	items := make([]LineItem, len(s.c.items))
	for i, li := range s.c.items {
		items[i] = li.clone()
	}
	return items
}

// persistLocked writes the current snapshot through to the snapshot store and
// returns the snapshot plus the subscriber list for post-unlock notification.
func (s *Store) persistLocked(ctx context.Context) (Snapshot, []Subscriber) {
	snap := Snapshot{Items: s.itemsLocked()}
	if err := s.snapshots.Save(ctx, s.id, snap); err != nil {
		s.lg.Warn("cart snapshot save failed",
			zap.String("session_id", s.id), zap.Error(err))
	}
	return snap, s.subs
}

func (s *Store) notify(snap Snapshot, subs []Subscriber) {
	for _, fn := range subs {
		fn(snap)
	}
}
