package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

const (
	saveCartSQL = `INSERT INTO carts (session_id, snapshot, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (session_id) DO UPDATE SET
		snapshot = EXCLUDED.snapshot,
		updated_at = EXCLUDED.updated_at`

	loadCartSQL = `SELECT snapshot FROM carts WHERE session_id = $1`

	deleteStaleCartsSQL = `DELETE FROM carts WHERE updated_at < $1`
)

var _ cart.SnapshotStore = (*CartStore)(nil)

// CartStore implements cart.SnapshotStore backed by PostgreSQL. The snapshot
// codec's JSON output is stored as-is in a JSONB column; concurrent writers
// to one session are last-write-wins, same as any other snapshot store.
type CartStore struct {
	pool *pgxpool.Pool
	lg   *zap.Logger
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool, lg *zap.Logger) *CartStore {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &CartStore{pool: pool, lg: lg}
}

// Save upserts the session's snapshot.
func (s *CartStore) Save(ctx context.Context, sessionID string, snap cart.Snapshot) error {
	_, err := s.pool.Exec(ctx, saveCartSQL, sessionID, snap.Encode(), time.Now())
	if err != nil {
		return fmt.Errorf("saving cart for session %q: %w", sessionID, err)
	}
	return nil
}

// Load returns the session's snapshot. A row that no longer decodes is
// treated as absent so a corrupt snapshot resets the cart instead of
// blocking the session.
func (s *CartStore) Load(ctx context.Context, sessionID string) (cart.Snapshot, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, loadCartSQL, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Snapshot{}, false, nil
		}
		return cart.Snapshot{}, false, fmt.Errorf("loading cart for session %q: %w", sessionID, err)
	}

	snap, err := cart.DecodeSnapshot(data)
	if err != nil {
		s.lg.Warn("stored cart snapshot rejected",
			zap.String("session_id", sessionID), zap.Error(err))
		return cart.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// DeleteStale removes carts not updated since the cutoff. Run periodically
// so abandoned guest carts do not accumulate forever.
func (s *CartStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteStaleCartsSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale carts: %w", err)
	}
	return tag.RowsAffected(), nil
}
