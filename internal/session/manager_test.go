package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberroast/brewcart/internal/cartstore"
	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
)

type recordingPlacer struct{}

func (recordingPlacer) Place(context.Context, checkout.Receipt) error { return nil }

func newTestManager(idleTTL time.Duration) (*Manager, *cartstore.Memory) {
	snaps := cartstore.NewMemory()
	factory := func(sessionID string, c *cart.Store) *checkout.Wizard {
		return checkout.NewWizard(sessionID, c, nil,
			checkout.NewSimulatedProcessor(0, 0), recordingPlacer{}, nil)
	}
	return NewManager(snaps, factory, idleTTL, nil), snaps
}

func TestManager_NewIDIsUnique(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	assert.NotEqual(t, m.NewID(), m.NewID())
}

func TestManager_GetReturnsSameLiveSession(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	ctx := context.Background()

	s1 := m.Get(ctx, "sess-1")
	s2 := m.Get(ctx, "sess-1")
	assert.Same(t, s1, s2)

	other := m.Get(ctx, "sess-2")
	assert.NotSame(t, s1, other)
}

func TestManager_GetHydratesFromSnapshots(t *testing.T) {
	m, snaps := newTestManager(time.Hour)
	ctx := context.Background()

	snap := cart.Snapshot{Items: []cart.LineItem{{
		Product:  cart.ProductSnapshot{ID: "latte", Name: "Latte", BasePrice: decimal.RequireFromString("5.00")},
		Quantity: 2,
	}}}
	require.NoError(t, snaps.Save(ctx, "sess-1", snap))

	s := m.Get(ctx, "sess-1")
	assert.Equal(t, 2, s.Cart.TotalItems())
}

func TestManager_ConcurrentFirstTouchSharesOneSession(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	ctx := context.Background()

	const n = 16
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i] = m.Get(ctx, "sess-1")
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestManager_SweepEvictsIdleButKeepsSnapshot(t *testing.T) {
	m, _ := newTestManager(time.Millisecond)
	ctx := context.Background()

	s := m.Get(ctx, "sess-1")
	p := cart.ProductSnapshot{ID: "latte", Name: "Latte", BasePrice: decimal.RequireFromString("5.00")}
	_, err := s.Cart.AddItem(ctx, p, nil, 2)
	require.NoError(t, err)

	m.sweep(time.Now().Add(time.Second))

	// A fresh Get builds a new session, rehydrated from the snapshot store.
	s2 := m.Get(ctx, "sess-1")
	assert.NotSame(t, s, s2)
	assert.Equal(t, 2, s2.Cart.TotalItems())
}

func TestSession_WizardIsLazyAndSticky(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	s := m.Get(context.Background(), "sess-1")

	w1 := s.Wizard()
	w2 := s.Wizard()
	assert.Same(t, w1, w2)
}

func TestSession_ResetWizardStartsFresh(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	ctx := context.Background()
	s := m.Get(ctx, "sess-1")

	p := cart.ProductSnapshot{ID: "latte", Name: "Latte", BasePrice: decimal.RequireFromString("5.00")}
	_, err := s.Cart.AddItem(ctx, p, nil, 1)
	require.NoError(t, err)

	w1 := s.Wizard()
	require.NoError(t, w1.ProceedToDelivery())
	require.Equal(t, checkout.StageDelivery, w1.Stage())

	w2 := s.ResetWizard()
	assert.NotSame(t, w1, w2)
	assert.Equal(t, checkout.StageReview, w2.Stage())
	assert.Same(t, w2, s.Wizard())
}
