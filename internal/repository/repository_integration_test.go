//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/emberroast/brewcart/internal/domain/auth"
	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
	"github.com/emberroast/brewcart/internal/domain/coupon"
	"github.com/emberroast/brewcart/internal/domain/order"
	"github.com/emberroast/brewcart/internal/domain/product"
	"github.com/emberroast/brewcart/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

func startPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := repository.NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, repository.RunMigrations(ctx, pool))
	return pool
}

func sampleProduct(id string) product.Product {
	return product.Product{
		ID:          id,
		Name:        "Ethiopian Single Origin",
		Description: "Floral, citrus-forward beans",
		Price:       decimal.RequireFromString("24.99"),
		Category:    "beans",
		Image:       product.Image{Thumbnail: "t.jpg", Mobile: "m.jpg", Tablet: "tb.jpg", Desktop: "d.jpg"},
		Customizations: []product.OptionGroup{{
			Type: "size",
			Options: []product.Option{
				{ID: "regular", Name: "Regular", PriceDelta: decimal.Zero},
				{ID: "large", Name: "Large", PriceDelta: decimal.RequireFromString("2.00")},
			},
		}},
	}
}

func TestProductRepository(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(ctx, t)
	repo := repository.NewProductRepository(pool)

	_, err := repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, sampleProduct("eth-1")))
	require.NoError(t, repo.Upsert(ctx, sampleProduct("eth-2")))

	got, err := repo.GetByID(ctx, "eth-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("24.99").Equal(got.Price))
	require.Len(t, got.Customizations, 1)
	opt, ok := got.FindOption("size", "large")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("2.00").Equal(opt.PriceDelta))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := repo.GetByIDs(ctx, []string{"eth-2", "missing"})
	require.NoError(t, err)
	assert.Len(t, some, 1)

	// Upsert replaces.
	updated := sampleProduct("eth-1")
	updated.Price = decimal.RequireFromString("27.50")
	require.NoError(t, repo.Upsert(ctx, updated))
	got, err = repo.GetByID(ctx, "eth-1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("27.50").Equal(got.Price))
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(ctx, t)
	repo := repository.NewCouponRepository(pool)

	_, err := repo.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	until := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, coupon.Rule{
		Code:         "HAPPYHOURS",
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(18),
		MinItems:     2,
		Description:  "18% off",
		ValidUntil:   &until,
		MaxUses:      10,
	}))

	rule, err := repo.FindByCode(ctx, "HAPPYHOURS")
	require.NoError(t, err)
	assert.Equal(t, coupon.DiscountPercentage, rule.DiscountType)
	assert.Equal(t, 2, rule.MinItems)
	assert.Equal(t, 0, rule.Uses)

	require.NoError(t, repo.IncrementUses(ctx, "HAPPYHOURS"))
	rule, err = repo.FindByCode(ctx, "HAPPYHOURS")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(ctx, t)
	repo := repository.NewOrderRepository(pool)

	o := &order.Order{
		ID:        "ord-1",
		SessionID: "sess-1",
		Items: []order.Item{{
			ProductID:   "eth-1",
			ProductName: "Ethiopian Single Origin",
			Selection: cart.Selection{
				"size": {ID: "large", Name: "Large", PriceDelta: decimal.RequireFromString("2.00")},
			},
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("26.99"),
			LineTotal: decimal.RequireFromString("53.98"),
		}},
		Subtotal:     decimal.RequireFromString("53.98"),
		Discount:     decimal.Zero,
		Total:        decimal.RequireFromString("53.98"),
		DeliveryType: checkout.DeliveryPickup,
		Contact: checkout.ContactInfo{
			Name:  "Ada Brew",
			Email: "ada@example.com",
			Phone: "555-0100",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, o))

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	got := recent[0]
	assert.Equal(t, "ord-1", got.ID)
	assert.Equal(t, "sess-1", got.SessionID)
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.RequireFromString("53.98").Equal(got.Items[0].LineTotal))
	assert.Equal(t, "large", got.Items[0].Selection["size"].ID)
	assert.Equal(t, checkout.DeliveryPickup, got.DeliveryType)
	assert.Equal(t, "ada@example.com", got.Contact.Email)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(ctx, t)
	repo := repository.NewAPIKeyRepository(pool)

	_, err := repo.FindByHash(ctx, "deadbeef")
	require.ErrorIs(t, err, repository.ErrAPIKeyNotFound)

	require.NoError(t, repo.Insert(ctx, auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: "deadbeef",
		Name:    "Admin key",
		Scopes:  []string{auth.ScopeOrdersRead},
	}))

	info, err := repo.FindByHash(ctx, "deadbeef")
	require.NoError(t, err)
	assert.True(t, info.HasScope(auth.ScopeOrdersRead))
	assert.False(t, info.HasScope("other:scope"))
}

func TestCartStore(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(ctx, t)
	store := repository.NewCartStore(pool, nil)

	_, ok, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, ok)

	snap := cart.Snapshot{Items: []cart.LineItem{{
		Product: cart.ProductSnapshot{ID: "latte", Name: "Latte", BasePrice: decimal.RequireFromString("5.00")},
		Selection: cart.Selection{
			"size": {ID: "large", Name: "Large", PriceDelta: decimal.RequireFromString("1.00")},
		},
		Quantity: 2,
	}}}
	require.NoError(t, store.Save(ctx, "sess-1", snap))

	got, ok, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "latte|size=large", got.Items[0].Key)
	assert.True(t, decimal.RequireFromString("12.00").Equal(got.Items[0].TotalPrice))

	// Save replaces the previous snapshot for the session.
	require.NoError(t, store.Save(ctx, "sess-1", cart.Snapshot{}))
	got, ok, err = store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.Items)

	n, err := store.DeleteStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
