package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberroast/brewcart/internal/domain/coupon"
)

const (
	findCouponSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses
	FROM coupons WHERE code = $1`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE code = $1`

	upsertCouponSQL = `INSERT INTO coupons
		(code, discount_type, value, min_items, description, valid_from, valid_until, max_uses)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (code) DO UPDATE SET
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		min_items = EXCLUDED.min_items,
		description = EXCLUDED.description,
		valid_from = EXCLUDED.valid_from,
		valid_until = EXCLUDED.valid_until,
		max_uses = EXCLUDED.max_uses`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode returns the promo rule for the given code, or ErrInvalidCoupon
// when it does not exist.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code: %w", err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (coupon.Rule, error) {
		var (
			ru           coupon.Rule
			discountType string
		)
		err := row.Scan(&ru.Code, &discountType, &ru.Value, &ru.MinItems, &ru.Description,
			&ru.ValidFrom, &ru.ValidUntil, &ru.MaxUses, &ru.Uses)
		ru.DiscountType = coupon.DiscountType(discountType)
		return ru, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding promo code: %w", err)
	}
	return &rule, nil
}

// IncrementUses bumps the usage counter for a redeemed code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, incrementCouponUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing uses for %q: %w", code, err)
	}
	return nil
}

// Upsert inserts or replaces a promo rule. Used by the seeder and the bulk
// ingest command.
func (r *CouponRepository) Upsert(ctx context.Context, ru coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		ru.Code, string(ru.DiscountType), ru.Value, ru.MinItems, ru.Description,
		ru.ValidFrom, ru.ValidUntil, ru.MaxUses,
	)
	if err != nil {
		return fmt.Errorf("upserting promo code %q: %w", ru.Code, err)
	}
	return nil
}
