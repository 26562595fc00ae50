// Package coupon implements promo codes applied at checkout. Discounts never
// touch cart totals; the cart's derived amounts stay coupon-free and the
// discount is applied once, when the order is placed.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest waives the cheapest single unit in the cart.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidCoupon is returned when a promo code is not found or the
	// cart does not satisfy the code's minimum item requirement.
	ErrInvalidCoupon = errors.New("invalid promo code")
	// ErrCouponExpired is returned when a code is outside its valid time window.
	ErrCouponExpired = errors.New("promo code expired")
	// ErrCouponUsageLimitReached is returned when a code has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule defines a promo code's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Discount holds the computed discount amount and a human-readable
// description shown on the order confirmation.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and mutation of promo rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
