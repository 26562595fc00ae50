package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/emberroast/brewcart/internal/domain/checkout"
)

var _ checkout.Placer = (*CheckoutPlacer)(nil)

// CheckoutPlacer adapts an order Repository to the checkout wizard's Placer
// interface, converting the payment receipt to a persisted Order.
type CheckoutPlacer struct {
	repo Repository
}

// NewCheckoutPlacer creates a Placer writing through the given repository.
func NewCheckoutPlacer(repo Repository) *CheckoutPlacer {
	return &CheckoutPlacer{repo: repo}
}

// Place converts the receipt and persists it.
func (p *CheckoutPlacer) Place(ctx context.Context, r checkout.Receipt) error {
	items, err := ItemsFromCart(r.Items)
	if err != nil {
		return errors.Wrap(err, "convert cart items")
	}

	o := &Order{
		ID:           r.OrderID,
		SessionID:    r.SessionID,
		Items:        items,
		Subtotal:     r.Subtotal,
		Discount:     r.Discount,
		Total:        r.Total,
		CouponCode:   r.CouponCode,
		DeliveryType: r.Delivery.Method,
		Contact:      r.Delivery.Contact,
		CreatedAt:    r.PlacedAt,
	}
	if err := p.repo.Create(ctx, o); err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}
