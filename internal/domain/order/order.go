package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
)

// Order is the receipt emitted when a checkout reaches confirmation. It is
// the integration point with any downstream order system: everything a
// fulfilment service needs is captured here.
type Order struct {
	ID           string
	SessionID    string
	Items        []Item
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	CouponCode   string
	DeliveryType checkout.DeliveryMethod
	Contact      checkout.ContactInfo
	CreatedAt    time.Time
}

// Item is one order line, denormalized from the cart line item so the
// receipt stays stable even if the catalog changes afterwards.
type Item struct {
	ProductID   string
	ProductName string
	Selection   cart.Selection
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// ItemsFromCart converts cart line items to order lines.
func ItemsFromCart(lines []cart.LineItem) ([]Item, error) {
	items := make([]Item, len(lines))
	for i, li := range lines {
		unit, err := cart.UnitPrice(li.Product.BasePrice, li.Selection)
		if err != nil {
			return nil, err
		}
		items[i] = Item{
			ProductID:   li.Product.ID,
			ProductName: li.Product.Name,
			Selection:   li.Selection.Clone(),
			Quantity:    li.Quantity,
			UnitPrice:   unit,
			LineTotal:   li.TotalPrice,
		}
	}
	return items, nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	ListRecent(ctx context.Context, limit int) ([]Order, error)
}
