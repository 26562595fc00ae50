package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. The cart never
// holds a live reference to a Product; it captures a snapshot at add time so
// later catalog price changes do not alter items already in the cart.
type Product struct {
	ID             string
	Name           string
	Description    string
	Price          decimal.Decimal
	Category       string
	Image          Image
	Customizations []OptionGroup
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// OptionGroup is a named customization axis for a product, e.g. "size" or
// "milk". At most one option per group may be applied to a line item.
type OptionGroup struct {
	Type    string
	Options []Option
}

// Option is a single choice within an OptionGroup. PriceDelta adjusts the
// product's unit price; it is typically non-negative but may be zero.
type Option struct {
	ID         string
	Name       string
	PriceDelta decimal.Decimal
}

// FindOption looks up an option by group type and option ID. It returns false
// when the product does not offer that group or option.
func (p Product) FindOption(groupType, optionID string) (Option, bool) {
	for _, g := range p.Customizations {
		if g.Type != groupType {
			continue
		}
		for _, o := range g.Options {
			if o.ID == optionID {
				return o, true
			}
		}
	}
	return Option{}, false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
