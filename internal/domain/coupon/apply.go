package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount for the given rule against the cart's line
// items. Unit prices include customization deltas: a large oat-milk latte
// counts at its customized price, not the base catalog price. It returns
// ErrInvalidCoupon when the cart does not satisfy the rule's minimum item
// count.
func Apply(rule *Rule, items []cart.LineItem) (Discount, error) {
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}

	switch rule.DiscountType {
	case DiscountPercentage:
		amount := subtotal(items).Mul(rule.Value).Div(hundred)
		return discount(rule, amount), nil
	case DiscountFixed:
		amount := decimal.Min(rule.Value, subtotal(items))
		return discount(rule, amount), nil
	case DiscountFreeLowest:
		return discount(rule, lowestUnitPrice(items)), nil
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}
}

func discount(rule *Rule, amount decimal.Decimal) Discount {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Discount{
		Amount:      amount.Round(2),
		Description: rule.Description,
	}
}

// subtotal sums the derived line totals, which are already unit price times
// quantity.
func subtotal(items []cart.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.TotalPrice)
	}
	return sum
}

func totalQuantity(items []cart.LineItem) int {
	total := 0
	for _, li := range items {
		total += li.Quantity
	}
	return total
}

// lowestUnitPrice returns the cheapest customized unit price in the cart, or
// zero for an empty cart. Line items in the cart always carry quantity >= 1.
func lowestUnitPrice(items []cart.LineItem) decimal.Decimal {
	lowest := decimal.Zero
	for i, li := range items {
		unit := li.TotalPrice.Div(decimal.NewFromInt(int64(li.Quantity)))
		if i == 0 || unit.LessThan(lowest) {
			lowest = unit
		}
	}
	return lowest
}
