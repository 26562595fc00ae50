package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNegativeUnitPrice is returned when a base price plus the selected
// customization deltas resolves below zero. Well-formed catalog data never
// produces this; it is surfaced rather than clamped so a bad catalog row is
// caught instead of silently masked.
var ErrNegativeUnitPrice = errors.New("resolved unit price is negative")

// UnitPrice resolves the per-unit price of a product with the given
// customization selection: base price plus the sum of all selected option
// deltas. Pure and deterministic; no I/O.
func UnitPrice(base decimal.Decimal, sel Selection) (decimal.Decimal, error) {
	unit := base
	for _, opt := range sel {
		unit = unit.Add(opt.PriceDelta)
	}
	if unit.IsNegative() {
		return decimal.Zero, ErrNegativeUnitPrice
	}
	return unit, nil
}

// LineTotal resolves the total price of a line: unit price times quantity.
func LineTotal(base decimal.Decimal, sel Selection, quantity int) (decimal.Decimal, error) {
	unit, err := UnitPrice(base, sel)
	if err != nil {
		return decimal.Zero, err
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))), nil
}
