package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SelectedOption is a customization choice captured on a line item. Like the
// product snapshot, it is a copy of the catalog option at add time.
type SelectedOption struct {
	ID         string
	Name       string
	PriceDelta decimal.Decimal
}

// Selection maps a customization group type (e.g. "size", "milk") to the
// chosen option. Keys are unique per type; iteration order is irrelevant,
// identity uses the canonical key (see LineKey).
type Selection map[string]SelectedOption

// Clone returns an independent copy of the selection.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	c := make(Selection, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// ProductSnapshot is the slice of catalog data a line item captures at add
// time. Later catalog changes never retroactively alter items in the cart.
type ProductSnapshot struct {
	ID        string
	Name      string
	BasePrice decimal.Decimal
}

// LineItem is one entry in the cart: a product snapshot with a specific
// customization selection and a quantity.
//
// TotalPrice is derived: (BasePrice + sum of selection deltas) * Quantity.
// It is cached for display but recomputed on every mutation; it is never
// independently settable.
type LineItem struct {
	Key        string
	Product    ProductSnapshot
	Selection  Selection
	Quantity   int
	TotalPrice decimal.Decimal
}

// clone returns a deep copy so callers cannot reach into store internals.
func (li LineItem) clone() LineItem {
	c := li
	c.Selection = li.Selection.Clone()
	return c
}

// MalformedSelectionError indicates a selection with an empty group type or
// option ID. Callers should treat this as a programming error, not a
// user-facing condition.
type MalformedSelectionError struct {
	GroupType string
}

func (e *MalformedSelectionError) Error() string {
	return fmt.Sprintf("malformed customization selection for group %q", e.GroupType)
}

// cart is the aggregate: line items in insertion order plus incrementally
// maintained totals. All access goes through Store, which holds the lock.
type cart struct {
	items       []LineItem
	index       map[string]int // line key -> position in items
	totalItems  int
	totalAmount decimal.Decimal
}

func newCart() *cart {
	return &cart{
		index:       make(map[string]int),
		totalAmount: decimal.Zero,
	}
}

// upsert merges quantity into an existing line with the same key, or appends
// a new line at the end. The line total and aggregates are recomputed from
// the pricing resolver, never adjusted ad hoc.
func (c *cart) upsert(p ProductSnapshot, sel Selection, quantity int) (LineItem, error) {
	key := LineKey(p.ID, sel)

	if pos, ok := c.index[key]; ok {
		li := c.items[pos]
		return c.setQuantity(pos, li.Quantity+quantity)
	}

	total, err := LineTotal(p.BasePrice, sel, quantity)
	if err != nil {
		return LineItem{}, err
	}

	li := LineItem{
		Key:        key,
		Product:    p,
		Selection:  sel.Clone(),
		Quantity:   quantity,
		TotalPrice: total,
	}
	c.items = append(c.items, li)
	c.index[key] = len(c.items) - 1
	c.totalItems += quantity
	c.totalAmount = c.totalAmount.Add(total)
	return li, nil
}

// setQuantity sets the quantity of the line at pos. Driving quantity to zero
// or below removes the line entirely; a zero-quantity entry is never left
// behind.
func (c *cart) setQuantity(pos, quantity int) (LineItem, error) {
	li := c.items[pos]
	if quantity <= 0 {
		c.removeAt(pos)
		li.Quantity = 0
		li.TotalPrice = decimal.Zero
		return li, nil
	}

	total, err := LineTotal(li.Product.BasePrice, li.Selection, quantity)
	if err != nil {
		return LineItem{}, err
	}

	c.totalItems += quantity - li.Quantity
	c.totalAmount = c.totalAmount.Sub(li.TotalPrice).Add(total)
	li.Quantity = quantity
	li.TotalPrice = total
	c.items[pos] = li
	return li, nil
}

// removeAt removes the line at pos, preserving the order of the rest.
func (c *cart) removeAt(pos int) {
	li := c.items[pos]
	c.totalItems -= li.Quantity
	c.totalAmount = c.totalAmount.Sub(li.TotalPrice)

	c.items = append(c.items[:pos], c.items[pos+1:]...)
	delete(c.index, li.Key)
	for i := pos; i < len(c.items); i++ {
		c.index[c.items[i].Key] = i
	}
}

func (c *cart) clear() {
	c.items = nil
	c.index = make(map[string]int)
	c.totalItems = 0
	c.totalAmount = decimal.Zero
}

// validateSelection rejects selections with empty group types or option IDs
// before they can corrupt line identity.
func validateSelection(sel Selection) error {
	for groupType, opt := range sel {
		if groupType == "" || opt.ID == "" {
			return &MalformedSelectionError{GroupType: groupType}
		}
	}
	return nil
}
