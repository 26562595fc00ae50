package cart

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// snapshotVersion is bumped when the wire shape changes incompatibly.
// Decoders reject unknown versions, which callers degrade to an empty cart.
const snapshotVersion = 1

// Snapshot is a serializable copy of a cart's line items in insertion order.
// Persisting and reloading a snapshot reconstructs an equivalent cart: same
// items, same quantities, same order.
type Snapshot struct {
	Items []LineItem
}

// Encode serializes the snapshot to JSON. Selections are written sorted by
// group type so equal carts produce identical bytes. Line totals are not
// written: they are derived state, recomputed on load.
func (s Snapshot) Encode() []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("version")
	e.Int(snapshotVersion)
	e.FieldStart("items")
	e.ArrStart()
	for _, li := range s.Items {
		encodeLineItem(&e, li)
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func encodeLineItem(e *jx.Encoder, li LineItem) {
	e.ObjStart()
	e.FieldStart("product")
	e.ObjStart()
	e.FieldStart("id")
	e.Str(li.Product.ID)
	e.FieldStart("name")
	e.Str(li.Product.Name)
	e.FieldStart("base_price")
	e.Str(li.Product.BasePrice.String())
	e.ObjEnd()

	e.FieldStart("selection")
	e.ArrStart()
	groups := make([]string, 0, len(li.Selection))
	for g := range li.Selection {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		opt := li.Selection[g]
		e.ObjStart()
		e.FieldStart("type")
		e.Str(g)
		e.FieldStart("id")
		e.Str(opt.ID)
		e.FieldStart("name")
		e.Str(opt.Name)
		e.FieldStart("price_delta")
		e.Str(opt.PriceDelta.String())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("quantity")
	e.Int(li.Quantity)
	e.ObjEnd()
}

// DecodeSnapshot parses snapshot bytes produced by Encode. It returns an
// error for malformed input, unknown versions, or invariant violations
// (non-positive quantity, negative resolved unit price); callers treat any
// error as "start with an empty cart". Keys and line totals are rebuilt from
// the decoded data, never trusted from the wire.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var (
		snap    Snapshot
		version int
	)

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			version = v
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				li, err := decodeLineItem(d)
				if err != nil {
					return err
				}
				snap.Items = append(snap.Items, li)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot")
	}

	if version != snapshotVersion {
		return Snapshot{}, errors.Errorf("unsupported snapshot version %d", version)
	}

	for i := range snap.Items {
		li := &snap.Items[i]
		if li.Quantity <= 0 {
			return Snapshot{}, errors.Errorf("item %d: non-positive quantity %d", i, li.Quantity)
		}
		total, err := LineTotal(li.Product.BasePrice, li.Selection, li.Quantity)
		if err != nil {
			return Snapshot{}, errors.Wrapf(err, "item %d", i)
		}
		li.Key = LineKey(li.Product.ID, li.Selection)
		li.TotalPrice = total
	}
	return snap, nil
}

func decodeLineItem(d *jx.Decoder) (LineItem, error) {
	var li LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "id":
					v, err := d.Str()
					li.Product.ID = v
					return err
				case "name":
					v, err := d.Str()
					li.Product.Name = v
					return err
				case "base_price":
					return decodeDecimal(d, &li.Product.BasePrice)
				default:
					return d.Skip()
				}
			})
		case "selection":
			li.Selection = make(Selection)
			return d.Arr(func(d *jx.Decoder) error {
				var (
					groupType string
					opt       SelectedOption
				)
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "type":
						v, err := d.Str()
						groupType = v
						return err
					case "id":
						v, err := d.Str()
						opt.ID = v
						return err
					case "name":
						v, err := d.Str()
						opt.Name = v
						return err
					case "price_delta":
						return decodeDecimal(d, &opt.PriceDelta)
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				if groupType == "" || opt.ID == "" {
					return &MalformedSelectionError{GroupType: groupType}
				}
				li.Selection[groupType] = opt
				return nil
			})
		case "quantity":
			v, err := d.Int()
			li.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return li, err
}

func decodeDecimal(d *jx.Decoder, out *decimal.Decimal) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "parse decimal %q", s)
	}
	*out = v
	return nil
}
