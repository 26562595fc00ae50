package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	snap := Snapshot{Items: []LineItem{
		{
			Key:     "ethiopian-single-origin",
			Product:    ProductSnapshot{ID: "ethiopian-single-origin", Name: "Ethiopian Single Origin", BasePrice: dec("24.99")},
			Quantity:   1,
			TotalPrice: dec("24.99"),
		},
		{
			Key:     "flat-white|milk=oat|size=large",
			Product: ProductSnapshot{ID: "flat-white", Name: "Flat White", BasePrice: dec("4.50")},
			Selection: Selection{
				"size": {ID: "large", Name: "Large", PriceDelta: dec("1.00")},
				"milk": {ID: "oat", Name: "Oat milk", PriceDelta: dec("0.50")},
			},
			Quantity:   3,
			TotalPrice: dec("18.00"),
		},
	}}

	decoded, err := DecodeSnapshot(snap.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Items, 2)

	for i, want := range snap.Items {
		got := decoded.Items[i]
		assert.Equal(t, want.Key, got.Key)
		assert.Equal(t, want.Product.ID, got.Product.ID)
		assert.Equal(t, want.Product.Name, got.Product.Name)
		assert.True(t, want.Product.BasePrice.Equal(got.Product.BasePrice))
		assert.Equal(t, want.Quantity, got.Quantity)
		assert.True(t, want.TotalPrice.Equal(got.TotalPrice),
			"item %d: expected total %s, got %s", i, want.TotalPrice, got.TotalPrice)
		assert.Equal(t, len(want.Selection), len(got.Selection))
	}
}

func TestSnapshot_EqualCartsEncodeIdentically(t *testing.T) {
	mk := func() Snapshot {
		return Snapshot{Items: []LineItem{{
			Product: ProductSnapshot{ID: "latte", Name: "Latte", BasePrice: dec("5.00")},
			Selection: Selection{
				"size": {ID: "large", Name: "Large", PriceDelta: dec("1.00")},
				"milk": {ID: "oat", Name: "Oat milk", PriceDelta: dec("0.50")},
			},
			Quantity: 2,
		}}}
	}
	assert.Equal(t, mk().Encode(), mk().Encode())
}

func TestDecodeSnapshot_Rejects(t *testing.T) {
	valid := Snapshot{Items: []LineItem{{
		Product:  ProductSnapshot{ID: "latte", BasePrice: dec("5.00")},
		Quantity: 1,
	}}}.Encode()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("not json at all")},
		{name: "truncated", data: valid[:len(valid)/2]},
		{name: "unknown version", data: []byte(`{"version":99,"items":[]}`)},
		{name: "missing version", data: []byte(`{"items":[]}`)},
		{
			name: "non-positive quantity",
			data: []byte(`{"version":1,"items":[{"product":{"id":"p","name":"P","base_price":"5"},"selection":[],"quantity":0}]}`),
		},
		{
			name: "negative resolved price",
			data: []byte(`{"version":1,"items":[{"product":{"id":"p","name":"P","base_price":"1"},"selection":[{"type":"size","id":"s","name":"S","price_delta":"-2"}],"quantity":1}]}`),
		},
		{
			name: "selection missing option id",
			data: []byte(`{"version":1,"items":[{"product":{"id":"p","name":"P","base_price":"1"},"selection":[{"type":"size","id":"","name":"S","price_delta":"0"}],"quantity":1}]}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeSnapshot_RebuildsDerivedState(t *testing.T) {
	// Keys and totals are not on the wire; the decoder must rebuild them.
	data := []byte(`{"version":1,"items":[{"product":{"id":"latte","name":"Latte","base_price":"5.00"},"selection":[{"type":"size","id":"large","name":"Large","price_delta":"1.00"}],"quantity":2}]}`)

	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	li := snap.Items[0]
	assert.Equal(t, "latte|size=large", li.Key)
	assert.True(t, dec("12.00").Equal(li.TotalPrice), "expected 12.00, got %s", li.TotalPrice)
}
