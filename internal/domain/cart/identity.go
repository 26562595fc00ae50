package cart

import (
	"sort"
	"strings"
)

// LineKey builds the composite identity of a line item: the product ID plus a
// canonical serialization of the customization selection. Two additions with
// the same product and the same selection produce the same key and therefore
// merge into one line; a different selection for the same product produces a
// distinct key.
//
// The serialization sorts group types so the key is insensitive to map
// iteration order. It identifies options by ID only; display names and price
// deltas are deliberately excluded so the identity is decoupled from the
// display-oriented shape of the line item.
func LineKey(productID string, sel Selection) string {
	if len(sel) == 0 {
		return productID
	}

	groups := make([]string, 0, len(sel))
	for groupType := range sel {
		groups = append(groups, groupType)
	}
	sort.Strings(groups)

	var b strings.Builder
	b.WriteString(productID)
	for _, g := range groups {
		b.WriteByte('|')
		b.WriteString(g)
		b.WriteByte('=')
		b.WriteString(sel[g].ID)
	}
	return b.String()
}
