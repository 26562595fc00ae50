package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-faster/jx"

	"github.com/emberroast/brewcart/internal/domain/order"
)

const (
	defaultOrderLimit = 50
	maxOrderLimit     = 500
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxOrderLimit {
			n = maxOrderLimit
		}
		limit = n
	}

	orders, err := h.orders.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("sessionId")
	e.Str(o.SessionID)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("productName")
		e.Str(it.ProductName)
		e.FieldStart("selection")
		e.ObjStart()
		groups := make([]string, 0, len(it.Selection))
		for g := range it.Selection {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		for _, g := range groups {
			e.FieldStart(g)
			e.Str(it.Selection[g].Name)
		}
		e.ObjEnd()
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unitPrice")
		e.Str(it.UnitPrice.String())
		e.FieldStart("lineTotal")
		e.Str(it.LineTotal.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Str(o.Subtotal.String())
	e.FieldStart("discount")
	e.Str(o.Discount.String())
	e.FieldStart("total")
	e.Str(o.Total.String())
	if o.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(o.CouponCode)
	}
	e.FieldStart("deliveryType")
	e.Str(string(o.DeliveryType))
	e.FieldStart("contact")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Contact.Name)
	e.FieldStart("email")
	e.Str(o.Contact.Email)
	e.FieldStart("phone")
	e.Str(o.Contact.Phone)
	e.ObjEnd()
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
