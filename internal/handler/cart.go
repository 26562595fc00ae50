package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/emberroast/brewcart/internal/domain/cart"
)

type addItemRequest struct {
	ProductID string
	Quantity  int
	Selection map[string]string // group type -> option ID
}

func decodeAddItem(body []byte) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := d.Str()
			if err != nil {
				return err
			}
			req.ProductID = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return err
			}
			req.Quantity = v
		case "selection":
			if req.Selection == nil {
				req.Selection = make(map[string]string)
			}
			return d.Obj(func(d *jx.Decoder, groupType string) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				req.Selection[groupType] = v
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return addItemRequest{}, errors.Wrap(errMalformedBody, err.Error())
	}
	if req.ProductID == "" {
		return addItemRequest{}, errors.Wrap(errMalformedBody, "productId is required")
	}
	return req, nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	h.writeCart(w, s.Cart)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}
	req, err := decodeAddItem(body)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Resolve option IDs against the catalog so the line item captures the
	// option's name and price delta as of add time.
	sel := make(cart.Selection, len(req.Selection))
	for groupType, optionID := range req.Selection {
		opt, ok := p.FindOption(groupType, optionID)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown customization option "+groupType+"/"+optionID)
			return
		}
		sel[groupType] = cart.SelectedOption{
			ID:         opt.ID,
			Name:       opt.Name,
			PriceDelta: opt.PriceDelta,
		}
	}

	s := h.resolveSession(w, r)
	snap := cart.ProductSnapshot{ID: p.ID, Name: p.Name, BasePrice: p.Price}
	if _, err := s.Cart.AddItem(r.Context(), snap, sel, req.Quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, s.Cart)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, r, errors.Wrap(errMalformedBody, err.Error()))
		return
	}

	quantity, found := 0, false
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		if err != nil {
			return err
		}
		quantity, found = v, true
		return nil
	}); err != nil || !found {
		respondError(w, r, errors.Wrap(errMalformedBody, "quantity is required"))
		return
	}

	s := h.resolveSession(w, r)
	if err := s.Cart.UpdateQuantity(r.Context(), r.PathValue("key"), quantity); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeCart(w, s.Cart)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	s.Cart.RemoveItem(r.Context(), r.PathValue("key"))
	h.writeCart(w, s.Cart)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s := h.resolveSession(w, r)
	s.Cart.Clear(r.Context())
	h.writeCart(w, s.Cart)
}

// writeCart renders the cart view: line items in insertion order plus the
// derived totals, straight from the store.
func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Store) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, li := range c.Items() {
		encodeLineItem(&e, li)
	}
	e.ArrEnd()
	e.FieldStart("totalItems")
	e.Int(c.TotalItems())
	e.FieldStart("totalAmount")
	e.Str(c.TotalAmount().String())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.ObjStart()
	e.FieldStart("key")
	e.Str(li.Key)
	e.FieldStart("productId")
	e.Str(li.Product.ID)
	e.FieldStart("name")
	e.Str(li.Product.Name)
	e.FieldStart("basePrice")
	e.Str(li.Product.BasePrice.String())
	e.FieldStart("selection")
	e.ObjStart()
	groups := make([]string, 0, len(li.Selection))
	for g := range li.Selection {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, groupType := range groups {
		opt := li.Selection[groupType]
		e.FieldStart(groupType)
		e.ObjStart()
		e.FieldStart("id")
		e.Str(opt.ID)
		e.FieldStart("name")
		e.Str(opt.Name)
		e.FieldStart("priceDelta")
		e.Str(opt.PriceDelta.String())
		e.ObjEnd()
	}
	e.ObjEnd()
	e.FieldStart("quantity")
	e.Int(li.Quantity)
	e.FieldStart("totalPrice")
	e.Str(li.TotalPrice.String())
	e.ObjEnd()
}
