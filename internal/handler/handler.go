// Package handler exposes the storefront HTTP API: catalog, per-session cart,
// checkout wizard, and the authenticated admin surface.
package handler

import (
	"net/http"

	"github.com/emberroast/brewcart/internal/domain/auth"
	"github.com/emberroast/brewcart/internal/domain/order"
	"github.com/emberroast/brewcart/internal/domain/product"
	"github.com/emberroast/brewcart/internal/session"
)

// SessionHeader carries the opaque session ID. The server issues one when the
// client does not present it; responses always echo the effective ID so the
// client can persist it.
const SessionHeader = "X-Session-ID"

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	orders       order.Repository
	sessions     *session.Manager
	apikeys      auth.Repository
	pepper       []byte
	imageBaseURL string
}

// New creates the API handler. pepper is the HMAC secret for API key hashing;
// imageBaseURL is prefixed onto relative product image paths.
func New(
	products product.Repository,
	orders order.Repository,
	sessions *session.Manager,
	apikeys auth.Repository,
	pepper []byte,
	imageBaseURL string,
) *Handler {
	return &Handler{
		products:     products,
		orders:       orders,
		sessions:     sessions,
		apikeys:      apikeys,
		pepper:       pepper,
		imageBaseURL: imageBaseURL,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PATCH /api/cart/items/{key}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{key}", h.removeCartItem)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)

	mux.HandleFunc("GET /api/checkout", h.getCheckout)
	mux.HandleFunc("POST /api/checkout/proceed", h.proceedCheckout)
	mux.HandleFunc("POST /api/checkout/delivery", h.submitDelivery)
	mux.HandleFunc("POST /api/checkout/payment", h.submitPayment)
	mux.HandleFunc("POST /api/checkout/back", h.backCheckout)
	mux.HandleFunc("POST /api/checkout/retry", h.retryCheckout)
	mux.HandleFunc("POST /api/checkout/reset", h.resetCheckout)

	mux.Handle("GET /api/admin/orders", h.requireAPIKey(auth.ScopeOrdersRead, http.HandlerFunc(h.listOrders)))

	return mux
}

// resolveSession returns the live session for the request, issuing a fresh ID
// when the header is absent. The effective ID is always echoed back.
func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) *session.Session {
	id := r.Header.Get(SessionHeader)
	if id == "" || len(id) > 128 {
		id = h.sessions.NewID()
	}
	w.Header().Set(SessionHeader, id)
	return h.sessions.Get(r.Context(), id)
}
