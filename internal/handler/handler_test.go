package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberroast/brewcart/internal/cartstore"
	"github.com/emberroast/brewcart/internal/domain/auth"
	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
	"github.com/emberroast/brewcart/internal/domain/order"
	"github.com/emberroast/brewcart/internal/domain/product"
	"github.com/emberroast/brewcart/internal/session"
)

const testPepper = "test-pepper"

type stubProductRepo struct {
	products map[string]product.Product
}

func (s *stubProductRepo) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *stubProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubOrderRepo struct {
	mu     sync.Mutex
	orders []order.Order
}

func (s *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, *o)
	return nil
}

func (s *stubOrderRepo) ListRecent(_ context.Context, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.orders) {
		limit = len(s.orders)
	}
	return s.orders[:limit], nil
}

var errKeyNotFound = errors.New("api key not found")

type stubAPIKeyRepo struct {
	keys map[string]*auth.APIKeyInfo
}

func (s *stubAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := s.keys[hash]
	if !ok {
		return nil, errKeyNotFound
	}
	return info, nil
}

type fixture struct {
	server *httptest.Server
	orders *stubOrderRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &stubProductRepo{products: map[string]product.Product{
		"ethiopian-single-origin": {
			ID:    "ethiopian-single-origin",
			Name:  "Ethiopian Single Origin",
			Price: decimal.RequireFromString("24.99"),
			Image: product.Image{Thumbnail: "images/ethiopia-thumb.jpg"},
			Customizations: []product.OptionGroup{{
				Type: "size",
				Options: []product.Option{
					{ID: "regular", Name: "Regular", PriceDelta: decimal.Zero},
					{ID: "large", Name: "Large", PriceDelta: decimal.RequireFromString("2.00")},
				},
			}},
		},
	}}

	orders := &stubOrderRepo{}
	placer := order.NewCheckoutPlacer(orders)
	processor := checkout.NewSimulatedProcessor(0, 0)

	sessions := session.NewManager(cartstore.NewMemory(),
		func(sessionID string, c *cart.Store) *checkout.Wizard {
			return checkout.NewWizard(sessionID, c, nil, processor, placer, nil)
		},
		time.Hour, nil)

	adminHash := HashAPIKey([]byte(testPepper), "admin-key")
	readonlyHash := HashAPIKey([]byte(testPepper), "no-scope-key")
	apikeys := &stubAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
		adminHash:    {ID: "admin", KeyHash: adminHash, Scopes: []string{auth.ScopeOrdersRead}},
		readonlyHash: {ID: "limited", KeyHash: readonlyHash, Scopes: []string{"other:scope"}},
	}}

	h := New(products, orders, sessions, apikeys, []byte(testPepper), "https://cdn.example.com")
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path, sessionID, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		payload = nil
	}
	return resp, payload
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "ethiopian-single-origin", products[0]["id"])
	assert.Equal(t, "24.99", products[0]["price"])

	image := products[0]["image"].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/images/ethiopia-thumb.jpg", image["thumbnail"])
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodGet, "/api/products/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "product not found", payload["message"])
}

func TestCart_SessionIssuedWhenAbsent(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodGet, "/api/cart", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(SessionHeader))
	assert.Equal(t, float64(0), payload["totalItems"])

	// A presented session ID is echoed back.
	resp, _ = f.do(t, http.MethodGet, "/api/cart", "my-session", "")
	assert.Equal(t, "my-session", resp.Header.Get(SessionHeader))
}

func TestCart_AddMergeAndTotals(t *testing.T) {
	f := newFixture(t)
	sid := "sess-totals"

	resp, payload := f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "24.99", payload["totalAmount"])

	resp, payload = f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":2,"selection":{"size":"large"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), payload["totalItems"])
	assert.Equal(t, "78.97", payload["totalAmount"])

	items := payload["items"].([]any)
	require.Len(t, items, 2)
	customized := items[1].(map[string]any)
	assert.Equal(t, "53.98", customized["totalPrice"])

	// Same selection merges instead of adding a line.
	resp, payload = f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":1,"selection":{"size":"large"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["items"].([]any), 2)
	assert.Equal(t, float64(4), payload["totalItems"])
}

func TestCart_AddRejections(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/cart/items", "s", `{"productId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/cart/items", "s",
		`{"productId":"ethiopian-single-origin","selection":{"size":"venti"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/cart/items", "s",
		`{"productId":"ethiopian-single-origin","quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/cart/items", "s", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	f := newFixture(t)
	sid := "sess-update"

	_, payload := f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":2}`)
	key := payload["items"].([]any)[0].(map[string]any)["key"].(string)

	resp, payload := f.do(t, http.MethodPatch, "/api/cart/items/"+key, sid, `{"quantity":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), payload["totalItems"])

	// Zero quantity removes the line.
	resp, payload = f.do(t, http.MethodPatch, "/api/cart/items/"+key, sid, `{"quantity":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, payload["items"])

	_, _ = f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":1}`)
	resp, payload = f.do(t, http.MethodDelete, "/api/cart", sid, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), payload["totalItems"])
}

func TestCheckout_FullFlow(t *testing.T) {
	f := newFixture(t)
	sid := "sess-checkout"

	// Empty cart cannot start checkout.
	resp, _ := f.do(t, http.MethodPost, "/api/checkout/proceed", sid, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, _ = f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":1}`)

	resp, payload := f.do(t, http.MethodPost, "/api/checkout/proceed", sid, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delivery", payload["stage"])

	// Invalid email stays on delivery with a field error.
	resp, payload = f.do(t, http.MethodPost, "/api/checkout/delivery", sid,
		`{"name":"Ada Brew","email":"bad","phone":"555","method":"pickup"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields := payload["fields"].(map[string]any)
	assert.Contains(t, fields, "email")

	resp, payload = f.do(t, http.MethodPost, "/api/checkout/delivery", sid,
		`{"name":"Ada Brew","email":"ada@example.com","phone":"555","method":"pickup"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payment", payload["stage"])

	resp, payload = f.do(t, http.MethodPost, "/api/checkout/payment", sid,
		`{"method":"card","cardNumber":"4242424242424242","cardHolder":"Ada Brew","cardExpiry":"12/30","cardCvc":"123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", payload["stage"])
	assert.NotEmpty(t, payload["orderId"])

	// Cart was cleared by the confirmation.
	_, cartPayload := f.do(t, http.MethodGet, "/api/cart", sid, "")
	assert.Equal(t, float64(0), cartPayload["totalItems"])

	require.Len(t, f.orders.orders, 1)
	assert.Equal(t, payload["orderId"], f.orders.orders[0].ID)

	// Reset starts a fresh wizard for the next order.
	resp, payload = f.do(t, http.MethodPost, "/api/checkout/reset", sid, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "review", payload["stage"])
}

func TestCheckout_DeclinedAndRetry(t *testing.T) {
	f := newFixture(t)
	sid := "sess-declined"

	_, _ = f.do(t, http.MethodPost, "/api/cart/items", sid,
		`{"productId":"ethiopian-single-origin","quantity":1}`)
	_, _ = f.do(t, http.MethodPost, "/api/checkout/proceed", sid, "")
	_, _ = f.do(t, http.MethodPost, "/api/checkout/delivery", sid,
		`{"name":"Ada Brew","email":"ada@example.com","phone":"555","method":"pickup"}`)

	resp, payload := f.do(t, http.MethodPost, "/api/checkout/payment", sid,
		`{"method":"card","cardNumber":"4000000000000002","cardHolder":"Ada Brew","cardExpiry":"12/30","cardCvc":"123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "declined", payload["stage"])
	assert.Equal(t, "card declined", payload["declineReason"])

	resp, payload = f.do(t, http.MethodPost, "/api/checkout/retry", sid, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payment", payload["stage"])

	resp, payload = f.do(t, http.MethodPost, "/api/checkout/payment", sid,
		`{"method":"card","cardNumber":"4242424242424242","cardHolder":"Ada Brew","cardExpiry":"12/30","cardCvc":"123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", payload["stage"])
}

func TestAdmin_Orders(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/admin/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/admin/orders", "", "", APIKeyHeader, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/admin/orders", "", "", APIKeyHeader, "no-scope-key")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, payload := f.do(t, http.MethodGet, "/api/admin/orders", "", "", APIKeyHeader, "admin-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, payload["orders"])

	resp, _ = f.do(t, http.MethodGet, "/api/admin/orders?limit=-1", "", "", APIKeyHeader, "admin-key")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
