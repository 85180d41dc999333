package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type mockCatalog struct {
	products map[string]*domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) ListProducts(context.Context) ([]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Product, 0, len(m.products))
	for _, id := range []string{"jade-001", "jade-002", "antique-003"} {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockSubmitter struct {
	m      sync.Mutex
	orders []*domain.Order
	err    error
}

func (m *mockSubmitter) Submit(_ context.Context, order *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, order)
	return nil
}

func newTestCatalog() *mockCatalog {
	return &mockCatalog{products: map[string]*domain.Product{
		"jade-001":    {ID: "jade-001", Name: "Imperial Green Jade Bangle", Price: 100, Stock: 3},
		"jade-002":    {ID: "jade-002", Name: "Lavender Jade Pendant", Price: 49.99, Stock: 5},
		"antique-003": {ID: "antique-003", Name: "Bronze Incense Burner", Price: 180, Stock: 0},
	}}
}

type testServer struct {
	handler   http.Handler
	submitter *mockSubmitter
}

func newTestServer(t *testing.T) *testServer {
	return newLimitedTestServer(t, 1000, 1000)
}

func newLimitedTestServer(t *testing.T, rps float64, burst int) *testServer {
	sub := &mockSubmitter{}
	svc := checkout.NewService(pricing.NewCalculator(pricing.DefaultConfig()), sub, nil)
	sessions := session.NewManager(nil, nil, svc, time.Hour, nil)
	t.Cleanup(sessions.Close)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Sessions:           sessions,
			Catalog:            newTestCatalog(),
			Checkout:           svc,
			JWTSecret:          testSecret,
			RequestTimeout:     5 * time.Second,
			MaxRequestBodySize: 1 << 20,
			RateLimitRPS:       rps,
			RateLimitBurst:     burst,
		}),
		submitter: sub,
	}
}

func (s *testServer) do(t *testing.T, method, path, sessionID string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subject,
		"email": "collector@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponse {
	t.Helper()
	var resp CartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeCheckout(t *testing.T, rec *httptest.ResponseRecorder) CheckoutResponse {
	t.Helper()
	var resp CheckoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// startSession opens a session and returns its id.
func startSession(t *testing.T, s *testServer) string {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestProducts_List(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProductsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Products, 3)
}

func TestProducts_GetNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/jade-404", "", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "product_not_found", resp.Code)
}

func TestCart_NewSessionIsEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeCart(t, rec)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.TotalItems)
	assert.Equal(t, rec.Header().Get(SessionHeader), resp.SessionID)
	assert.NotEmpty(t, rec.Result().Cookies())
}

func TestCart_AddSameProductMergesAndClamps(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 2}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 2}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity, "quantity is clamped to stock")
	assert.Equal(t, 300.0, resp.TotalAmount)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-404", Quantity: 1}, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCart_AddOutOfStockIsIgnored(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "antique-003", Quantity: 1}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestCart_AddMalformedBody(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", id, `{"product_id":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{Quantity: 1}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_UpdateQuantity(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-002", Quantity: 1}, "")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"number", `{"quantity": 4}`, 4},
		{"string", `{"quantity": "2"}`, 2},
		{"above stock", `{"quantity": 50}`, 5},
		{"malformed reverts", `{"quantity": "two"}`, 5},
		{"empty reverts", `{"quantity": ""}`, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, "/api/v1/cart/items/jade-002", id, tt.body, "")
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decodeCart(t, rec)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, tt.want, resp.Items[0].Quantity)
		})
	}

	rec := s.do(t, http.MethodPut, "/api/v1/cart/items/jade-002", id, `{"quantity": 0}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items, "zero removes the row")
}

func TestCart_UpdateUnknownProductIsNoop(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPut, "/api/v1/cart/items/jade-001", id, `{"quantity": 2}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestCart_IncrementDecrementRemove(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-002", Quantity: 1}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items/jade-001/increment", id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeCart(t, rec).TotalItems)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items/jade-002/decrement", id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCart(t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "jade-001", resp.Items[0].ProductID)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/jade-001", id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/jade-001", id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "removing twice is harmless")
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	a := startSession(t, s)
	b := startSession(t, s)
	require.NotEqual(t, a, b)

	s.do(t, http.MethodPost, "/api/v1/cart/items", a, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")

	rec := s.do(t, http.MethodGet, "/api/v1/cart", b, nil, "")
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestCart_MalformedSessionIDStartsFresh(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "not-a-session", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "not-a-session", rec.Header().Get(SessionHeader))
}

func TestCheckout_Adjustments(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/coupon", id, CouponRequestDTO{Code: "JADE20"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeCheckout(t, rec)
	require.NotNil(t, resp.Applied)
	assert.True(t, *resp.Applied)
	assert.Equal(t, 5.0, resp.Pricing.CouponDiscount)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/gift-cards", id, GiftCardRequestDTO{Number: "123", PIN: "1"}, "")
	resp = decodeCheckout(t, rec)
	assert.False(t, *resp.Applied)
	assert.Equal(t, 0.0, resp.Pricing.GiftCardCredit)

	rec = s.do(t, http.MethodPost, "/api/v1/checkout/gift-cards", id, GiftCardRequestDTO{Number: "6011000012345678", PIN: "1234"}, "")
	resp = decodeCheckout(t, rec)
	assert.True(t, *resp.Applied)
	assert.Equal(t, 92.0, resp.Pricing.FinalTotal)
	assert.Equal(t, []string{"************5678"}, resp.Adjustments.GiftCards)

	rec = s.do(t, http.MethodPut, "/api/v1/checkout/membership", id, MembershipRequestDTO{Active: true}, "")
	resp = decodeCheckout(t, rec)
	assert.Equal(t, 87.0, resp.Pricing.FinalTotal)

	rec = s.do(t, http.MethodDelete, "/api/v1/checkout", id, nil, "")
	resp = decodeCheckout(t, rec)
	assert.Equal(t, 100.0, resp.Pricing.FinalTotal)
	assert.Empty(t, resp.Adjustments.CouponCode)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", id, nil, "")
	assert.Equal(t, 1, decodeCart(t, rec).TotalItems, "adjustments never touch the cart")
}

func TestCheckout_SubmitRequiresUser(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/orders", id, SubmitOrderRequestDTO{PaymentMethod: "card"}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_SubmitEmptyCart(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/orders", id,
		SubmitOrderRequestDTO{PaymentMethod: "card"}, signToken(t, testSecret, "user-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckout_SubmitMissingPaymentMethod(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/orders", id,
		SubmitOrderRequestDTO{PaymentMethod: " "}, signToken(t, testSecret, "user-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_SubmitFailureKeepsCart(t *testing.T) {
	s := newTestServer(t)
	s.submitter.err = errors.New("broker unavailable")
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 2}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/orders", id,
		SubmitOrderRequestDTO{PaymentMethod: "card"}, signToken(t, testSecret, "user-1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.NotContains(t, errResp.Error, "broker", "internal detail is not leaked")

	rec = s.do(t, http.MethodGet, "/api/v1/cart", id, nil, "")
	assert.Equal(t, 2, decodeCart(t, rec).TotalItems)
}

func TestCheckout_SubmitSuccessClearsCart(t *testing.T) {
	s := newTestServer(t)
	id := startSession(t, s)
	s.do(t, http.MethodPost, "/api/v1/cart/items", id, AddItemRequestDTO{ProductID: "jade-001", Quantity: 1}, "")
	s.do(t, http.MethodPost, "/api/v1/checkout/coupon", id, CouponRequestDTO{Code: "JADE20"}, "")

	rec := s.do(t, http.MethodPost, "/api/v1/checkout/orders", id,
		SubmitOrderRequestDTO{PaymentMethod: "card"}, signToken(t, testSecret, "user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var confirmation checkout.Confirmation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&confirmation))
	assert.NotEmpty(t, confirmation.OrderID)
	assert.Equal(t, 95.0, confirmation.FinalTotal)

	require.Len(t, s.submitter.orders, 1)
	assert.Equal(t, "user-1", s.submitter.orders[0].UserID)
	assert.Equal(t, "card", s.submitter.orders[0].PaymentMethod)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", id, nil, "")
	assert.Empty(t, decodeCart(t, rec).Items)

	rec = s.do(t, http.MethodGet, "/api/v1/checkout", id, nil, "")
	assert.Empty(t, decodeCheckout(t, rec).Adjustments.CouponCode)
}

func TestAuth_InvalidTokenRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", "", nil, signToken(t, "other-secret", "user-1"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	s := newLimitedTestServer(t, 0.001, 1)

	send := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.2"))
}
