package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartHandler struct {
	catalog     ProductCatalog
	timeout     time.Duration
	maxBodySize int64
}

func NewCartHandler(catalog ProductCatalog, timeout time.Duration, maxBodySize int64) *CartHandler {
	return &CartHandler{
		catalog:     catalog,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequestDTO keeps the quantity raw: shoppers type it, so it
// may arrive as a number or as a string.
type UpdateQuantityRequestDTO struct {
	Quantity json.RawMessage `json:"quantity"`
}

type CartResponse struct {
	SessionID   string            `json:"session_id"`
	Items       []domain.LineItem `json:"items"`
	TotalItems  int               `json:"total_items"`
	TotalAmount float64           `json:"total_amount"`
}

func newCartResponse(store *cart.Store) CartResponse {
	return CartResponse{
		SessionID:   store.SessionID(),
		Items:       store.Items(),
		TotalItems:  store.TotalItems(),
		TotalAmount: store.TotalPrice(),
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req AddItemRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	if err := product.Validate(); err != nil {
		zap.L().Debug("product not added",
			zap.String("session_id", s.ID),
			zap.String("product_id", product.ID),
			zap.Error(err))
		respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
		return
	}

	s.Cart.AddItem(*product, req.Quantity)
	respondJSON(w, http.StatusCreated, newCartResponse(s.Cart))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	productID := chi.URLParam(r, "product_id")
	item, ok := s.Cart.Item(productID)
	if !ok {
		respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
		return
	}

	quantity, ok := domain.ParseQuantityInput(string(req.Quantity), item.Quantity)
	if ok {
		s.Cart.UpdateQuantity(productID, quantity)
	}

	respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// POST /api/v1/cart/items/{product_id}/increment
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	s.Cart.Increment(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// POST /api/v1/cart/items/{product_id}/decrement
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	s.Cart.Decrement(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	s.Cart.RemoveItem(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, newCartResponse(s.Cart))
}
