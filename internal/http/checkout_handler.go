package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	service     *checkout.Service
	timeout     time.Duration
	maxBodySize int64
}

func NewCheckoutHandler(service *checkout.Service, timeout time.Duration, maxBodySize int64) *CheckoutHandler {
	return &CheckoutHandler{
		service:     service,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

type CouponRequestDTO struct {
	Code string `json:"code"`
}

type GiftCardRequestDTO struct {
	Number string `json:"number"`
	PIN    string `json:"pin"`
}

type MembershipRequestDTO struct {
	Active bool `json:"active"`
}

type SubmitOrderRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type CheckoutResponse struct {
	TotalItems  int               `json:"total_items"`
	Pricing     pricing.Breakdown `json:"pricing"`
	Adjustments checkout.State    `json:"adjustments"`
	Applied     *bool             `json:"applied,omitempty"`
}

func (h *CheckoutHandler) view(s *session.Session) CheckoutResponse {
	return CheckoutResponse{
		TotalItems:  s.Cart.TotalItems(),
		Pricing:     h.service.Quote(s.Cart, s.Checkout),
		Adjustments: s.Checkout.State(),
	}
}

func (h *CheckoutHandler) applied(s *session.Session, ok bool) CheckoutResponse {
	resp := h.view(s)
	resp.Applied = &ok
	return resp
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	respondJSON(w, http.StatusOK, h.view(s))
}

// POST /api/v1/checkout/coupon
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req CouponRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	respondJSON(w, http.StatusOK, h.applied(s, s.Checkout.ApplyCoupon(req.Code)))
}

// POST /api/v1/checkout/gift-cards
func (h *CheckoutHandler) AddGiftCard(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req GiftCardRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	respondJSON(w, http.StatusOK, h.applied(s, s.Checkout.ApplyGiftCard(req.Number, req.PIN)))
}

// PUT /api/v1/checkout/membership
func (h *CheckoutHandler) SetMembership(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req MembershipRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	s.Checkout.SetMembership(req.Active)
	respondJSON(w, http.StatusOK, h.view(s))
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) ResetCheckout(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	s.Checkout.Reset()
	respondJSON(w, http.StatusOK, h.view(s))
}

// POST /api/v1/checkout/orders
func (h *CheckoutHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	if s == nil {
		respondError(w, http.StatusInternalServerError, "no_session", "session not resolved")
		return
	}

	var req SubmitOrderRequestDTO
	if !decodeJSON(w, r, h.maxBodySize, &req) {
		return
	}

	confirmation, err := h.service.Submit(ctx, getUser(r.Context()), s.Cart, s.Checkout, req.PaymentMethod)
	if err != nil {
		handleCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, confirmation)
}

func handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrPaymentMethodRequired):
		respondError(w, http.StatusBadRequest, "missing_payment_method", err.Error())
	case errors.Is(err, checkout.ErrSubmissionFailed):
		respondError(w, http.StatusServiceUnavailable, "submission_failed", checkout.ErrSubmissionFailed.Error())
	default:
		zap.L().Error("checkout failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
