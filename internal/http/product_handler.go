package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductCatalog is the read side of the catalog used by the handlers.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog ProductCatalog
	timeout time.Duration
}

func NewProductHandler(catalog ProductCatalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []*domain.Product `json:"products"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func handleCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "catalog lookup timed out")
	default:
		zap.L().Error("catalog lookup failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
