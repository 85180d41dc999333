package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions           *session.Manager
	Catalog            ProductCatalog
	Checkout           *checkout.Service
	Logger             *zap.Logger
	JWTSecret          string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	RateLimitRPS       float64
	RateLimitBurst     int
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.Catalog, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(PeerMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{product_id}", productHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.Sessions))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Post("/items/{product_id}/increment", cartHandler.Increment)
				r.Post("/items/{product_id}/decrement", cartHandler.Decrement)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Delete("/", checkoutHandler.ResetCheckout)
				r.Post("/coupon", checkoutHandler.ApplyCoupon)
				r.Post("/gift-cards", checkoutHandler.AddGiftCard)
				r.Put("/membership", checkoutHandler.SetMembership)
				r.Post("/orders", checkoutHandler.SubmitOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
