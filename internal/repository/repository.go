package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable home of session carts. Carts are stored whole;
// line item rules live in the cart store, not here.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error
}
