package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrProductIDRequired   = errors.New("product id is required")
	ErrProductNameRequired = errors.New("product name is required")
	ErrNegativePrice       = errors.New("price must not be negative")
	ErrOutOfStock          = errors.New("product is out of stock")
)

// Product is the typed value handed to the cart when a shopper adds an item.
// Callers validate it before it reaches the store.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrProductIDRequired
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrProductNameRequired
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	if p.Stock < 1 {
		return ErrOutOfStock
	}
	return nil
}
