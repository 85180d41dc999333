package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	SessionID string     `bson:"session_id" json:"session_id"`
	Items     []LineItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type LineItem struct {
	ID          string    `bson:"id" json:"id"`
	ProductID   string    `bson:"product_id" json:"product_id"`
	Name        string    `bson:"name" json:"name"`
	Image       string    `bson:"image" json:"image"`
	Description string    `bson:"description" json:"description"`
	Price       float64   `bson:"price" json:"price"`
	Stock       int       `bson:"stock" json:"stock"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	AddedAt     time.Time `bson:"added_at" json:"added_at"`
}

// Subtotal is price * quantity for a single row.
func (i LineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) TotalAmount() float64 {
	return SumAmount(c.Items).InexactFloat64()
}

// SumAmount adds line subtotals without float drift.
func SumAmount(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
