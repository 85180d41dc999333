package domain

import "time"

type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// Order is the cart state captured at submission time, priced and ready for the
// order pipeline.
type Order struct {
	ID                 string      `json:"order_id"`
	SessionID          string      `json:"session_id"`
	UserID             string      `json:"user_id"`
	Items              []OrderItem `json:"items"`
	TotalItems         int         `json:"total_items"`
	TotalAmount        float64     `json:"total_amount"`
	CouponCode         string      `json:"coupon_code,omitempty"`
	CouponDiscount     float64     `json:"coupon_discount"`
	GiftCardCredit     float64     `json:"gift_card_credit"`
	MembershipDiscount float64     `json:"membership_discount"`
	SalesTax           float64     `json:"sales_tax"`
	FinalTotal         float64     `json:"final_total"`
	PaymentMethod      string      `json:"payment_method"`
	Currency           string      `json:"currency"`
	SubmittedAt        time.Time   `json:"submitted_at"`
}

func NewOrderItems(items []LineItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
			Subtotal:    item.Subtotal().InexactFloat64(),
		})
	}
	return out
}
