package checkout

import "errors"

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrUnauthenticated       = errors.New("sign in to place an order")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrSubmissionFailed      = errors.New("order submission failed, please retry")
)
