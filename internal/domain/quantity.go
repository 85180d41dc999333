package domain

import (
	"errors"
	"strconv"
	"strings"
)

// MaxQuantity caps every line regardless of stock.
const MaxQuantity = 999

// UpperBound is the largest quantity allowed for a product with the given stock.
func UpperBound(stock int) int {
	if stock > MaxQuantity {
		return MaxQuantity
	}
	return stock
}

// ClampQuantity silently truncates requested into [1, min(stock, MaxQuantity)].
func ClampQuantity(requested, stock int) int {
	upper := UpperBound(stock)
	if requested > upper {
		requested = upper
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}

// ParseQuantityInput reads a quantity typed by the shopper. Anything that is not
// a plain integer yields last and false so the field reverts. Integers too large
// for int saturate: positive ones to MaxQuantity, negative ones to 0.
func ParseQuantityInput(raw string, last int) (int, bool) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" {
		return last, false
	}
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		if s[0] == '-' {
			return 0, true
		}
		return MaxQuantity, true
	}
	if err != nil {
		return last, false
	}
	return n, true
}
