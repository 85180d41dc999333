package checkout

import (
	"slices"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/pricing"
)

// Adjustments holds the promotions a shopper entered on the checkout page. It
// lives only as long as the checkout view and is never merged into the cart.
type Adjustments struct {
	mu         sync.RWMutex
	validator  func(pricing.GiftCard) bool
	couponCode string
	giftCards  []pricing.GiftCard
	membership bool
}

// NewAdjustments uses validCard to decide whether a gift card entry is kept.
func NewAdjustments(validCard func(pricing.GiftCard) bool) *Adjustments {
	return &Adjustments{validator: validCard}
}

// ApplyCoupon replaces the active coupon. Blank input changes nothing.
func (a *Adjustments) ApplyCoupon(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.couponCode = code
	return true
}

// ApplyGiftCard adds one more gift card credit when the number and PIN are long
// enough.
func (a *Adjustments) ApplyGiftCard(number, pin string) bool {
	card := pricing.GiftCard{Number: strings.TrimSpace(number), PIN: strings.TrimSpace(pin)}
	if a.validator != nil && !a.validator(card) {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.giftCards = append(a.giftCards, card)
	return true
}

func (a *Adjustments) SetMembership(active bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.membership = active
}

func (a *Adjustments) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.couponCode = ""
	a.giftCards = nil
	a.membership = false
}

// ResetIfUnchanged clears the adjustments only when they still match submitted.
// Promotions entered while an order was in flight are kept for the next one.
func (a *Adjustments) ResetIfUnchanged(submitted pricing.Input) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.couponCode != submitted.CouponCode || a.membership != submitted.Membership {
		return false
	}
	if !slices.Equal(a.giftCards, submitted.GiftCards) {
		return false
	}
	a.couponCode = ""
	a.giftCards = nil
	a.membership = false
	return true
}

func (a *Adjustments) Input() pricing.Input {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cards := make([]pricing.GiftCard, len(a.giftCards))
	copy(cards, a.giftCards)
	return pricing.Input{
		CouponCode: a.couponCode,
		GiftCards:  cards,
		Membership: a.membership,
	}
}

// State is the shopper-visible part of the adjustments; gift card numbers are
// reduced to their last four digits.
type State struct {
	CouponCode string   `json:"coupon_code,omitempty"`
	GiftCards  []string `json:"gift_cards"`
	Membership bool     `json:"membership"`
}

func (a *Adjustments) State() State {
	in := a.Input()
	masked := make([]string, 0, len(in.GiftCards))
	for _, card := range in.GiftCards {
		masked = append(masked, maskCard(card.Number))
	}
	return State{
		CouponCode: in.CouponCode,
		GiftCards:  masked,
		Membership: in.Membership,
	}
}

func maskCard(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
