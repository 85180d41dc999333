// Package pricing turns a cart subtotal and the shopper's checkout adjustments
// into a payable amount.
//
// The terms are applied in a fixed order: coupon, gift cards, membership, then
// sales tax on what remains. Every amount is rounded to cents. Invalid coupon or
// gift card input contributes nothing instead of failing.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	CouponRate           float64
	CouponCap            float64
	GiftCardAmount       float64
	GiftCardNumberMinLen int
	GiftCardPINMinLen    int
	MembershipDiscount   float64
	SalesTaxRate         float64
}

func DefaultConfig() Config {
	return Config{
		CouponRate:           0.20,
		CouponCap:            5,
		GiftCardAmount:       3,
		GiftCardNumberMinLen: 10,
		GiftCardPINMinLen:    4,
		MembershipDiscount:   5,
		SalesTaxRate:         0,
	}
}

type GiftCard struct {
	Number string `json:"number"`
	PIN    string `json:"pin"`
}

type Input struct {
	CouponCode string
	GiftCards  []GiftCard
	Membership bool
}

type Breakdown struct {
	Subtotal           float64 `json:"subtotal"`
	CouponDiscount     float64 `json:"coupon_discount"`
	GiftCardCredit     float64 `json:"gift_card_credit"`
	MembershipDiscount float64 `json:"membership_discount"`
	TaxableBase        float64 `json:"taxable_base"`
	SalesTax           float64 `json:"sales_tax"`
	FinalTotal         float64 `json:"final_total"`
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

func (c *Calculator) Config() Config {
	return c.cfg
}

// ValidGiftCard reports whether number and PIN are long enough to be accepted.
func (c *Calculator) ValidGiftCard(card GiftCard) bool {
	return len(strings.TrimSpace(card.Number)) >= c.cfg.GiftCardNumberMinLen &&
		len(strings.TrimSpace(card.PIN)) >= c.cfg.GiftCardPINMinLen
}

func (c *Calculator) Quote(subtotal float64, in Input) Breakdown {
	sub := cents(decimal.NewFromFloat(subtotal))
	if sub.IsNegative() {
		sub = decimal.Zero
	}

	coupon := decimal.Zero
	if strings.TrimSpace(in.CouponCode) != "" {
		coupon = cents(decimal.Min(
			sub.Mul(decimal.NewFromFloat(c.cfg.CouponRate)),
			decimal.NewFromFloat(c.cfg.CouponCap),
		))
		coupon = nonNegative(coupon)
	}

	valid := 0
	for _, card := range in.GiftCards {
		if c.ValidGiftCard(card) {
			valid++
		}
	}
	giftCard := decimal.Zero
	if valid > 0 {
		requested := decimal.NewFromFloat(c.cfg.GiftCardAmount).Mul(decimal.NewFromInt(int64(valid)))
		giftCard = cents(nonNegative(decimal.Min(requested, nonNegative(sub.Sub(coupon)))))
	}

	membership := decimal.Zero
	if in.Membership {
		membership = cents(nonNegative(decimal.NewFromFloat(c.cfg.MembershipDiscount)))
	}

	base := nonNegative(sub.Sub(coupon).Sub(giftCard).Sub(membership))
	tax := cents(base.Mul(decimal.NewFromFloat(c.cfg.SalesTaxRate)))
	tax = nonNegative(tax)

	return Breakdown{
		Subtotal:           sub.InexactFloat64(),
		CouponDiscount:     coupon.InexactFloat64(),
		GiftCardCredit:     giftCard.InexactFloat64(),
		MembershipDiscount: membership.InexactFloat64(),
		TaxableBase:        base.InexactFloat64(),
		SalesTax:           tax.InexactFloat64(),
		FinalTotal:         base.Add(tax).InexactFloat64(),
	}
}

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
