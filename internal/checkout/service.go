package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const currency = "USD"

// Submitter hands a priced order to the order pipeline.
type Submitter interface {
	Submit(ctx context.Context, order *domain.Order) error
}

type Confirmation struct {
	OrderID    string            `json:"order_id"`
	FinalTotal float64           `json:"final_total"`
	Currency   string            `json:"currency"`
	Pricing    pricing.Breakdown `json:"pricing"`
}

type Service struct {
	calc      *pricing.Calculator
	submitter Submitter
	logger    *zap.Logger
}

func NewService(calc *pricing.Calculator, submitter Submitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		calc:      calc,
		submitter: submitter,
		logger:    logger,
	}
}

func (s *Service) NewAdjustments() *Adjustments {
	return NewAdjustments(s.calc.ValidGiftCard)
}

// Quote prices the cart as it stands with the current adjustments. It has no
// side effects and can run on every keystroke.
func (s *Service) Quote(store *cart.Store, adj *Adjustments) pricing.Breakdown {
	return s.calc.Quote(store.TotalPrice(), adj.Input())
}

// Submit places the order. The cart is cleared only when the submitter accepts
// the order; on any failure cart and adjustments are left as they were.
func (s *Service) Submit(
	ctx context.Context,
	user *domain.User,
	store *cart.Store,
	adj *Adjustments,
	paymentMethod string) (*Confirmation, error) {

	if user == nil {
		return nil, ErrUnauthenticated
	}
	snapshot := store.Snapshot()
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}

	in := adj.Input()
	quote := s.calc.Quote(snapshot.TotalAmount(), in)

	order := &domain.Order{
		ID:                 uuid.New().String(),
		SessionID:          snapshot.SessionID,
		UserID:             user.ID,
		Items:              domain.NewOrderItems(snapshot.Items),
		TotalItems:         snapshot.TotalItems(),
		TotalAmount:        snapshot.TotalAmount(),
		CouponCode:         in.CouponCode,
		CouponDiscount:     quote.CouponDiscount,
		GiftCardCredit:     quote.GiftCardCredit,
		MembershipDiscount: quote.MembershipDiscount,
		SalesTax:           quote.SalesTax,
		FinalTotal:         quote.FinalTotal,
		PaymentMethod:      paymentMethod,
		Currency:           currency,
		SubmittedAt:        time.Now(),
	}

	if err := s.submitter.Submit(ctx, order); err != nil {
		s.logger.Error("order submission failed",
			zap.String("session_id", snapshot.SessionID),
			zap.String("order_id", order.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	store.ClearSubmitted(snapshot.Items)
	if !adj.ResetIfUnchanged(in) {
		s.logger.Debug("adjustments changed during submission, keeping them",
			zap.String("session_id", snapshot.SessionID))
	}

	s.logger.Info("order submitted",
		zap.String("session_id", snapshot.SessionID),
		zap.String("order_id", order.ID),
		zap.String("user_id", user.ID),
		zap.Float64("final_total", quote.FinalTotal))

	return &Confirmation{
		OrderID:    order.ID,
		FinalTotal: quote.FinalTotal,
		Currency:   currency,
		Pricing:    quote,
	}, nil
}
