package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "storefront-orders"
	EventType    = "order_submitted"
)

var ErrBreakerOpen = errors.New("order pipeline temporarily unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubmitter publishes submitted orders for the downstream order pipeline.
type KafkaSubmitter struct {
	writer  messageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	delay   time.Duration
	logger  *zap.Logger
}

func NewKafkaSubmitter(topic string, delay time.Duration, logger *zap.Logger, brokers ...string) *KafkaSubmitter {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	return newSubmitter(w, delay, logger)
}

func newSubmitter(w messageWriter, delay time.Duration, logger *zap.Logger) *KafkaSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "order-submission",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &KafkaSubmitter{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		delay:   delay,
		logger:  logger,
	}
}

func (s *KafkaSubmitter) Submit(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		if err := s.wait(ctx); err != nil {
			return struct{}{}, err
		}
		msg := kafka.Message{
			Key:   []byte(order.ID),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(EventType)},
			},
		}
		return struct{}{}, s.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen
	}
	if err != nil {
		return fmt.Errorf("failed to publish order %s: %w", order.ID, err)
	}

	s.logger.Debug("order published", zap.String("order_id", order.ID))
	return nil
}

// wait stands in for the round trip to the order backend.
func (s *KafkaSubmitter) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KafkaSubmitter) Close() error {
	return s.writer.Close()
}
