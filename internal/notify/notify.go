// Package notify delivers order-status events to interested listeners.
// Delivery is fire-and-forget: callers log failures and move on.
package notify

import (
	"context"
	"log/slog"

	"github.com/ssemakov/storefront/internal/models"
)

type Sink interface {
	Notify(ctx context.Context, userID, orderID uint, status models.OrderStatus) error
}

// Events is the generic event pipe handlers publish domain events through.
// The Kafka producer implements it; tests inject a capturing fake.
type Events interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// LogSink writes notifications to the log. It backs deployments without a
// broker and keeps tests hermetic.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) Notify(_ context.Context, userID, orderID uint, status models.OrderStatus) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("order notification",
		"user_id", userID,
		"order_id", orderID,
		"status", string(status),
	)
	return nil
}

// NopEvents discards published events.
type NopEvents struct{}

func (NopEvents) PublishEvent(context.Context, string, string, any) error { return nil }
