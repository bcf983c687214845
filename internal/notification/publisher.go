package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
)

type producer interface {
	Publish(ctx context.Context, key string, value any) error
}

// Publisher hands confirmations to the notifier service instead of sending
// mail inline, so settlement never waits on SMTP.
type Publisher struct {
	producer producer
	now      func() time.Time
}

func NewPublisher(p producer) *Publisher {
	return &Publisher{producer: p, now: time.Now}
}

// SendOrderConfirmation publishes a ConfirmationRequested message keyed by
// order id.
func (p *Publisher) SendOrderConfirmation(ctx context.Context, c order.Confirmation) error {
	msg := Message{
		Type:         EventConfirmationRequested,
		Confirmation: c,
		RequestedAt:  p.now().UTC(),
	}
	if err := p.producer.Publish(ctx, c.OrderID, msg); err != nil {
		return fmt.Errorf("publish confirmation for order %s: %w", c.OrderID, err)
	}
	return nil
}
