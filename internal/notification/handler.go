package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"go.uber.org/zap"
)

const EventConfirmationRequested = "ConfirmationRequested"

var (
	ErrInvalidMessage = errors.New("invalid notification message")
	// ErrUndeliverable marks a confirmation the mail server refused outright.
	ErrUndeliverable = errors.New("confirmation undeliverable")
)

// Message is the envelope published on the notification topic.
type Message struct {
	Type         string             `json:"type"`
	Confirmation order.Confirmation `json:"confirmation"`
	RequestedAt  time.Time          `json:"requested_at"`
}

// Sender delivers a confirmation to the buyer, e.g. *email.Service.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, c order.Confirmation) error
}

// Handler processes notification messages from Kafka
type Handler struct {
	sender Sender
	logger *zap.Logger
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender, logger *zap.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

// HandleEvent processes one message. Malformed messages are reported as
// permanent so the consumer commits past them; delivery failures are
// returned as-is for the consumer's retry policy.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		h.logger.Error("failed to unmarshal notification", zap.ByteString("key", key), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	// Other message types may share the topic.
	if msg.Type != EventConfirmationRequested {
		h.logger.Debug("ignoring message", zap.String("type", msg.Type))
		return nil
	}

	c := msg.Confirmation
	if c.OrderID == "" || c.Email == "" {
		h.logger.Error("confirmation without order id or recipient", zap.String("order_id", c.OrderID))
		return fmt.Errorf("%w: missing order id or email", ErrInvalidMessage)
	}

	log := h.logger.With(zap.String("order_id", c.OrderID))
	log.Info("processing order confirmation")

	if err := h.sender.SendOrderConfirmation(ctx, c); err != nil {
		if rejected(err) {
			log.Error("order confirmation rejected by mail server", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrUndeliverable, err)
		}
		log.Error("failed to send order confirmation", zap.Error(err))
		return err
	}

	log.Info("order confirmation sent")
	return nil
}

// rejected reports a permanent (5xx) SMTP reply such as 550 mailbox unavailable.
func rejected(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600
}

// IsRetryable reports whether a HandleEvent error is worth another attempt.
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidMessage) && !errors.Is(err, ErrUndeliverable)
}
