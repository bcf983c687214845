package api

import (
	"context"
	"io"
	"net/http"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/payments"
	"github.com/example/ec-checkout/internal/settlement"
	"go.uber.org/zap"
)

// Stripe signs payloads well under this size.
const maxWebhookBytes = 65536

// SettlementSink accepts a payment confirmation for settlement. A non-nil
// error means the provider should deliver the event again.
type SettlementSink interface {
	Submit(ctx context.Context, ev settlement.Event) error
}

type WebhookHandlers struct {
	secret string
	sink   SettlementSink
	logger *zap.Logger
}

func NewWebhookHandlers(secret string, sink SettlementSink, logger *zap.Logger) *WebhookHandlers {
	return &WebhookHandlers{secret: secret, sink: sink, logger: logger}
}

// Stripe handles POST /api/webhooks/stripe
func (h *WebhookHandlers) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Warn("unreadable webhook payload", zap.Error(err))
		respondError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := payments.ParseWebhook(payload, r.Header.Get(payments.SignatureHeader), h.secret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	cs, ok, err := payments.CompletedCheckoutSession(event)
	if !ok {
		h.logger.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
		respondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		h.logger.Error("undecodable checkout session", zap.String("event_id", event.ID), zap.Error(err))
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	if err := h.sink.Submit(r.Context(), settlementEvent(cs)); err != nil {
		h.logger.Warn("settlement not accepted, provider will redeliver",
			zap.String("session_id", cs.ID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "settlement failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func settlementEvent(cs *payments.CompletedSession) settlement.Event {
	ev := settlement.Event{
		SessionID:   cs.ID,
		AmountTotal: cs.AmountTotal,
		Metadata:    cs.Metadata,
	}
	if s := cs.Shipping; s != nil {
		ev.Shipping = &order.ShippingAddress{
			Name:     s.Name,
			Address1: s.Line1,
			Address2: s.Line2,
			City:     s.City,
			State:    s.State,
			Zip:      s.PostalCode,
			Country:  s.Country,
			Phone:    s.Phone,
		}
	}
	return ev
}

type settler interface {
	Settle(ctx context.Context, ev settlement.Event) (settlement.Outcome, error)
}

// ProcessorSink settles inline. Permanent failures are final: they are
// logged here and acknowledged so the provider stops redelivering.
type ProcessorSink struct {
	processor settler
	logger    *zap.Logger
}

func NewProcessorSink(p settler, logger *zap.Logger) *ProcessorSink {
	return &ProcessorSink{processor: p, logger: logger}
}

func (s *ProcessorSink) Submit(ctx context.Context, ev settlement.Event) error {
	outcome, err := s.processor.Settle(ctx, ev)
	if err != nil && !settlement.IsRetryable(err) {
		s.logger.Error("settlement aborted permanently",
			zap.String("session_id", ev.SessionID),
			zap.Error(err))
		return nil
	}
	if err == nil {
		s.logger.Info("settlement finished",
			zap.String("session_id", ev.SessionID),
			zap.String("outcome", string(outcome)))
	}
	return err
}

type publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// ProducerSink hands the event to a settlement queue (Kafka topic or Kinesis
// stream), keyed by session id.
type ProducerSink struct {
	producer publisher
}

func NewProducerSink(p publisher) *ProducerSink {
	return &ProducerSink{producer: p}
}

func (s *ProducerSink) Submit(ctx context.Context, ev settlement.Event) error {
	return s.producer.Publish(ctx, ev.SessionID, ev)
}
