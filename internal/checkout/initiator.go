package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/payments"
	"go.uber.org/zap"
)

const DefaultCurrency = "inr"

// Session is the handle returned to the buyer after a payment session is created.
type Session struct {
	ID        string                   `json:"id"`
	URL       string                   `json:"url"`
	BuyerID   string                   `json:"-"`
	Items     []cart.ValidatedLineItem `json:"-"`
	CreatedAt time.Time                `json:"-"`
}

type InitiatorConfig struct {
	// PublicURL is the storefront origin the provider redirects back to.
	PublicURL string
	Currency  string
	Timeout   time.Duration
}

// Initiator turns validated items into a payment-provider session. It never
// touches stock: stock moves only at settlement.
type Initiator struct {
	provider   payments.Provider
	successURL string
	cancelURL  string
	currency   string
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewInitiator(provider payments.Provider, cfg InitiatorConfig, logger *zap.Logger) *Initiator {
	base := strings.TrimRight(cfg.PublicURL, "/")
	currency := cfg.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Initiator{
		provider:   provider,
		successURL: base + "/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  base + "/cart",
		currency:   currency,
		timeout:    cfg.Timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Initiate creates the provider session. Prices come only from the validated
// items; the metadata carries everything settlement needs to rebuild the order.
func (i *Initiator) Initiate(ctx context.Context, buyer Buyer, items []cart.ValidatedLineItem, idempotencyKey string) (*Session, error) {
	if !buyer.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	metadata, err := cart.EncodeMetadata(buyer.ID, items)
	if err != nil {
		return nil, fmt.Errorf("build session metadata: %w", err)
	}

	lineItems := make([]payments.CheckoutLineItem, len(items))
	for n, item := range items {
		li := payments.CheckoutLineItem{
			Name:       item.ProductName,
			Quantity:   int64(item.Quantity),
			UnitAmount: item.MinorUnits(),
		}
		if item.VariantValue != nil && *item.VariantValue != "" {
			li.Description = "Variant: " + *item.VariantValue
		}
		lineItems[n] = li
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	session, err := i.provider.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Currency:       i.currency,
		CustomerEmail:  buyer.Email,
		SuccessURL:     i.successURL,
		CancelURL:      i.cancelURL,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
		Items:          lineItems,
	})
	if err != nil {
		i.logger.Error("failed to create payment session",
			zap.String("user_id", buyer.ID),
			zap.Error(err))
		return nil, ErrUpstreamPayment
	}

	i.logger.Info("payment session created",
		zap.String("user_id", buyer.ID),
		zap.String("session_id", session.ID),
		zap.Int("items", len(items)))

	return &Session{
		ID:        session.ID,
		URL:       session.URL,
		BuyerID:   buyer.ID,
		Items:     items,
		CreatedAt: i.now(),
	}, nil
}
