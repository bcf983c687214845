package payments

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProviderUnavailable is returned while the circuit to the provider is open.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
)

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	Name        string
	Description string
	Quantity    int64
	// UnitAmount is in minor currency units.
	UnitAmount int64
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession is the hosted payment page the buyer is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// Provider creates hosted checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}
