package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/ec-checkout/internal/payments"
)

// MockPaymentProvider records checkout session requests
type MockPaymentProvider struct {
	mu    sync.Mutex
	Calls []payments.CheckoutSessionRequest
	Err   error
}

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{}
}

func (m *MockPaymentProvider) CreateCheckoutSession(ctx context.Context, req payments.CheckoutSessionRequest) (*payments.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("cs_test_%d", len(m.Calls))
	return &payments.CheckoutSession{
		ID:  id,
		URL: "https://checkout.stripe.com/c/pay/" + id,
	}, nil
}
