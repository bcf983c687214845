package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-checkout/internal/domain/order"
)

// MockNotifier records order confirmations
type MockNotifier struct {
	mu    sync.Mutex
	Calls []order.Confirmation
	Err   error
	Panic any
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) SendOrderConfirmation(_ context.Context, c order.Confirmation) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, c)
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	return m.Err
}

func (m *MockNotifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
