package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProducer struct {
	keys   []string
	values []any
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, key string, value any) error {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return f.err
}

func testConfirmation() order.Confirmation {
	return order.Confirmation{
		Email:        "buyer@example.com",
		CustomerName: "Asha",
		OrderID:      "order-1",
		Items: []order.LineItem{
			{ProductID: 1, ProductName: "T-Shirt", Price: decimal.NewFromInt(100), Quantity: 1},
		},
		Total: decimal.NewFromInt(100),
	}
}

// ============================================
// Publisher Tests
// ============================================

func TestPublisher_SendOrderConfirmation(t *testing.T) {
	p := &fakeProducer{}
	pub := NewPublisher(p)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	err := pub.SendOrderConfirmation(context.Background(), testConfirmation())

	require.NoError(t, err)
	require.Len(t, p.values, 1)
	assert.Equal(t, []string{"order-1"}, p.keys)

	msg, ok := p.values[0].(Message)
	require.True(t, ok)
	assert.Equal(t, EventConfirmationRequested, msg.Type)
	assert.Equal(t, "order-1", msg.Confirmation.OrderID)
	assert.Equal(t, fixed, msg.RequestedAt)
}

func TestPublisher_SendOrderConfirmation_Error(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}

	err := NewPublisher(p).SendOrderConfirmation(context.Background(), testConfirmation())

	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "order-1")
}

// ============================================
// Handler Tests
// ============================================

func encode(t *testing.T, msg Message) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestHandler_HandleEvent(t *testing.T) {
	sender := &mocks.MockNotifier{}
	h := NewHandler(sender, zap.NewNop())

	err := h.HandleEvent(context.Background(), []byte("order-1"), encode(t, Message{
		Type:         EventConfirmationRequested,
		Confirmation: testConfirmation(),
	}))

	require.NoError(t, err)
	require.Len(t, sender.Calls, 1)
	assert.Equal(t, "buyer@example.com", sender.Calls[0].Email)
	assert.True(t, decimal.NewFromInt(100).Equal(sender.Calls[0].Total))
}

func TestHandler_HandleEvent_IgnoresOtherTypes(t *testing.T) {
	sender := &mocks.MockNotifier{}
	h := NewHandler(sender, zap.NewNop())

	err := h.HandleEvent(context.Background(), nil, encode(t, Message{Type: "OrderShipped"}))

	require.NoError(t, err)
	assert.Empty(t, sender.Calls)
}

func TestHandler_HandleEvent_Errors(t *testing.T) {
	noEmail := testConfirmation()
	noEmail.Email = ""

	tests := []struct {
		name      string
		value     []byte
		senderErr error
		retryable bool
	}{
		{
			name:      "not json",
			value:     []byte("{"),
			retryable: false,
		},
		{
			name:      "missing recipient",
			value:     encode(t, Message{Type: EventConfirmationRequested, Confirmation: noEmail}),
			retryable: false,
		},
		{
			name:      "smtp failure",
			value:     encode(t, Message{Type: EventConfirmationRequested, Confirmation: testConfirmation()}),
			senderErr: errors.New("connection refused"),
			retryable: true,
		},
		{
			name:      "mailbox unavailable",
			value:     encode(t, Message{Type: EventConfirmationRequested, Confirmation: testConfirmation()}),
			senderErr: fmt.Errorf("send mail to mailhog:1025: %w", &textproto.Error{Code: 550, Msg: "mailbox unavailable"}),
			retryable: false,
		},
		{
			name:      "greylisted",
			value:     encode(t, Message{Type: EventConfirmationRequested, Confirmation: testConfirmation()}),
			senderErr: &textproto.Error{Code: 451, Msg: "try again later"},
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mocks.MockNotifier{Err: tt.senderErr}, zap.NewNop())

			err := h.HandleEvent(context.Background(), nil, tt.value)

			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestPublisherToHandler(t *testing.T) {
	p := &fakeProducer{}
	require.NoError(t, NewPublisher(p).SendOrderConfirmation(context.Background(), testConfirmation()))

	data, err := json.Marshal(p.values[0])
	require.NoError(t, err)

	sender := &mocks.MockNotifier{}
	require.NoError(t, NewHandler(sender, zap.NewNop()).HandleEvent(context.Background(), []byte(p.keys[0]), data))
	require.Len(t, sender.Calls, 1)
	assert.Equal(t, "order-1", sender.Calls[0].OrderID)
}
