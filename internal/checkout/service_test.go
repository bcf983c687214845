package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() (*Service, *mocks.MemoryStore, *mocks.MockPaymentProvider) {
	store := newTestCatalog()
	provider := mocks.NewMockPaymentProvider()
	svc := NewService(
		NewValidator(store, time.Second, zap.NewNop()),
		NewInitiator(provider, InitiatorConfig{PublicURL: "https://shop.example.com"}, zap.NewNop()),
	)
	return svc, store, provider
}

// ============================================
// Checkout Tests
// ============================================

func TestService_Checkout_Success(t *testing.T) {
	svc, store, provider := newTestService()

	session, err := svc.Checkout(context.Background(), buyer, []cart.LineItem{
		{ProductID: 1, Quantity: 1, Price: price(100), VariantID: ptr("1")},
	}, "")

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.URL)

	require.Len(t, provider.Calls, 1)
	require.Len(t, provider.Calls[0].Items, 1)
	assert.Equal(t, int64(10000), provider.Calls[0].Items[0].UnitAmount)
	assert.Equal(t, int64(1), provider.Calls[0].Items[0].Quantity)

	assert.Equal(t, 10, store.VariantStock(1, "1"), "checkout never touches stock")
}

func TestService_Checkout_OutOfStockNeverReachesProvider(t *testing.T) {
	svc, _, provider := newTestService()

	session, err := svc.Checkout(context.Background(), buyer, []cart.LineItem{
		{ProductID: 1, Quantity: 1, Price: price(120), VariantID: ptr("2")},
	}, "")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, provider.Calls)
}

func TestService_Checkout_UsesValidatedPrices(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.Checkout(context.Background(), buyer, []cart.LineItem{
		{ProductID: 2, Quantity: 3, Price: price(250), VariantValue: ptr("client supplied")},
	}, "")

	require.NoError(t, err)
	item := provider.Calls[0].Items[0]
	assert.Equal(t, "Mug", item.Name)
	assert.Equal(t, int64(25000), item.UnitAmount)
	assert.Empty(t, item.Description, "client variant text never reaches the provider")
}

func TestService_Checkout_ProviderFailure(t *testing.T) {
	svc, _, provider := newTestService()
	provider.Err = errors.New("upstream 503")

	_, err := svc.Checkout(context.Background(), buyer, []cart.LineItem{
		{ProductID: 2, Quantity: 1, Price: price(250)},
	}, "")

	assert.ErrorIs(t, err, ErrUpstreamPayment)
}

func TestService_Checkout_ForwardsIdempotencyKey(t *testing.T) {
	svc, _, provider := newTestService()

	_, err := svc.Checkout(context.Background(), buyer, []cart.LineItem{
		{ProductID: 2, Quantity: 1, Price: price(250)},
	}, "cart-42")

	require.NoError(t, err)
	assert.Equal(t, "cart-42", provider.Calls[0].IdempotencyKey)
}
