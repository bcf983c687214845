package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testSecret = "whsec_test_secret"

const completedPayload = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_123",
      "object": "checkout.session",
      "amount_total": 10000,
      "metadata": {"userId": "1", "items": "[{\"id\":1,\"name\":\"T-Shirt\",\"price\":100,\"quantity\":1}]"},
      "customer_details": {"phone": "+91 99999 00000"},
      "shipping_details": {
        "name": "Asha",
        "address": {"line1": "1 MG Road", "city": "Pune", "state": "MH", "postal_code": "411001", "country": "IN"}
      }
    }
  }
}`

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

// ============================================
// ParseWebhook Tests
// ============================================

func TestParseWebhook_ValidSignature(t *testing.T) {
	event, err := ParseWebhook([]byte(completedPayload), sign(t, completedPayload), testSecret)

	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, event.Type)
}

func TestParseWebhook_InvalidSignature(t *testing.T) {
	_, err := ParseWebhook([]byte(completedPayload), "t=1,v1=deadbeef", testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhook_TamperedPayload(t *testing.T) {
	header := sign(t, completedPayload)
	tampered := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_other"}}}`

	_, err := ParseWebhook([]byte(tampered), header, testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

// ============================================
// CompletedCheckoutSession Tests
// ============================================

func TestCompletedCheckoutSession_Extracts(t *testing.T) {
	event, err := ParseWebhook([]byte(completedPayload), sign(t, completedPayload), testSecret)
	require.NoError(t, err)

	session, ok, err := CompletedCheckoutSession(event)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cs_test_123", session.ID)
	assert.Equal(t, int64(10000), session.AmountTotal)
	assert.Equal(t, "1", session.Metadata["userId"])
	require.NotNil(t, session.Shipping)
	assert.Equal(t, "Asha", session.Shipping.Name)
	assert.Equal(t, "1 MG Road", session.Shipping.Line1)
	assert.Equal(t, "411001", session.Shipping.PostalCode)
	assert.Equal(t, "+91 99999 00000", session.Shipping.Phone)
}

func TestCompletedCheckoutSession_IgnoresOtherEvents(t *testing.T) {
	session, ok, err := CompletedCheckoutSession(stripe.Event{Type: "payment_intent.created"})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, session)
}

func TestCompletedCheckoutSession_NoShipping(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","object":"checkout.session","amount_total":500,"metadata":{}}}}`
	event, err := ParseWebhook([]byte(payload), sign(t, payload), testSecret)
	require.NoError(t, err)

	session, ok, err := CompletedCheckoutSession(event)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, session.Shipping)
	assert.Equal(t, int64(500), session.AmountTotal)
}
