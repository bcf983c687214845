package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// CompletedSession is the part of a completed checkout session that
// settlement needs.
type CompletedSession struct {
	ID          string
	AmountTotal int64
	Metadata    map[string]string
	Shipping    *ShippingDetails
}

type ShippingDetails struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// ParseWebhook verifies the payload signature and decodes the event.
// The account API version is not enforced so dashboard upgrades do not break
// delivery.
func ParseWebhook(payload []byte, signature, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// CompletedCheckoutSession extracts the session from a
// checkout.session.completed event. ok is false for any other event type.
func CompletedCheckoutSession(event stripe.Event) (session *CompletedSession, ok bool, err error) {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, false, nil
	}
	if event.Data == nil {
		return nil, true, fmt.Errorf("stripe: event %s has no data", event.ID)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, true, fmt.Errorf("stripe: decode checkout session: %w", err)
	}

	out := &CompletedSession{
		ID:          cs.ID,
		AmountTotal: cs.AmountTotal,
		Metadata:    cs.Metadata,
	}
	if cs.ShippingDetails != nil && cs.ShippingDetails.Address != nil {
		addr := cs.ShippingDetails.Address
		out.Shipping = &ShippingDetails{
			Name:       cs.ShippingDetails.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
		if cs.CustomerDetails != nil {
			out.Shipping.Phone = cs.CustomerDetails.Phone
		}
	}
	return out, true, nil
}
