package settlement

import (
	"encoding/json"
	"fmt"

	"github.com/example/ec-checkout/internal/domain/order"
)

// Event is a payment confirmation for one provider session. It may be
// delivered more than once and in any order relative to other sessions.
type Event struct {
	SessionID   string                 `json:"session_id"`
	AmountTotal int64                  `json:"amount_total"`
	Metadata    map[string]string      `json:"metadata"`
	Shipping    *order.ShippingAddress `json:"shipping,omitempty"`
}

// DecodeEvent parses the JSON envelope used on the settlement topic.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode settlement event: %w", err)
	}
	if ev.SessionID == "" {
		return Event{}, fmt.Errorf("decode settlement event: %w: missing session id", ErrMalformedMetadata)
	}
	return ev, nil
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Outcome is the terminal state reached by one delivery.
type Outcome string

const (
	OutcomeDeduplicated  Outcome = "deduplicated"
	OutcomeAborted       Outcome = "aborted"
	OutcomeNotified      Outcome = "notified"
	OutcomeNotifyFailed  Outcome = "notify_failed"
	OutcomeNotifySkipped Outcome = "notify_skipped"
)

// OrderCreated reports whether this delivery durably created the order.
func (o Outcome) OrderCreated() bool {
	switch o {
	case OutcomeNotified, OutcomeNotifyFailed, OutcomeNotifySkipped:
		return true
	}
	return false
}
