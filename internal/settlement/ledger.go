package settlement

import (
	"context"
	"time"
)

// Ledger claims a provider session while one worker settles it, so concurrent
// redeliveries back off instead of racing into the store. The unique
// constraint on the order store stays the final guard; a claim only narrows
// the window.
type Ledger interface {
	// Claim returns a token naming this claim, or "" when another worker
	// holds an unexpired claim or the session was already completed.
	Claim(ctx context.Context, sessionID string, ttl time.Duration) (string, error)
	// Release drops the claim only while it still carries token. A claim
	// that expired and was taken by another worker is left alone.
	Release(ctx context.Context, sessionID, token string) error
	Complete(ctx context.Context, sessionID string) error
}

// NopLedger always grants the claim.
type NopLedger struct{}

const nopClaimToken = "unlocked"

func (NopLedger) Claim(context.Context, string, time.Duration) (string, error) {
	return nopClaimToken, nil
}
func (NopLedger) Release(context.Context, string, string) error { return nil }
func (NopLedger) Complete(context.Context, string) error        { return nil }
