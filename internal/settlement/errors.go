package settlement

import (
	"context"
	"errors"

	"github.com/example/ec-checkout/internal/domain/cart"
)

var (
	ErrMalformedMetadata  = cart.ErrMalformedMetadata
	ErrSettlementInFlight = errors.New("settlement already in progress for session")
)

// retryableError marks failures a redelivery of the same event may fix.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether the delivery should be retried by whatever
// delivered it. Timeouts are always retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
