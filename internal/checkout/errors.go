package checkout

import (
	"errors"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/inventory"
	"github.com/example/ec-checkout/internal/domain/product"
)

var (
	ErrEmptyCart         = cart.ErrEmptyCart
	ErrInvalidCart       = cart.ErrInvalidCart
	ErrProductNotFound   = product.ErrProductNotFound
	ErrVariantRequired   = product.ErrVariantRequired
	ErrVariantNotFound   = product.ErrVariantNotFound
	ErrInsufficientStock = inventory.ErrInsufficientStock
	ErrPriceMismatch     = errors.New("product price has changed")
	ErrUnauthenticated   = errors.New("unauthenticated")
	// ErrUpstreamPayment hides provider failures from the caller; details are logged.
	ErrUpstreamPayment = errors.New("payment provider error")
)

// Buyer is the authenticated caller of a checkout. It is always passed
// explicitly, never read from ambient request state.
type Buyer struct {
	ID    string
	Email string
}

func (b Buyer) Authenticated() bool {
	return b.ID != ""
}
