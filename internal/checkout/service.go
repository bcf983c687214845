package checkout

import (
	"context"

	"github.com/example/ec-checkout/internal/domain/cart"
)

// Service runs a checkout end to end: validate, then open a payment session.
type Service struct {
	validator *Validator
	initiator *Initiator
}

func NewService(validator *Validator, initiator *Initiator) *Service {
	return &Service{validator: validator, initiator: initiator}
}

func (s *Service) Checkout(ctx context.Context, buyer Buyer, items []cart.LineItem, idempotencyKey string) (*Session, error) {
	validated, err := s.validator.Validate(ctx, buyer, items)
	if err != nil {
		return nil, err
	}
	return s.initiator.Initiate(ctx, buyer, validated, idempotencyKey)
}
