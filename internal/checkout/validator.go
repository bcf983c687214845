package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/inventory"
	"github.com/example/ec-checkout/internal/domain/product"
	"go.uber.org/zap"
)

// Validator re-prices and re-stocks a client cart against the catalog.
type Validator struct {
	catalog product.Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewValidator(catalog product.Catalog, timeout time.Duration, logger *zap.Logger) *Validator {
	return &Validator{catalog: catalog, timeout: timeout, logger: logger}
}

// Validate checks every line in order and stops at the first bad one; no
// partial result is ever returned. An empty cart fails before any lookup.
func (v *Validator) Validate(ctx context.Context, buyer Buyer, items []cart.LineItem) ([]cart.ValidatedLineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if !buyer.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if err := cart.ValidateRequest(items); err != nil {
		return nil, err
	}

	validated := make([]cart.ValidatedLineItem, 0, len(items))
	for i, item := range items {
		vi, err := v.validateItem(ctx, item)
		if err != nil {
			v.logger.Info("cart rejected",
				zap.String("user_id", buyer.ID),
				zap.Int("item", i),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			return nil, err
		}
		validated = append(validated, vi)
	}
	return validated, nil
}

func (v *Validator) validateItem(ctx context.Context, item cart.LineItem) (cart.ValidatedLineItem, error) {
	p, err := v.findPublished(ctx, item.ProductID)
	if err != nil {
		return cart.ValidatedLineItem{}, err
	}

	offer, err := p.Resolve(item.VariantID)
	if err != nil {
		return cart.ValidatedLineItem{}, fmt.Errorf("product %d: %w", p.ID, err)
	}

	if err := inventory.Check(offer.Stock, item.Quantity); err != nil {
		return cart.ValidatedLineItem{}, fmt.Errorf("product %d: %w", p.ID, err)
	}

	if !item.Price.Equal(offer.UnitPrice) {
		return cart.ValidatedLineItem{}, fmt.Errorf("product %d: %w: claimed %s, current %s",
			p.ID, ErrPriceMismatch, item.Price, offer.UnitPrice)
	}

	return cart.ValidatedLineItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		Quantity:     item.Quantity,
		UnitPrice:    offer.UnitPrice,
		VariantID:    offer.VariantID,
		VariantValue: offer.VariantValue,
	}, nil
}

func (v *Validator) findPublished(ctx context.Context, id int64) (*product.Product, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	p, err := v.catalog.FindPublishedProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	return p, nil
}
