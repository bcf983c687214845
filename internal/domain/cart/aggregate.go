package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxItems           = 20
	MaxQuantity        = 20
	MaxVariantValueLen = 100
)

var (
	ErrEmptyCart       = errors.New("no items in cart")
	ErrInvalidCart     = errors.New("invalid cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// LineItem is a cart line as submitted by the client. Nothing in it is trusted.
type LineItem struct {
	ProductID    int64           `json:"id"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	VariantID    *string         `json:"variantId,omitempty"`
	VariantValue *string         `json:"variantValue,omitempty"`
}

// UnmarshalJSON accepts numeric fields as JSON numbers or numeric strings and
// a variant id as either a string or a number.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id, err := coerceInt(w.ID, "id", maxInt64)
	if err != nil {
		return err
	}
	qty, err := coerceInt(w.Quantity, "quantity", maxInt32)
	if err != nil {
		return err
	}
	price, err := coerceDecimal(w.Price, "price")
	if err != nil {
		return err
	}
	variantID, err := coerceVariantID(w.VariantID)
	if err != nil {
		return err
	}

	*li = LineItem{
		ProductID:    id,
		Quantity:     int(qty),
		Price:        price,
		VariantID:    variantID,
		VariantValue: w.VariantValue,
	}
	return nil
}

// ValidateRequest checks the shape of a submitted cart before any catalog
// lookup happens.
func ValidateRequest(items []LineItem) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	if len(items) > MaxItems {
		return fmt.Errorf("%w: at most %d items are allowed", ErrInvalidCart, MaxItems)
	}
	for i, item := range items {
		switch {
		case item.Quantity < 1:
			return fmt.Errorf("%w: item %d: quantity must be at least 1", ErrInvalidCart, i)
		case item.Quantity > MaxQuantity:
			return fmt.Errorf("%w: item %d: quantity must be at most %d", ErrInvalidCart, i, MaxQuantity)
		case item.Price.IsNegative():
			return fmt.Errorf("%w: item %d: price must be non-negative", ErrInvalidCart, i)
		case item.VariantValue != nil && utf8.RuneCountInString(*item.VariantValue) > MaxVariantValueLen:
			return fmt.Errorf("%w: item %d: variant value must be at most %d characters", ErrInvalidCart, i, MaxVariantValueLen)
		}
	}
	return nil
}

// ValidatedLineItem is a cart line re-priced and re-stocked against the
// catalog. Its fields are the only input settlement trusts.
type ValidatedLineItem struct {
	ProductID    int64
	ProductName  string
	Quantity     int
	UnitPrice    decimal.Decimal
	VariantID    *string
	VariantValue *string
}

// MinorUnits returns the unit price in paise, as payment providers expect.
func (v ValidatedLineItem) MinorUnits() int64 {
	return v.UnitPrice.Shift(2).Round(0).IntPart()
}

// Subtotal is the unit price times the quantity.
func (v ValidatedLineItem) Subtotal() decimal.Decimal {
	return v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity)))
}
