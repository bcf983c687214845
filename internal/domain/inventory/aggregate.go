package inventory

import (
	"errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Adjustment is one stock deduction applied during settlement.
type Adjustment struct {
	ProductID int64  `json:"product_id"`
	VariantID string `json:"variant_id"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
}

// Deduct returns the stock left after selling quantity units. Stock never
// goes below zero: overselling between checkout and payment is tolerated.
func Deduct(stock, quantity int) int {
	if quantity <= 0 {
		return stock
	}
	remaining := stock - quantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Check reports whether quantity units can be taken from stock.
func Check(stock, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > stock {
		return ErrInsufficientStock
	}
	return nil
}
