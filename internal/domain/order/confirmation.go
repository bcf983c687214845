package order

import "github.com/shopspring/decimal"

// Confirmation is the message sent to a buyer once their order is recorded.
type Confirmation struct {
	Email           string          `json:"email"`
	CustomerName    string          `json:"customer_name"`
	OrderID         string          `json:"order_id"`
	Items           []LineItem      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

func NewConfirmation(o *Order, email, name string) Confirmation {
	return Confirmation{
		Email:           email,
		CustomerName:    name,
		OrderID:         o.ID,
		Items:           o.Items,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
	}
}
