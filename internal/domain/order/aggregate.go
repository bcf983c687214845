package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrEmptyOrder          = errors.New("order must have at least one item")
	ErrMissingSession      = errors.New("order must reference a payment session")
	ErrDuplicateSettlement = errors.New("order already exists for payment session")
	ErrInvalidStatus       = errors.New("invalid order status transition")
	ErrUnknownStatus       = errors.New("unknown order status")
	ErrOrderCancelled      = errors.New("order is already cancelled")
	ErrOrderRefunded       = errors.New("order is already refunded")
	ErrForbidden           = errors.New("not allowed to manage this order")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {}, // terminal state
	StatusRefunded:   {}, // terminal state
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch o.Status {
	case StatusCancelled:
		return ErrOrderCancelled
	case StatusRefunded:
		return ErrOrderRefunded
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// LineItem is a snapshot of what was bought. It never references live
// catalog data.
type LineItem struct {
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	VariantID    *string         `json:"variant_id,omitempty"`
	VariantValue *string         `json:"variant_value,omitempty"`
}

type ShippingAddress struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func (a ShippingAddress) IsZero() bool {
	return a == ShippingAddress{}
}

type Order struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	Items             []LineItem      `json:"items"`
	Total             decimal.Decimal `json:"total"`
	Status            Status          `json:"status"`
	ProviderSessionID string          `json:"provider_session_id"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MinorToMajor converts an amount in minor currency units (paise) to major units.
func MinorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// NewPaid builds the order recorded once a payment session is confirmed.
// total is the confirmed amount in minor units.
func NewPaid(customerID, sessionID string, items []LineItem, total int64, addr ShippingAddress, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	snapshot := make([]LineItem, len(items))
	copy(snapshot, items)

	return &Order{
		ID:                uuid.New().String(),
		CustomerID:        customerID,
		Items:             snapshot,
		Total:             MinorToMajor(total),
		Status:            StatusPaid,
		ProviderSessionID: sessionID,
		ShippingAddress:   addr,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Store looks orders up by payment session. Orders are only ever created by
// a Settlement, which fails with ErrDuplicateSettlement when the session
// already has one.
type Store interface {
	FindBySessionID(ctx context.Context, sessionID string) (*Order, error)
}

type Repository interface {
	Store
	FindByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string, page Page) ([]*Order, error)
	ListAll(ctx context.Context, page Page) ([]*Order, error)
	UpdateStatus(ctx context.Context, o *Order) error
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of orders, newest first.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the limit into [1, MaxPageSize] and the offset to >= 0.
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Deduction is one stock decrement paid for by a settled order. Items with no
// variant are looked up but leave stock untouched.
type Deduction struct {
	ProductID int64
	VariantID *string
	Quantity  int
}

// Settlement is committed all-or-nothing: every deduction and the order, or
// nothing.
type Settlement struct {
	Order      *Order
	Deductions []Deduction
}

// Actor is the caller of an order-management operation.
type Actor struct {
	UserID string
	Admin  bool
}

type UpdateStatusInput struct {
	Status         Status
	TrackingNumber *string
	Notes          *string
}

type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Get returns an order visible to the actor: its owner or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.CustomerID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// GetBySession returns the order settled for a payment session.
func (s *Service) GetBySession(ctx context.Context, actor Actor, sessionID string) (*Order, error) {
	o, err := s.repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.CustomerID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// List returns the actor's own orders, or every order for an admin.
func (s *Service) List(ctx context.Context, actor Actor, page Page) ([]*Order, error) {
	page = page.Normalize()
	if actor.Admin {
		return s.repo.ListAll(ctx, page)
	}
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListByCustomer(ctx, actor.UserID, page)
}

// UpdateStatus moves an order through its fulfilment lifecycle. Only admins may
// do this; customers never mutate their orders.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, in UpdateStatusInput) (*Order, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if _, err := ParseStatus(string(in.Status)); err != nil {
		return nil, err
	}

	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status != in.Status {
		if !o.CanTransitionTo(in.Status) {
			return nil, o.transitionError(in.Status)
		}
		o.Status = in.Status
	}
	if in.TrackingNumber != nil {
		o.TrackingNumber = in.TrackingNumber
	}
	if in.Notes != nil {
		o.Notes = in.Notes
	}
	o.UpdatedAt = s.now()

	if err := s.repo.UpdateStatus(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.String("actor", actor.UserID))
	return o, nil
}
