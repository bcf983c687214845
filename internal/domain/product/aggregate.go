package product

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
	ErrVariantRequired = errors.New("variant is required")
)

// Catalog is the authoritative source of product price and stock. Stock is
// written only by settlement, never through the catalog.
type Catalog interface {
	FindPublishedProduct(ctx context.Context, id int64) (*Product, error)
}

type Product struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Price        decimal.Decimal  `json:"price"`
	ComparePrice *decimal.Decimal `json:"compare_price,omitempty"`
	Status       Status           `json:"status"`
	Options      Options          `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type Variant struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Value string           `json:"value"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock int              `json:"stock"`
}

// Options is either Variants or Single. A product never has both a usable
// base stock and variants.
type Options interface {
	isOptions()
}

// Variants is the option set of a product sold only through its variants.
type Variants []Variant

// Single is the option set of a variant-less product, stocked at product level.
type Single struct {
	Stock int
}

func (Variants) isOptions() {}
func (Single) isOptions()   {}

// Find returns the variant with the given id.
func (vs Variants) Find(id string) (Variant, bool) {
	for _, v := range vs {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Offer is what a buyer can purchase for one cart line: the effective unit
// price and the stock it is drawn from.
type Offer struct {
	UnitPrice    decimal.Decimal
	Stock        int
	VariantID    *string
	VariantValue *string
}

// Resolve picks the offer for a cart line. Products with variants require a
// variant id; variant-less products use the base price and stock and reject
// any variant id.
func (p *Product) Resolve(variantID *string) (Offer, error) {
	switch opts := p.Options.(type) {
	case Variants:
		if variantID == nil || *variantID == "" {
			return Offer{}, ErrVariantRequired
		}
		v, ok := opts.Find(*variantID)
		if !ok {
			return Offer{}, ErrVariantNotFound
		}
		price := p.Price
		if v.Price != nil {
			price = *v.Price
		}
		id, value := v.ID, v.Value
		return Offer{UnitPrice: price, Stock: v.Stock, VariantID: &id, VariantValue: &value}, nil
	case Single:
		if variantID != nil && *variantID != "" {
			return Offer{}, ErrVariantNotFound
		}
		return Offer{UnitPrice: p.Price, Stock: opts.Stock}, nil
	default:
		return Offer{}, ErrVariantRequired
	}
}

func (p *Product) IsPublished() bool {
	return p.Status == StatusPublished
}

// TotalStock sums variant stock, or returns the base stock for a variant-less product.
func (p *Product) TotalStock() int {
	switch opts := p.Options.(type) {
	case Variants:
		total := 0
		for _, v := range opts {
			total += v.Stock
		}
		return total
	case Single:
		return opts.Stock
	}
	return 0
}

func (p *Product) InStock() bool {
	return p.TotalStock() > 0
}

// DiscountPercent returns the whole-number discount against the compare price,
// or 0 when there is no higher compare price.
func (p *Product) DiscountPercent() int {
	if p.ComparePrice == nil || !p.ComparePrice.GreaterThan(p.Price) {
		return 0
	}
	off := p.ComparePrice.Sub(p.Price).Div(*p.ComparePrice).Mul(decimal.NewFromInt(100))
	return int(off.Round(0).IntPart())
}

// HasVariants reports whether the product is sold through variants.
func (p *Product) HasVariants() bool {
	_, ok := p.Options.(Variants)
	return ok
}
