package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductHandlers struct {
	catalog product.Catalog
	logger  *zap.Logger
}

func NewProductHandlers(catalog product.Catalog, logger *zap.Logger) *ProductHandlers {
	return &ProductHandlers{catalog: catalog, logger: logger}
}

type VariantAvailability struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Value   string           `json:"value"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Stock   int              `json:"stock"`
	InStock bool             `json:"in_stock"`
}

// ProductAvailability is what the product page needs to build a cart line
// the validator will accept: current prices and stock per option.
type ProductAvailability struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Price           decimal.Decimal       `json:"price"`
	ComparePrice    *decimal.Decimal      `json:"compare_price,omitempty"`
	DiscountPercent int                   `json:"discount_percent"`
	TotalStock      int                   `json:"total_stock"`
	InStock         bool                  `json:"in_stock"`
	VariantRequired bool                  `json:"variant_required"`
	Variants        []VariantAvailability `json:"variants,omitempty"`
}

func newProductAvailability(p *product.Product) ProductAvailability {
	out := ProductAvailability{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		ComparePrice:    p.ComparePrice,
		DiscountPercent: p.DiscountPercent(),
		TotalStock:      p.TotalStock(),
		InStock:         p.InStock(),
		VariantRequired: p.HasVariants(),
	}
	if variants, ok := p.Options.(product.Variants); ok {
		out.Variants = make([]VariantAvailability, len(variants))
		for i, v := range variants {
			out.Variants[i] = VariantAvailability{
				ID:      v.ID,
				Name:    v.Name,
				Value:   v.Value,
				Price:   v.Price,
				Stock:   v.Stock,
				InStock: v.Stock > 0,
			}
		}
	}
	return out
}

// GetProduct handles GET /api/products/{id}. Unpublished products do not exist
// for buyers.
func (h *ProductHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}

	p, err := h.catalog.FindPublishedProduct(r.Context(), id)
	if errors.Is(err, product.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.logger.Error("product lookup failed", zap.Int64("product_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	respondJSON(w, http.StatusOK, newProductAvailability(p))
}
