package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/checkout"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/metrics"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets a client retry a checkout without creating a
// second payment session.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 255

type Checkouter interface {
	Checkout(ctx context.Context, buyer checkout.Buyer, items []cart.LineItem, idempotencyKey string) (*checkout.Session, error)
}

type CheckoutHandlers struct {
	svc     Checkouter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCheckoutHandlers(svc Checkouter, m *metrics.Metrics, logger *zap.Logger) *CheckoutHandlers {
	return &CheckoutHandlers{svc: svc, metrics: m, logger: logger}
}

type CheckoutRequest struct {
	Items []cart.LineItem `json:"items"`
}

type CheckoutResponse struct {
	Session *checkout.Session `json:"session"`
}

// checkoutFailure maps a checkout error to its status, client message and
// metric label. Unknown errors never reach the client verbatim.
type checkoutFailure struct {
	err     error
	status  int
	message string
	reason  string
}

var checkoutFailures = []checkoutFailure{
	{checkout.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized", "unauthenticated"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "No items in cart", "empty_cart"},
	{checkout.ErrInvalidCart, http.StatusBadRequest, "Invalid cart", "invalid_cart"},
	{checkout.ErrVariantRequired, http.StatusBadRequest, "Variant is required", "variant_required"},
	{checkout.ErrInsufficientStock, http.StatusBadRequest, "Product stock is not enough", "insufficient_stock"},
	{checkout.ErrPriceMismatch, http.StatusBadRequest, "Product price has changed", "price_mismatch"},
	{checkout.ErrProductNotFound, http.StatusNotFound, "Product not found", "product_not_found"},
	{checkout.ErrVariantNotFound, http.StatusNotFound, "Variant not found", "variant_not_found"},
}

func classifyCheckoutError(err error) checkoutFailure {
	for _, f := range checkoutFailures {
		if errors.Is(err, f.err) {
			return f
		}
	}
	reason := "internal"
	if errors.Is(err, checkout.ErrUpstreamPayment) {
		reason = "payment_provider"
	}
	return checkoutFailure{err: err, status: http.StatusInternalServerError, message: "Something went wrong", reason: reason}
}

// Checkout handles POST /api/checkout
func (h *CheckoutHandlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var buyer checkout.Buyer
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		buyer = checkout.Buyer{ID: claims.UserID, Email: claims.Email}
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLen {
		h.fail(w, checkoutFailure{status: http.StatusBadRequest, message: "Invalid Idempotency-Key", reason: "invalid_cart"})
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("undecodable checkout body", zap.Error(err))
		h.fail(w, checkoutFailure{status: http.StatusBadRequest, message: "Invalid cart", reason: "invalid_cart"})
		return
	}

	session, err := h.svc.Checkout(r.Context(), buyer, req.Items, key)
	if err != nil {
		f := classifyCheckoutError(err)
		if f.status == http.StatusInternalServerError {
			h.logger.Error("checkout failed", zap.String("user_id", buyer.ID), zap.Error(err))
		}
		h.fail(w, f)
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponse{Session: session})
}

func (h *CheckoutHandlers) fail(w http.ResponseWriter, f checkoutFailure) {
	h.metrics.CheckoutFailures.WithLabelValues(f.reason).Inc()
	respondError(w, f.status, f.message)
}
