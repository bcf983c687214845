package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	List(ctx context.Context, actor order.Actor, page order.Page) ([]*order.Order, error)
	Get(ctx context.Context, actor order.Actor, id string) (*order.Order, error)
	GetBySession(ctx context.Context, actor order.Actor, sessionID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, actor order.Actor, id string, in order.UpdateStatusInput) (*order.Order, error)
}

type OrderHandlers struct {
	svc    OrderService
	logger *zap.Logger
}

func NewOrderHandlers(svc OrderService, logger *zap.Logger) *OrderHandlers {
	return &OrderHandlers{svc: svc, logger: logger}
}

type OrderListResponse struct {
	Orders []*order.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListOrders handles GET /api/orders?limit=&offset=. Customers get their own
// order history; admins get every order.
func (h *OrderHandlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}
	page = page.Normalize()

	orders, err := h.svc.List(r.Context(), actorFromRequest(r), page)
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Limit: page.Limit, Offset: page.Offset})
}

func parsePage(r *http.Request) (order.Page, bool) {
	var page order.Page
	for _, p := range []struct {
		key string
		dst *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := r.URL.Query().Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return order.Page{}, false
		}
		*p.dst = n
	}
	return page, true
}

// GetOrder handles GET /api/orders/{id}
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GetOrderBySession handles GET /api/orders/by-session/{sessionId}, used by
// the checkout success page.
func (h *OrderHandlers) GetOrderBySession(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetBySession(r.Context(), actorFromRequest(r), chi.URLParam(r, "sessionId"))
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type UpdateStatusRequest struct {
	Status         string  `json:"status"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// UpdateOrderStatus handles PATCH /api/orders/{id}/status
func (h *OrderHandlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), order.UpdateStatusInput{
		Status:         order.Status(req.Status),
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	})
	if err != nil {
		h.respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, order.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, order.ErrUnknownStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrOrderCancelled),
		errors.Is(err, order.ErrOrderRefunded):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("order request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
