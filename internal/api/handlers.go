package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/domain/order"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// actorFromRequest builds the order-management caller from the token claims.
func actorFromRequest(r *http.Request) order.Actor {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return order.Actor{}
	}
	return order.Actor{
		UserID: claims.UserID,
		Admin:  claims.IsAdmin(),
	}
}
