package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandlers struct {
	db     Pinger
	logger *zap.Logger
	now    func() time.Time
}

func NewHealthHandlers(db Pinger, logger *zap.Logger) *HealthHandlers {
	return &HealthHandlers{db: db, logger: logger, now: time.Now}
}

// Health handles GET /api/health
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
