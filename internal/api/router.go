package api

import (
	"net/http"

	"github.com/example/ec-checkout/internal/api/middleware"
	"github.com/example/ec-checkout/internal/auth"
	"github.com/example/ec-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Checkout         *CheckoutHandlers
	Webhooks         *WebhookHandlers
	Orders           *OrderHandlers
	Products         *ProductHandlers
	Health           *HealthHandlers
	JWTService       *auth.JWTService
	Metrics          *metrics.Metrics
	MetricsTokenHash string
	Logger           *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Observe(cfg.Metrics, cfg.Logger))
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", cfg.Health.Health)
		r.With(middleware.RequireSecret(cfg.MetricsTokenHash)).Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

		// Authenticated by signature, not by token.
		r.Post("/webhooks/stripe", cfg.Webhooks.Stripe)

		r.Get("/products/{id}", cfg.Products.GetProduct)

		// Anonymous callers get the checkout's own 401.
		r.With(middleware.OptionalAuthMiddleware(cfg.JWTService)).Post("/checkout", cfg.Checkout.Checkout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.JWTService))
			r.Get("/orders", cfg.Orders.ListOrders)
			r.Get("/orders/by-session/{sessionId}", cfg.Orders.GetOrderBySession)
			r.Get("/orders/{id}", cfg.Orders.GetOrder)
			r.With(middleware.RequireAdmin).Patch("/orders/{id}/status", cfg.Orders.UpdateOrderStatus)
		})
	})

	return r
}
