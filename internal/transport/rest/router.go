package rest

import (
	"database/sql"

	"github.com/frahmantamala/hyperswitch-gateway/internal/payment"
	"github.com/frahmantamala/hyperswitch-gateway/internal/transport/middleware"
	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// RegisterAllRoutes wires the payment API and the webhook endpoint onto
// the router. The webhook route stays outside the API prefix: its path
// is registered at the gateway and must not move with API versions.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, gatewayPinger GatewayPinger, paymentHandler *payment.Handler, webhookHandler *webhook.Handler) {
	healthHandler := NewHealthHandler(db, gatewayPinger)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggingMiddleware())

	if webhookHandler != nil {
		router.Post("/payments/hooks", webhookHandler.HandleWebhook)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Post("/", paymentHandler.Initiate)
				pr.Get("/{id}", paymentHandler.Get)
				pr.Post("/{id}", paymentHandler.Update)
				pr.Get("/{id}/status", paymentHandler.GetStatus)
				pr.Post("/{id}/capture", paymentHandler.Capture)
				pr.Post("/{id}/cancel", paymentHandler.Cancel)
				pr.Post("/{id}/refund", paymentHandler.Refund)
			})
		}
	})
}
