package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/connectpro-relay/internal/handlers"
	"github.com/AnshRaj112/connectpro-relay/internal/middleware"
)

// SetupRoutes registers the HTTP surface: health, the payment webhook,
// the token-guarded admin API, and optionally the dev playground socket.
func SetupRoutes(r *chi.Mux, adminTokenHash string, devSocket http.Handler) {
	r.Get("/api/health", handlers.HealthCheck)

	// Payment gateway callback
	r.Post("/api/payments/webhook", handlers.PaymentWebhook)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(adminTokenHash))
		r.Get("/api/admin/owners", handlers.GetOwners)
		r.Get("/api/admin/stats", handlers.GetStats)
		r.Put("/api/admin/owners/active", handlers.SetOwnerActive)
		r.Put("/api/admin/owners/verified", handlers.SetOwnerVerified)
		r.Post("/api/admin/trial-sweep", handlers.RunTrialSweep)
	})

	// Dev playground websocket (dev transport only)
	if devSocket != nil {
		r.Handle("/api/dev/socket", devSocket)
	}
}
