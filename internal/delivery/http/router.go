package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventregistration/internal/delivery/http/controllers"
	"eventregistration/internal/delivery/http/helpers"
	"eventregistration/internal/delivery/http/middleware"
	"eventregistration/internal/domain"
)

// RouterConfig carries the cross-cutting dependencies of the router.
type RouterConfig struct {
	Verifier       domain.TokenVerifier
	Limiter        *middleware.ClientLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(
	registrationController *controllers.RegistrationController,
	webhookController *controllers.WebhookController,
	adminController *controllers.AdminController,
	cfg RouterConfig,
) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(cfg.Verifier, cfg.Logger)
	limit := middleware.RateLimit(cfg.Limiter)

	// Public
	mux.HandleFunc("POST /events/{eventID}/registrations", limit(registrationController.Register))
	mux.HandleFunc("GET /registrations/{code}", registrationController.GetByCode)
	mux.HandleFunc("POST /webhooks/payments", webhookController.HandlePayment)

	// Organizer
	mux.HandleFunc("POST /admin/events", auth(adminController.CreateEvent))
	mux.HandleFunc("GET /admin/events/{eventID}", auth(adminController.GetEvent))
	mux.HandleFunc("PUT /admin/events/{eventID}/pricing", auth(adminController.UpdatePricing))
	mux.HandleFunc("POST /admin/events/{eventID}/coupons", auth(adminController.CreateCoupon))
	mux.HandleFunc("GET /admin/events/{eventID}/coupons", auth(adminController.ListCoupons))
	mux.HandleFunc("GET /admin/events/{eventID}/registrations", auth(adminController.ListRegistrations))
	mux.HandleFunc("POST /admin/registrations/{registrationID}/retry-payment", auth(adminController.RetryPayment))
	mux.HandleFunc("POST /admin/registrations/{registrationID}/check-payments", auth(adminController.RecordCheckPayment))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		helpers.WriteJSONSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return middleware.CORS(cfg.AllowedOrigins, middleware.LoggingMiddleware(cfg.Logger, mux))
}
