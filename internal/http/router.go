package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/auth"
	"github.com/signalix/licensing/internal/http/handlers"
	"github.com/signalix/licensing/internal/middleware"
	"github.com/signalix/licensing/internal/repo"
)

// RouterDeps are the collaborators the router wires into handlers and middleware
type RouterDeps struct {
	Licenses    handlers.LicenseService
	JWT         *auth.JWTService
	Users       repo.UserRepo
	RateLimiter *middleware.RateLimiter
	Metrics     http.Handler
	Logger      zerolog.Logger
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	licenseHandler := handlers.NewLicenseHandler(d.Licenses, d.Logger)
	adminHandler := handlers.NewAdminHandler(d.Licenses, d.Logger)

	// Protected routes (require valid JWT)
	r.Route("/private", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(d.RateLimiter, middleware.GetIPKey))
		}
		r.Use(middleware.AuthMiddleware(d.JWT, d.Users, d.Logger))

		r.Route("/devices/{id}", func(r chi.Router) {
			r.Get("/", licenseHandler.HandleGetDevice)
			r.Get("/licenses", licenseHandler.HandleListLicenses)
			r.Get("/license-quote", licenseHandler.HandleQuote)
			r.Post("/lytex-license", licenseHandler.HandleRequestInvoice)
			r.Get("/lytex-invoice/{invoiceId}", licenseHandler.HandleGetInvoice)
			r.Get("/lytex-status/{invoiceId}", licenseHandler.HandleInvoiceStatus)
			r.Post("/register-license", licenseHandler.HandleRegisterLicense)
		})

		r.Route("/admin/system-config", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Put("/device-fee", adminHandler.HandleUpdateDeviceFee)
			r.Put("/gateway-credentials", adminHandler.HandleSetGatewayCredentials)
		})
	})

	return r
}
