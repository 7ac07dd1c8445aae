package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	AuthMiddleware *auth.AuthMiddleware
	ResetLimiter   fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/register", cfg.Accounts.Register)
	app.Post("/login", cfg.Accounts.Login)
	app.Post("/logout", cfg.Accounts.Logout)
	app.Get("/verify-email", cfg.Accounts.VerifyEmail)
	app.Post("/resend-verification", cfg.Accounts.ResendVerification)
	app.Post("/reset-password", cfg.Accounts.ResetPassword)

	if cfg.ResetLimiter != nil {
		app.Post("/password-reset-request", cfg.ResetLimiter, cfg.Accounts.RequestPasswordReset)
	} else {
		app.Post("/password-reset-request", cfg.Accounts.RequestPasswordReset)
	}

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/profile", cfg.Accounts.Profile)
	protected.Put("/update", cfg.Accounts.Update)
	protected.Delete("/delete", cfg.Accounts.Delete)
}
