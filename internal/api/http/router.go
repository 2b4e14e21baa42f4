package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Accounts       *handlers.AccountsHandler
	Sellers        *handlers.SellersHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/buyers/register", cfg.Auth.RegisterBuyer)
	authGroup.Post("/sellers/register", cfg.Auth.RegisterSeller)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	authenticated := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	authenticated.Post("/logout", cfg.Auth.Logout)
	authenticated.Post("/password/change", cfg.Auth.ChangePassword)

	accounts := app.Group("/accounts", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	accounts.Get("/me", cfg.Accounts.Me)

	sellers := app.Group("/sellers/me", cfg.AuthMiddleware.Handle, auth.RequireSeller())
	sellers.Get("/verification", cfg.Sellers.MyVerification)
	sellers.Post("/verification/resubmit", cfg.Sellers.Resubmit)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/sellers", cfg.Admin.ListSellers)
	admin.Post("/sellers/:id/verify", cfg.Admin.VerifySeller)
	admin.Post("/sellers/:id/reject", cfg.Admin.RejectSeller)
	admin.Post("/sellers/:id/suspend", cfg.Admin.SuspendSeller)
	admin.Post("/sellers/:id/reinstate", cfg.Admin.ReinstateSeller)
	admin.Get("/accounts/:id", cfg.Admin.GetAccount)
	admin.Post("/accounts/:id/unlock", cfg.Admin.Unlock)
	admin.Post("/accounts/:id/activate", cfg.Admin.Activate)
	admin.Post("/accounts/:id/deactivate", cfg.Admin.Deactivate)
}
