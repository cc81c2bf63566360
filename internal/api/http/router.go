package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/leadcrm/internal/api/http/handlers"
	"github.com/spec-kit/leadcrm/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Leads          *handlers.LeadsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Get("/google/callback", cfg.Auth.GoogleCallback)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	session.Post("/logout", cfg.Auth.Logout)
	session.Get("/me", cfg.Auth.Me)
	session.Put("/profile", cfg.Auth.UpdateProfile)
	session.Post("/change-password", cfg.Auth.ChangePassword)
	session.Get("/google/connect-url", cfg.Auth.GoogleConnectURL)
	session.Post("/google/disconnect", cfg.Auth.GoogleDisconnect)

	leads := api.Group("/leads", cfg.AuthMiddleware.Handle)
	leads.Get("/", auth.RequirePermission(auth.ResourceLeads, auth.ActionRead), cfg.Leads.List)
	leads.Post("/", auth.RequirePermission(auth.ResourceLeads, auth.ActionCreate), cfg.Leads.Create)
	leads.Get("/:id", auth.RequirePermission(auth.ResourceLeads, auth.ActionRead), cfg.Leads.Get)
	leads.Put("/:id", auth.RequirePermission(auth.ResourceLeads, auth.ActionUpdate), cfg.Leads.Update)
	leads.Delete("/:id", auth.RequirePermission(auth.ResourceLeads, auth.ActionDelete), cfg.Leads.Delete)
	leads.Post("/:id/activities", auth.RequirePermission(auth.ResourceCommunications, auth.ActionCreate), cfg.Leads.AddActivity)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/users", auth.RequirePermission(auth.ResourceUsers, auth.ActionRead), cfg.Admin.ListUsers)
}
