package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/api/http/handlers"
	"github.com/spec-kit/leadcrm/internal/auth"
	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/events"
	"github.com/spec-kit/leadcrm/internal/observability"
	"github.com/spec-kit/leadcrm/internal/persistence"
	"github.com/spec-kit/leadcrm/internal/repository"
	"github.com/spec-kit/leadcrm/internal/service"
)

// Dependencies are the collaborators the sandbox server is assembled from.
type Dependencies struct {
	Users       repository.UserRepository
	Leads       repository.LeadRepository
	Revocations persistence.KeyValueStore
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Readiness   map[string]handlers.Pinger
}

// Server is the assembled sandbox API.
type Server struct {
	App   *fiber.App
	Auth  *service.AuthService
	Leads *service.LeadService
}

// NewServer builds the fiber app with its services, middleware and routes.
func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	logger = observability.OrNop(logger)
	if deps.Revocations == nil {
		deps.Revocations = persistence.NewMemoryStore()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewInMemoryDispatcher()
	}

	revocations := service.NewRevocationList(deps.Revocations)
	authService := service.NewAuthService(cfg.Sandbox, service.AuthDependencies{
		UserRepo:    deps.Users,
		Revocations: revocations,
		Logger:      logger,
	})
	leadService := service.NewLeadService(service.LeadDependencies{
		LeadRepo:   deps.Leads,
		UserRepo:   deps.Users,
		Dispatcher: deps.Dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), deps.Users, revocations)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name + "-sandbox",
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, deps.Metrics, cfg.Sandbox.RequestTimeout())

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name+"-sandbox", cfg.App.Version, deps.Readiness),
		Auth:           handlers.NewAuthHandler(authService),
		Leads:          handlers.NewLeadsHandler(leadService),
		Admin:          handlers.NewAdminHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	return &Server{App: app, Auth: authService, Leads: leadService}
}
