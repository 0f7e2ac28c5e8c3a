package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/service"
)

// ServerDependencies bundles what the HTTP boundary needs.
type ServerDependencies struct {
	App        config.AppConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Users      repository.UserRepository
	Auth       *service.AuthService
	Tickets    *service.TicketService
	Friendship *service.FriendshipService
	// Readiness lists the dependencies probed by /health/ready.
	Readiness map[string]handlers.Pinger
}

// NewServer builds the fiber app with middlewares and routes registered.
func NewServer(deps ServerDependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               deps.App.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.App.RequestTimeout())

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.App.Name, deps.App.Version, deps.Readiness),
		Metrics:        handlers.NewMetricsHandler(deps.Metrics),
		Users:          handlers.NewUsersHandler(deps.Auth),
		Tickets:        handlers.NewTicketsHandler(deps.Tickets),
		Friends:        handlers.NewFriendsHandler(deps.Friendship),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Auth.TokenManager(), deps.Users),
	})
	return app
}
