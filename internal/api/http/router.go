package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Friends        *handlers.FriendsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Users.Register)
	authGroup.Post("/signin", cfg.Users.Login)

	tasks := app.Group("/tasks", cfg.AuthMiddleware.Handle)
	tasks.Post("/", cfg.Tickets.CreateTicket)
	tasks.Get("/", cfg.Tickets.ListOpen)
	// Fixed segments before /:id.
	tasks.Get("/mine", cfg.Tickets.ListMine)
	tasks.Get("/created", cfg.Tickets.ListCreated)
	tasks.Get("/taken", cfg.Tickets.ListTaken)
	tasks.Get("/:id", cfg.Tickets.GetTicket)
	tasks.Get("/:id/history", cfg.Tickets.ListHistory)
	tasks.Post("/:id/claim", cfg.Tickets.ClaimTicket)
	tasks.Post("/:id/complete", cfg.Tickets.SubmitCompletion)
	tasks.Post("/:id/verify", cfg.Tickets.VerifyCompletion)

	friends := app.Group("/friends", cfg.AuthMiddleware.Handle)
	friends.Get("/", cfg.Friends.ListFriends)
	friends.Get("/requests", cfg.Friends.ListReceived)
	friends.Get("/requests/sent", cfg.Friends.ListSent)
	friends.Post("/:id/request", cfg.Friends.SendRequest)
	friends.Post("/:id/approve", cfg.Friends.ApproveRequest)
	friends.Post("/:id/reject", cfg.Friends.RejectRequest)

	users := app.Group("/users", cfg.AuthMiddleware.Handle)
	users.Get("/", cfg.Users.List)
	users.Get("/me", cfg.Users.Me)
}
