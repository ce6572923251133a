package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumora-app/lumora-api/internal/handler"
	"github.com/lumora-app/lumora-api/internal/middleware"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/observability"
)

// Dependencies collects everything the router mounts.
type Dependencies struct {
	Health        *handler.HealthHandler
	Chats         *handler.ChatHandler
	Notifications *handler.NotificationHandler
	Gateway       *handler.GatewayHandler
	JWTSecret     string
}

// Register mounts every route of the support API.
func Register(app *fiber.App, deps Dependencies) {
	app.Get("/health", deps.Health.Live)
	app.Get("/ready", deps.Health.Ready)
	app.Get("/metrics", observability.MetricsHandler())

	// The websocket handshake authenticates itself; the JWT middleware would
	// reject browser clients that can only pass the token as a query param.
	app.Use("/ws", deps.Gateway.Upgrade)
	app.Get("/ws/support", deps.Gateway.Serve())

	api := app.Group("/api", middleware.JWTProtected(deps.JWTSecret))

	chats := api.Group("/chats")
	chats.Get("/", deps.Chats.List)
	chats.Get("/:id", deps.Chats.Get)
	chats.Get("/:id/messages", deps.Chats.Messages)
	chats.Post("/messages", middleware.RateLimit("chat_send", 30, time.Minute), deps.Chats.Send)
	chats.Post("/:id/close", middleware.RequireRole(models.RoleAdmin), deps.Chats.Close)
	chats.Get("/:id/suggestions", middleware.RequireRole(models.RoleAdmin), deps.Chats.Suggestions)

	notifications := api.Group("/notifications")
	notifications.Get("/", deps.Notifications.List)
	notifications.Post("/read", deps.Notifications.MarkAllRead)
	notifications.Post("/broadcast",
		middleware.RequireRole(models.RoleAdmin),
		middleware.RateLimit("broadcast", 5, time.Minute),
		deps.Notifications.Broadcast,
	)
}
