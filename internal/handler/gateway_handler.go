package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/lumora-app/lumora-api/internal/middleware"
	"github.com/lumora-app/lumora-api/internal/service"
	"github.com/lumora-app/lumora-api/internal/utils"
)

// GatewayHandler upgrades authenticated HTTP requests to realtime gateway
// connections.
type GatewayHandler struct {
	gateway   *service.Gateway
	jwtSecret string
	baseCtx   context.Context
	logger    zerolog.Logger
}

// NewGatewayHandler constructs the websocket upgrade handler. baseCtx bounds
// the lifetime of all connections; cancelling it at shutdown stops dispatch.
func NewGatewayHandler(gateway *service.Gateway, jwtSecret string, baseCtx context.Context, logger zerolog.Logger) *GatewayHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &GatewayHandler{
		gateway:   gateway,
		jwtSecret: jwtSecret,
		baseCtx:   baseCtx,
		logger:    logger.With().Str("component", "gateway_handler").Logger(),
	}
}

// Upgrade guards the route: only genuine websocket upgrade requests carrying a
// valid token proceed to the connection handler. The identity is resolved here
// because fiber locals do not cross the upgrade boundary reliably.
func (h *GatewayHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.SendError(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	identity, err := h.authenticate(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, "invalid or missing token")
	}

	c.Locals("identity", identity)
	return c.Next()
}

// Serve is the post-upgrade connection handler.
func (h *GatewayHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		identity, ok := conn.Locals("identity").(service.Identity)
		if !ok {
			h.logger.Warn().Msg("websocket connection without identity, closing")
			_ = conn.Close()
			return
		}

		h.logger.Info().
			Uint("user_id", identity.UserID).
			Str("group", identity.Group()).
			Msg("gateway connection established")

		h.gateway.ServeConnection(conn, identity, h.baseCtx)
	})
}

// authenticate accepts the bearer header, falling back to a token query
// parameter because browser websocket clients cannot set headers.
func (h *GatewayHandler) authenticate(c *fiber.Ctx) (service.Identity, error) {
	token := ""
	if authorization := c.Get("Authorization"); authorization != "" {
		const bearer = "Bearer "
		if strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			token = strings.TrimSpace(authorization[len(bearer):])
		}
	}
	if token == "" {
		token = c.Query("token")
	}

	userID, role, err := middleware.DecodeIdentity(h.jwtSecret, token)
	if err != nil {
		return service.Identity{}, err
	}

	return service.Identity{UserID: userID, Role: service.ParseRole(role)}, nil
}
