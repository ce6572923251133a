package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/service"
	"github.com/lumora-app/lumora-api/internal/utils"
)

// NotificationHandler exposes the notification inbox and the admin broadcast
// endpoint.
type NotificationHandler struct {
	notifications service.NotificationService
	logger        zerolog.Logger
}

// NewNotificationHandler constructs the notification handler.
func NewNotificationHandler(notifications service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger.With().Str("component", "notification_handler").Logger(),
	}
}

// List pages through the caller's inbox.
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	query := dto.NotificationListQuery{
		Page:  parseQueryInt(c, "page", 1),
		Limit: parseQueryInt(c, "limit", 20),
	}

	list, err := h.notifications.List(c.UserContext(), identityFromContext(c), query)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "notifications retrieved", list)
}

// MarkAllRead flips every unread notification in the caller's inbox.
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	updated, err := h.notifications.MarkAllRead(c.UserContext(), identityFromContext(c))
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "notifications marked as read", fiber.Map{"updated": updated})
}

// Broadcast publishes a platform-wide announcement. Admin only.
func (h *NotificationHandler) Broadcast(c *fiber.Ctx) error {
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}

	notification, err := h.notifications.Broadcast(c.UserContext(), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "broadcast published", notification)
}
