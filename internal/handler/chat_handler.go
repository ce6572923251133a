package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/service"
	"github.com/lumora-app/lumora-api/internal/utils"
)

// ChatHandler exposes the REST surface of the support chat subsystem. The
// realtime gateway covers the interactive flows; these endpoints back the
// inbox views and admin tooling.
type ChatHandler struct {
	chats       service.ChatService
	media       service.MediaService
	suggestions service.SuggestionService
	logger      zerolog.Logger
}

// NewChatHandler constructs the chat handler.
func NewChatHandler(chats service.ChatService, media service.MediaService, suggestions service.SuggestionService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chats:       chats,
		media:       media,
		suggestions: suggestions,
		logger:      logger.With().Str("component", "chat_handler").Logger(),
	}
}

// List returns the caller's chats: admins see every conversation, users only
// their own.
func (h *ChatHandler) List(c *fiber.Ctx) error {
	query := dto.ChatListQuery{
		Page:   parseQueryInt(c, "page", 1),
		Limit:  parseQueryInt(c, "limit", 20),
		Search: c.Query("search"),
	}

	list, err := h.chats.ListChats(c.UserContext(), identityFromContext(c), query)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "chats retrieved", list)
}

// Get returns a single chat summary.
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	chatID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid chat id")
	}

	chat, err := h.chats.GetChat(c.UserContext(), chatID)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "chat retrieved", chat)
}

// Messages returns one ascending page of a chat's messages and marks the
// opposing side's messages as read.
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	chatID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid chat id")
	}

	query := dto.MessagePageQuery{
		ChatID: chatID,
		Page:   parseQueryInt(c, "page", 1),
		Limit:  parseQueryInt(c, "limit", 20),
	}

	page, unread, err := h.chats.GetMessages(c.UserContext(), identityFromContext(c), query)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "messages retrieved", fiber.Map{
		"messages":   page.Messages,
		"pagination": page.Pagination,
		"unread":     unread,
	})
}

// Send appends a message over REST. Attachments arrive as multipart files and
// are stored before the message is persisted.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req dto.MessageSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid request body")
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		files := form.File["media"]
		if len(files) > 0 {
			urls, err := h.media.Upload(c.UserContext(), files)
			if err != nil {
				return utils.SendAppError(c, err)
			}
			req.Media = append(req.Media, urls...)
		}
	}

	result, err := h.chats.SendMessage(c.UserContext(), identityFromContext(c), req)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", fiber.Map{
		"chat":    result.Chat,
		"message": result.Message,
	})
}

// Close transitions a chat to its terminal state. Admin only.
func (h *ChatHandler) Close(c *fiber.Ctx) error {
	chatID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid chat id")
	}

	chat, err := h.chats.CloseChat(c.UserContext(), chatID)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "chat closed", chat)
}

// Suggestions proposes candidate admin replies from recent chat context.
func (h *ChatHandler) Suggestions(c *fiber.Ctx) error {
	chatID, err := parseParamUint(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "invalid chat id")
	}

	limit := parseQueryInt(c, "limit", 3)
	suggestions, err := h.suggestions.SuggestReplies(c.UserContext(), chatID, limit)
	if err != nil {
		return utils.SendAppError(c, err)
	}

	return utils.SendSuccess(c, "suggestions generated", fiber.Map{"suggestions": suggestions})
}
