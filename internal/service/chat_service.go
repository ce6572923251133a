package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/apperr"
	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/observability"
	"github.com/lumora-app/lumora-api/internal/repository"
)

// ChatService owns the support-conversation lifecycle: chat registry, ordered
// message store and the recomputed unread bookkeeping both sides rely on.
type ChatService interface {
	CreateChat(ctx context.Context, userID uint) (dto.ChatResponse, bool, error)
	GetChat(ctx context.Context, chatID uint) (dto.ChatResponse, error)
	ListChats(ctx context.Context, caller Identity, query dto.ChatListQuery) (dto.ChatListResponse, error)
	GetMessages(ctx context.Context, caller Identity, query dto.MessagePageQuery) (dto.MessagePageResponse, dto.UnreadCountResponse, error)
	SendMessage(ctx context.Context, sender Identity, req dto.MessageSendRequest) (SendMessageResult, error)
	CloseChat(ctx context.Context, chatID uint) (dto.ChatResponse, error)
	CountUnread(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error)
}

// SendMessageResult carries everything the caller needs to fan the write out:
// the persisted message, the chat summary and the recomputed unread counts of
// both sides.
type SendMessageResult struct {
	Chat            dto.ChatResponse
	Message         dto.MessageResponse
	ChatCreated     bool
	UnreadForAdmins int64
	UnreadForUser   int64
}

type chatService struct {
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChatService constructs the chat service.
func NewChatService(chats repository.ChatRepository, messages repository.MessageRepository, validate *validator.Validate, logger zerolog.Logger) ChatService {
	return &chatService{
		chats:     chats,
		messages:  messages,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/lumora-app/lumora-api/internal/service/chat"),
	}
}

// CreateChat opens a pending chat for the user, reusing an existing non-closed
// chat when one exists so a user never holds two open conversations.
func (s *chatService) CreateChat(ctx context.Context, userID uint) (dto.ChatResponse, bool, error) {
	if userID == 0 {
		return dto.ChatResponse{}, false, apperr.Validation("user id is required")
	}

	existing, err := s.chats.FindOpenByUser(ctx, userID)
	if err == nil {
		unread, countErr := s.messages.CountUnread(ctx, existing.ID, false)
		if countErr != nil {
			return dto.ChatResponse{}, false, countErr
		}
		return dto.NewChatResponse(existing, unread), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ChatResponse{}, false, err
	}

	chat := models.Chat{UserID: userID, Status: models.ChatStatusPending}
	if err := s.chats.Create(ctx, &chat); err != nil {
		return dto.ChatResponse{}, false, err
	}

	created, err := s.chats.FindByID(ctx, chat.ID)
	if err != nil {
		return dto.ChatResponse{}, false, err
	}

	s.logger.Info().Uint("chat_id", created.ID).Uint("user_id", userID).Msg("support chat created")

	return dto.NewChatResponse(created, 0), true, nil
}

func (s *chatService) GetChat(ctx context.Context, chatID uint) (dto.ChatResponse, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return dto.ChatResponse{}, err
	}

	unread, err := s.messages.CountUnread(ctx, chat.ID, false)
	if err != nil {
		return dto.ChatResponse{}, err
	}

	return dto.NewChatResponse(chat, unread), nil
}

// ListChats returns the caller's own chats for regular users and the full
// registry, optionally name-filtered, for admins. Every summary carries a
// freshly recomputed unread count for the caller's side.
func (s *chatService) ListChats(ctx context.Context, caller Identity, query dto.ChatListQuery) (dto.ChatListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.ChatListResponse{}, apperr.Validation(err.Error())
	}

	var (
		chats []models.Chat
		total int64
		err   error
	)
	if caller.Role.IsAdmin() {
		chats, total, err = s.chats.ListAll(ctx, query.Search, query.Page, query.Limit)
	} else {
		chats, total, err = s.chats.ListByUser(ctx, caller.UserID, query.Page, query.Limit)
	}
	if err != nil {
		return dto.ChatListResponse{}, err
	}

	summaries := make([]dto.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		// Unread from the caller's perspective: messages the opposing
		// side authored that nobody on this side has read yet.
		unread, countErr := s.messages.CountUnread(ctx, chat.ID, !caller.Role.IsAdmin())
		if countErr != nil {
			return dto.ChatListResponse{}, countErr
		}
		summaries = append(summaries, dto.NewChatResponse(chat, unread))
	}

	return dto.ChatListResponse{
		Chats:      summaries,
		Pagination: dto.NewPagination(query.Page, query.Limit, total),
	}, nil
}

// GetMessages returns one ascending page of the chat and, as a side effect,
// marks the opposing side's messages read. The returned unread count reports
// what the opposing side still has not seen of the caller's messages.
func (s *chatService) GetMessages(ctx context.Context, caller Identity, query dto.MessagePageQuery) (dto.MessagePageResponse, dto.UnreadCountResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.MessagePageResponse{}, dto.UnreadCountResponse{}, apperr.Validation(err.Error())
	}

	chat, err := s.findChat(ctx, query.ChatID)
	if err != nil {
		return dto.MessagePageResponse{}, dto.UnreadCountResponse{}, err
	}

	if _, err := s.messages.MarkRead(ctx, chat.ID, !caller.Role.IsAdmin()); err != nil {
		return dto.MessagePageResponse{}, dto.UnreadCountResponse{}, err
	}

	pending, err := s.messages.CountUnread(ctx, chat.ID, caller.Role.IsAdmin())
	if err != nil {
		return dto.MessagePageResponse{}, dto.UnreadCountResponse{}, err
	}

	messages, total, err := s.messages.ListByChat(ctx, chat.ID, query.Page, query.Limit)
	if err != nil {
		return dto.MessagePageResponse{}, dto.UnreadCountResponse{}, err
	}

	page := dto.MessagePageResponse{
		Messages:   dto.NewMessageResponseSlice(messages),
		Pagination: dto.NewPagination(query.Page, query.Limit, total),
	}
	unread := dto.UnreadCountResponse{ChatID: chat.ID, Role: string(caller.Role), Count: pending}

	return page, unread, nil
}

// SendMessage appends a message to a chat, creating a pending chat on a
// user's first contact. Closed chats reject the write with a conflict.
func (s *chatService) SendMessage(ctx context.Context, sender Identity, req dto.MessageSendRequest) (SendMessageResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return SendMessageResult{}, apperr.Validation(err.Error())
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(req.Text))
	if text == "" && len(req.Media) == 0 {
		return SendMessageResult{}, apperr.Validation("message requires text or media")
	}

	ctx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.Bool("chat.sender_is_admin", sender.Role.IsAdmin()),
	))
	defer span.End()

	chat, created, err := s.resolveChat(ctx, sender, req.ChatID)
	if err != nil {
		span.RecordError(err)
		return SendMessageResult{}, err
	}

	if chat.Closed() {
		return SendMessageResult{}, apperr.Conflict("chat is closed")
	}

	authorID := sender.UserID
	message := models.Message{
		ChatID:   chat.ID,
		AuthorID: &authorID,
		IsAdmin:  sender.Role.IsAdmin(),
		Text:     text,
		Media:    req.Media,
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		span.RecordError(err)
		return SendMessageResult{}, err
	}

	if err := s.chats.SetLastMessage(ctx, chat.ID, message.ID); err != nil {
		return SendMessageResult{}, err
	}

	// A pending chat becomes ongoing on the admin pool's first reply.
	if sender.Role.IsAdmin() && chat.Status == models.ChatStatusPending {
		if err := s.chats.UpdateStatus(ctx, chat.ID, models.ChatStatusOngoing); err != nil {
			return SendMessageResult{}, err
		}
	}

	populated, err := s.messages.FindByID(ctx, message.ID)
	if err != nil {
		return SendMessageResult{}, err
	}

	unreadForAdmins, err := s.messages.CountUnread(ctx, chat.ID, false)
	if err != nil {
		return SendMessageResult{}, err
	}
	unreadForUser, err := s.messages.CountUnread(ctx, chat.ID, true)
	if err != nil {
		return SendMessageResult{}, err
	}

	refreshed, err := s.chats.FindByID(ctx, chat.ID)
	if err != nil {
		return SendMessageResult{}, err
	}

	observability.ChatMessagesSent().WithLabelValues(string(sender.Role)).Inc()

	return SendMessageResult{
		Chat:            dto.NewChatResponse(refreshed, unreadForAdmins),
		Message:         dto.NewMessageResponse(populated),
		ChatCreated:     created,
		UnreadForAdmins: unreadForAdmins,
		UnreadForUser:   unreadForUser,
	}, nil
}

// CloseChat transitions a chat to closed. Closing an already-closed chat is a
// conflict and performs no mutation.
func (s *chatService) CloseChat(ctx context.Context, chatID uint) (dto.ChatResponse, error) {
	chat, err := s.findChat(ctx, chatID)
	if err != nil {
		return dto.ChatResponse{}, err
	}

	if chat.Closed() {
		return dto.ChatResponse{}, apperr.Conflict("chat already closed")
	}

	if err := s.chats.UpdateStatus(ctx, chat.ID, models.ChatStatusClosed); err != nil {
		return dto.ChatResponse{}, err
	}

	closed, err := s.chats.FindByID(ctx, chat.ID)
	if err != nil {
		return dto.ChatResponse{}, err
	}

	s.logger.Info().Uint("chat_id", chat.ID).Msg("support chat closed")

	return dto.NewChatResponse(closed, 0), nil
}

func (s *chatService) CountUnread(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error) {
	return s.messages.CountUnread(ctx, chatID, authoredByAdmin)
}

func (s *chatService) findChat(ctx context.Context, chatID uint) (models.Chat, error) {
	if chatID == 0 {
		return models.Chat{}, apperr.Validation("chat id is required")
	}

	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Chat{}, apperr.NotFound("chat not found")
		}
		return models.Chat{}, err
	}
	return chat, nil
}

// resolveChat locates the target chat for a send. Users without an explicit
// chat id fall back to their open chat, creating a pending one on first
// contact. Admins must always address an existing chat.
func (s *chatService) resolveChat(ctx context.Context, sender Identity, chatID *uint) (models.Chat, bool, error) {
	if chatID != nil {
		chat, err := s.findChat(ctx, *chatID)
		return chat, false, err
	}

	if sender.Role.IsAdmin() {
		return models.Chat{}, false, apperr.Validation("chat id is required")
	}

	chat, err := s.chats.FindOpenByUser(ctx, sender.UserID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Chat{}, false, err
	}

	fresh := models.Chat{UserID: sender.UserID, Status: models.ChatStatusPending}
	if err := s.chats.Create(ctx, &fresh); err != nil {
		return models.Chat{}, false, err
	}

	created, err := s.chats.FindByID(ctx, fresh.ID)
	if err != nil {
		return models.Chat{}, false, err
	}

	return created, true, nil
}
