package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumora-app/lumora-api/internal/apperr"
	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/observability"
	"github.com/lumora-app/lumora-api/internal/repository"
	"github.com/lumora-app/lumora-api/pkg/push"
)

const pushDispatchTimeout = 30 * time.Second

// EventNotification is the realtime event name used to surface fresh
// notifications to connected clients.
const EventNotification = "notification"

// Broadcaster is the narrow gateway capability injected into services that
// need to emit realtime events outside a connection handler.
type Broadcaster interface {
	ToGroup(group, event string, data any)
	ToAll(event string, data any)
}

// NotifyInput describes one notification to synthesize and fan out.
type NotifyInput struct {
	SenderID        *uint
	ReceiverID      *uint
	IsReceiverAdmin bool
	Type            string
	Title           string
	Body            string
	ChatID          *uint
	StoryID         *uint
	SkipPersist     bool
}

// NotificationService synthesizes, persists and fans out notifications:
// realtime events to connected clients, push delivery to offline devices.
type NotificationService interface {
	Notify(ctx context.Context, input NotifyInput) (dto.NotificationResponse, error)
	Broadcast(ctx context.Context, req dto.BroadcastRequest) (dto.NotificationResponse, error)
	List(ctx context.Context, caller Identity, query dto.NotificationListQuery) (dto.NotificationListResponse, error)
	MarkAllRead(ctx context.Context, caller Identity) (int64, error)
	SetBroadcaster(b Broadcaster)
}

type notificationService struct {
	repo        repository.NotificationRepository
	users       repository.UserRepository
	dispatcher  push.Dispatcher
	broadcaster Broadcaster
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewNotificationService constructs the notification service. The broadcaster
// is bound later because the gateway is built on top of this service.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, dispatcher push.Dispatcher, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	return &notificationService{
		repo:       repo,
		users:      users,
		dispatcher: dispatcher,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With().Str("component", "notification_service").Logger(),
		tracer:     otel.Tracer("github.com/lumora-app/lumora-api/internal/service/notification"),
	}
}

func (s *notificationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Notify persists the notification, emits it to the recipient's realtime
// group and dispatches a push to the recipient's devices in the background.
// Push failures never fail the triggering operation.
func (s *notificationService) Notify(ctx context.Context, input NotifyInput) (dto.NotificationResponse, error) {
	title, body, err := s.resolveContent(input)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	if input.Type == models.NotificationTypeSupportMessage && input.ChatID == nil {
		return dto.NotificationResponse{}, apperr.Validation("support-message notifications require a chat reference")
	}

	ctx, span := s.tracer.Start(ctx, "notifications.notify", trace.WithAttributes(
		attribute.String("notification.type", input.Type),
		attribute.Bool("notification.receiver_is_admin", input.IsReceiverAdmin),
	))
	defer span.End()

	model := models.Notification{
		SenderID:        input.SenderID,
		ReceiverID:      input.ReceiverID,
		IsReceiverAdmin: input.IsReceiverAdmin,
		Type:            input.Type,
		Title:           title,
		Body:            body,
		ChatID:          input.ChatID,
		StoryID:         input.StoryID,
	}

	if !input.SkipPersist {
		if err := s.repo.Create(ctx, &model); err != nil {
			span.RecordError(err)
			return dto.NotificationResponse{}, err
		}
	}

	response := dto.NewNotificationResponse(model)
	observability.NotificationsPublished().WithLabelValues(input.Type).Inc()

	if s.broadcaster != nil {
		if input.IsReceiverAdmin {
			s.broadcaster.ToGroup(AdminsGroup, EventNotification, response)
		} else if input.ReceiverID != nil {
			s.broadcaster.ToGroup(UserGroup(*input.ReceiverID), EventNotification, response)
		}
	}

	// Push only targets end-user devices; the admin pool is reached through
	// the realtime channel alone.
	if !input.IsReceiverAdmin && input.ReceiverID != nil {
		go s.dispatchPush(*input.ReceiverID, input.Type, title, body, input.ChatID)
	}

	return response, nil
}

// Broadcast persists a platform-wide announcement and emits it to every
// connected client.
func (s *notificationService) Broadcast(ctx context.Context, req dto.BroadcastRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NotificationResponse{}, apperr.Validation(err.Error())
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(req.Title))
	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Body))
	if title == "" || body == "" {
		return dto.NotificationResponse{}, apperr.Validation("broadcast content empty after sanitization")
	}

	model := models.Notification{
		Type:  models.NotificationTypeAdminBroadcast,
		Title: title,
		Body:  body,
	}
	if err := s.repo.Create(ctx, &model); err != nil {
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	observability.NotificationsPublished().WithLabelValues(model.Type).Inc()

	if s.broadcaster != nil {
		s.broadcaster.ToAll(EventNotification, response)
	}

	return response, nil
}

func (s *notificationService) List(ctx context.Context, caller Identity, query dto.NotificationListQuery) (dto.NotificationListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.NotificationListResponse{}, apperr.Validation(err.Error())
	}

	var (
		items []models.Notification
		total int64
		err   error
	)
	if caller.Role.IsAdmin() {
		items, total, err = s.repo.ListForAdmins(ctx, query.Page, query.Limit)
	} else {
		items, total, err = s.repo.ListForUser(ctx, caller.UserID, query.Page, query.Limit)
	}
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Notifications: dto.NewNotificationResponseSlice(items),
		Pagination:    dto.NewPagination(query.Page, query.Limit, total),
	}, nil
}

// MarkAllRead bulk-flips the caller's inbox, invoked when the inbox is opened.
func (s *notificationService) MarkAllRead(ctx context.Context, caller Identity) (int64, error) {
	if caller.Role.IsAdmin() {
		return s.repo.MarkAllReadForAdmins(ctx)
	}
	return s.repo.MarkAllReadForUser(ctx, caller.UserID)
}

func (s *notificationService) resolveContent(input NotifyInput) (string, string, error) {
	body := strings.TrimSpace(s.sanitizer.Sanitize(input.Body))

	switch input.Type {
	case models.NotificationTypeSupportMessage:
		return "Support Message", body, nil
	case models.NotificationTypeLike:
		return "New Like", body, nil
	case models.NotificationTypeComment:
		return "New Comment", body, nil
	case models.NotificationTypeShare:
		return "New Share", body, nil
	case models.NotificationTypeAdminBroadcast:
		title := strings.TrimSpace(s.sanitizer.Sanitize(input.Title))
		if title == "" {
			return "", "", apperr.Validation("broadcast notifications require a title")
		}
		return title, body, nil
	default:
		return "", "", apperr.Validation("unknown notification type")
	}
}

// dispatchPush runs in the background relative to the triggering request.
// Tokens the provider flags invalid are scrubbed from the user record; any
// failure here is logged and swallowed.
func (s *notificationService) dispatchPush(receiverID uint, notifType, title, body string, chatID *uint) {
	if s.dispatcher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pushDispatchTimeout)
	defer cancel()

	tokens, err := s.users.PushTokens(ctx, receiverID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("receiver_id", receiverID).Msg("failed to load push tokens")
		return
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{"type": notifType}
	if chatID != nil {
		data["chat_id"] = strconv.FormatUint(uint64(*chatID), 10)
	}

	report, err := s.dispatcher.Send(ctx, push.Message{
		Title:  title,
		Body:   body,
		Tokens: tokens,
		Data:   data,
	})
	if err != nil {
		observability.PushFailures().Inc()
		s.logger.Warn().Err(err).Uint("receiver_id", receiverID).Msg("push dispatch failed")
		return
	}

	if len(report.InvalidTokens) > 0 {
		if err := s.users.RemovePushTokens(ctx, receiverID, report.InvalidTokens); err != nil {
			s.logger.Warn().Err(err).Uint("receiver_id", receiverID).Msg("failed to scrub invalid push tokens")
		}
	}
}
