package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lumora-app/lumora-api/internal/apperr"
	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/service"
	"github.com/lumora-app/lumora-api/pkg/push"
)

type stubNotificationRepo struct {
	mu      sync.Mutex
	created []models.Notification
	nextID  uint
}

func (s *stubNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	notification.ID = s.nextID
	notification.CreatedAt = time.Now()
	s.created = append(s.created, *notification)
	return nil
}

func (s *stubNotificationRepo) ListForUser(_ context.Context, userID uint, _, _ int) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, item := range s.created {
		if (item.ReceiverID != nil && *item.ReceiverID == userID) || item.Type == models.NotificationTypeAdminBroadcast {
			out = append(out, item)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubNotificationRepo) ListForAdmins(_ context.Context, _, _ int) ([]models.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, item := range s.created {
		if item.IsReceiverAdmin {
			out = append(out, item)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubNotificationRepo) MarkAllReadForUser(context.Context, uint) (int64, error) {
	return 2, nil
}

func (s *stubNotificationRepo) MarkAllReadForAdmins(context.Context) (int64, error) {
	return 3, nil
}

type stubUserRepo struct {
	mu      sync.Mutex
	tokens  map[uint][]string
	removed map[uint][]string
}

func (s *stubUserRepo) FindByID(_ context.Context, id uint) (models.User, error) {
	return models.User{ID: id}, nil
}

func (s *stubUserRepo) PushTokens(_ context.Context, userID uint) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID], nil
}

func (s *stubUserRepo) RemovePushTokens(_ context.Context, userID uint, stale []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed == nil {
		s.removed = make(map[uint][]string)
	}
	s.removed[userID] = append(s.removed[userID], stale...)
	return nil
}

type stubDispatcher struct {
	mu      sync.Mutex
	sent    []push.Message
	report  push.Report
	sendErr error
}

func (s *stubDispatcher) Send(_ context.Context, message push.Message) (push.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, message)
	return s.report, s.sendErr
}

func (s *stubDispatcher) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	group  []string
	events []string
	toAll  int
}

func (r *recordingBroadcaster) ToGroup(group, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.group = append(r.group, group)
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) ToAll(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toAll++
	r.events = append(r.events, event)
}

func setupNotificationService(dispatcher push.Dispatcher) (service.NotificationService, *stubNotificationRepo, *stubUserRepo, *recordingBroadcaster) {
	repo := &stubNotificationRepo{}
	users := &stubUserRepo{tokens: map[uint][]string{}}
	svc := service.NewNotificationService(repo, users, dispatcher, validator.New(), zerolog.New(io.Discard))
	broadcaster := &recordingBroadcaster{}
	svc.SetBroadcaster(broadcaster)
	return svc, repo, users, broadcaster
}

func TestNotifyResolvesSupportMessageTitle(t *testing.T) {
	svc, repo, _, broadcaster := setupNotificationService(nil)

	sender := uint(1)
	receiver := uint(2)
	chatID := uint(9)

	response, err := svc.Notify(context.Background(), service.NotifyInput{
		SenderID:   &sender,
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "hello there",
		ChatID:     &chatID,
	})
	require.NoError(t, err)
	require.Equal(t, "Support Message", response.Title)
	require.Equal(t, "hello there", response.Body)
	require.Len(t, repo.created, 1)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.Equal(t, []string{service.UserGroup(receiver)}, broadcaster.group)
	require.Equal(t, []string{service.EventNotification}, broadcaster.events)
}

func TestNotifySupportMessageRequiresChat(t *testing.T) {
	svc, _, _, _ := setupNotificationService(nil)

	receiver := uint(2)
	_, err := svc.Notify(context.Background(), service.NotifyInput{
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "hello",
	})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))
}

func TestNotifyRejectsUnknownType(t *testing.T) {
	svc, _, _, _ := setupNotificationService(nil)

	_, err := svc.Notify(context.Background(), service.NotifyInput{Type: "poke", Body: "hi"})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))
}

func TestNotifyAdminRecipientSkipsPush(t *testing.T) {
	dispatcher := &stubDispatcher{}
	svc, _, _, broadcaster := setupNotificationService(dispatcher)

	chatID := uint(3)
	_, err := svc.Notify(context.Background(), service.NotifyInput{
		IsReceiverAdmin: true,
		Type:            models.NotificationTypeSupportMessage,
		Body:            "user wrote in",
		ChatID:          &chatID,
	})
	require.NoError(t, err)

	broadcaster.mu.Lock()
	require.Equal(t, []string{service.AdminsGroup}, broadcaster.group)
	broadcaster.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, dispatcher.sentCount())
}

func TestNotifyDispatchesPushToUserDevices(t *testing.T) {
	dispatcher := &stubDispatcher{}
	svc, _, users, _ := setupNotificationService(dispatcher)

	receiver := uint(7)
	users.tokens[receiver] = []string{"token-a", "token-b"}
	chatID := uint(4)

	_, err := svc.Notify(context.Background(), service.NotifyInput{
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "admin replied",
		ChatID:     &chatID,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dispatcher.sentCount() == 1
	}, time.Second, 10*time.Millisecond)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.Equal(t, []string{"token-a", "token-b"}, dispatcher.sent[0].Tokens)
	require.Equal(t, "Support Message", dispatcher.sent[0].Title)
	require.Equal(t, models.NotificationTypeSupportMessage, dispatcher.sent[0].Data["type"])
	require.Equal(t, "4", dispatcher.sent[0].Data["chat_id"])
}

func TestNotifyScrubsInvalidTokens(t *testing.T) {
	dispatcher := &stubDispatcher{report: push.Report{Success: 1, Failure: 1, InvalidTokens: []string{"stale"}}}
	svc, _, users, _ := setupNotificationService(dispatcher)

	receiver := uint(7)
	users.tokens[receiver] = []string{"fresh", "stale"}
	chatID := uint(4)

	_, err := svc.Notify(context.Background(), service.NotifyInput{
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "ping",
		ChatID:     &chatID,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		users.mu.Lock()
		defer users.mu.Unlock()
		return len(users.removed[receiver]) == 1 && users.removed[receiver][0] == "stale"
	}, time.Second, 10*time.Millisecond)
}

func TestNotifySurvivesPushFailure(t *testing.T) {
	dispatcher := &stubDispatcher{sendErr: errors.New("provider down")}
	svc, repo, users, _ := setupNotificationService(dispatcher)

	receiver := uint(7)
	users.tokens[receiver] = []string{"token"}
	chatID := uint(4)

	_, err := svc.Notify(context.Background(), service.NotifyInput{
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "still persisted",
		ChatID:     &chatID,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	require.Eventually(t, func() bool {
		return dispatcher.sentCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	svc, repo, _, broadcaster := setupNotificationService(nil)

	response, err := svc.Broadcast(context.Background(), dto.BroadcastRequest{
		Title: "Maintenance",
		Body:  "Back in one hour",
	})
	require.NoError(t, err)
	require.Equal(t, models.NotificationTypeAdminBroadcast, response.Type)
	require.Equal(t, "Maintenance", response.Title)
	require.Len(t, repo.created, 1)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	require.Equal(t, 1, broadcaster.toAll)
}

func TestBroadcastRejectsEmptyContent(t *testing.T) {
	svc, _, _, _ := setupNotificationService(nil)

	_, err := svc.Broadcast(context.Background(), dto.BroadcastRequest{Title: "", Body: ""})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))

	_, err = svc.Broadcast(context.Background(), dto.BroadcastRequest{
		Title: "<script>x</script>",
		Body:  "body",
	})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))
}

func TestListScopesInboxByRole(t *testing.T) {
	svc, repo, _, _ := setupNotificationService(nil)

	receiver := uint(5)
	chatID := uint(1)
	_, err := svc.Notify(context.Background(), service.NotifyInput{
		ReceiverID: &receiver,
		Type:       models.NotificationTypeSupportMessage,
		Body:       "for the user",
		ChatID:     &chatID,
	})
	require.NoError(t, err)
	_, err = svc.Notify(context.Background(), service.NotifyInput{
		IsReceiverAdmin: true,
		Type:            models.NotificationTypeSupportMessage,
		Body:            "for the admins",
		ChatID:          &chatID,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 2)

	userInbox, err := svc.List(context.Background(), service.Identity{UserID: receiver, Role: service.RoleUser}, dto.NotificationListQuery{})
	require.NoError(t, err)
	require.Len(t, userInbox.Notifications, 1)
	require.Equal(t, "for the user", userInbox.Notifications[0].Body)

	adminInbox, err := svc.List(context.Background(), service.Identity{UserID: 1, Role: service.RoleAdmin}, dto.NotificationListQuery{})
	require.NoError(t, err)
	require.Len(t, adminInbox.Notifications, 1)
	require.Equal(t, "for the admins", adminInbox.Notifications[0].Body)
}

func TestMarkAllReadRoutesByRole(t *testing.T) {
	svc, _, _, _ := setupNotificationService(nil)

	userUpdated, err := svc.MarkAllRead(context.Background(), service.Identity{UserID: 5, Role: service.RoleUser})
	require.NoError(t, err)
	require.Equal(t, int64(2), userUpdated)

	adminUpdated, err := svc.MarkAllRead(context.Background(), service.Identity{UserID: 1, Role: service.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, int64(3), adminUpdated)
}
