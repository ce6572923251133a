package service_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/apperr"
	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/internal/models"
	"github.com/lumora-app/lumora-api/internal/repository"
	"github.com/lumora-app/lumora-api/internal/service"
)

var dbSequence int

func setupChatService(t *testing.T) (service.ChatService, *gorm.DB) {
	t.Helper()

	dbSequence++
	dsn := fmt.Sprintf("file:chat_service_%d?mode=memory&cache=shared", dbSequence)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Chat{}, &models.Message{}))

	chats := repository.NewChatRepository(db)
	messages := repository.NewMessageRepository(db)

	return service.NewChatService(chats, messages, validator.New(), zerolog.New(io.Discard)), db
}

func seedUser(t *testing.T, db *gorm.DB, name, role string) models.User {
	t.Helper()

	user := models.User{Name: name, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func userIdentity(user models.User) service.Identity {
	return service.Identity{UserID: user.ID, Role: service.ParseRole(user.Role)}
}

func TestCreateChatStartsPending(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	chat, created, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, models.ChatStatusPending, chat.Status)
	require.Equal(t, user.ID, chat.User.ID)
}

func TestCreateChatReusesOpenChat(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	first, created, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
}

func TestCreateChatAfterCloseOpensFreshChat(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	first, _, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)

	_, err = svc.CloseChat(context.Background(), first.ID)
	require.NoError(t, err)

	second, created, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, first.ID, second.ID)
}

func TestSendMessageCreatesChatOnFirstContact(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	result, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{
		Text: "hello, I need help",
	})
	require.NoError(t, err)
	require.True(t, result.ChatCreated)
	require.Equal(t, models.ChatStatusPending, result.Chat.Status)
	require.NotNil(t, result.Chat.LastMessage)
	require.Equal(t, result.Message.ID, result.Chat.LastMessage.ID)
	require.Equal(t, int64(1), result.UnreadForAdmins)
	require.Equal(t, int64(0), result.UnreadForUser)
}

func TestSendMessageRequiresContent(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	_, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))
}

func TestSendMessageSanitizesMarkup(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	result, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{
		Text: `hi <script>alert("x")</script>there`,
	})
	require.NoError(t, err)
	require.NotContains(t, result.Message.Text, "<script>")
	require.Contains(t, result.Message.Text, "hi")
}

func TestAdminReplyMovesPendingToOngoing(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	opened, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{Text: "help"})
	require.NoError(t, err)

	chatID := opened.Chat.ID
	result, err := svc.SendMessage(context.Background(), userIdentity(admin), dto.MessageSendRequest{
		ChatID: &chatID,
		Text:   "on it",
	})
	require.NoError(t, err)
	require.Equal(t, models.ChatStatusOngoing, result.Chat.Status)
	require.True(t, result.Message.IsAdmin)
}

func TestAdminSendRequiresChatID(t *testing.T) {
	svc, db := setupChatService(t)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	_, err := svc.SendMessage(context.Background(), userIdentity(admin), dto.MessageSendRequest{Text: "hi"})
	require.Error(t, err)
	require.Equal(t, 422, apperr.StatusOf(err))
}

func TestSendMessageToClosedChatConflicts(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	opened, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{Text: "help"})
	require.NoError(t, err)

	_, err = svc.CloseChat(context.Background(), opened.Chat.ID)
	require.NoError(t, err)

	chatID := opened.Chat.ID
	_, err = svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{
		ChatID: &chatID,
		Text:   "still there?",
	})
	require.Error(t, err)
	require.Equal(t, 409, apperr.StatusOf(err))
	require.Equal(t, "chat is closed", apperr.MessageOf(err))
}

func TestCloseChatTwiceConflicts(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	opened, _, err := svc.CreateChat(context.Background(), user.ID)
	require.NoError(t, err)

	closed, err := svc.CloseChat(context.Background(), opened.ID)
	require.NoError(t, err)
	require.Equal(t, models.ChatStatusClosed, closed.Status)

	_, err = svc.CloseChat(context.Background(), opened.ID)
	require.Error(t, err)
	require.Equal(t, 409, apperr.StatusOf(err))
}

func TestCloseChatNotFound(t *testing.T) {
	svc, _ := setupChatService(t)

	_, err := svc.CloseChat(context.Background(), 999)
	require.Error(t, err)
	require.Equal(t, 404, apperr.StatusOf(err))
}

func TestGetMessagesReturnsAscendingOrder(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	var chatID uint
	for i := 1; i <= 5; i++ {
		result, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{
			Text: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
		chatID = result.Chat.ID
	}

	page, _, err := svc.GetMessages(context.Background(), userIdentity(user), dto.MessagePageQuery{ChatID: chatID})
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	for i, message := range page.Messages {
		require.Equal(t, fmt.Sprintf("message %d", i+1), message.Text)
	}
}

func TestGetMessagesMarksOpposingSideRead(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	opened, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{Text: "first"})
	require.NoError(t, err)
	chatID := opened.Chat.ID

	_, err = svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{ChatID: &chatID, Text: "second"})
	require.NoError(t, err)

	unread, err := svc.CountUnread(context.Background(), chatID, false)
	require.NoError(t, err)
	require.Equal(t, int64(2), unread)

	// Admin opens the conversation: user-authored messages flip to read.
	_, _, err = svc.GetMessages(context.Background(), userIdentity(admin), dto.MessagePageQuery{ChatID: chatID})
	require.NoError(t, err)

	unread, err = svc.CountUnread(context.Background(), chatID, false)
	require.NoError(t, err)
	require.Equal(t, int64(0), unread)

	// Re-reading is idempotent.
	_, _, err = svc.GetMessages(context.Background(), userIdentity(admin), dto.MessagePageQuery{ChatID: chatID})
	require.NoError(t, err)

	unread, err = svc.CountUnread(context.Background(), chatID, false)
	require.NoError(t, err)
	require.Equal(t, int64(0), unread)
}

func TestGetMessagesReportsCallerSidePending(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	opened, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{Text: "ping"})
	require.NoError(t, err)
	chatID := opened.Chat.ID

	_, err = svc.SendMessage(context.Background(), userIdentity(admin), dto.MessageSendRequest{ChatID: &chatID, Text: "pong"})
	require.NoError(t, err)

	// The user opens the chat: admin messages become read, and the returned
	// count reports the user's own messages the admin pool has not seen.
	_, unread, err := svc.GetMessages(context.Background(), userIdentity(user), dto.MessagePageQuery{ChatID: chatID})
	require.NoError(t, err)
	require.Equal(t, string(service.RoleUser), unread.Role)
	require.Equal(t, int64(1), unread.Count)

	adminUnread, err := svc.CountUnread(context.Background(), chatID, true)
	require.NoError(t, err)
	require.Equal(t, int64(0), adminUnread)
}

func TestGetMessagesPagination(t *testing.T) {
	svc, db := setupChatService(t)
	user := seedUser(t, db, "Ana", models.RoleUser)

	var chatID uint
	for i := 0; i < 7; i++ {
		result, err := svc.SendMessage(context.Background(), userIdentity(user), dto.MessageSendRequest{
			Text: fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
		chatID = result.Chat.ID
	}

	page, _, err := svc.GetMessages(context.Background(), userIdentity(user), dto.MessagePageQuery{
		ChatID: chatID,
		Page:   2,
		Limit:  3,
	})
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)
	require.Equal(t, int64(7), page.Pagination.Total)
	require.Equal(t, 3, page.Pagination.TotalPages)
	require.Equal(t, "m3", page.Messages[0].Text)
}

func TestListChatsScopesToCaller(t *testing.T) {
	svc, db := setupChatService(t)
	ana := seedUser(t, db, "Ana", models.RoleUser)
	bob := seedUser(t, db, "Bob", models.RoleUser)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	_, err := svc.SendMessage(context.Background(), userIdentity(ana), dto.MessageSendRequest{Text: "from ana"})
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), userIdentity(bob), dto.MessageSendRequest{Text: "from bob"})
	require.NoError(t, err)

	mine, err := svc.ListChats(context.Background(), userIdentity(ana), dto.ChatListQuery{})
	require.NoError(t, err)
	require.Len(t, mine.Chats, 1)
	require.Equal(t, ana.ID, mine.Chats[0].User.ID)

	all, err := svc.ListChats(context.Background(), userIdentity(admin), dto.ChatListQuery{})
	require.NoError(t, err)
	require.Len(t, all.Chats, 2)
	for _, chat := range all.Chats {
		require.Equal(t, int64(1), chat.UnreadMessages)
	}
}

func TestListChatsSearchFiltersByName(t *testing.T) {
	svc, db := setupChatService(t)
	ana := seedUser(t, db, "Ana Gomez", models.RoleUser)
	bob := seedUser(t, db, "Bob Stone", models.RoleUser)
	admin := seedUser(t, db, "Root", models.RoleAdmin)

	_, err := svc.SendMessage(context.Background(), userIdentity(ana), dto.MessageSendRequest{Text: "hi"})
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), userIdentity(bob), dto.MessageSendRequest{Text: "hi"})
	require.NoError(t, err)

	filtered, err := svc.ListChats(context.Background(), userIdentity(admin), dto.ChatListQuery{
		Search: strings.ToUpper("gomez"),
	})
	require.NoError(t, err)
	require.Len(t, filtered.Chats, 1)
	require.Equal(t, ana.ID, filtered.Chats[0].User.ID)
}

func TestGetChatNotFound(t *testing.T) {
	svc, _ := setupChatService(t)

	_, err := svc.GetChat(context.Background(), 404)
	require.Error(t, err)
	require.Equal(t, 404, apperr.StatusOf(err))
}
