package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/models"
)

// ChatRepository owns chat rows: lifecycle status, last-message pointer and
// the role-scoped listings.
type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	FindByID(ctx context.Context, id uint) (models.Chat, error)
	FindOpenByUser(ctx context.Context, userID uint) (models.Chat, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	SetLastMessage(ctx context.Context, chatID, messageID uint) error
	ListByUser(ctx context.Context, userID uint, page, limit int) ([]models.Chat, int64, error)
	ListAll(ctx context.Context, search string, page, limit int) ([]models.Chat, int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	return r.db.WithContext(ctx).Create(chat).Error
}

func (r *chatRepository) FindByID(ctx context.Context, id uint) (models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("LastMessage").
		First(&chat, id).Error
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *chatRepository) FindOpenByUser(ctx context.Context, userID uint) (models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("LastMessage").
		Where("user_id = ? AND status <> ?", userID, models.ChatStatusClosed).
		Order("updated_at DESC").
		First(&chat).Error
	if err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

func (r *chatRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *chatRepository) SetLastMessage(ctx context.Context, chatID, messageID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("last_message_id", messageID).Error
}

func (r *chatRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]models.Chat, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Chat{}).Where("user_id = ?", userID)
	return r.list(ctx, query, page, limit)
}

func (r *chatRepository) ListAll(ctx context.Context, search string, page, limit int) ([]models.Chat, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Chat{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.
			Joins("JOIN users ON users.id = chats.user_id").
			Where("LOWER(users.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return r.list(ctx, query, page, limit)
}

func (r *chatRepository) list(ctx context.Context, query *gorm.DB, page, limit int) ([]models.Chat, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var chats []models.Chat
	err := query.
		Preload("User").
		Preload("LastMessage").
		Order("chats.updated_at DESC").
		Scopes(Paginate(page, limit)).
		Find(&chats).Error
	if err != nil {
		return nil, 0, err
	}

	return chats, total, nil
}
