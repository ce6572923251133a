package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/models"
)

// MessageRepository owns the ordered messages of a chat plus the read/unread
// bookkeeping both sides rely on. Unread counts are always recomputed from
// rows, never maintained as a stored counter.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id uint) (models.Message, error)
	ListByChat(ctx context.Context, chatID uint, page, limit int) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error)
	CountUnread(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).Preload("Author").First(&message, id).Error; err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID uint, page, limit int) ([]models.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("chat_id = ?", chatID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Oldest first for causal display.
	var messages []models.Message
	err := query.
		Preload("Author").
		Order("created_at ASC, id ASC").
		Scopes(Paginate(page, limit)).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_id = ? AND is_admin = ? AND is_read = ?", chatID, authoredByAdmin, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *messageRepository) CountUnread(ctx context.Context, chatID uint, authoredByAdmin bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_id = ? AND is_admin = ? AND is_read = ?", chatID, authoredByAdmin, false).
		Count(&count).Error
	return count, err
}
