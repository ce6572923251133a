package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error)
	ListForAdmins(ctx context.Context, page, limit int) ([]models.Notification, int64, error)
	MarkAllReadForUser(ctx context.Context, userID uint) (int64, error)
	MarkAllReadForAdmins(ctx context.Context) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListForUser returns targeted notifications plus admin broadcasts, newest first.
func (r *notificationRepository) ListForUser(ctx context.Context, userID uint, page, limit int) ([]models.Notification, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? OR type = ?", userID, models.NotificationTypeAdminBroadcast)
	return r.list(query, page, limit)
}

func (r *notificationRepository) ListForAdmins(ctx context.Context, page, limit int) ([]models.Notification, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_receiver_admin = ?", true)
	return r.list(query, page, limit)
}

func (r *notificationRepository) list(query *gorm.DB, page, limit int) ([]models.Notification, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Scopes(Paginate(page, limit)).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *notificationRepository) MarkAllReadForUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) MarkAllReadForAdmins(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_receiver_admin = ? AND is_read = ?", true, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
