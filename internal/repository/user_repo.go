package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/models"
)

// UserRepository exposes the minimal account access the support subsystem
// needs: author lookups and push-token maintenance.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	PushTokens(ctx context.Context, userID uint) ([]string, error)
	RemovePushTokens(ctx context.Context, userID uint, stale []string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) PushTokens(ctx context.Context, userID uint) ([]string, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.PushTokens, nil
}

// RemovePushTokens scrubs device tokens the push service reported invalid.
func (r *userRepository) RemovePushTokens(ctx context.Context, userID uint, stale []string) error {
	if len(stale) == 0 {
		return nil
	}

	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	invalid := make(map[string]struct{}, len(stale))
	for _, token := range stale {
		invalid[token] = struct{}{}
	}

	kept := make([]string, 0, len(user.PushTokens))
	for _, token := range user.PushTokens {
		if _, drop := invalid[token]; !drop {
			kept = append(kept, token)
		}
	}

	if len(kept) == len(user.PushTokens) {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("push_tokens", datatypes.NewJSONSlice(kept)).Error
}
