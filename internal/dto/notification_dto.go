package dto

import (
	"time"

	"github.com/lumora-app/lumora-api/internal/models"
)

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID              uint      `json:"id"`
	SenderID        *uint     `json:"sender_id,omitempty"`
	ReceiverID      *uint     `json:"receiver_id,omitempty"`
	IsReceiverAdmin bool      `json:"is_receiver_admin"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	ChatID          *uint     `json:"chat_id,omitempty"`
	StoryID         *uint     `json:"story_id,omitempty"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:              model.ID,
		SenderID:        model.SenderID,
		ReceiverID:      model.ReceiverID,
		IsReceiverAdmin: model.IsReceiverAdmin,
		Type:            model.Type,
		Title:           model.Title,
		Body:            model.Body,
		ChatID:          model.ChatID,
		StoryID:         model.StoryID,
		IsRead:          model.IsRead,
		CreatedAt:       model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of models to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// NotificationListQuery pages through a recipient's inbox.
type NotificationListQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// NotificationListResponse is the paginated inbox payload.
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Pagination    Pagination             `json:"pagination"`
}

// BroadcastRequest is the admin payload for a platform-wide announcement.
type BroadcastRequest struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
	Body  string `json:"body" validate:"required,min=1,max=2000"`
}
