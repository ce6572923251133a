package models

import "time"

// Notification types understood by the fan-out pipeline.
const (
	NotificationTypeAdminBroadcast = "admin-broadcast"
	NotificationTypeLike           = "like"
	NotificationTypeComment        = "comment"
	NotificationTypeShare          = "share"
	NotificationTypeSupportMessage = "support-message"
)

// Notification is a persisted, optionally push-delivered alert. ReceiverID is
// nil when the notification addresses the admin pool or, for admin
// broadcasts, every user. Chat and Story are weak back-references without
// cascading deletes.
type Notification struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SenderID        *uint     `gorm:"index" json:"sender_id,omitempty"`
	ReceiverID      *uint     `gorm:"index" json:"receiver_id,omitempty"`
	IsReceiverAdmin bool      `gorm:"not null;default:false;index" json:"is_receiver_admin"`
	Type            string    `gorm:"size:32;index" json:"type"`
	Title           string    `gorm:"size:255" json:"title"`
	Body            string    `gorm:"type:text" json:"body"`
	ChatID          *uint     `gorm:"index" json:"chat_id,omitempty"`
	StoryID         *uint     `gorm:"index" json:"story_id,omitempty"`
	IsRead          bool      `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}
