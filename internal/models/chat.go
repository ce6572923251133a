package models

import (
	"time"

	"gorm.io/datatypes"
)

// Chat lifecycle statuses. A chat starts pending, moves to ongoing on the
// first admin reply and ends closed. Closed is terminal.
const (
	ChatStatusPending = "pending"
	ChatStatusOngoing = "ongoing"
	ChatStatusClosed  = "closed"
)

// Chat is one support conversation thread between an end-user and the admin
// pool. The last-message pointer is a weak reference: the message's lifetime
// is independent of the chat row.
type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	User          User      `json:"user"`
	Status        string    `gorm:"size:16;not null;default:pending;index" json:"status"`
	LastMessageID *uint     `json:"last_message_id,omitempty"`
	LastMessage   *Message  `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Closed reports whether the chat has reached its terminal status.
func (c Chat) Closed() bool {
	return c.Status == ChatStatusClosed
}

// Message is one unit of communication inside a chat. AuthorID is nullable to
// cover anonymous flows; Text may be empty for media-only messages.
type Message struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	ChatID    uint                        `gorm:"index;not null" json:"chat_id"`
	AuthorID  *uint                       `gorm:"index" json:"author_id,omitempty"`
	Author    *User                       `json:"author,omitempty"`
	IsAdmin   bool                        `gorm:"not null;default:false;index" json:"is_admin"`
	Text      string                      `gorm:"type:text" json:"text"`
	Media     datatypes.JSONSlice[string] `gorm:"type:json" json:"media"`
	IsRead    bool                        `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}
