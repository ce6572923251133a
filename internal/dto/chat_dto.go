package dto

import (
	"time"

	"github.com/lumora-app/lumora-api/internal/models"
)

// Pagination describes the envelope attached to every paginated response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPagination normalises page/limit and derives the page count.
func NewPagination(page, limit int, total int64) Pagination {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// UserSummary is the minimal author projection attached to messages and chats.
type UserSummary struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// NewUserSummary converts a user model into its projection.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
}

// MessageResponse is the serialized representation of a support message.
type MessageResponse struct {
	ID        uint         `json:"id"`
	ChatID    uint         `json:"chat_id"`
	Author    *UserSummary `json:"author,omitempty"`
	IsAdmin   bool         `json:"is_admin"`
	Text      string       `json:"text,omitempty"`
	Media     []string     `json:"media,omitempty"`
	IsRead    bool         `json:"is_read"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewMessageResponse converts a message model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	response := MessageResponse{
		ID:        message.ID,
		ChatID:    message.ChatID,
		IsAdmin:   message.IsAdmin,
		Text:      message.Text,
		Media:     message.Media,
		IsRead:    message.IsRead,
		CreatedAt: message.CreatedAt,
	}
	if message.Author != nil {
		summary := NewUserSummary(*message.Author)
		response.Author = &summary
	}
	return response
}

// NewMessageResponseSlice converts a slice of message models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// ChatResponse is a chat summary annotated with the recomputed unread count.
type ChatResponse struct {
	ID             uint             `json:"id"`
	User           UserSummary      `json:"user"`
	Status         string           `json:"status"`
	LastMessage    *MessageResponse `json:"last_message,omitempty"`
	UnreadMessages int64            `json:"unread_messages"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewChatResponse converts a chat model plus its unread annotation into a DTO.
func NewChatResponse(chat models.Chat, unread int64) ChatResponse {
	response := ChatResponse{
		ID:             chat.ID,
		User:           NewUserSummary(chat.User),
		Status:         chat.Status,
		UnreadMessages: unread,
		CreatedAt:      chat.CreatedAt,
		UpdatedAt:      chat.UpdatedAt,
	}
	if chat.LastMessage != nil {
		last := NewMessageResponse(*chat.LastMessage)
		response.LastMessage = &last
	}
	return response
}

// ChatListQuery filters the role-scoped chat listing.
type ChatListQuery struct {
	Page   int    `json:"page" query:"page" validate:"omitempty,min=1"`
	Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
	Search string `json:"search" query:"search" validate:"omitempty,max=120"`
}

// ChatListResponse is the paginated chat listing payload.
type ChatListResponse struct {
	Chats      []ChatResponse `json:"chats"`
	Pagination Pagination     `json:"pagination"`
}

// MessagePageQuery selects one page of a chat's messages, oldest first.
type MessagePageQuery struct {
	ChatID uint `json:"chat_id" validate:"required,min=1"`
	Page   int  `json:"page" validate:"omitempty,min=1"`
	Limit  int  `json:"limit" validate:"omitempty,min=1,max=100"`
}

// MessagePageResponse is one ascending page of a chat's messages.
type MessagePageResponse struct {
	Messages   []MessageResponse `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

// MessageSendRequest is the payload to append a message. ChatID is nil when a
// user opens a fresh conversation; the chat is created on the fly.
type MessageSendRequest struct {
	ChatID *uint    `json:"chat" form:"chat" validate:"omitempty,min=1"`
	Text   string   `json:"text" form:"text" validate:"omitempty,max=4000"`
	Media  []string `json:"media" form:"-" validate:"omitempty,max=10,dive,url"`
}

// UnreadCountResponse reports how many messages authored by one side the
// other side has not read yet.
type UnreadCountResponse struct {
	ChatID uint   `json:"chat_id"`
	Role   string `json:"role"`
	Count  int64  `json:"count"`
}
