package dto

import "encoding/json"

// Realtime event names accepted from clients.
const (
	EventCreateChat      = "create-chat"
	EventGetChatList     = "get-chat-list"
	EventGetChatMessages = "get-chat-messages"
	EventSendMessage     = "send-message"
	EventCloseChat       = "close-chat"
	EventSocketError     = "socket-error"
	EventUnreadCount     = "unread-count"
)

// EventFrame is the outbound wire framing for every server-emitted event.
type EventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundFrame is the raw client frame; Data is decoded per event name.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SocketError is the payload carried by every socket-error event.
type SocketError struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
}

// CreateChatEvent opens a support conversation. UserID is honoured for admin
// callers only; regular users always open their own chat.
type CreateChatEvent struct {
	UserID uint `json:"user_id" validate:"omitempty,min=1"`
}

// SendMessageEvent appends a message over the realtime channel.
type SendMessageEvent struct {
	ChatID *uint    `json:"chat" validate:"omitempty,min=1"`
	Text   string   `json:"text" validate:"omitempty,max=4000"`
	Media  []string `json:"media" validate:"omitempty,max=10,dive,url"`
}

// ChatMessagesEvent requests one page of a chat's messages.
type ChatMessagesEvent struct {
	ChatID uint `json:"chat_id" validate:"required,min=1"`
	Page   int  `json:"page" validate:"omitempty,min=1"`
	Limit  int  `json:"limit" validate:"omitempty,min=1,max=100"`
}

// CloseChatEvent transitions a chat to its terminal status.
type CloseChatEvent struct {
	ChatID uint `json:"chat" validate:"required,min=1"`
}
