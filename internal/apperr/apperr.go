package apperr

import (
	"errors"
	"net/http"
)

// Error is a status-classified application error surfaced to clients as a
// structured payload. The status follows HTTP semantics even when the error
// travels over the websocket channel.
type Error struct {
	Status  int    `json:"statusCode"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an error with an explicit status classification.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Validation flags malformed or missing input.
func Validation(message string) *Error {
	return New(http.StatusUnprocessableEntity, message)
}

// NotFound flags an absent chat, message or user.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Unauthorized flags a missing or invalid token, or a role mismatch.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// Conflict flags an invalid state transition, such as writing to a closed chat.
func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// Internal wraps datastore or external-service failures. Details stay in the
// server logs; clients only see the generic message.
func Internal(message string) *Error {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, message)
}

// StatusOf extracts the status classification, defaulting to internal.
func StatusOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-facing message for an error. Unclassified
// errors are reported generically so internals never leak.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
