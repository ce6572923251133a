// Package push dispatches mobile push notifications through the FCM HTTP
// API, reporting per-token outcomes so callers can scrub dead device tokens.
package push

import "context"

// Message is one push payload addressed to a set of device tokens.
type Message struct {
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Tokens []string          `json:"tokens"`
	Data   map[string]string `json:"data,omitempty"`
}

// Report summarises a dispatch: counts plus the tokens the provider flagged
// as permanently invalid.
type Report struct {
	Success       int
	Failure       int
	InvalidTokens []string
}

// Dispatcher sends a push message and reports per-token results. A non-nil
// error means the dispatch as a whole failed; partial token failures are
// carried in the report instead.
type Dispatcher interface {
	Send(ctx context.Context, message Message) (Report, error)
}
