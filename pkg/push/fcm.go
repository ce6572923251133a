package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// Token errors FCM reports for registrations that will never succeed again.
var permanentTokenErrors = map[string]struct{}{
	"NotRegistered":       {},
	"InvalidRegistration": {},
	"MismatchSenderId":    {},
}

// FCMConfig contains credentials for the FCM HTTP endpoint.
type FCMConfig struct {
	ServerKey string
	Endpoint  string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// FCMClient implements Dispatcher against the FCM legacy HTTP API.
type FCMClient struct {
	key      string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewFCMClient constructs a push client.
func NewFCMClient(cfg FCMConfig) (*FCMClient, error) {
	if cfg.ServerKey == "" {
		return nil, fmt.Errorf("fcm server key must be provided")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &FCMClient{
		key:      cfg.ServerKey,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger.With().Str("component", "fcm").Logger(),
	}, nil
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

type fcmResult struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send dispatches one message to all tokens in a single batch call.
func (c *FCMClient) Send(ctx context.Context, message Message) (Report, error) {
	if len(message.Tokens) == 0 {
		return Report{}, nil
	}

	payload, err := json.Marshal(fcmRequest{
		RegistrationIDs: message.Tokens,
		Notification:    fcmNotification{Title: message.Title, Body: message.Body},
		Data:            message.Data,
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode push payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Report{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "key="+c.key)

	response, err := c.client.Do(request)
	if err != nil {
		return Report{}, fmt.Errorf("push dispatch failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return Report{}, err
	}

	if response.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("push service returned status %d", response.StatusCode)
	}

	var decoded fcmResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Report{}, fmt.Errorf("failed to decode push response: %w", err)
	}

	report := Report{Success: decoded.Success, Failure: decoded.Failure}
	for i, result := range decoded.Results {
		if result.Error == "" || i >= len(message.Tokens) {
			continue
		}
		if _, permanent := permanentTokenErrors[result.Error]; permanent {
			report.InvalidTokens = append(report.InvalidTokens, message.Tokens[i])
		}
	}

	if report.Failure > 0 {
		c.logger.Warn().
			Int("success", report.Success).
			Int("failure", report.Failure).
			Int("invalid_tokens", len(report.InvalidTokens)).
			Msg("push dispatch completed with failures")
	}

	return report, nil
}
