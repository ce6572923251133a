// Package ai produces reply suggestions for support admins from recent chat
// context using the OpenAI chat completion API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	suggestionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lumora",
		Subsystem: "ai",
		Name:      "suggestion_duration_seconds",
		Help:      "Duration of AI suggestion requests",
	}, []string{"model"})

	suggestionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lumora",
		Subsystem: "ai",
		Name:      "suggestion_failures_total",
		Help:      "Number of AI suggestion failures",
	}, []string{"model"})
)

// ChatTurn is one message of conversation context handed to the model.
type ChatTurn struct {
	FromAdmin bool
	Text      string
}

// SuggestionRequest bundles the context for one suggestion call.
type SuggestionRequest struct {
	Turns []ChatTurn
	Limit int
}

// Suggester produces candidate replies for a support admin.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestionRequest) ([]string, error)
}

// OpenAIConfig defines configuration options for the OpenAI suggester.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAISuggester implements Suggester against the OpenAI chat completion API.
type OpenAISuggester struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAISuggester builds a suggester using the provided configuration.
func NewOpenAISuggester(cfg OpenAIConfig) (*OpenAISuggester, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}

	return &OpenAISuggester{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/lumora-app/lumora-api/pkg/ai"),
		logger: cfg.Logger.With().Str("component", "ai_suggester").Logger(),
	}, nil
}

const suggestionSystemPrompt = `You are a support assistant for a social media platform.
Given the recent conversation between a user and the support team, propose short,
polite candidate replies the support agent could send next.
Respond with a JSON array of strings and nothing else.`

// Suggest returns up to req.Limit candidate replies for the conversation.
func (s *OpenAISuggester) Suggest(ctx context.Context, req SuggestionRequest) ([]string, error) {
	limit := req.Limit
	if limit <= 0 || limit > 5 {
		limit = 3
	}

	ctx, span := s.tracer.Start(ctx, "ai.suggest", trace.WithAttributes(
		attribute.String("ai.model", s.cfg.Model),
		attribute.Int("ai.turns", len(req.Turns)),
	))
	defer span.End()

	var transcript strings.Builder
	for _, turn := range req.Turns {
		speaker := "User"
		if turn.FromAdmin {
			speaker = "Support"
		}
		transcript.WriteString(fmt.Sprintf("%s: %s\n", speaker, turn.Text))
	}

	start := time.Now()
	response, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: suggestionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Suggest %d replies for this conversation:\n%s", limit, transcript.String())},
		},
	})
	suggestionDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		suggestionFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggestion request failed")
		return nil, fmt.Errorf("suggestion request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("suggestion response contained no choices")
	}

	suggestions, err := parseSuggestions(response.Choices[0].Message.Content)
	if err != nil {
		suggestionFailures.WithLabelValues(s.cfg.Model).Inc()
		span.RecordError(err)
		return nil, err
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	return suggestions, nil
}

func parseSuggestions(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var suggestions []string
	if err := json.Unmarshal([]byte(content), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to parse suggestion payload: %w", err)
	}

	out := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		if trimmed := strings.TrimSpace(suggestion); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out, nil
}
