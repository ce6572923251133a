package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lumora-app/lumora-api/internal/dto"
	"github.com/lumora-app/lumora-api/pkg/ai"
)

const suggestionContextSize = 20

// SuggestionService proposes candidate admin replies from recent chat
// context. AI failures degrade to an empty suggestion list.
type SuggestionService interface {
	SuggestReplies(ctx context.Context, chatID uint, limit int) ([]string, error)
}

type suggestionService struct {
	chats     ChatService
	suggester ai.Suggester
	logger    zerolog.Logger
}

// NewSuggestionService constructs the suggestion service. A nil suggester
// disables the feature without failing callers.
func NewSuggestionService(chats ChatService, suggester ai.Suggester, logger zerolog.Logger) SuggestionService {
	return &suggestionService{
		chats:     chats,
		suggester: suggester,
		logger:    logger.With().Str("component", "suggestion_service").Logger(),
	}
}

func (s *suggestionService) SuggestReplies(ctx context.Context, chatID uint, limit int) ([]string, error) {
	// Reading context as the admin so opposing messages are marked read,
	// the same as opening the conversation.
	page, _, err := s.chats.GetMessages(ctx, Identity{Role: RoleAdmin}, dto.MessagePageQuery{
		ChatID: chatID,
		Limit:  suggestionContextSize,
	})
	if err != nil {
		return nil, err
	}

	if s.suggester == nil || len(page.Messages) == 0 {
		return []string{}, nil
	}

	turns := make([]ai.ChatTurn, 0, len(page.Messages))
	for _, message := range page.Messages {
		if message.Text == "" {
			continue
		}
		turns = append(turns, ai.ChatTurn{FromAdmin: message.IsAdmin, Text: message.Text})
	}

	suggestions, err := s.suggester.Suggest(ctx, ai.SuggestionRequest{Turns: turns, Limit: limit})
	if err != nil {
		s.logger.Warn().Err(err).Uint("chat_id", chatID).Msg("reply suggestion failed")
		return []string{}, nil
	}

	return suggestions, nil
}
