package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/medicura/medicura/backend/internal/config"
	"github.com/medicura/medicura/backend/internal/model/call"
)

// ErrReasoningFailed wraps model errors and malformed responses. The
// caller recovers through the call engine's fallback path.
var ErrReasoningFailed = errors.New("reasoning failed")

// Service generates assistant replies for the emergency call loop. It is
// stateless: conversation continuity is reconstructed from the turn
// history passed in on every call.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the reasoning service and compiles its chat chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// GetChatModel returns the underlying chat model.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// GenerateResponse produces the assistant reply for the latest utterance.
// The full ordered history (oldest first) is sent as context every time.
func (s *Service) GenerateResponse(ctx context.Context, callID string, history []call.Turn, utterance string) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(),
		"history": buildHistoryMessages(history),
		"query":   utterance,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReasoningFailed, err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty model response", ErrReasoningFailed)
	}

	log.Printf("[ai] generated reply call=%s length=%d", callID, len(text))
	return text, nil
}

func buildHistoryMessages(history []call.Turn) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case call.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Text))
		case call.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Text, nil))
		}
	}

	return messages
}
