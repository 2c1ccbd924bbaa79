// Package ai hosts the assistant participant: a synthetic room member that
// answers prompts addressed to it with structured JSON payloads.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Vaibhav-59/CodeVerse/internal/config"
	"github.com/Vaibhav-59/CodeVerse/internal/model/chat"
	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
)

// Service encapsulates AI-powered reply generation.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt chain against the configured model.
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

	return &Service{chatModel: chatModel, cfg: cfg, chain: runnable}, nil
}

// GenerateReply produces the assistant's raw reply for one user prompt. The
// model is instructed to answer with JSON, but the output is not trusted:
// downstream decoding copes with whatever actually comes back.
func (s *Service) GenerateReply(ctx context.Context, proj *project.Project, history []chat.Message, userMessage string) (string, error) {
	input := map[string]any{
		"system":  buildSystemPrompt(proj),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated reply project=%s length=%d", proj.ID, len(response.Content))
	return response.Content, nil
}

// StreamReply runs the same chain as GenerateReply but yields the reply as a
// stream of chunks. The caller owns the reader and must Close it.
func (s *Service) StreamReply(ctx context.Context, proj *project.Project, history []chat.Message, userMessage string) (*schema.StreamReader[*schema.Message], error) {
	input := map[string]any{
		"system":  buildSystemPrompt(proj),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain: %w", err)
	}
	return stream, nil
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	const historyLimit = 10

	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if msg.Sender.IsAI() {
			history = append(history, schema.AssistantMessage(msg.Message, nil))
		} else {
			history = append(history, schema.UserMessage(msg.Message))
		}
	}

	return history
}
