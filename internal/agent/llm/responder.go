package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/prompts"
)

// GeminiResponder produces the non-retrieval answers. Greetings go through
// the small classifier-tier model for latency; summaries use the answer
// model with history.
type GeminiResponder struct {
	models        *ChatModels
	assistantName string
	maxTurns      int
}

func NewGeminiResponder(models *ChatModels, assistantName string, conversation model.ConversationConfig) *GeminiResponder {
	return &GeminiResponder{
		models:        models,
		assistantName: assistantName,
		maxTurns:      conversation.MaxTurns,
	}
}

func (r *GeminiResponder) Greet(ctx context.Context, req *model.Request) (*model.StreamResult, error) {
	systemPrompt, err := prompts.RenderGreetingSystem(ctx, r.assistantName)
	if err != nil {
		return nil, err
	}

	stream, err := r.models.Classifier.Stream(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(req.Input),
	})
	if err != nil {
		return nil, fmt.Errorf("greeting model: %w", err)
	}
	return &model.StreamResult{Input: req.Input, Stream: stream}, nil
}

func (r *GeminiResponder) Summarize(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	systemPrompt, err := prompts.RenderSummarizeSystem(ctx, r.assistantName)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	messages = append(messages, trimTail(req.History, r.maxTurns)...)

	stream, err := r.models.Answer.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("summarize model: %w", err)
	}
	return &model.StreamResult{Input: req.Input, Stream: stream}, nil
}

// trimTail keeps the most recent messages so prompts stay bounded.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}

var _ model.Responder = (*GeminiResponder)(nil)
