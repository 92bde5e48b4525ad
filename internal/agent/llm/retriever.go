package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/prompts"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// GeminiRetriever runs the data-retrieval step: look up the conversation's
// data-source schema and vocabulary, then stream a grounded answer (with SQL
// when the classification calls for it) from the answer model.
type GeminiRetriever struct {
	models        *ChatModels
	schemas       model.SchemaProvider
	vocabulary    model.VocabularyStore
	assistantName string
	maxTurns      int
}

func NewGeminiRetriever(models *ChatModels, schemas model.SchemaProvider, vocabulary model.VocabularyStore, assistantName string, conversation model.ConversationConfig) *GeminiRetriever {
	return &GeminiRetriever{
		models:        models,
		schemas:       schemas,
		vocabulary:    vocabulary,
		assistantName: assistantName,
		maxTurns:      conversation.MaxTurns,
	}
}

func (r *GeminiRetriever) Retrieve(ctx context.Context, req *model.Request, cls model.Classification) (*model.StreamResult, error) {
	schemaText, err := r.schemas.DescribeSchema(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("schema lookup: %w", err)
	}

	// vocabulary is an enhancement: answer without it rather than fail
	var terms map[string]string
	if r.vocabulary != nil {
		terms, err = r.vocabulary.GetTerms(ctx, req.ConversationID)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("vocabulary lookup failed")
			terms = nil
		}
	}

	systemPrompt, err := prompts.RenderRetrievalSystem(ctx, prompts.RetrievalVars{
		AssistantName: r.assistantName,
		Schema:        schemaText,
		Vocabulary:    terms,
		NeedsSQL:      cls.NeedsSQL,
		NeedsChart:    cls.NeedsChart,
	})
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
	messages = append(messages, trimTail(req.History, r.maxTurns)...)

	stream, err := r.models.Answer.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("retrieval model: %w", err)
	}
	return &model.StreamResult{Input: req.Input, Stream: stream}, nil
}

var _ model.DataRetriever = (*GeminiRetriever)(nil)
