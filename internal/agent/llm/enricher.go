package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/prompts"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// GeminiEnricher is the best-effort background branch of data retrieval: it
// asks the small model to refine the conversation's business vocabulary from
// the latest input and stores the terms. The caller logs and swallows any
// error.
type GeminiEnricher struct {
	models     *ChatModels
	schemas    model.SchemaProvider
	vocabulary model.VocabularyStore
}

func NewGeminiEnricher(models *ChatModels, schemas model.SchemaProvider, vocabulary model.VocabularyStore) *GeminiEnricher {
	return &GeminiEnricher{models: models, schemas: schemas, vocabulary: vocabulary}
}

func (e *GeminiEnricher) Enrich(ctx context.Context, req *model.Request) error {
	schemaText, err := e.schemas.DescribeSchema(ctx, req.ConversationID)
	if err != nil {
		return fmt.Errorf("schema lookup: %w", err)
	}

	systemPrompt, err := prompts.RenderEnrichmentSystem(ctx, schemaText, req.Input)
	if err != nil {
		return err
	}

	out, err := e.models.Classifier.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
	})
	if err != nil {
		return fmt.Errorf("enrichment model: %w", err)
	}
	if out == nil {
		return fmt.Errorf("enrichment model: nil response")
	}
	logUsage(e.models.ClassifierModelName, out)

	terms, err := parseTerms(out.Content)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		return nil
	}

	if err := e.vocabulary.PutTerms(ctx, req.ConversationID, terms); err != nil {
		return err
	}
	logx.Debug().
		Str("conversation_id", req.ConversationID).
		Int("terms", len(terms)).
		Msg("vocabulary refined")
	return nil
}

func parseTerms(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)
	// tolerate a fenced reply
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in enrichment output")
	}

	var terms map[string]string
	if err := json.Unmarshal([]byte(content[start:end+1]), &terms); err != nil {
		return nil, fmt.Errorf("parse enrichment output: %w", err)
	}
	return terms, nil
}

var _ model.ContextEnricher = (*GeminiEnricher)(nil)
