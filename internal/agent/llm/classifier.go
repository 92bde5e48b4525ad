package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/prompts"
)

// GeminiClassifier is the remote half of intent classification: it prompts
// the classifier-tier model and parses the delimited tuple it replies with.
// Caching and retry live in the classify package.
type GeminiClassifier struct {
	models *ChatModels
}

func NewGeminiClassifier(models *ChatModels) *GeminiClassifier {
	return &GeminiClassifier{models: models}
}

func (c *GeminiClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	var zero model.Classification

	systemPrompt, err := prompts.RenderClassifierSystem(ctx)
	if err != nil {
		return zero, err
	}

	var userMsg strings.Builder
	userMsg.WriteString("<message_to_classify>\n")
	userMsg.WriteString(text)
	userMsg.WriteString("\n</message_to_classify>")

	out, err := c.models.Classifier.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userMsg.String()),
	})
	if err != nil {
		return zero, fmt.Errorf("classifier model: %w", err)
	}
	if out == nil {
		return zero, fmt.Errorf("classifier model: nil response")
	}
	logUsage(c.models.ClassifierModelName, out)

	return ParseClassification(out.Content)
}

var _ model.RemoteClassifier = (*GeminiClassifier)(nil)
