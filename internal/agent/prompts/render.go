// Package prompts renders the system prompts for the Gemini adapters from
// embedded templates, going through the Eino prompt component so prompt
// callbacks fire.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Wire delimiters the classifier model is instructed to emit.
const (
	TupleDelim    = "<||>"
	RecordDelim   = "##"
	CompleteDelim = "<|COMPLETE|>"
)

//go:embed templates/classifier_prompt.txt
var classifierPrompt string

//go:embed templates/retrieval_prompt.txt
var retrievalPrompt string

//go:embed templates/summarize_prompt.txt
var summarizePrompt string

//go:embed templates/greeting_prompt.txt
var greetingPrompt string

//go:embed templates/enrichment_prompt.txt
var enrichmentPrompt string

// RenderClassifierSystem renders the classifier system prompt. Delimiters are
// substituted with a plain replacer so template syntax cannot collide with
// the tuple format.
func RenderClassifierSystem(ctx context.Context) (string, error) {
	content := strings.NewReplacer(
		"{TD}", TupleDelim,
		"{RD}", RecordDelim,
		"{CD}", CompleteDelim,
	).Replace(classifierPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("classifier prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("classifier prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// RetrievalVars feeds the retrieval system prompt template.
type RetrievalVars struct {
	AssistantName string
	Schema        string
	Vocabulary    map[string]string
	NeedsSQL      bool
	NeedsChart    bool
}

// RenderRetrievalSystem renders the data-retrieval system prompt.
func RenderRetrievalSystem(ctx context.Context, vars RetrievalVars) (string, error) {
	return renderGoTemplate(ctx, "retrieval", retrievalPrompt, map[string]any{
		"AssistantName": vars.AssistantName,
		"Schema":        vars.Schema,
		"Vocabulary":    vars.Vocabulary,
		"NeedsSQL":      vars.NeedsSQL,
		"NeedsChart":    vars.NeedsChart,
	})
}

// RenderSummarizeSystem renders the summarize system prompt.
func RenderSummarizeSystem(ctx context.Context, assistantName string) (string, error) {
	return renderGoTemplate(ctx, "summarize", summarizePrompt, map[string]any{
		"AssistantName": assistantName,
	})
}

// RenderGreetingSystem renders the greeting system prompt.
func RenderGreetingSystem(ctx context.Context, assistantName string) (string, error) {
	return renderGoTemplate(ctx, "greeting", greetingPrompt, map[string]any{
		"AssistantName": assistantName,
	})
}

// RenderEnrichmentSystem renders the vocabulary enrichment prompt.
func RenderEnrichmentSystem(ctx context.Context, schemaText, input string) (string, error) {
	return renderGoTemplate(ctx, "enrichment", enrichmentPrompt, map[string]any{
		"Schema": schemaText,
		"Input":  input,
	})
}

func renderGoTemplate(ctx context.Context, name, tplText string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tplText),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}
