// Package llm provides the Gemini-backed collaborator adapters: the remote
// intent classifier, the data-retrieval generator, the greeting/summarize
// responder, and the background vocabulary enricher.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// ChatModelConfig holds what is needed to build both chat models.
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Classifier *model.ClassifierConfig
	Retrieval  *model.RetrievalConfig
}

// ChatModels holds the small classifier-tier model and the answer model.
type ChatModels struct {
	Classifier          *gemini.ChatModel
	Answer              *gemini.ChatModel
	ClassifierModelName string
	AnswerModelName     string
}

// NewChatModels creates both chat models from one Gemini client.
func NewChatModels(ctx context.Context, cfg ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	classifierModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Classifier.Model,
		Temperature: &cfg.Classifier.Temperature,
		MaxTokens:   &cfg.Classifier.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	answerModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Retrieval.Model,
		Temperature: &cfg.Retrieval.Temperature,
		MaxTokens:   &cfg.Retrieval.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating answer model")
		return nil, fmt.Errorf("error creating answer model: %w", err)
	}

	return &ChatModels{
		Classifier:          classifierModel,
		Answer:              answerModel,
		ClassifierModelName: cfg.Classifier.Model,
		AnswerModelName:     cfg.Retrieval.Model,
	}, nil
}
