package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/classify"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/llm"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/orchestrator"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/repo"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/session"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/strategy"
	"github.com/waellejmi/qwery-core-sub001/internal/core"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
	pkgredis "github.com/waellejmi/qwery-core-sub001/pkg/redis"
)

const defaultSchema = `table orders(id, customer_id, region, amount, created_at)
table customers(id, name, segment, signed_up_at)`

// AppConfig defines all configurable parameters for the orchestrator demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Demo data-source schema fed to the retrieval prompt
	AssistantName string `envconfig:"ASSISTANT_NAME" default:"Qwery"`
	Schema        string `envconfig:"DATA_SOURCE_SCHEMA"`

	// Orchestrator configs
	Classifier   model.ClassifierConfig
	Retrieval    model.RetrievalConfig
	Session      model.SessionConfig
	Conversation model.ConversationConfig
}

// staticSchemaProvider serves one fixed schema description for every
// conversation. The product resolves this per conversation from its
// connected data sources; the demo takes it from the environment.
type staticSchemaProvider struct {
	text string
}

func (s *staticSchemaProvider) DescribeSchema(ctx context.Context, conversationID string) (string, error) {
	return s.text, nil
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb := cfg.Redis.MustNew()
	defer rdb.Close()
	logx.Info().Msg("Connected to Redis")

	models, err := llm.NewChatModels(ctx, llm.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Classifier: &cfg.Classifier,
		Retrieval:  &cfg.Retrieval,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build chat models")
	}

	schemaText := cfg.Schema
	if schemaText == "" {
		schemaText = defaultSchema
	}
	schemas := &staticSchemaProvider{text: schemaText}
	vocabulary := repo.NewRedisVocabularyStore(rdb)
	conversations := repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL)

	classifier := classify.New(llm.NewGeminiClassifier(models), cfg.Classifier)
	responder := llm.NewGeminiResponder(models, cfg.AssistantName, cfg.Conversation)
	strategies := strategy.Set{
		Greeting:  strategy.NewGreeting(responder),
		Summarize: strategy.NewSummarize(responder),
		DataRetrieval: strategy.NewDataRetrieval(
			llm.NewGeminiRetriever(models, schemas, vocabulary, cfg.AssistantName, cfg.Conversation),
			llm.NewGeminiEnricher(models, schemas, vocabulary),
			cfg.Retrieval,
		),
	}

	pool := session.New(func(ctx context.Context, conversationID string) (*orchestrator.Orchestrator, error) {
		return orchestrator.New(ctx, conversationID, classifier, strategies, conversations,
			orchestrator.Config{HandleTimeout: cfg.Session.HandleTimeout})
	}, cfg.Session)
	pool.Start()
	defer pool.Stop()

	queries := []struct {
		description string
		input       string
	}{
		{description: "Greeting", input: "hi there"},
		{description: "Data question", input: "show me total order amount by region"},
		{description: "Follow-up summary", input: "can you recap what we found?"},
	}

	conversationID := "demo-conversation-1"

	for i, q := range queries {
		fmt.Printf("\nQuery %d (%s): %q\n", i+1, q.description, q.input)

		res, err := pool.Handle(ctx, conversationID, cfg.Retrieval.Model, q.input)
		if err != nil {
			logx.Error().Err(err).Msg("request failed")
			continue
		}

		for {
			chunk, err := res.Stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				logx.Error().Err(err).Msg("stream failed")
				break
			}
			if chunk != nil {
				fmt.Print(chunk.Content)
			}
		}
		res.Stream.Close()
		fmt.Println()
	}
}
