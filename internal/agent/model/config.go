package model

import "time"

// ================ Config ================

type ClassifierConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.1"`

	CacheTTL       time.Duration `envconfig:"CLASSIFIER_CACHE_TTL" default:"60s"`
	CacheSize      int           `envconfig:"CLASSIFIER_CACHE_SIZE" default:"1024"`
	AttemptTimeout time.Duration `envconfig:"CLASSIFIER_ATTEMPT_TIMEOUT" default:"30s"`
	MaxAttempts    int           `envconfig:"CLASSIFIER_MAX_ATTEMPTS" default:"3"`
	BackoffBase    time.Duration `envconfig:"CLASSIFIER_BACKOFF_BASE" default:"1s"`
}

type RetrievalConfig struct {
	Model       string  `envconfig:"RETRIEVAL_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RETRIEVAL_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"RETRIEVAL_TEMPERATURE" default:"0.3"`

	Timeout     time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"120s"`
	MaxAttempts int           `envconfig:"RETRIEVAL_MAX_ATTEMPTS" default:"3"`
	BackoffBase time.Duration `envconfig:"RETRIEVAL_BACKOFF_BASE" default:"1s"`
}

type SessionConfig struct {
	IdleWindow    time.Duration `envconfig:"SESSION_IDLE_WINDOW" default:"30m"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
	HandleTimeout time.Duration `envconfig:"SESSION_HANDLE_TIMEOUT" default:"120s"`
}

type ConversationConfig struct {
	// TTL is the Redis expiry for conversation history keys, refreshed on touch.
	TTL time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	// MaxTurns bounds how much history is fed back into prompts.
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
}
