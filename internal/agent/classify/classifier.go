// Package classify wraps remote intent classification with a time-bounded
// memoization cache and the retry/backoff supervisor. Classification failure
// never blocks a request: terminal failures degrade to the default
// classification.
package classify

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	"github.com/waellejmi/qwery-core-sub001/internal/agent/retry"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

type Service struct {
	remote model.RemoteClassifier
	cache  *expirable.LRU[string, model.Classification]
	policy retry.Policy
}

func New(remote model.RemoteClassifier, cfg model.ClassifierConfig) *Service {
	return &Service{
		remote: remote,
		cache:  expirable.NewLRU[string, model.Classification](cfg.CacheSize, nil, cfg.CacheTTL),
		policy: retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			BaseDelay:      cfg.BackoffBase,
			AttemptTimeout: cfg.AttemptTimeout,
		},
	}
}

// Classify returns the classification for text, serving identical recent
// inputs from cache. The error return exists for custom classifier wiring;
// this implementation always degrades instead of failing.
func (s *Service) Classify(ctx context.Context, text string) (model.Classification, error) {
	if cls, ok := s.cache.Get(text); ok {
		logx.Debug().Str("intent", string(cls.Intent)).Msg("classification cache hit")
		return cls, nil
	}

	cls, err := retry.Do(ctx, s.policy, "classify", func(ctx context.Context) (model.Classification, error) {
		return s.remote.Classify(ctx, text)
	})
	if err != nil {
		// Degrade: the request proceeds as a simple conversational message.
		logx.Error().Err(err).Msg("classification exhausted retries, using default")
		return model.DefaultClassification(), nil
	}

	s.cache.Add(text, cls)
	return cls, nil
}
