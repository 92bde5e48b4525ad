package repo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/waellejmi/qwery-core-sub001/internal/agent/model"
	errx "github.com/waellejmi/qwery-core-sub001/internal/core/error"
	logx "github.com/waellejmi/qwery-core-sub001/pkg/logger"
)

// RedisVocabularyStore keeps the refined business vocabulary per conversation
// as a Redis hash of term → definition. Written by the background enrichment
// task, read when building retrieval prompts.
type RedisVocabularyStore struct {
	rdb redis.Cmdable
}

func NewRedisVocabularyStore(rdb redis.Cmdable) *RedisVocabularyStore {
	return &RedisVocabularyStore{rdb: rdb}
}

func (r *RedisVocabularyStore) vocabularyKey(conversationID string) string {
	return fmt.Sprintf("qwery:conversation:%s:vocabulary", conversationID)
}

func (r *RedisVocabularyStore) PutTerms(ctx context.Context, conversationID string, terms map[string]string) error {
	if len(terms) == 0 {
		return nil
	}
	key := r.vocabularyKey(conversationID)

	fields := make([]any, 0, len(terms)*2)
	for term, definition := range terms {
		fields = append(fields, term, definition)
	}
	if err := r.rdb.HSet(ctx, key, fields...).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store vocabulary terms")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisVocabularyStore) GetTerms(ctx context.Context, conversationID string) (map[string]string, error) {
	key := r.vocabularyKey(conversationID)

	terms, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return map[string]string{}, nil
		}
		return nil, errx.WrapRedis(err)
	}
	return terms, nil
}

var _ model.VocabularyStore = (*RedisVocabularyStore)(nil)
