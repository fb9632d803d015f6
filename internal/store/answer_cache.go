package store

import (
	"context"

	"github.com/medcert/eacmc-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// AnswerCache persists a candidate's in-progress answers for one exam so
// they survive page reloads. Writes happen on every answer selection and
// the whole entry is cleared on submission. The session service depends on
// this interface rather than Redis directly so it can be exercised with
// the in-memory implementation in tests.
type AnswerCache interface {
	// SaveAnswer stores the selected answer for a question (write-through).
	SaveAnswer(ctx context.Context, examID string, candidateID int, questionID, answer string) error
	// Load returns all cached answers for the candidate's exam.
	// An entry with no answers yields an empty, non-nil map.
	Load(ctx context.Context, examID string, candidateID int) (map[string]string, error)
	// SetFlag marks or unmarks a question as flagged for review.
	SetFlag(ctx context.Context, examID string, candidateID int, questionID string, flagged bool) error
	// Flags returns the flagged question IDs.
	Flags(ctx context.Context, examID string, candidateID int) ([]string, error)
	// Clear removes all cached answers and flags for the candidate's exam.
	Clear(ctx context.Context, examID string, candidateID int) error
}

// RedisAnswerCache is the production AnswerCache, one hash of
// question ID → answer per (candidate, exam) plus a flag set.
type RedisAnswerCache struct {
	rdb *redis.Client
}

// NewRedisAnswerCache creates a Redis-backed answer cache.
func NewRedisAnswerCache(rdb *redis.Client) *RedisAnswerCache {
	return &RedisAnswerCache{rdb: rdb}
}

func (c *RedisAnswerCache) SaveAnswer(ctx context.Context, examID string, candidateID int, questionID, answer string) error {
	key := config.CacheKey.CandidateAnswersKey(examID, candidateID)
	return c.rdb.HSet(ctx, key, questionID, answer).Err()
}

func (c *RedisAnswerCache) Load(ctx context.Context, examID string, candidateID int) (map[string]string, error) {
	key := config.CacheKey.CandidateAnswersKey(examID, candidateID)
	answers, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = map[string]string{}
	}
	return answers, nil
}

func (c *RedisAnswerCache) SetFlag(ctx context.Context, examID string, candidateID int, questionID string, flagged bool) error {
	key := config.CacheKey.CandidateFlagsKey(examID, candidateID)
	if flagged {
		return c.rdb.SAdd(ctx, key, questionID).Err()
	}
	return c.rdb.SRem(ctx, key, questionID).Err()
}

func (c *RedisAnswerCache) Flags(ctx context.Context, examID string, candidateID int) ([]string, error) {
	key := config.CacheKey.CandidateFlagsKey(examID, candidateID)
	return c.rdb.SMembers(ctx, key).Result()
}

func (c *RedisAnswerCache) Clear(ctx context.Context, examID string, candidateID int) error {
	return c.rdb.Del(ctx,
		config.CacheKey.CandidateAnswersKey(examID, candidateID),
		config.CacheKey.CandidateFlagsKey(examID, candidateID),
	).Err()
}
