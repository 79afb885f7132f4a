package metadata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/metrics"
)

const questionNameKeyPrefix = "question-name:"

// CachedClient wraps a MetadataClient, caching only fetch_question_name:
// a question's name is set once and never mutated after, unlike task/answer
// state which changes on every stage completion and would go stale almost
// immediately if cached. Grounded on the teacher's cachedVideoService
// decorator pattern (internal/usecase/cached_video_service.go).
type CachedClient struct {
	repository.MetadataClient
	redis   *redis.Client
	ttl     time.Duration
	sfGroup singleflight.Group
}

// NewCachedClient wraps delegate with a Redis cache-aside decorator for
// fetch_question_name, using ttl as the cache lifetime.
func NewCachedClient(delegate repository.MetadataClient, redisClient *redis.Client, ttl time.Duration) *CachedClient {
	return &CachedClient{MetadataClient: delegate, redis: redisClient, ttl: ttl}
}

// FetchQuestionName coalesces concurrent lookups for the same question via
// singleflight and serves from Redis when present, falling back to the
// delegate on a cache miss or Redis error.
func (c *CachedClient) FetchQuestionName(ctx context.Context, questionID string) (string, error) {
	result, err, shared := c.sfGroup.Do(questionID, func() (any, error) {
		return c.fetchWithCache(ctx, questionID)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *CachedClient) fetchWithCache(ctx context.Context, questionID string) (string, error) {
	key := questionNameKeyPrefix + questionID

	name, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheHit).Inc()
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("question name cache get failed, falling back to metadata service", "question", questionID, "error", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheMiss).Inc()

	name, err = c.MetadataClient.FetchQuestionName(ctx, questionID)
	if err != nil {
		return "", err
	}

	if setErr := c.redis.Set(ctx, key, name, c.ttl).Err(); setErr != nil {
		slog.Warn("failed to cache question name", "question", questionID, "error", setErr)
	}
	return name, nil
}
