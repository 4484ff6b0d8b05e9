package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/grading"
)

const resultCachePrefix = "grader:result:"

// RedisResultCache stores grading results in Redis. Errors are logged and
// reported as misses so a cache outage never fails an evaluation.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisResultCache constructs a Redis backed result cache.
func NewRedisResultCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisResultCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "result_cache").Logger(),
	}
}

func (c *RedisResultCache) Get(ctx context.Context, key string) (grading.GradingResult, bool) {
	if c == nil || c.client == nil {
		return grading.GradingResult{}, false
	}

	cached, err := c.client.Get(ctx, resultCachePrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read result cache")
		}
		return grading.GradingResult{}, false
	}

	var result grading.GradingResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		c.logger.Warn().Err(err).Msg("discarding corrupt result cache entry")
		return grading.GradingResult{}, false
	}

	c.logger.Debug().Str("key", key).Msg("result cache hit")
	return result, true
}

func (c *RedisResultCache) Set(ctx context.Context, key string, result grading.GradingResult) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode result cache entry")
		return
	}

	if err := c.client.Set(ctx, resultCachePrefix+key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store result cache entry")
	}
}
