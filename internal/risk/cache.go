package risk

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/rental-risk/pkg/logger"
	"go.uber.org/zap"
)

const scoreSampleKey = "risk:score_samples:v1"

// SampleCache keeps the recent score population in Redis so that every
// analysis does not rescan the bookings table. One extra sample is cached
// so the current booking can be excluded and 100 still remain.
type SampleCache struct {
	redis redis.UniversalClient
	repo  RepositoryInterface
	ttl   time.Duration
}

// NewSampleCache creates a Redis-backed sample source
func NewSampleCache(client redis.UniversalClient, repo RepositoryInterface, ttl time.Duration) *SampleCache {
	return &SampleCache{redis: client, repo: repo, ttl: ttl}
}

var _ ScoreSampleSource = (*SampleCache)(nil)

// RecentScores returns cached samples, loading from the store on a miss.
// Redis failures fall through to the store.
func (c *SampleCache) RecentScores(ctx context.Context) ([]ScoreSample, error) {
	raw, err := c.redis.Get(ctx, scoreSampleKey).Bytes()
	switch {
	case err == nil:
		var samples []ScoreSample
		if jsonErr := json.Unmarshal(raw, &samples); jsonErr == nil {
			return samples, nil
		}
		logger.WithContext(ctx).Warn("risk: discarding corrupt score sample cache")
	case errors.Is(err, redis.Nil):
	default:
		logger.WithContext(ctx).Warn("risk: score sample cache unavailable", zap.Error(err))
	}

	samples, err := c.repo.GetRecentScores(ctx, HistorySampleSize+1)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(samples); err == nil {
		if err := c.redis.Set(ctx, scoreSampleKey, payload, c.ttl).Err(); err != nil {
			logger.WithContext(ctx).Debug("risk: failed to cache score samples", zap.Error(err))
		}
	}
	return samples, nil
}

// Invalidate drops the cached population, used after a score override
func (c *SampleCache) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, scoreSampleKey).Err()
}
