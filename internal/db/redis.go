package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/models"
)

// ErrRunInProgress is returned when a run lock for a country is already held.
var ErrRunInProgress = errors.New("run already in progress for country")

// RedisStore wraps a redis client and context for operations.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// AcquireRunLock takes the per-country run lock. Concurrent runs for the same
// country conflict on the Recommendation Store, so a second caller gets
// ErrRunInProgress. The TTL guards against a crashed run holding the lock.
func (r *RedisStore) AcquireRunLock(ctx context.Context, country, runID string, ttl time.Duration) error {
	key := fmt.Sprintf("runlock:%s", country)
	ok, err := r.Client.SetNX(ctx, key, runID, ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

// ReleaseRunLock frees the per-country run lock if it is still owned by runID.
func (r *RedisStore) ReleaseRunLock(ctx context.Context, country, runID string) {
	key := fmt.Sprintf("runlock:%s", country)
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			zap.L().Error("redis get run lock", zap.Error(err))
		}
		return
	}
	if val != runID {
		// Lock expired and was taken by a newer run; leave it alone.
		return
	}
	if err := r.Client.Del(ctx, key).Err(); err != nil {
		zap.L().Error("redis release run lock", zap.Error(err))
	}
}

// SaveRunSummary caches the latest run summary for a country.
func (r *RedisStore) SaveRunSummary(ctx context.Context, s models.RunSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	key := fmt.Sprintf("runsummary:%s", s.Country)
	if err := r.Client.Set(ctx, key, payload, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("save run summary: %w", err)
	}
	return nil
}

// LatestRunSummary returns the cached summary of the most recent run for a
// country, or ErrNotFound when no run has completed recently.
func (r *RedisStore) LatestRunSummary(ctx context.Context, country string) (models.RunSummary, error) {
	key := fmt.Sprintf("runsummary:%s", country)
	payload, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return models.RunSummary{}, ErrNotFound
	}
	if err != nil {
		return models.RunSummary{}, fmt.Errorf("get run summary: %w", err)
	}
	var s models.RunSummary
	if err := json.Unmarshal(payload, &s); err != nil {
		return models.RunSummary{}, fmt.Errorf("unmarshal run summary: %w", err)
	}
	return s, nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
