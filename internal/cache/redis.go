package cache

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartpulse/cartpulse/internal/config"
	ierr "github.com/cartpulse/cartpulse/internal/errors"
	"github.com/cartpulse/cartpulse/internal/logger"
)

// RedisCache implements the Cache interface on a redis client. It is the
// production implementation: sorted sets back the real-time sales window and
// INCRBY backs the daily and experiment counters.
type RedisCache struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisClient connects to redis using the application configuration
func NewRedisClient(cfg *config.Configuration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to redis").
			Mark(ierr.ErrDatabase)
	}

	return client, nil
}

// NewRedisCache creates a redis backed Cache
func NewRedisCache(client *redis.Client, logger *logger.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	span := StartCacheSpan(ctx, "redis", "get", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Errorw("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value string) {
	c.SetWithTTL(ctx, key, value, 0)
}

func (c *RedisCache) SetWithTTL(ctx context.Context, key string, value string, expiration time.Duration) {
	span := StartCacheSpan(ctx, "redis", "set", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		c.logger.Errorw("cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	span := StartCacheSpan(ctx, "redis", "setnx", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	created, err := c.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		SetSpanError(span, err)
		return false, ierr.WithError(err).
			WithHintf("Failed to set key %s", key).
			Mark(ierr.ErrDatabase)
	}
	return created, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Errorw("cache delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Errorw("cache delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Errorw("cache scan failed", "prefix", prefix, "error", err)
	}
}

func (c *RedisCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	val, err := c.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Failed to increment counter %s", key).
			Mark(ierr.ErrDatabase)
	}
	return val, nil
}

func (c *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Failed to read counter %s", key).
			Mark(ierr.ErrDatabase)
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHintf("Counter %s holds a non-numeric value", key).
			Mark(ierr.ErrValidation)
	}
	return n, nil
}

func (c *RedisCache) SortedSetAdd(ctx context.Context, key string, score float64, member string) error {
	span := StartCacheSpan(ctx, "redis", "zadd", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	err := c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHintf("Failed to add member to sorted set %s", key).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (c *RedisCache) SortedSetRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	span := StartCacheSpan(ctx, "redis", "zrangebyscore", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	members, err := c.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		SetSpanError(span, err)
		return nil, ierr.WithError(err).
			WithHintf("Failed to range sorted set %s", key).
			Mark(ierr.ErrDatabase)
	}
	return members, nil
}

func (c *RedisCache) SortedSetRemoveRangeByScore(ctx context.Context, key string, min, max float64) error {
	span := StartCacheSpan(ctx, "redis", "zremrangebyscore", map[string]interface{}{"key": key})
	defer FinishSpan(span)

	err := c.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
	if err != nil {
		SetSpanError(span, err)
		return ierr.WithError(err).
			WithHintf("Failed to trim sorted set %s", key).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (c *RedisCache) Flush(ctx context.Context) {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Errorw("cache flush failed", "error", err)
	}
}

func formatScore(score float64) string {
	if math.IsInf(score, -1) {
		return "-inf"
	}
	if math.IsInf(score, 1) {
		return "+inf"
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}
