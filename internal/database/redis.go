// Package database holds the optional Redis connection. Chat state stays in
// process; Redis only backs the shared rate-limit counters and the readiness
// probe when REDIS_ENABLED is set.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ieraasyl/LiteChat/pkg/config"
	"github.com/ieraasyl/LiteChat/pkg/utils"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitPrefix = "litechat:ratelimit"

// RedisDB wraps a Redis client used for rate-limit counters.
type RedisDB struct {
	client *redis.Client
}

// NewRedisDB connects to Redis, retrying the initial ping with backoff.
//
// Example:
//
//	redisDB, err := database.NewRedisDB(&cfg.Redis)
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Redis connection failed")
//	}
//	defer redisDB.Close()
func NewRedisDB(cfg *config.RedisConfig) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	retryConfig := utils.DatabaseRetryConfig()
	retryConfig.MaxAttempts = 5
	retryConfig.InitialDelay = 100 * time.Millisecond
	retryConfig.MaxDelay = 3 * time.Second
	retryConfig.OnRetry = func(attempt int, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", cfg.Address()).Msg("Failed to ping Redis, retrying...")
	}

	err := utils.Retry(ctx, retryConfig, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address(), err)
	}

	log.Info().Str("addr", cfg.Address()).Msg("Successfully connected to Redis")
	return &RedisDB{client: client}, nil
}

// Close closes the Redis connection.
func (r *RedisDB) Close() error {
	return r.client.Close()
}

// Client returns the underlying Redis client.
func (r *RedisDB) Client() *redis.Client {
	return r.client
}

// Ping checks if Redis is alive. Used by the readiness probe.
func (r *RedisDB) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// IncrementRateLimit counts a request from ip against endpoint in a fixed
// window and returns the count including this request. The window starts at
// the first request.
//
// Key pattern: "litechat:ratelimit:{endpoint}:{ip}"
func (r *RedisDB) IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error) {
	key := rateLimitKey(ip, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count, nil
}

// RateLimitTTL returns how long until the window for ip and endpoint resets.
// It returns 0 when no window is open.
func (r *RedisDB) RateLimitTTL(ctx context.Context, ip, endpoint string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, rateLimitKey(ip, endpoint)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func rateLimitKey(ip, endpoint string) string {
	return fmt.Sprintf("%s:%s:%s", rateLimitPrefix, endpoint, ip)
}
