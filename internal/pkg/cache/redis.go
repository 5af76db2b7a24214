// Package cache backs payment idempotency, webhook rate limiting and the report
// cache with Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
)

const defaultPrefix = "invoiceflow:"

// NewClient connects to Redis and pings it
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Store implements the idempotency store, the rate limiter and the report cache
// on a single Redis client
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewStore(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

var (
	_ payment.IdempotencyStore = (*Store)(nil)
	_ payment.RateLimiter      = (*Store)(nil)
	_ report.Cache             = (*Store)(nil)
)

// Claim uses SETNX so only the first caller for key wins until ttl passes
func (s *Store) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim key: %w", err)
	}
	return ok, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key: %w", err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Allow counts hits in a fixed window that starts with the first hit
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := s.keyPrefix + "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

// InvalidateWorkspace deletes every cached report of the workspace
func (s *Store) InvalidateWorkspace(ctx context.Context, workspaceID string) error {
	pattern := s.keyPrefix + report.CachePrefix(workspaceID) + "*"

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan report keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete report keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping reports whether Redis is reachable, for health checks
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
