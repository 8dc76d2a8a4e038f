// Package cache provides the Redis-backed cache store and the
// suggestion session store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/infrastructure/config"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// NewRedisClient creates a connected Redis client.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Info("redis connected", zap.String("addr", cfg.Addr()))
	return client, nil
}

// Store adapts Redis to the CacheStore port. Read and write failures
// degrade to miss or no-op with a log line; SetNX is the exception
// because callers use it as a correctness lock.
type Store struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStore creates the cache store.
func NewStore(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger.Named("cache")}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, outbound.ErrCacheMiss
	}
	if err != nil {
		s.logger.Warn("cache get degraded to miss", zap.String("key", key), zap.Error(err))
		return nil, outbound.ErrCacheMiss
	}
	return raw, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn("cache set dropped", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete dropped", zap.Strings("keys", keys), zap.Error(err))
	}
	return nil
}

// DeletePattern scans for matching keys and removes them in batches.
func (s *Store) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			_ = s.Delete(ctx, batch...)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("cache pattern scan failed", zap.String("pattern", pattern), zap.Error(err))
		return nil
	}
	return s.Delete(ctx, batch...)
}

// SetNX does not degrade: dispatchers rely on it to prevent duplicate
// sends, so an error must hold the claim rather than grant it.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
