package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newthinker/prism/internal/core"
)

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis is a SentimentCache shared between processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, symbol string) (*core.SentimentData, error) {
	raw, err := r.client.Get(ctx, cacheKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading sentiment for %s: %w", symbol, err)
	}

	var data core.SentimentData
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt entry is treated as absent.
		return nil, core.WrapError(core.ErrCacheMiss, err)
	}
	return &data, nil
}

func (r *Redis) Set(ctx context.Context, data core.SentimentData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding sentiment: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(data.Symbol), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing sentiment for %s: %w", data.Symbol, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, symbol string) error {
	return r.client.Del(ctx, cacheKey(symbol)).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
