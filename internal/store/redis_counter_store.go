package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/devrev/viewcounter/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCounterStore implements CounterStore for Redis
type RedisCounterStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCounterStore creates a new Redis counter store and checks the connection
func NewRedisCounterStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisCounterStore, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB))

	return NewRedisCounterStoreWithClient(client, logger), nil
}

// NewRedisCounterStoreWithClient wraps an existing client without pinging it
func NewRedisCounterStoreWithClient(client *redis.Client, logger *zap.Logger) *RedisCounterStore {
	return &RedisCounterStore{
		client: client,
		logger: logger,
	}
}

func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opts.MaxRetries = cfg.MaxRetries
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Incr implements CounterStore.Incr
func (s *RedisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable("incr", key, err)
	}
	return n, nil
}

// Get implements CounterStore.Get
func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, unavailable("get", key, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, unavailable("get", key, fmt.Errorf("non-integer value %q", raw))
	}
	return n, true, nil
}

// MGet implements CounterStore.MGet
func (s *RedisCounterStore) MGet(ctx context.Context, keys []string) ([]*int64, error) {
	if len(keys) == 0 {
		return []*int64{}, nil
	}

	replies, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("mget", fmt.Sprintf("%d keys", len(keys)), err)
	}
	if len(replies) != len(keys) {
		return nil, unavailable("mget", fmt.Sprintf("%d keys", len(keys)),
			fmt.Errorf("got %d replies", len(replies)))
	}

	values := make([]*int64, len(keys))
	for i, reply := range replies {
		if reply == nil {
			continue
		}
		raw, ok := reply.(string)
		if !ok {
			return nil, unavailable("mget", keys[i], fmt.Errorf("unexpected reply type %T", reply))
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, unavailable("mget", keys[i], fmt.Errorf("non-integer value %q", raw))
		}
		values[i] = &n
	}
	return values, nil
}

// SetNX implements CounterStore.SetNX
func (s *RedisCounterStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	set, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", key, err)
	}
	return set, nil
}

// Ping checks the Redis connection
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

func unavailable(op, key string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if key == "" {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrStoreUnavailable, err)
}
