package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/registry"
)

// RedisKVStore is a core.KVStore over a single Redis node. It also offers
// the list operations the Redis change queue needs.
type RedisKVStore struct {
	client *redis.Client
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisKVStore connects to the first endpoint and pings it.
func NewRedisKVStore(config KVStoreConfig) (*RedisKVStore, error) {
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	// TODO: use redis.NewClusterClient when more than one endpoint is configured.
	client := redis.NewClient(&redis.Options{
		Addr:         config.Endpoints[0],
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := NewRedisKVStoreFromClient(client, config.logger())
	store.logger.Info("connected to redis", slog.String("addr", config.Endpoints[0]), slog.Int("db", config.DB))
	return store, nil
}

// NewRedisKVStoreFromClient wraps an existing client.
func NewRedisKVStoreFromClient(client *redis.Client, logger *slog.Logger) *RedisKVStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisKVStore{client: client, logger: logger.With(slog.String("component", "kvstore"), slog.String("backend", "redis"))}
}

func (r *RedisKVStore) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Get returns the value under key, or core.ErrKeyNotFound.
func (r *RedisKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	r.logger.Debug("get", slog.String("key", key), slog.Int("bytes", len(val)))
	return val, nil
}

// Set stores value under key. A zero ttl never expires.
func (r *RedisKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.isClosed() {
		return ErrStoreClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug("set", slog.String("key", key), slog.Int("bytes", len(value)), slog.Duration("ttl", ttl))
	return nil
}

// Delete removes key.
func (r *RedisKVStore) Delete(ctx context.Context, key string) error {
	if r.isClosed() {
		return ErrStoreClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (r *RedisKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if r.isClosed() {
		return false, ErrStoreClosed
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

// BatchSet writes all items in one pipeline.
func (r *RedisKVStore) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	if r.isClosed() {
		return ErrStoreClosed
	}
	if ttl < 0 {
		ttl = 0
	}

	pipe := r.client.Pipeline()
	for key, value := range items {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to batch set keys: %w", err)
	}
	return nil
}

// Close closes the client. Closing twice is a no-op.
func (r *RedisKVStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// Client returns the underlying client.
func (r *RedisKVStore) Client() *redis.Client {
	return r.client
}

// ListPush appends value to the list at key (RPUSH).
func (r *RedisKVStore) ListPush(ctx context.Context, key string, value []byte) error {
	if r.isClosed() {
		return ErrStoreClosed
	}
	return r.client.RPush(ctx, key, value).Err()
}

// ListPop removes and returns the head of the list at key (LPOP), or nil
// when the list is empty.
func (r *RedisKVStore) ListPop(ctx context.Context, key string) ([]byte, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}
	val, err := r.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

// ListLength returns the length of the list at key (LLEN).
func (r *RedisKVStore) ListLength(ctx context.Context, key string) (int64, error) {
	if r.isClosed() {
		return 0, ErrStoreClosed
	}
	return r.client.LLen(ctx, key).Result()
}

// ListRange returns elements start through stop of the list at key (LRANGE).
func (r *RedisKVStore) ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	if r.isClosed() {
		return nil, ErrStoreClosed
	}
	vals, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	result := make([][]byte, len(vals))
	for i, v := range vals {
		result[i] = []byte(v)
	}
	return result, nil
}

// ListTrim keeps only elements start through stop of the list at key (LTRIM).
func (r *RedisKVStore) ListTrim(ctx context.Context, key string, start, stop int64) error {
	if r.isClosed() {
		return ErrStoreClosed
	}
	return r.client.LTrim(ctx, key, start, stop).Err()
}

// RedisKVStoreFactory creates Redis stores.
type RedisKVStoreFactory struct{}

func (f *RedisKVStoreFactory) Type() string { return "redis" }

// Validate checks the Redis fields of config.
func (f *RedisKVStoreFactory) Validate(config KVStoreConfig) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("redis DB must be between 0 and 15, got: %d", config.DB)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}
	if config.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", config.MinIdleConns)
	}
	if config.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be greater than 0, got: %v", config.DialTimeout)
	}
	return nil
}

// Create opens a Redis store.
func (f *RedisKVStoreFactory) Create(config KVStoreConfig) (core.KVStore, error) {
	store, err := NewRedisKVStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis KV store: %w", err)
	}
	return store, nil
}

// RedisConfigValidator validates the kvstore section for Redis.
type RedisConfigValidator struct{}

func (v *RedisConfigValidator) Type() string { return "redis" }

// Validate checks the Redis settings in config.
func (v *RedisConfigValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	kv := config.KVStore
	if kv.Type != "redis" {
		return fmt.Errorf("invalid type for Redis validator: %s", kv.Type)
	}
	rc := kv.RedisConfig
	if len(rc.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if rc.DB < 0 || rc.DB > 15 {
		return fmt.Errorf("redis DB must be between 0 and 15, got: %d", rc.DB)
	}
	if rc.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", rc.PoolSize)
	}
	if rc.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", rc.MinIdleConns)
	}
	return validateTimeouts(kv)
}

func init() {
	RegisterFactory(&RedisKVStoreFactory{})
	registry.RegisterValidator(&RedisConfigValidator{})
}
