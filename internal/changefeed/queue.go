// Package changefeed buffers table change events between the table layer
// and downstream consumers such as the key-value mirror.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

var (
	// ErrQueueClosed is returned when enqueuing to or dequeuing from a closed queue.
	ErrQueueClosed = errors.New("change queue is closed")

	// ErrQueueFull is returned by the memory queue when its buffer is full.
	ErrQueueFull = errors.New("change queue is full")

	// ErrInvalidEvent is returned for a nil event or one without a table.
	ErrInvalidEvent = errors.New("invalid change event")

	// ErrListOperationsNotSupported is returned when the KV store backing a
	// Redis queue has no list operations.
	ErrListOperationsNotSupported = errors.New("KV store does not support list operations")
)

const defaultBatchSize = 100

// Queue types accepted by NewQueue.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeKafka  = "kafka"
)

// ListOperations is the list API a KV store must offer to back a RedisQueue.
type ListOperations interface {
	// ListPush appends value to the list (RPUSH).
	ListPush(ctx context.Context, key string, value []byte) error

	// ListPop removes and returns the head of the list (LPOP), or nil when
	// the list is empty.
	ListPop(ctx context.Context, key string) ([]byte, error)

	// ListLength returns the list length (LLEN).
	ListLength(ctx context.Context, key string) (int64, error)

	// ListRange returns the elements between start and stop (LRANGE).
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// ListTrim keeps only the elements between start and stop (LTRIM).
	ListTrim(ctx context.Context, key string, start, stop int64) error
}

// Config selects and tunes a change queue.
type Config struct {
	// Type is one of memory, redis or kafka. Empty means memory.
	Type string

	// BufferSize bounds the memory queue.
	BufferSize int

	// Prefix namespaces the Redis list keys.
	Prefix string

	// HistoryLength is how many recent events the Redis queue keeps per table.
	HistoryLength int

	Kafka KafkaConfig
}

// NewQueue builds the queue named by cfg.Type. kv is only used by the
// Redis queue and must implement ListOperations there.
func NewQueue(cfg Config, kv core.KVStore, logger *slog.Logger) (core.ChangeQueue, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryQueue(cfg.BufferSize), nil
	case TypeRedis:
		if kv == nil {
			return nil, fmt.Errorf("redis change queue needs a KV store")
		}
		return NewRedisQueue(kv, RedisQueueConfig{Prefix: cfg.Prefix, HistoryLength: cfg.HistoryLength}, logger)
	case TypeKafka:
		return NewKafkaQueue(cfg.Kafka, logger)
	default:
		return nil, fmt.Errorf("unsupported change queue type: %s", cfg.Type)
	}
}

// prepare validates e and stamps it with the current time when unset.
func prepare(e *core.ChangeEvent) error {
	if e == nil {
		return ErrInvalidEvent
	}
	if e.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return nil
}
