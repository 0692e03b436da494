package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// RedisQueueConfig tunes a RedisQueue.
type RedisQueueConfig struct {
	// Prefix namespaces the list keys. Defaults to "changes".
	Prefix string

	// HistoryLength is how many recent events are kept per table for
	// Recent. Zero disables the per-table history.
	HistoryLength int
}

// RedisQueue stores events in Redis lists. All events go to one global
// list consumed by Dequeue; each table also keeps a capped history list.
type RedisQueue struct {
	ops     ListOperations
	prefix  string
	history int64
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisQueue returns a queue over kv, which must implement ListOperations.
func NewRedisQueue(kv core.KVStore, cfg RedisQueueConfig, logger *slog.Logger) (*RedisQueue, error) {
	ops, ok := kv.(ListOperations)
	if !ok {
		return nil, ErrListOperationsNotSupported
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "changes"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisQueue{
		ops:     ops,
		prefix:  cfg.Prefix,
		history: int64(cfg.HistoryLength),
		logger:  logger.With(slog.String("component", "changefeed"), slog.String("queue", TypeRedis)),
	}, nil
}

func (q *RedisQueue) globalKey() string {
	return fmt.Sprintf("%s:global", q.prefix)
}

func (q *RedisQueue) historyKey(table string) string {
	return fmt.Sprintf("%s:history:%s", q.prefix, table)
}

func (q *RedisQueue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Enqueue pushes e onto the global list and, when history is enabled,
// onto the table's history list trimmed to the newest entries.
func (q *RedisQueue) Enqueue(ctx context.Context, e *core.ChangeEvent) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	if err := prepare(e); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := q.ops.ListPush(ctx, q.globalKey(), data); err != nil {
		return fmt.Errorf("failed to enqueue change event: %w", err)
	}

	if q.history > 0 {
		key := q.historyKey(e.Table)
		if err := q.ops.ListPush(ctx, key, data); err != nil {
			q.logger.Warn("failed to record change history", slog.String("table", e.Table), slog.Any("error", err))
			return nil
		}
		if err := q.ops.ListTrim(ctx, key, -q.history, -1); err != nil {
			q.logger.Warn("failed to trim change history", slog.String("table", e.Table), slog.Any("error", err))
		}
	}
	return nil
}

// Dequeue pops up to batchSize events from the global list. Entries that
// do not decode are logged and skipped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for len(events) < batchSize {
		data, err := q.ops.ListPop(ctx, q.globalKey())
		if err != nil {
			return events, fmt.Errorf("failed to dequeue change event: %w", err)
		}
		if data == nil {
			break
		}

		var e core.ChangeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			q.logger.Error("skipping undecodable change event", slog.Any("error", err))
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

// Recent returns up to n of the newest events recorded for table, oldest
// first. It does not consume them.
func (q *RedisQueue) Recent(ctx context.Context, table string, n int) ([]*core.ChangeEvent, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	if n <= 0 {
		return nil, nil
	}

	raw, err := q.ops.ListRange(ctx, q.historyKey(table), -int64(n), -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read change history for %s: %w", table, err)
	}

	events := make([]*core.ChangeEvent, 0, len(raw))
	for _, data := range raw {
		var e core.ChangeEvent
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		events = append(events, &e)
	}
	return events, nil
}

// Size returns the global list length, or -1 when Redis cannot be reached.
func (q *RedisQueue) Size() int {
	if q.isClosed() {
		return 0
	}
	n, err := q.ops.ListLength(context.Background(), q.globalKey())
	if err != nil {
		return -1
	}
	return int(n)
}

// Close marks the queue closed. The KV store is owned by the caller.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
