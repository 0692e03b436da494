package changefeed

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// MemoryQueue is a bounded in-process queue backed by a buffered channel.
// Events do not survive a restart.
type MemoryQueue struct {
	mu     sync.RWMutex
	queue  chan *core.ChangeEvent
	closed bool
}

// NewMemoryQueue returns a queue holding at most bufferSize events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{queue: make(chan *core.ChangeEvent, bufferSize)}
}

// Enqueue appends e without blocking. A full buffer returns ErrQueueFull.
func (q *MemoryQueue) Enqueue(ctx context.Context, e *core.ChangeEvent) error {
	if err := prepare(e); err != nil {
		return err
	}

	// the read lock is held across the send so Close cannot close the
	// channel underneath it
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue returns up to batchSize pending events in FIFO order without
// waiting for more to arrive.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	events := make([]*core.ChangeEvent, 0, batchSize)
	for len(events) < batchSize {
		select {
		case e, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, e)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Size returns the number of buffered events.
func (q *MemoryQueue) Size() int {
	return len(q.queue)
}

// Close stops further enqueues. Buffered events can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
