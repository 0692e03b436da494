package core

import (
	"context"
	"time"
)

// OperationType is the kind of change a table write produced.
type OperationType string

const (
	// OperationInsert is an INSERT or upsert.
	OperationInsert OperationType = "INSERT"

	// OperationUpdate is an UPDATE.
	OperationUpdate OperationType = "UPDATE"

	// OperationDelete is a DELETE of one row.
	OperationDelete OperationType = "DELETE"

	// OperationDrop is a DROP TABLE.
	OperationDrop OperationType = "DROP"
)

// ChangeEvent describes one committed write. Events are published after
// the write has reached the database, so consumers only ever see
// committed state.
type ChangeEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Table is the table the write targeted.
	Table string `json:"table"`

	// Operation is the kind of write.
	Operation OperationType `json:"operation"`

	// Key is the row's key values joined with ":"; empty for OperationDrop.
	Key string `json:"key,omitempty"`

	// Data is the column record for inserts and updates.
	Data map[string]interface{} `json:"data,omitempty"`

	// Timestamp is when the write committed.
	Timestamp time.Time `json:"timestamp"`

	// RetryCount tracks delivery attempts by the drainer.
	RetryCount int `json:"retry_count"`
}

// ChangeQueue buffers change events between the table layer and
// downstream consumers.
type ChangeQueue interface {
	// Enqueue appends an event.
	Enqueue(ctx context.Context, event *ChangeEvent) error

	// Dequeue removes up to batchSize events. It returns an empty slice
	// when nothing is pending.
	Dequeue(ctx context.Context, batchSize int) ([]*ChangeEvent, error)

	// Size returns the number of pending events, or -1 if unknown.
	Size() int

	// Close releases the queue.
	Close() error
}

// ChangeApplier consumes change events, e.g. by mirroring rows into a
// key-value store.
type ChangeApplier interface {
	Apply(ctx context.Context, event *ChangeEvent) error
}
