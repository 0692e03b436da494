package table

import (
	"context"
	"log/slog"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// Lifecycle runs hooks after a table is created or dropped.
type Lifecycle interface {
	ExecuteCreateHooks(ctx context.Context, desc *core.TableDescriptor) error
	ExecuteDropHooks(ctx context.Context, desc *core.TableDescriptor) error
}

type options struct {
	logger    *slog.Logger
	queue     core.ChangeQueue
	lifecycle Lifecycle
}

// Option configures a Table.
type Option func(*options)

// WithLogger sets the table logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithChangeQueue publishes a change event for every committed write.
func WithChangeQueue(queue core.ChangeQueue) Option {
	return func(o *options) {
		o.queue = queue
	}
}

// WithLifecycle runs create and drop hooks through lc.
func WithLifecycle(lc Lifecycle) Option {
	return func(o *options) {
		o.lifecycle = lc
	}
}
