// Package recordstore is the public entry point: it opens the configured
// database, exposes the event table and runs the change feed drainer that
// keeps the key-value mirror up to date.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/recordstore/internal/client"
	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
)

// ErrMirrorDisabled is returned by Lookup when no mirror is configured.
var ErrMirrorDisabled = errors.New("record mirror is disabled")

// AlarmEvent is one row of the event table.
type AlarmEvent = event.AlarmEvent

// EventTable is the CRUD and aggregate API of the event table.
type EventTable = event.Store

// Client is the main interface of the record store.
//
// Typical usage:
//
//	client, _ := recordstore.NewClient(config)
//	defer client.Close()
//
//	events, _ := client.Events(ctx)
//	client.Start(ctx) // start the mirror drainer
//	defer client.Stop()
//
//	events.Insert(ctx, event.Make(event.WithName(1)), false)
type Client interface {
	// Events returns the event table, creating it when the table's
	// auto_create setting is on (the default).
	Events(ctx context.Context) (*EventTable, error)

	// Connection returns the database connection shared by all tables.
	Connection() core.Connection

	// Lookup reads a mirrored row by table name and key.
	Lookup(ctx context.Context, table, key string) (map[string]interface{}, error)

	// Start starts the background drainer. It does not block, and is a
	// no-op when the change feed has no consumer.
	Start(ctx context.Context) error

	// Stop stops the background drainer and waits for the event in flight.
	Stop() error

	// IsRunning returns whether the drainer is running.
	IsRunning() bool

	// Drainer returns the change feed drainer, or nil when there is none.
	Drainer() *Drainer

	// Close stops the drainer and closes every connection.
	Close() error
}

// Option configures a client.
type Option func(*clientOptions)

type clientOptions struct {
	logger  *slog.Logger
	applier core.ChangeApplier
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithApplier sets the consumer of change events, replacing the
// configured mirror. It requires changefeed.enabled.
func WithApplier(applier core.ChangeApplier) Option {
	return func(o *clientOptions) { o.applier = applier }
}

// configProvider hands the configuration to the internal client as YAML.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

const changeFeedDrainer = "changefeed"

type clientWrapper struct {
	mu             sync.RWMutex
	impl           *client.ClientImpl
	drainerManager *DrainerManager
	started        bool
}

// NewClient creates a client from config. It opens the database, and the
// change queue, key-value store and mirror when they are enabled.
func NewClient(config *Config, opts ...Option) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	impl, err := client.NewClientImpl(context.Background(), &configProvider{config: config}, o.logger)
	if err != nil {
		return nil, err
	}

	cw := &clientWrapper{
		impl:           impl,
		drainerManager: NewDrainerManager(config.Drainer.DrainerConfig(), o.logger),
	}

	applier := o.applier
	if applier == nil && impl.Mirror() != nil {
		applier = impl.Mirror()
	}
	if applier != nil {
		if impl.Queue() == nil {
			_ = impl.Close()
			return nil, fmt.Errorf("a change applier requires changefeed.enabled")
		}
		cw.drainerManager.AddDrainer(changeFeedDrainer, impl.Queue(), applier)
	}
	return cw, nil
}

// Events returns the event table.
func (cw *clientWrapper) Events(ctx context.Context) (*EventTable, error) {
	return cw.impl.Events(ctx)
}

// Connection returns the database connection.
func (cw *clientWrapper) Connection() core.Connection {
	return cw.impl.Connection()
}

// Lookup reads a mirrored row.
func (cw *clientWrapper) Lookup(ctx context.Context, table, key string) (map[string]interface{}, error) {
	m := cw.impl.Mirror()
	if m == nil {
		return nil, ErrMirrorDisabled
	}
	return m.Lookup(ctx, table, key)
}

// Start starts the background drainer.
func (cw *clientWrapper) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.started {
		return nil
	}
	if err := cw.drainerManager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start drainers: %w", err)
	}
	cw.started = true
	return nil
}

// Stop stops the background drainer.
func (cw *clientWrapper) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.started {
		return nil
	}
	if err := cw.drainerManager.StopAll(); err != nil {
		return fmt.Errorf("failed to stop drainers: %w", err)
	}
	cw.started = false
	return nil
}

// IsRunning returns whether the drainer is running.
func (cw *clientWrapper) IsRunning() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.started
}

// Drainer returns the change feed drainer.
func (cw *clientWrapper) Drainer() *Drainer {
	return cw.drainerManager.GetDrainer(changeFeedDrainer)
}

// Close stops the drainer, then closes all connections.
func (cw *clientWrapper) Close() error {
	stopErr := cw.Stop()
	return errors.Join(stopErr, cw.impl.Close())
}
