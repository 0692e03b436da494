// Package client wires the database connection, change feed, mirror and
// table registry together from one configuration.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rzpsarthak13/recordstore/internal/changefeed"
	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/database"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/kvstore"
	"github.com/rzpsarthak13/recordstore/internal/mirror"
	"github.com/rzpsarthak13/recordstore/internal/registry"
	"github.com/rzpsarthak13/recordstore/internal/table"
)

// ErrClientClosed is returned by operations on a closed client.
var ErrClientClosed = errors.New("client is closed")

// ConfigProvider supplies the configuration as YAML so the public package
// does not have to be imported here.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// ClientImpl owns every resource opened from the configuration.
type ClientImpl struct {
	mu            sync.RWMutex
	configMgr     *registry.ConfigManager
	conn          *database.SQLConnection
	kvStore       core.KVStore
	queue         core.ChangeQueue
	mirror        *mirror.KVMirror
	tableRegistry *registry.TableRegistry
	lifecycle     *registry.LifecycleManager
	logger        *slog.Logger
	closed        bool
}

// NewClientImpl loads the configuration and opens the connection, the KV
// store (when the mirror or the Redis queue needs one), the change queue
// and the mirror. Anything opened before a failure is closed again.
func NewClientImpl(ctx context.Context, configProvider ConfigProvider, logger *slog.Logger) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewClientFromManager(ctx, configMgr, logger)
}

// NewClientFromManager builds a client from an already loaded configuration.
func NewClientFromManager(ctx context.Context, configMgr *registry.ConfigManager, logger *slog.Logger) (*ClientImpl, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lifecycle := registry.NewLifecycleManager()
	c := &ClientImpl{
		configMgr:     configMgr,
		lifecycle:     lifecycle,
		tableRegistry: registry.NewTableRegistry(configMgr, lifecycle),
		logger:        logger.With(slog.String("component", "client")),
	}

	if err := c.initializeConnections(ctx, logger); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize connections: %w", err)
	}
	return c, nil
}

func (c *ClientImpl) initializeConnections(ctx context.Context, logger *slog.Logger) error {
	config := c.configMgr.GetConfig()

	conn, err := database.Open(ctx, config.Database.DatabaseConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.conn = conn

	if config.NeedsKVStore() {
		store, err := kvstore.Create(kvstore.ConfigFrom(config.KVStore, logger))
		if err != nil {
			return fmt.Errorf("failed to create KV store: %w", err)
		}
		c.kvStore = store
	}

	if config.ChangeFeed.Enabled {
		queue, err := changefeed.NewQueue(queueConfig(config.ChangeFeed), c.kvStore, logger)
		if err != nil {
			return fmt.Errorf("failed to create change queue: %w", err)
		}
		c.queue = queue
	}

	if config.Mirror.Enabled {
		m, err := mirror.New(c.kvStore,
			mirror.WithNamespace(config.Mirror.Namespace),
			mirror.WithTTL(config.Mirror.TTL),
			mirror.WithTables(event.Descriptor()),
			mirror.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create mirror: %w", err)
		}
		c.mirror = m
	}

	c.logger.Info("client initialized",
		slog.String("driver", config.Database.Driver),
		slog.Bool("changefeed", c.queue != nil),
		slog.Bool("mirror", c.mirror != nil))
	return nil
}

func queueConfig(cf registry.InternalChangeFeedConfig) changefeed.Config {
	k := cf.KafkaConfig
	return changefeed.Config{
		Type:          cf.QueueType,
		BufferSize:    cf.BufferSize,
		Prefix:        cf.Prefix,
		HistoryLength: cf.HistoryLength,
		Kafka: changefeed.KafkaConfig{
			Brokers:      k.Brokers,
			Topic:        k.Topic,
			GroupID:      k.GroupID,
			BatchSize:    k.BatchSize,
			BatchTimeout: k.BatchTimeout,
			WriteTimeout: k.WriteTimeout,
			RequiredAcks: k.RequiredAcks,
			MinBytes:     k.MinBytes,
			MaxBytes:     k.MaxBytes,
			MaxWait:      k.MaxWait,
			PollTimeout:  k.PollTimeout,
		},
	}
}

func (c *ClientImpl) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// TableOptions returns the table options for tableName: the logger, the
// lifecycle hooks, and the change queue when the table publishes.
func (c *ClientImpl) TableOptions(tableName string) []table.Option {
	opts := []table.Option{
		table.WithLogger(c.logger.With(slog.String("table", tableName))),
		table.WithLifecycle(c.lifecycle),
	}
	if c.queue != nil && c.configMgr.GetTableConfig(tableName).Publish {
		opts = append(opts, table.WithChangeQueue(c.queue))
	}
	return opts
}

// Events registers and returns the event table, creating it when the
// table's auto_create setting is on.
func (c *ClientImpl) Events(ctx context.Context) (*event.Store, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	md, err := c.tableRegistry.Register(event.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("failed to register table %q: %w", event.TableName, err)
	}

	opts := c.TableOptions(event.TableName)
	if md.Config.AutoCreate {
		return event.Open(ctx, c.conn, opts...)
	}
	return event.NewStore(c.conn, opts...)
}

// Connection returns the database connection.
func (c *ClientImpl) Connection() *database.SQLConnection { return c.conn }

// Queue returns the change queue, or nil when the change feed is disabled.
func (c *ClientImpl) Queue() core.ChangeQueue { return c.queue }

// Mirror returns the record mirror, or nil when it is disabled.
func (c *ClientImpl) Mirror() *mirror.KVMirror { return c.mirror }

// Config returns the loaded configuration.
func (c *ClientImpl) Config() *registry.InternalConfig { return c.configMgr.GetConfig() }

// TableRegistry returns the registry of opened tables.
func (c *ClientImpl) TableRegistry() *registry.TableRegistry { return c.tableRegistry }

// LifecycleManager returns the hook manager shared by every table.
func (c *ClientImpl) LifecycleManager() *registry.LifecycleManager { return c.lifecycle }

// Close closes the change queue, the KV store and the database, in that
// order. Closing twice is a no-op.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close change queue: %w", err))
		}
	}
	if c.kvStore != nil {
		if err := c.kvStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close KV store: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.logger.Info("client closed")
	return nil
}
