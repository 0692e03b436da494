// Package mirror keeps a key-value copy of committed rows, fed by the change
// feed. Table reads never consult the mirror; it exists for consumers that
// want point lookups without touching the database.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/schema"
)

// ErrInvalidEvent is returned by Apply for an event it cannot route.
var ErrInvalidEvent = errors.New("invalid change event")

// ErrUnknownTable is returned for a table the mirror has no descriptor for.
var ErrUnknownTable = errors.New("table is not mirrored")

// KeyBuilder builds mirror keys in the format {namespace}:{table}:{key}.
// The namespace segment is omitted when empty.
type KeyBuilder struct {
	namespace string
}

// NewKeyBuilder creates a key builder.
func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// BuildKey returns the mirror key for a row of tableName.
func (kb *KeyBuilder) BuildKey(tableName, key string) string {
	if kb.namespace != "" {
		return fmt.Sprintf("%s:%s:%s", kb.namespace, tableName, key)
	}
	return fmt.Sprintf("%s:%s", tableName, key)
}

// KVMirror applies change events to a core.KVStore. Rows are validated and
// serialized against the descriptor of their table.
type KVMirror struct {
	store      core.KVStore
	keys       *KeyBuilder
	translator core.RecordTranslator
	tables     map[string]*core.TableDescriptor
	ttl        time.Duration
	logger     *slog.Logger
}

// Option configures a KVMirror.
type Option func(*KVMirror)

// WithNamespace prefixes every key with namespace.
func WithNamespace(namespace string) Option {
	return func(m *KVMirror) { m.keys = NewKeyBuilder(namespace) }
}

// WithTTL expires mirrored rows after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(m *KVMirror) { m.ttl = ttl }
}

// WithLogger sets the mirror logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *KVMirror) { m.logger = logger }
}

// WithTables registers the tables whose rows are mirrored.
func WithTables(descs ...*core.TableDescriptor) Option {
	return func(m *KVMirror) {
		for _, d := range descs {
			m.tables[d.Name] = d
		}
	}
}

// New returns a mirror writing to store.
func New(store core.KVStore, opts ...Option) (*KVMirror, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store is required")
	}
	m := &KVMirror{
		store:      store,
		keys:       NewKeyBuilder(""),
		translator: schema.NewTranslator(),
		tables:     make(map[string]*core.TableDescriptor),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	m.logger = m.logger.With(slog.String("component", "mirror"))
	return m, nil
}

func (m *KVMirror) descriptor(table string) (*core.TableDescriptor, error) {
	desc, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return desc, nil
}

// Apply writes event to the store: inserts and updates overwrite the row,
// deletes remove it. A drop is only logged, since the store cannot
// enumerate a table's keys.
func (m *KVMirror) Apply(ctx context.Context, event *core.ChangeEvent) error {
	if event == nil || event.Table == "" {
		return ErrInvalidEvent
	}

	switch event.Operation {
	case core.OperationInsert, core.OperationUpdate:
		if event.Key == "" {
			return fmt.Errorf("%w: %s without key", ErrInvalidEvent, event.Operation)
		}
		desc, err := m.descriptor(event.Table)
		if err != nil {
			return err
		}
		if event.Data == nil {
			return fmt.Errorf("%w: %s of %s without data", ErrInvalidEvent, event.Operation, event.Key)
		}
		rowKey, data, err := m.translator.ToKV(event.Data, desc)
		if err != nil {
			return fmt.Errorf("%w: %s row %s: %v", ErrInvalidEvent, event.Table, event.Key, err)
		}
		if rowKey != event.Key {
			return fmt.Errorf("%w: key %s does not match row key %s", ErrInvalidEvent, event.Key, rowKey)
		}

		key := m.keys.BuildKey(event.Table, rowKey)
		if err := m.store.Set(ctx, key, data, m.ttl); err != nil {
			return fmt.Errorf("failed to mirror %s: %w", key, err)
		}
		m.logger.Debug("row mirrored", slog.String("key", key), slog.String("operation", string(event.Operation)))

	case core.OperationDelete:
		if event.Key == "" {
			return fmt.Errorf("%w: DELETE without key", ErrInvalidEvent)
		}
		key := m.keys.BuildKey(event.Table, event.Key)
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
		m.logger.Debug("row removed", slog.String("key", key))

	case core.OperationDrop:
		m.logger.Info("table dropped, mirrored rows expire on their own", slog.String("table", event.Table))

	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidEvent, event.Operation)
	}
	return nil
}

// Lookup returns the mirrored record for key in table, or an error wrapping
// core.ErrKeyNotFound. Values are typed by the table's columns.
func (m *KVMirror) Lookup(ctx context.Context, table, key string) (map[string]interface{}, error) {
	desc, err := m.descriptor(table)
	if err != nil {
		return nil, err
	}
	data, err := m.store.Get(ctx, m.keys.BuildKey(table, key))
	if err != nil {
		return nil, err
	}

	record, err := m.translator.FromKV(key, data, desc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mirrored %s row %s: %w", table, key, err)
	}
	return record, nil
}

// Store returns the underlying key-value store.
func (m *KVMirror) Store() core.KVStore {
	return m.store
}
