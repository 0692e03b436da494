package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/schema"
)

// TableMetadata describes a table opened through the client.
type TableMetadata struct {
	// TableName is the SQL table name.
	TableName string

	// Descriptor is the table's column metadata.
	Descriptor *core.TableDescriptor

	// Config is the table's effective configuration.
	Config InternalTableConfig

	// Exists is true between a successful create and a drop.
	Exists bool

	// CreatedAt is when the table was last created.
	CreatedAt *time.Time

	// DroppedAt is when the table was last dropped.
	DroppedAt *time.Time

	// RegisteredAt is when the table was first registered.
	RegisteredAt time.Time

	// UpdatedAt is when the metadata last changed.
	UpdatedAt time.Time
}

// TableRegistry tracks registered tables. It is itself a LifecycleHook so
// create and drop events keep the metadata current.
type TableRegistry struct {
	mu        sync.RWMutex
	tables    map[string]*TableMetadata
	configMgr *ConfigManager
	now       func() time.Time
}

var _ LifecycleHook = (*TableRegistry)(nil)

// NewTableRegistry returns a registry and registers it on lifecycle.
func NewTableRegistry(configMgr *ConfigManager, lifecycle *LifecycleManager) *TableRegistry {
	if configMgr == nil {
		configMgr = NewConfigManager()
	}
	if lifecycle == nil {
		lifecycle = NewLifecycleManager()
	}
	tr := &TableRegistry{
		tables:    make(map[string]*TableMetadata),
		configMgr: configMgr,
		now:       time.Now,
	}
	lifecycle.RegisterHook(tr)
	return tr
}

// Register validates desc and records it. Registering a known table
// replaces its descriptor and keeps its history.
func (tr *TableRegistry) Register(desc *core.TableDescriptor) (*TableMetadata, error) {
	if desc == nil {
		return nil, fmt.Errorf("descriptor cannot be nil")
	}
	if err := schema.NewSchemaValidator(desc).ValidateDescriptor(); err != nil {
		return nil, fmt.Errorf("invalid table descriptor: %w", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.now()
	md := &TableMetadata{
		TableName:    desc.Name,
		Descriptor:   desc,
		Config:       tr.configMgr.GetTableConfig(desc.Name),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if existing, ok := tr.tables[desc.Name]; ok {
		md.Exists = existing.Exists
		md.CreatedAt = existing.CreatedAt
		md.DroppedAt = existing.DroppedAt
		md.RegisteredAt = existing.RegisteredAt
	}
	tr.tables[desc.Name] = md
	return copyMetadata(md), nil
}

// Get returns a copy of the metadata for tableName.
func (tr *TableRegistry) Get(tableName string) (*TableMetadata, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	md, ok := tr.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("table %q is not registered", tableName)
	}
	return copyMetadata(md), nil
}

func copyMetadata(md *TableMetadata) *TableMetadata {
	c := *md
	return &c
}

// OnCreate marks the table as existing. Unregistered tables are ignored.
func (tr *TableRegistry) OnCreate(_ context.Context, desc *core.TableDescriptor) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if md, ok := tr.tables[desc.Name]; ok {
		now := tr.now()
		md.Exists = true
		md.CreatedAt = &now
		md.DroppedAt = nil
		md.UpdatedAt = now
	}
	return nil
}

// OnDrop marks the table as dropped. Unregistered tables are ignored.
func (tr *TableRegistry) OnDrop(_ context.Context, desc *core.TableDescriptor) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if md, ok := tr.tables[desc.Name]; ok {
		now := tr.now()
		md.Exists = false
		md.DroppedAt = &now
		md.UpdatedAt = now
	}
	return nil
}

// List returns the registered table names in sorted order.
func (tr *TableRegistry) List() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	names := make([]string, 0, len(tr.tables))
	for name := range tr.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tables.
func (tr *TableRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.tables)
}
