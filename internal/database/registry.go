package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Opener opens a connection for one backend.
type Opener func(ctx context.Context, cfg *Config, logger *slog.Logger) (*SQLConnection, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register adds a backend opener. It is called from init() by each
// backend and panics on duplicate names.
func Register(name string, opener Opener) {
	if name == "" {
		panic("driver name cannot be empty")
	}
	if opener == nil {
		panic("opener cannot be nil")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("driver %q is already registered", name))
	}
	registry[name] = opener
}

// Open opens a connection with the backend named by cfg.Driver.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*SQLConnection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registryMu.RLock()
	opener, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDriverError{Driver: cfg.Driver, Available: Drivers()}
	}
	return opener(ctx, cfg, logger)
}

// Drivers returns all registered driver names (sorted).
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDriverError is returned when an unregistered driver is requested.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown database driver %q (available: %v)", e.Driver, e.Available)
}
