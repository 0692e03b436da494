package registry

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// LifecycleHook runs after a table has been created or dropped.
type LifecycleHook interface {
	// OnCreate is called after CREATE TABLE succeeded.
	OnCreate(ctx context.Context, desc *core.TableDescriptor) error

	// OnDrop is called after DROP TABLE succeeded.
	OnDrop(ctx context.Context, desc *core.TableDescriptor) error
}

// LifecycleHookFunc adapts plain functions to LifecycleHook. Nil fields are no-ops.
type LifecycleHookFunc struct {
	OnCreateFunc func(ctx context.Context, desc *core.TableDescriptor) error
	OnDropFunc   func(ctx context.Context, desc *core.TableDescriptor) error
}

// OnCreate calls OnCreateFunc if set.
func (f *LifecycleHookFunc) OnCreate(ctx context.Context, desc *core.TableDescriptor) error {
	if f.OnCreateFunc != nil {
		return f.OnCreateFunc(ctx, desc)
	}
	return nil
}

// OnDrop calls OnDropFunc if set.
func (f *LifecycleHookFunc) OnDrop(ctx context.Context, desc *core.TableDescriptor) error {
	if f.OnDropFunc != nil {
		return f.OnDropFunc(ctx, desc)
	}
	return nil
}

// LifecycleManager runs registered hooks in registration order.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager returns a manager with no hooks.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// RegisterHook appends hook.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteCreateHooks runs every OnCreate hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteCreateHooks(ctx context.Context, desc *core.TableDescriptor) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnCreate(ctx, desc); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteDropHooks runs every OnDrop hook, stopping at the first error.
func (lm *LifecycleManager) ExecuteDropHooks(ctx context.Context, desc *core.TableDescriptor) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnDrop(ctx, desc); err != nil {
			return err
		}
	}
	return nil
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
