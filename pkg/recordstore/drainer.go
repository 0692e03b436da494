package recordstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// Drainer moves change events from a queue to a ChangeApplier at a
// controlled rate so a slow downstream store is not overwhelmed.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	name    string
	queue   core.ChangeQueue
	applier core.ChangeApplier
	config  DrainerConfig
	logger  *slog.Logger

	applied atomic.Int64
	dropped atomic.Int64
}

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of events applied per second.
	DrainRate int

	// BatchSize is how many events to dequeue at once.
	BatchSize int

	// PollInterval is how long to sleep when the queue is empty.
	PollInterval time.Duration

	// MaxRetries is how often a failed event is retried before it is dropped.
	MaxRetries int

	// RetryBackoff is the first retry delay. It doubles on every attempt
	// up to RetryBackoffMax.
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
}

// DrainerStats is a snapshot of drainer progress.
type DrainerStats struct {
	Applied   int64
	Dropped   int64
	QueueSize int
}

const requeueTimeout = 5 * time.Second

// DefaultDrainerConfig returns sensible defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:       50,
		BatchSize:       100,
		PollInterval:    100 * time.Millisecond,
		MaxRetries:      5,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 30 * time.Second,
	}
}

// DrainerConfig converts the settings to a drainer configuration.
func (s DrainerSettings) DrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:       s.DrainRate,
		BatchSize:       s.BatchSize,
		PollInterval:    s.PollInterval,
		MaxRetries:      s.MaxRetries,
		RetryBackoff:    s.RetryBackoffBase,
		RetryBackoffMax: s.RetryBackoffMax,
	}
}

// NewDrainer creates a drainer reading from queue and applying to applier.
// Zero config fields take their defaults. If logger is nil, logs are discarded.
func NewDrainer(name string, queue core.ChangeQueue, applier core.ChangeApplier, config DrainerConfig, logger *slog.Logger) *Drainer {
	def := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = def.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = def.RetryBackoff
	}
	if config.RetryBackoffMax < config.RetryBackoff {
		config.RetryBackoffMax = config.RetryBackoff
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Drainer{
		name:    name,
		queue:   queue,
		applier: applier,
		config:  config,
		logger:  logger.With(slog.String("component", "drainer"), slog.String("drainer", name)),
	}
}

// Start begins the drainer goroutine. It does not block; call Stop to shut
// the drainer down. Starting a running drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Debug("already running")
		return nil
	}
	d.running = true
	// fresh channels so a stopped drainer can be restarted
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	go d.run(ctx, stopCh, doneCh)
	d.logger.Info("started", slog.Int("drain_rate", d.config.DrainRate), slog.Int("batch_size", d.config.BatchSize))
	return nil
}

// Stop stops the drainer and waits for the event in flight to finish.
// Events still queued stay queued.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	d.logger.Info("stopped", slog.Int64("applied", d.applied.Load()), slog.Int64("dropped", d.dropped.Load()))
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Stats returns the drainer counters and the current queue size.
func (d *Drainer) Stats() DrainerStats {
	return DrainerStats{
		Applied:   d.applied.Load(),
		Dropped:   d.dropped.Load(),
		QueueSize: d.queue.Size(),
	}
}

// GetConfig returns the drainer configuration.
func (d *Drainer) GetConfig() DrainerConfig {
	return d.config
}

// run is the drainer loop. waitCtx is cancelled on Stop and bounds every
// wait; ctx is handed to the applier so the event in flight completes.
func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	// DrainRate tokens per second, one event per token
	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)

	for waitCtx.Err() == nil {
		events, err := d.queue.Dequeue(waitCtx, d.config.BatchSize)
		if err != nil && waitCtx.Err() == nil {
			d.logger.Error("dequeue failed", slog.Any("error", err))
			d.sleep(waitCtx, d.config.PollInterval)
			continue
		}
		if len(events) == 0 {
			d.sleep(waitCtx, d.config.PollInterval)
			continue
		}

		for _, e := range events {
			if e == nil {
				continue
			}
			// events already taken off the queue are applied even when
			// stopping, without waiting for the limiter
			if err := limiter.Wait(waitCtx); err != nil && waitCtx.Err() == nil {
				d.logger.Warn("rate limiter error", slog.Any("error", err))
			}
			d.apply(ctx, waitCtx, e)
		}
	}
}

// apply hands e to the applier, retrying with exponential backoff. After
// MaxRetries failed retries the event is dropped with an Error log. An
// event that fails while the drainer stops goes back on the queue.
func (d *Drainer) apply(ctx, waitCtx context.Context, e *core.ChangeEvent) {
	backoff := d.config.RetryBackoff
	for {
		err := d.applier.Apply(ctx, e)
		if err == nil {
			d.applied.Add(1)
			d.logger.Debug("change applied",
				slog.String("table", e.Table),
				slog.String("operation", string(e.Operation)),
				slog.String("key", e.Key))
			return
		}

		if waitCtx.Err() != nil && e.RetryCount < d.config.MaxRetries {
			d.requeue(ctx, e, err)
			return
		}
		if errors.Is(err, context.Canceled) || e.RetryCount >= d.config.MaxRetries {
			d.dropped.Add(1)
			d.logger.Error("dropping change event",
				slog.String("id", e.ID),
				slog.String("table", e.Table),
				slog.String("key", e.Key),
				slog.Int("retries", e.RetryCount),
				slog.Any("error", err))
			return
		}

		e.RetryCount++
		d.logger.Warn("apply failed, retrying",
			slog.String("id", e.ID),
			slog.Int("attempt", e.RetryCount),
			slog.Duration("backoff", backoff),
			slog.Any("error", err))
		d.sleep(waitCtx, backoff)
		backoff = min(backoff*2, d.config.RetryBackoffMax)
	}
}

// requeue returns e to the queue. ctx may already be cancelled, so the
// enqueue runs detached from it with its own deadline.
func (d *Drainer) requeue(ctx context.Context, e *core.ChangeEvent, cause error) {
	enqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	if err := d.queue.Enqueue(enqCtx, e); err != nil {
		d.dropped.Add(1)
		d.logger.Error("dropping change event, requeue failed",
			slog.String("id", e.ID),
			slog.String("table", e.Table),
			slog.String("key", e.Key),
			slog.Any("cause", cause),
			slog.Any("error", err))
		return
	}
	d.logger.Warn("change event requeued on stop",
		slog.String("id", e.ID),
		slog.String("table", e.Table),
		slog.String("key", e.Key),
		slog.Int("retries", e.RetryCount),
		slog.Any("error", cause))
}

func (d *Drainer) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// DrainerManager manages the drainers of a client, keyed by name.
type DrainerManager struct {
	mu       sync.RWMutex
	drainers map[string]*Drainer
	config   DrainerConfig
	logger   *slog.Logger
}

// NewDrainerManager creates a new drainer manager.
func NewDrainerManager(config DrainerConfig, logger *slog.Logger) *DrainerManager {
	return &DrainerManager{
		drainers: make(map[string]*Drainer),
		config:   config,
		logger:   logger,
	}
}

// AddDrainer adds a drainer for queue. An existing drainer with the same
// name is returned unchanged.
func (dm *DrainerManager) AddDrainer(name string, queue core.ChangeQueue, applier core.ChangeApplier) *Drainer {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if existing, ok := dm.drainers[name]; ok {
		return existing
	}
	drainer := NewDrainer(name, queue, applier, dm.config, dm.logger)
	dm.drainers[name] = drainer
	return drainer
}

// GetDrainer returns the named drainer, or nil.
func (dm *DrainerManager) GetDrainer(name string) *Drainer {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.drainers[name]
}

// StartAll starts all drainers.
func (dm *DrainerManager) StartAll(ctx context.Context) error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	for _, drainer := range dm.drainers {
		if err := drainer.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all drainers.
func (dm *DrainerManager) StopAll() error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	var errs []error
	for _, drainer := range dm.drainers {
		if err := drainer.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveDrainer stops and removes the named drainer.
func (dm *DrainerManager) RemoveDrainer(name string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	drainer, ok := dm.drainers[name]
	if !ok {
		return nil
	}
	if err := drainer.Stop(); err != nil {
		return err
	}
	delete(dm.drainers, name)
	return nil
}

// Count returns the number of drainers.
func (dm *DrainerManager) Count() int {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return len(dm.drainers)
}
