package recordstore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/entity/event"
	"github.com/rzpsarthak13/recordstore/internal/testutil"
)

func TestConfigProviderRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tables["event"] = TableConfig{AutoCreate: false, Publish: true}

	data, err := (&configProvider{config: cfg}).GetYAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "ttl: 1h0m0s")

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, cfg.Drainer, back.Drainer)
	assert.Equal(t, cfg.Tables, back.Tables)
}

func TestClientDrainsToApplier(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.ChangeFeed.Enabled = true
	cfg.Drainer.DrainRate = 1000
	cfg.Drainer.PollInterval = 5 * time.Millisecond

	applier := newRecordingApplier()
	c, err := NewClient(cfg, WithApplier(applier), WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Drainer())
	assert.Equal(t, "sqlite", c.Connection().Dialect())

	events, err := c.Events(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())

	e := event.Make(event.WithName(1), event.WithStatus(2))
	require.NoError(t, events.Insert(ctx, e, false))
	require.NoError(t, events.Delete(ctx, e.UUID))

	key := strconv.FormatInt(e.UUID, 10)
	assert.Eventually(t, func() bool { return len(applier.appliedKeys()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{key, key}, applier.appliedKeys())

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	require.NoError(t, c.Close())
}

func TestClientWithoutChangeFeed(t *testing.T) {
	ctx := context.Background()
	c, err := NewClient(DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Drainer())
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop())

	_, err = c.Lookup(ctx, "event", "1")
	assert.ErrorIs(t, err, ErrMirrorDisabled)

	events, err := c.Events(ctx)
	require.NoError(t, err)
	n, err := events.Count(ctx, nil, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(DefaultConfig(), WithApplier(core.ChangeApplier(newRecordingApplier())))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changefeed.enabled")

	cfg := DefaultConfig()
	cfg.Drainer.DrainRate = 0
	_, err = NewClient(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drain_rate")
}
