package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

type fakeValidator struct {
	err error
}

func (v *fakeValidator) Type() string { return "fake" }

func (v *fakeValidator) Validate(config *InternalConfig) error { return v.err }

var testValidator = &fakeValidator{}

func init() {
	RegisterValidator(testValidator)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cm := NewConfigManager()
	cfg := cm.GetConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.ChangeFeed.Enabled)
	assert.False(t, cfg.NeedsKVStore())
}

func TestLoadYAMLFileWithEnvAndOverrides(t *testing.T) {
	path := writeFile(t, "recordstore.yaml", `
database:
  driver: postgres
  host: db.internal
  port: 5432
  database: alarms
  connection_timeout: 3s
changefeed:
  enabled: true
  queue_type: kafka
  kafka_config:
    brokers: [k1:9092, k2:9092]
    topic: alarms
drainer:
  drain_rate: 10
tables:
  event:
    auto_create: false
    publish: true
`)
	t.Setenv("RECORDSTORE_DATABASE_USERNAME", "svc")
	t.Setenv("RECORDSTORE_DRAINER_BATCH_SIZE", "7")

	cm := NewConfigManager()
	require.NoError(t, cm.Load(path, map[string]interface{}{"database.database": "override"}))
	cfg := cm.GetConfig()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "override", cfg.Database.Database)
	assert.Equal(t, "svc", cfg.Database.Username)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectionTimeout)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns, "defaults survive a partial file")

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.ChangeFeed.KafkaConfig.Brokers)
	assert.Equal(t, 10, cfg.Drainer.DrainRate)
	assert.Equal(t, 7, cfg.Drainer.BatchSize)

	assert.Equal(t, InternalTableConfig{AutoCreate: false, Publish: true}, cm.GetTableConfig("event"))
	assert.Equal(t, InternalTableConfig{AutoCreate: true, Publish: true}, cm.GetTableConfig("other"))
}

func TestLoadNestedEnv(t *testing.T) {
	t.Setenv("RECORDSTORE_CHANGEFEED__KAFKA_CONFIG__BROKERS", "a:1,b:2")
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromEnv())
	assert.Equal(t, []string{"a:1", "b:2"}, cm.GetConfig().ChangeFeed.KafkaConfig.Brokers)
}

func TestLoadJSONFile(t *testing.T) {
	path := writeFile(t, "recordstore.json", `{"database": {"driver": "mysql", "host": "h", "port": 3307}}`)
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(path))
	assert.Equal(t, "mysql", cm.GetConfig().Database.Driver)
	assert.Equal(t, 3307, cm.GetConfig().Database.Port)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "recordstore.toml", "")
	err := NewConfigManager().LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromYAMLAndJSONData(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromYAML([]byte("drainer:\n  retry_backoff_max: 1m\n")))
	assert.Equal(t, time.Minute, cm.GetConfig().Drainer.RetryBackoffMax)

	require.NoError(t, cm.LoadFromJSON([]byte(`{"mirror": {"namespace": "n"}}`)))
	assert.Equal(t, "n", cm.GetConfig().Mirror.Namespace)
	assert.Equal(t, time.Hour, cm.GetConfig().Mirror.TTL)

	// a failed load keeps the previous configuration
	err := cm.LoadFromYAML([]byte("drainer:\n  drain_rate: 0\n"))
	require.Error(t, err)
	assert.Equal(t, "n", cm.GetConfig().Mirror.Namespace)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*InternalConfig)
		want   string
	}{
		{"no driver", func(c *InternalConfig) { c.Database.Driver = "" }, "database driver is required"},
		{"bad queue", func(c *InternalConfig) { c.ChangeFeed.QueueType = "sqs" }, "queue_type"},
		{"kafka without topic", func(c *InternalConfig) {
			c.ChangeFeed.QueueType = "kafka"
			c.ChangeFeed.KafkaConfig.Topic = ""
		}, "kafka_config.topic"},
		{"mirror without feed", func(c *InternalConfig) {
			c.Mirror.Enabled = true
			c.KVStore.Type = "fake"
		}, "mirror requires changefeed.enabled"},
		{"unknown kvstore", func(c *InternalConfig) {
			c.ChangeFeed.Enabled = true
			c.Mirror.Enabled = true
			c.KVStore.Type = "memcached"
		}, "unsupported KV store type"},
		{"redis queue on other store", func(c *InternalConfig) {
			c.ChangeFeed.Enabled = true
			c.ChangeFeed.QueueType = "redis"
			c.KVStore.Type = "fake"
		}, "requires kvstore.type 'redis'"},
		{"zero drain rate", func(c *InternalConfig) { c.Drainer.DrainRate = 0 }, "drain_rate"},
		{"backoff order", func(c *InternalConfig) { c.Drainer.RetryBackoffMax = time.Millisecond }, "retry_backoff_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultInternalConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidatorStrategy(t *testing.T) {
	cfg := DefaultInternalConfig()
	cfg.ChangeFeed.Enabled = true
	cfg.Mirror.Enabled = true
	cfg.KVStore.Type = "fake"
	require.NoError(t, ValidateConfig(cfg))

	testValidator.err = errors.New("endpoint missing")
	defer func() { testValidator.err = nil }()
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint missing")

	assert.Panics(t, func() { RegisterValidator(&fakeValidator{}) })
}

func TestDatabaseConfigConversion(t *testing.T) {
	c := InternalDatabaseConfig{Driver: "mysql", Host: "h", Port: 1, Options: map[string]string{"tls": "true"}}
	dc := c.DatabaseConfig()
	assert.Equal(t, "mysql", dc.Driver)
	assert.Equal(t, "true", dc.Options["tls"])

	dc.Options["tls"] = "false"
	assert.Equal(t, "true", c.Options["tls"])
}

func eventDescriptor() *core.TableDescriptor {
	return &core.TableDescriptor{
		Name: "event",
		Columns: []core.Column{
			{Name: "uuid", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "name", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
		},
		Keys: []string{"uuid"},
	}
}

func TestLifecycleManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLifecycleManager()

	var calls []string
	first := &LifecycleHookFunc{
		OnCreateFunc: func(_ context.Context, d *core.TableDescriptor) error {
			calls = append(calls, "first:create:"+d.Name)
			return nil
		},
	}
	failing := &LifecycleHookFunc{
		OnDropFunc: func(context.Context, *core.TableDescriptor) error { return assert.AnError },
	}
	last := &LifecycleHookFunc{
		OnDropFunc: func(context.Context, *core.TableDescriptor) error {
			calls = append(calls, "last:drop")
			return nil
		},
	}
	lm.RegisterHook(first)
	lm.RegisterHook(failing)
	lm.RegisterHook(last)
	assert.Equal(t, 3, lm.HookCount())

	require.NoError(t, lm.ExecuteCreateHooks(ctx, eventDescriptor()))
	assert.ErrorIs(t, lm.ExecuteDropHooks(ctx, eventDescriptor()), assert.AnError)
	assert.Equal(t, []string{"first:create:event"}, calls)

}

func TestTableRegistry(t *testing.T) {
	ctx := context.Background()
	lm := NewLifecycleManager()
	tr := NewTableRegistry(nil, lm)
	assert.Equal(t, 1, lm.HookCount(), "the registry hooks itself in")

	clock := time.Unix(100, 0)
	tr.now = func() time.Time { return clock }

	md, err := tr.Register(eventDescriptor())
	require.NoError(t, err)
	assert.False(t, md.Exists)
	assert.True(t, md.Config.AutoCreate)

	require.NoError(t, lm.ExecuteCreateHooks(ctx, eventDescriptor()))
	md, err = tr.Get("event")
	require.NoError(t, err)
	assert.True(t, md.Exists)
	require.NotNil(t, md.CreatedAt)
	assert.Equal(t, clock, *md.CreatedAt)

	// re-registering keeps the history
	clock = clock.Add(time.Minute)
	_, err = tr.Register(eventDescriptor())
	require.NoError(t, err)
	md, _ = tr.Get("event")
	assert.True(t, md.Exists)

	require.NoError(t, lm.ExecuteDropHooks(ctx, eventDescriptor()))
	md, _ = tr.Get("event")
	assert.False(t, md.Exists)
	require.NotNil(t, md.DroppedAt)
	assert.Equal(t, []string{"event"}, tr.List())
	assert.Equal(t, 1, tr.Count())

	_, err = tr.Get("reading")
	assert.Error(t, err)
}

func TestTableRegistryRejectsBadDescriptor(t *testing.T) {
	tr := NewTableRegistry(nil, nil)
	desc := eventDescriptor()
	desc.Keys = []string{"missing"}
	_, err := tr.Register(desc)
	require.Error(t, err)
	_, err = tr.Register(nil)
	require.Error(t, err)
}
