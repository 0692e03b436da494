package recordstore

import (
	"time"
)

// Config represents the root configuration for the recordstore client.
type Config struct {
	// Database selects the SQL backend holding the tables.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// KVStore configures the key-value store used by the mirror and by the
	// Redis change queue. It is ignored when neither is enabled.
	KVStore KVStoreConfig `yaml:"kvstore" json:"kvstore"`

	// ChangeFeed controls publishing of committed writes.
	ChangeFeed ChangeFeedConfig `yaml:"changefeed" json:"changefeed"`

	// Mirror controls the key-value copy of committed rows.
	Mirror MirrorConfig `yaml:"mirror" json:"mirror"`

	// Drainer paces delivery of change events to the mirror.
	Drainer DrainerSettings `yaml:"drainer" json:"drainer"`

	// Tables contains table-specific configuration overrides.
	// If a table is not specified here, default settings will be used.
	Tables map[string]TableConfig `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// DatabaseConfig contains configuration for the SQL backend.
type DatabaseConfig struct {
	// Driver is one of "sqlite", "mysql", "postgres" or "duckdb".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is used verbatim when set; otherwise it is built from the fields below.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`

	// Path is the database file for sqlite and duckdb. Empty means in-memory.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Options carries driver specific settings, e.g. sslmode for postgres.
	Options map[string]string `yaml:"options,omitempty" json:"options,omitempty"`

	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// KVStoreConfig contains configuration for the key-value store.
type KVStoreConfig struct {
	// Type is "redis" or "dynamodb".
	Type string `yaml:"type" json:"type"`

	RedisConfig    RedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	// MaxRetries is the maximum number of retries for failed operations.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis-specific settings.
type RedisConfig struct {
	// Endpoints lists host:port addresses. Only the first is used.
	Endpoints []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// DB is the Redis database number (0-15).
	DB int `yaml:"db,omitempty" json:"db,omitempty"`

	PoolSize     int `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific settings.
type DynamoDBConfig struct {
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	TableName string `yaml:"table_name,omitempty" json:"table_name,omitempty"`

	// Endpoint overrides the service endpoint, e.g. for LocalStack.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are optional static credentials.
	// The default AWS credential chain is used when they are empty.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// ChangeFeedConfig controls change event publishing.
type ChangeFeedConfig struct {
	// Enabled turns publishing on for tables that allow it.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// QueueType is "memory", "redis" or "kafka" (default: "memory").
	QueueType string `yaml:"queue_type,omitempty" json:"queue_type,omitempty"`

	// BufferSize bounds the in-memory queue.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`

	// Prefix namespaces the Redis list keys.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`

	// HistoryLength is how many recent events the Redis queue keeps per table.
	HistoryLength int `yaml:"history_length,omitempty" json:"history_length,omitempty"`

	// KafkaConfig is only used when QueueType is "kafka".
	KafkaConfig KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// KafkaConfig contains configuration for the Kafka change queue.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty" json:"topic,omitempty"`
	GroupID string   `yaml:"group_id,omitempty" json:"group_id,omitempty"`

	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`

	// RequiredAcks is the number of acknowledgments required (0, 1, or -1 for all).
	RequiredAcks int `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`

	MinBytes int           `yaml:"min_bytes,omitempty" json:"min_bytes,omitempty"`
	MaxBytes int           `yaml:"max_bytes,omitempty" json:"max_bytes,omitempty"`
	MaxWait  time.Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`

	// PollTimeout bounds how long one dequeue waits for messages.
	PollTimeout time.Duration `yaml:"poll_timeout,omitempty" json:"poll_timeout,omitempty"`
}

// MirrorConfig controls the key-value record mirror.
type MirrorConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Namespace prefixes mirror keys: {namespace}:{table}:{key}.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// TTL expires mirrored rows. Zero keeps them forever.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// DrainerSettings configures the change feed drainer.
type DrainerSettings struct {
	// BatchSize is how many events one dequeue takes.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// DrainRate is the maximum number of events applied per second.
	DrainRate int `yaml:"drain_rate" json:"drain_rate"`

	// MaxRetries is how often a failed event is retried before it is dropped.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max"`

	// PollInterval is how long the drainer sleeps when the queue is empty.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// TableConfig contains table-specific configuration overrides.
type TableConfig struct {
	// AutoCreate creates the table when it is opened.
	AutoCreate bool `yaml:"auto_create" json:"auto_create"`

	// Publish sends the table's committed writes to the change feed.
	Publish bool `yaml:"publish" json:"publish"`
}

// DefaultConfig returns a configuration with sensible defaults: an
// in-memory SQLite database with the change feed and mirror switched off.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:            "sqlite",
			Path:              ":memory:",
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		KVStore: KVStoreConfig{
			Type: "redis",
			RedisConfig: RedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: ChangeFeedConfig{
			QueueType:     "memory",
			BufferSize:    10000,
			Prefix:        "changes",
			HistoryLength: 100,
			KafkaConfig: KafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "recordstore-changes",
				GroupID:      "recordstore-mirror",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1, // all replicas
				MinBytes:     1,
				MaxBytes:     10 * 1024 * 1024,
				MaxWait:      100 * time.Millisecond,
				PollTimeout:  5 * time.Second,
			},
		},
		Mirror: MirrorConfig{
			TTL: time.Hour,
		},
		Drainer: DrainerSettings{
			BatchSize:        100,
			DrainRate:        50,
			MaxRetries:       5,
			RetryBackoffBase: time.Second,
			RetryBackoffMax:  30 * time.Second,
			PollInterval:     100 * time.Millisecond,
		},
		Tables: make(map[string]TableConfig),
	}
}
