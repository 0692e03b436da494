package registry

import (
	"time"

	"github.com/rzpsarthak13/recordstore/internal/database"
)

// InternalConfig is the internal mirror of the public configuration. It is
// kept separate to avoid an import cycle with pkg/recordstore.
type InternalConfig struct {
	Database   InternalDatabaseConfig         `yaml:"database" json:"database" koanf:"database"`
	KVStore    InternalKVStoreConfig          `yaml:"kvstore" json:"kvstore" koanf:"kvstore"`
	ChangeFeed InternalChangeFeedConfig       `yaml:"changefeed" json:"changefeed" koanf:"changefeed"`
	Mirror     InternalMirrorConfig           `yaml:"mirror" json:"mirror" koanf:"mirror"`
	Drainer    InternalDrainerConfig          `yaml:"drainer" json:"drainer" koanf:"drainer"`
	Tables     map[string]InternalTableConfig `yaml:"tables" json:"tables" koanf:"tables"`
}

// InternalDatabaseConfig selects the SQL backend.
type InternalDatabaseConfig struct {
	Driver            string            `yaml:"driver" json:"driver" koanf:"driver"`
	DSN               string            `yaml:"dsn" json:"dsn" koanf:"dsn"`
	Path              string            `yaml:"path" json:"path" koanf:"path"`
	Host              string            `yaml:"host" json:"host" koanf:"host"`
	Port              int               `yaml:"port" json:"port" koanf:"port"`
	Database          string            `yaml:"database" json:"database" koanf:"database"`
	Username          string            `yaml:"username" json:"username" koanf:"username"`
	Password          string            `yaml:"password" json:"password" koanf:"password"`
	Options           map[string]string `yaml:"options" json:"options" koanf:"options"`
	MaxOpenConns      int               `yaml:"max_open_conns" json:"max_open_conns" koanf:"max_open_conns"`
	MaxIdleConns      int               `yaml:"max_idle_conns" json:"max_idle_conns" koanf:"max_idle_conns"`
	ConnMaxLifetime   time.Duration     `yaml:"conn_max_lifetime" json:"conn_max_lifetime" koanf:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration     `yaml:"conn_max_idle_time" json:"conn_max_idle_time" koanf:"conn_max_idle_time"`
	ConnectionTimeout time.Duration     `yaml:"connection_timeout" json:"connection_timeout" koanf:"connection_timeout"`
}

// DatabaseConfig converts the section into the driver registry's config.
func (c InternalDatabaseConfig) DatabaseConfig() *database.Config {
	opts := make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		opts[k] = v
	}
	return &database.Config{
		Driver:            c.Driver,
		DSN:               c.DSN,
		Path:              c.Path,
		Host:              c.Host,
		Port:              c.Port,
		Database:          c.Database,
		Username:          c.Username,
		Password:          c.Password,
		Options:           opts,
		MaxOpenConns:      c.MaxOpenConns,
		MaxIdleConns:      c.MaxIdleConns,
		ConnMaxLifetime:   c.ConnMaxLifetime,
		ConnMaxIdleTime:   c.ConnMaxIdleTime,
		ConnectionTimeout: c.ConnectionTimeout,
	}
}

// InternalKVStoreConfig configures the key-value store shared by the Redis
// change queue and the record mirror.
type InternalKVStoreConfig struct {
	Type           string                 `yaml:"type" json:"type" koanf:"type"`
	RedisConfig    InternalRedisConfig    `yaml:"redis_config" json:"redis_config" koanf:"redis_config"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config" json:"dynamodb_config" koanf:"dynamodb_config"`
	MaxRetries     int                    `yaml:"max_retries" json:"max_retries" koanf:"max_retries"`
	DialTimeout    time.Duration          `yaml:"dial_timeout" json:"dial_timeout" koanf:"dial_timeout"`
	ReadTimeout    time.Duration          `yaml:"read_timeout" json:"read_timeout" koanf:"read_timeout"`
	WriteTimeout   time.Duration          `yaml:"write_timeout" json:"write_timeout" koanf:"write_timeout"`
}

// InternalRedisConfig contains Redis-specific settings.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints" koanf:"endpoints"`
	Password     string   `yaml:"password" json:"password" koanf:"password"`
	DB           int      `yaml:"db" json:"db" koanf:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size" koanf:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns" koanf:"min_idle_conns"`
}

// InternalDynamoDBConfig contains DynamoDB-specific settings.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region" koanf:"region"`
	TableName       string `yaml:"table_name" json:"table_name" koanf:"table_name"`
	Endpoint        string `yaml:"endpoint" json:"endpoint" koanf:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" koanf:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" koanf:"secret_access_key"`
}

// InternalChangeFeedConfig controls change event publishing.
type InternalChangeFeedConfig struct {
	Enabled       bool                `yaml:"enabled" json:"enabled" koanf:"enabled"`
	QueueType     string              `yaml:"queue_type" json:"queue_type" koanf:"queue_type"`
	BufferSize    int                 `yaml:"buffer_size" json:"buffer_size" koanf:"buffer_size"`
	Prefix        string              `yaml:"prefix" json:"prefix" koanf:"prefix"`
	HistoryLength int                 `yaml:"history_length" json:"history_length" koanf:"history_length"`
	KafkaConfig   InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config" koanf:"kafka_config"`
}

// InternalKafkaConfig contains Kafka-specific settings.
type InternalKafkaConfig struct {
	Brokers      []string      `yaml:"brokers" json:"brokers" koanf:"brokers"`
	Topic        string        `yaml:"topic" json:"topic" koanf:"topic"`
	GroupID      string        `yaml:"group_id" json:"group_id" koanf:"group_id"`
	BatchSize    int           `yaml:"batch_size" json:"batch_size" koanf:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" json:"batch_timeout" koanf:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" koanf:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks" json:"required_acks" koanf:"required_acks"`
	MinBytes     int           `yaml:"min_bytes" json:"min_bytes" koanf:"min_bytes"`
	MaxBytes     int           `yaml:"max_bytes" json:"max_bytes" koanf:"max_bytes"`
	MaxWait      time.Duration `yaml:"max_wait" json:"max_wait" koanf:"max_wait"`
	PollTimeout  time.Duration `yaml:"poll_timeout" json:"poll_timeout" koanf:"poll_timeout"`
}

// InternalMirrorConfig controls the key-value record mirror.
type InternalMirrorConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled" koanf:"enabled"`
	Namespace string        `yaml:"namespace" json:"namespace" koanf:"namespace"`
	TTL       time.Duration `yaml:"ttl" json:"ttl" koanf:"ttl"`
}

// InternalDrainerConfig paces delivery of change events to the mirror.
type InternalDrainerConfig struct {
	BatchSize        int           `yaml:"batch_size" json:"batch_size" koanf:"batch_size"`
	DrainRate        int           `yaml:"drain_rate" json:"drain_rate" koanf:"drain_rate"` // events per second
	MaxRetries       int           `yaml:"max_retries" json:"max_retries" koanf:"max_retries"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base" json:"retry_backoff_base" koanf:"retry_backoff_base"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max" json:"retry_backoff_max" koanf:"retry_backoff_max"`
	PollInterval     time.Duration `yaml:"poll_interval" json:"poll_interval" koanf:"poll_interval"`
}

// InternalTableConfig holds per-table overrides.
type InternalTableConfig struct {
	// AutoCreate creates the table (IF NOT EXISTS) when it is opened.
	AutoCreate bool `yaml:"auto_create" json:"auto_create" koanf:"auto_create"`

	// Publish sends the table's changes to the change feed.
	Publish bool `yaml:"publish" json:"publish" koanf:"publish"`
}
