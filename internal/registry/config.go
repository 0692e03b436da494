package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "RECORDSTORE_"

// ConfigValidator is the strategy for validating a KV store backend's
// section of the configuration.
type ConfigValidator interface {
	// Validate checks the kvstore section for this backend.
	Validate(config *InternalConfig) error

	// Type returns the backend identifier, e.g. "redis".
	Type() string
}

var (
	validatorRegistry      = make(map[string]ConfigValidator)
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry registers and looks up config validators.
type ValidationStrategyRegistry struct{}

// Register adds validator. It panics on a nil validator, an empty type or
// a duplicate registration.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}
	validatorRegistry[validator.Type()] = validator
}

// Get returns the validator for validatorType.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// RegisterValidator registers validator with the default registry. KV
// store backends call it from init.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator looks up a validator in the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

// ConfigManager loads, validates and serves the configuration.
type ConfigManager struct {
	mu     sync.RWMutex
	config *InternalConfig
}

// NewConfigManager returns a manager holding the default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{config: DefaultInternalConfig()}
}

// DefaultInternalConfig returns the built-in defaults: an in-memory SQLite
// database with the change feed and the mirror switched off.
func DefaultInternalConfig() *InternalConfig {
	return &InternalConfig{
		Database: InternalDatabaseConfig{
			Driver:            "sqlite",
			Path:              ":memory:",
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		KVStore: InternalKVStoreConfig{
			Type: "redis",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		ChangeFeed: InternalChangeFeedConfig{
			QueueType:     "memory",
			BufferSize:    10000,
			Prefix:        "changes",
			HistoryLength: 100,
			KafkaConfig: InternalKafkaConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "recordstore-changes",
				GroupID:      "recordstore-mirror",
				BatchSize:    100,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
				MinBytes:     1,
				MaxBytes:     10 * 1024 * 1024,
				MaxWait:      100 * time.Millisecond,
				PollTimeout:  5 * time.Second,
			},
		},
		Mirror: InternalMirrorConfig{
			TTL: time.Hour,
		},
		Drainer: InternalDrainerConfig{
			BatchSize:        100,
			DrainRate:        50,
			MaxRetries:       5,
			RetryBackoffBase: time.Second,
			RetryBackoffMax:  30 * time.Second,
			PollInterval:     100 * time.Millisecond,
		},
		Tables: make(map[string]InternalTableConfig),
	}
}

// Load layers, lowest to highest precedence: defaults, the config file at
// path (skipped when empty), RECORDSTORE_* environment variables, then
// overrides keyed by dotted path such as "database.driver".
func (cm *ConfigManager) Load(path string, overrides map[string]interface{}) error {
	k := koanf.New(".")

	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".yaml", ".yml":
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return fmt.Errorf("error reading config file %s: %w", path, err)
			}
		case ".json":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			var raw map[string]interface{}
			if err := json.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("failed to parse JSON config: %w", err)
			}
			if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
				return fmt.Errorf("error reading config file %s: %w", path, err)
			}
		default:
			return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
		}
	}

	if err := k.Load(envProvider(), nil); err != nil {
		return fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	config := DefaultInternalConfig()
	if err := k.Unmarshal("", config); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return cm.apply(config)
}

// envProvider maps RECORDSTORE_SECTION_KEY to section.key. A double
// underscore separates deeper levels, e.g.
// RECORDSTORE_KVSTORE__REDIS_CONFIG__ENDPOINTS. Comma separated values
// become lists.
func envProvider() *env.Env {
	return env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if strings.Contains(key, "__") {
			key = strings.ReplaceAll(key, "__", ".")
		} else {
			key = strings.Replace(key, "_", ".", 1)
		}
		if strings.Contains(value, ",") {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
}

// LoadFromFile loads a YAML or JSON file layered over the defaults and
// the environment.
func (cm *ConfigManager) LoadFromFile(path string) error {
	return cm.Load(path, nil)
}

// LoadFromEnv loads the defaults overridden by RECORDSTORE_* variables.
func (cm *ConfigManager) LoadFromEnv() error {
	return cm.Load("", nil)
}

// LoadFromYAML replaces the configuration with data decoded over the defaults.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := yamlv3.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON replaces the configuration with data decoded over the defaults.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := DefaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

func (cm *ConfigManager) apply(config *InternalConfig) error {
	if config.Tables == nil {
		config.Tables = make(map[string]InternalTableConfig)
	}
	if err := ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return nil
}

// GetConfig returns the current configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// GetTableConfig returns the overrides for tableName, or the defaults
// (auto-create and publish) when the table has none.
func (cm *ConfigManager) GetTableConfig(tableName string) InternalTableConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if tc, ok := cm.config.Tables[tableName]; ok {
		return tc
	}
	return InternalTableConfig{AutoCreate: true, Publish: true}
}

// NeedsKVStore reports whether any enabled component uses the KV store.
func (c *InternalConfig) NeedsKVStore() bool {
	return c.Mirror.Enabled || (c.ChangeFeed.Enabled && c.ChangeFeed.QueueType == "redis")
}

// ValidateConfig checks config. The kvstore section is only validated when
// a component uses it, through the validator registered for its type.
func ValidateConfig(config *InternalConfig) error {
	if err := config.Database.DatabaseConfig().Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if config.NeedsKVStore() {
		if config.KVStore.Type == "" {
			return fmt.Errorf("kvstore.type is required")
		}
		validator, exists := GetValidator(config.KVStore.Type)
		if !exists {
			return fmt.Errorf("unsupported KV store type: %s", config.KVStore.Type)
		}
		if err := validator.Validate(config); err != nil {
			return fmt.Errorf("kvstore validation failed: %w", err)
		}
	}

	cf := config.ChangeFeed
	switch cf.QueueType {
	case "", "memory":
	case "redis":
		if cf.Enabled && config.KVStore.Type != "redis" {
			return fmt.Errorf("changefeed.queue_type 'redis' requires kvstore.type 'redis'")
		}
	case "kafka":
		if len(cf.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("kafka_config.brokers is required when queue_type is 'kafka'")
		}
		if cf.KafkaConfig.Topic == "" {
			return fmt.Errorf("kafka_config.topic is required when queue_type is 'kafka'")
		}
	default:
		return fmt.Errorf("changefeed.queue_type must be 'memory', 'redis', or 'kafka'")
	}
	if cf.BufferSize < 0 {
		return fmt.Errorf("changefeed.buffer_size must be non-negative")
	}
	if config.Mirror.Enabled && !cf.Enabled {
		return fmt.Errorf("mirror requires changefeed.enabled")
	}
	if config.Mirror.TTL < 0 {
		return fmt.Errorf("mirror.ttl must be non-negative")
	}

	d := config.Drainer
	if d.BatchSize <= 0 {
		return fmt.Errorf("drainer.batch_size must be greater than 0")
	}
	if d.DrainRate <= 0 {
		return fmt.Errorf("drainer.drain_rate must be greater than 0")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("drainer.max_retries must be non-negative")
	}
	if d.RetryBackoffBase <= 0 {
		return fmt.Errorf("drainer.retry_backoff_base must be greater than 0")
	}
	if d.RetryBackoffMax < d.RetryBackoffBase {
		return fmt.Errorf("drainer.retry_backoff_max must be >= drainer.retry_backoff_base")
	}
	return nil
}
