package database

import (
	"fmt"
	"time"
)

// Config describes how to open a backend connection.
type Config struct {
	// Driver selects the registered backend: sqlite, mysql, postgres, duckdb.
	Driver string

	// DSN is used verbatim when set; otherwise it is built from the fields below.
	DSN string

	// Path is the database file for embedded backends (":memory:" when empty).
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Options carries driver specific settings such as sslmode.
	Options map[string]string

	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	ConnectionTimeout time.Duration
}

// Validate checks the fields every driver needs.
func (c *Config) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must not be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return fmt.Errorf("max_idle_conns (%d) cannot exceed max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	if c.ConnectionTimeout > 0 {
		return c.ConnectionTimeout
	}
	return 10 * time.Second
}

func (c *Config) option(key, fallback string) string {
	if c.Options != nil {
		if v, ok := c.Options[key]; ok && v != "" {
			return v
		}
	}
	return fallback
}
