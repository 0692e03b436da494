package database

import (
	"context"
	"log/slog"

	"github.com/rzpsarthak13/recordstore/internal/sqlgen"

	_ "modernc.org/sqlite"
)

func init() {
	Register("sqlite", OpenSQLite)
}

// OpenSQLite opens an embedded SQLite database. An empty path opens a
// private in-memory database.
func OpenSQLite(ctx context.Context, cfg *Config, logger *slog.Logger) (*SQLConnection, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == "" {
		dsn = ":memory:"
	}

	// every pooled connection to ":memory:" would be a separate database,
	// and SQLite allows a single writer anyway
	pool := *cfg
	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	pool.ConnMaxLifetime = 0
	pool.ConnMaxIdleTime = 0

	logger.Debug("connecting to sqlite", slog.String("path", dsn))
	db, err := OpenPool(ctx, "sqlite", dsn, &pool)
	if err != nil {
		return nil, err
	}
	return NewSQLConnection(db, sqlgen.SQLite, logger), nil
}
