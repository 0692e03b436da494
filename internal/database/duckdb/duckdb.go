// Package duckdb registers the DuckDB backend. It needs cgo, so it is
// only linked into binaries that import it.
package duckdb

import (
	"context"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/rzpsarthak13/recordstore/internal/database"
	"github.com/rzpsarthak13/recordstore/internal/sqlgen"
)

func init() {
	database.Register("duckdb", Open)
}

// Open opens a DuckDB database file, or an in-memory one for an empty path.
func Open(ctx context.Context, cfg *database.Config, logger *slog.Logger) (*database.SQLConnection, error) {
	path := cfg.DSN
	if path == "" {
		path = cfg.Path
	}
	if path == ":memory:" {
		path = ""
	}

	logger.Debug("connecting to duckdb", slog.String("path", path))
	pool := *cfg
	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	pool.ConnMaxLifetime = 0
	pool.ConnMaxIdleTime = 0
	db, err := database.OpenPool(ctx, "duckdb", path, &pool)
	if err != nil {
		return nil, err
	}
	return database.NewSQLConnection(db, sqlgen.DuckDB, logger), nil
}
