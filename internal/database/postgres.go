package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rzpsarthak13/recordstore/internal/sqlgen"
)

func init() {
	Register("postgres", OpenPostgres)
}

// OpenPostgres opens a PostgreSQL connection pool through pgx.
func OpenPostgres(ctx context.Context, cfg *Config, logger *slog.Logger) (*SQLConnection, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}

	logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	db, err := OpenPool(ctx, "pgx", dsn, cfg)
	if err != nil {
		return nil, err
	}
	return NewSQLConnection(db, sqlgen.Postgres, logger), nil
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg *Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("sslmode=%s", cfg.option("sslmode", "disable")),
		fmt.Sprintf("connect_timeout=%d", int(cfg.timeout().Seconds())),
	}
	if cfg.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", cfg.Database))
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}
