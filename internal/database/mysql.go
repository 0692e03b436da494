package database

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rzpsarthak13/recordstore/internal/sqlgen"
)

func init() {
	Register("mysql", OpenMySQL)
}

// OpenMySQL opens a MySQL connection pool.
func OpenMySQL(ctx context.Context, cfg *Config, logger *slog.Logger) (*SQLConnection, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildMySQLDSN(cfg)
	}

	logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))
	db, err := OpenPool(ctx, "mysql", dsn, cfg)
	if err != nil {
		return nil, err
	}
	return NewSQLConnection(db, sqlgen.MySQL, logger), nil
}

func buildMySQLDSN(cfg *Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		cfg.Username, cfg.Password, host, port, cfg.Database, cfg.timeout())
}
