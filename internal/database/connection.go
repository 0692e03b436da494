// Package database implements core.Connection and core.Statement on top
// of database/sql for the supported backends.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/schema"
	"github.com/rzpsarthak13/recordstore/internal/sqlgen"
)

// SQLConnection implements core.Connection over a *sql.DB.
// It is not safe for concurrent use.
type SQLConnection struct {
	db      *sql.DB
	dialect *sqlgen.Dialect
	mapper  *schema.TypeMapper
	logger  *slog.Logger
	closed  bool
}

var _ core.Connection = (*SQLConnection)(nil)

// NewSQLConnection wraps an open pool. If logger is nil, a discard logger is used.
func NewSQLConnection(db *sql.DB, dialect *sqlgen.Dialect, logger *slog.Logger) *SQLConnection {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLConnection{
		db:      db,
		dialect: dialect,
		mapper:  schema.NewTypeMapper(),
		logger:  logger.With(slog.String("component", "database"), slog.String("dialect", dialect.Name)),
	}
}

// OpenPool opens driverName, applies pool settings and pings the backend.
func OpenPool(ctx context.Context, driverName, dsn string, cfg *Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// DB exposes the underlying pool.
func (c *SQLConnection) DB() *sql.DB { return c.db }

// Dialect returns the backend name.
func (c *SQLConnection) Dialect() string { return c.dialect.Name }

// SQLFactory returns a generator for desc in this connection's dialect.
func (c *SQLConnection) SQLFactory(desc *core.TableDescriptor) core.SQLGenerator {
	return sqlgen.New(c.dialect, desc)
}

// Prepare compiles query into a reusable statement.
func (c *SQLConnection) Prepare(ctx context.Context, query string) (core.Statement, error) {
	if c.closed {
		return nil, &core.PrepareError{SQL: query, Err: core.ErrConnectionClosed}
	}
	c.logger.Debug("preparing statement", slog.String("sql", query))

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		c.logger.Error("prepare failed", slog.String("sql", query), slog.Any("error", err))
		return nil, &core.PrepareError{SQL: query, Err: err}
	}
	return &sqlStatement{conn: c, stmt: stmt, sql: query}, nil
}

// Exec runs query without parameters.
func (c *SQLConnection) Exec(ctx context.Context, query string) error {
	if c.closed {
		return &core.ExecutionError{SQL: query, Err: core.ErrConnectionClosed}
	}
	c.logger.Debug("executing statement", slog.String("sql", query))

	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		c.logger.Error("exec failed", slog.String("sql", query), slog.Any("error", err))
		return &core.ExecutionError{SQL: query, Err: err}
	}
	if n, err := result.RowsAffected(); err == nil {
		c.logger.Debug("statement executed", slog.Int64("rows_affected", n))
	}
	return nil
}

// ExecStatement runs a prepared statement to completion.
func (c *SQLConnection) ExecStatement(ctx context.Context, stmt core.Statement) error {
	if c.closed {
		return &core.ExecutionError{SQL: stmt.SQL(), Err: core.ErrConnectionClosed}
	}
	return stmt.Execute(ctx)
}

// queryCell returns the first cell of the first row. ok is false when
// the query produced no rows.
func (c *SQLConnection) queryCell(ctx context.Context, query string) (cell interface{}, ok bool, err error) {
	if c.closed {
		return nil, false, &core.ExecutionError{SQL: query, Err: core.ErrConnectionClosed}
	}
	c.logger.Debug("executing query", slog.String("sql", query))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, false, &core.ExecutionError{SQL: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, &core.ExecutionError{SQL: query, Err: err}
		}
		return nil, false, nil
	}
	if err := rows.Scan(&cell); err != nil {
		return nil, false, &core.ExecutionError{SQL: query, Err: err}
	}
	return cell, true, nil
}

// QueryInt64 returns the first cell of query as an integer.
func (c *SQLConnection) QueryInt64(ctx context.Context, query string) (int64, error) {
	v, err := c.QueryMaybeInt64(ctx, query)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, &core.SchemaError{Position: 0, Want: "INTEGER", Got: "NULL"}
	}
	return *v, nil
}

// QueryMaybeInt64 returns the first cell of query, or nil for no row or NULL.
func (c *SQLConnection) QueryMaybeInt64(ctx context.Context, query string) (*int64, error) {
	cell, ok, err := c.queryCell(ctx, query)
	if err != nil || !ok || cell == nil {
		return nil, err
	}
	i, err := c.mapper.ToInt64(cell)
	if err != nil {
		return nil, &core.SchemaError{Position: 0, Want: "INTEGER", Got: c.mapper.DescribeValue(cell)}
	}
	return &i, nil
}

// QueryDouble returns the first cell of query as a double.
func (c *SQLConnection) QueryDouble(ctx context.Context, query string) (float64, error) {
	v, err := c.QueryMaybeDouble(ctx, query)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, &core.SchemaError{Position: 0, Want: "REAL", Got: "NULL"}
	}
	return *v, nil
}

// QueryMaybeDouble returns the first cell of query, or nil for no row or NULL.
func (c *SQLConnection) QueryMaybeDouble(ctx context.Context, query string) (*float64, error) {
	cell, ok, err := c.queryCell(ctx, query)
	if err != nil || !ok || cell == nil {
		return nil, err
	}
	f, err := c.mapper.ToDecimal(cell)
	if err != nil {
		return nil, &core.SchemaError{Position: 0, Want: "REAL", Got: c.mapper.DescribeValue(cell)}
	}
	return &f, nil
}

// Close closes the pool. Closing twice is a no-op.
func (c *SQLConnection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("closing connection")
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
