package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

type stmtState int

const (
	stateReady stmtState = iota
	stateExecuting
	stateExhausted
)

// sqlStatement implements core.Statement over a *sql.Stmt. Parameters
// are collected by Bind and handed to the driver when the statement runs.
type sqlStatement struct {
	conn   *SQLConnection
	stmt   *sql.Stmt
	sql    string
	params []interface{}
	rows   *sql.Rows
	row    []interface{}
	state  stmtState
	closed bool
}

var _ core.Statement = (*sqlStatement)(nil)

func (s *sqlStatement) SQL() string { return s.sql }

// Bind sets parameter pos. Positions may be bound in any order; gaps are NULL.
func (s *sqlStatement) Bind(pos int, v core.Value) error {
	if s.closed {
		return core.ErrStatementClosed
	}
	if pos < 0 {
		return &core.SchemaError{Position: pos, Want: "non-negative parameter position", Got: fmt.Sprint(pos)}
	}
	if s.state != stateReady {
		// rebinding mid-iteration starts the statement over
		s.closeRows()
		s.state = stateReady
	}
	for len(s.params) <= pos {
		s.params = append(s.params, nil)
	}
	s.params[pos] = v.Interface()
	return nil
}

// Step advances to the next row, running the query on the first call.
func (s *sqlStatement) Step(ctx context.Context) (bool, error) {
	if s.closed {
		return false, core.ErrStatementClosed
	}

	switch s.state {
	case stateExhausted:
		return false, nil
	case stateReady:
		s.conn.logger.Debug("executing query", slog.String("sql", s.sql), slog.Int("args", len(s.params)))
		rows, err := s.stmt.QueryContext(ctx, s.params...)
		if err != nil {
			s.conn.logger.Error("query failed", slog.String("sql", s.sql), slog.Any("error", err))
			return false, &core.ExecutionError{SQL: s.sql, Err: err}
		}
		s.rows = rows
		s.state = stateExecuting
	}

	if !s.rows.Next() {
		err := s.rows.Err()
		s.closeRows()
		s.state = stateExhausted
		if err != nil {
			return false, &core.ExecutionError{SQL: s.sql, Err: err}
		}
		return false, nil
	}

	cols, err := s.rows.Columns()
	if err != nil {
		return false, &core.ExecutionError{SQL: s.sql, Err: err}
	}
	row := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range row {
		ptrs[i] = &row[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return false, &core.ExecutionError{SQL: s.sql, Err: fmt.Errorf("failed to scan row: %w", err)}
	}
	s.row = row
	return true, nil
}

// Execute runs the statement without reading rows.
func (s *sqlStatement) Execute(ctx context.Context) error {
	if s.closed {
		return core.ErrStatementClosed
	}
	s.closeRows()

	s.conn.logger.Debug("executing statement", slog.String("sql", s.sql), slog.Int("args", len(s.params)))
	result, err := s.stmt.ExecContext(ctx, s.params...)
	s.state = stateExhausted
	if err != nil {
		s.conn.logger.Error("exec failed", slog.String("sql", s.sql), slog.Any("error", err))
		return &core.ExecutionError{SQL: s.sql, Err: err}
	}
	if n, err := result.RowsAffected(); err == nil {
		s.conn.logger.Debug("statement executed", slog.Int64("rows_affected", n))
	}
	return nil
}

func (s *sqlStatement) cell(pos int) (interface{}, error) {
	if s.closed {
		return nil, core.ErrStatementClosed
	}
	if s.row == nil {
		return nil, core.ErrNoRow
	}
	if pos < 0 || pos >= len(s.row) {
		return nil, &core.SchemaError{Position: pos, Want: fmt.Sprintf("column below %d", len(s.row)), Got: fmt.Sprint(pos)}
	}
	return s.conn.mapper.Unwrap(s.row[pos])
}

func (s *sqlStatement) mismatch(pos int, want string, got interface{}) error {
	return &core.SchemaError{Position: pos, Want: want, Got: s.conn.mapper.DescribeValue(got)}
}

func (s *sqlStatement) ColumnInt64(pos int) (int64, error) {
	v, err := s.ColumnMaybeInt64(pos)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, s.mismatch(pos, "INTEGER", nil)
	}
	return *v, nil
}

func (s *sqlStatement) ColumnMaybeInt64(pos int) (*int64, error) {
	cell, err := s.cell(pos)
	if err != nil || cell == nil {
		return nil, err
	}
	i, err := s.conn.mapper.ToInt64(cell)
	if err != nil {
		return nil, s.mismatch(pos, "INTEGER", cell)
	}
	return &i, nil
}

func (s *sqlStatement) ColumnDouble(pos int) (float64, error) {
	v, err := s.ColumnMaybeDouble(pos)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, s.mismatch(pos, "REAL", nil)
	}
	return *v, nil
}

func (s *sqlStatement) ColumnMaybeDouble(pos int) (*float64, error) {
	cell, err := s.cell(pos)
	if err != nil || cell == nil {
		return nil, err
	}
	f, err := s.conn.mapper.ToFloat64(cell)
	if err != nil {
		return nil, s.mismatch(pos, "REAL", cell)
	}
	return &f, nil
}

func (s *sqlStatement) ColumnText(pos int) (string, error) {
	v, err := s.ColumnMaybeText(pos)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", s.mismatch(pos, "TEXT", nil)
	}
	return *v, nil
}

func (s *sqlStatement) ColumnMaybeText(pos int) (*string, error) {
	cell, err := s.cell(pos)
	if err != nil || cell == nil {
		return nil, err
	}
	str, err := s.conn.mapper.ToString(cell)
	if err != nil {
		return nil, s.mismatch(pos, "TEXT", cell)
	}
	return &str, nil
}

// Reset returns the statement to the bound state.
func (s *sqlStatement) Reset(clearBindings bool) error {
	if s.closed {
		return core.ErrStatementClosed
	}
	s.closeRows()
	s.state = stateReady
	if clearBindings {
		for i := range s.params {
			s.params[i] = nil
		}
	}
	return nil
}

// Close releases the open result set and the prepared statement.
func (s *sqlStatement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeRows()
	if err := s.stmt.Close(); err != nil {
		return fmt.Errorf("failed to close statement: %w", err)
	}
	return nil
}

func (s *sqlStatement) closeRows() {
	if s.rows != nil {
		_ = s.rows.Close()
		s.rows = nil
	}
	s.row = nil
}
