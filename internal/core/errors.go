package core

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnRequired is returned when an aggregate other than count
	// is requested without a column.
	ErrColumnRequired = errors.New("aggregate requires a column")

	// ErrStatementClosed is returned by any call on a closed statement.
	ErrStatementClosed = errors.New("statement is closed")

	// ErrConnectionClosed is returned by any call on a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrNoRow is returned when a column is read before Step produced a row.
	ErrNoRow = errors.New("no current row")
)

// PrepareError reports a statement that failed to compile.
type PrepareError struct {
	SQL string
	Err error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("failed to prepare statement %q: %v", e.SQL, e.Err)
}

func (e *PrepareError) Unwrap() error { return e.Err }

// ExecutionError reports a backend failure while running a statement.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute statement %q: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SchemaError reports a mismatch between the declared column shape and
// the value that was bound or read.
type SchemaError struct {
	// Position is the column position, or -1 when not tied to one.
	Position int

	// Column is the column name when known.
	Column string

	// Want describes the expected shape.
	Want string

	// Got describes what was found.
	Got string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema mismatch on column %s (position %d): want %s, got %s", e.Column, e.Position, e.Want, e.Got)
	}
	if e.Position >= 0 {
		return fmt.Sprintf("schema mismatch at position %d: want %s, got %s", e.Position, e.Want, e.Got)
	}
	return fmt.Sprintf("schema mismatch: want %s, got %s", e.Want, e.Got)
}

// IsPrepareError reports whether err wraps a PrepareError.
func IsPrepareError(err error) bool {
	var pe *PrepareError
	return errors.As(err, &pe)
}

// IsExecutionError reports whether err wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
