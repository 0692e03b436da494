package core

import "context"

// Statement is a prepared, parameterized statement.
//
// A statement moves through unbound, bound, executing and exhausted
// states. Reset returns it to the bound state so it can run again
// without being prepared a second time. Statements are not safe for
// concurrent use and must be closed by whoever prepared them.
type Statement interface {
	// SQL returns the text the statement was prepared from.
	SQL() string

	// Bind sets the parameter at 0-based position pos.
	Bind(pos int, v Value) error

	// Step advances to the next result row. It returns false once the
	// result set is exhausted. The first call runs the statement.
	Step(ctx context.Context) (bool, error)

	// Execute runs a statement that produces no rows.
	Execute(ctx context.Context) error

	// ColumnInt64 reads an integer cell from the current row.
	ColumnInt64(pos int) (int64, error)

	// ColumnMaybeInt64 reads an integer cell; NULL yields nil.
	ColumnMaybeInt64(pos int) (*int64, error)

	// ColumnDouble reads a numeric cell as a double.
	ColumnDouble(pos int) (float64, error)

	// ColumnMaybeDouble reads a numeric cell; NULL yields nil.
	ColumnMaybeDouble(pos int) (*float64, error)

	// ColumnText reads a text cell.
	ColumnText(pos int) (string, error)

	// ColumnMaybeText reads a text cell; NULL yields nil.
	ColumnMaybeText(pos int) (*string, error)

	// Reset discards any open result set. When clearBindings is true
	// every parameter goes back to NULL.
	Reset(clearBindings bool) error

	// Close releases the statement. Closing twice is a no-op.
	Close() error
}

// Connection is a handle to one relational backend. It prepares
// statements, executes SQL and hands out the dialect-matched generator.
type Connection interface {
	// Dialect returns the backend name, e.g. "sqlite" or "postgres".
	Dialect() string

	// SQLFactory returns a generator for the described table.
	SQLFactory(desc *TableDescriptor) SQLGenerator

	// Prepare compiles sql. Failures are returned as *PrepareError.
	Prepare(ctx context.Context, sql string) (Statement, error)

	// Exec runs sql without parameters.
	Exec(ctx context.Context, sql string) error

	// ExecStatement runs a prepared statement to completion.
	ExecStatement(ctx context.Context, stmt Statement) error

	// QueryInt64 runs sql and returns the first cell as an integer.
	QueryInt64(ctx context.Context, sql string) (int64, error)

	// QueryMaybeInt64 is QueryInt64 but yields nil for no row or NULL.
	QueryMaybeInt64(ctx context.Context, sql string) (*int64, error)

	// QueryDouble runs sql and returns the first cell as a double.
	QueryDouble(ctx context.Context, sql string) (float64, error)

	// QueryMaybeDouble is QueryDouble but yields nil for no row or NULL.
	QueryMaybeDouble(ctx context.Context, sql string) (*float64, error)

	// Close closes the connection.
	Close() error
}
