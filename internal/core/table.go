package core

// AggregateFunc names a scalar aggregate over one column.
type AggregateFunc string

const (
	// AggregateCount counts rows, or non-NULL values when a column is given.
	AggregateCount AggregateFunc = "COUNT"

	// AggregateAverage is the arithmetic mean.
	AggregateAverage AggregateFunc = "AVG"

	// AggregateSum is the total.
	AggregateSum AggregateFunc = "SUM"

	// AggregateMin is the smallest value.
	AggregateMin AggregateFunc = "MIN"

	// AggregateMax is the largest value.
	AggregateMax AggregateFunc = "MAX"
)

// Valid reports whether f is one of the known aggregates.
func (f AggregateFunc) Valid() bool {
	switch f {
	case AggregateCount, AggregateAverage, AggregateSum, AggregateMin, AggregateMax:
		return true
	}
	return false
}

// SelectOptions controls ordering and paging of a select.
type SelectOptions struct {
	// OrderBy is the column to order by; nil leaves the order unspecified.
	OrderBy *Column

	// Asc selects ascending order when OrderBy is set.
	Asc bool

	// Limit caps the number of rows; 0 means unbounded.
	Limit uint64

	// Offset skips rows before the first returned one.
	Offset uint64
}

// SQLGenerator emits SQL text for one table. Implementations are pure:
// the same inputs always produce the same text. Placeholders follow
// descriptor column order, except UpdateSet which binds non-key columns
// first and the keys last.
type SQLGenerator interface {
	// CreateTable emits a CREATE TABLE with a column clause per column
	// and a primary key clause over keys.
	CreateTable(name string, keys []string, ifNotExists bool) string

	// InsertInto emits an INSERT with one placeholder per column.
	// When replace is true an existing row with the same key is overwritten.
	InsertInto(name string, replace bool) string

	// SelectFrom emits a SELECT of every column.
	SelectFrom(name string, opts SelectOptions) string

	// SelectKeysFrom emits a SELECT of the key columns only.
	SelectKeysFrom(name string, keys []string, opts SelectOptions) string

	// SeekFrom emits a SELECT of every column filtered by equality on keys.
	SeekFrom(name string, keys []string) string

	// UpdateSet emits an UPDATE of every non-key column filtered by keys.
	UpdateSet(name string, keys []string) string

	// DeleteFrom emits a DELETE filtered by keys.
	DeleteFrom(name string, keys []string) string

	// DropTable emits a DROP TABLE.
	DropTable(name string) string

	// TableAggregate emits a single-value SELECT of fn over column.
	// A nil column aggregates over all rows.
	TableAggregate(name string, fn AggregateFunc, column *Column, distinct bool) string

	// TableCount is TableAggregate with AggregateCount.
	TableCount(name string, column *Column, distinct bool) string

	// TableAverage is TableAggregate with AggregateAverage.
	TableAverage(name string, column *Column, distinct bool) string

	// TableSum is TableAggregate with AggregateSum.
	TableSum(name string, column *Column, distinct bool) string

	// TableMin is TableAggregate with AggregateMin.
	TableMin(name string, column *Column, distinct bool) string

	// TableMax is TableAggregate with AggregateMax.
	TableMax(name string, column *Column, distinct bool) string
}
